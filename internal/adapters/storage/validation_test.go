package storage

import "testing"

func TestValidateContentType(t *testing.T) {
	s := &MinIOService{maxFileSize: 10}

	if err := s.ValidateContentType("audio/ogg; codecs=opus"); err != nil {
		t.Fatalf("expected ogg voice note to be accepted: %v", err)
	}
	if err := s.ValidateContentType("Audio/MPEG"); err != nil {
		t.Fatalf("expected case-insensitive match: %v", err)
	}
	if err := s.ValidateContentType("image/png"); err == nil {
		t.Fatalf("expected image to be rejected")
	}
}

func TestValidateFileSize(t *testing.T) {
	s := &MinIOService{maxFileSize: 10}

	if err := s.ValidateFileSize(0); err == nil {
		t.Fatalf("expected empty file to be rejected")
	}
	if err := s.ValidateFileSize(11); err == nil {
		t.Fatalf("expected oversized file to be rejected")
	}
	if err := s.ValidateFileSize(10); err != nil {
		t.Fatalf("expected file at limit to pass: %v", err)
	}
}
