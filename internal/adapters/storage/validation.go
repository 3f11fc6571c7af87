package storage

import (
	"fmt"
	"strings"
)

// AllowedContentTypes lists the voice note formats WhatsApp delivers.
var AllowedContentTypes = map[string]bool{
	"audio/ogg":  true,
	"audio/opus": true,
	"audio/mpeg": true,
	"audio/mp4":  true,
	"audio/aac":  true,
	"audio/amr":  true,
	"audio/webm": true,
}

// NormalizeContentType strips parameters such as "; codecs=opus".
func NormalizeContentType(contentType string) string {
	normalized := strings.Split(contentType, ";")[0]
	return strings.TrimSpace(strings.ToLower(normalized))
}

// ValidateContentType checks if the content type is allowed.
func (s *MinIOService) ValidateContentType(contentType string) error {
	if !AllowedContentTypes[NormalizeContentType(contentType)] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// ValidateFileSize checks if the file size is within limits.
func (s *MinIOService) ValidateFileSize(sizeBytes int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("file size must be greater than 0")
	}
	if s.maxFileSize > 0 && sizeBytes > s.maxFileSize {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size of %d bytes", sizeBytes, s.maxFileSize)
	}
	return nil
}
