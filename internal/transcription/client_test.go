package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type testConfig struct {
	baseURL string
	apiKey  string
}

func (c testConfig) GetLemonFoxAPIKey() string             { return c.apiKey }
func (c testConfig) GetLemonFoxBaseURL() string            { return c.baseURL }
func (c testConfig) GetTranscriptionLanguage() string      { return "english" }
func (c testConfig) GetCollaboratorTimeout() time.Duration { return time.Second }

func TestTranscribeUploadsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.FormValue("language") != "english" || r.FormValue("response_format") != "json" {
			t.Errorf("unexpected fields %v", r.MultipartForm.Value)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file: %v", err)
			return
		}
		data, _ := io.ReadAll(file)
		if string(data) != "OggS-data" || header.Filename != "voice.ogg" {
			t.Errorf("unexpected upload %q %s", data, header.Filename)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " food was great "})
	}))
	defer srv.Close()

	c := NewClient(testConfig{baseURL: srv.URL, apiKey: "key"})
	text, err := c.Transcribe(context.Background(), []byte("OggS-data"), "audio/ogg; codecs=opus", "english")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if text != "food was great" {
		t.Fatalf("unexpected transcript %q", text)
	}
}

func TestTranscribeRetriesServerErrorOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig{baseURL: srv.URL, apiKey: "key"}).Transcribe(context.Background(), []byte("x"), "audio/mpeg", "")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected StatusError 502, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
}

func TestTranscribeDoesNotRetryClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad audio", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, _ = NewClient(testConfig{baseURL: srv.URL, apiKey: "key"}).Transcribe(context.Background(), []byte("x"), "audio/mpeg", "")
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestTranscribeRequiresKey(t *testing.T) {
	_, err := NewClient(testConfig{}).Transcribe(context.Background(), []byte("x"), "audio/ogg", "")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
