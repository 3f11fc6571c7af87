package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"servewell_backend/platform/logger"
)

type testConfig struct{ baseURL string }

func (c testConfig) GetWhatsAppBaseURL() string    { return c.baseURL }
func (c testConfig) GetPhoneDefaultRegion() string { return "PK" }

func TestSendPostsToInstance(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instances/42/client/action/send-message" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"data":{"status":"success"}}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig{baseURL: srv.URL + "/"}, logger.Nop())
	if err := c.Send(context.Background(), "42", "tok", "+923001234567", "How was the food?"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if got.ChatID != "923001234567@c.us" || got.Message != "How was the food?" || !got.PreviewLink {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestSendReportsServiceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "instance not ready", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewClient(testConfig{baseURL: srv.URL}, logger.Nop()).Send(context.Background(), "42", "tok", "+923001234567", "hi")
	if err == nil || !strings.Contains(err.Error(), "instance not ready") {
		t.Fatalf("expected service error, got %v", err)
	}
}

func TestSendRejectsEmptyRecipient(t *testing.T) {
	err := NewClient(testConfig{baseURL: "http://unused"}, logger.Nop()).Send(context.Background(), "42", "tok", "  ", "hi")
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
}
