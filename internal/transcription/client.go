// Package transcription turns customer voice notes into text through an
// OpenAI-compatible /audio/transcriptions endpoint (LemonFox).
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"servewell_backend/platform/bounded"
	"servewell_backend/platform/config"
)

const DefaultBaseURL = "https://api.lemonfox.ai/v1"

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("transcription: api key not configured")

// StatusError carries a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transcription: status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request is worth repeating.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

func NewClient(cfg config.TranscriptionConfig) *Client {
	baseURL := cfg.GetLemonFoxBaseURL()
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.GetLemonFoxAPIKey(),
		timeout: cfg.GetCollaboratorTimeout(),
		http:    &http.Client{},
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads audio and returns the recognised text. language may be
// empty to let the service detect it.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mime, language string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	var text string
	err := bounded.Call(ctx, c.timeout, func(ctx context.Context) error {
		var err error
		text, err = c.transcribeOnce(ctx, audio, mime, language)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) transcribeOnce(ctx context.Context, audio []byte, mime, language string) (string, error) {
	body, contentType, err := buildForm(audio, mime, language)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}

func buildForm(audio []byte, mime, language string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if language != "" {
		if err := w.WriteField("language", language); err != nil {
			return nil, "", err
		}
	}
	if err := w.WriteField("response_format", "json"); err != nil {
		return nil, "", err
	}

	if mime == "" {
		mime = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName(mime)))
	header.Set("Content-Type", mime)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func fileName(mime string) string {
	if strings.Contains(strings.ToLower(mime), "ogg") {
		return "voice.ogg"
	}
	return "voice.mp3"
}
