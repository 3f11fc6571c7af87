package webhook

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apphttp "servewell_backend/internal/http"
	"servewell_backend/internal/reviews/domain"
	"servewell_backend/platform/apperr"
	"servewell_backend/platform/httpkit"
	"servewell_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	testInstance = "inst-1"
	testToken    = "wht_secret"
)

type fakeCompanies struct {
	companies map[string]domain.Company
	err       error
}

func (f *fakeCompanies) CompanyByChannel(_ context.Context, instanceID string) (domain.Company, error) {
	if f.err != nil {
		return domain.Company{}, f.err
	}
	c, ok := f.companies[instanceID]
	if !ok {
		return domain.Company{}, apperr.NotFound("company not found")
	}
	return c, nil
}

type fakeQueue struct {
	events []domain.Event
	err    error
}

func (f *fakeQueue) EnqueueConversationStep(_ context.Context, ev domain.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func newTestEngine(queue *fakeQueue, limiter *httpkit.KeyedRateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	companies := &fakeCompanies{companies: map[string]domain.Company{
		testInstance: {ID: uuid.New(), InstanceID: testInstance, WebhookTokenHash: httpkit.HashToken(testToken)},
	}}
	engine := gin.New()
	rc := &apphttp.RouterContext{Engine: engine, V1: engine.Group("/api/v1"), WebhookRateLimiter: limiter}
	NewModule(companies, queue, logger.Nop()).RegisterRoutes(rc)
	return engine
}

func post(engine *gin.Engine, token string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/whatsapp/"+token, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func chatPayload(body string) Payload {
	return Payload{
		InstanceID: testInstance,
		Event:      "message",
		Data: &DataPart{Message: MessagePart{
			ID: "msg-1", Type: "chat", From: "923001234567@c.us", Body: body, Timestamp: 1700000000,
		}},
	}
}

func TestChatMessageIsQueued(t *testing.T) {
	queue := &fakeQueue{}
	rec := post(newTestEngine(queue, nil), testToken, chatPayload("great food"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(queue.events) != 1 {
		t.Fatalf("expected one queued event, got %d", len(queue.events))
	}
	ev := queue.events[0]
	if ev.ChannelID != testInstance || ev.SenderPhone != "+923001234567" || ev.MessageID != "msg-1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	text, ok := ev.Payload.(domain.TextEvent)
	if !ok || text.Text != "great food" {
		t.Fatalf("expected text payload, got %#v", ev.Payload)
	}
}

func TestVoiceNoteIsDecoded(t *testing.T) {
	queue := &fakeQueue{}
	payload := chatPayload("")
	payload.Data.Message.Type = "ptt"
	payload.Data.Media = &MediaPart{Data: base64.StdEncoding.EncodeToString([]byte("OggS"))}

	rec := post(newTestEngine(queue, nil), testToken, payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	audio, ok := queue.events[0].Payload.(domain.AudioEvent)
	if !ok {
		t.Fatalf("expected audio payload, got %#v", queue.events[0].Payload)
	}
	if string(audio.Data) != "OggS" || audio.Mime != "audio/ogg" {
		t.Fatalf("unexpected audio %q %q", audio.Data, audio.Mime)
	}
}

func TestVoiceNoteWithBadMediaRejected(t *testing.T) {
	queue := &fakeQueue{}
	payload := chatPayload("")
	payload.Data.Message.Type = "audio"
	payload.Data.Media = &MediaPart{Mimetype: "audio/mpeg", Data: "%%%not-base64"}

	rec := post(newTestEngine(queue, nil), testToken, payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(queue.events) != 0 {
		t.Fatalf("expected nothing queued")
	}
}

func TestUnsupportedMessageTypeIgnored(t *testing.T) {
	queue := &fakeQueue{}
	payload := chatPayload("")
	payload.Data.Message.Type = "image"

	rec := post(newTestEngine(queue, nil), testToken, payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(queue.events) != 0 {
		t.Fatalf("expected image to be ignored")
	}
}

func TestWebhookRejections(t *testing.T) {
	cases := []struct {
		name   string
		token  string
		mutate func(*Payload)
		want   int
	}{
		{name: "wrong token", token: "wht_other", mutate: func(*Payload) {}, want: http.StatusUnauthorized},
		{name: "unknown instance", token: testToken, mutate: func(p *Payload) { p.InstanceID = "nope" }, want: http.StatusBadRequest},
		{name: "missing data", token: testToken, mutate: func(p *Payload) { p.Data = nil }, want: http.StatusBadRequest},
		{name: "other event", token: testToken, mutate: func(p *Payload) { p.Event = "message_ack" }, want: http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			queue := &fakeQueue{}
			payload := chatPayload("hi")
			tc.mutate(&payload)
			rec := post(newTestEngine(queue, nil), tc.token, payload)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
			if len(queue.events) != 0 {
				t.Fatalf("expected nothing queued")
			}
		})
	}
}

func TestQueueFailureReturnsUnavailable(t *testing.T) {
	queue := &fakeQueue{err: errors.New("redis down")}
	rec := post(newTestEngine(queue, nil), testToken, chatPayload("hi"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestWebhookRateLimitedPerToken(t *testing.T) {
	queue := &fakeQueue{}
	limiter := httpkit.NewKeyedRateLimiter(rate.Limit(0.001), 1, time.Minute, logger.Nop())
	engine := newTestEngine(queue, limiter)

	if rec := post(engine, testToken, chatPayload("one")); rec.Code != http.StatusOK {
		t.Fatalf("expected first call to pass, got %d", rec.Code)
	}
	if rec := post(engine, testToken, chatPayload("two")); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second call to be limited, got %d", rec.Code)
	}
}
