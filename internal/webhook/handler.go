package webhook

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/internal/scheduler"
	"servewell_backend/platform/apperr"
	"servewell_backend/platform/httpkit"
	"servewell_backend/platform/logger"
	"servewell_backend/platform/phone"

	"github.com/gin-gonic/gin"
)

const (
	eventMessage     = "message"
	messageTypeChat  = "chat"
	messageTypePTT   = "ptt"
	messageTypeAudio = "audio"
	defaultAudioMime = "audio/ogg"
)

const (
	errInvalidRequest  = "invalid request"
	errInvalidJSON     = "invalid JSON"
	errInvalidInstance = "invalid instance ID"
	errAuthFailed      = "authentication failed"
	errEventUnknown    = "event not supported"
	errInvalidMedia    = "invalid media payload"
	errEnqueueFailed   = "could not accept message"
)

var errMissingMedia = errors.New("voice note without media")

// CompanyResolver finds the company that owns a WAAPI instance.
type CompanyResolver interface {
	CompanyByChannel(ctx context.Context, instanceID string) (domain.Company, error)
}

// Payload is the body WAAPI posts for every instance event.
type Payload struct {
	InstanceID string    `json:"instanceId"`
	Event      string    `json:"event"`
	Data       *DataPart `json:"data"`
}

// DataPart holds the message and, for voice notes, its media.
type DataPart struct {
	Message MessagePart `json:"message"`
	Media   *MediaPart  `json:"media"`
}

type MessagePart struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	From      string `json:"from"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
}

type MediaPart struct {
	Mimetype string `json:"mimetype"`
	Data     string `json:"data"`
}

// Handler accepts inbound WhatsApp messages and queues them as conversation steps.
type Handler struct {
	companies CompanyResolver
	queue     scheduler.StepEnqueuer
	log       *logger.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(companies CompanyResolver, queue scheduler.StepEnqueuer, log *logger.Logger) *Handler {
	return &Handler{companies: companies, queue: queue, log: log}
}

// HandleWhatsApp processes one WAAPI event.
// POST /api/v1/webhook/whatsapp/:securityToken
func (h *Handler) HandleWhatsApp(c *gin.Context) {
	token := c.Param("securityToken")

	var body Payload
	if err := c.ShouldBindJSON(&body); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidJSON, nil)
		return
	}
	if token == "" || body.InstanceID == "" || body.Event == "" || body.Data == nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}

	ctx := c.Request.Context()
	company, err := h.companies.CompanyByChannel(ctx, body.InstanceID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			httpkit.Error(c, http.StatusBadRequest, errInvalidInstance, nil)
			return
		}
		h.log.WithContext(ctx).DatabaseError("resolve webhook company", err)
		httpkit.HandleError(c, err)
		return
	}
	if !httpkit.TokenMatches(token, company.WebhookTokenHash) {
		httpkit.Error(c, http.StatusUnauthorized, errAuthFailed, nil)
		return
	}

	if body.Event != eventMessage {
		httpkit.Error(c, http.StatusNotFound, errEventUnknown, nil)
		return
	}

	ev, ok, err := toEvent(body)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidMedia, nil)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.queue.EnqueueConversationStep(ctx, ev); err != nil {
		h.log.WithContext(ctx).Error("enqueue conversation step failed",
			"instanceId", body.InstanceID, "messageId", ev.MessageID, "error", err)
		httpkit.HandleError(c, apperr.Wrap(apperr.KindUnavailable, errEnqueueFailed, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// toEvent maps a message payload to an inbound event. ok is false for
// message types the conversation does not handle and for empty senders.
func toEvent(body Payload) (domain.Event, bool, error) {
	msg := body.Data.Message
	sender := phone.FromWhatsAppID(msg.From)
	if sender == "" {
		return domain.Event{}, false, nil
	}
	ev := domain.Event{
		ChannelID:   body.InstanceID,
		SenderPhone: sender,
		MessageID:   msg.ID,
	}

	switch msg.Type {
	case messageTypeChat:
		ev.Payload = domain.TextEvent{Text: msg.Body}
	case messageTypePTT, messageTypeAudio:
		if body.Data.Media == nil || body.Data.Media.Data == "" {
			return domain.Event{}, false, errMissingMedia
		}
		data, err := base64.StdEncoding.DecodeString(body.Data.Media.Data)
		if err != nil {
			return domain.Event{}, false, err
		}
		mime := strings.TrimSpace(body.Data.Media.Mimetype)
		if mime == "" {
			mime = defaultAudioMime
		}
		ev.Payload = domain.AudioEvent{Data: data, Mime: mime}
	default:
		return domain.Event{}, false, nil
	}
	return ev, true, nil
}
