// Package handler exposes order ingestion and conversation read-back over HTTP.
package handler

import (
	"context"
	"net/http"
	"strings"

	"servewell_backend/internal/adapters/storage"
	"servewell_backend/internal/reviews/domain"
	"servewell_backend/internal/reviews/transport"
	"servewell_backend/platform/httpkit"
	"servewell_backend/platform/logger"
	"servewell_backend/platform/phone"
	"servewell_backend/platform/sanitize"
	"servewell_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidPhone     = "customerPhone is not a valid phone number"
	msgOrderNotFound    = "order not found"
	msgNoCompany        = "no company context"
)

// OrderStore is what the handler needs from persistence.
type OrderStore interface {
	CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error)
	QuestionsFor(ctx context.Context, orderID uuid.UUID) ([]domain.Question, error)
}

// Seeder seeds the first question of a new order.
type Seeder interface {
	SeedFirstQuestion(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// AudioLinker signs download links for stored voice notes.
type AudioLinker interface {
	AudioURL(ctx context.Context, key string) (*storage.PresignedURL, error)
}

type Handler struct {
	orders OrderStore
	seeder Seeder
	audio  AudioLinker
	val    *validator.Validator
	region string
	log    *logger.Logger
}

// New creates a handler. audio may be nil when object storage is disabled; the
// conversation view then omits voice note links.
func New(orders OrderStore, seeder Seeder, audio AudioLinker, val *validator.Validator, region string, log *logger.Logger) *Handler {
	return &Handler{orders: orders, seeder: seeder, audio: audio, val: val, region: region, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.CreateOrder)
	rg.GET("/:orderId/conversation", h.GetConversation)
}

// CreateOrder stores an order and seeds its first question.
// POST /api/v1/orders
func (h *Handler) CreateOrder(c *gin.Context) {
	company, ok := companyFrom(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, msgNoCompany, nil)
		return
	}

	var req transport.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if !phone.IsValid(req.CustomerPhone, h.region) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidPhone, nil)
		return
	}
	customerPhone := phone.NormalizeE164(req.CustomerPhone, h.region)

	ctx := c.Request.Context()
	order, err := h.orders.CreateOrder(ctx, domain.Order{
		CompanyID:     company.ID,
		Number:        strings.TrimSpace(req.Number),
		BranchName:    sanitize.Text(req.BranchName),
		PlacedAt:      req.PlacedAt.UTC(),
		CustomerName:  sanitize.Text(req.CustomerName),
		CustomerPhone: customerPhone,
		Details:       sanitize.Text(req.Details),
		LineItems:     toLineItems(req.LineItems),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	// The sweep seeds orders whose first question could not be stored here.
	seeded, err := h.seeder.SeedFirstQuestion(ctx, order.ID)
	if err != nil {
		h.log.WithContext(ctx).Error("seed first question failed", "orderId", order.ID, "error", err)
		seeded = false
	}

	c.JSON(http.StatusCreated, transport.CreateOrderResponse{Order: toOrderResponse(order), Seeded: seeded})
}

// GetConversation returns an order's question ledger.
// GET /api/v1/orders/:orderId/conversation
func (h *Handler) GetConversation(c *gin.Context) {
	company, ok := companyFrom(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, msgNoCompany, nil)
		return
	}
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	ctx := c.Request.Context()
	order, err := h.orders.GetOrder(ctx, orderID)
	if httpkit.HandleError(c, err) {
		return
	}
	if order.CompanyID != company.ID {
		httpkit.Error(c, http.StatusNotFound, msgOrderNotFound, nil)
		return
	}

	questions, err := h.orders.QuestionsFor(ctx, order.ID)
	if httpkit.HandleError(c, err) {
		return
	}
	domain.SortByPriority(questions)

	resp := transport.ConversationResponse{
		OrderID:   order.ID,
		State:     domain.ConversationState(questions).String(),
		Turns:     domain.TurnCounter(questions),
		Questions: make([]transport.QuestionResponse, 0, len(questions)),
	}
	for _, q := range questions {
		resp.Questions = append(resp.Questions, transport.QuestionResponse{
			ID:        q.ID,
			Priority:  q.Priority,
			Text:      q.Text,
			Answer:    q.Answer,
			AudioURL:  h.audioURL(ctx, q.AudioKey),
			Answered:  q.IsAnswered(),
			CreatedAt: q.CreatedAt,
		})
	}

	httpkit.OK(c, resp)
}

func (h *Handler) audioURL(ctx context.Context, key *string) *string {
	if h.audio == nil || key == nil || *key == "" {
		return nil
	}
	link, err := h.audio.AudioURL(ctx, *key)
	if err != nil {
		h.log.WithContext(ctx).Warn("presign voice note failed", "key", *key, "error", err)
		return nil
	}
	return &link.URL
}

func toLineItems(items []transport.LineItemRequest) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, domain.LineItem{
			Item:         sanitize.Text(it.Item),
			Quantity:     it.Quantity,
			Price:        it.Price,
			SpecialNotes: sanitize.Text(it.SpecialNotes),
		})
	}
	return out
}

func toOrderResponse(o domain.Order) transport.OrderResponse {
	items := make([]transport.LineItemRequest, 0, len(o.LineItems))
	for _, it := range o.LineItems {
		items = append(items, transport.LineItemRequest{
			Item:         it.Item,
			Quantity:     it.Quantity,
			Price:        it.Price,
			SpecialNotes: it.SpecialNotes,
		})
	}
	return transport.OrderResponse{
		ID:            o.ID,
		Number:        o.Number,
		BranchName:    o.BranchName,
		PlacedAt:      o.PlacedAt,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		Details:       o.Details,
		LineItems:     items,
		CreatedAt:     o.CreatedAt,
	}
}
