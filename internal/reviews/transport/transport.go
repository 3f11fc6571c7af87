// Package transport holds the JSON shapes of the reviews HTTP API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

type LineItemRequest struct {
	Item         string  `json:"item" validate:"notblank,max=200"`
	Quantity     int     `json:"quantity" validate:"min=1,max=1000"`
	Price        float64 `json:"price" validate:"min=0"`
	SpecialNotes string  `json:"specialNotes" validate:"max=500"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	Number        string            `json:"number" validate:"notblank,max=100"`
	BranchName    string            `json:"branchName" validate:"max=200"`
	PlacedAt      time.Time         `json:"placedAt" validate:"required"`
	CustomerName  string            `json:"customerName" validate:"max=200"`
	CustomerPhone string            `json:"customerPhone" validate:"notblank,max=32"`
	Details       string            `json:"details" validate:"max=2000"`
	LineItems     []LineItemRequest `json:"lineItems" validate:"max=100,dive"`
}

type OrderResponse struct {
	ID            uuid.UUID         `json:"id"`
	Number        string            `json:"number"`
	BranchName    string            `json:"branchName"`
	PlacedAt      time.Time         `json:"placedAt"`
	CustomerName  string            `json:"customerName"`
	CustomerPhone string            `json:"customerPhone"`
	Details       string            `json:"details"`
	LineItems     []LineItemRequest `json:"lineItems"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// CreateOrderResponse reports whether the first question was seeded with the order.
type CreateOrderResponse struct {
	Order  OrderResponse `json:"order"`
	Seeded bool          `json:"seeded"`
}

type QuestionResponse struct {
	ID        uuid.UUID `json:"id"`
	Priority  int       `json:"priority"`
	Text      string    `json:"text"`
	Answer    *string   `json:"answer,omitempty"`
	AudioURL  *string   `json:"audioUrl,omitempty"`
	Answered  bool      `json:"answered"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationResponse is the ledger of one order.
type ConversationResponse struct {
	OrderID   uuid.UUID          `json:"orderId"`
	State     string             `json:"state"`
	Turns     int                `json:"turns"`
	Questions []QuestionResponse `json:"questions"`
}
