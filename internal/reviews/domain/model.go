// Package domain holds the feedback conversation model and the pure rules that
// decide where a conversation stands.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// FirstPriority is the priority of the seed question.
	FirstPriority = 1
	// TerminalPriority is reserved for the closing message. Three content
	// turns come before it.
	TerminalPriority = 4
	// ClosedAnswer marks the closing message as answered so the order retires.
	ClosedAnswer = "N/A"
)

// Customer-facing texts.
const (
	SeedQuestion           = "Hi! We'd love to hear your thoughts — how was your experience at our restaurant?"
	AlreadyReceivedMessage = "We've already received all your responses. Thank you!"
	ThankYouMessage        = "Thank you for your responses."
)

// Company is a merchant with its own chat channel.
type Company struct {
	ID               uuid.UUID
	Name             string
	PhoneNumber      string
	InstanceID       string
	APIToken         string
	WebhookTokenHash string
	CreatedAt        time.Time
}

// LineItem is one purchased item as recorded at order time.
type LineItem struct {
	Item         string  `json:"item"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	SpecialNotes string  `json:"specialNotes,omitempty"`
}

// Order is a purchase eligible for a review conversation.
type Order struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	Number        string
	BranchName    string
	PlacedAt      time.Time
	CustomerName  string
	CustomerPhone string
	Details       string
	LineItems     []LineItem
	CreatedAt     time.Time
}

// Question is one entry in an order's ledger.
type Question struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	Text            string
	Priority        int
	Answer          *string
	AudioKey        *string
	AnswerMessageID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsAnswered reports whether the question carries answer text or an audio reference.
func (q Question) IsAnswered() bool {
	return nonEmpty(q.Answer) || nonEmpty(q.AudioKey)
}

// AnswerText returns the answer text, or "" for audio-only and unanswered questions.
func (q Question) AnswerText() string {
	if q.Answer == nil {
		return ""
	}
	return *q.Answer
}

// Exchange is an answered question as seen by the question synthesizer.
type Exchange struct {
	Question string
	Answer   string
}

// OrderWithQuestions pairs an order with its ledger, as read by the sweep.
type OrderWithQuestions struct {
	Order     Order
	Questions []Question
}

// Analytics is the sentiment summary stored for a retired order.
type Analytics struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Sentiment string
	Emotions  []string
	Keywords  []string
	Products  []string
	CreatedAt time.Time
}

func nonEmpty(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
