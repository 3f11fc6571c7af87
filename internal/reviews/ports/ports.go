// Package ports defines what the conversation engine needs from the outside
// world. Adapters in other packages implement these; the composition root wires
// them into the service.
package ports

import (
	"context"
	"time"

	"servewell_backend/internal/reviews/domain"

	"github.com/google/uuid"
)

// NewQuestion is a ledger entry to append.
type NewQuestion struct {
	OrderID  uuid.UUID
	Text     string
	Priority int
	Answer   *string
}

// AnswerUpdate is applied to a question only while it is still unanswered.
type AnswerUpdate struct {
	Answer    *string
	AudioKey  *string
	MessageID string
}

// Store is the persistent record of companies, orders and question ledgers.
type Store interface {
	// CompanyByChannel resolves the company owning a chat channel. Missing
	// companies return an apperr NotFound.
	CompanyByChannel(ctx context.Context, instanceID string) (domain.Company, error)
	CompanyByID(ctx context.Context, id uuid.UUID) (domain.Company, error)
	ListCompanies(ctx context.Context) ([]domain.Company, error)

	// FindOpenOrder returns the order a customer's message belongs to, or
	// domain.ErrNoOpenOrder.
	FindOpenOrder(ctx context.Context, companyID uuid.UUID, phone string) (domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error)

	// QuestionsFor returns the ledger in ascending priority.
	QuestionsFor(ctx context.Context, orderID uuid.UUID) ([]domain.Question, error)
	// AppendQuestion fails with domain.ErrDuplicatePriority when the slot is taken.
	AppendQuestion(ctx context.Context, q NewQuestion) (domain.Question, error)
	// UpdateAnswer fails with domain.ErrAlreadyAnswered when the question
	// already has an answer or audio.
	UpdateAnswer(ctx context.Context, questionID uuid.UUID, update AnswerUpdate) error

	// SweepSnapshot reads, in one consistent snapshot, a company's orders placed
	// before the cutoff (oldest first) together with their questions.
	SweepSnapshot(ctx context.Context, companyID uuid.UUID, placedBefore time.Time) ([]domain.OrderWithQuestions, error)
}

// Transcriber turns a voice note into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mime, language string) (string, error)
}

// Synthesizer writes the next message of a conversation. An empty string with
// a nil error means there is nothing more to ask.
type Synthesizer interface {
	NextQuestion(ctx context.Context, history []domain.Exchange, turn int) (string, error)
	ClosingMessage(ctx context.Context, history []domain.Exchange) (string, error)
}

// Notifier delivers a text message to a customer over a company's channel.
type Notifier interface {
	Send(ctx context.Context, channelID, token, phone, text string) error
}

// AudioStore keeps the raw voice notes referenced by answered questions.
type AudioStore interface {
	PutAudio(ctx context.Context, key, mime string, data []byte) error
	DeleteAudio(ctx context.Context, key string) error
}
