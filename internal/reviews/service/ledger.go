// Package service runs feedback conversations: it records answers, asks the
// next question and sweeps orders that are due for a review.
package service

import (
	"context"
	"fmt"
	"strings"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/internal/reviews/ports"

	"github.com/google/uuid"
)

// Ledger is the append-only question record of an order.
type Ledger struct {
	store ports.Store
}

// NewLedger creates a ledger over store.
func NewLedger(store ports.Store) *Ledger {
	return &Ledger{store: store}
}

// Questions returns the order's questions in ascending priority.
func (l *Ledger) Questions(ctx context.Context, orderID uuid.UUID) ([]domain.Question, error) {
	questions, err := l.store.QuestionsFor(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load questions for order %s: %w", orderID, err)
	}
	domain.SortByPriority(questions)
	return questions, nil
}

// Append adds a question at priority. A non-nil answer stores it already answered.
func (l *Ledger) Append(ctx context.Context, orderID uuid.UUID, text string, priority int, answer *string) (domain.Question, error) {
	if !domain.ValidPriority(priority) {
		return domain.Question{}, fmt.Errorf("%w: %d", domain.ErrPriorityOutOfRange, priority)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Question{}, fmt.Errorf("append question at priority %d: empty text", priority)
	}

	q, err := l.store.AppendQuestion(ctx, ports.NewQuestion{
		OrderID:  orderID,
		Text:     text,
		Priority: priority,
		Answer:   answer,
	})
	if err != nil {
		return domain.Question{}, fmt.Errorf("append question at priority %d: %w", priority, err)
	}
	return q, nil
}
