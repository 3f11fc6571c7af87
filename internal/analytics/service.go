// Package analytics summarises finished feedback conversations into sentiment,
// emotions, keywords and products for reporting.
package analytics

import (
	"context"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/platform/logger"
	"servewell_backend/platform/metrics"

	"github.com/google/uuid"
)

const (
	defaultBatchSize = 50

	// maxAnalysisAttempts retires a transcript the analyzer keeps rejecting.
	maxAnalysisAttempts = 3
)

// TranscriptStore is the persistence the sweep needs.
type TranscriptStore interface {
	PendingTranscripts(ctx context.Context, limit, maxAttempts int) ([]Transcript, error)
	SaveAnalytics(ctx context.Context, a domain.Analytics) (bool, error)
	RecordFailure(ctx context.Context, orderID uuid.UUID, cause error) error
}

// ConversationAnalyzer turns a transcript into an Analysis.
type ConversationAnalyzer interface {
	Analyze(ctx context.Context, conversation string) (Analysis, error)
}

// Service runs the periodic sentiment sweep.
type Service struct {
	store     TranscriptStore
	analyzer  ConversationAnalyzer
	log       *logger.Logger
	batchSize int
}

func NewService(store TranscriptStore, analyzer ConversationAnalyzer, log *logger.Logger) *Service {
	return &Service{store: store, analyzer: analyzer, log: log, batchSize: defaultBatchSize}
}

// Sweep analyses one batch of finished conversations and returns how many
// analytics rows it wrote. A failed analysis is counted and retried on a later
// run until the order runs out of attempts.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	pending, err := s.store.PendingTranscripts(ctx, s.batchSize, maxAnalysisAttempts)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, t := range pending {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}
		log := s.log.WithContext(ctx).WithOrder(t.OrderID.String())

		analysis, err := s.analyzer.Analyze(ctx, BuildConversation(t.Questions))
		if err != nil {
			log.CollaboratorFailure("analyzer", err)
			metrics.RecordCollaboratorFailure(ctx, "analyzer")
			if err := s.store.RecordFailure(ctx, t.OrderID, err); err != nil {
				return written, err
			}
			continue
		}

		ok, err := s.store.SaveAnalytics(ctx, domain.Analytics{
			OrderID:   t.OrderID,
			Sentiment: analysis.Sentiment,
			Emotions:  analysis.Emotions,
			Keywords:  analysis.Keywords,
			Products:  analysis.Products,
		})
		if err != nil {
			return written, err
		}
		if ok {
			written++
			metrics.RecordAnalysis(ctx, analysis.Sentiment)
			log.Info("analytics created", "sentiment", analysis.Sentiment)
		}
	}
	return written, nil
}
