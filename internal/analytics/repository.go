package analytics

import (
	"context"
	"fmt"

	"servewell_backend/internal/reviews/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transcript is a retired order's ledger waiting for analysis.
type Transcript struct {
	OrderID   uuid.UUID
	Questions []domain.Question
}

// Repository reads finished conversations and stores their analytics.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// pendingTranscriptsQuery selects finished, unanalysed orders that have not
// exhausted their attempts. Fewest attempts go first, then oldest placement.
const pendingTranscriptsQuery = `
	SELECT o.id
	FROM orders o
	LEFT JOIN analytics_attempts aa ON aa.order_id = o.id
	WHERE EXISTS (SELECT 1 FROM questions q WHERE q.order_id = o.id)
	  AND NOT EXISTS (
		SELECT 1 FROM questions q
		WHERE q.order_id = o.id
		  AND COALESCE(btrim(q.answer), '') = ''
		  AND COALESCE(btrim(q.audio_key), '') = ''
	  )
	  AND NOT EXISTS (SELECT 1 FROM analytics a WHERE a.order_id = o.id)
	  AND COALESCE(aa.attempts, 0) < $2
	ORDER BY COALESCE(aa.attempts, 0) ASC, o.placed_at ASC, o.id
	LIMIT $1`

const recordFailureQuery = `
	INSERT INTO analytics_attempts (order_id, attempts, last_error, last_attempt_at)
	VALUES ($1, 1, $2, now())
	ON CONFLICT (order_id) DO UPDATE
	SET attempts = analytics_attempts.attempts + 1,
		last_error = EXCLUDED.last_error,
		last_attempt_at = now()`

// PendingTranscripts returns up to limit finished conversations with no
// analytics row and fewer than maxAttempts failed analyses.
func (r *Repository) PendingTranscripts(ctx context.Context, limit, maxAttempts int) ([]Transcript, error) {
	rows, err := r.pool.Query(ctx, pendingTranscriptsQuery, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("query pending transcripts: %w", err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	qrows, err := r.pool.Query(ctx, `
		SELECT order_id, question, priority, answer, audio_key
		FROM questions
		WHERE order_id = ANY($1)
		ORDER BY order_id, priority`, ids)
	if err != nil {
		return nil, fmt.Errorf("query transcript questions: %w", err)
	}
	defer qrows.Close()

	byOrder := make(map[uuid.UUID][]domain.Question, len(ids))
	for qrows.Next() {
		var (
			q        domain.Question
			priority int16
		)
		if err := qrows.Scan(&q.OrderID, &q.Text, &priority, &q.Answer, &q.AudioKey); err != nil {
			return nil, fmt.Errorf("scan transcript question: %w", err)
		}
		q.Priority = int(priority)
		byOrder[q.OrderID] = append(byOrder[q.OrderID], q)
	}
	if err := qrows.Err(); err != nil {
		return nil, err
	}

	out := make([]Transcript, 0, len(ids))
	for _, id := range ids {
		out = append(out, Transcript{OrderID: id, Questions: byOrder[id]})
	}
	return out, nil
}

// SaveAnalytics inserts the row unless another sweep got there first. It
// reports whether a row was written.
func (r *Repository) SaveAnalytics(ctx context.Context, a domain.Analytics) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO analytics (order_id, sentiment_label, emotions, keywords, products)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO NOTHING`,
		a.OrderID, a.Sentiment, nonNil(a.Emotions), nonNil(a.Keywords), nonNil(a.Products))
	if err != nil {
		return false, fmt.Errorf("insert analytics: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordFailure counts a failed analysis of the order.
func (r *Repository) RecordFailure(ctx context.Context, orderID uuid.UUID, cause error) error {
	if _, err := r.pool.Exec(ctx, recordFailureQuery, orderID, cause.Error()); err != nil {
		return fmt.Errorf("record analysis failure: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
