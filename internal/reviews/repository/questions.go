package repository

import (
	"context"
	"errors"
	"fmt"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/internal/reviews/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const questionColumns = `q.id, q.order_id, q.question, q.priority, q.answer, q.audio_key, q.answer_message_id, q.created_at, q.updated_at`

const appendQuestionQuery = `
	INSERT INTO questions AS q (order_id, question, priority, answer)
	VALUES ($1, $2, $3, $4)
	RETURNING ` + questionColumns

// updateAnswerQuery only touches a question that is still unanswered.
const updateAnswerQuery = `
	UPDATE questions q
	SET answer = $2, audio_key = $3, answer_message_id = $4, updated_at = now()
	WHERE q.id = $1 AND NOT ` + answeredPredicate

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q        domain.Question
		priority int16
	)
	err := row.Scan(&q.ID, &q.OrderID, &q.Text, &priority, &q.Answer, &q.AudioKey, &q.AnswerMessageID, &q.CreatedAt, &q.UpdatedAt)
	q.Priority = int(priority)
	return q, err
}

// QuestionsFor returns the order's ledger in ascending priority.
func (r *Repository) QuestionsFor(ctx context.Context, orderID uuid.UUID) ([]domain.Question, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+questionColumns+` FROM questions q WHERE q.order_id = $1 ORDER BY q.priority`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// AppendQuestion inserts a ledger entry; the (order, priority) unique
// constraint turns a taken slot into domain.ErrDuplicatePriority.
func (r *Repository) AppendQuestion(ctx context.Context, nq ports.NewQuestion) (domain.Question, error) {
	row := r.pool.QueryRow(ctx, appendQuestionQuery,
		nq.OrderID, nq.Text, int16(nq.Priority), nq.Answer)

	q, err := scanQuestion(row)
	if err != nil {
		if isPriorityConflict(err) {
			return domain.Question{}, domain.ErrDuplicatePriority
		}
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return q, nil
}

// UpdateAnswer answers a question only while it has neither answer nor audio.
func (r *Repository) UpdateAnswer(ctx context.Context, questionID uuid.UUID, u ports.AnswerUpdate) error {
	var messageID *string
	if u.MessageID != "" {
		messageID = &u.MessageID
	}

	tag, err := r.pool.Exec(ctx, updateAnswerQuery, questionID, u.Answer, u.AudioKey, messageID)
	if err != nil {
		return fmt.Errorf("update answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyAnswered
	}
	return nil
}

// isPriorityConflict reports whether err is the (order, priority) unique violation.
func isPriorityConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == priorityConstraint
}
