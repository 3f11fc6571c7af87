// Package repository is the Postgres store behind the conversation engine.
package repository

import (
	"servewell_backend/internal/reviews/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	companyNotFoundMsg = "company not found"
	orderNotFoundMsg   = "order not found"

	uniqueViolation    = "23505"
	priorityConstraint = "uq_questions_order_priority"
)

// answeredPredicate matches questions carrying answer text or an audio reference.
const answeredPredicate = `(COALESCE(btrim(q.answer), '') <> '' OR COALESCE(btrim(q.audio_key), '') <> '')`

// Repository provides database operations for companies, orders and questions.
type Repository struct {
	pool *pgxpool.Pool
}

var _ ports.Store = (*Repository)(nil)

// New creates a new reviews repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// snapshotTx is a read-only transaction that sees one consistent snapshot.
var snapshotTx = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
