package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const orderColumns = `o.id, o.company_id, o.number, o.branch_name, o.placed_at, o.customer_name,
	o.customer_phone, o.details, o.line_items, o.created_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o         domain.Order
		lineItems []byte
	)
	err := row.Scan(&o.ID, &o.CompanyID, &o.Number, &o.BranchName, &o.PlacedAt, &o.CustomerName,
		&o.CustomerPhone, &o.Details, &lineItems, &o.CreatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if len(lineItems) > 0 {
		if err := json.Unmarshal(lineItems, &o.LineItems); err != nil {
			return domain.Order{}, fmt.Errorf("decode line items of order %s: %w", o.ID, err)
		}
	}
	return o, nil
}

// findOpenOrderQuery ranks the sender's orders in three tiers: awaiting an
// answer (oldest first), never prompted (oldest first), complete (newest first).
const findOpenOrderQuery = `
	WITH progress AS (
		SELECT q.order_id,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE ` + answeredPredicate + `) AS answered
		FROM questions q
		JOIN orders o ON o.id = q.order_id
		WHERE o.company_id = $1 AND o.customer_phone = $2
		GROUP BY q.order_id
	)
	SELECT ` + orderColumns + `
	FROM orders o
	LEFT JOIN progress p ON p.order_id = o.id
	WHERE o.company_id = $1 AND o.customer_phone = $2
	ORDER BY
		CASE
			WHEN COALESCE(p.total, 0) > COALESCE(p.answered, 0) THEN 0
			WHEN p.total IS NULL THEN 1
			ELSE 2
		END,
		CASE WHEN p.total IS NOT NULL AND p.total = p.answered THEN NULL ELSE o.placed_at END ASC,
		o.placed_at DESC
	LIMIT 1`

// FindOpenOrder picks the order a customer's message belongs to.
func (r *Repository) FindOpenOrder(ctx context.Context, companyID uuid.UUID, phone string) (domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, findOpenOrderQuery, companyID, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrNoOpenOrder
		}
		return domain.Order{}, fmt.Errorf("find open order: %w", err)
	}
	return o, nil
}

func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, apperr.NotFound(orderNotFoundMsg).WithOp("GetOrder")
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// CreateOrder inserts an order. A duplicate order number for the company is a conflict.
func (r *Repository) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	items := order.LineItems
	if items == nil {
		items = []domain.LineItem{}
	}
	lineItems, err := json.Marshal(items)
	if err != nil {
		return domain.Order{}, fmt.Errorf("encode line items: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO orders AS o (company_id, number, branch_name, placed_at, customer_name, customer_phone, details, line_items)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+orderColumns,
		order.CompanyID, order.Number, order.BranchName, order.PlacedAt, order.CustomerName,
		order.CustomerPhone, order.Details, lineItems)

	saved, err := scanOrder(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Order{}, apperr.Conflict(fmt.Sprintf("order %s already exists", order.Number)).WithOp("CreateOrder")
		}
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	return saved, nil
}

// SweepSnapshot reads the company's due orders and their questions in one
// repeatable-read transaction.
func (r *Repository) SweepSnapshot(ctx context.Context, companyID uuid.UUID, placedBefore time.Time) ([]domain.OrderWithQuestions, error) {
	tx, err := r.pool.BeginTx(ctx, snapshotTx)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.company_id = $1 AND o.placed_at < $2
		ORDER BY o.placed_at ASC`, companyID, placedBefore)
	if err != nil {
		return nil, fmt.Errorf("query due orders: %w", err)
	}

	var (
		entries []domain.OrderWithQuestions
		ids     []uuid.UUID
		index   = make(map[uuid.UUID]int)
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		index[o.ID] = len(entries)
		ids = append(ids, o.ID)
		entries = append(entries, domain.OrderWithQuestions{Order: o})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due orders: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	qrows, err := tx.Query(ctx, `SELECT `+questionColumns+` FROM questions q WHERE q.order_id = ANY($1) ORDER BY q.order_id, q.priority`, ids)
	if err != nil {
		return nil, fmt.Errorf("query snapshot questions: %w", err)
	}
	defer qrows.Close()
	for qrows.Next() {
		q, err := scanQuestion(qrows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		i := index[q.OrderID]
		entries[i].Questions = append(entries[i].Questions, q)
	}
	if err := qrows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot questions: %w", err)
	}
	return entries, nil
}
