package repository

import (
	"context"
	"errors"
	"fmt"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const companyColumns = `id, name, phone_number, instance_id, api_token, webhook_token_hash, created_at`

func scanCompany(row pgx.Row) (domain.Company, error) {
	var c domain.Company
	err := row.Scan(&c.ID, &c.Name, &c.PhoneNumber, &c.InstanceID, &c.APIToken, &c.WebhookTokenHash, &c.CreatedAt)
	return c, err
}

func (r *Repository) companyWhere(ctx context.Context, op, where string, arg any) (domain.Company, error) {
	c, err := scanCompany(r.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Company{}, apperr.NotFound(companyNotFoundMsg).WithOp(op)
		}
		return domain.Company{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// CompanyByChannel finds the company owning a WAAPI instance.
func (r *Repository) CompanyByChannel(ctx context.Context, instanceID string) (domain.Company, error) {
	return r.companyWhere(ctx, "CompanyByChannel", "instance_id = $1", instanceID)
}

func (r *Repository) CompanyByID(ctx context.Context, id uuid.UUID) (domain.Company, error) {
	return r.companyWhere(ctx, "CompanyByID", "id = $1", id)
}

// CompanyByTokenHash finds the company whose webhook token hashes to hash.
func (r *Repository) CompanyByTokenHash(ctx context.Context, hash string) (domain.Company, error) {
	return r.companyWhere(ctx, "CompanyByTokenHash", "webhook_token_hash = $1", hash)
}

func (r *Repository) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var companies []domain.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// UpsertCompany creates or updates a company keyed by its WAAPI instance.
func (r *Repository) UpsertCompany(ctx context.Context, c domain.Company) (domain.Company, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO companies (name, phone_number, instance_id, api_token, webhook_token_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (instance_id) DO UPDATE SET
			name = EXCLUDED.name,
			phone_number = EXCLUDED.phone_number,
			api_token = EXCLUDED.api_token,
			webhook_token_hash = EXCLUDED.webhook_token_hash
		RETURNING `+companyColumns,
		c.Name, c.PhoneNumber, c.InstanceID, c.APIToken, c.WebhookTokenHash)

	saved, err := scanCompany(row)
	if err != nil {
		return domain.Company{}, fmt.Errorf("upsert company: %w", err)
	}
	return saved, nil
}
