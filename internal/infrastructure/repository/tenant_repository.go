package repository

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/tenant"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

type tenantRepository struct {
	db *pgxpool.Pool
}

// NewTenantRepository creates a PostgreSQL-backed tenant store.
func NewTenantRepository(db *pgxpool.Pool) tenant.Repository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	query := `
		INSERT INTO tenants (id, slug, name, active, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, t.ID, t.Slug, t.Name, t.Active, t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return errors.NewValidationError("duplicate_tenant_slug",
				fmt.Sprintf("tenant slug %q already exists", t.Slug))
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

func (r *tenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	query := `
		SELECT id, slug, name, active, created_at
		FROM tenants WHERE id = $1`

	t := &tenant.Tenant{}
	err := r.db.QueryRow(ctx, query, id).Scan(&t.ID, &t.Slug, &t.Name, &t.Active, &t.CreatedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NewNotFoundError("tenant")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

func (r *tenantRepository) GetBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	query := `
		SELECT id, slug, name, active, created_at
		FROM tenants WHERE slug = $1`

	t := &tenant.Tenant{}
	err := r.db.QueryRow(ctx, query, slug).Scan(&t.ID, &t.Slug, &t.Name, &t.Active, &t.CreatedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NewTenantNotFoundError(slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant by slug: %w", err)
	}
	return t, nil
}

func (r *tenantRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE tenants SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("tenant")
	}
	return nil
}
