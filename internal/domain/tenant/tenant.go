package tenant

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Tenant is an isolated customer of the platform. Deactivated tenants reject
// new screenings while their historical data stays queryable.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTenant validates the slug and mints a UUIDv7 identifier.
func NewTenant(slug, name string) (*Tenant, error) {
	if !slugPattern.MatchString(slug) {
		return nil, errors.NewValidationError("invalid_tenant_slug",
			"slug must be lowercase alphanumeric with hyphens")
	}
	if name == "" {
		return nil, errors.NewValidationError("missing_tenant_name", "tenant name is required")
	}
	return &Tenant{
		ID:        uuid.Must(uuid.NewV7()),
		Slug:      slug,
		Name:      name,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EnsureActive gates new work.
func (t *Tenant) EnsureActive() error {
	if !t.Active {
		return errors.NewTenantInactiveError(t.Slug)
	}
	return nil
}

// Repository is the persistence contract. Slug uniqueness is enforced by the
// store.
type Repository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}
