package compliance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists rule records. Rules are soft-deleted by deactivation;
// audit trails need the historical rows.
type Repository interface {
	Save(ctx context.Context, r *RuleRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*RuleRecord, error)

	// Active returns effective rules visible to the tenant at the given
	// instant: platform-wide rules plus the tenant's own, priority order.
	Active(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]*RuleRecord, error)

	Deactivate(ctx context.Context, id uuid.UUID) error
}
