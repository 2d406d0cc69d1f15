package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// Type distinguishes the kinds of canonical entities the platform tracks.
type Type string

const (
	TypePerson       Type = "person"
	TypeOrganization Type = "organization"
	TypeAddress      Type = "address"
)

// Entity is a canonical, deduplicated person, organization or address.
//
// Invariant: customer-provided entities always carry a tenant ID;
// paid-external entities have a nil tenant ID and are shared across tenants.
type Entity struct {
	ID         uuid.UUID         `json:"id"`
	Type       Type              `json:"type"`
	TenantID   *uuid.UUID        `json:"tenant_id,omitempty"`
	DataOrigin values.DataOrigin `json:"data_origin"`

	// CanonicalIdentifiers maps identifier type to value. Values are
	// encrypted at rest by the repository layer.
	CanonicalIdentifiers map[IdentifierType]string `json:"canonical_identifiers"`

	// Superseded is set when this entity was absorbed into another by a
	// merge. SupersededBy points at the canonical survivor.
	Superseded   bool       `json:"superseded"`
	SupersededBy *uuid.UUID `json:"superseded_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// New creates an entity, enforcing the origin/tenant invariant.
func New(t Type, origin values.DataOrigin, tenantID *uuid.UUID) (*Entity, error) {
	switch origin {
	case values.OriginCustomerProvided:
		if tenantID == nil {
			return nil, errors.NewValidationError("missing_tenant_id",
				"customer-provided entities require a tenant")
		}
	case values.OriginPaidExternal:
		if tenantID != nil {
			return nil, errors.NewValidationError("unexpected_tenant_id",
				"paid-external entities are shared and carry no tenant")
		}
	default:
		return nil, errors.NewValidationError("invalid_data_origin",
			"data origin must be customer_provided or paid_external")
	}
	return &Entity{
		ID:                   uuid.Must(uuid.NewV7()),
		Type:                 t,
		TenantID:             tenantID,
		DataOrigin:           origin,
		CanonicalIdentifiers: make(map[IdentifierType]string),
		CreatedAt:            time.Now().UTC(),
	}, nil
}

// IsOlderThan orders entities by UUIDv7 creation order. Merge survivors are
// always the older entity.
func (e *Entity) IsOlderThan(other *Entity) bool {
	return compareUUIDv7(e.ID, other.ID) < 0
}

func compareUUIDv7(a, b uuid.UUID) int {
	for i := 0; i < len(a); i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}
