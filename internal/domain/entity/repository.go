package entity

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists entities, identifiers and relations. The store enforces
// uniqueness of canonical identifier → entity.
type Repository interface {
	Create(ctx context.Context, e *Entity) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entity, error)

	// FindByCanonicalIdentifier returns the non-superseded entity owning
	// the identifier, or nil when none exists.
	FindByCanonicalIdentifier(ctx context.Context, t IdentifierType, value string) (*Entity, error)

	// AddIdentifier appends an identifier fact. Identifiers are never
	// updated or deleted through this interface.
	AddIdentifier(ctx context.Context, id *Identifier) error
	ListIdentifiers(ctx context.Context, entityID uuid.UUID) ([]*Identifier, error)
	MarkIdentifierSuperseded(ctx context.Context, identifierID uuid.UUID) error

	AddRelation(ctx context.Context, r *Relation) error
	// ListRelations returns edges touching the entity in either direction.
	ListRelations(ctx context.Context, entityID uuid.UUID) ([]*Relation, error)

	// Merge re-points relations and profiles from absorbed to survivor and
	// marks absorbed superseded, all in one transaction.
	Merge(ctx context.Context, survivorID, absorbedID uuid.UUID) error

	// Candidates returns non-superseded entities of the given type for
	// fuzzy matching, scoped to tenant-visible data.
	Candidates(ctx context.Context, t Type, tenantID uuid.UUID) ([]*Entity, error)
}

// ProfileRepository persists append-only profile snapshots with monotone
// versions per entity.
type ProfileRepository interface {
	// NextVersion allocates version latest+1 and stores the profile.
	Create(ctx context.Context, p *Profile) error
	Latest(ctx context.Context, entityID uuid.UUID) (*Profile, error)
	// LastTwo returns the newest and the one before it for delta detection.
	LastTwo(ctx context.Context, entityID uuid.UUID) (current, previous *Profile, err error)
}
