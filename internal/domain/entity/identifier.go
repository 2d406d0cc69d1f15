package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// IdentifierType names the kinds of identifying facts attached to entities.
type IdentifierType string

const (
	IdentifierSSN           IdentifierType = "ssn"
	IdentifierEIN           IdentifierType = "ein"
	IdentifierPassport      IdentifierType = "passport"
	IdentifierDriverLicense IdentifierType = "driver_license"
	IdentifierFullName      IdentifierType = "full_name"
	IdentifierDOB           IdentifierType = "dob"
	IdentifierAddress       IdentifierType = "address"
	IdentifierEmail         IdentifierType = "email"
	IdentifierPhone         IdentifierType = "phone"
)

// canonicalTypes are the identifier types strong enough for exact matching.
var canonicalTypes = map[IdentifierType]bool{
	IdentifierSSN:      true,
	IdentifierEIN:      true,
	IdentifierPassport: true,
}

// IsCanonical reports whether the type participates in exact-match resolution.
func (t IdentifierType) IsCanonical() bool {
	return canonicalTypes[t]
}

// Identifier is an append-only fact about an entity. Identifiers are never
// mutated or deleted; superseding values are added and older ones flagged.
type Identifier struct {
	ID           uuid.UUID          `json:"id"`
	EntityID     uuid.UUID          `json:"entity_id"`
	Type         IdentifierType     `json:"type"`
	Value        string             `json:"value"` // encrypted at rest
	Confidence   values.Confidence  `json:"confidence"`
	Source       string             `json:"source"`
	Superseded   bool               `json:"superseded"`
	DiscoveredAt time.Time          `json:"discovered_at"`
}

// NewIdentifier mints an append-only identifier fact.
func NewIdentifier(entityID uuid.UUID, t IdentifierType, value, source string, conf values.Confidence) *Identifier {
	return &Identifier{
		ID:           uuid.Must(uuid.NewV7()),
		EntityID:     entityID,
		Type:         t,
		Value:        value,
		Confidence:   conf,
		Source:       source,
		DiscoveredAt: time.Now().UTC(),
	}
}
