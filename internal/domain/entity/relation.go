package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// RelationType classifies an edge between two entities. The type drives risk
// propagation factors in the connection analyzer.
type RelationType string

const (
	RelationOwnership   RelationType = "ownership"
	RelationFinancial   RelationType = "financial"
	RelationBusiness    RelationType = "business"
	RelationPolitical   RelationType = "political"
	RelationFamily      RelationType = "family"
	RelationLegal       RelationType = "legal"
	RelationEmployment  RelationType = "employment"
	RelationSocial      RelationType = "social"
	RelationEducational RelationType = "educational"
)

// ConnectionStrength qualifies how firmly the relation is established.
type ConnectionStrength string

const (
	StrengthDirect ConnectionStrength = "direct"
	StrengthWeak   ConnectionStrength = "weak"
)

// Relation is a directed edge in the entity graph. The graph is walked in
// both directions for neighbor discovery; cycles are expected.
type Relation struct {
	FromID       uuid.UUID          `json:"from_id"`
	ToID         uuid.UUID          `json:"to_id"`
	Type         RelationType       `json:"type"`
	Strength     ConnectionStrength `json:"strength"`
	Confidence   values.Confidence  `json:"confidence"`
	Current      bool               `json:"current"`
	DiscoveredAt time.Time          `json:"discovered_at"`
}
