package investigation

import (
	"time"

	"github.com/google/uuid"

	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// Category is the fixed risk classification set.
type Category string

const (
	CategoryCriminal     Category = "criminal"
	CategoryFinancial    Category = "financial"
	CategoryRegulatory   Category = "regulatory"
	CategoryReputation   Category = "reputation"
	CategoryVerification Category = "verification"
	CategoryBehavioral   Category = "behavioral"
	CategoryNetwork      Category = "network"
)

// AllCategories in scoring order.
var AllCategories = []Category{
	CategoryCriminal, CategoryFinancial, CategoryRegulatory,
	CategoryReputation, CategoryVerification, CategoryBehavioral,
	CategoryNetwork,
}

// Finding is an adverse (or notable) item extracted from accumulated facts.
type Finding struct {
	ID              uuid.UUID         `json:"id"`
	Category        Category          `json:"category"`
	SubCategory     string            `json:"sub_category,omitempty"`
	Severity        values.Severity   `json:"severity"`
	Confidence      values.Confidence `json:"confidence"`
	RelevanceToRole float64           `json:"relevance_to_role"`
	Summary         string            `json:"summary"`
	Details         string            `json:"details,omitempty"`
	Corroborated    bool              `json:"corroborated"`
	Sources         []string          `json:"sources,omitempty"`
	// DiscoveredAt is when the underlying event occurred, when known; it
	// drives the recency factor in scoring.
	DiscoveredAt *time.Time `json:"discovered_at,omitempty"`
}

// NewFinding mints a finding with a UUIDv7 ID.
func NewFinding(cat Category, severity values.Severity, summary string) *Finding {
	return &Finding{
		ID:       uuid.Must(uuid.NewV7()),
		Category: cat,
		Severity: severity,
		Summary:  summary,
	}
}

// Inconsistency is a contradiction between new facts and the knowledge base.
type InconsistencyKind string

const (
	InconsistencyDateMinor           InconsistencyKind = "date_minor"
	InconsistencyEmploymentGapHidden InconsistencyKind = "employment_gap_hidden"
	InconsistencyCredentialInflation InconsistencyKind = "credential_inflation"
	InconsistencyIdentityMismatch    InconsistencyKind = "identity_mismatch"
	InconsistencyTimelineImpossible  InconsistencyKind = "timeline_impossible"
)

type Inconsistency struct {
	Kind        InconsistencyKind `json:"kind"`
	InfoType    InformationType   `json:"info_type"`
	Description string            `json:"description"`
	// Directional marks inconsistencies that consistently favor the
	// subject; the deception scorer weighs these heavier.
	Directional bool `json:"directional"`
}

// DiscoveredEntity is a person or organization surfaced by network checks.
type DiscoveredEntity struct {
	Name       string            `json:"name"`
	Relation   string            `json:"relation"`
	Degree     int               `json:"degree"`
	Confidence values.Confidence `json:"confidence"`
	Attributes map[string]string `json:"attributes,omitempty"`
}
