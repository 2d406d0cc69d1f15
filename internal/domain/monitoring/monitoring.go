package monitoring

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// VigilanceLevel sets the ongoing monitoring cadence for a subject.
type VigilanceLevel int

const (
	VigilanceV0 VigilanceLevel = iota // one-shot only, no ongoing checks
	VigilanceV1                       // annual
	VigilanceV2                       // monthly
	VigilanceV3                       // every 15 days
)

// Interval returns the re-check cadence, or 0 for V0.
func (v VigilanceLevel) Interval() time.Duration {
	switch v {
	case VigilanceV1:
		return 365 * 24 * time.Hour
	case VigilanceV2:
		return 30 * 24 * time.Hour
	case VigilanceV3:
		return 15 * 24 * time.Hour
	default:
		return 0
	}
}

func (v VigilanceLevel) String() string {
	switch v {
	case VigilanceV0:
		return "v0"
	case VigilanceV1:
		return "v1"
	case VigilanceV2:
		return "v2"
	case VigilanceV3:
		return "v3"
	default:
		return "unknown"
	}
}

// Subject is a monitored person and their schedule state.
type Subject struct {
	ID           uuid.UUID           `json:"id"`
	TenantID     uuid.UUID           `json:"tenant_id"`
	EntityID     uuid.UUID           `json:"entity_id"`
	Vigilance    VigilanceLevel      `json:"vigilance_level"`
	RoleCategory values.RoleCategory `json:"role_category"`
	Locale       values.Locale       `json:"locale"`
	Tier         values.ServiceTier  `json:"tier"`
	NextCheckAt  time.Time           `json:"next_check_at"`
	Paused       bool                `json:"paused"`
}

// DeltaKind classifies one difference between consecutive profiles.
type DeltaKind string

const (
	DeltaNewFinding      DeltaKind = "new_finding"
	DeltaChangedFinding  DeltaKind = "changed_finding"
	DeltaResolvedFinding DeltaKind = "resolved_finding"
	DeltaRiskScore       DeltaKind = "risk_score"
	DeltaNewConnection   DeltaKind = "new_connection"
	DeltaLostConnection  DeltaKind = "lost_connection"
)

// Direction marks whether a delta worsened or improved the picture.
// Positive deltas never generate alerts.
type Direction string

const (
	DirectionNegative Direction = "negative"
	DirectionPositive Direction = "positive"
)

// Delta is one detected difference.
type Delta struct {
	Kind        DeltaKind       `json:"kind"`
	Severity    values.Severity `json:"severity"`
	Direction   Direction       `json:"direction"`
	Description string          `json:"description"`
}

// DeltaReport is the full diff between the last two profile versions.
type DeltaReport struct {
	SubjectID     uuid.UUID `json:"subject_id"`
	Deltas        []Delta   `json:"deltas"`
	PreviousScore float64   `json:"previous_score"`
	CurrentScore  float64   `json:"current_score"`
	Escalation    bool      `json:"escalation"`
}

// Alert is a threshold-gated notification produced from a delta report.
type Alert struct {
	ID        uuid.UUID       `json:"id"`
	SubjectID uuid.UUID       `json:"subject_id"`
	TenantID  uuid.UUID       `json:"tenant_id"`
	Severity  values.Severity `json:"severity"`
	Message   string          `json:"message"`
	Deltas    []Delta         `json:"deltas"`
	Resolved  bool            `json:"resolved"`
	CreatedAt time.Time       `json:"created_at"`
}

// Channel delivers alerts. Email, webhook and SMS channels are external
// collaborators implementing this interface.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, a *Alert) error
}

// SubjectRepository persists monitored subjects.
type SubjectRepository interface {
	Upsert(ctx context.Context, s *Subject) error
	Get(ctx context.Context, id uuid.UUID) (*Subject, error)
	// Due returns unpaused subjects with next_check_at <= now.
	Due(ctx context.Context, now time.Time) ([]*Subject, error)
}

// AlertRepository persists alerts for escalation-window queries.
type AlertRepository interface {
	Insert(ctx context.Context, a *Alert) error
	// UnresolvedSince counts unresolved alerts for the subject created in
	// the trailing window.
	UnresolvedSince(ctx context.Context, subjectID uuid.UUID, since time.Time) (int, error)
}
