package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
)

// EventType classifies audit events.
type EventType string

const (
	EventScreeningStarted   EventType = "screening.started"
	EventScreeningCompleted EventType = "screening.completed"
	EventScreeningFailed    EventType = "screening.failed"
	EventPhaseCompleted     EventType = "screening.phase_completed"
	EventComplianceDecision EventType = "compliance.decision"
	EventComplianceBlocked  EventType = "compliance.blocked"
	EventProviderCall       EventType = "provider.call"
	EventProviderFailover   EventType = "provider.failover"
	EventEntityCreated      EventType = "entity.created"
	EventEntityMerged       EventType = "entity.merged"
	EventBudgetWarning      EventType = "cost.budget_warning"
	EventBudgetExceeded     EventType = "cost.budget_exceeded"
	EventMonitoringAlert    EventType = "monitoring.alert"
	EventVigilanceEscalated EventType = "monitoring.vigilance_escalated"
)

// Severity of the audit event itself, not of any finding it references.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is an immutable audit log entry. Events are append-only: the store
// accepts INSERT and nothing else. Retention is policy-driven, not
// structural.
type Event struct {
	ID            uuid.UUID              `json:"id"`
	TenantID      *uuid.UUID             `json:"tenant_id,omitempty"`
	ActorID       *uuid.UUID             `json:"actor_id,omitempty"`
	CorrelationID uuid.UUID              `json:"correlation_id"`
	Type          EventType              `json:"type"`
	Severity      Severity               `json:"severity"`
	ResourceType  string                 `json:"resource_type"`
	ResourceID    string                 `json:"resource_id"`
	Data          map[string]interface{} `json:"data,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// NewEvent validates required fields; all other attribution comes from the
// bound request context at log time.
func NewEvent(t EventType, resourceType, resourceID string) (*Event, error) {
	if t == "" {
		return nil, errors.NewValidationError("missing_event_type", "audit event type is required")
	}
	if resourceType == "" || resourceID == "" {
		return nil, errors.NewValidationError("missing_resource", "audit events must reference a resource")
	}
	return &Event{
		ID:           uuid.Must(uuid.NewV7()),
		Type:         t,
		Severity:     SeverityInfo,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Data:         make(map[string]interface{}),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (e *Event) WithSeverity(s Severity) *Event {
	e.Severity = s
	return e
}

func (e *Event) WithData(key string, value interface{}) *Event {
	if e.Data == nil {
		e.Data = make(map[string]interface{})
	}
	e.Data[key] = value
	return e
}

// Repository is the append-only audit sink contract. Implementations must
// reject updates and deletes at the storage layer.
type Repository interface {
	Insert(ctx context.Context, e *Event) error
	ListByCorrelation(ctx context.Context, correlationID uuid.UUID) ([]*Event, error)
}
