package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ProfileTrigger records what caused a profile snapshot.
type ProfileTrigger string

const (
	TriggerScreening  ProfileTrigger = "screening"
	TriggerMonitoring ProfileTrigger = "monitoring"
)

// Profile is a point-in-time versioned snapshot of everything known about an
// entity. Versions are monotone per entity and only the screening
// orchestrator and the monitoring scheduler create them.
type Profile struct {
	EntityID  uuid.UUID       `json:"entity_id"`
	Version   int64           `json:"version"`
	Trigger   ProfileTrigger  `json:"trigger"`
	Findings  json.RawMessage `json:"findings_blob"`
	RiskScore float64         `json:"risk_score"`
	CreatedAt time.Time       `json:"created_at"`
}
