// Package compliance holds the persisted form of jurisdiction rules.
// Deployments layer these records on top of the built-in ruleset: tenant
// contracts tighten what a jurisdiction permits, never loosen it.
package compliance

import (
	"time"

	"github.com/google/uuid"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// RuleRecord is one stored rule row. A nil TenantID marks a platform-wide
// rule; tenant rules apply only to that tenant's screenings.
type RuleRecord struct {
	ID           uuid.UUID           `json:"id"`
	TenantID     *uuid.UUID          `json:"tenant_id,omitempty"`
	Locale       values.Locale       `json:"locale"`
	CheckType    values.CheckType    `json:"check_type"`
	RoleCategory values.RoleCategory `json:"role_category,omitempty"`
	Priority     int                 `json:"priority"`

	Permitted          bool   `json:"permitted"`
	BlockReason        string `json:"block_reason,omitempty"`
	LookbackDays       *int   `json:"lookback_days,omitempty"`
	RequiresConsent    bool   `json:"requires_consent"`
	RequiresDisclosure bool   `json:"requires_disclosure"`

	Active      bool       `json:"active"`
	EffectiveAt time.Time  `json:"effective_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewRuleRecord validates and mints a rule. Blocked rules must say why so
// the decision surfaces verbatim in audit logs and reports.
func NewRuleRecord(locale values.Locale, check values.CheckType, permitted bool, blockReason string) (*RuleRecord, error) {
	if locale == "" {
		return nil, errors.NewValidationError("missing_locale", "compliance rules require a locale")
	}
	if check == "" {
		return nil, errors.NewValidationError("missing_check_type", "compliance rules require a check type")
	}
	if !permitted && blockReason == "" {
		return nil, errors.NewValidationError("missing_block_reason",
			"blocking rules must carry a reason")
	}
	now := time.Now().UTC()
	return &RuleRecord{
		ID:          uuid.Must(uuid.NewV7()),
		Locale:      locale,
		CheckType:   check,
		Permitted:   permitted,
		BlockReason: blockReason,
		Active:      true,
		EffectiveAt: now,
		CreatedAt:   now,
	}, nil
}

// IsEffective reports whether the rule applies at the given instant.
func (r *RuleRecord) IsEffective(now time.Time) bool {
	if !r.Active || now.Before(r.EffectiveAt) {
		return false
	}
	if r.ExpiresAt != nil && !now.Before(*r.ExpiresAt) {
		return false
	}
	return true
}

// AppliesTo reports whether the rule binds screenings for the tenant.
func (r *RuleRecord) AppliesTo(tenantID uuid.UUID) bool {
	return r.TenantID == nil || *r.TenantID == tenantID
}
