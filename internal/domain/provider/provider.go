// Package provider defines the plug-in contract external background-check
// providers implement. Concrete adapters (Sterling, Checkr, OFAC parsers)
// live outside this module; the routing layer depends only on this contract.
package provider

import (
	"context"
	"time"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// Category splits the provider pool by tier entitlement: STANDARD screenings
// use CORE only, ENHANCED may use both.
type Category string

const (
	CategoryCore    Category = "core"
	CategoryPremium Category = "premium"
)

// Capability declares one check product a provider can execute.
type Capability struct {
	CheckType values.CheckType `json:"check_type"`
	Locales   []values.Locale  `json:"locales"`
	// CostTier orders providers for selection; lower is cheaper.
	CostTier int `json:"cost_tier"`
}

// Supports reports whether the capability covers the check in the locale,
// honoring the locale hierarchy (a US capability serves US_CA).
func (c Capability) Supports(ct values.CheckType, locale values.Locale) bool {
	if c.CheckType != ct {
		return false
	}
	for _, l := range c.Locales {
		if l.Contains(locale) {
			return true
		}
	}
	return false
}

// HealthStatus is a provider's last observed health.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Health is the result of a provider health probe.
type Health struct {
	Status    HealthStatus `json:"status"`
	LastCheck time.Time    `json:"last_check"`
	Error     string       `json:"error,omitempty"`
}

// Result is the normalized outcome of a single provider check. NormalizedData
// is check-type-specific but provider-agnostic and is the sole input the
// assessor inspects; Raw is stored encrypted for dispute resolution only.
type Result struct {
	ProviderID     string                 `json:"provider_id"`
	CheckType      values.CheckType       `json:"check_type"`
	Locale         values.Locale          `json:"locale"`
	Success        bool                   `json:"success"`
	NormalizedData map[string]interface{} `json:"normalized_data,omitempty"`
	Raw            []byte                 `json:"-"`
	CostIncurred   values.Cost            `json:"cost_incurred"`
	Duration       time.Duration          `json:"duration"`
}

// Provider is the plug-in contract.
type Provider interface {
	// ID is stable and unique across the registry.
	ID() string
	Category() Category
	Capabilities() []Capability
	// Reliability in [0,1] is the historical success ratio, used as the
	// cost-tier tiebreaker during selection.
	Reliability() float64

	// ExecuteCheck runs one check. Implementations must honor ctx
	// cancellation and deadlines.
	ExecuteCheck(ctx context.Context, ct values.CheckType, subject *investigation.SubjectIdentifiers, locale values.Locale, extras map[string]string) (*Result, error)

	HealthCheck(ctx context.Context) Health
}
