// Package compliance evaluates whether a check may run in a jurisdiction for
// a role and tier. Evaluation is pure: identical inputs always produce equal
// results, so callers may evaluate speculatively and cache nothing.
package compliance

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// Rule permits or blocks a check type in a locale, optionally scoped to a
// role. A rule missing an attribute does not imply "disallowed": the engine
// defaults to permitted unless explicitly blocked.
type Rule struct {
	Locale             values.Locale
	CheckType          values.CheckType
	RoleCategory       values.RoleCategory // "" matches any role
	Permitted          bool
	BlockReason        string
	LookbackDays       *int
	RequiresConsent    bool
	RequiresDisclosure bool
	PermittedRoles     []values.RoleCategory
}

// Evaluation is the engine's decision for one (locale, check, role, tier).
type Evaluation struct {
	Permitted          bool
	Restrictions       []string
	BlockReason        string
	RequiresConsent    bool
	RequiresDisclosure bool
	LookbackDays       *int
}

// enhancedOnlyChecks may only run on the Enhanced tier regardless of locale
// rules.
var enhancedOnlyChecks = map[values.CheckType]bool{
	values.CheckDigitalFootprint:    true,
	values.CheckBusinessAffiliation: true,
}

// alwaysConsentChecks require subject consent in every jurisdiction.
var alwaysConsentChecks = map[values.CheckType]bool{
	values.CheckCreditReport: true,
	values.CheckBankruptcy:   true,
	values.CheckSSNTrace:     true,
}

// Engine resolves rules most-specific-first. Rules are read-mostly; the
// engine takes an immutable snapshot at construction, so readers never block.
type Engine struct {
	// index: locale → check → role → rule
	exact  map[values.Locale]map[values.CheckType]map[values.RoleCategory]*Rule
	logger *zap.Logger
}

func NewEngine(rules []Rule, logger *zap.Logger) *Engine {
	e := &Engine{
		exact:  make(map[values.Locale]map[values.CheckType]map[values.RoleCategory]*Rule),
		logger: logger,
	}
	for i := range rules {
		r := rules[i]
		if e.exact[r.Locale] == nil {
			e.exact[r.Locale] = make(map[values.CheckType]map[values.RoleCategory]*Rule)
		}
		if e.exact[r.Locale][r.CheckType] == nil {
			e.exact[r.Locale][r.CheckType] = make(map[values.RoleCategory]*Rule)
		}
		e.exact[r.Locale][r.CheckType][r.RoleCategory] = &r
	}
	return e
}

// lookup walks the resolution chain: exact (locale, check, role), then
// (locale, check), then the parent locale, then nothing. First match wins.
func (e *Engine) lookup(locale values.Locale, ct values.CheckType, role values.RoleCategory) *Rule {
	for cur := locale; cur != ""; cur = cur.Parent() {
		byCheck, ok := e.exact[cur]
		if !ok {
			continue
		}
		byRole, ok := byCheck[ct]
		if !ok {
			continue
		}
		if r, ok := byRole[role]; ok {
			return r
		}
		if r, ok := byRole[""]; ok {
			return r
		}
	}
	return nil
}

// Evaluate decides whether the check is permitted. Built-in tier and consent
// restrictions are ANDed after rule lookup.
func (e *Engine) Evaluate(locale values.Locale, ct values.CheckType, role values.RoleCategory, tier values.ServiceTier) Evaluation {
	ev := Evaluation{Permitted: true}

	if r := e.lookup(locale, ct, role); r != nil {
		ev.Permitted = r.Permitted
		ev.BlockReason = r.BlockReason
		ev.RequiresConsent = r.RequiresConsent
		ev.RequiresDisclosure = r.RequiresDisclosure
		ev.LookbackDays = r.LookbackDays
		if r.LookbackDays != nil {
			ev.Restrictions = append(ev.Restrictions, fmt.Sprintf("lookback limited to %d days", *r.LookbackDays))
		}
		if len(r.PermittedRoles) > 0 && !roleIn(role, r.PermittedRoles) {
			ev.Permitted = false
			ev.BlockReason = fmt.Sprintf("check %s restricted to specific roles in %s", ct, locale)
		}
	}

	if ev.Permitted && enhancedOnlyChecks[ct] && tier != values.TierEnhanced {
		ev.Permitted = false
		ev.BlockReason = fmt.Sprintf("check %s requires the enhanced tier", ct)
	}
	if alwaysConsentChecks[ct] {
		ev.RequiresConsent = true
		ev.Restrictions = append(ev.Restrictions, "subject consent required")
	}
	return ev
}

func roleIn(role values.RoleCategory, roles []values.RoleCategory) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// ServiceConfig is the per-screening service selection validated before any
// investigation work is planned.
type ServiceConfig struct {
	Tier          values.ServiceTier
	Degree        values.SearchDegree
	ExcludedTypes []investigation.InformationType
}

// ValidateServiceConfig enforces tier gating and returns advisory warnings.
// Excluding identity or sanctions degrades screening quality but is not a
// hard error.
func (e *Engine) ValidateServiceConfig(cfg ServiceConfig) ([]string, error) {
	if cfg.Degree == values.DegreeD3 && cfg.Tier != values.TierEnhanced {
		return nil, errors.NewValidationError("d3_requires_enhanced",
			"D3 extended network search requires the enhanced tier")
	}

	// Enhanced-only types requested at Standard are not an error here; the
	// planner skips them per iteration.
	excluded := make(map[investigation.InformationType]bool, len(cfg.ExcludedTypes))
	for _, t := range cfg.ExcludedTypes {
		excluded[t] = true
	}

	var warnings []string
	if excluded[investigation.InfoIdentity] {
		warnings = append(warnings, "excluding identity verification weakens all downstream corroboration")
	}
	if excluded[investigation.InfoSanctions] {
		warnings = append(warnings, "excluding sanctions screening is not recommended")
	}
	return warnings, nil
}

// PermittedChecks evaluates every check type an investigation may need and
// returns the allowed subset for stamping into the request context.
func (e *Engine) PermittedChecks(locale values.Locale, role values.RoleCategory, tier values.ServiceTier) map[values.CheckType]bool {
	out := make(map[values.CheckType]bool)
	for _, t := range investigation.AllTypes() {
		for _, ct := range t.CheckTypes() {
			if e.Evaluate(locale, ct, role, tier).Permitted {
				out[ct] = true
			}
		}
	}
	return out
}
