package investigation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/infrastructure/providers"
	"github.com/veriscreen/screening-backend/internal/requestcontext"
)

// Plan is the planner's output for one type at one iteration.
type Plan struct {
	Queries           []*investigation.SearchQuery
	EnrichmentSources []investigation.InformationType
	SkippedReason     string
}

// Gap names a missing expected fact category reported by the assessor.
type Gap struct {
	FactType    string
	Description string
}

// Planner turns subject knowledge into provider queries. Iteration 1 emits
// initial queries; later iterations enrich parameters from facts other types
// have produced and target the assessor's reported gaps.
type Planner struct {
	registry *providers.Registry
	logger   *zap.Logger
}

func NewPlanner(registry *providers.Registry, logger *zap.Logger) *Planner {
	return &Planner{registry: registry, logger: logger}
}

// PlanIteration builds the query set for (type, iteration). One query per
// provider per check type per iteration.
func (p *Planner) PlanIteration(ctx context.Context, t investigation.InformationType, iteration int, subject *investigation.SubjectIdentifiers, kb *investigation.KnowledgeBase, gaps []Gap, tier values.ServiceTier) (*Plan, error) {
	rc, err := requestcontext.From(ctx)
	if err != nil {
		return nil, err
	}

	if t.RequiresEnhanced() && tier != values.TierEnhanced {
		return &Plan{SkippedReason: fmt.Sprintf("%s requires the enhanced tier", t)}, nil
	}

	plan := &Plan{}
	base := p.baseParams(subject)
	enriched := p.enrich(t, kb, base, plan)

	seen := make(map[string]bool)
	anyPermitted := false
	for _, ct := range t.CheckTypes() {
		if !rc.CheckPermitted(ct) {
			continue
		}
		anyPermitted = true

		pool, err := p.registry.Select(ct, rc.Locale, tier)
		if err != nil {
			continue // no provider for this check; other checks may cover the type
		}
		for _, prov := range pool {
			key := prov.ID() + "\x00" + string(ct)
			if seen[key] {
				continue
			}
			seen[key] = true

			qt := investigation.QueryInitial
			params := base
			if iteration > 1 {
				qt = investigation.QueryEnriched
				params = enriched
			}
			q := investigation.NewSearchQuery(t, qt, prov.ID(), ct, cloneParams(params))
			q.Priority = iteration
			plan.Queries = append(plan.Queries, q)
		}
	}

	if !anyPermitted {
		plan.SkippedReason = fmt.Sprintf("no check type for %s is permitted in %s", t, rc.Locale)
		return plan, nil
	}

	// Gap-fill queries target specific missing fact categories on whatever
	// provider set the enriched pass selected.
	if iteration > 1 && len(gaps) > 0 {
		plan.Queries = append(plan.Queries, p.gapFillQueries(plan.Queries, gaps)...)
	}

	return plan, nil
}

func (p *Planner) baseParams(subject *investigation.SubjectIdentifiers) map[string]string {
	params := map[string]string{"full_name": subject.FullName}
	if subject.DOB != nil {
		params["dob"] = subject.DOB.Format("2006-01-02")
	}
	if ssn := subject.NormalizedSSN(); ssn != "" {
		params["ssn"] = ssn
	}
	if len(subject.Addresses) > 0 {
		params["addresses"] = strings.Join(subject.Addresses, "|")
	}
	if len(subject.Aliases) > 0 {
		params["aliases"] = strings.Join(subject.Aliases, "|")
	}
	return params
}

// enrich augments query parameters with facts other types have established.
func (p *Planner) enrich(t investigation.InformationType, kb *investigation.KnowledgeBase, base map[string]string, plan *Plan) map[string]string {
	params := cloneParams(base)
	addFrom := func(source investigation.InformationType, factType, param string) {
		if vals := kb.Values(factType); len(vals) > 0 {
			params[param] = strings.Join(vals, "|")
			plan.EnrichmentSources = append(plan.EnrichmentSources, source)
		}
	}

	switch t {
	case investigation.InfoCriminal, investigation.InfoCivil:
		// Counties discovered during identity work scope records searches.
		addFrom(investigation.InfoIdentity, "county", "counties")
		addFrom(investigation.InfoIdentity, "address", "known_addresses")
	case investigation.InfoAdverseMedia:
		addFrom(investigation.InfoIdentity, "alias", "known_names")
		addFrom(investigation.InfoEmployment, "employer", "organizations")
		addFrom(investigation.InfoNetworkD2, "associate", "related_parties")
		addFrom(investigation.InfoIdentity, "address", "locations")
	case investigation.InfoNetworkD2, investigation.InfoNetworkD3:
		addFrom(investigation.InfoEmployment, "employer", "organizations")
		addFrom(investigation.InfoNetworkD2, "associate", "seed_associates")
	case investigation.InfoEmployment:
		addFrom(investigation.InfoIdentity, "alias", "known_names")
	case investigation.InfoFinancial:
		addFrom(investigation.InfoIdentity, "address", "known_addresses")
	}
	return params
}

func (p *Planner) gapFillQueries(planned []*investigation.SearchQuery, gaps []Gap) []*investigation.SearchQuery {
	// Reuse the provider/check pairs already selected this iteration,
	// narrowing parameters to the missing fact category.
	var out []*investigation.SearchQuery
	seen := make(map[string]bool)
	for _, gap := range gaps {
		for _, q := range planned {
			key := q.ProviderID + "\x00" + string(q.CheckType) + "\x00" + gap.FactType
			if seen[key] {
				continue
			}
			seen[key] = true
			params := cloneParams(q.Params)
			params["target_fact"] = gap.FactType
			gq := investigation.NewSearchQuery(q.InfoType, investigation.QueryGapFill, q.ProviderID, q.CheckType, params)
			gq.ParentID = &q.ID
			out = append(out, gq)
			break // one gap-fill query per gap
		}
	}
	return out
}

func cloneParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
