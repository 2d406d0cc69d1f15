package risk

import (
	"time"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// categoryWeights bias the overall score toward the categories that matter
// most for hiring risk. Unlisted categories weigh 1.0.
var categoryWeights = map[investigation.Category]float64{
	investigation.CategoryCriminal:     1.5,
	investigation.CategoryRegulatory:   1.3,
	investigation.CategoryVerification: 1.2,
	investigation.CategoryNetwork:      0.9,
	investigation.CategoryReputation:   0.8,
}

const corroborationBoost = 1.2

// RiskScore is the scorer's full output.
type RiskScore struct {
	Overall          float64                            `json:"overall"`
	Level            values.RiskLevel                   `json:"level"`
	Recommendation   values.Recommendation              `json:"recommendation"`
	ByCategory       map[investigation.Category]float64 `json:"by_category"`
	FindingScores    map[string]float64                 `json:"finding_scores"`
	ContributingCats int                                `json:"contributing_categories"`
}

// Scorer turns classified findings into the 0-100 risk score. Scoring is a
// pure fold over the finding set: the same findings in any order produce the
// same score.
type Scorer struct {
	now func() time.Time
}

func NewScorer() *Scorer {
	return &Scorer{now: time.Now}
}

// Score computes per-finding and per-category scores and the weighted
// overall. Category totals cap at 100 before weighting; a category's weight
// amplifies (or damps) its capped total, and the overall is the mean of the
// weighted totals across categories that actually hold findings, itself
// capped at 100.
func (s *Scorer) Score(findings []*investigation.Finding) RiskScore {
	out := RiskScore{
		ByCategory:    make(map[investigation.Category]float64),
		FindingScores: make(map[string]float64),
	}

	for _, f := range findings {
		fs := s.findingScore(f)
		out.FindingScores[f.ID.String()] = fs
		out.ByCategory[f.Category] += fs
	}

	var sum float64
	for cat, total := range out.ByCategory {
		if total > 100 {
			total = 100
			out.ByCategory[cat] = total
		}
		weight, ok := categoryWeights[cat]
		if !ok {
			weight = 1.0
		}
		sum += weight * total
		out.ContributingCats++
	}

	if out.ContributingCats > 0 {
		out.Overall = sum / float64(out.ContributingCats)
		if out.Overall > 100 {
			out.Overall = 100
		}
	}
	out.Level = values.RiskLevelForScore(out.Overall)
	out.Recommendation = values.RecommendationForLevel(out.Level)
	return out
}

func (s *Scorer) findingScore(f *investigation.Finding) float64 {
	corroboration := 1.0
	if f.Corroborated {
		corroboration = corroborationBoost
	}
	return f.Severity.BaseScore() *
		s.recencyFactor(f.DiscoveredAt) *
		f.Confidence.Float() *
		corroboration *
		f.RelevanceToRole
}

// recencyFactor discounts old events; unknown dates sit between the 3y and 7y
// bands.
func (s *Scorer) recencyFactor(discoveredAt *time.Time) float64 {
	if discoveredAt == nil {
		return 0.8
	}
	age := s.now().Sub(*discoveredAt)
	switch {
	case age <= 365*24*time.Hour:
		return 1.0
	case age <= 3*365*24*time.Hour:
		return 0.9
	case age <= 7*365*24*time.Hour:
		return 0.7
	default:
		return 0.5
	}
}
