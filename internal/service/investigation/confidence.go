package investigation

import (
	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// Factor weights of the composite confidence score.
const (
	weightCompleteness    = 0.30
	weightCorroboration   = 0.25
	weightQuerySuccess    = 0.20
	weightFactConfidence  = 0.15
	weightSourceDiversity = 0.10
)

// ConfidenceBreakdown exposes the factor values for reporting.
type ConfidenceBreakdown struct {
	Completeness    float64 `json:"completeness"`
	Corroboration   float64 `json:"corroboration"`
	QuerySuccess    float64 `json:"query_success"`
	FactConfidence  float64 `json:"fact_confidence"`
	SourceDiversity float64 `json:"source_diversity"`
	Composite       float64 `json:"composite"`
}

// ConfidenceScorer computes the per-type composite confidence in [0,1].
type ConfidenceScorer struct{}

func NewConfidenceScorer() *ConfidenceScorer {
	return &ConfidenceScorer{}
}

// Score evaluates the accumulated knowledge for a type against expectations.
func (s *ConfidenceScorer) Score(t investigation.InformationType, kb *investigation.KnowledgeBase, summary investigation.ExecutionSummary) ConfidenceBreakdown {
	facts := kb.Facts(t)

	var b ConfidenceBreakdown

	expected := t.ExpectedFacts()
	if expected > 0 {
		b.Completeness = min1(float64(len(facts)) / float64(expected))
	}

	// Corroboration: fraction of fact-type groups confirmed by at least two
	// distinct providers.
	groups := make(map[string]map[string]bool)
	for _, f := range facts {
		if groups[f.Type] == nil {
			groups[f.Type] = make(map[string]bool)
		}
		groups[f.Type][f.SourceProvider] = true
	}
	if len(groups) > 0 {
		corroborated := 0
		for _, sources := range groups {
			if len(sources) >= 2 {
				corroborated++
			}
		}
		b.Corroboration = float64(corroborated) / float64(len(groups))
	}

	b.QuerySuccess = summary.SuccessRate()

	if len(facts) > 0 {
		var sum float64
		for _, f := range facts {
			sum += f.Confidence.Float()
		}
		b.FactConfidence = sum / float64(len(facts))
	}

	distinct := make(map[string]bool)
	for _, f := range facts {
		distinct[f.SourceProvider] = true
	}
	b.SourceDiversity = min1(float64(len(distinct)) / 3.0)

	b.Composite = weightCompleteness*b.Completeness +
		weightCorroboration*b.Corroboration +
		weightQuerySuccess*b.QuerySuccess +
		weightFactConfidence*b.FactConfidence +
		weightSourceDiversity*b.SourceDiversity
	return b
}

// Threshold returns the completion threshold for a type; foundation types run
// to a stricter bar.
func Threshold(t investigation.InformationType, base, foundation float64) float64 {
	if t.IsFoundation() {
		return foundation
	}
	return base
}

// AggregateConfidence combines per-type final confidences, weighting
// foundation types 1.5x.
func AggregateConfidence(states map[investigation.InformationType]*investigation.TypeState) values.Confidence {
	var sum, weight float64
	for t, st := range states {
		if st.CompletionReason == investigation.CompletionSkipped {
			continue
		}
		w := 1.0
		if t.IsFoundation() {
			w = 1.5
		}
		sum += w * st.FinalConfidence.Float()
		weight += w
	}
	if weight == 0 {
		return 0
	}
	return values.ClampConfidence(sum / weight)
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
