package screening

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	invsvc "github.com/veriscreen/screening-backend/internal/service/investigation"
	"github.com/veriscreen/screening-backend/internal/service/risk"
)

func testFinding(cat investigation.Category, sev values.Severity, conf float64, summary string) *investigation.Finding {
	f := investigation.NewFinding(cat, sev, summary)
	f.Confidence = values.ClampConfidence(conf)
	return f
}

func TestCompileFiltersLowConfidenceFindings(t *testing.T) {
	c := NewCompiler(0.5)
	inv := &invsvc.Result{
		Findings: []*investigation.Finding{
			testFinding(investigation.CategoryCriminal, values.SeverityHigh, 0.9, "kept"),
			testFinding(investigation.CategoryCriminal, values.SeverityCritical, 0.3, "dropped"),
		},
		TypeStates: map[investigation.InformationType]*investigation.TypeState{},
	}

	out := c.Compile(inv, risk.RiskScore{}, risk.DeceptionAssessment{}, risk.PatternSummary{}, risk.ConnectionAnalysis{})

	require.Len(t, out.Findings, 1)
	assert.Equal(t, "kept", out.Findings[0].Summary)
	assert.Equal(t, 1, out.Summary.TotalCount)
}

func TestCompileSummaries(t *testing.T) {
	c := NewCompiler(0.5)
	findings := []*investigation.Finding{
		testFinding(investigation.CategoryCriminal, values.SeverityCritical, 0.9, "felony"),
		testFinding(investigation.CategoryCriminal, values.SeverityLow, 0.9, "citation"),
		testFinding(investigation.CategoryCriminal, values.SeverityHigh, 0.9, "assault"),
		testFinding(investigation.CategoryCriminal, values.SeverityMedium, 0.9, "theft"),
		testFinding(investigation.CategoryFinancial, values.SeverityMedium, 0.9, "lien"),
	}
	inv := &invsvc.Result{
		Findings:            findings,
		AggregateConfidence: values.ClampConfidence(0.82),
		TypeStates: map[investigation.InformationType]*investigation.TypeState{
			investigation.InfoCriminal: {
				Iterations: []investigation.IterationState{
					{Iteration: 1, QueriesExecuted: 4},
					{Iteration: 2, QueriesExecuted: 2},
				},
				FinalConfidence:  0.88,
				CompletionReason: investigation.CompletionConfidenceMet,
			},
		},
		Warnings: []string{"sanctions excluded"},
	}

	out := c.Compile(inv, risk.RiskScore{}, risk.DeceptionAssessment{}, risk.PatternSummary{},
		risk.ConnectionAnalysis{D2Count: 2, PEPHits: 1, SubjectRisk: 0.4})

	assert.Equal(t, 5, out.Summary.TotalCount)
	assert.Equal(t, 4, out.Summary.ByCategory[investigation.CategoryCriminal])
	assert.Equal(t, 1, out.Summary.BySeverity[values.SeverityCritical.String()])

	// Key findings keep the three most severe per category.
	key := out.Summary.KeyFindings[investigation.CategoryCriminal]
	require.Len(t, key, 3)
	assert.Equal(t, "felony", key[0].Summary)
	assert.Equal(t, "assault", key[1].Summary)
	assert.Equal(t, "theft", key[2].Summary)

	assert.Contains(t, out.Summary.Narrative, "5 findings")
	assert.Contains(t, out.Summary.Narrative, "1 critical")

	crim := out.Investigation.Types[investigation.InfoCriminal]
	assert.Equal(t, 2, crim.Iterations)
	assert.Equal(t, 6, crim.Queries)
	assert.Equal(t, string(investigation.CompletionConfidenceMet), crim.CompletionReason)
	assert.InDelta(t, 0.82, out.Investigation.AggregateConfidence, 0.001)

	assert.Equal(t, 2, out.Connections.D2Count)
	assert.InDelta(t, 0.4, out.Connections.MaxPropagatedRisk, 0.001)
	assert.Equal(t, []string{"sanctions excluded"}, out.Warnings)
}

func TestCompileEmptyNarrative(t *testing.T) {
	c := NewCompiler(0.5)
	out := c.Compile(&invsvc.Result{
		TypeStates: map[investigation.InformationType]*investigation.TypeState{},
	}, risk.RiskScore{}, risk.DeceptionAssessment{}, risk.PatternSummary{}, risk.ConnectionAnalysis{})

	assert.Equal(t, "No notable findings.", out.Summary.Narrative)
}

func TestToScreeningResult(t *testing.T) {
	c := NewCompiler(0.5)
	inv := &invsvc.Result{
		Findings: []*investigation.Finding{
			testFinding(investigation.CategoryCriminal, values.SeverityCritical, 0.9, "felony"),
		},
		AggregateConfidence: values.ClampConfidence(0.8),
		TypeStates:          map[investigation.InformationType]*investigation.TypeState{},
	}
	score := risk.RiskScore{
		Overall:        91.1,
		Level:          values.RiskCritical,
		Recommendation: values.RecommendDoNotProceed,
	}

	compiled := c.Compile(inv, score, risk.DeceptionAssessment{Band: risk.DeceptionLow},
		risk.PatternSummary{}, risk.ConnectionAnalysis{SanctionsHits: 1})
	res := compiled.ToScreeningResult()

	assert.Equal(t, 91.1, res.OverallScore)
	assert.Equal(t, values.RiskCritical, res.RiskLevel)
	assert.Equal(t, values.RecommendDoNotProceed, res.Recommendation)
	assert.Equal(t, 1, res.CriticalFindings)
	assert.Equal(t, 1, res.FindingCounts[investigation.CategoryCriminal])
	assert.InDelta(t, 0.8, res.Confidence, 0.001)
	assert.Equal(t, risk.DeceptionLow, res.DeceptionBand)
	assert.Equal(t, 1, res.ConnectionSummary.SanctionsHits)
}
