package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

func signalsOfKind(s PatternSummary, kind string) []PatternSignal {
	var out []PatternSignal
	for _, sig := range s.Signals {
		if sig.Kind == kind {
			out = append(out, sig)
		}
	}
	return out
}

func TestRecognizeEscalation(t *testing.T) {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	// Severity grows strictly over widely spaced events.
	findings := []*investigation.Finding{
		datedFinding(investigation.CategoryCriminal, values.SeverityLow, 1.0, 1.0, base),
		datedFinding(investigation.CategoryCriminal, values.SeverityMedium, 1.0, 1.0, base.AddDate(2, 0, 0)),
		datedFinding(investigation.CategoryCriminal, values.SeverityHigh, 1.0, 1.0, base.AddDate(4, 0, 0)),
	}

	out := NewPatternRecognizer().Recognize(findings)
	sigs := signalsOfKind(out, SignalEscalationOverTime)
	require.Len(t, sigs, 1)
	assert.Equal(t, values.SeverityHigh, sigs[0].Severity)
	assert.Len(t, sigs[0].RelatedFindings, 3)

	// Spaced-out events are not a burst.
	assert.Empty(t, signalsOfKind(out, SignalBurstActivity))
}

func TestRecognizeNoEscalationWhenFlat(t *testing.T) {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	findings := []*investigation.Finding{
		datedFinding(investigation.CategoryCriminal, values.SeverityMedium, 1.0, 1.0, base),
		datedFinding(investigation.CategoryCriminal, values.SeverityMedium, 1.0, 1.0, base.AddDate(2, 0, 0)),
	}

	out := NewPatternRecognizer().Recognize(findings)
	assert.Empty(t, signalsOfKind(out, SignalEscalationOverTime))
}

func TestRecognizeBurst(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	findings := []*investigation.Finding{
		datedFinding(investigation.CategoryFinancial, values.SeverityMedium, 1.0, 1.0, base),
		datedFinding(investigation.CategoryFinancial, values.SeverityMedium, 1.0, 1.0, base.AddDate(0, 0, 20)),
		datedFinding(investigation.CategoryFinancial, values.SeverityHigh, 1.0, 1.0, base.AddDate(0, 0, 45)),
	}

	out := NewPatternRecognizer().Recognize(findings)
	sigs := signalsOfKind(out, SignalBurstActivity)
	require.Len(t, sigs, 1)
	assert.Equal(t, values.SeverityHigh, sigs[0].Severity)
}

func TestRecognizeSystematicRepeat(t *testing.T) {
	var findings []*investigation.Finding
	for i := 0; i < 3; i++ {
		f := investigation.NewFinding(investigation.CategoryVerification, values.SeverityMedium, "employment mismatch")
		f.SubCategory = SubVerificationEmployment
		findings = append(findings, f)
	}

	out := NewPatternRecognizer().Recognize(findings)
	sigs := signalsOfKind(out, SignalSystematicRepeat)
	require.Len(t, sigs, 1)
	assert.Contains(t, sigs[0].Description, "recurs 3 times")
}

func TestRecognizeUndatedFindingsSkipTemporalSignals(t *testing.T) {
	findings := []*investigation.Finding{
		investigation.NewFinding(investigation.CategoryCriminal, values.SeverityLow, "a"),
		investigation.NewFinding(investigation.CategoryCriminal, values.SeverityHigh, "b"),
	}

	out := NewPatternRecognizer().Recognize(findings)
	assert.Empty(t, out.Signals)
}
