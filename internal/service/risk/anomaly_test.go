package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
)

func inc(kind investigation.InconsistencyKind, infoType investigation.InformationType, directional bool) investigation.Inconsistency {
	return investigation.Inconsistency{Kind: kind, InfoType: infoType, Directional: directional}
}

func TestAssessEmpty(t *testing.T) {
	a := NewAnomalyDetector().Assess(nil, nil)
	assert.Zero(t, a.Score)
	assert.Equal(t, DeceptionNone, a.Band)
	assert.False(t, a.Directional)
	assert.False(t, a.CrossDomain)
	assert.False(t, a.Systematic)
}

func TestAssessWeightedBase(t *testing.T) {
	a := NewAnomalyDetector().Assess([]investigation.Inconsistency{
		inc(investigation.InconsistencyIdentityMismatch, investigation.InfoIdentity, false),
		inc(investigation.InconsistencyTimelineImpossible, investigation.InfoEmployment, false),
	}, nil)

	// 0.30 + 0.25, no multipliers: two info types, nothing directional.
	assert.InDelta(t, 0.55, a.Score, 0.001)
	assert.Equal(t, DeceptionHigh, a.Band)
	assert.False(t, a.Directional)
	assert.False(t, a.CrossDomain)
}

func TestAssessDirectionalMultiplier(t *testing.T) {
	a := NewAnomalyDetector().Assess([]investigation.Inconsistency{
		inc(investigation.InconsistencyIdentityMismatch, investigation.InfoIdentity, true),
		inc(investigation.InconsistencyIdentityMismatch, investigation.InfoIdentity, true),
	}, nil)

	// Base 0.60, all discrepancies favor the subject: x1.20.
	assert.True(t, a.Directional)
	assert.InDelta(t, 0.72, a.Score, 0.001)
	assert.Equal(t, DeceptionHigh, a.Band)
}

func TestAssessCrossDomainMultiplier(t *testing.T) {
	a := NewAnomalyDetector().Assess([]investigation.Inconsistency{
		inc(investigation.InconsistencyIdentityMismatch, investigation.InfoIdentity, false),
		inc(investigation.InconsistencyCredentialInflation, investigation.InfoEducation, false),
		inc(investigation.InconsistencyEmploymentGapHidden, investigation.InfoEmployment, false),
	}, nil)

	// Base 0.65 across three information types: x1.15.
	assert.True(t, a.CrossDomain)
	assert.InDelta(t, 0.7475, a.Score, 0.001)
	assert.Equal(t, DeceptionHigh, a.Band)
}

func TestAssessSystematicMultiplier(t *testing.T) {
	var incs []investigation.Inconsistency
	for i := 0; i < 4; i++ {
		incs = append(incs, inc(investigation.InconsistencyDateMinor, investigation.InfoEmployment, false))
	}

	a := NewAnomalyDetector().Assess(incs, nil)
	assert.True(t, a.Systematic)
	// 4 x 0.05, then x1.25.
	assert.InDelta(t, 0.25, a.Score, 0.001)
	assert.Equal(t, DeceptionLow, a.Band)
}

func TestAssessDeceptionFindings(t *testing.T) {
	f := investigation.NewFinding(investigation.CategoryBehavioral, 0, "concealed prior employer")
	f.SubCategory = SubBehavioralDeception

	a := NewAnomalyDetector().Assess(nil, []*investigation.Finding{f})
	assert.InDelta(t, 0.15, a.Score, 0.001)
	assert.Contains(t, a.Indicators, "deception finding: concealed prior employer")
}

func TestAssessScoreCapsAtOne(t *testing.T) {
	var incs []investigation.Inconsistency
	for i := 0; i < 6; i++ {
		incs = append(incs, inc(investigation.InconsistencyIdentityMismatch, investigation.InfoIdentity, true))
	}

	a := NewAnomalyDetector().Assess(incs, nil)
	assert.Equal(t, 1.0, a.Score)
	assert.Equal(t, DeceptionCritical, a.Band)
}

func TestBandForScore(t *testing.T) {
	assert.Equal(t, DeceptionNone, BandForScore(0.05))
	assert.Equal(t, DeceptionLow, BandForScore(0.1))
	assert.Equal(t, DeceptionModerate, BandForScore(0.3))
	assert.Equal(t, DeceptionHigh, BandForScore(0.5))
	assert.Equal(t, DeceptionCritical, BandForScore(0.75))
}
