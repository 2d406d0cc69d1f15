package investigation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
)

func testControllerConfig() ControllerConfig {
	return ControllerConfig{
		ConfidenceThreshold:     0.85,
		FoundationThreshold:     0.90,
		MaxIterations:           5,
		FoundationMaxIterations: 7,
		MinInformationGain:      0.10,
	}
}

func TestEvaluateConfidenceMet(t *testing.T) {
	c := NewController(testControllerConfig())
	st := &investigation.TypeState{InfoType: investigation.InfoCriminal}

	d := c.Evaluate(investigation.InfoCriminal, st, ConfidenceBreakdown{Composite: 0.86}, 0, 4)
	assert.False(t, d.Continue)
	assert.Equal(t, investigation.CompletionConfidenceMet, d.Reason)

	// Foundation types hold to the stricter bar: 0.86 is not enough.
	st = &investigation.TypeState{InfoType: investigation.InfoIdentity}
	d = c.Evaluate(investigation.InfoIdentity, st, ConfidenceBreakdown{Composite: 0.86}, 0, 4)
	assert.True(t, d.Continue)

	d = c.Evaluate(investigation.InfoIdentity, st, ConfidenceBreakdown{Composite: 0.91}, 0, 4)
	assert.Equal(t, investigation.CompletionConfidenceMet, d.Reason)
}

func TestEvaluateMaxIterations(t *testing.T) {
	c := NewController(testControllerConfig())
	st := &investigation.TypeState{
		InfoType:   investigation.InfoCriminal,
		Iterations: make([]investigation.IterationState, 4),
	}

	// The fifth iteration hits the cap despite healthy gain.
	d := c.Evaluate(investigation.InfoCriminal, st, ConfidenceBreakdown{Composite: 0.5}, 10, 5)
	assert.False(t, d.Continue)
	assert.Equal(t, investigation.CompletionMaxIterations, d.Reason)

	// Foundation types get more headroom.
	stF := &investigation.TypeState{
		InfoType:   investigation.InfoIdentity,
		Iterations: make([]investigation.IterationState, 4),
	}
	d = c.Evaluate(investigation.InfoIdentity, stF, ConfidenceBreakdown{Composite: 0.5}, 10, 5)
	assert.True(t, d.Continue)
}

func TestEvaluateDiminishingReturnsNeedsTwoFlatIterations(t *testing.T) {
	c := NewController(testControllerConfig())

	// First flat iteration: gain 1/21 < 0.10, but no history yet.
	st := &investigation.TypeState{InfoType: investigation.InfoCriminal}
	d := c.Evaluate(investigation.InfoCriminal, st, ConfidenceBreakdown{Composite: 0.5}, 20, 1)
	assert.True(t, d.Continue, "a single flat iteration never ends the loop")

	// Second consecutive flat iteration terminates.
	st.Iterations = []investigation.IterationState{
		{Iteration: 1, NewFacts: 1},
	}
	d = c.Evaluate(investigation.InfoCriminal, st, ConfidenceBreakdown{Composite: 0.5}, 21, 1)
	assert.False(t, d.Continue)
	assert.Equal(t, investigation.CompletionDiminishingReturns, d.Reason)

	// A productive previous iteration resets the streak.
	st.Iterations = []investigation.IterationState{
		{Iteration: 1, NewFacts: 10},
	}
	d = c.Evaluate(investigation.InfoCriminal, st, ConfidenceBreakdown{Composite: 0.5}, 21, 1)
	assert.True(t, d.Continue)
}

func TestEvaluateConfidenceNeverDecreases(t *testing.T) {
	c := NewController(testControllerConfig())
	st := &investigation.TypeState{
		InfoType:        investigation.InfoCriminal,
		FinalConfidence: 0.7,
	}

	// The raw composite dropped below what prior iterations established.
	d := c.Evaluate(investigation.InfoCriminal, st, ConfidenceBreakdown{Composite: 0.55}, 5, 3)
	assert.InDelta(t, 0.7, d.Confidence.Float(), 0.001)
}

func TestEvaluateGain(t *testing.T) {
	c := NewController(testControllerConfig())
	st := &investigation.TypeState{InfoType: investigation.InfoCriminal}

	d := c.Evaluate(investigation.InfoCriminal, st, ConfidenceBreakdown{Composite: 0.2}, 9, 5)
	assert.InDelta(t, 0.5, d.Gain, 0.001)
	assert.True(t, d.Continue)
}
