package investigation

import (
	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// ControllerConfig carries the loop-termination knobs.
type ControllerConfig struct {
	ConfidenceThreshold     float64
	FoundationThreshold     float64
	MaxIterations           int
	FoundationMaxIterations int
	MinInformationGain      float64
}

// Controller decides, after each iteration, whether a type's SAR loop
// continues and why it stops.
type Controller struct {
	cfg ControllerConfig
}

func NewController(cfg ControllerConfig) *Controller {
	return &Controller{cfg: cfg}
}

// Decision is the outcome of a single post-iteration check.
type Decision struct {
	Continue   bool
	Reason     investigation.CompletionReason
	Confidence values.Confidence
	Gain       float64
}

func (c *Controller) maxIterations(t investigation.InformationType) int {
	if t.IsFoundation() {
		return c.cfg.FoundationMaxIterations
	}
	return c.cfg.MaxIterations
}

// Evaluate applies the termination rules in priority order: confidence
// threshold, iteration cap, then diminishing returns (two consecutive
// iterations below the minimum information gain).
//
// Reported confidence never decreases across iterations: new facts may
// introduce inconsistencies that lower the raw composite, but what was
// already established stays established.
func (c *Controller) Evaluate(t investigation.InformationType, st *investigation.TypeState, raw ConfidenceBreakdown, factsBefore, newFacts int) Decision {
	conf := values.ClampConfidence(raw.Composite)
	if prev := st.FinalConfidence; prev > conf {
		conf = prev
	}

	gain := float64(newFacts) / float64(factsBefore+1)

	iteration := len(st.Iterations) + 1
	d := Decision{Confidence: conf, Gain: gain}

	if conf.Meets(Threshold(t, c.cfg.ConfidenceThreshold, c.cfg.FoundationThreshold)) {
		d.Reason = investigation.CompletionConfidenceMet
		return d
	}
	if iteration >= c.maxIterations(t) {
		d.Reason = investigation.CompletionMaxIterations
		return d
	}
	if gain < c.cfg.MinInformationGain && c.lastGainLow(st, factsBefore) {
		d.Reason = investigation.CompletionDiminishingReturns
		return d
	}
	d.Continue = true
	return d
}

// lastGainLow reports whether the previous iteration's information gain was
// also below the minimum, so a single flat iteration never ends the loop.
func (c *Controller) lastGainLow(st *investigation.TypeState, factsBefore int) bool {
	n := len(st.Iterations)
	if n == 0 {
		return false
	}
	prev := st.Iterations[n-1]
	prevBefore := factsBefore - prev.NewFacts
	if prevBefore < 0 {
		prevBefore = 0
	}
	prevGain := float64(prev.NewFacts) / float64(prevBefore+1)
	return prevGain < c.cfg.MinInformationGain
}
