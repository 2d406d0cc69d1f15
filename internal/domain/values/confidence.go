package values

import "fmt"

// Confidence is a [0,1] score attached to facts, findings and SAR state.
type Confidence float64

// NewConfidence rejects out-of-range values at construction so downstream
// arithmetic never needs to clamp.
func NewConfidence(v float64) (Confidence, error) {
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("confidence must be in [0,1], got %v", v)
	}
	return Confidence(v), nil
}

// ClampConfidence coerces computed scores into range. Used where the input is
// arithmetic over already-validated values rather than external data.
func ClampConfidence(v float64) Confidence {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return Confidence(v)
}

func (c Confidence) Float() float64 {
	return float64(c)
}

// Meets reports whether the confidence satisfies threshold t.
func (c Confidence) Meets(t float64) bool {
	return float64(c) >= t
}
