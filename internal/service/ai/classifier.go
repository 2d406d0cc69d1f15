// Package ai holds the optional model-assisted classification capability.
// Model output is advisory: the rule engine always revalidates before a
// suggestion influences a finding.
package ai

import (
	"context"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// Suggestion is a model-proposed classification for one finding.
type Suggestion struct {
	Category    investigation.Category `json:"category"`
	SubCategory string                 `json:"sub_category"`
	Severity    values.Severity        `json:"severity"`
	Confidence  float64                `json:"confidence"`
	Rationale   string                 `json:"rationale,omitempty"`
}

// Classifier proposes a classification for finding text. Implementations must
// treat errors as soft: a nil suggestion with an error means the caller falls
// back to rules alone.
type Classifier interface {
	SuggestClassification(ctx context.Context, summary, details string) (*Suggestion, error)
}

// NoopClassifier is the default when no model is configured.
type NoopClassifier struct{}

func (NoopClassifier) SuggestClassification(context.Context, string, string) (*Suggestion, error) {
	return nil, nil
}
