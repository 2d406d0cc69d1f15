package investigation

import (
	"time"

	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// SARPhase labels where in the search-assess-refine cycle an iteration is.
type SARPhase string

const (
	SARSearch SARPhase = "search"
	SARAssess SARPhase = "assess"
	SARRefine SARPhase = "refine"
)

// CompletionReason records why a type's SAR loop stopped.
type CompletionReason string

const (
	CompletionConfidenceMet      CompletionReason = "confidence_met"
	CompletionMaxIterations      CompletionReason = "max_iterations"
	CompletionDiminishingReturns CompletionReason = "diminishing_returns"
	CompletionSkipped            CompletionReason = "skipped"
	CompletionError              CompletionReason = "error"
)

// IterationState captures one completed SAR iteration for a type.
type IterationState struct {
	Iteration       int               `json:"iteration"`
	Phase           SARPhase          `json:"phase"`
	QueriesExecuted int               `json:"queries_executed"`
	NewFacts        int               `json:"new_facts"`
	Confidence      values.Confidence `json:"confidence"`
}

// TypeState is the full SAR record for one information type.
type TypeState struct {
	InfoType         InformationType   `json:"info_type"`
	Iterations       []IterationState  `json:"iterations"`
	CompletionReason CompletionReason  `json:"completion_reason"`
	FinalConfidence  values.Confidence `json:"final_confidence"`
	Summary          ExecutionSummary  `json:"summary"`
	SkipReason       string            `json:"skip_reason,omitempty"`
}

// Checkpoint is an append-only per-screening snapshot taken after each type
// completes, sufficient to resume the orchestrator control flow.
type Checkpoint struct {
	ScreeningID    string                         `json:"screening_id"`
	CompletedTypes []InformationType              `json:"completed_types"`
	TypeStates     map[InformationType]*TypeState `json:"type_states"`
	Knowledge      map[InformationType][]Fact     `json:"knowledge"`
	Findings       []*Finding                     `json:"findings"`
	CreatedAt      time.Time                      `json:"created_at"`
}
