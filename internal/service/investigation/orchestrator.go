package investigation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// CheckpointStore persists append-only per-screening checkpoints.
type CheckpointStore interface {
	Append(ctx context.Context, cp *investigation.Checkpoint) error
	Latest(ctx context.Context, screeningID string) (*investigation.Checkpoint, error)
}

// Result is the full output of one investigation.
type Result struct {
	TypeStates          map[investigation.InformationType]*investigation.TypeState
	Knowledge           *investigation.KnowledgeBase
	Findings            []*investigation.Finding
	Inconsistencies     []investigation.Inconsistency
	DiscoveredEntities  []investigation.DiscoveredEntity
	AggregateConfidence values.Confidence
	Warnings            []string
}

// Orchestrator sequences the five investigation phases over one subject,
// checkpointing after every completed type so an interrupted screening
// resumes without repeating provider spend.
type Orchestrator struct {
	phases      *PhaseRunner
	extractor   *Extractor
	checkpoints CheckpointStore
	logger      *zap.Logger
}

func NewOrchestrator(phases *PhaseRunner, extractor *Extractor, checkpoints CheckpointStore, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{phases: phases, extractor: extractor, checkpoints: checkpoints, logger: logger}
}

// Run executes the investigation start to finish. When resume is set, the
// latest checkpoint for the screening seeds the knowledge base and completed
// types are skipped; control flow otherwise replays identically.
func (o *Orchestrator) Run(ctx context.Context, ec ExecutionContext, role values.RoleCategory, resume bool) (*Result, error) {
	res := &Result{
		TypeStates: make(map[investigation.InformationType]*investigation.TypeState),
		Knowledge:  investigation.NewKnowledgeBase(),
	}
	skip := make(map[investigation.InformationType]bool)

	if resume && o.checkpoints != nil {
		if err := o.restore(ctx, ec, res, skip); err != nil {
			return nil, err
		}
	}

	for _, phase := range investigation.PhaseOrder {
		if phase == investigation.PhaseReconciliation {
			break // no provider queries; handled below over the final KB
		}

		started := time.Now()
		outcome, err := o.phases.Run(ctx, phase, res.Knowledge, ec, skip)
		if err != nil {
			return nil, err
		}
		res.Warnings = append(res.Warnings, outcome.Warnings...)

		for t, to := range outcome.Types {
			res.TypeStates[t] = to.State
			res.Inconsistencies = append(res.Inconsistencies, to.Inconsistencies...)
			res.DiscoveredEntities = append(res.DiscoveredEntities, to.DiscoveredEntities...)
			skip[t] = true

			if err := o.checkpoint(ctx, ec, res, skip); err != nil {
				// Checkpoint loss degrades resumability, not correctness.
				o.logger.Warn("checkpoint write failed",
					zap.String("screening_id", ec.ScreeningID.String()),
					zap.Error(err))
			}
		}

		o.logger.Info("phase complete",
			zap.String("phase", string(phase)),
			zap.Int("types", len(outcome.Types)),
			zap.Duration("duration", time.Since(started)))
	}

	o.reconcile(res)
	res.Findings = o.extractor.Extract(ctx, res.Knowledge, res.Inconsistencies, role)
	res.AggregateConfidence = AggregateConfidence(res.TypeStates)
	return res, nil
}

// reconcile is the final single-pass phase: it sweeps the complete knowledge
// base for conflicts that only show across types, then records a synthetic
// type state whose confidence reflects how internally consistent the record
// is.
func (o *Orchestrator) reconcile(res *Result) {
	crossed := crossTypeConflicts(res.Knowledge)
	res.Inconsistencies = append(res.Inconsistencies, crossed...)

	penalty := 0.15*float64(len(crossed)) + 0.05*float64(len(res.Inconsistencies)-len(crossed))
	if penalty > 1 {
		penalty = 1
	}
	res.TypeStates[investigation.InfoReconciliation] = &investigation.TypeState{
		InfoType: investigation.InfoReconciliation,
		Iterations: []investigation.IterationState{{
			Iteration:  1,
			Phase:      investigation.SARAssess,
			NewFacts:   0,
			Confidence: values.ClampConfidence(1 - penalty),
		}},
		CompletionReason: investigation.CompletionConfidenceMet,
		FinalConfidence:  values.ClampConfidence(1 - penalty),
	}
}

// reconciledFactTypes are the fact types whose values should agree wherever
// they appear; a value reported under one information type contradicting the
// same fact type elsewhere is a cross-domain conflict.
var reconciledFactTypes = []string{"employer", "dob", "full_name", "address"}

func crossTypeConflicts(kb *investigation.KnowledgeBase) []investigation.Inconsistency {
	var out []investigation.Inconsistency
	for _, factType := range reconciledFactTypes {
		byValue := make(map[string][]investigation.InformationType)
		for _, t := range investigation.AllTypes() {
			for _, f := range kb.FactsOfType(t, factType) {
				byValue[f.Value] = append(byValue[f.Value], t)
			}
		}
		if len(byValue) < 2 {
			continue
		}
		// Distinct values across more than one information type.
		types := make(map[investigation.InformationType]bool)
		for _, list := range byValue {
			for _, t := range list {
				types[t] = true
			}
		}
		if len(types) < 2 {
			continue
		}
		out = append(out, investigation.Inconsistency{
			Kind:        investigation.InconsistencyIdentityMismatch,
			InfoType:    investigation.InfoReconciliation,
			Description: fmt.Sprintf("%d conflicting %s values across sources", len(byValue), factType),
		})
	}
	return out
}

func (o *Orchestrator) checkpoint(ctx context.Context, ec ExecutionContext, res *Result, skip map[investigation.InformationType]bool) error {
	if o.checkpoints == nil {
		return nil
	}
	var completed []investigation.InformationType
	for _, t := range investigation.AllTypes() {
		if skip[t] {
			completed = append(completed, t)
		}
	}
	return o.checkpoints.Append(ctx, &investigation.Checkpoint{
		ScreeningID:    ec.ScreeningID.String(),
		CompletedTypes: completed,
		TypeStates:     res.TypeStates,
		Knowledge:      res.Knowledge.Snapshot(),
		CreatedAt:      time.Now().UTC(),
	})
}

func (o *Orchestrator) restore(ctx context.Context, ec ExecutionContext, res *Result, skip map[investigation.InformationType]bool) error {
	cp, err := o.checkpoints.Latest(ctx, ec.ScreeningID.String())
	if err != nil {
		return err
	}
	if cp == nil {
		return nil
	}
	res.Knowledge.Restore(cp.Knowledge)
	for t, st := range cp.TypeStates {
		res.TypeStates[t] = st
	}
	for _, t := range cp.CompletedTypes {
		skip[t] = true
	}
	o.logger.Info("screening resumed from checkpoint",
		zap.String("screening_id", cp.ScreeningID),
		zap.Int("completed_types", len(cp.CompletedTypes)),
		zap.Time("checkpoint_at", cp.CreatedAt))
	return nil
}
