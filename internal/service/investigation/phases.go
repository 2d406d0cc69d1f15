package investigation

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/investigation"
)

// PhaseOutcome aggregates the type outcomes of one phase.
type PhaseOutcome struct {
	Phase    investigation.Phase
	Types    map[investigation.InformationType]*TypeOutcome
	Warnings []string
}

// PhaseRunner sequences one phase's information types. Foundation and Network
// run sequentially so later types see earlier facts; Records and Intelligence
// fan out, each type working on its own knowledge snapshot that is merged back
// at the phase boundary.
type PhaseRunner struct {
	investigator     *TypeInvestigator
	maxParallelTypes int
	logger           *zap.Logger
}

func NewPhaseRunner(investigator *TypeInvestigator, maxParallelTypes int, logger *zap.Logger) *PhaseRunner {
	if maxParallelTypes <= 0 {
		maxParallelTypes = 6
	}
	return &PhaseRunner{investigator: investigator, maxParallelTypes: maxParallelTypes, logger: logger}
}

// Run executes every remaining type of a phase. Types in skip are already
// complete (a resumed screening) and are not re-run. Reconciliation is not
// handled here; it queries no providers and the orchestrator computes it
// directly over the knowledge base.
func (pr *PhaseRunner) Run(ctx context.Context, phase investigation.Phase, kb *investigation.KnowledgeBase, ec ExecutionContext, skip map[investigation.InformationType]bool) (*PhaseOutcome, error) {
	var pending []investigation.InformationType
	for _, t := range investigation.PhaseTypes[phase] {
		if !skip[t] {
			pending = append(pending, t)
		}
	}

	out := &PhaseOutcome{Phase: phase, Types: make(map[investigation.InformationType]*TypeOutcome)}
	if len(pending) == 0 {
		return out, nil
	}

	var err error
	switch phase {
	case investigation.PhaseRecords, investigation.PhaseIntelligence:
		err = pr.runParallel(ctx, pending, kb, ec, out)
	default:
		err = pr.runSequential(ctx, pending, kb, ec, out)
	}
	if err != nil {
		return nil, err
	}

	return out, pr.enforceFailureSemantics(phase, out)
}

func (pr *PhaseRunner) runSequential(ctx context.Context, types []investigation.InformationType, kb *investigation.KnowledgeBase, ec ExecutionContext, out *PhaseOutcome) error {
	for _, t := range types {
		to, err := pr.investigator.Investigate(ctx, t, kb, ec)
		if err != nil {
			return err
		}
		out.Types[t] = to
	}
	return nil
}

// runParallel gives each type a private copy of the knowledge base and merges
// the new facts back once the whole group finishes. The base KnowledgeBase is
// unsynchronized, so no two tasks may ever share one.
func (pr *PhaseRunner) runParallel(ctx context.Context, types []investigation.InformationType, kb *investigation.KnowledgeBase, ec ExecutionContext, out *PhaseOutcome) error {
	snapshot := kb.Snapshot()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pr.maxParallelTypes)

	copies := make(map[investigation.InformationType]*investigation.KnowledgeBase, len(types))
	for _, t := range types {
		private := investigation.NewKnowledgeBase()
		private.Restore(snapshot)
		copies[t] = private

		g.Go(func() error {
			to, err := pr.investigator.Investigate(gctx, t, private, ec)
			if err != nil {
				return err
			}
			mu.Lock()
			out.Types[t] = to
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, t := range types {
		if facts := copies[t].Facts(t); len(facts) > 0 {
			kb.Add(t, facts...)
		}
	}
	return nil
}

// enforceFailureSemantics applies the per-phase rules: an unresolved identity
// or an unobtainable sanctions screen halts the screening; every other capped
// or degraded type becomes a warning on a partial result.
func (pr *PhaseRunner) enforceFailureSemantics(phase investigation.Phase, out *PhaseOutcome) error {
	for t, to := range out.Types {
		st := to.State
		switch {
		case t == investigation.InfoIdentity && capped(st):
			return errors.NewInvestigationHaltedError("identity_unresolved",
				fmt.Sprintf("identity confidence %.2f after %d iterations", st.FinalConfidence.Float(), len(st.Iterations)))
		case t == investigation.InfoSanctions && unobtainable(st):
			return errors.NewInvestigationHaltedError("sanctions_unavailable",
				"sanctions screening produced no successful queries")
		case capped(st):
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("%s completed at confidence %.2f after hitting its iteration cap", t, st.FinalConfidence.Float()))
		case st.CompletionReason == investigation.CompletionSkipped:
			pr.logger.Info("type skipped in phase",
				zap.String("phase", string(phase)),
				zap.String("info_type", string(t)),
				zap.String("reason", st.SkipReason))
		}
	}
	return nil
}

// capped means the loop stopped without reaching its confidence threshold.
func capped(st *investigation.TypeState) bool {
	return st.CompletionReason == investigation.CompletionMaxIterations ||
		st.CompletionReason == investigation.CompletionDiminishingReturns
}

// unobtainable means the type ran but not a single query succeeded. A
// compliance skip is not unobtainable: the rule engine already decided the
// check may not run, and config validation surfaced that as a warning.
func unobtainable(st *investigation.TypeState) bool {
	if st.CompletionReason == investigation.CompletionSkipped {
		return false
	}
	return st.Summary.StatusCounts[investigation.QuerySuccess] == 0
}
