package investigation

import (
	"context"

	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
)

// TypeOutcome is everything a single type's SAR loop produced.
type TypeOutcome struct {
	State              *investigation.TypeState
	Inconsistencies    []investigation.Inconsistency
	DiscoveredEntities []investigation.DiscoveredEntity
	Results            []*investigation.QueryResult
}

// TypeInvestigator runs the search-assess-refine loop for one information
// type: plan queries, execute them, extract facts, score confidence, and let
// the controller decide whether another refinement pass is worth its cost.
type TypeInvestigator struct {
	planner    *Planner
	executor   *Executor
	assessor   *Assessor
	scorer     *ConfidenceScorer
	controller *Controller
	logger     *zap.Logger
}

func NewTypeInvestigator(planner *Planner, executor *Executor, assessor *Assessor, controller *Controller, logger *zap.Logger) *TypeInvestigator {
	return &TypeInvestigator{
		planner:    planner,
		executor:   executor,
		assessor:   assessor,
		scorer:     NewConfidenceScorer(),
		controller: controller,
		logger:     logger,
	}
}

// Investigate drives the loop until the controller stops it. Budget
// exhaustion and cancellation propagate as errors; everything else degrades
// into the type state.
func (ti *TypeInvestigator) Investigate(ctx context.Context, t investigation.InformationType, kb *investigation.KnowledgeBase, ec ExecutionContext) (*TypeOutcome, error) {
	out := &TypeOutcome{State: &investigation.TypeState{InfoType: t}}
	st := out.State

	var gaps []Gap
	for iteration := 1; ; iteration++ {
		plan, err := ti.planner.PlanIteration(ctx, t, iteration, ec.Subject, kb, gaps, ec.Tier)
		if err != nil {
			return nil, err
		}
		if plan.SkippedReason != "" {
			st.CompletionReason = investigation.CompletionSkipped
			st.SkipReason = plan.SkippedReason
			ti.logger.Info("information type skipped",
				zap.String("info_type", string(t)),
				zap.String("reason", plan.SkippedReason))
			return out, nil
		}
		if len(plan.Queries) == 0 {
			// Nothing left to ask: a refinement pass with no queries cannot
			// raise confidence.
			st.CompletionReason = investigation.CompletionDiminishingReturns
			return out, nil
		}

		results, summary, err := ti.executor.Execute(ctx, plan.Queries, ec)
		if err != nil {
			return nil, err
		}
		out.Results = append(out.Results, results...)
		st.Summary = mergeSummaries(st.Summary, summary)

		assessment := ti.assessor.Assess(t, iteration, results, kb)
		out.Inconsistencies = append(out.Inconsistencies, assessment.Inconsistencies...)
		out.DiscoveredEntities = append(out.DiscoveredEntities, assessment.DiscoveredEntities...)
		gaps = assessment.Gaps

		factsBefore := kb.Count(t)
		newFacts := ti.absorb(t, kb, assessment.Facts)

		breakdown := ti.scorer.Score(t, kb, st.Summary)
		decision := ti.controller.Evaluate(t, st, breakdown, factsBefore, newFacts)

		st.Iterations = append(st.Iterations, investigation.IterationState{
			Iteration:       iteration,
			Phase:           investigation.SARRefine,
			QueriesExecuted: len(results),
			NewFacts:        newFacts,
			Confidence:      decision.Confidence,
		})
		st.FinalConfidence = decision.Confidence

		ti.logger.Debug("iteration assessed",
			zap.String("info_type", string(t)),
			zap.Int("iteration", iteration),
			zap.Int("new_facts", newFacts),
			zap.Float64("confidence", decision.Confidence.Float()),
			zap.Float64("gain", decision.Gain))

		if !decision.Continue {
			st.CompletionReason = decision.Reason
			return out, nil
		}
	}
}

// absorb adds facts not already held, returning how many carried new
// knowledge. A repeat of a known (type, value) pair from a new provider is
// stored for corroboration but does not count as gain.
func (ti *TypeInvestigator) absorb(t investigation.InformationType, kb *investigation.KnowledgeBase, facts []investigation.Fact) int {
	held := make(map[string]bool)
	pairs := make(map[string]bool)
	for _, f := range kb.Facts(t) {
		held[f.Type+"\x00"+f.Value+"\x00"+f.SourceProvider] = true
		pairs[f.Type+"\x00"+f.Value] = true
	}

	var fresh []investigation.Fact
	gained := 0
	for _, f := range facts {
		key := f.Type + "\x00" + f.Value + "\x00" + f.SourceProvider
		if held[key] {
			continue
		}
		held[key] = true
		fresh = append(fresh, f)
		pair := f.Type + "\x00" + f.Value
		if !pairs[pair] {
			pairs[pair] = true
			gained++
		}
	}
	if len(fresh) > 0 {
		kb.Add(t, fresh...)
	}
	return gained
}

func mergeSummaries(a, b investigation.ExecutionSummary) investigation.ExecutionSummary {
	a.Total += b.Total
	a.CacheHits += b.CacheHits
	if a.StatusCounts == nil {
		a.StatusCounts = make(map[investigation.QueryStatus]int)
	}
	for status, n := range b.StatusCounts {
		a.StatusCounts[status] += n
	}
	seen := make(map[string]bool, len(a.ProvidersUsed))
	for _, p := range a.ProvidersUsed {
		seen[p] = true
	}
	for _, p := range b.ProvidersUsed {
		if !seen[p] {
			seen[p] = true
			a.ProvidersUsed = append(a.ProvidersUsed, p)
		}
	}
	return a
}
