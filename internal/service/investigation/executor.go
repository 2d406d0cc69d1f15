package investigation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/infrastructure/providers"
)

// Executor translates planned queries into routed requests and runs them
// concurrently up to the per-type fan-out cap.
type Executor struct {
	router        *providers.Router
	maxConcurrent int
	logger        *zap.Logger
}

func NewExecutor(router *providers.Router, maxConcurrent int, logger *zap.Logger) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Executor{router: router, maxConcurrent: maxConcurrent, logger: logger}
}

// ExecutionContext carries the identifiers routed requests need.
type ExecutionContext struct {
	Subject     *investigation.SubjectIdentifiers
	Locale      values.Locale
	Tier        values.ServiceTier
	EntityID    uuid.UUID
	TenantID    uuid.UUID
	ScreeningID uuid.UUID
}

// Execute runs all queries, returning per-query results in input order plus
// a summary. Budget exhaustion and cancellation abort the whole batch; every
// other failure degrades to a failed query result.
func (e *Executor) Execute(ctx context.Context, queries []*investigation.SearchQuery, ec ExecutionContext) ([]*investigation.QueryResult, investigation.ExecutionSummary, error) {
	results := make([]*investigation.QueryResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)

	for i, q := range queries {
		g.Go(func() error {
			res, err := e.executeOne(gctx, q, ec)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, investigation.ExecutionSummary{}, err
	}

	return results, summarize(results), nil
}

func (e *Executor) executeOne(ctx context.Context, q *investigation.SearchQuery, ec ExecutionContext) (*investigation.QueryResult, error) {
	start := time.Now()
	screeningID := ec.ScreeningID

	routed, err := e.router.Route(ctx, providers.RouteRequest{
		QueryID:           q.ID,
		CheckType:         q.CheckType,
		Subject:           ec.Subject,
		Locale:            ec.Locale,
		Tier:              ec.Tier,
		EntityID:          ec.EntityID,
		TenantID:          ec.TenantID,
		ScreeningID:       &screeningID,
		Extras:            q.Params,
		Origin:            values.OriginPaidExternal,
		AllowStale:        q.QueryType == investigation.QueryGapFill,
		PreferredProvider: q.ProviderID,
	})
	if err != nil {
		switch {
		case errors.IsType(err, errors.ErrorTypeBudget), errors.IsType(err, errors.ErrorTypeCancelled):
			// Fully abort: other tenants continue, this screening does not.
			return nil, err
		case errors.Code(err) == "no_provider_available":
			return &investigation.QueryResult{
				QueryID:  q.ID,
				Status:   investigation.QueryNoProvider,
				Duration: time.Since(start),
				Error:    err.Error(),
			}, nil
		default:
			return &investigation.QueryResult{
				QueryID:  q.ID,
				Status:   investigation.QueryFailed,
				Duration: time.Since(start),
				Error:    err.Error(),
			}, nil
		}
	}

	qr := &investigation.QueryResult{
		QueryID:    q.ID,
		Duration:   time.Since(start),
		CacheHit:   routed.CacheHit,
		ProviderID: routed.ProviderID,
	}
	switch {
	case routed.Success:
		qr.Status = investigation.QuerySuccess
		qr.NormalizedData = routed.NormalizedData
	case routed.TimedOut:
		qr.Status = investigation.QueryTimeout
	case routed.Failure != nil && routed.Failure.Reason == providers.FailureAllRateLimited:
		qr.Status = investigation.QueryRateLimited
	default:
		qr.Status = investigation.QueryFailed
		if routed.Failure != nil {
			qr.Error = string(routed.Failure.Reason)
		}
	}
	return qr, nil
}

func summarize(results []*investigation.QueryResult) investigation.ExecutionSummary {
	s := investigation.ExecutionSummary{
		Total:        len(results),
		StatusCounts: make(map[investigation.QueryStatus]int),
	}
	providersSeen := make(map[string]bool)
	for _, r := range results {
		s.StatusCounts[r.Status]++
		if r.CacheHit {
			s.CacheHits++
		}
		if r.ProviderID != "" && !providersSeen[r.ProviderID] {
			providersSeen[r.ProviderID] = true
			s.ProvidersUsed = append(s.ProvidersUsed, r.ProviderID)
		}
	}
	return s
}
