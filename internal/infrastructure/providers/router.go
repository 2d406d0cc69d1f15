package providers

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/provider"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/infrastructure/cache"
	"github.com/veriscreen/screening-backend/internal/infrastructure/config"
	"github.com/veriscreen/screening-backend/internal/infrastructure/cost"
)

// FailureReason summarizes why a route exhausted all options.
type FailureReason string

const (
	FailureAllCircuitsOpen    FailureReason = "all_circuits_open"
	FailureAllProvidersFailed FailureReason = "all_providers_failed"
	FailureAllRateLimited     FailureReason = "all_rate_limited"
)

// ProviderError records one provider's terminal error during a route.
type ProviderError struct {
	ProviderID string `json:"provider_id"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// RouteFailure is attached to an unsuccessful RoutedResult.
type RouteFailure struct {
	Reason         FailureReason   `json:"reason"`
	ProviderErrors []ProviderError `json:"provider_errors,omitempty"`
}

// RouteRequest asks the router to execute one check for a subject.
type RouteRequest struct {
	QueryID     uuid.UUID
	CheckType   values.CheckType
	Subject     *investigation.SubjectIdentifiers
	Locale      values.Locale
	Tier        values.ServiceTier
	EntityID    uuid.UUID
	TenantID    uuid.UUID
	ScreeningID *uuid.UUID
	Extras      map[string]string
	Origin      values.DataOrigin
	AllowStale  bool

	// PreferredProvider, when set, is tried first. The planner sets it so a
	// per-provider query actually reaches its provider instead of whichever
	// candidate sorts cheapest.
	PreferredProvider string
}

// RoutedResult is the normalized outcome the rest of the system consumes.
type RoutedResult struct {
	Success        bool                   `json:"success"`
	ProviderID     string                 `json:"provider_id,omitempty"`
	NormalizedData map[string]interface{} `json:"normalized_data,omitempty"`
	CacheHit       bool                   `json:"cache_hit"`
	Stale          bool                   `json:"stale"`
	Attempts       int                    `json:"attempts"`
	Cost           values.Cost            `json:"cost"`
	Duration       time.Duration          `json:"duration"`
	Failure        *RouteFailure          `json:"failure,omitempty"`
	TimedOut       bool                   `json:"timed_out"`
	RateLimited    bool                   `json:"rate_limited"`
}

// Router executes checks against the provider pool under compliance of the
// breaker, rate limiter, cache, and budget collaborators. Locally recovered
// errors (RateLimited, CircuitOpen, transient failures) never escape it;
// BudgetExceeded and Cancelled do.
type Router struct {
	registry *Registry
	breakers *BreakerRegistry
	limiter  *RateLimiter
	cache    *cache.ResponseCache
	costs    *cost.Service
	cfg      config.RouterConfig
	logger   *zap.Logger

	// sem caps in-flight provider calls process-wide, on top of the
	// per-provider token buckets. Nil when the cap is disabled.
	sem *semaphore.Weighted

	// sleep is indirect for tests.
	sleep func(time.Duration)
}

func NewRouter(registry *Registry, breakers *BreakerRegistry, limiter *RateLimiter, responseCache *cache.ResponseCache, costs *cost.Service, cfg config.RouterConfig, logger *zap.Logger) *Router {
	r := &Router{
		registry: registry,
		breakers: breakers,
		limiter:  limiter,
		cache:    responseCache,
		costs:    costs,
		cfg:      cfg,
		logger:   logger,
		sleep:    time.Sleep,
	}
	if cfg.MaxConcurrentOverall > 0 {
		r.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentOverall))
	}
	return r
}

// estimateCost derives a spend estimate from the capability cost tier for
// the budget pre-flight.
func estimateCost(costTier int) values.Cost {
	if costTier < 1 {
		costTier = 1
	}
	return values.MustNewCost(float64(costTier) * 5.0)
}

// Route executes one check. Candidates are tried in selection order
// (preferred provider first); each candidate's own cache entry is consulted
// before its breaker, token bucket and the tenant budget. Cache keys carry
// the provider ID, so one provider's response is never served for another's.
func (r *Router) Route(ctx context.Context, req RouteRequest) (*RoutedResult, error) {
	start := time.Now()
	if req.Origin == "" {
		req.Origin = values.OriginPaidExternal
	}
	var tenantScope *uuid.UUID
	if req.Origin == values.OriginCustomerProvided {
		t := req.TenantID
		tenantScope = &t
	}

	result := &RoutedResult{}

	candidates, err := r.registry.SelectForRoute(req.CheckType, req.Locale, req.Tier)
	if err != nil {
		return nil, err
	}
	if req.PreferredProvider != "" {
		candidates = preferProvider(candidates, req.PreferredProvider)
	}

	var provErrors []ProviderError
	allSkippedOpen := true
	anyRateLimitSkip := false

	for i, p := range candidates {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError(ctx.Err())
		}

		// Cache first: a usable entry for this provider needs no breaker
		// headroom, token or budget.
		entry, freshness, err := r.cache.Lookup(ctx, req.EntityID, p.ID(), req.CheckType)
		if err != nil {
			return nil, err
		}
		if entry != nil && (freshness == cache.Fresh || (freshness == cache.Stale && req.AllowStale)) {
			return r.finishCached(req, result, entry, freshness == cache.Stale, start), nil
		}

		if r.breakers.IsOpen(p.ID()) {
			provErrors = append(provErrors, ProviderError{ProviderID: p.ID(), Code: "circuit_open", Message: "skipped, circuit open"})
			continue
		}
		allSkippedOpen = false

		lastProvider := i == len(candidates)-1
		if err := r.limiter.TryAcquire(p.ID(), 1); err != nil {
			if !lastProvider {
				anyRateLimitSkip = true
				provErrors = append(provErrors, ProviderError{ProviderID: p.ID(), Code: errors.Code(err), Message: "skipped, rate limited"})
				continue
			}
			// Last hope: wait for a token rather than fail the route.
			if err := r.limiter.Acquire(ctx, p.ID(), 1); err != nil {
				return nil, err
			}
		}

		estimate := estimateCost(r.registry.CostTierFor(p.ID(), req.CheckType, req.Locale))
		if status, err := r.costs.CheckBudget(req.TenantID, estimate); err != nil {
			return nil, err
		} else if status == cost.BudgetWarning {
			r.logger.Warn("tenant approaching budget limit",
				zap.String("tenant_id", req.TenantID.String()),
				zap.String("check_type", string(req.CheckType)))
		}

		// Concurrent misses for the same (entity, provider, check) collapse
		// to one call.
		fetched, gerr := r.cache.GetOrFetch(ctx, req.EntityID, p.ID(), req.CheckType, req.AllowStale, req.Origin, tenantScope,
			func(fctx context.Context) (*provider.Result, error) {
				if r.sem != nil {
					if err := r.sem.Acquire(fctx, 1); err != nil {
						return nil, errors.NewCancelledError(err)
					}
					defer r.sem.Release(1)
				}
				res, perr := r.callWithRetries(fctx, p, req, result)
				if perr != nil {
					return nil, perr
				}
				r.costs.RecordCost(req.QueryID, p.ID(), req.CheckType, res.CostIncurred, req.TenantID, req.ScreeningID)
				return res, nil
			})
		if gerr == nil {
			if fetched.Hit {
				return r.finishCached(req, result, fetched.Response, fetched.WasStale, start), nil
			}
			result.Success = true
			result.ProviderID = fetched.Response.ProviderID
			result.NormalizedData = fetched.Response.NormalizedData
			if c, cerr := values.NewCostFromFloat(fetched.Response.CostIncurred); cerr == nil {
				result.Cost = c
			}
			result.Duration = time.Since(start)
			routeOutcomes.WithLabelValues(string(req.CheckType), "success").Inc()
			return result, nil
		}
		if errors.IsType(gerr, errors.ErrorTypeCancelled) || errors.IsType(gerr, errors.ErrorTypeBudget) {
			return nil, gerr
		}
		provErrors = append(provErrors, ProviderError{ProviderID: p.ID(), Code: errors.Code(gerr), Message: gerr.Error()})
		if i < len(candidates)-1 {
			r.logger.Info("provider failed, trying fallback",
				zap.String("provider_id", p.ID()),
				zap.String("fallback_id", candidates[i+1].ID()),
				zap.String("check_type", string(req.CheckType)))
			failovers.WithLabelValues(p.ID()).Inc()
		}
	}

	reason := FailureAllProvidersFailed
	if allSkippedOpen {
		reason = FailureAllCircuitsOpen
	} else if anyRateLimitSkip && len(provErrors) > 0 && allRateLimited(provErrors) {
		reason = FailureAllRateLimited
	}
	result.Failure = &RouteFailure{Reason: reason, ProviderErrors: provErrors}
	result.Duration = time.Since(start)
	routeOutcomes.WithLabelValues(string(req.CheckType), "failure").Inc()
	return result, nil
}

// finishCached fills the result from a cache entry and books the savings.
func (r *Router) finishCached(req RouteRequest, result *RoutedResult, entry *cache.CachedResponse, stale bool, start time.Time) *RoutedResult {
	result.Success = true
	result.CacheHit = true
	result.Stale = stale
	result.ProviderID = entry.ProviderID
	result.NormalizedData = entry.NormalizedData
	if saved, err := values.NewCostFromFloat(entry.CostIncurred); err == nil {
		r.costs.RecordCacheSavings(req.TenantID, saved)
	}
	result.Duration = time.Since(start)
	cacheHits.WithLabelValues(string(req.CheckType)).Inc()
	routeOutcomes.WithLabelValues(string(req.CheckType), "success").Inc()
	return result
}

// preferProvider moves the named candidate to the front, keeping the
// remaining selection order for failover.
func preferProvider(candidates []provider.Provider, id string) []provider.Provider {
	for i, p := range candidates {
		if p.ID() != id {
			continue
		}
		if i == 0 {
			return candidates
		}
		reordered := make([]provider.Provider, 0, len(candidates))
		reordered = append(reordered, p)
		reordered = append(reordered, candidates[:i]...)
		reordered = append(reordered, candidates[i+1:]...)
		return reordered
	}
	return candidates
}

func allRateLimited(errs []ProviderError) bool {
	for _, e := range errs {
		if e.Code != "rate_limited" {
			return false
		}
	}
	return true
}

// callWithRetries runs attempts against one provider with exponential backoff
// and jitter. Wall-clock timeouts abort the attempt, are recorded, and move
// the route to the next provider without burning the retry budget.
func (r *Router) callWithRetries(ctx context.Context, p provider.Provider, req RouteRequest, result *RoutedResult) (*provider.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError(ctx.Err())
		}
		result.Attempts++

		callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		out, err := r.breakers.Execute(p.ID(), func() (interface{}, error) {
			res, cerr := p.ExecuteCheck(callCtx, req.CheckType, req.Subject, req.Locale, req.Extras)
			if cerr != nil {
				return nil, cerr
			}
			if !res.Success {
				// Unsuccessful responses count against the breaker.
				return nil, errors.NewProviderFailureError(p.ID(), "provider reported failure")
			}
			return res, nil
		})
		cancel()

		if err == nil {
			return out.(*provider.Result), nil
		}
		lastErr = err

		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			// A timed-out provider stays abandoned for this route; the
			// remaining attempts go to the fallback instead.
			result.TimedOut = true
			return nil, errors.NewProviderTimeoutError(p.ID())
		}
		if errors.IsType(lastErr, errors.ErrorTypeCancelled) {
			return nil, lastErr
		}
		if !errors.IsRetryable(lastErr) {
			return nil, lastErr
		}
		if attempt < r.cfg.MaxRetries {
			r.sleep(r.backoff(attempt))
		}
	}
	return nil, lastErr
}

// backoff is base * 2^(attempt-1) with +/- jitter, capped at the max delay.
func (r *Router) backoff(attempt int) time.Duration {
	d := r.cfg.BaseRetryDelay << (attempt - 1)
	if d > r.cfg.MaxRetryDelay {
		d = r.cfg.MaxRetryDelay
	}
	jitter := 1 + r.cfg.RetryJitter*(2*rand.Float64()-1)
	return time.Duration(float64(d) * jitter)
}

// RouteBatch executes independent requests concurrently with a fan-out cap,
// returning results in input order. Request-level failures (budget, cancel)
// abort the whole batch.
func (r *Router) RouteBatch(ctx context.Context, reqs []RouteRequest) ([]*RoutedResult, error) {
	results := make([]*RoutedResult, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	fanOut := r.cfg.BatchFanOut
	if fanOut <= 0 {
		fanOut = 10
	}
	g.SetLimit(fanOut)

	for i, req := range reqs {
		g.Go(func() error {
			res, err := r.Route(gctx, req)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
