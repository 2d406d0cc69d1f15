package providers

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/infrastructure/cache"
	"github.com/veriscreen/screening-backend/internal/infrastructure/config"
	"github.com/veriscreen/screening-backend/internal/infrastructure/cost"
	"github.com/veriscreen/screening-backend/internal/requestcontext"
	"github.com/veriscreen/screening-backend/internal/testutil"
)

type routerFixture struct {
	router   *Router
	registry *Registry
	breakers *BreakerRegistry
	limiter  *RateLimiter
	costs    *cost.Service
}

func newRouterFixture(t *testing.T, pool ...*testutil.Provider) *routerFixture {
	t.Helper()
	return newRouterFixtureWithConfig(t, config.RouterConfig{
		MaxRetries:     2,
		BaseRetryDelay: time.Millisecond,
		MaxRetryDelay:  10 * time.Millisecond,
		RetryJitter:    0,
		Timeout:        200 * time.Millisecond,
		BatchFanOut:    4,
	}, pool...)
}

func newRouterFixtureWithConfig(t *testing.T, cfg config.RouterConfig, pool ...*testutil.Provider) *routerFixture {
	t.Helper()
	logger := zap.NewNop()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	enc, err := cache.NewEncryptor(bytes.Repeat([]byte{0x11}, 32))
	require.NoError(t, err)
	pair := config.TTLPair{FreshTTL: time.Hour, StaleTTL: 2 * time.Hour}
	responseCache := cache.NewResponseCache(client, enc, config.CacheConfig{
		Criminal: pair, Credit: pair, Employment: pair,
		Education: pair, Identity: pair, Default: pair,
	}, logger)

	breakers := NewBreakerRegistry(testBreakerConfig(), logger)
	registry := NewRegistry(breakers, logger)
	for _, p := range pool {
		registry.Register(p)
	}
	limiter := NewRateLimiter(LimitConfig{TokensPerSecond: 1000, MaxTokens: 1000})
	costs := cost.NewService(config.BudgetConfig{WarningThreshold: 0.8, HardLimit: true}, logger)

	router := NewRouter(registry, breakers, limiter, responseCache, costs, cfg, logger)
	router.sleep = func(time.Duration) {}

	return &routerFixture{router: router, registry: registry, breakers: breakers, limiter: limiter, costs: costs}
}

func routeRequest(tenantID uuid.UUID, ct values.CheckType) (context.Context, RouteRequest) {
	rc := requestcontext.New(tenantID, uuid.Must(uuid.NewV7()), requestcontext.ActorService, values.LocaleUS)
	ctx := requestcontext.Bind(context.Background(), rc)
	return ctx, RouteRequest{
		QueryID:   uuid.Must(uuid.NewV7()),
		CheckType: ct,
		Subject:   &investigation.SubjectIdentifiers{FullName: "Jane Doe"},
		Locale:    values.LocaleUS,
		Tier:      values.TierStandard,
		EntityID:  uuid.Must(uuid.NewV7()),
		TenantID:  tenantID,
	}
}

func TestRouteSuccessThenCacheHit(t *testing.T) {
	p := testutil.NewProvider("county-direct", 1, values.CheckCriminalCounty)
	p.Responses[values.CheckCriminalCounty] = map[string]interface{}{"records": "none"}
	fx := newRouterFixture(t, p)
	tenantID := uuid.Must(uuid.NewV7())
	ctx, req := routeRequest(tenantID, values.CheckCriminalCounty)

	res, err := fx.router.Route(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "county-direct", res.ProviderID)
	assert.False(t, res.CacheHit)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, map[string]interface{}{"records": "none"}, res.NormalizedData)
	assert.True(t, res.Cost.Amount().Equal(decimal.NewFromInt(1)))

	// Same entity and check again: served from cache, provider untouched.
	res, err = fx.router.Route(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.CacheHit)
	assert.False(t, res.Stale)
	assert.Equal(t, "county-direct", res.ProviderID)
	assert.Equal(t, 1, p.Calls())

	summary := fx.costs.Summarize(tenantID)
	assert.True(t, summary.Total.Equal(decimal.NewFromInt(1)))
	assert.True(t, summary.CacheSavings.Equal(decimal.NewFromInt(1)))
	assert.InDelta(t, 0.5, summary.CacheHitRate, 1e-9)
}

func TestRouteRetriesTransientFailure(t *testing.T) {
	p := testutil.NewProvider("flaky", 1, values.CheckEmploymentVerify)
	p.FailFirst = 1
	fx := newRouterFixture(t, p)
	ctx, req := routeRequest(uuid.Must(uuid.NewV7()), values.CheckEmploymentVerify)

	res, err := fx.router.Route(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, p.Calls())
}

func TestRouteFailsOverToNextProvider(t *testing.T) {
	broken := testutil.NewProvider("primary", 1, values.CheckSSNTrace)
	broken.Err = errors.NewProviderFailureError("primary", "upstream down")
	backup := testutil.NewProvider("backup", 2, values.CheckSSNTrace)
	fx := newRouterFixture(t, broken, backup)
	ctx, req := routeRequest(uuid.Must(uuid.NewV7()), values.CheckSSNTrace)

	res, err := fx.router.Route(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "backup", res.ProviderID)
	// Retry budget burned on the primary plus one clean call to the backup.
	assert.Equal(t, 3, res.Attempts)
	assert.Nil(t, res.Failure)
}

func TestRouteAllProvidersExhausted(t *testing.T) {
	p := testutil.NewProvider("only", 1, values.CheckCreditReport)
	p.Err = errors.NewProviderFailureError("only", "upstream down")
	fx := newRouterFixture(t, p)
	ctx, req := routeRequest(uuid.Must(uuid.NewV7()), values.CheckCreditReport)

	res, err := fx.router.Route(ctx, req)
	require.NoError(t, err, "provider exhaustion is a result, not an error")
	assert.False(t, res.Success)
	require.NotNil(t, res.Failure)
	assert.Equal(t, FailureAllProvidersFailed, res.Failure.Reason)
	require.Len(t, res.Failure.ProviderErrors, 1)
	assert.Equal(t, "only", res.Failure.ProviderErrors[0].ProviderID)
	assert.Equal(t, "provider_failure", res.Failure.ProviderErrors[0].Code)
}

func TestRouteAllCircuitsOpen(t *testing.T) {
	p := testutil.NewProvider("tripped", 1, values.CheckSanctionsScreen)
	fx := newRouterFixture(t, p)
	for i := 0; i < 3; i++ {
		_, _ = fx.breakers.Execute("tripped", func() (interface{}, error) {
			return nil, errors.NewProviderFailureError("tripped", "boom")
		})
	}
	require.True(t, fx.breakers.IsOpen("tripped"))

	ctx, req := routeRequest(uuid.Must(uuid.NewV7()), values.CheckSanctionsScreen)
	res, err := fx.router.Route(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.NotNil(t, res.Failure)
	assert.Equal(t, FailureAllCircuitsOpen, res.Failure.Reason)
	assert.Equal(t, 0, p.Calls())
}

func TestRouteRateLimitedSkipsToFallback(t *testing.T) {
	limited := testutil.NewProvider("limited", 1, values.CheckSSNTrace)
	open := testutil.NewProvider("open", 2, values.CheckSSNTrace)
	fx := newRouterFixture(t, limited, open)

	// Drain the cheap provider's bucket; it refills too slowly to matter.
	fx.limiter.Configure("limited", LimitConfig{TokensPerSecond: 0.001, MaxTokens: 1})
	require.NoError(t, fx.limiter.TryAcquire("limited", 1))

	ctx, req := routeRequest(uuid.Must(uuid.NewV7()), values.CheckSSNTrace)
	res, err := fx.router.Route(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "open", res.ProviderID)
	assert.Equal(t, 0, limited.Calls())
}

func TestRouteBudgetHardLimitAborts(t *testing.T) {
	p := testutil.NewProvider("pricey", 1, values.CheckCreditReport)
	fx := newRouterFixture(t, p)
	tenantID := uuid.Must(uuid.NewV7())

	limit := decimal.NewFromInt(1)
	fx.costs.SetBudget(tenantID, cost.Budget{DailyLimit: &limit, HardLimit: true})

	ctx, req := routeRequest(tenantID, values.CheckCreditReport)
	_, err := fx.router.Route(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeBudget))
	assert.Equal(t, 0, p.Calls())
}

func TestRouteCacheIsScopedToProvider(t *testing.T) {
	alpha := testutil.NewProvider("alpha", 1, values.CheckCriminalCounty)
	alpha.Responses[values.CheckCriminalCounty] = map[string]interface{}{"source": "alpha"}
	beta := testutil.NewProvider("beta", 2, values.CheckCriminalCounty)
	beta.Responses[values.CheckCriminalCounty] = map[string]interface{}{"source": "beta"}
	fx := newRouterFixture(t, alpha, beta)
	ctx, req := routeRequest(uuid.Must(uuid.NewV7()), values.CheckCriminalCounty)

	res, err := fx.router.Route(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "alpha", res.ProviderID)
	assert.False(t, res.CacheHit)

	// Steering the same entity and check to the other provider must reach
	// that provider, not replay the first one's cached payload.
	req.PreferredProvider = "beta"
	res, err = fx.router.Route(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "beta", res.ProviderID)
	assert.False(t, res.CacheHit)
	assert.Equal(t, map[string]interface{}{"source": "beta"}, res.NormalizedData)
	assert.Equal(t, 1, alpha.Calls())
	assert.Equal(t, 1, beta.Calls())

	// Without a preference the cheapest candidate's own entry serves the hit.
	req.PreferredProvider = ""
	res, err = fx.router.Route(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.CacheHit)
	assert.Equal(t, "alpha", res.ProviderID)
	assert.Equal(t, 1, alpha.Calls())
}

func TestRouteOverallConcurrencyCap(t *testing.T) {
	p := testutil.NewProvider("slow", 1, values.CheckEmploymentVerify)
	p.Latency = 20 * time.Millisecond
	fx := newRouterFixtureWithConfig(t, config.RouterConfig{
		MaxRetries:           2,
		BaseRetryDelay:       time.Millisecond,
		MaxRetryDelay:        10 * time.Millisecond,
		Timeout:              time.Second,
		BatchFanOut:          4,
		MaxConcurrentOverall: 1,
	}, p)

	// Distinct entities so every request has to reach the provider.
	ctx, first := routeRequest(uuid.Must(uuid.NewV7()), values.CheckEmploymentVerify)
	batch := []RouteRequest{first}
	for i := 0; i < 3; i++ {
		_, req := routeRequest(first.TenantID, values.CheckEmploymentVerify)
		batch = append(batch, req)
	}

	results, err := fx.router.RouteBatch(ctx, batch)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, res := range results {
		assert.True(t, res.Success)
	}
	assert.Equal(t, 4, p.Calls())
	assert.Equal(t, 1, p.MaxInFlight())
}

func TestRouteBatchPreservesOrder(t *testing.T) {
	criminal := testutil.NewProvider("criminal-src", 1, values.CheckCriminalNational)
	employment := testutil.NewProvider("employment-src", 1, values.CheckEmploymentVerify)
	fx := newRouterFixture(t, criminal, employment)
	tenantID := uuid.Must(uuid.NewV7())

	ctx, first := routeRequest(tenantID, values.CheckCriminalNational)
	_, second := routeRequest(tenantID, values.CheckEmploymentVerify)

	results, err := fx.router.RouteBatch(ctx, []RouteRequest{first, second})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "criminal-src", results[0].ProviderID)
	assert.Equal(t, "employment-src", results[1].ProviderID)
}
