package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/provider"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/infrastructure/config"
	"github.com/veriscreen/screening-backend/internal/testutil"
)

func testBreakerConfig() config.BreakerConfig {
	return config.BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          50 * time.Millisecond,
		HalfOpenMaxCalls: 2,
	}
}

func newTestRegistry(t *testing.T) (*Registry, *BreakerRegistry) {
	t.Helper()
	breakers := NewBreakerRegistry(testBreakerConfig(), zap.NewNop())
	return NewRegistry(breakers, zap.NewNop()), breakers
}

func TestSelectOrdersByCostThenReliability(t *testing.T) {
	r, _ := newTestRegistry(t)

	cheap := testutil.NewProvider("cheap", 1, values.CheckCriminalNational)
	cheap.Reliable = 0.90
	cheaper := testutil.NewProvider("cheap-reliable", 1, values.CheckCriminalNational)
	cheaper.Reliable = 0.99
	premiumPrice := testutil.NewProvider("expensive", 3, values.CheckCriminalNational)

	r.Register(cheap)
	r.Register(cheaper)
	r.Register(premiumPrice)

	got, err := r.Select(values.CheckCriminalNational, values.LocaleUS, values.TierStandard)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "cheap-reliable", got[0].ID())
	assert.Equal(t, "cheap", got[1].ID())
	assert.Equal(t, "expensive", got[2].ID())
}

func TestSelectFiltersPremiumForStandardTier(t *testing.T) {
	r, _ := newTestRegistry(t)

	core := testutil.NewProvider("core-sanctions", 1, values.CheckSanctionsScreen)
	premium := testutil.NewProvider("osint-deep", 1, values.CheckSanctionsScreen)
	premium.Tier = provider.CategoryPremium
	r.Register(core)
	r.Register(premium)

	std, err := r.Select(values.CheckSanctionsScreen, values.LocaleUS, values.TierStandard)
	require.NoError(t, err)
	require.Len(t, std, 1)
	assert.Equal(t, "core-sanctions", std[0].ID())

	enh, err := r.Select(values.CheckSanctionsScreen, values.LocaleUS, values.TierEnhanced)
	require.NoError(t, err)
	assert.Len(t, enh, 2)
}

func TestSelectHonorsLocaleHierarchy(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Register(testutil.NewProvider("county-direct", 1, values.CheckCriminalCounty))

	// A US capability serves any US sub-jurisdiction.
	got, err := r.Select(values.CheckCriminalCounty, values.Locale("US_CA"), values.TierStandard)
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = r.Select(values.CheckCriminalCounty, values.LocaleUK, values.TierStandard)
	require.Error(t, err)
	assert.Equal(t, "no_provider_available", errors.Code(err))
}

func TestSelectSkipsUnhealthyProviders(t *testing.T) {
	r, _ := newTestRegistry(t)

	sick := testutil.NewProvider("flaky", 1, values.CheckSSNTrace)
	sick.HealthStatus = provider.StatusUnhealthy
	backup := testutil.NewProvider("backup", 2, values.CheckSSNTrace)
	r.Register(sick)
	r.Register(backup)

	// Health is refreshed by the probe loop; run one probe pass directly.
	r.probeAll(context.Background())
	assert.Equal(t, provider.StatusUnhealthy, r.Health("flaky").Status)

	got, err := r.Select(values.CheckSSNTrace, values.LocaleUS, values.TierStandard)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "backup", got[0].ID())
}

func TestSelectSkipsOpenCircuitsButSelectForRouteKeepsThem(t *testing.T) {
	r, breakers := newTestRegistry(t)
	r.Register(testutil.NewProvider("tripping", 1, values.CheckCreditReport))

	for i := 0; i < 3; i++ {
		_, _ = breakers.Execute("tripping", func() (interface{}, error) {
			return nil, errors.NewProviderFailureError("tripping", "boom")
		})
	}
	require.True(t, breakers.IsOpen("tripping"))

	_, err := r.Select(values.CheckCreditReport, values.LocaleUS, values.TierStandard)
	require.Error(t, err)

	// The router does its own circuit bookkeeping so it can tell
	// "all circuits open" apart from "nobody serves this check".
	got, err := r.SelectForRoute(values.CheckCreditReport, values.LocaleUS, values.TierStandard)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCostTierFor(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Register(testutil.NewProvider("county-direct", 2, values.CheckCriminalCounty))

	assert.Equal(t, 2, r.CostTierFor("county-direct", values.CheckCriminalCounty, values.LocaleUS))
	assert.Equal(t, 0, r.CostTierFor("county-direct", values.CheckCreditReport, values.LocaleUS))
	assert.Equal(t, 0, r.CostTierFor("unknown", values.CheckCriminalCounty, values.LocaleUS))
}

func TestRegisterReplacesEarlierRegistration(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Register(testutil.NewProvider("dup", 1, values.CheckSSNTrace))
	r.Register(testutil.NewProvider("dup", 2, values.CheckSSNTrace))

	p, ok := r.Get("dup")
	require.True(t, ok)
	assert.Equal(t, 2, p.Capabilities()[0].CostTier)
}
