package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domain "github.com/veriscreen/screening-backend/internal/domain/compliance"
	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(DefaultRules(), zap.NewNop())
}

func TestEvaluateResolutionChain(t *testing.T) {
	e := newTestEngine(t)

	// US_CA has an explicit credit-report block that shadows the US rule.
	ev := e.Evaluate(values.Locale("US_CA"), values.CheckCreditReport, values.RoleFinancial, values.TierStandard)
	assert.False(t, ev.Permitted)
	assert.Contains(t, ev.BlockReason, "ICRAA")

	// US_TX has no own rules: the US parent rule applies.
	ev = e.Evaluate(values.Locale("US_TX"), values.CheckCriminalNational, values.RoleStandard, values.TierStandard)
	assert.True(t, ev.Permitted)
	require.NotNil(t, ev.LookbackDays)
	assert.Equal(t, 7*365, *ev.LookbackDays)
	assert.Contains(t, ev.Restrictions, "lookback limited to 2555 days")

	// No rule anywhere defaults to permitted.
	ev = e.Evaluate(values.LocaleAU, values.CheckEmploymentVerify, values.RoleStandard, values.TierStandard)
	assert.True(t, ev.Permitted)
	assert.Empty(t, ev.BlockReason)
}

func TestEvaluateRoleRestrictions(t *testing.T) {
	e := newTestEngine(t)

	// Credit reports in the US are restricted to a role allowlist.
	ev := e.Evaluate(values.LocaleUS, values.CheckCreditReport, values.RoleFinancial, values.TierStandard)
	assert.True(t, ev.Permitted)
	assert.True(t, ev.RequiresConsent)

	ev = e.Evaluate(values.LocaleUS, values.CheckCreditReport, values.RoleStandard, values.TierStandard)
	assert.False(t, ev.Permitted)
	assert.Contains(t, ev.BlockReason, "restricted to specific roles")
}

func TestEvaluateTierGating(t *testing.T) {
	e := newTestEngine(t)

	ev := e.Evaluate(values.LocaleUS, values.CheckDigitalFootprint, values.RoleStandard, values.TierStandard)
	assert.False(t, ev.Permitted)
	assert.Contains(t, ev.BlockReason, "enhanced tier")

	ev = e.Evaluate(values.LocaleUS, values.CheckDigitalFootprint, values.RoleStandard, values.TierEnhanced)
	assert.True(t, ev.Permitted)

	ev = e.Evaluate(values.LocaleUS, values.CheckBusinessAffiliation, values.RoleStandard, values.TierStandard)
	assert.False(t, ev.Permitted)
}

func TestEvaluateAlwaysConsent(t *testing.T) {
	e := newTestEngine(t)

	// SSN trace has no locale rule yet still demands consent everywhere.
	ev := e.Evaluate(values.LocaleAU, values.CheckSSNTrace, values.RoleStandard, values.TierStandard)
	assert.True(t, ev.Permitted)
	assert.True(t, ev.RequiresConsent)
	assert.Contains(t, ev.Restrictions, "subject consent required")
}

func TestEvaluateEUBlocks(t *testing.T) {
	e := newTestEngine(t)

	ev := e.Evaluate(values.Locale("EU_DE"), values.CheckCriminalNational, values.RoleStandard, values.TierStandard)
	assert.False(t, ev.Permitted)
	assert.Contains(t, ev.BlockReason, "GDPR")

	ev = e.Evaluate(values.Locale("EU_DE"), values.CheckSanctionsScreen, values.RoleStandard, values.TierStandard)
	assert.True(t, ev.Permitted)
}

func TestValidateServiceConfig(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.ValidateServiceConfig(ServiceConfig{Tier: values.TierStandard, Degree: values.DegreeD3})
	require.Error(t, err)
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "d3_requires_enhanced", appErr.Code)

	warnings, err := e.ValidateServiceConfig(ServiceConfig{
		Tier:   values.TierEnhanced,
		Degree: values.DegreeD3,
		ExcludedTypes: []investigation.InformationType{
			investigation.InfoIdentity,
			investigation.InfoSanctions,
		},
	})
	require.NoError(t, err)
	assert.Len(t, warnings, 2)

	warnings, err = e.ValidateServiceConfig(ServiceConfig{Tier: values.TierStandard, Degree: values.DegreeD1})
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestPermittedChecks(t *testing.T) {
	e := newTestEngine(t)

	permitted := e.PermittedChecks(values.LocaleUS, values.RoleStandard, values.TierStandard)
	assert.True(t, permitted[values.CheckCriminalNational])
	assert.False(t, permitted[values.CheckCreditReport], "role allowlist excludes standard roles")
	assert.False(t, permitted[values.CheckDigitalFootprint], "enhanced-only at standard tier")

	enhanced := e.PermittedChecks(values.LocaleUS, values.RoleFinancial, values.TierEnhanced)
	assert.True(t, enhanced[values.CheckCreditReport])
	assert.True(t, enhanced[values.CheckDigitalFootprint])
}

type stubRuleRepo struct {
	records []*domain.RuleRecord
}

func (s *stubRuleRepo) Save(context.Context, *domain.RuleRecord) error { return nil }
func (s *stubRuleRepo) GetByID(context.Context, uuid.UUID) (*domain.RuleRecord, error) {
	return nil, nil
}
func (s *stubRuleRepo) Active(context.Context, uuid.UUID, time.Time) ([]*domain.RuleRecord, error) {
	return s.records, nil
}
func (s *stubRuleRepo) Deactivate(context.Context, uuid.UUID) error { return nil }

func TestLoaderOverlay(t *testing.T) {
	now := time.Now().UTC()
	tenantID := uuid.Must(uuid.NewV7())

	block, err := domain.NewRuleRecord(values.LocaleUS, values.CheckAdverseMedia, false,
		"tenant contract excludes media screening")
	require.NoError(t, err)
	block.Priority = 10

	// Lower-priority record permitting the same check loses to the block.
	permit, err := domain.NewRuleRecord(values.LocaleUS, values.CheckAdverseMedia, true, "")
	require.NoError(t, err)
	permit.Priority = 1

	loader := NewLoader(&stubRuleRepo{records: []*domain.RuleRecord{permit, block}}, zap.NewNop())
	engine, err := loader.EngineFor(context.Background(), tenantID, now)
	require.NoError(t, err)

	ev := engine.Evaluate(values.LocaleUS, values.CheckAdverseMedia, values.RoleStandard, values.TierStandard)
	assert.False(t, ev.Permitted)
	assert.Contains(t, ev.BlockReason, "tenant contract")

	// Baseline rules survive the overlay.
	ev = engine.Evaluate(values.LocaleUS, values.CheckCriminalNational, values.RoleStandard, values.TierStandard)
	assert.True(t, ev.Permitted)
}

func TestLoaderNilRepoYieldsBaseline(t *testing.T) {
	loader := NewLoader(nil, zap.NewNop())
	engine, err := loader.EngineFor(context.Background(), uuid.Nil, time.Now())
	require.NoError(t, err)

	ev := engine.Evaluate(values.LocaleUS, values.CheckCriminalNational, values.RoleStandard, values.TierStandard)
	assert.True(t, ev.Permitted)
}
