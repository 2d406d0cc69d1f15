package screening

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/veriscreen/screening-backend/internal/domain/audit"
	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/tenant"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/infrastructure/cache"
	"github.com/veriscreen/screening-backend/internal/infrastructure/config"
	"github.com/veriscreen/screening-backend/internal/infrastructure/cost"
	"github.com/veriscreen/screening-backend/internal/infrastructure/providers"
	"github.com/veriscreen/screening-backend/internal/requestcontext"
	"github.com/veriscreen/screening-backend/internal/service/compliance"
	"github.com/veriscreen/screening-backend/internal/service/entityres"
	invsvc "github.com/veriscreen/screening-backend/internal/service/investigation"
	"github.com/veriscreen/screening-backend/internal/service/risk"
	"github.com/veriscreen/screening-backend/internal/testutil"
)

// fullStack is the complete wiring one screening passes through, on in-memory
// infrastructure.
type fullStack struct {
	orchestrator *Orchestrator
	tenant       *tenant.Tenant
	profiles     *testutil.ProfileRepo
	auditRepo    *testutil.AuditRepo
	costs        *cost.Service
}

func newFullStack(t *testing.T, pool ...*testutil.Provider) *fullStack {
	t.Helper()
	logger := zap.NewNop()
	cfg := config.Defaults()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	enc, err := cache.NewEncryptor(bytes.Repeat([]byte{0x33}, 32))
	require.NoError(t, err)
	responseCache := cache.NewResponseCache(client, enc, cfg.Cache, logger)

	breakers := providers.NewBreakerRegistry(cfg.Breaker, logger)
	registry := providers.NewRegistry(breakers, logger)
	for _, p := range pool {
		registry.Register(p)
	}
	limiter := providers.NewRateLimiter(providers.LimitConfig{TokensPerSecond: 1000, MaxTokens: 1000})
	costs := cost.NewService(cfg.Budget, logger)
	router := providers.NewRouter(registry, breakers, limiter, responseCache, costs, config.RouterConfig{
		MaxRetries:     2,
		BaseRetryDelay: time.Millisecond,
		MaxRetryDelay:  5 * time.Millisecond,
		Timeout:        time.Second,
		BatchFanOut:    10,
	}, logger)

	auditRepo := testutil.NewAuditRepo()
	auditLog := audit.NewLogger(auditRepo, logger)

	planner := invsvc.NewPlanner(registry, logger)
	executor := invsvc.NewExecutor(router, cfg.Provider.MaxConcurrentQueries, logger)
	assessor := invsvc.NewAssessor(logger)
	controller := invsvc.NewController(invsvc.ControllerConfig{
		ConfidenceThreshold:     cfg.SAR.ConfidenceThreshold,
		FoundationThreshold:     cfg.SAR.FoundationConfidenceThreshold,
		MaxIterations:           cfg.SAR.MaxIterationsPerType,
		FoundationMaxIterations: cfg.SAR.FoundationMaxIterations,
		MinInformationGain:      cfg.SAR.MinGainThreshold,
	})
	typeInv := invsvc.NewTypeInvestigator(planner, executor, assessor, controller, logger)
	phases := invsvc.NewPhaseRunner(typeInv, cfg.Provider.MaxConcurrentQueries, logger)
	extractor := invsvc.NewExtractor(
		risk.NewClassifier(cfg.SAR.MinValidationConfidence),
		risk.NewSeverityCalculator(), nil, logger)
	investigator := invsvc.NewOrchestrator(phases, extractor, testutil.NewCheckpointStore(), logger)

	owner, err := tenant.NewTenant("acme-corp", "Acme Corp")
	require.NoError(t, err)
	profiles := testutil.NewProfileRepo()

	orch := NewOrchestrator(Deps{
		Tenants:      testutil.NewTenantRepo(owner),
		Compliance:   compliance.NewEngine(compliance.DefaultRules(), logger),
		Entities:     entityres.NewService(testutil.NewEntityRepo(), auditLog, logger),
		Investigator: investigator,
		Scorer:       risk.NewScorer(),
		Patterns:     risk.NewPatternRecognizer(),
		Anomaly:      risk.NewAnomalyDetector(),
		Compiler:     NewCompiler(cfg.SAR.MinFindingConfidence),
		Reports:      NewJSONReportGenerator(logger),
		Costs:        costs,
		Profiles:     profiles,
		AuditLog:     auditLog,
		Config:       cfg,
		Logger:       logger,
	})

	return &fullStack{
		orchestrator: orch,
		tenant:       owner,
		profiles:     profiles,
		auditRepo:    auditRepo,
		costs:        costs,
	}
}

func (fs *fullStack) bind(ctx context.Context) context.Context {
	rc := requestcontext.New(fs.tenant.ID, uuid.Must(uuid.NewV7()), requestcontext.ActorHuman, values.LocaleUS)
	return requestcontext.Bind(ctx, rc)
}

func identityFacts() []interface{} {
	return []interface{}{
		map[string]interface{}{"type": "full_name", "value": "John Q Public", "confidence": 0.95},
		map[string]interface{}{"type": "dob", "value": "1988-04-12", "confidence": 0.95},
		map[string]interface{}{"type": "address", "value": "12 Main St, Austin TX", "confidence": 0.95},
		map[string]interface{}{"type": "county", "value": "Travis", "confidence": 0.95},
		map[string]interface{}{"type": "alias", "value": "Jack Public", "confidence": 0.95},
	}
}

// screeningPool registers enough of a provider pool that identity resolves
// with corroboration across two sources and a criminal record surfaces.
func screeningPool() []*testutil.Provider {
	idv := testutil.NewProvider("idv-src", 1, values.CheckIdentityVerification)
	idv.Responses[values.CheckIdentityVerification] = map[string]interface{}{"facts": identityFacts()}

	trace := testutil.NewProvider("ssn-bureau", 1, values.CheckSSNTrace)
	trace.Responses[values.CheckSSNTrace] = map[string]interface{}{"facts": identityFacts()}

	criminal := testutil.NewProvider("county-direct", 1, values.CheckCriminalNational)
	criminal.Responses[values.CheckCriminalNational] = map[string]interface{}{
		"facts": []interface{}{
			map[string]interface{}{
				"type":       "criminal_record",
				"value":      "felony conviction for wire fraud",
				"confidence": 0.9,
				"date":       time.Now().UTC().AddDate(0, -6, 0).Format("2006-01-02"),
			},
		},
	}

	sanctions := testutil.NewProvider("ofac-feed", 1, values.CheckSanctionsScreen)
	sanctions.Responses[values.CheckSanctionsScreen] = map[string]interface{}{"facts": []interface{}{}}

	return []*testutil.Provider{idv, trace, criminal, sanctions}
}

func screeningRequest() *Request {
	dob := time.Date(1988, 4, 12, 0, 0, 0, 0, time.UTC)
	return &Request{
		Subject: investigation.SubjectIdentifiers{
			FullName:  "John Q Public",
			SSN:       "123-45-6789",
			DOB:       &dob,
			Addresses: []string{"12 Main St, Austin TX"},
		},
		Locale:       values.LocaleUS,
		Tier:         values.TierStandard,
		Degree:       values.DegreeD1,
		Role:         values.RoleStandard,
		ConsentToken: "consent-7c1a",
	}
}

func auditEventTypes(repo *testutil.AuditRepo) []audit.EventType {
	var out []audit.EventType
	for _, e := range repo.Events {
		out = append(out, e.Type)
	}
	return out
}

func TestRunFullScreening(t *testing.T) {
	fs := newFullStack(t, screeningPool()...)
	ctx := fs.bind(context.Background())

	scr, err := fs.orchestrator.Run(ctx, screeningRequest())
	require.NoError(t, err)

	// Types nobody serves cap out and degrade the run to partial.
	assert.Equal(t, StatusPartial, scr.Status)
	assert.NotEmpty(t, scr.Warnings)
	require.Len(t, scr.Phases, 6)
	for _, ph := range scr.Phases {
		assert.Equal(t, PhaseCompleted, ph.Status, "phase %s", ph.Phase)
	}

	require.NotNil(t, scr.Result)
	assert.Greater(t, scr.Result.OverallScore, 0.0)
	assert.NotEqual(t, values.RiskLow, scr.Result.RiskLevel)
	assert.Equal(t, 1, scr.Result.FindingCounts[investigation.CategoryCriminal])
	assert.Greater(t, scr.Result.Confidence, 0.0)

	// Both persona reports rendered.
	require.Len(t, scr.Reports, 2)
	personas := []Persona{scr.Reports[0].Persona, scr.Reports[1].Persona}
	assert.Contains(t, personas, PersonaHiringManager)
	assert.Contains(t, personas, PersonaComplianceOfficer)

	// The post-screening profile version feeds monitoring.
	require.NotEqual(t, uuid.Nil, scr.EntityID)
	current, _, err := fs.profiles.LastTwo(ctx, scr.EntityID)
	require.NoError(t, err)
	assert.Equal(t, scr.Result.OverallScore, current.RiskScore)

	events := auditEventTypes(fs.auditRepo)
	assert.Equal(t, audit.EventScreeningStarted, events[0])
	assert.Equal(t, audit.EventScreeningCompleted, events[len(events)-1])
	assert.Contains(t, events, audit.EventComplianceDecision)

	// Four distinct provider calls were paid for; refinement passes were
	// served from cache.
	total := fs.costs.ScreeningTotal(fs.tenant.ID, scr.ID)
	assert.True(t, total.Amount().Equal(decimal.NewFromInt(4)), "spend %s", total)
}

func TestRunRequiresConsentToken(t *testing.T) {
	fs := newFullStack(t, screeningPool()...)
	ctx := fs.bind(context.Background())

	req := screeningRequest()
	req.ConsentToken = ""

	scr, err := fs.orchestrator.Run(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConsent))
	assert.Equal(t, StatusFailed, scr.Status)

	require.Len(t, scr.Phases, 3)
	assert.Equal(t, PhaseConsent, scr.Phases[2].Phase)
	assert.Equal(t, PhaseFailed, scr.Phases[2].Status)
}

func TestRunRejectsInactiveTenant(t *testing.T) {
	fs := newFullStack(t, screeningPool()...)
	fs.tenant.Active = false
	ctx := fs.bind(context.Background())

	scr, err := fs.orchestrator.Run(ctx, screeningRequest())
	require.Error(t, err)
	assert.Equal(t, "tenant_inactive", errors.Code(err))
	assert.Equal(t, StatusFailed, scr.Status)
	assert.Equal(t, PhaseValidation, scr.Phases[0].Phase)
	assert.Equal(t, PhaseFailed, scr.Phases[0].Status)
}

func TestRunValidatesRequestShape(t *testing.T) {
	fs := newFullStack(t, screeningPool()...)
	ctx := fs.bind(context.Background())

	req := screeningRequest()
	req.Subject.FullName = ""

	scr, err := fs.orchestrator.Run(ctx, req)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, scr.Status)
}

func TestRunHaltsWhenIdentityUnresolvable(t *testing.T) {
	// Sanctions coverage exists but nothing can establish identity.
	sanctions := testutil.NewProvider("ofac-feed", 1, values.CheckSanctionsScreen)
	sanctions.Responses[values.CheckSanctionsScreen] = map[string]interface{}{"facts": []interface{}{}}
	fs := newFullStack(t, sanctions)
	ctx := fs.bind(context.Background())

	scr, err := fs.orchestrator.Run(ctx, screeningRequest())
	require.Error(t, err)
	assert.Equal(t, "investigation_halted", errors.Code(err))

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "identity_unresolved", appErr.Details["reason"])
	assert.Equal(t, StatusFailed, scr.Status)
}
