package monitoring

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/audit"
	"github.com/veriscreen/screening-backend/internal/domain/entity"
	"github.com/veriscreen/screening-backend/internal/domain/monitoring"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/infrastructure/config"
	"github.com/veriscreen/screening-backend/internal/requestcontext"
	"github.com/veriscreen/screening-backend/internal/service/screening"
	"github.com/veriscreen/screening-backend/internal/testutil"
)

// fakeRunner records screening requests and returns a canned result.
type fakeRunner struct {
	mu       sync.Mutex
	score    float64
	requests []*screening.Request
}

func (r *fakeRunner) Run(ctx context.Context, req *screening.Request) (*screening.Screening, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()

	// The runner must see the system request context the scheduler binds.
	rc, err := requestcontext.From(ctx)
	if err != nil {
		return nil, err
	}

	return &screening.Screening{
		ID:       uuid.Must(uuid.NewV7()),
		TenantID: rc.TenantID,
		Status:   screening.StatusComplete,
		Result:   &screening.ScreeningResult{OverallScore: r.score},
	}, nil
}

func compiledBlob(t *testing.T) json.RawMessage {
	t.Helper()
	blob, err := json.Marshal(screening.CompiledResult{})
	require.NoError(t, err)
	return blob
}

func newTestScheduler(t *testing.T, subjects *testutil.SubjectRepo, entities *testutil.EntityRepo, profiles *testutil.ProfileRepo, runner ScreeningRunner, channels ...monitoring.Channel) *Scheduler {
	t.Helper()
	logger := zap.NewNop()
	auditLog := audit.NewLogger(testutil.NewAuditRepo(), logger)
	alerts := NewAlertGenerator(testutil.NewAlertRepo(), channels, auditLog, config.MonitoringConfig{
		AlertWindowHours:          24,
		MaxAlertsBeforeEscalation: 3,
		NotificationRetryCount:    1,
	}, logger)
	return NewScheduler(subjects, entities, profiles, runner,
		NewDeltaDetector(logger), NewVigilanceManager(logger), alerts, 2, logger)
}

func seedMonitoredSubject(t *testing.T, entities *testutil.EntityRepo, profiles *testutil.ProfileRepo, due time.Time) *monitoring.Subject {
	t.Helper()
	ctx := context.Background()
	tenantID := uuid.Must(uuid.NewV7())
	e, err := entity.New(entity.TypePerson, values.OriginCustomerProvided, &tenantID)
	require.NoError(t, err)
	require.NoError(t, entities.Create(ctx, e))
	require.NoError(t, entities.AddIdentifier(ctx, entity.NewIdentifier(e.ID, entity.IdentifierFullName, "Jane Doe", "seed", 1.0)))
	require.NoError(t, entities.AddIdentifier(ctx, entity.NewIdentifier(e.ID, entity.IdentifierSSN, "123456789", "seed", 1.0)))

	// The baseline profile written by the enrollment screening.
	require.NoError(t, profiles.Create(ctx, &entity.Profile{
		EntityID: e.ID, RiskScore: 10, Findings: compiledBlob(t),
	}))

	return &monitoring.Subject{
		ID:           uuid.Must(uuid.NewV7()),
		TenantID:     tenantID,
		EntityID:     e.ID,
		Vigilance:    monitoring.VigilanceV2,
		RoleCategory: values.RoleStandard,
		Locale:       values.LocaleUS,
		Tier:         values.TierStandard,
		NextCheckAt:  due,
	}
}

func TestExecuteDueRunsDueSubjectsOnly(t *testing.T) {
	now := time.Now().UTC()
	entities := testutil.NewEntityRepo()
	profiles := testutil.NewProfileRepo()
	runner := &fakeRunner{score: 10}

	due := seedMonitoredSubject(t, entities, profiles, now.Add(-time.Hour))
	notDue := seedMonitoredSubject(t, entities, profiles, now.Add(time.Hour))
	paused := seedMonitoredSubject(t, entities, profiles, now.Add(-time.Hour))
	paused.Paused = true
	oneShot := seedMonitoredSubject(t, entities, profiles, now.Add(-time.Hour))
	oneShot.Vigilance = monitoring.VigilanceV0

	subjects := testutil.NewSubjectRepo(due, notDue, paused, oneShot)
	s := newTestScheduler(t, subjects, entities, profiles, runner)

	require.NoError(t, s.ExecuteDue(context.Background(), now))

	require.Len(t, runner.requests, 1)
	req := runner.requests[0]
	assert.Equal(t, "Jane Doe", req.Subject.FullName)
	assert.Equal(t, "123456789", req.Subject.SSN)
	assert.Equal(t, values.DegreeD1, req.Degree)
	assert.Contains(t, req.ConsentToken, due.ID.String())
}

func TestCheckAdvancesScheduleFromDueTime(t *testing.T) {
	now := time.Now().UTC()
	scheduled := now.Add(-2 * time.Hour)
	entities := testutil.NewEntityRepo()
	profiles := testutil.NewProfileRepo()
	runner := &fakeRunner{score: 10}

	subject := seedMonitoredSubject(t, entities, profiles, scheduled)
	subjects := testutil.NewSubjectRepo(subject)
	s := newTestScheduler(t, subjects, entities, profiles, runner)

	require.NoError(t, s.ExecuteDue(context.Background(), now))

	// V2 cadence is 30 days from the scheduled instant, not from now.
	got, err := subjects.Get(context.Background(), subject.ID)
	require.NoError(t, err)
	assert.Equal(t, scheduled.Add(30*24*time.Hour), got.NextCheckAt)
}

func TestCheckEscalatesVigilanceOnHighRisk(t *testing.T) {
	now := time.Now().UTC()
	entities := testutil.NewEntityRepo()
	profiles := testutil.NewProfileRepo()
	runner := &fakeRunner{score: 80}

	subject := seedMonitoredSubject(t, entities, profiles, now.Add(-time.Hour))
	subjects := testutil.NewSubjectRepo(subject)
	s := newTestScheduler(t, subjects, entities, profiles, runner)

	require.NoError(t, s.ExecuteDue(context.Background(), now))

	got, err := subjects.Get(context.Background(), subject.ID)
	require.NoError(t, err)
	assert.Equal(t, monitoring.VigilanceV3, got.Vigilance)
}

func TestCheckComparesLastTwoProfiles(t *testing.T) {
	now := time.Now().UTC()
	entities := testutil.NewEntityRepo()
	profiles := testutil.NewProfileRepo()
	runner := &fakeRunner{score: 60}
	ch := &testutil.Channel{}

	subject := seedMonitoredSubject(t, entities, profiles, now.Add(-time.Hour))
	subject.Vigilance = monitoring.VigilanceV3

	ctx := context.Background()
	require.NoError(t, profiles.Create(ctx, &entity.Profile{
		EntityID: subject.EntityID, RiskScore: 20, Findings: compiledBlob(t),
	}))
	require.NoError(t, profiles.Create(ctx, &entity.Profile{
		EntityID: subject.EntityID, RiskScore: 60, Findings: compiledBlob(t),
	}))

	subjects := testutil.NewSubjectRepo(subject)
	s := newTestScheduler(t, subjects, entities, profiles, runner, ch)

	require.NoError(t, s.ExecuteDue(ctx, now))

	// The 20 -> 60 score jump crosses a risk level: one alert delivered.
	require.Len(t, ch.Delivered, 1)
	assert.Equal(t, subject.ID, ch.Delivered[0].SubjectID)
}
