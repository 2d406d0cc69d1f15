package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/audit"
	"github.com/veriscreen/screening-backend/internal/domain/monitoring"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/infrastructure/config"
	"github.com/veriscreen/screening-backend/internal/testutil"
)

func testAlertConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		AlertWindowHours:          24,
		MaxAlertsBeforeEscalation: 3,
		NotificationRetryCount:    3,
		NotificationRetryDelay:    time.Millisecond,
	}
}

func newAlertGenerator(channels ...monitoring.Channel) (*AlertGenerator, *testutil.AlertRepo) {
	alerts := testutil.NewAlertRepo()
	auditLog := audit.NewLogger(testutil.NewAuditRepo(), zap.NewNop())
	g := NewAlertGenerator(alerts, channels, auditLog, testAlertConfig(), zap.NewNop())
	g.sleep = func(time.Duration) {}
	return g, alerts
}

func subjectAt(v monitoring.VigilanceLevel) *monitoring.Subject {
	return &monitoring.Subject{
		ID:        uuid.Must(uuid.NewV7()),
		TenantID:  uuid.Must(uuid.NewV7()),
		Vigilance: v,
	}
}

func negativeDelta(sev values.Severity) monitoring.Delta {
	return monitoring.Delta{
		Kind:        monitoring.DeltaNewFinding,
		Severity:    sev,
		Direction:   monitoring.DirectionNegative,
		Description: "new finding",
	}
}

func TestProcessThresholdByVigilance(t *testing.T) {
	report := &monitoring.DeltaReport{
		Deltas: []monitoring.Delta{negativeDelta(values.SeverityHigh)},
	}

	// V1 only alerts on critical.
	g, _ := newAlertGenerator(&testutil.Channel{})
	alert, _, err := g.Process(context.Background(), subjectAt(monitoring.VigilanceV1), report)
	require.NoError(t, err)
	assert.Nil(t, alert)

	// V2 alerts from high upward.
	g, repo := newAlertGenerator(&testutil.Channel{})
	alert, escalate, err := g.Process(context.Background(), subjectAt(monitoring.VigilanceV2), report)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.False(t, escalate)
	assert.Equal(t, values.SeverityHigh, alert.Severity)
	assert.Len(t, repo.Alerts, 1)

	// V0 subjects are never alerted.
	g, _ = newAlertGenerator(&testutil.Channel{})
	alert, _, err = g.Process(context.Background(), subjectAt(monitoring.VigilanceV0), report)
	require.NoError(t, err)
	assert.Nil(t, alert)
}

func TestProcessIgnoresPositiveDeltas(t *testing.T) {
	g, _ := newAlertGenerator(&testutil.Channel{})
	report := &monitoring.DeltaReport{
		Deltas: []monitoring.Delta{{
			Kind:      monitoring.DeltaResolvedFinding,
			Severity:  values.SeverityCritical,
			Direction: monitoring.DirectionPositive,
		}},
	}

	alert, _, err := g.Process(context.Background(), subjectAt(monitoring.VigilanceV3), report)
	require.NoError(t, err)
	assert.Nil(t, alert)
}

func TestProcessBundlesQualifyingDeltas(t *testing.T) {
	ch := &testutil.Channel{}
	g, _ := newAlertGenerator(ch)
	report := &monitoring.DeltaReport{
		Deltas: []monitoring.Delta{
			negativeDelta(values.SeverityMedium),
			negativeDelta(values.SeverityHigh),
			negativeDelta(values.SeverityLow), // below the V3 threshold
		},
	}

	alert, _, err := g.Process(context.Background(), subjectAt(monitoring.VigilanceV3), report)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Len(t, alert.Deltas, 2)
	assert.Equal(t, values.SeverityHigh, alert.Severity)
	require.Len(t, ch.Delivered, 1)
	assert.Equal(t, alert.ID, ch.Delivered[0].ID)
}

func TestProcessCriticalEscalatesImmediately(t *testing.T) {
	g, _ := newAlertGenerator(&testutil.Channel{})
	report := &monitoring.DeltaReport{
		Deltas: []monitoring.Delta{negativeDelta(values.SeverityCritical)},
	}

	_, escalate, err := g.Process(context.Background(), subjectAt(monitoring.VigilanceV2), report)
	require.NoError(t, err)
	assert.True(t, escalate)
}

func TestProcessEscalatesOnRepeatedAlerts(t *testing.T) {
	g, _ := newAlertGenerator(&testutil.Channel{})
	subject := subjectAt(monitoring.VigilanceV3)
	report := &monitoring.DeltaReport{
		Deltas: []monitoring.Delta{negativeDelta(values.SeverityMedium)},
	}

	var escalate bool
	var err error
	for i := 0; i < 4; i++ {
		_, escalate, err = g.Process(context.Background(), subject, report)
		require.NoError(t, err)
	}
	// The fourth unresolved alert inside the window crosses the maximum.
	assert.True(t, escalate)
}

func TestDeliverRetriesTransientFailures(t *testing.T) {
	ch := &testutil.Channel{FailFirst: 2}
	g, _ := newAlertGenerator(ch)
	report := &monitoring.DeltaReport{
		Deltas: []monitoring.Delta{negativeDelta(values.SeverityCritical)},
	}

	_, _, err := g.Process(context.Background(), subjectAt(monitoring.VigilanceV3), report)
	require.NoError(t, err)
	assert.Equal(t, 3, ch.Attempts())
	assert.Len(t, ch.Delivered, 1)
}

func TestDeliverGivesUpAfterRetryBudget(t *testing.T) {
	ch := &testutil.Channel{FailFirst: 5}
	healthy := &testutil.Channel{ChannelID: "healthy"}
	g, repo := newAlertGenerator(ch, healthy)
	report := &monitoring.DeltaReport{
		Deltas: []monitoring.Delta{negativeDelta(values.SeverityCritical)},
	}

	_, _, err := g.Process(context.Background(), subjectAt(monitoring.VigilanceV3), report)
	require.NoError(t, err)

	// The broken channel exhausts its budget; the healthy one still gets
	// the alert and the alert row is persisted regardless.
	assert.Equal(t, 3, ch.Attempts())
	assert.Empty(t, ch.Delivered)
	assert.Len(t, healthy.Delivered, 1)
	assert.Len(t, repo.Alerts, 1)
}
