package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/audit"
	"github.com/veriscreen/screening-backend/internal/domain/monitoring"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/infrastructure/config"
)

// alertThreshold is the minimum delta severity that alerts per vigilance
// level. V0 subjects are one-shot and never monitored, so never alerted.
var alertThreshold = map[monitoring.VigilanceLevel]values.Severity{
	monitoring.VigilanceV1: values.SeverityCritical,
	monitoring.VigilanceV2: values.SeverityHigh,
	monitoring.VigilanceV3: values.SeverityMedium,
}

// AlertGenerator turns delta reports into delivered alerts and decides when
// repeated alerts escalate to humans.
type AlertGenerator struct {
	alerts   monitoring.AlertRepository
	channels []monitoring.Channel
	auditLog *audit.Logger
	cfg      config.MonitoringConfig
	logger   *zap.Logger

	sleep func(time.Duration)
}

func NewAlertGenerator(alerts monitoring.AlertRepository, channels []monitoring.Channel, auditLog *audit.Logger, cfg config.MonitoringConfig, logger *zap.Logger) *AlertGenerator {
	return &AlertGenerator{
		alerts:   alerts,
		channels: channels,
		auditLog: auditLog,
		cfg:      cfg,
		logger:   logger,
		sleep:    time.Sleep,
	}
}

// Process filters the report's deltas against the subject's vigilance
// threshold and, when anything qualifies, emits one alert carrying all
// qualifying deltas. It returns the alert (nil when below threshold) and
// whether the situation auto-escalates.
func (g *AlertGenerator) Process(ctx context.Context, subject *monitoring.Subject, report *monitoring.DeltaReport) (*monitoring.Alert, bool, error) {
	threshold, monitored := alertThreshold[subject.Vigilance]
	if !monitored {
		return nil, false, nil
	}

	var qualifying []monitoring.Delta
	maxSev := values.SeverityLow
	for _, delta := range report.Deltas {
		if delta.Direction == monitoring.DirectionPositive {
			continue
		}
		if delta.Severity < threshold {
			continue
		}
		qualifying = append(qualifying, delta)
		if delta.Severity > maxSev {
			maxSev = delta.Severity
		}
	}
	if len(qualifying) == 0 {
		return nil, false, nil
	}

	alert := &monitoring.Alert{
		ID:        uuid.Must(uuid.NewV7()),
		SubjectID: subject.ID,
		TenantID:  subject.TenantID,
		Severity:  maxSev,
		Message:   fmt.Sprintf("%d monitored changes for subject, risk %.1f -> %.1f", len(qualifying), report.PreviousScore, report.CurrentScore),
		Deltas:    qualifying,
		CreatedAt: time.Now().UTC(),
	}
	if err := g.alerts.Insert(ctx, alert); err != nil {
		return nil, false, err
	}

	g.deliver(ctx, alert)

	if ev, err := audit.NewEvent(audit.EventMonitoringAlert, "monitoring_subject", subject.ID.String()); err == nil {
		ev.WithData("alert_id", alert.ID.String()).
			WithData("severity", alert.Severity.String()).
			WithData("deltas", len(alert.Deltas))
		g.auditLog.Log(ctx, ev)
	}

	escalate, err := g.shouldEscalate(ctx, subject.ID, alert)
	if err != nil {
		g.logger.Warn("escalation check failed", zap.Error(err))
	}
	return alert, escalate, nil
}

// deliver fans the alert out to every channel. Delivery is at-least-once per
// channel with bounded retries; a channel that stays down loses the alert and
// is logged, it never blocks the scheduler.
func (g *AlertGenerator) deliver(ctx context.Context, alert *monitoring.Alert) {
	retries := g.cfg.NotificationRetryCount
	if retries <= 0 {
		retries = 3
	}
	for _, ch := range g.channels {
		var err error
		for attempt := 1; attempt <= retries; attempt++ {
			if err = ch.Deliver(ctx, alert); err == nil {
				break
			}
			if attempt < retries {
				g.sleep(g.cfg.NotificationRetryDelay)
			}
		}
		if err != nil {
			g.logger.Error("alert delivery failed",
				zap.String("channel", ch.Name()),
				zap.String("alert_id", alert.ID.String()),
				zap.Int("attempts", retries),
				zap.Error(err))
		}
	}
}

// shouldEscalate fires on a single critical alert, or when the trailing
// window holds more unresolved alerts than the configured maximum.
func (g *AlertGenerator) shouldEscalate(ctx context.Context, subjectID uuid.UUID, alert *monitoring.Alert) (bool, error) {
	if alert.Severity == values.SeverityCritical {
		return true, nil
	}
	window := time.Duration(g.cfg.AlertWindowHours) * time.Hour
	if window <= 0 {
		window = 24 * time.Hour
	}
	unresolved, err := g.alerts.UnresolvedSince(ctx, subjectID, time.Now().Add(-window))
	if err != nil {
		return false, err
	}
	return unresolved > g.cfg.MaxAlertsBeforeEscalation, nil
}
