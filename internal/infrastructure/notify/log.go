package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/monitoring"
)

// LogChannel writes alerts to the structured log. Deployments without an
// external endpoint still get a durable record of every alert.
type LogChannel struct {
	logger *zap.Logger
}

func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Deliver(_ context.Context, a *monitoring.Alert) error {
	c.logger.Warn("monitoring alert",
		zap.String("alert_id", a.ID.String()),
		zap.String("subject_id", a.SubjectID.String()),
		zap.String("tenant_id", a.TenantID.String()),
		zap.String("severity", a.Severity.String()),
		zap.String("message", a.Message),
		zap.Int("deltas", len(a.Deltas)))
	return nil
}
