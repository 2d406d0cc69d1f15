package audit

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/requestcontext"
)

// Logger attributes events from the bound request context and writes them to
// the sink. A missing or failing sink is non-fatal: the failure is logged and
// the caller proceeds. Events for one correlation ID are appended in issuing
// order; the per-logger mutex preserves that ordering across goroutines of a
// single request.
type Logger struct {
	repo   Repository
	logger *zap.Logger
	mu     sync.Mutex
}

func NewLogger(repo Repository, logger *zap.Logger) *Logger {
	return &Logger{repo: repo, logger: logger}
}

// Log stamps the event with tenant, actor and correlation from the request
// context and appends it. Context attribution is best-effort: system tasks
// (e.g. the monitoring scheduler) may log without a request context.
func (l *Logger) Log(ctx context.Context, e *Event) {
	if rc, err := requestcontext.From(ctx); err == nil {
		tenantID := rc.TenantID
		actorID := rc.ActorID
		e.TenantID = &tenantID
		e.ActorID = &actorID
		e.CorrelationID = rc.CorrelationID
	}

	if l.repo == nil {
		l.logger.Warn("audit sink not configured, event dropped",
			zap.String("event_type", string(e.Type)),
			zap.String("resource_id", e.ResourceID))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.repo.Insert(ctx, e); err != nil {
		l.logger.Error("audit write failed",
			zap.String("event_type", string(e.Type)),
			zap.String("resource_id", e.ResourceID),
			zap.Error(err))
	}
}
