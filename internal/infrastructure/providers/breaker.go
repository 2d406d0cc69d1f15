package providers

import (
	"sync"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/infrastructure/config"
)

// BreakerRegistry keeps one circuit breaker per provider. Breakers trip after
// failure_threshold consecutive failures, probe again after the open timeout,
// and close after success_threshold consecutive successes in half-open with
// at most half_open_max_calls trial calls in flight.
type BreakerRegistry struct {
	logger *zap.Logger
	cfg    config.BreakerConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewBreakerRegistry(cfg config.BreakerConfig, logger *zap.Logger) *BreakerRegistry {
	return &BreakerRegistry{
		logger:   logger,
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (br *BreakerRegistry) forProvider(providerID string) *gobreaker.CircuitBreaker {
	br.mu.Lock()
	defer br.mu.Unlock()
	if cb, ok := br.breakers[providerID]; ok {
		return cb
	}

	threshold := uint32(br.cfg.FailureThreshold)
	maxRequests := uint32(br.cfg.SuccessThreshold)
	if hoc := uint32(br.cfg.HalfOpenMaxCalls); hoc < maxRequests {
		maxRequests = hoc
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        providerID,
		MaxRequests: maxRequests,
		Timeout:     br.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			br.logger.Warn("circuit breaker state change",
				zap.String("provider_id", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	br.breakers[providerID] = cb
	return cb
}

// Execute runs fn under the provider's breaker. Open-circuit and exhausted
// half-open budgets are both surfaced as CircuitOpen; the router treats them
// as a skip, not a failure.
func (br *BreakerRegistry) Execute(providerID string, fn func() (interface{}, error)) (interface{}, error) {
	cb := br.forProvider(providerID)
	out, err := cb.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, errors.NewCircuitOpenError(providerID)
	}
	return out, err
}

// IsOpen reports whether the provider's circuit currently fails fast.
func (br *BreakerRegistry) IsOpen(providerID string) bool {
	return br.forProvider(providerID).State() == gobreaker.StateOpen
}

// Counts exposes the breaker's rolling counts for metrics and invariants.
func (br *BreakerRegistry) Counts(providerID string) gobreaker.Counts {
	return br.forProvider(providerID).Counts()
}

// State returns the breaker state for reporting.
func (br *BreakerRegistry) State(providerID string) gobreaker.State {
	return br.forProvider(providerID).State()
}
