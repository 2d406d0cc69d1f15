package providers

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
)

// LimitConfig is a per-provider token bucket definition. The bucket starts
// full.
type LimitConfig struct {
	TokensPerSecond float64
	MaxTokens       int
}

// LimiterStats tracks per-provider acquisition outcomes.
// Invariant: Allowed + Denied equals total TryAcquire calls.
type LimiterStats struct {
	Allowed     int64
	Denied      int64
	LastAcquire time.Time
}

// providerLimiter carries its own lock so contention on one provider's
// bucket never blocks acquisitions against another.
type providerLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	rate    float64
	stats   LimiterStats
}

// RateLimiter is a token-bucket rate limiter keyed by provider. It is the
// primary backpressure mechanism for outbound provider work.
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*providerLimiter
	fallback LimitConfig
}

func NewRateLimiter(fallback LimitConfig) *RateLimiter {
	if fallback.TokensPerSecond <= 0 {
		fallback = LimitConfig{TokensPerSecond: 10, MaxTokens: 20}
	}
	return &RateLimiter{
		limiters: make(map[string]*providerLimiter),
		fallback: fallback,
	}
}

// Configure sets the bucket for a provider, replacing any existing one.
func (rl *RateLimiter) Configure(providerID string, cfg LimitConfig) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limiters[providerID] = &providerLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.TokensPerSecond), cfg.MaxTokens),
		rate:    cfg.TokensPerSecond,
	}
}

func (rl *RateLimiter) forProvider(providerID string) *providerLimiter {
	rl.mu.RLock()
	pl, ok := rl.limiters[providerID]
	rl.mu.RUnlock()
	if ok {
		return pl
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if pl, ok := rl.limiters[providerID]; ok {
		return pl
	}
	pl = &providerLimiter{
		limiter: rate.NewLimiter(rate.Limit(rl.fallback.TokensPerSecond), rl.fallback.MaxTokens),
		rate:    rl.fallback.TokensPerSecond,
	}
	rl.limiters[providerID] = pl
	return pl
}

// TryAcquire atomically takes n tokens if available. On rejection the
// returned error carries retry_after = (n - tokens) / rate seconds.
func (rl *RateLimiter) TryAcquire(providerID string, n int) error {
	pl := rl.forProvider(providerID)

	pl.mu.Lock()
	defer pl.mu.Unlock()

	if pl.limiter.AllowN(time.Now(), n) {
		pl.stats.Allowed++
		pl.stats.LastAcquire = time.Now()
		return nil
	}
	pl.stats.Denied++

	deficit := float64(n) - pl.limiter.Tokens()
	if deficit < 0 {
		deficit = float64(n)
	}
	return errors.NewRateLimitedError(providerID, deficit/pl.rate)
}

// Acquire blocks until n tokens are available or ctx is done. Tokens consumed
// by a later-cancelled call are not refunded.
func (rl *RateLimiter) Acquire(ctx context.Context, providerID string, n int) error {
	pl := rl.forProvider(providerID)
	if err := pl.limiter.WaitN(ctx, n); err != nil {
		if ctx.Err() != nil {
			return errors.NewCancelledError(ctx.Err())
		}
		return errors.NewRateLimitedError(providerID, 0)
	}
	pl.mu.Lock()
	pl.stats.Allowed++
	pl.stats.LastAcquire = time.Now()
	pl.mu.Unlock()
	return nil
}

// Stats returns a copy of the provider's acquisition statistics.
func (rl *RateLimiter) Stats(providerID string) LimiterStats {
	pl := rl.forProvider(providerID)
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.stats
}
