package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
)

func TestTryAcquireDrainsBucket(t *testing.T) {
	rl := NewRateLimiter(LimitConfig{})
	rl.Configure("checkr", LimitConfig{TokensPerSecond: 1, MaxTokens: 2})

	require.NoError(t, rl.TryAcquire("checkr", 1))
	require.NoError(t, rl.TryAcquire("checkr", 1))

	err := rl.TryAcquire("checkr", 1)
	require.Error(t, err)
	assert.Equal(t, "rate_limited", errors.Code(err))
	assert.True(t, errors.IsRetryable(err))

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	retryAfter, ok := appErr.Details["retry_after_seconds"].(float64)
	require.True(t, ok)
	assert.Greater(t, retryAfter, 0.0)

	stats := rl.Stats("checkr")
	assert.EqualValues(t, 2, stats.Allowed)
	assert.EqualValues(t, 1, stats.Denied)
}

func TestUnconfiguredProviderGetsFallbackBucket(t *testing.T) {
	rl := NewRateLimiter(LimitConfig{TokensPerSecond: 1, MaxTokens: 1})

	require.NoError(t, rl.TryAcquire("never-configured", 1))
	require.Error(t, rl.TryAcquire("never-configured", 1))
}

func TestAcquireWaitsForToken(t *testing.T) {
	rl := NewRateLimiter(LimitConfig{})
	rl.Configure("fast", LimitConfig{TokensPerSecond: 100, MaxTokens: 1})
	require.NoError(t, rl.TryAcquire("fast", 1))

	// The bucket refills at 100/s, so the wait resolves well inside the
	// deadline.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rl.Acquire(ctx, "fast", 1))
}

func TestAcquireCancelledContext(t *testing.T) {
	rl := NewRateLimiter(LimitConfig{})
	rl.Configure("slow", LimitConfig{TokensPerSecond: 0.001, MaxTokens: 1})
	require.NoError(t, rl.TryAcquire("slow", 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := rl.Acquire(ctx, "slow", 1)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCancelled))
}

func TestBucketsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(LimitConfig{})
	rl.Configure("exhausted", LimitConfig{TokensPerSecond: 0.001, MaxTokens: 1})
	rl.Configure("idle", LimitConfig{TokensPerSecond: 10, MaxTokens: 10})

	require.NoError(t, rl.TryAcquire("exhausted", 1))
	require.Error(t, rl.TryAcquire("exhausted", 1))
	require.NoError(t, rl.TryAcquire("idle", 1))
}
