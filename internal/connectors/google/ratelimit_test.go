package google

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter_Defaults(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{})

	assert.InDelta(t, DefaultDriveRateLimit.RequestsPerSecond, float64(r.limiter.Limit()), 0.001)
	assert.Equal(t, DefaultDriveRateLimit.BurstSize, r.limiter.Burst())
}

func TestRateLimiter_Backoff(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10})

	r.Backoff(time.Hour)
	retryAt := r.retryAt
	assert.WithinDuration(t, time.Now().Add(time.Hour), retryAt, time.Second)

	// A shorter backoff never shortens an existing window.
	r.Backoff(time.Millisecond)
	assert.Equal(t, retryAt, r.retryAt)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestRateLimiter_WaitAfterShortBackoff(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10})
	r.Backoff(30 * time.Millisecond)

	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestRateLimiter_DefaultBackoff(t *testing.T) {
	r := NewRateLimiter(DefaultDriveRateLimit)
	before := time.Now()

	r.Backoff(0)

	assert.WithinDuration(t, before.Add(DefaultBackoff), r.retryAt, time.Second)
}
