package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signage-server/config"
)

func testRateClass(window time.Duration, max int) config.RateClass {
	return config.RateClass{
		Window:      window,
		MaxRequests: max,
		Message:     "too many requests",
	}
}

func TestRateLimiterAdmitsUpToMax(t *testing.T) {
	r := NewRateLimiter(testRateClass(time.Minute, 3))

	for i := 0; i < 3; i++ {
		res := r.Allow("10.0.0.1")
		require.True(t, res.Allowed, "request %d should be admitted", i+1)
	}

	res := r.Allow("10.0.0.1")
	require.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	retryAfter := time.Until(res.ResetAt)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)
}

func TestRateLimiterIsolatesKeys(t *testing.T) {
	r := NewRateLimiter(testRateClass(time.Minute, 1))

	require.True(t, r.Allow("10.0.0.1").Allowed)
	require.False(t, r.Allow("10.0.0.1").Allowed)

	assert.True(t, r.Allow("10.0.0.2").Allowed, "other keys keep their own window")
}

func TestRateLimiterWindowSlides(t *testing.T) {
	r := NewRateLimiter(testRateClass(40*time.Millisecond, 2))

	require.True(t, r.Allow("k").Allowed)
	require.True(t, r.Allow("k").Allowed)
	require.False(t, r.Allow("k").Allowed)

	time.Sleep(60 * time.Millisecond)

	assert.True(t, r.Allow("k").Allowed, "requests admitted again after the window passes")
}

func TestRateLimiterCheckDoesNotRecord(t *testing.T) {
	r := NewRateLimiter(testRateClass(time.Minute, 2))

	for i := 0; i < 10; i++ {
		res := r.Check("k")
		require.True(t, res.Allowed)
		assert.Equal(t, 2, res.Remaining)
	}
}

func TestRateLimiterHitConsumesWindow(t *testing.T) {
	r := NewRateLimiter(testRateClass(time.Minute, 2))

	r.Hit("k")
	r.Hit("k")

	res := r.Check("k")
	assert.False(t, res.Allowed)
}

func TestRateLimiterUnknownKeyHasFullWindow(t *testing.T) {
	r := NewRateLimiter(testRateClass(time.Minute, 5))

	res := r.Check("never-seen")
	assert.True(t, res.Allowed)
	assert.Equal(t, 5, res.Remaining)
}

func TestRateLimiterSweepDropsIdleKeys(t *testing.T) {
	r := NewRateLimiter(testRateClass(20*time.Millisecond, 5))

	r.Hit("a")
	r.Hit("b")
	require.Equal(t, 2, r.KeyCount())

	time.Sleep(40 * time.Millisecond)

	assert.Equal(t, 2, r.Sweep())
	assert.Equal(t, 0, r.KeyCount())
}
