package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"signage-server/config"
)

// RateLimitResult is the outcome of an admission check for one key.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimiter implements per-key sliding-window admission control.
// A request at time T counts against the trailing window [T-Window, T].
// Unknown keys are treated as having no prior requests; the limiter
// never fails, it only admits or rejects.
type RateLimiter struct {
	cfg config.RateClass

	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewRateLimiter creates a rate limiter for one route class.
func NewRateLimiter(cfg config.RateClass) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		windows: make(map[string][]time.Time),
	}
}

// Message returns the rejection message configured for this route class.
func (r *RateLimiter) Message() string {
	return r.cfg.Message
}

// Limit returns the maximum number of requests per window.
func (r *RateLimiter) Limit() int {
	return r.cfg.MaxRequests
}

// Check reports whether a request for key would be admitted right now
// without recording it.
func (r *RateLimiter) Check(key string) RateLimitResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	window := r.prune(key, now)
	return r.result(window, now)
}

// Hit records a request for key without an admission decision.
func (r *RateLimiter) Hit(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.windows[key] = append(r.prune(key, now), now)
}

// Allow performs the combined admission check and record used on the
// request path: prune, reject if the window is full, otherwise count
// this request.
func (r *RateLimiter) Allow(key string) RateLimitResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	window := r.prune(key, now)

	res := r.result(window, now)
	if !res.Allowed {
		return res
	}

	r.windows[key] = append(window, now)
	res.Remaining--
	return res
}

// prune drops timestamps older than the window. Caller holds r.mu.
func (r *RateLimiter) prune(key string, now time.Time) []time.Time {
	windowStart := now.Add(-r.cfg.Window)

	window := r.windows[key]
	valid := window[:0]
	for _, t := range window {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		delete(r.windows, key)
		return nil
	}
	r.windows[key] = valid
	return valid
}

// result builds the admission outcome for a pruned window. Caller holds r.mu.
func (r *RateLimiter) result(window []time.Time, now time.Time) RateLimitResult {
	resetAt := now
	if len(window) > 0 {
		resetAt = window[0].Add(r.cfg.Window)
	}

	if len(window) >= r.cfg.MaxRequests {
		return RateLimitResult{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}
	return RateLimitResult{
		Allowed:   true,
		Remaining: r.cfg.MaxRequests - len(window),
		ResetAt:   resetAt,
	}
}

// Sweep drops keys whose recorded requests have all aged out of the
// window, bounding memory. Returns the number of keys removed.
func (r *RateLimiter) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.cfg.Window)

	removed := 0
	for key, window := range r.windows {
		stale := true
		for _, t := range window {
			if t.After(windowStart) {
				stale = false
				break
			}
		}
		if stale {
			delete(r.windows, key)
			removed++
		}
	}
	return removed
}

// KeyCount returns the number of keys currently tracked.
func (r *RateLimiter) KeyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}

// StartSweep runs Sweep on a fixed interval until ctx is cancelled.
func (r *RateLimiter) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := r.Sweep(); removed > 0 {
					slog.Debug("Rate limiter sweep", "removedKeys", removed)
				}
			}
		}
	}()
}
