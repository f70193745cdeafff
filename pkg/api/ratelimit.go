// Package api provides the outbound request policy for the preview pipeline:
// a process-wide rate gate and a retrying fetcher that wraps the fetch client.
package api

import (
	"sync"
	"time"
)

// RateLimiter is the admission gate in front of outbound requests.
type RateLimiter interface {
	// Wait blocks until another outbound request may be made
	Wait()
	// CanProceed returns true if a request can be made without waiting
	CanProceed() bool
}

// IntervalRateLimiter enforces a minimum interval between consecutive
// permits. It is a single shared clock-gate: concurrent callers serialize
// through the mutex, so the whole process never exceeds the configured rate.
type IntervalRateLimiter struct {
	mu       sync.Mutex
	lastCall time.Time
	minDelay time.Duration
}

// NewIntervalRateLimiter creates a rate limiter with a minimum delay between
// permits.
func NewIntervalRateLimiter(minDelay time.Duration) *IntervalRateLimiter {
	return &IntervalRateLimiter{
		minDelay: minDelay,
	}
}

// NewIntervalRateLimiterPerSecond creates an interval limiter permitting at
// most maxPerSecond requests per second. Non-positive rates disable waiting.
func NewIntervalRateLimiterPerSecond(maxPerSecond float64) *IntervalRateLimiter {
	if maxPerSecond <= 0 {
		return NewIntervalRateLimiter(0)
	}
	return NewIntervalRateLimiter(time.Duration(float64(time.Second) / maxPerSecond))
}

// Wait blocks until the minimum interval since the last permit has elapsed.
// The mutex is held across the sleep on purpose: waiters queue up and drain
// one per interval.
func (rl *IntervalRateLimiter) Wait() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	elapsed := time.Since(rl.lastCall)
	if elapsed < rl.minDelay {
		time.Sleep(rl.minDelay - elapsed)
	}
	rl.lastCall = time.Now()
}

// CanProceed returns true if a permit would be granted without waiting.
func (rl *IntervalRateLimiter) CanProceed() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return time.Since(rl.lastCall) >= rl.minDelay
}

// TokenBucketRateLimiter allows short bursts up to maxTokens while keeping
// the long-run rate at one request per refill interval.
type TokenBucketRateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

// NewTokenBucketRateLimiter creates a token bucket limiter.
func NewTokenBucketRateLimiter(maxTokens int, refillRate time.Duration) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available, then consumes it.
func (rl *TokenBucketRateLimiter) Wait() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillTokens()
	for rl.tokens <= 0 {
		rl.mu.Unlock()
		time.Sleep(rl.refillRate)
		rl.mu.Lock()
		rl.refillTokens()
	}

	rl.tokens--
}

// CanProceed returns true if a token is available.
func (rl *TokenBucketRateLimiter) CanProceed() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillTokens()
	return rl.tokens > 0
}

func (rl *TokenBucketRateLimiter) refillTokens() {
	now := time.Now()
	tokensToAdd := int(now.Sub(rl.lastRefill) / rl.refillRate)
	if tokensToAdd > 0 {
		rl.tokens = min(rl.tokens+tokensToAdd, rl.maxTokens)
		rl.lastRefill = now
	}
}

// NoOpRateLimiter performs no limiting. Used in tests and when gating is
// disabled by configuration.
type NoOpRateLimiter struct{}

// NewNoOpRateLimiter creates a rate limiter that never waits.
func NewNoOpRateLimiter() *NoOpRateLimiter {
	return &NoOpRateLimiter{}
}

// Wait returns immediately.
func (rl *NoOpRateLimiter) Wait() {}

// CanProceed always returns true.
func (rl *NoOpRateLimiter) CanProceed() bool {
	return true
}
