package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lepinkainen/link-forge/pkg/fetch"
)

// Fetcher performs a single GET attempt for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// RetryPolicy configures the retrying fetcher.
type RetryPolicy struct {
	// MaxAttempts is the total number of fetch attempts, including the first
	MaxAttempts int
	// Backoff is the fixed pause between attempts (not exponential)
	Backoff time.Duration
}

// DefaultRetryPolicy matches the preview pipeline defaults: two attempts
// with a one second pause between them.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 2,
		Backoff:     1 * time.Second,
	}
}

// RetryingFetcher wraps a Fetcher with the rate gate and bounded retry.
// Every attempt waits at the gate first; only classified transport errors
// are retried, anything else propagates immediately. Attempts are strictly
// sequential.
type RetryingFetcher struct {
	fetcher Fetcher
	gate    RateLimiter
	policy  *RetryPolicy
}

// NewRetryingFetcher composes a fetcher with a rate gate and retry policy.
// A nil gate disables rate limiting; a nil policy uses the defaults.
func NewRetryingFetcher(fetcher Fetcher, gate RateLimiter, policy *RetryPolicy) *RetryingFetcher {
	if gate == nil {
		gate = NewNoOpRateLimiter()
	}
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	return &RetryingFetcher{
		fetcher: fetcher,
		gate:    gate,
		policy:  policy,
	}
}

// Fetch attempts the wrapped fetch up to MaxAttempts times. The final
// attempt's error propagates unchanged so the caller can classify it.
func (r *RetryingFetcher) Fetch(ctx context.Context, rawURL string) (*fetch.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			slog.Warn("Retrying fetch",
				"url", rawURL,
				"attempt", attempt,
				"maxAttempts", r.policy.MaxAttempts,
				"lastError", lastErr)

			select {
			case <-time.After(r.policy.Backoff):
			case <-ctx.Done():
				return nil, lastErr
			}
		}

		r.gate.Wait()

		slog.Debug("Fetch attempt", "url", rawURL, "attempt", attempt, "maxAttempts", r.policy.MaxAttempts)

		resp, err := r.fetcher.Fetch(ctx, rawURL)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// Only transport failures are worth another attempt.
		var fetchErr *fetch.Error
		if !errors.As(err, &fetchErr) {
			return nil, err
		}
	}

	return nil, lastErr
}
