package infra

import (
	"context"
	"time"
)

const (
	// Standard backoff constants
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// CalculateBackoff returns the exponential backoff duration for a given retry count.
// Logic: base * 2^retryCount, capped at maxDelay.
// A non-positive base falls back to baseDelay; a negative retryCount returns base.
func CalculateBackoff(base time.Duration, retryCount int) time.Duration {
	if base <= 0 {
		base = baseDelay
	}
	if retryCount < 0 {
		return base
	}

	// 2^retryCount
	// To prevent overflow with bit shifting, we check explicitly or cap it early.
	// 2^30 is already > 1 billion seconds > maxDelay.
	if retryCount > 30 {
		return maxDelay
	}

	backoff := base * time.Duration(1<<retryCount)

	if backoff > maxDelay {
		return maxDelay
	}

	return backoff
}

// Retry runs fn up to attempts times, sleeping CalculateBackoff(base, n)
// between attempts. It returns nil on the first success, the last error after
// exhausting all attempts, or the context error if the context is cancelled
// while waiting. All transient external calls (price lookup, exchange REST)
// go through this one helper instead of hand-rolled retry loops.
func Retry(ctx context.Context, attempts int, base time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			delay := CalculateBackoff(base, i-1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
