// ABOUTME: Retry utilities for model server calls with exponential backoff
// ABOUTME: Used by the embedding client; generation calls are single-attempt
package util

import (
	"context"
	"math/rand/v2"
	"time"
)

// CalculateBackoff returns exponential backoff with jitter
// Base delay is doubled each attempt, with random jitter up to 25%
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	// Cap attempt to avoid overflow in bit shift
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > 30*time.Second || backoff <= 0 {
		backoff = 30 * time.Second
	}
	// Jitter: -25% to +25%
	jitter := time.Duration(rand.Int64N(int64(backoff)/2+1)) - backoff/4
	return backoff + jitter
}

// SleepContext waits for d or until ctx is done, whichever comes first
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
