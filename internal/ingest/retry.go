package ingest

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/docnav/internal/collab"
)

// MaxRetries bounds store attempts per import.
const MaxRetries = 3

// IsRetryable reports whether a store error is transient.
func IsRetryable(err error) bool {
	var retryErr *collab.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// retryDelay is the wait before the next attempt. A Retry-After hint from
// the store wins when it is longer than the computed backoff.
func retryDelay(err error, attempt int, backoff func(int) time.Duration) time.Duration {
	d := backoff(attempt)
	var retryErr *collab.RetryableError
	if errors.As(err, &retryErr) && retryErr.RetryAfter > d {
		d = retryErr.RetryAfter
	}
	return d
}

// retryStore calls op up to MaxRetries times while it fails with a
// retryable error. onRetry runs before each wait.
func retryStore(ctx context.Context, backoff func(int) time.Duration, op func() error, onRetry func(attempt int, err error)) error {
	var lastErr error
	for attempt := range MaxRetries {
		lastErr = op()
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == MaxRetries-1 {
			break
		}
		onRetry(attempt, lastErr)
		select {
		case <-time.After(retryDelay(lastErr, attempt, backoff)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
