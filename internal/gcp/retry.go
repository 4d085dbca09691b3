package gcpinternal

import (
	"context"
	"time"

	"github.com/googleapis/gax-go/v2"
)

// Retry policy applied uniformly by walkers: up to MaxAttempts tries with
// exponential backoff between them. Permanent failures (permission denied,
// API disabled, not found) short-circuit on the first attempt.
const MaxAttempts = 3

func newBackoff() gax.Backoff {
	return gax.Backoff{
		Initial:    4 * time.Second,
		Max:        10 * time.Second,
		Multiplier: 2,
	}
}

// Retry invokes fn up to MaxAttempts times, sleeping per the backoff policy
// between attempts. fn's error is parsed through ParseGCPError before the
// retry decision so only transient failures burn attempts.
func Retry(ctx context.Context, apiName string, fn func(ctx context.Context) error) error {
	backoff := newBackoff()

	var lastErr error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := gax.Sleep(ctx, backoff.Pause()); err != nil {
				return err
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = ParseGCPError(err, apiName)
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// RetryValue is Retry for calls that return a value.
func RetryValue[T any](ctx context.Context, apiName string, fn func(ctx context.Context) (T, error)) (T, error) {
	var value T
	err := Retry(ctx, apiName, func(ctx context.Context) error {
		var innerErr error
		value, innerErr = fn(ctx)
		return innerErr
	})
	return value, err
}
