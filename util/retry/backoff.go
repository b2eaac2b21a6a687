package retry

import (
	"context"
	"time"
)

// sleepFunc is swapped out by tests.
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// BackoffAndSleep sleeps (backoffMultiplier*retries + 1) units of durationType, or until ctx is done.
func BackoffAndSleep(ctx context.Context, retries int, backoffMultiplier int, durationType time.Duration) error {
	backoff := (backoffMultiplier * retries) + 1
	return sleepFunc(ctx, time.Duration(backoff)*durationType)
}

// CappedExponentialBackoff multiplies currentBackoff by backoffFactor, never exceeding maxBackoff.
func CappedExponentialBackoff(currentBackoff time.Duration, backoffFactor float64, maxBackoff time.Duration) time.Duration {
	nextBackoff := time.Duration(float64(currentBackoff) * backoffFactor)
	if nextBackoff > maxBackoff {
		return maxBackoff
	}

	return nextBackoff
}
