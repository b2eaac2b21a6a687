// Package retry re-runs an operation with linear or capped exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/bsv-blockchain/escrowledger/ulogger"
)

type Options struct {
	retryCount        int
	infinite          bool
	backoffMultiplier int
	backoffDuration   time.Duration
	exponential       bool
	backoffFactor     float64
	maxBackoff        time.Duration
	message           string
	retryIf           func(error) bool
}

type Option func(*Options)

func WithRetryCount(n int) Option {
	return func(o *Options) {
		o.retryCount = n
	}
}

// WithInfiniteRetry retries until the operation succeeds, fails permanently or ctx is done.
func WithInfiniteRetry() Option {
	return func(o *Options) {
		o.infinite = true
	}
}

func WithBackoffMultiplier(m int) Option {
	return func(o *Options) {
		o.backoffMultiplier = m
	}
}

func WithBackoffDurationType(d time.Duration) Option {
	return func(o *Options) {
		o.backoffDuration = d
	}
}

func WithExponentialBackoff() Option {
	return func(o *Options) {
		o.exponential = true
	}
}

func WithBackoffFactor(f float64) Option {
	return func(o *Options) {
		o.backoffFactor = f
	}
}

func WithMaxBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.maxBackoff = d
	}
}

func WithMessage(msg string) Option {
	return func(o *Options) {
		o.message = msg
	}
}

// WithRetryIf stops retrying as soon as shouldRetry returns false for an error.
func WithRetryIf(shouldRetry func(error) bool) Option {
	return func(o *Options) {
		o.retryIf = shouldRetry
	}
}

// Retry calls f until it succeeds, the attempts run out, the error is permanent or ctx is done.
// The last error is returned; a done context returns ctx.Err().
func Retry[T any](ctx context.Context, logger ulogger.Logger, f func() (T, error), opts ...Option) (T, error) {
	o := &Options{
		retryCount:        3,
		backoffMultiplier: 2,
		backoffDuration:   time.Second,
		backoffFactor:     2.0,
		maxBackoff:        30 * time.Second,
		message:           "retrying",
	}

	for _, opt := range opts {
		opt(o)
	}

	var (
		result  T
		err     error
		backoff = o.backoffDuration
	)

	for attempt := 0; o.infinite || attempt < o.retryCount; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		result, err = f()
		if err == nil {
			return result, nil
		}

		if o.retryIf != nil && !o.retryIf(err) {
			return result, err
		}

		if !o.infinite && attempt == o.retryCount-1 {
			break
		}

		logger.Warnf("%s (attempt %d): %v", o.message, attempt+1, err)

		if o.exponential {
			if err := sleepFunc(ctx, backoff); err != nil {
				return result, err
			}

			backoff = CappedExponentialBackoff(backoff, o.backoffFactor, o.maxBackoff)
		} else if err := BackoffAndSleep(ctx, attempt, o.backoffMultiplier, o.backoffDuration); err != nil {
			return result, err
		}
	}

	return result, err
}
