package retry

import (
	"context"
	"errors"
	"time"
)

// ErrRetry tells Blocking to call the function again after backoff.
var ErrRetry = errors.New("retry")

// Backoff is a (blocking) function returns when to retry.
//
// # Args
//
// - context: context. If context is canceled, Backoff should return ctx.Err().
//
// # Returns
//
// - error: nil if retry, non-nil if not.
type Backoff func(context.Context) error

// NoWait returns a Backoff which does not wait at all.
//
// It still respects cancellation of the context.
func NoWait() Backoff {
	return func(ctx context.Context) error {
		return ctx.Err()
	}
}

// StaticBackoff returns a Backoff function that waits for a fixed interval.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1, interval)
}

// ExponentialBackoff returns a Backoff function that waits with exponential backoff.
//
// # Args
//
// - initialInterval: initial interval.
//
// - r: multiplier of interval.
//
// - ceiling: upper bound of interval. Non-positive means unbounded.
//
// # Returns
//
// Backoff function.
// For N-th call, it waits for `min(initialInterval * r^N, ceiling)` or context to be done.
func ExponentialBackoff(initialInterval time.Duration, r float64, ceiling time.Duration) Backoff {
	interval := initialInterval
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			next := time.Duration(int64(float64(interval) * r))
			if 0 < ceiling && ceiling < next {
				next = ceiling
			}
			interval = next
			return nil
		}
	}
}

// Blocking calls f until it returns nil or non-retry error.
//
// Backoff is awaited before each call, including the first one.
//
// # Args
//
// - ctx: context
//
// - b: backoff function
//
// - f: function to be called. If f returns ErrRetry, Blocking calls f again after backoff.
//
// # Returns
//
// - T: last return value of f
//
// - error: error returned by f, or by b when it gives up.
func Blocking[T any](ctx context.Context, b Backoff, f func() (T, error)) (T, error) {
	last := *new(T)
	for {
		if err := b(ctx); err != nil {
			return last, err
		}

		var err error
		last, err = f()
		if err == nil {
			return last, nil
		}
		if errors.Is(err, ErrRetry) {
			continue
		}
		return last, err
	}
}
