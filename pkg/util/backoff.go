package util

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// DefaultMaxPollInterval caps the interval of a growing poll backoff.
const DefaultMaxPollInterval = 500 * time.Millisecond

type BackoffFactory func() backoff.BackOff

// NewBackoffFactory creates a new BackoffFactory based on a backoff.ExponentialBackOff
// which never gives up on its own; callers bound it with a context. Intervals are not
// randomized: each wait is exactly interval * multiplier^n, capped at maxInterval.
func NewBackoffFactory(multiplier float64, interval, maxInterval time.Duration) BackoffFactory {
	if maxInterval < interval {
		maxInterval = interval
	}
	return func() backoff.BackOff {
		bo := backoff.NewExponentialBackOff()
		bo.Multiplier = multiplier
		bo.InitialInterval = interval
		bo.MaxInterval = maxInterval
		bo.MaxElapsedTime = 0
		bo.RandomizationFactor = 0
		bo.Reset() // Reset is required to make the InitialInterval change take effect.
		return bo
	}
}

// NewPollFactory returns a BackoffFactory that polls at a constant interval.
func NewPollFactory(interval time.Duration) BackoffFactory {
	return NewBackoffFactory(1.0, interval, interval)
}

// RetryUntil calls op until it succeeds or ctx is done, waiting between attempts as
// dictated by a backoff from factory. The last error of op is returned on timeout.
func RetryUntil(ctx context.Context, factory BackoffFactory, op func() error) error {
	return backoff.Retry(op, backoff.WithContext(factory(), ctx))
}
