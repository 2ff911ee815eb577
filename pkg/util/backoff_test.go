package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/stretchr/testify/require"
)

func TestConstantInterval(t *testing.T) {
	t.Parallel()
	bo := NewPollFactory(time.Second)()
	for i := 0; i < 10; i++ {
		// Ensure it neither grows nor jitters
		require.Equal(t, time.Second, bo.NextBackOff())
	}
}

func TestGrowingIntervalIsCapped(t *testing.T) {
	t.Parallel()
	bo := NewBackoffFactory(2.0, 10*time.Millisecond, 100*time.Millisecond)()
	expected := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		80 * time.Millisecond,
		100 * time.Millisecond,
		100 * time.Millisecond,
	}
	for _, want := range expected {
		d := bo.NextBackOff()
		require.NotEqual(t, backoff.Stop, d)
		require.Equal(t, want, d)
	}
}

func TestMaxIntervalBelowInterval(t *testing.T) {
	t.Parallel()
	bo := NewBackoffFactory(2.0, time.Second, time.Millisecond)()
	require.Equal(t, time.Second, bo.NextBackOff())
	require.Equal(t, time.Second, bo.NextBackOff())
}

func TestRetryUntilSucceeds(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := RetryUntil(context.Background(), NewPollFactory(time.Millisecond), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryUntilReturnsLastError(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	errLast := errors.New("never")
	err := RetryUntil(ctx, NewPollFactory(time.Millisecond), func() error {
		return errLast
	})
	require.Equal(t, errLast, err)
}
