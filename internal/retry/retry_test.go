package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

func TestDelayExponentialCapped(t *testing.T) {
	strategy := types.RetryStrategy{
		Backoff:   types.BackoffExponential,
		BaseDelay: 1000 * time.Millisecond,
		MaxDelay:  5000 * time.Millisecond,
	}

	assert.Equal(t, 1000*time.Millisecond, Delay(strategy, 1))
	assert.Equal(t, 2000*time.Millisecond, Delay(strategy, 2))
	assert.Equal(t, 4000*time.Millisecond, Delay(strategy, 3))
	assert.Equal(t, 5000*time.Millisecond, Delay(strategy, 4))
}

func TestDelayLinear(t *testing.T) {
	strategy := types.RetryStrategy{
		Backoff:   types.BackoffLinear,
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  250 * time.Millisecond,
	}

	assert.Equal(t, 100*time.Millisecond, Delay(strategy, 1))
	assert.Equal(t, 200*time.Millisecond, Delay(strategy, 2))
	assert.Equal(t, 250*time.Millisecond, Delay(strategy, 3))
}

func TestDelayFixed(t *testing.T) {
	strategy := types.RetryStrategy{
		Backoff:   types.BackoffFixed,
		BaseDelay: 300 * time.Millisecond,
	}

	for attempt := 1; attempt <= 5; attempt++ {
		assert.Equal(t, 300*time.Millisecond, Delay(strategy, attempt))
	}
}

func TestRunSucceedsAfterRetries(t *testing.T) {
	step := &types.Step{
		ID:   "flaky",
		Type: "noop",
		Retry: types.RetryStrategy{
			MaxAttempts: 3,
			Backoff:     types.BackoffFixed,
			BaseDelay:   time.Millisecond,
		},
	}

	calls := 0
	outcome := Run(context.Background(), step, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, outcome.Err)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, 3, calls)
}

func TestRunExhaustsAttempts(t *testing.T) {
	step := &types.Step{
		ID:   "broken",
		Type: "noop",
		Retry: types.RetryStrategy{
			MaxAttempts: 3,
			Backoff:     types.BackoffFixed,
			BaseDelay:   time.Millisecond,
		},
	}

	calls := 0
	wantErr := errors.New("permanent")
	outcome := Run(context.Background(), step, func(ctx context.Context) error {
		calls++
		return wantErr
	})

	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, outcome.Attempts)
	assert.ErrorIs(t, outcome.Err, wantErr)
}

func TestRunPredicateStopsRetry(t *testing.T) {
	step := &types.Step{
		ID:   "fatal",
		Type: "noop",
		Retry: types.RetryStrategy{
			MaxAttempts: 5,
			BaseDelay:   time.Millisecond,
			Predicate:   func(err error) bool { return false },
		},
	}

	calls := 0
	outcome := Run(context.Background(), step, func(ctx context.Context) error {
		calls++
		return errors.New("not retryable")
	})

	assert.Equal(t, 1, calls)
	assert.Error(t, outcome.Err)
}

func TestRunStepTimeout(t *testing.T) {
	step := &types.Step{
		ID:      "slow",
		Type:    "noop",
		Timeout: 10 * time.Millisecond,
		Retry: types.RetryStrategy{
			MaxAttempts: 2,
			Backoff:     types.BackoffFixed,
			BaseDelay:   time.Millisecond,
		},
	}

	outcome := Run(context.Background(), step, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.Error(t, outcome.Err)
	var timeoutErr *types.StepTimeoutError
	assert.ErrorAs(t, outcome.Err, &timeoutErr)
	assert.Equal(t, 2, outcome.Attempts)
}

func TestRunCancelledContext(t *testing.T) {
	step := &types.Step{
		ID:   "cancelled",
		Type: "noop",
		Retry: types.RetryStrategy{
			MaxAttempts: 10,
			Backoff:     types.BackoffFixed,
			BaseDelay:   time.Hour, // the wait must not block a cancelled run
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	outcome := Run(ctx, step, func(ctx context.Context) error {
		cancel()
		return errors.New("boom")
	})

	assert.ErrorIs(t, outcome.Err, context.Canceled)
	assert.Equal(t, 1, outcome.Attempts)
}

func TestDelayProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		strategy := types.RetryStrategy{
			Backoff: rapid.SampledFrom([]types.BackoffStrategy{
				types.BackoffFixed, types.BackoffLinear, types.BackoffExponential,
			}).Draw(t, "backoff"),
			BaseDelay: time.Duration(rapid.Int64Range(1, int64(time.Minute)).Draw(t, "base")),
			MaxDelay:  time.Duration(rapid.Int64Range(1, int64(time.Hour)).Draw(t, "max")),
		}
		attempt := rapid.IntRange(1, 50).Draw(t, "attempt")

		delay := Delay(strategy, attempt)
		if delay <= 0 {
			t.Fatalf("delay must be positive, got %s", delay)
		}
		if delay > strategy.MaxDelay {
			t.Fatalf("delay %s exceeds max %s", delay, strategy.MaxDelay)
		}
	})
}
