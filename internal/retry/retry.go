// Package retry wraps a single step's execution with bounded retry and
// backoff. Waits between attempts are context-aware suspensions, never busy
// loops.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/amitk432/Resolve25-sub002/pkg/logger"
	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

const (
	// DefaultMaxAttempts applies when a step carries no retry strategy.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay applies when a step's strategy has no base delay.
	DefaultBaseDelay = time.Second
)

// AttemptFunc runs one attempt of a step's underlying action.
type AttemptFunc func(ctx context.Context) error

// Outcome reports how a retried execution ended.
type Outcome struct {
	Attempts int
	Err      error
}

// Run executes fn under the step's retry strategy. The per-attempt timeout
// comes from step.Timeout; exceeding it is a step failure that re-enters the
// retry loop as a *types.StepTimeoutError. After attempts are exhausted, or
// the predicate rejects the error, the last error propagates to the caller.
func Run(ctx context.Context, step *types.Step, fn AttemptFunc) Outcome {
	strategy := step.Retry
	maxAttempts := strategy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Attempts: attempt - 1, Err: err}
		}

		lastErr = runAttempt(ctx, step, fn)
		if lastErr == nil {
			return Outcome{Attempts: attempt}
		}

		if strategy.Predicate != nil && !strategy.Predicate(lastErr) {
			logger.Debug("step %s: error not retryable, giving up after attempt %d", step.ID, attempt)
			return Outcome{Attempts: attempt, Err: lastErr}
		}

		if attempt == maxAttempts {
			break
		}

		delay := Delay(strategy, attempt)
		logger.Debug("step %s: attempt %d failed (%v), retrying in %s", step.ID, attempt, lastErr, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Outcome{Attempts: attempt, Err: ctx.Err()}
		case <-timer.C:
		}
	}

	return Outcome{Attempts: maxAttempts, Err: lastErr}
}

// runAttempt applies the step timeout and classifies deadline hits.
func runAttempt(ctx context.Context, step *types.Step, fn AttemptFunc) error {
	attemptCtx := ctx
	var cancel context.CancelFunc
	if step.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	err := fn(attemptCtx)
	if err == nil {
		return nil
	}

	// A deadline on the attempt context, not the parent, is a step timeout.
	if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return &types.StepTimeoutError{StepID: step.ID, Timeout: step.Timeout}
	}
	return err
}

// Delay computes the wait before re-attempting after the given attempt
// number (1-based):
//
//	linear:      min(base × attempt, max)
//	exponential: min(base × 2^(attempt-1), max)
//	fixed:       base
func Delay(strategy types.RetryStrategy, attempt int) time.Duration {
	base := strategy.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if attempt < 1 {
		attempt = 1
	}

	var delay time.Duration
	switch strategy.Backoff {
	case types.BackoffLinear:
		delay = base * time.Duration(attempt)
	case types.BackoffExponential:
		delay = base * time.Duration(math.Pow(2, float64(attempt-1)))
	case types.BackoffFixed:
		delay = base
	default:
		delay = base
	}

	// Overflowed multiplications land here too.
	if strategy.MaxDelay > 0 && (delay > strategy.MaxDelay || delay <= 0) {
		delay = strategy.MaxDelay
	}
	return delay
}
