// Package run contains the interchangeable execution strategies (sequential,
// parallel) and the adaptive selector that picks between them per run.
package run

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/amitk432/Resolve25-sub002/internal/action"
	"github.com/amitk432/Resolve25-sub002/internal/event"
	"github.com/amitk432/Resolve25-sub002/internal/metrics"
	"github.com/amitk432/Resolve25-sub002/internal/resource"
	"github.com/amitk432/Resolve25-sub002/internal/retry"
	"github.com/amitk432/Resolve25-sub002/pkg/logger"
	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// Runtime bundles everything a strategy needs to execute steps: the action
// registry, the resource pool, the event bus, the metrics recorder and the
// incrementally built result. Step implementations never touch pool or
// worker state directly; all shared mutation funnels through here.
type Runtime struct {
	TaskID  string
	Context *types.ExecutionContext

	Actions  *action.Registry
	Pool     *resource.Pool
	Bus      *event.Bus
	Recorder *metrics.Recorder

	// CriticalPriority is the threshold above which a step failure fails
	// the whole run.
	CriticalPriority int

	mu             sync.Mutex
	result         *types.ExecutionResult
	failedCritical bool
}

// NewRuntime prepares a runtime for one run.
func NewRuntime(taskID string, execCtx *types.ExecutionContext, totalSteps int,
	actions *action.Registry, pool *resource.Pool, bus *event.Bus, criticalPriority int) *Runtime {
	if criticalPriority <= 0 {
		criticalPriority = types.DefaultCriticalPriority
	}
	return &Runtime{
		TaskID:           taskID,
		Context:          execCtx,
		Actions:          actions,
		Pool:             pool,
		Bus:              bus,
		Recorder:         metrics.NewRecorder(),
		CriticalPriority: criticalPriority,
		result:           types.NewExecutionResult(taskID, totalSteps),
	}
}

// Result returns the result under construction. Strategies and the engine
// share it; the engine finalizes it.
func (rt *Runtime) Result() *types.ExecutionResult {
	return rt.result
}

// FailedCritical reports whether a step above the critical priority failed.
func (rt *Runtime) FailedCritical() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.failedCritical
}

// ExecuteStep runs one step to a terminal state: resource acquisition,
// retries, outcome recording and events. It returns whether the failure was
// critical for the run (always false on success).
func (rt *Runtime) ExecuteStep(ctx context.Context, step *types.Step) (critical bool, err error) {
	rt.Bus.Publish(types.Event{
		Type:   types.EventStepStarted,
		TaskID: rt.TaskID,
		StepID: step.ID,
	})

	start := time.Now()

	handle, err := rt.Pool.Allocate(ctx, rt.Context.SessionID, step.Requirements)
	if err != nil {
		return rt.recordFailure(step, start, 0, err)
	}
	// Pinned so an attempt outliving the idle timeout keeps its handle.
	rt.Pool.Pin(handle)
	defer rt.Pool.Release(handle)

	executor, err := rt.Actions.Get(step.Type)
	if err != nil {
		return rt.recordFailure(step, start, 0, err)
	}

	var output any
	outcome := retry.Run(ctx, step, func(attemptCtx context.Context) error {
		rt.Pool.Touch(handle)
		out, execErr := executor.Execute(attemptCtx, step, rt.Context)
		if execErr != nil {
			return execErr
		}
		output = out
		return nil
	})

	duration := time.Since(start)
	if outcome.Err != nil {
		return rt.recordFailureAttempts(step, duration, outcome.Attempts, outcome.Err)
	}

	rt.recordSuccess(step, duration, outcome.Attempts, output)
	return false, nil
}

// Progress emits a progress event reflecting the current completion count.
func (rt *Runtime) Progress() {
	rt.mu.Lock()
	completed := rt.result.StepsCompleted
	total := rt.result.TotalSteps
	rt.mu.Unlock()

	percentage := 0.0
	if total > 0 {
		percentage = 100 * float64(completed) / float64(total)
	}
	rt.Bus.Publish(types.Event{
		Type:       types.EventProgress,
		TaskID:     rt.TaskID,
		Completed:  completed,
		Total:      total,
		Percentage: percentage,
	})
}

// Aborted marks the run aborted and emits the abort event.
func (rt *Runtime) Aborted() *types.TaskAbortedError {
	abortErr := &types.TaskAbortedError{TaskID: rt.TaskID}

	rt.mu.Lock()
	rt.result.Status = types.RunAborted
	rt.result.Errors = append(rt.result.Errors, types.ExecutionError{
		Message:   abortErr.Error(),
		Timestamp: time.Now(),
		Cause:     abortErr,
	})
	rt.mu.Unlock()

	rt.Bus.Publish(types.Event{
		Type:   types.EventTaskAborted,
		TaskID: rt.TaskID,
	})
	return abortErr
}

func (rt *Runtime) recordSuccess(step *types.Step, duration time.Duration, attempts int, output any) {
	rt.Recorder.RecordStep(step.ID, duration, attempts, false)

	rt.mu.Lock()
	rt.result.Outcomes[step.ID] = &types.StepOutcome{
		StepID:   step.ID,
		Status:   types.StepCompleted,
		Attempts: attempts,
		Duration: duration,
		Output:   output,
	}
	rt.result.StepsCompleted++
	rt.mu.Unlock()

	rt.Bus.Publish(types.Event{
		Type:     types.EventStepCompleted,
		TaskID:   rt.TaskID,
		StepID:   step.ID,
		Duration: duration,
	})
}

func (rt *Runtime) recordFailure(step *types.Step, start time.Time, attempts int, err error) (bool, error) {
	return rt.recordFailureAttempts(step, time.Since(start), attempts, err)
}

func (rt *Runtime) recordFailureAttempts(step *types.Step, duration time.Duration, attempts int, err error) (bool, error) {
	wrapped := wrapStepError(step, err)
	critical := step.Critical(rt.CriticalPriority)

	rt.Recorder.RecordStep(step.ID, duration, attempts, true)

	rt.mu.Lock()
	rt.result.Outcomes[step.ID] = &types.StepOutcome{
		StepID:   step.ID,
		Status:   types.StepFailed,
		Attempts: attempts,
		Duration: duration,
		Error:    wrapped.Error(),
	}
	rt.result.Errors = append(rt.result.Errors, types.ExecutionError{
		StepID:    step.ID,
		StepType:  step.Type,
		Message:   wrapped.Error(),
		Timestamp: time.Now(),
		Cause:     wrapped,
	})
	if critical {
		rt.failedCritical = true
	} else {
		rt.result.Degraded = true
	}
	rt.mu.Unlock()

	logger.Warn("task %s: step %s failed after %d attempts: %v", rt.TaskID, step.ID, attempts, err)
	rt.Bus.Publish(types.Event{
		Type:   types.EventStepFailed,
		TaskID: rt.TaskID,
		StepID: step.ID,
		Error:  wrapped.Error(),
	})

	return critical, wrapped
}

// wrapStepError keeps already classified errors and wraps raw action errors
// with the step identity.
func wrapStepError(step *types.Step, err error) error {
	switch err.(type) {
	case *types.StepExecutionError, *types.StepTimeoutError, *types.TaskAbortedError:
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &types.StepExecutionError{StepID: step.ID, StepType: step.Type, Err: err}
}
