package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrTaskNotFound is returned for operations on unknown task IDs.
var ErrTaskNotFound = errors.New("task not found")

// ErrTaskRunning is returned when a result is requested before the run
// reached a terminal state.
var ErrTaskRunning = errors.New("task still running")

// CyclicDependencyError means the batcher could not resolve a layer: either
// a dependency cycle exists or a dependency references an absent step. It is
// fatal and surfaces synchronously at submission, before any step runs.
type CyclicDependencyError struct {
	// Remaining lists the step IDs that could not be placed in any batch.
	Remaining []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic or unresolvable dependencies among steps: %v", e.Remaining)
}

// StepExecutionError wraps a failure of a step's underlying action.
type StepExecutionError struct {
	StepID   string
	StepType string
	Err      error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s (%s) failed: %v", e.StepID, e.StepType, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// StepTimeoutError is the timeout variant of a step failure. It enters the
// retry controller like any other step error.
type StepTimeoutError struct {
	StepID  string
	Timeout time.Duration
}

func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("step %s timed out after %s", e.StepID, e.Timeout)
}

// TaskAbortedError is raised when the cancellation signal is observed
// mid-run. In-flight steps are not forcibly terminated; no new steps start.
type TaskAbortedError struct {
	TaskID string
}

func (e *TaskAbortedError) Error() string {
	return fmt.Sprintf("task %s aborted", e.TaskID)
}
