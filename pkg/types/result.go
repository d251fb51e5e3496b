package types

import "time"

// RunStatus is the per-run state machine:
// Created -> Running -> {Completed, Failed, Aborted}.
type RunStatus string

const (
	RunCreated   RunStatus = "created"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunAborted   RunStatus = "aborted"
)

// TaskStatus is what GetStatus reports to callers.
type TaskStatus string

const (
	TaskStatusRunning  TaskStatus = "running"
	TaskStatusNotFound TaskStatus = "not_found"
)

// StepOutcome is the terminal record of one step within a run.
type StepOutcome struct {
	StepID   string        `json:"step_id"`
	Status   StepStatus    `json:"status"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Output   any           `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// ExecutionError is one entry of the ordered error list in a result.
type ExecutionError struct {
	StepID    string    `json:"step_id"`
	StepType  string    `json:"step_type,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`

	// Cause keeps the wrapped error for in-process callers.
	Cause error `json:"-"`
}

// ResourceUsage is a snapshot of pool pressure taken at run completion.
type ResourceUsage struct {
	PeakUtilization  float64 `json:"peak_utilization"`
	HandlesAllocated int     `json:"handles_allocated"`
}

// PerformanceMetrics aggregates per-step timing for a run.
type PerformanceMetrics struct {
	StepDurations map[string]time.Duration `json:"step_durations"`
	RetryCounts   map[string]int           `json:"retry_counts"`
	SuccessRate   float64                  `json:"success_rate"`
	// Throughput is completed steps per second over the run.
	Throughput float64 `json:"throughput"`
	// Latency percentiles in milliseconds, keyed "p50", "p90", "p99", "max".
	LatencyMS map[string]float64 `json:"latency_ms,omitempty"`
}

// ExecutionResult is built incrementally during a run and finalized at
// completion, failure or abort. The engine always returns one, even for
// failed runs.
type ExecutionResult struct {
	TaskID         string                  `json:"task_id"`
	Status         RunStatus               `json:"status"`
	Success        bool                    `json:"success"`
	Degraded       bool                    `json:"degraded"`
	StepsCompleted int                     `json:"steps_completed"`
	TotalSteps     int                     `json:"total_steps"`
	ExecutionTime  time.Duration           `json:"execution_time"`
	Strategy       string                  `json:"strategy,omitempty"`
	StrategyReason string                  `json:"strategy_reason,omitempty"`
	Outcomes       map[string]*StepOutcome `json:"outcomes"`
	Errors         []ExecutionError        `json:"errors"`
	ResourceUsage  ResourceUsage           `json:"resource_usage"`
	Metrics        *PerformanceMetrics     `json:"metrics,omitempty"`
}

// NewExecutionResult creates a result in the Created state.
func NewExecutionResult(taskID string, totalSteps int) *ExecutionResult {
	return &ExecutionResult{
		TaskID:     taskID,
		Status:     RunCreated,
		TotalSteps: totalSteps,
		Outcomes:   make(map[string]*StepOutcome),
		Errors:     make([]ExecutionError, 0),
	}
}
