package types

import "time"

// EventType identifies a lifecycle event on the engine's event bus.
type EventType string

const (
	// EventStepStarted fires when a step attempt begins.
	EventStepStarted EventType = "step_started"
	// EventStepCompleted fires when a step reaches terminal success.
	EventStepCompleted EventType = "step_completed"
	// EventStepFailed fires when a step exhausts its retries.
	EventStepFailed EventType = "step_failed"
	// EventProgress reports completed/total after a step (sequential) or a
	// batch (parallel).
	EventProgress EventType = "progress"
	// EventTaskCompleted fires once per run on completion or failure.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskAborted fires when the cancellation signal is observed.
	EventTaskAborted EventType = "task_aborted"
)

// Event is one entry of the append-only, at-least-once event stream.
// Events are ordered per task.
type Event struct {
	Type       EventType     `json:"type"`
	TaskID     string        `json:"task_id"`
	StepID     string        `json:"step_id,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Error      string        `json:"error,omitempty"`
	Completed  int           `json:"completed,omitempty"`
	Total      int           `json:"total,omitempty"`
	Percentage float64       `json:"percentage,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}
