package types

import "time"

// BackoffStrategy maps a retry attempt number to a wait delay.
type BackoffStrategy string

const (
	// BackoffFixed waits BaseDelay between every attempt.
	BackoffFixed BackoffStrategy = "fixed"
	// BackoffLinear waits BaseDelay multiplied by the attempt number.
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential doubles the delay on every attempt.
	BackoffExponential BackoffStrategy = "exponential"
)

// DefaultCriticalPriority is the priority above which a step failure fails
// the whole run instead of degrading it. Kept as a named constant; callers
// may override it through the engine configuration.
const DefaultCriticalPriority = 7

// RetryPredicate reports whether an error is worth another attempt.
// A nil predicate retries every error.
type RetryPredicate func(error) bool

// RetryStrategy bounds retries for a single step.
type RetryStrategy struct {
	MaxAttempts int             `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
	Backoff     BackoffStrategy `yaml:"backoff,omitempty" json:"backoff,omitempty"`
	BaseDelay   time.Duration   `yaml:"base_delay,omitempty" json:"base_delay,omitempty"`
	MaxDelay    time.Duration   `yaml:"max_delay,omitempty" json:"max_delay,omitempty"`

	// Predicate is consulted before each re-attempt. Not serializable.
	Predicate RetryPredicate `yaml:"-" json:"-"`
}

// ResourceRequirements describes what a step needs from the resource pool.
type ResourceRequirements struct {
	MemoryMB                int  `yaml:"memory_mb,omitempty" json:"memory_mb,omitempty"`
	CPUPercent              int  `yaml:"cpu_percent,omitempty" json:"cpu_percent,omitempty"`
	Network                 bool `yaml:"network,omitempty" json:"network,omitempty"`
	RequiresAuthentication  bool `yaml:"requires_authentication,omitempty" json:"requires_authentication,omitempty"`
	RequiresUserInteraction bool `yaml:"requires_user_interaction,omitempty" json:"requires_user_interaction,omitempty"`
}

// Step is one immutable unit of work. IDs are unique within a run and every
// dependency must name a step present in the same run.
type Step struct {
	ID                string               `yaml:"id" json:"id"`
	Type              string               `yaml:"type" json:"type"`
	Target            string               `yaml:"target,omitempty" json:"target,omitempty"`
	Value             string               `yaml:"value,omitempty" json:"value,omitempty"`
	Priority          int                  `yaml:"priority,omitempty" json:"priority,omitempty"`
	Dependencies      []string             `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	EstimatedDuration time.Duration        `yaml:"estimated_duration,omitempty" json:"estimated_duration,omitempty"`
	Timeout           time.Duration        `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Requirements      ResourceRequirements `yaml:"requirements,omitempty" json:"requirements,omitempty"`
	Retry             RetryStrategy        `yaml:"retry,omitempty" json:"retry,omitempty"`
}

// Critical reports whether a failure of this step must fail the run,
// given the configured critical priority threshold.
func (s *Step) Critical(threshold int) bool {
	return s.Priority > threshold
}

// StepStatus is the per-step state machine:
// Pending -> Executing -> {Completed, Failed}. A failed step may re-enter
// Executing through the retry controller until attempts are exhausted.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepExecuting StepStatus = "executing"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)
