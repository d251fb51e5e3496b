package types

import "time"

// WorkerInstance is a logical execution slot tracked by the load balancer.
// It is distinct from a ResourceHandle: workers queue whole tasks, handles
// bound per-step concurrency.
type WorkerInstance struct {
	ID           string   `json:"id"`
	Capabilities []string `json:"capabilities,omitempty"`
	// CurrentLoad stays within [0, 1].
	CurrentLoad       float64       `json:"current_load"`
	NextAvailable     time.Time     `json:"next_available"`
	TasksProcessed    int64         `json:"tasks_processed"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
	SuccessRate       float64       `json:"success_rate"`
}

// HasCapability reports whether the worker advertises the capability.
// An empty requirement matches any worker.
func (w *WorkerInstance) HasCapability(capability string) bool {
	if capability == "" {
		return true
	}
	for _, c := range w.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// TaskSpec is a whole task the load balancer assigns to a worker, one level
// above the per-task step engine.
type TaskSpec struct {
	ID                 string        `json:"id"`
	Priority           int           `json:"priority"`
	EstimatedDuration  time.Duration `json:"estimated_duration"`
	RequiredCapability string        `json:"required_capability,omitempty"`
}
