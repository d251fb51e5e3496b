package rest

import "github.com/amitk432/Resolve25-sub002/pkg/types"

// SubmitTaskRequest carries either a YAML plan or an inline step list.
type SubmitTaskRequest struct {
	// YAML is a complete task plan; when set it wins over Steps.
	YAML string `json:"yaml,omitempty"`

	Steps    []*types.Step           `json:"steps,omitempty"`
	Context  *types.ExecutionContext `json:"context,omitempty"`
	Strategy string                  `json:"strategy,omitempty"`
}

// SubmitTaskResponse acknowledges an accepted submission.
type SubmitTaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// TaskStatusResponse reports the engine's view of a task.
type TaskStatusResponse struct {
	TaskID string           `json:"task_id"`
	Status types.TaskStatus `json:"status"`
}

// WorkersResponse lists the logical workers tasks are distributed across.
type WorkersResponse struct {
	Workers []*types.WorkerInstance `json:"workers"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
