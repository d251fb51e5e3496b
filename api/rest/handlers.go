package rest

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/amitk432/Resolve25-sub002/internal/parser"
	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// healthCheck handles GET /health
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// submitTask handles POST /api/v1/tasks
func (s *Server) submitTask(c *fiber.Ctx) error {
	var req SubmitTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
		})
	}

	steps := req.Steps
	execCtx := req.Context
	strategy := req.Strategy

	if req.YAML != "" {
		plan, err := parser.Parse([]byte(req.YAML))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_plan",
				Message: err.Error(),
			})
		}
		steps, err = plan.Compile()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_plan",
				Message: err.Error(),
			})
		}
		execCtx = plan.Context
		if strategy == "" {
			strategy = plan.Strategy
		}
	}

	if len(steps) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Either 'yaml' or 'steps' must be provided",
		})
	}

	taskID, err := s.engine.SubmitWith(strategy, steps, execCtx)
	if err != nil {
		var cyclic *types.CyclicDependencyError
		if errors.As(err, &cyclic) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "cyclic_dependencies",
				Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "submission_rejected",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(SubmitTaskResponse{
		TaskID: taskID,
		Status: "submitted",
	})
}

// listWorkers handles GET /api/v1/workers
func (s *Server) listWorkers(c *fiber.Ctx) error {
	return c.JSON(WorkersResponse{Workers: s.engine.Workers()})
}

// getTask handles GET /api/v1/tasks/:id
func (s *Server) getTask(c *fiber.Ctx) error {
	taskID := c.Params("id")
	status := s.engine.Status(taskID)

	code := fiber.StatusOK
	if status == types.TaskStatusNotFound {
		code = fiber.StatusNotFound
	}
	return c.Status(code).JSON(TaskStatusResponse{
		TaskID: taskID,
		Status: status,
	})
}

// abortTask handles DELETE /api/v1/tasks/:id
func (s *Server) abortTask(c *fiber.Ctx) error {
	taskID := c.Params("id")

	if err := s.engine.Abort(taskID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "task_not_found",
			Message: err.Error(),
		})
	}
	return c.JSON(TaskStatusResponse{
		TaskID: taskID,
		Status: "aborting",
	})
}

// getTaskResult handles GET /api/v1/tasks/:id/result
func (s *Server) getTaskResult(c *fiber.Ctx) error {
	taskID := c.Params("id")

	result, err := s.engine.Result(taskID)
	switch {
	case errors.Is(err, types.ErrTaskNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "task_not_found",
			Message: err.Error(),
		})
	case errors.Is(err, types.ErrTaskRunning):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "task_running",
			Message: err.Error(),
		})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "result_unavailable",
			Message: err.Error(),
		})
	}
	return c.JSON(result)
}
