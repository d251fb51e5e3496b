package run

import (
	"context"

	"github.com/amitk432/Resolve25-sub002/pkg/logger"
	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// Sequential executes steps strictly in declaration order, independent of
// batch membership. A critical failure stops the run; a non-critical one
// degrades it and execution continues.
type Sequential struct{}

func (s *Sequential) Name() string { return StrategySequential }

func (s *Sequential) Run(ctx context.Context, rt *Runtime, steps []*types.Step, batches [][]*types.Step) error {
	for _, step := range steps {
		if ctx.Err() != nil {
			return rt.Aborted()
		}

		critical, err := rt.ExecuteStep(ctx, step)
		rt.Progress()

		if err != nil && ctx.Err() != nil {
			return rt.Aborted()
		}
		if critical {
			logger.Warn("task %s: critical step %s failed, stopping run", rt.TaskID, step.ID)
			return nil
		}
	}
	return nil
}
