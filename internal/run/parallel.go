package run

import (
	"context"
	"sync"

	"github.com/amitk432/Resolve25-sub002/pkg/logger"
	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// Parallel processes one batch at a time. Steps within a batch dispatch
// concurrently, bounded by the resource pool ceiling. A failing sibling does
// not cancel others in its batch; failures are collected. A critical failure
// anywhere in a batch stops subsequent batches.
type Parallel struct{}

func (p *Parallel) Name() string { return StrategyParallel }

func (p *Parallel) Run(ctx context.Context, rt *Runtime, steps []*types.Step, batches [][]*types.Step) error {
	for i, batch := range batches {
		if ctx.Err() != nil {
			return rt.Aborted()
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		criticalFailed := false

		for _, step := range batch {
			if ctx.Err() != nil {
				break
			}

			wg.Add(1)
			go func(step *types.Step) {
				defer wg.Done()
				critical, _ := rt.ExecuteStep(ctx, step)
				if critical {
					mu.Lock()
					criticalFailed = true
					mu.Unlock()
				}
			}(step)
		}
		wg.Wait()

		// One progress event per completed batch.
		rt.Progress()

		if ctx.Err() != nil {
			return rt.Aborted()
		}
		if criticalFailed {
			logger.Warn("task %s: critical failure in batch %d, skipping remaining batches", rt.TaskID, i)
			return nil
		}
	}
	return nil
}
