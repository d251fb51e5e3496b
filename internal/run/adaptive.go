package run

import (
	"fmt"

	"github.com/amitk432/Resolve25-sub002/internal/batch"
	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// Thresholds are the adaptive selector's decision bounds. The numeric
// defaults come from the original heuristic and are preserved as
// configuration rather than reinterpreted.
type Thresholds struct {
	// MinIndependentSteps: parallel needs more than this many
	// zero-dependency steps.
	MinIndependentSteps int `yaml:"min_independent_steps"`
	// MaxInteractiveSteps: parallel needs fewer than this many steps
	// requiring user interaction.
	MaxInteractiveSteps int `yaml:"max_interactive_steps"`
	// MaxHeavyRatio: parallel needs the resource-heavy step ratio below
	// this bound.
	MaxHeavyRatio float64 `yaml:"max_heavy_ratio"`
	// MinCPUCores: parallel needs more than this many context CPU cores.
	MinCPUCores int `yaml:"min_cpu_cores"`
	// HeavyMemoryMB marks a step resource-heavy.
	HeavyMemoryMB int `yaml:"heavy_memory_mb"`
}

// DefaultThresholds returns the preserved heuristic constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinIndependentSteps: 3,
		MaxInteractiveSteps: 2,
		MaxHeavyRatio:       0.3,
		MinCPUCores:         2,
		HeavyMemoryMB:       512,
	}
}

// Select chooses parallel when every threshold holds, sequential otherwise.
// The returned reason is recorded for observability only; it never feeds
// back into control flow.
func Select(steps []*types.Step, execCtx *types.ExecutionContext, th Thresholds) (name, reason string) {
	independent := batch.Independent(steps)
	interactive := 0
	heavy := 0
	for _, step := range steps {
		if step.Requirements.RequiresUserInteraction {
			interactive++
		}
		if step.Requirements.MemoryMB > th.HeavyMemoryMB {
			heavy++
		}
	}

	heavyRatio := 0.0
	if len(steps) > 0 {
		heavyRatio = float64(heavy) / float64(len(steps))
	}
	cores := 0
	if execCtx != nil {
		cores = execCtx.Environment.CPUCores
	}

	switch {
	case independent <= th.MinIndependentSteps:
		return StrategySequential, fmt.Sprintf("only %d independent steps (need > %d)", independent, th.MinIndependentSteps)
	case interactive >= th.MaxInteractiveSteps:
		return StrategySequential, fmt.Sprintf("%d interactive steps (need < %d)", interactive, th.MaxInteractiveSteps)
	case heavyRatio >= th.MaxHeavyRatio:
		return StrategySequential, fmt.Sprintf("resource-heavy ratio %.2f (need < %.2f)", heavyRatio, th.MaxHeavyRatio)
	case cores <= th.MinCPUCores:
		return StrategySequential, fmt.Sprintf("only %d cpu cores available (need > %d)", cores, th.MinCPUCores)
	default:
		return StrategyParallel, fmt.Sprintf(
			"%d independent steps, %d interactive, heavy ratio %.2f, %d cores",
			independent, interactive, heavyRatio, cores)
	}
}
