// Package batch converts a step list into ordered execution layers. Batch k
// contains exactly the steps whose dependencies all live in batches 0..k-1,
// so every batch is safe to dispatch concurrently once its predecessors
// finished.
package batch

import (
	"fmt"

	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// Build partitions steps into dependency-ordered batches. Every step appears
// in exactly one batch and batch membership is deterministic for a fixed
// input. A dependency cycle, or a dependency naming an absent step, yields a
// *types.CyclicDependencyError before anything runs.
func Build(steps []*types.Step) ([][]*types.Step, error) {
	if err := Validate(steps); err != nil {
		return nil, err
	}

	placed := make(map[string]bool, len(steps))
	remaining := make([]*types.Step, len(steps))
	copy(remaining, steps)

	var batches [][]*types.Step
	for len(remaining) > 0 {
		var ready []*types.Step
		var blocked []*types.Step

		for _, step := range remaining {
			if depsSatisfied(step, placed) {
				ready = append(ready, step)
			} else {
				blocked = append(blocked, step)
			}
		}

		if len(ready) == 0 {
			return nil, &types.CyclicDependencyError{Remaining: stepIDs(blocked)}
		}

		for _, step := range ready {
			placed[step.ID] = true
		}

		batches = append(batches, ready)
		remaining = blocked
	}

	return batches, nil
}

// Validate checks step ID uniqueness and dependency resolvability without
// building the partition. An absent dependency reports the same fatal error
// class a cycle does.
func Validate(steps []*types.Step) error {
	ids := make(map[string]bool, len(steps))
	for _, step := range steps {
		if step.ID == "" {
			return fmt.Errorf("step with empty id")
		}
		if ids[step.ID] {
			return fmt.Errorf("duplicate step id: %s", step.ID)
		}
		ids[step.ID] = true
	}

	var unresolved []string
	for _, step := range steps {
		for _, dep := range step.Dependencies {
			if !ids[dep] {
				unresolved = append(unresolved, step.ID)
				break
			}
		}
	}
	if len(unresolved) > 0 {
		return &types.CyclicDependencyError{Remaining: unresolved}
	}

	return nil
}

// Independent counts steps with no dependencies.
func Independent(steps []*types.Step) int {
	n := 0
	for _, step := range steps {
		if len(step.Dependencies) == 0 {
			n++
		}
	}
	return n
}

func depsSatisfied(step *types.Step, placed map[string]bool) bool {
	for _, dep := range step.Dependencies {
		if !placed[dep] {
			return false
		}
	}
	return true
}

func stepIDs(steps []*types.Step) []string {
	ids := make([]string, len(steps))
	for i, step := range steps {
		ids[i] = step.ID
	}
	return ids
}
