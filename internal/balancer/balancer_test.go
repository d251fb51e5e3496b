package balancer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/amitk432/Resolve25-sub002/internal/clock"
	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

func newTestBalancer() (*Balancer, *clock.Manual) {
	clk := clock.NewManual(time.Unix(10_000, 0))
	return New(DefaultConfig(), clk), clk
}

func task(id string, priority int, estimate time.Duration) *types.TaskSpec {
	return &types.TaskSpec{ID: id, Priority: priority, EstimatedDuration: estimate}
}

func TestDistributePrefersLeastLoadedWorker(t *testing.T) {
	b, _ := newTestBalancer()

	w1 := b.AddWorker("browse")
	w2 := b.AddWorker("browse")
	b.SetLoad(w1.ID, 0.9)
	b.SetLoad(w2.ID, 0.1)

	assignments := b.Distribute([]*types.TaskSpec{task("t1", 5, time.Minute)}, nil)
	require.Len(t, assignments, 1)
	assert.Equal(t, w2.ID, assignments[0].WorkerID)
}

func TestDistributeCreatesWorkerWhenNoneExists(t *testing.T) {
	b, _ := newTestBalancer()

	assignments := b.Distribute([]*types.TaskSpec{task("t1", 1, time.Minute)}, nil)
	require.Len(t, assignments, 1)
	assert.NotEmpty(t, assignments[0].WorkerID)
	assert.Len(t, b.Workers(), 1)
}

func TestDistributeTagsCreatedWorkerWithContextPlatform(t *testing.T) {
	b, _ := newTestBalancer()

	execCtx := &types.ExecutionContext{
		Environment: types.EnvironmentInfo{Platform: "linux"},
	}
	assignments := b.Distribute([]*types.TaskSpec{task("t1", 1, time.Minute)}, execCtx)
	require.Len(t, assignments, 1)

	workers := b.Workers()
	require.Len(t, workers, 1)
	assert.True(t, workers[0].HasCapability("linux"))

	// An explicit capability on the task wins over the context platform.
	b2, _ := newTestBalancer()
	spec := task("t2", 1, time.Minute)
	spec.RequiredCapability = "browse"
	b2.Distribute([]*types.TaskSpec{spec}, execCtx)
	require.Len(t, b2.Workers(), 1)
	assert.True(t, b2.Workers()[0].HasCapability("browse"))
	assert.False(t, b2.Workers()[0].HasCapability("linux"))
}

func TestNewKeepsPartialConfigFields(t *testing.T) {
	clk := clock.NewManual(time.Unix(10_000, 0))
	b := New(Config{LoadPenalty: 60, CapabilityBonus: 5}, clk)

	assert.InDelta(t, 60.0, b.cfg.LoadPenalty, 1e-9)
	assert.InDelta(t, 5.0, b.cfg.CapabilityBonus, 1e-9)

	// Unset structural fields still default.
	def := DefaultConfig()
	assert.InDelta(t, def.ScoreBase, b.cfg.ScoreBase, 1e-9)
	assert.InDelta(t, def.HighLoad, b.cfg.HighLoad, 1e-9)
	assert.InDelta(t, def.LowLoad, b.cfg.LowLoad, 1e-9)
	assert.Equal(t, def.LoadWindow, b.cfg.LoadWindow)
	assert.Equal(t, def.RebalanceInterval, b.cfg.RebalanceInterval)

	// The caller's weights drive scoring: 100 - 60*0.5 + 5 = 75.
	w := &types.WorkerInstance{ID: "w", Capabilities: []string{"browse"}, CurrentLoad: 0.5, NextAvailable: clk.Now()}
	spec := &types.TaskSpec{ID: "t", RequiredCapability: "browse"}
	assert.InDelta(t, 75.0, b.Score(w, spec, clk.Now()), 1e-9)
}

func TestDistributeOrdersByPriorityThenShortestJob(t *testing.T) {
	b, _ := newTestBalancer()
	b.AddWorker()

	tasks := []*types.TaskSpec{
		task("slow-low", 1, time.Hour),
		task("slow-high", 9, 30*time.Minute),
		task("fast-high", 9, time.Minute),
		task("fast-low", 1, time.Second),
	}

	assignments := b.Distribute(tasks, nil)
	require.Len(t, assignments, 4)
	assert.Equal(t, "fast-high", assignments[0].Task.ID)
	assert.Equal(t, "slow-high", assignments[1].Task.ID)
	assert.Equal(t, "fast-low", assignments[2].Task.ID)
	assert.Equal(t, "slow-low", assignments[3].Task.ID)
}

func TestScoreFormula(t *testing.T) {
	b, clk := newTestBalancer()
	now := clk.Now()

	w := &types.WorkerInstance{
		ID:            "w",
		Capabilities:  []string{"browse"},
		CurrentLoad:   0.5,
		NextAvailable: now.Add(5 * time.Minute),
	}
	spec := &types.TaskSpec{ID: "t", RequiredCapability: "browse"}

	// 100 - 30*0.5 + 20 - 5 = 100.
	assert.InDelta(t, 100.0, b.Score(w, spec, now), 1e-9)

	// Wait penalty caps at 50 minutes.
	w.NextAvailable = now.Add(3 * time.Hour)
	assert.InDelta(t, 55.0, b.Score(w, spec, now), 1e-9)

	// No capability match loses the bonus.
	spec.RequiredCapability = "email"
	assert.InDelta(t, 35.0, b.Score(w, spec, now), 1e-9)
}

func TestAssignmentAdvancesNextAvailable(t *testing.T) {
	b, clk := newTestBalancer()
	w := b.AddWorker()

	b.Distribute([]*types.TaskSpec{task("t1", 1, 10*time.Minute)}, nil)

	workers := b.Workers()
	require.Len(t, workers, 1)
	assert.Equal(t, clk.Now().Add(10*time.Minute), workers[0].NextAvailable)
	assert.InDelta(t, 1.0, workers[0].CurrentLoad, 1e-9, "10m booked over a 10m window is full load")
	_ = w
}

func TestRebalanceMigratesFromOverloadedWorker(t *testing.T) {
	b, _ := newTestBalancer()

	busy := b.AddWorker()
	idle := b.AddWorker()

	// The short task lands on one worker, the long one books the other
	// nearly solid.
	b.Distribute([]*types.TaskSpec{
		task("t1", 5, 9*time.Minute),
		task("t2", 5, time.Minute),
	}, nil)

	var overloaded string
	for _, w := range b.Workers() {
		if w.CurrentLoad > 0.8 {
			overloaded = w.ID
		}
	}
	require.NotEmpty(t, overloaded, "one worker must be overloaded after distribution")

	migrated := b.Rebalance()
	assert.Equal(t, 1, migrated)

	for _, w := range b.Workers() {
		assert.LessOrEqual(t, w.CurrentLoad, 1.0)
		assert.GreaterOrEqual(t, w.CurrentLoad, 0.0)
	}
	_, _ = busy, idle
}

func TestCompleteUpdatesWorkerStats(t *testing.T) {
	b, _ := newTestBalancer()
	w := b.AddWorker()

	b.Distribute([]*types.TaskSpec{task("t1", 5, time.Minute)}, nil)
	b.Complete(w.ID, "t1", 90*time.Second, true)

	workers := b.Workers()
	require.Len(t, workers, 1)
	assert.Equal(t, int64(1), workers[0].TasksProcessed)
	assert.Equal(t, 90*time.Second, workers[0].AvgProcessingTime)
	assert.InDelta(t, 1.0, workers[0].SuccessRate, 1e-9)

	b.Distribute([]*types.TaskSpec{task("t2", 5, time.Minute)}, nil)
	b.Complete(w.ID, "t2", 30*time.Second, false)

	workers = b.Workers()
	assert.Equal(t, int64(2), workers[0].TasksProcessed)
	assert.Equal(t, time.Minute, workers[0].AvgProcessingTime)
	assert.InDelta(t, 0.5, workers[0].SuccessRate, 1e-9)
}

func TestLoadStaysWithinBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b, _ := newTestBalancer()
		workerCount := rapid.IntRange(1, 5).Draw(t, "workers")
		for i := 0; i < workerCount; i++ {
			b.AddWorker()
		}

		taskCount := rapid.IntRange(0, 30).Draw(t, "tasks")
		tasks := make([]*types.TaskSpec, taskCount)
		for i := range tasks {
			tasks[i] = &types.TaskSpec{
				ID:                rapid.StringMatching(`t[0-9a-f]{6}`).Draw(t, "id"),
				Priority:          rapid.IntRange(0, 10).Draw(t, "priority"),
				EstimatedDuration: time.Duration(rapid.Int64Range(0, int64(2*time.Hour)).Draw(t, "estimate")),
			}
		}

		b.Distribute(tasks, nil)
		b.Rebalance()

		for _, w := range b.Workers() {
			if w.CurrentLoad < 0 || w.CurrentLoad > 1 {
				t.Fatalf("worker %s load %f out of [0,1]", w.ID, w.CurrentLoad)
			}
		}
	})
}
