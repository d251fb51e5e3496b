package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amitk432/Resolve25-sub002/internal/clock"
	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

func newTestPool(maxConcurrency int) (*Pool, *clock.Manual) {
	clk := clock.NewManual(time.Unix(1000, 0))
	pool := New(Config{
		MaxConcurrency: maxConcurrency,
		IdleTimeout:    time.Minute,
		SweepInterval:  10 * time.Second,
		MemoryLimitMB:  1024,
	}, clk)
	return pool, clk
}

func TestAllocateRelease(t *testing.T) {
	pool, _ := newTestPool(2)
	ctx := context.Background()

	h1, err := pool.Allocate(ctx, "sess", types.ResourceRequirements{MemoryMB: 64})
	require.NoError(t, err)
	assert.NotEmpty(t, h1.ID)
	assert.Equal(t, "sess", h1.SessionID)
	assert.InDelta(t, 0.5, pool.Utilization(), 1e-9)

	h2, err := pool.Allocate(ctx, "sess", types.ResourceRequirements{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pool.Utilization(), 1e-9)

	pool.Release(h1)
	pool.Release(h2)
	assert.Zero(t, pool.Utilization())

	// Double release is harmless.
	pool.Release(h1)
	assert.Zero(t, pool.Utilization())
}

func TestAllocateBlocksAtCeiling(t *testing.T) {
	pool, _ := newTestPool(1)
	ctx := context.Background()

	h1, err := pool.Allocate(ctx, "sess", types.ResourceRequirements{})
	require.NoError(t, err)

	got := make(chan *types.ResourceHandle, 1)
	go func() {
		h, err := pool.Allocate(ctx, "sess", types.ResourceRequirements{})
		if err == nil {
			got <- h
		}
	}()

	select {
	case <-got:
		t.Fatal("allocation must block while the ceiling is reached")
	case <-time.After(20 * time.Millisecond):
	}

	pool.Release(h1)

	select {
	case h := <-got:
		assert.NotEmpty(t, h.ID)
	case <-time.After(time.Second):
		t.Fatal("release must unblock a waiting allocation")
	}
}

func TestAllocateCancelledWhileWaiting(t *testing.T) {
	pool, _ := newTestPool(1)

	_, err := pool.Allocate(context.Background(), "sess", types.ResourceRequirements{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Allocate(ctx, "sess", types.ResourceRequirements{})
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter must return")
	}
}

func TestSweepReclaimsIdleHandles(t *testing.T) {
	pool, clk := newTestPool(2)
	ctx := context.Background()

	h, err := pool.Allocate(ctx, "sess", types.ResourceRequirements{})
	require.NoError(t, err)
	_ = h

	clk.Advance(2 * time.Minute)
	assert.Equal(t, 1, pool.Sweep())
	assert.Zero(t, pool.Utilization())
}

func TestSweepSkipsPinnedHandles(t *testing.T) {
	pool, clk := newTestPool(2)
	ctx := context.Background()

	h, err := pool.Allocate(ctx, "sess", types.ResourceRequirements{})
	require.NoError(t, err)
	pool.Pin(h)

	// Far past the idle timeout, yet the executing step keeps its handle.
	clk.Advance(10 * time.Minute)
	assert.Zero(t, pool.Sweep())
	assert.InDelta(t, 0.5, pool.Utilization(), 1e-9)

	pool.Release(h)
	assert.Zero(t, pool.Utilization())
}

func TestMemoryPressureSkipsPinnedHandles(t *testing.T) {
	clk := clock.NewManual(time.Unix(1000, 0))
	pool := New(Config{
		MaxConcurrency: 4,
		IdleTimeout:    time.Hour,
		MemoryLimitMB:  600,
	}, clk)
	ctx := context.Background()

	h1, err := pool.Allocate(ctx, "sess", types.ResourceRequirements{MemoryMB: 400})
	require.NoError(t, err)
	pool.Pin(h1)

	clk.Advance(time.Second)
	h2, err := pool.Allocate(ctx, "sess", types.ResourceRequirements{MemoryMB: 400})
	require.NoError(t, err)
	pool.Pin(h2)

	// Over the memory limit, but both handles are in use.
	assert.Zero(t, pool.Sweep())
	assert.InDelta(t, 0.5, pool.Utilization(), 1e-9)
}

func TestAllocateSweepsBeforeBlocking(t *testing.T) {
	pool, clk := newTestPool(1)
	ctx := context.Background()

	_, err := pool.Allocate(ctx, "sess", types.ResourceRequirements{})
	require.NoError(t, err)

	// The first handle has gone idle past the timeout; a new allocation
	// must reclaim it instead of blocking.
	clk.Advance(2 * time.Minute)

	done := make(chan struct{})
	go func() {
		_, err := pool.Allocate(ctx, "sess", types.ResourceRequirements{})
		assert.NoError(t, err)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("allocation should reclaim the idle handle")
	}
}

func TestMemoryPressureShedsOldest(t *testing.T) {
	clk := clock.NewManual(time.Unix(1000, 0))
	pool := New(Config{
		MaxConcurrency: 4,
		IdleTimeout:    time.Hour,
		MemoryLimitMB:  600,
	}, clk)
	ctx := context.Background()

	oldest, err := pool.Allocate(ctx, "sess", types.ResourceRequirements{MemoryMB: 400})
	require.NoError(t, err)

	clk.Advance(time.Second)
	_, err = pool.Allocate(ctx, "sess", types.ResourceRequirements{MemoryMB: 400})
	require.NoError(t, err)

	reclaimed := pool.Sweep()
	assert.Equal(t, 1, reclaimed)

	// The shed handle was the longest idle one.
	pool.Release(oldest)
	assert.InDelta(t, 0.25, pool.Utilization(), 1e-9)
}

func TestCanSatisfy(t *testing.T) {
	pool, _ := newTestPool(2)

	assert.NoError(t, pool.CanSatisfy(types.ResourceRequirements{MemoryMB: 512}))
	assert.Error(t, pool.CanSatisfy(types.ResourceRequirements{MemoryMB: 4096}))
}

func TestPeriodicSweepRunsOnTicker(t *testing.T) {
	pool, clk := newTestPool(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := pool.Allocate(ctx, "sess", types.ResourceRequirements{})
	require.NoError(t, err)

	pool.Start(ctx)
	defer pool.Stop()

	assert.Eventually(t, func() bool {
		clk.Advance(2 * time.Minute)
		return pool.Utilization() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestUsageTracksPeak(t *testing.T) {
	pool, _ := newTestPool(2)
	ctx := context.Background()

	h1, _ := pool.Allocate(ctx, "sess", types.ResourceRequirements{})
	h2, _ := pool.Allocate(ctx, "sess", types.ResourceRequirements{})
	pool.Release(h1)
	pool.Release(h2)

	usage := pool.Usage()
	assert.InDelta(t, 1.0, usage.PeakUtilization, 1e-9)
	assert.Equal(t, 2, usage.HandlesAllocated)
}
