package action

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// SimulatedType is the step type handled by the simulated executor.
const SimulatedType = "simulate"

// SimulatedExecutor fakes step execution with a fixed latency and a seeded
// failure rate. It stands in for real automation targets in demos and tests;
// production callers register real executors instead.
type SimulatedExecutor struct {
	latency     time.Duration
	failureRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a simulated executor. The seed makes failure
// injection reproducible.
func NewSimulated(latency time.Duration, failureRate float64, seed int64) *SimulatedExecutor {
	return &SimulatedExecutor{
		latency:     latency,
		failureRate: failureRate,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (s *SimulatedExecutor) Type() string { return SimulatedType }

// Execute waits the configured latency (cooperatively) and fails a seeded
// fraction of calls.
func (s *SimulatedExecutor) Execute(ctx context.Context, step *types.Step, execCtx *types.ExecutionContext) (any, error) {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	fail := s.rng.Float64() < s.failureRate
	s.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("simulated failure on %s %s", step.Type, step.Target)
	}
	return fmt.Sprintf("ok: %s %s", step.Type, step.Target), nil
}
