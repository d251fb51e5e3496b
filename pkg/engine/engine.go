// Package engine is the public in-process API of the task execution engine.
// Callers submit immutable step lists, observe lifecycle events and collect
// an ExecutionResult; scheduling, retries and resource accounting happen
// behind this facade.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amitk432/Resolve25-sub002/internal/action"
	"github.com/amitk432/Resolve25-sub002/internal/balancer"
	"github.com/amitk432/Resolve25-sub002/internal/batch"
	"github.com/amitk432/Resolve25-sub002/internal/clock"
	"github.com/amitk432/Resolve25-sub002/internal/event"
	"github.com/amitk432/Resolve25-sub002/internal/resource"
	"github.com/amitk432/Resolve25-sub002/internal/run"
	"github.com/amitk432/Resolve25-sub002/pkg/logger"
	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// StrategyAdaptive asks the engine to pick between sequential and parallel
// per submission.
const StrategyAdaptive = "adaptive"

// Config configures one engine instance.
type Config struct {
	// CriticalPriority is the priority above which a step failure fails
	// the whole run.
	CriticalPriority int
	// EventBuffer is the per-subscriber event channel capacity.
	EventBuffer int
	// Resources bounds the shared resource pool.
	Resources resource.Config
	// Balancer tunes worker scoring and rebalancing.
	Balancer balancer.Config
	// Thresholds drive adaptive strategy selection.
	Thresholds run.Thresholds
	// SimulatedLatency and SimulatedFailureRate configure the built-in
	// simulate executor.
	SimulatedLatency     time.Duration
	SimulatedFailureRate float64
}

// DefaultConfig returns a config suitable for most callers.
func DefaultConfig() *Config {
	return &Config{
		CriticalPriority: types.DefaultCriticalPriority,
		EventBuffer:      256,
		Resources:        resource.DefaultConfig(),
		Balancer:         balancer.DefaultConfig(),
		Thresholds:       run.DefaultThresholds(),
		SimulatedLatency: 10 * time.Millisecond,
	}
}

type task struct {
	id       string
	workerID string
	rt       *run.Runtime
	cancel   context.CancelFunc
	done     chan struct{}
	running  bool
}

// Engine executes submitted tasks asynchronously. One Engine instance is
// safe for concurrent use; results stay retrievable after completion until
// the engine stops.
type Engine struct {
	cfg        *Config
	actions    *action.Registry
	strategies *run.Registry
	pool       *resource.Pool
	balancer   *balancer.Balancer
	bus        *event.Bus
	clk        clock.Clock

	mu      sync.RWMutex
	tasks   map[string]*task
	started bool
	cancel  context.CancelFunc
}

// New creates an engine. The built-in simulate executor is registered as
// both the "simulate" type and the fallback; callers add their own executors
// through RegisterExecutor.
func New(cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.CriticalPriority <= 0 {
		cfg.CriticalPriority = types.DefaultCriticalPriority
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}
	if cfg.Balancer == (balancer.Config{}) {
		cfg.Balancer = balancer.DefaultConfig()
	}

	actions := action.NewRegistry()
	simulated := action.NewSimulated(cfg.SimulatedLatency, cfg.SimulatedFailureRate, 0)
	actions.MustRegister(simulated)
	actions.SetFallback(simulated)

	return &Engine{
		cfg:        cfg,
		actions:    actions,
		strategies: run.NewRegistry(),
		pool:       resource.New(cfg.Resources, clock.System()),
		balancer:   balancer.New(cfg.Balancer, clock.System()),
		bus:        event.NewBus(cfg.EventBuffer),
		clk:        clock.System(),
		tasks:      make(map[string]*task),
	}
}

// RegisterExecutor adds an action executor for a step type.
func (e *Engine) RegisterExecutor(executor action.Executor) error {
	return e.actions.Register(executor)
}

// Start launches background maintenance (idle handle sweeping, worker
// rebalancing). Idempotent.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.pool.Start(ctx)
	e.balancer.Start(ctx)
	e.started = true
	return nil
}

// Stop aborts every in-flight task and releases background resources.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = false
	e.cancel()
	pending := make([]*task, 0, len(e.tasks))
	for _, tk := range e.tasks {
		if tk.running {
			tk.cancel()
			pending = append(pending, tk)
		}
	}
	e.mu.Unlock()

	for _, tk := range pending {
		<-tk.done
	}
	e.pool.Stop()
	e.balancer.Stop()
	e.bus.Close()
	return nil
}

// Submit validates the steps, partitions them and starts the run with an
// adaptively selected strategy. Validation problems (cyclic or missing
// dependencies, unsatisfiable requirements, policy violations) surface here,
// before any step executes.
func (e *Engine) Submit(steps []*types.Step, execCtx *types.ExecutionContext) (string, error) {
	return e.SubmitWith(StrategyAdaptive, steps, execCtx)
}

// SubmitWith is Submit with a forced strategy name ("sequential",
// "parallel" or "adaptive").
func (e *Engine) SubmitWith(strategy string, steps []*types.Step, execCtx *types.ExecutionContext) (string, error) {
	if len(steps) == 0 {
		return "", fmt.Errorf("submission contains no steps")
	}
	if execCtx == nil {
		execCtx = &types.ExecutionContext{}
	}

	batches, err := batch.Build(steps)
	if err != nil {
		return "", err
	}
	if err := e.validate(steps, execCtx); err != nil {
		return "", err
	}

	name, reason, err := e.resolveStrategy(strategy, steps, execCtx)
	if err != nil {
		return "", err
	}
	strat, err := e.strategies.Get(name)
	if err != nil {
		return "", err
	}

	taskID := uuid.New().String()
	rt := run.NewRuntime(taskID, execCtx, len(steps), e.actions, e.pool, e.bus, e.cfg.CriticalPriority)
	rt.Result().Strategy = name
	rt.Result().StrategyReason = reason

	assignments := e.balancer.Distribute([]*types.TaskSpec{taskSpecFor(taskID, steps)}, execCtx)

	ctx, cancel := context.WithCancel(context.Background())
	tk := &task{
		id:       taskID,
		workerID: assignments[0].WorkerID,
		rt:       rt,
		cancel:   cancel,
		done:     make(chan struct{}),
		running:  true,
	}

	e.mu.Lock()
	e.tasks[taskID] = tk
	e.mu.Unlock()

	logger.Info("task %s submitted: %d steps, %d batches, strategy %s (%s), worker %s",
		taskID, len(steps), len(batches), name, reason, tk.workerID)

	go e.runTask(ctx, tk, strat, steps, batches)
	return taskID, nil
}

// Abort requests cancellation of a running task. In-flight steps observe
// cancellation through their context; no new steps start.
func (e *Engine) Abort(taskID string) error {
	e.mu.RLock()
	tk, ok := e.tasks[taskID]
	e.mu.RUnlock()

	if !ok || !tk.running {
		return types.ErrTaskNotFound
	}
	tk.cancel()
	return nil
}

// Status reports "running" for in-flight tasks and "not_found" for unknown
// or finished ones.
func (e *Engine) Status(taskID string) types.TaskStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if tk, ok := e.tasks[taskID]; ok && tk.running {
		return types.TaskStatusRunning
	}
	return types.TaskStatusNotFound
}

// Result returns the finalized result of a finished task.
func (e *Engine) Result(taskID string) (*types.ExecutionResult, error) {
	e.mu.RLock()
	tk, ok := e.tasks[taskID]
	e.mu.RUnlock()

	if !ok {
		return nil, types.ErrTaskNotFound
	}
	if tk.running {
		return nil, types.ErrTaskRunning
	}
	return tk.rt.Result(), nil
}

// Wait blocks until the task finishes or ctx expires, then returns its
// result.
func (e *Engine) Wait(ctx context.Context, taskID string) (*types.ExecutionResult, error) {
	e.mu.RLock()
	tk, ok := e.tasks[taskID]
	e.mu.RUnlock()

	if !ok {
		return nil, types.ErrTaskNotFound
	}
	select {
	case <-tk.done:
		return tk.rt.Result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Events subscribes to the engine's lifecycle event stream. The returned
// cancel func must be called when the subscriber is done.
func (e *Engine) Events() (<-chan types.Event, func()) {
	return e.bus.Subscribe()
}

// EventsDropped reports how many events were dropped on slow subscribers.
func (e *Engine) EventsDropped() uint64 {
	return e.bus.Dropped()
}

// Workers returns a snapshot of the logical workers tasks have been
// distributed across.
func (e *Engine) Workers() []*types.WorkerInstance {
	return e.balancer.Workers()
}

// taskSpecFor condenses a step list into the whole-task view the balancer
// assigns: the summed estimate books worker time, the highest step priority
// orders the task against concurrent submissions.
func taskSpecFor(taskID string, steps []*types.Step) *types.TaskSpec {
	spec := &types.TaskSpec{ID: taskID}
	for _, step := range steps {
		spec.EstimatedDuration += step.EstimatedDuration
		if step.Priority > spec.Priority {
			spec.Priority = step.Priority
		}
	}
	return spec
}

func (e *Engine) resolveStrategy(strategy string, steps []*types.Step, execCtx *types.ExecutionContext) (name, reason string, err error) {
	switch strategy {
	case "", StrategyAdaptive:
		name, reason = run.Select(steps, execCtx, e.cfg.Thresholds)
		return name, reason, nil
	case run.StrategySequential, run.StrategyParallel:
		return strategy, "requested by caller", nil
	default:
		return "", "", fmt.Errorf("unknown execution strategy: %s", strategy)
	}
}

func (e *Engine) validate(steps []*types.Step, execCtx *types.ExecutionContext) error {
	seen := make(map[string]bool, len(steps))
	for _, step := range steps {
		if step.ID == "" {
			return fmt.Errorf("step without id")
		}
		if seen[step.ID] {
			return fmt.Errorf("duplicate step id: %s", step.ID)
		}
		seen[step.ID] = true

		if err := e.pool.CanSatisfy(step.Requirements); err != nil {
			return fmt.Errorf("step %s: %w", step.ID, err)
		}
		if step.Requirements.RequiresAuthentication && !execCtx.Policy.AllowAuthenticated {
			return fmt.Errorf("step %s requires authentication, policy forbids it", step.ID)
		}
		if step.Requirements.RequiresUserInteraction && !execCtx.Policy.AllowUserInteraction {
			return fmt.Errorf("step %s requires user interaction, policy forbids it", step.ID)
		}
	}
	return nil
}

func (e *Engine) runTask(ctx context.Context, tk *task, strat run.Strategy, steps []*types.Step, batches [][]*types.Step) {
	result := tk.rt.Result()
	result.Status = types.RunRunning
	start := e.clk.Now()

	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("task %s: strategy panicked: %v", tk.id, r)
				result.Status = types.RunFailed
				result.Errors = append(result.Errors, types.ExecutionError{
					Message:   fmt.Sprintf("internal error: %v", r),
					Timestamp: time.Now(),
				})
			}
		}()
		if err := strat.Run(ctx, tk.rt, steps, batches); err != nil {
			logger.Info("task %s: %v", tk.id, err)
		}
	}()

	e.finalize(tk, start)
}

func (e *Engine) finalize(tk *task, start time.Time) {
	result := tk.rt.Result()

	if result.Status == types.RunRunning {
		if tk.rt.FailedCritical() {
			result.Status = types.RunFailed
		} else {
			result.Status = types.RunCompleted
		}
	}
	result.Success = result.Status == types.RunCompleted
	result.ExecutionTime = e.clk.Now().Sub(start)
	result.Metrics = tk.rt.Recorder.Snapshot()
	result.ResourceUsage = e.pool.Usage()

	e.balancer.Complete(tk.workerID, tk.id, result.ExecutionTime, result.Success)

	e.mu.Lock()
	tk.running = false
	e.mu.Unlock()
	close(tk.done)

	if result.Status != types.RunAborted {
		e.bus.Publish(types.Event{
			Type:     types.EventTaskCompleted,
			TaskID:   tk.id,
			Duration: result.ExecutionTime,
		})
	}
	logger.Info("task %s finished: status=%s completed=%d/%d degraded=%t",
		tk.id, result.Status, result.StepsCompleted, result.TotalSteps, result.Degraded)
	tk.cancel()
}
