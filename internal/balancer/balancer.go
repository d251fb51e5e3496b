// Package balancer distributes whole tasks across logical worker instances,
// one level above the per-task step engine. Workers are a continuous
// single-server queueing model: each assignment advances the worker's
// next-available time by the task's estimated duration.
package balancer

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amitk432/Resolve25-sub002/internal/clock"
	"github.com/amitk432/Resolve25-sub002/pkg/logger"
	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// Config holds the scoring heuristic's constants, named so deployments can
// tune them. The weight fields treat zero as "term disabled"; the structural
// fields (base score, load thresholds, windows) default when left unset.
type Config struct {
	// ScoreBase is the starting score of every worker.
	ScoreBase float64 `yaml:"score_base"`
	// LoadPenalty scales the worker's current load.
	LoadPenalty float64 `yaml:"load_penalty"`
	// CapabilityBonus rewards a capability match.
	CapabilityBonus float64 `yaml:"capability_bonus"`
	// MaxWaitPenalty caps the penalty for minutes until available.
	MaxWaitPenalty float64 `yaml:"max_wait_penalty"`

	// HighLoad marks workers that shed a queued task on rebalance.
	HighLoad float64 `yaml:"high_load"`
	// LowLoad marks workers that may receive a migrated task.
	LowLoad float64 `yaml:"low_load"`

	// LoadWindow maps queued busy time onto the [0,1] load scale: a worker
	// booked solid for one LoadWindow reports load 1.0.
	LoadWindow time.Duration `yaml:"load_window"`

	// RebalanceInterval drives the periodic rebalance tick.
	RebalanceInterval time.Duration `yaml:"rebalance_interval"`
}

// DefaultConfig returns the balancer defaults.
func DefaultConfig() Config {
	return Config{
		ScoreBase:         100,
		LoadPenalty:       30,
		CapabilityBonus:   20,
		MaxWaitPenalty:    50,
		HighLoad:          0.8,
		LowLoad:           0.3,
		LoadWindow:        10 * time.Minute,
		RebalanceInterval: 30 * time.Second,
	}
}

// Assignment pairs a task with the worker chosen for it.
type Assignment struct {
	Task     *types.TaskSpec
	WorkerID string
}

// Balancer maintains the worker set and assigns tasks.
type Balancer struct {
	cfg   Config
	clock clock.Clock

	mu      sync.Mutex
	workers map[string]*types.WorkerInstance
	queues  map[string][]*types.TaskSpec

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a balancer. Unset config fields take their defaults
// individually, so partial configs keep the fields the caller set. A nil
// clock means the system clock.
func New(cfg Config, clk clock.Clock) *Balancer {
	def := DefaultConfig()
	if cfg.ScoreBase <= 0 {
		cfg.ScoreBase = def.ScoreBase
	}
	if cfg.HighLoad <= 0 {
		cfg.HighLoad = def.HighLoad
	}
	if cfg.LowLoad <= 0 {
		cfg.LowLoad = def.LowLoad
	}
	if cfg.LoadWindow <= 0 {
		cfg.LoadWindow = def.LoadWindow
	}
	if cfg.RebalanceInterval <= 0 {
		cfg.RebalanceInterval = def.RebalanceInterval
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Balancer{
		cfg:     cfg,
		clock:   clk,
		workers: make(map[string]*types.WorkerInstance),
		queues:  make(map[string][]*types.TaskSpec),
		stopCh:  make(chan struct{}),
	}
}

// AddWorker registers a worker with the given capabilities.
func (b *Balancer) AddWorker(capabilities ...string) *types.WorkerInstance {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addWorkerLocked(capabilities)
}

// Workers returns a snapshot of the worker set.
func (b *Balancer) Workers() []*types.WorkerInstance {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*types.WorkerInstance, 0, len(b.workers))
	for _, w := range b.workers {
		copied := *w
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetLoad overrides a worker's load, clamped to [0,1]. Intended for status
// feeds from workers that track their own utilization.
func (b *Balancer) SetLoad(workerID string, load float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.workers[workerID]; ok {
		w.CurrentLoad = clamp01(load)
	}
}

// Distribute assigns every task to the best-scoring worker. Tasks are
// processed by priority descending, shortest estimated duration first within
// a priority class (shortest-job-first minimizes mean wait). The execution
// context, when present, tags workers created on demand with the submitting
// environment's platform so later platform-bound tasks score them higher.
func (b *Balancer) Distribute(tasks []*types.TaskSpec, execCtx *types.ExecutionContext) []Assignment {
	b.mu.Lock()
	defer b.mu.Unlock()

	ordered := make([]*types.TaskSpec, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].EstimatedDuration < ordered[j].EstimatedDuration
	})

	assignments := make([]Assignment, 0, len(ordered))
	for _, task := range ordered {
		worker := b.pickLocked(task)
		if worker == nil {
			worker = b.addWorkerLocked(capabilitiesFor(task, execCtx))
		}
		b.assignLocked(worker, task)
		assignments = append(assignments, Assignment{Task: task, WorkerID: worker.ID})
	}
	return assignments
}

// Complete records a finished task on a worker and frees its queue slot.
func (b *Balancer) Complete(workerID, taskID string, elapsed time.Duration, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.workers[workerID]
	if !ok {
		return
	}

	queue := b.queues[workerID]
	for i, queued := range queue {
		if queued.ID == taskID {
			b.queues[workerID] = append(queue[:i], queue[i+1:]...)
			break
		}
	}

	// Running averages over the processed count.
	n := float64(w.TasksProcessed)
	w.AvgProcessingTime = time.Duration((float64(w.AvgProcessingTime)*n + float64(elapsed)) / (n + 1))
	succ := 0.0
	if success {
		succ = 1.0
	}
	w.SuccessRate = (w.SuccessRate*n + succ) / (n + 1)
	w.TasksProcessed++

	b.refreshLoadLocked(w)
}

// Rebalance migrates one queued task from every overloaded worker to an
// underloaded one. Returns the number of migrations.
func (b *Balancer) Rebalance() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Snapshot the overloaded set first so a worker receiving a migration
	// in this pass is not drained again in the same pass.
	var sources []string
	for id, w := range b.workers {
		if w.CurrentLoad > b.cfg.HighLoad && len(b.queues[id]) > 0 {
			sources = append(sources, id)
		}
	}
	sort.Strings(sources)

	migrated := 0
	for _, id := range sources {
		w := b.workers[id]
		target := b.underloadedLocked(id)
		if target == nil {
			continue
		}

		// Move the most recently queued task; it has waited the least.
		queue := b.queues[id]
		task := queue[len(queue)-1]
		b.queues[id] = queue[:len(queue)-1]
		w.NextAvailable = w.NextAvailable.Add(-task.EstimatedDuration)
		b.refreshLoadLocked(w)

		b.assignLocked(target, task)
		migrated++
		logger.Debug("rebalanced task %s: worker %s -> %s", task.ID, id, target.ID)
	}
	return migrated
}

// Start runs the periodic rebalance until ctx ends or Stop is called.
func (b *Balancer) Start(ctx context.Context) {
	go func() {
		ticker := b.clock.NewTicker(b.cfg.RebalanceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			case <-ticker.C():
				if n := b.Rebalance(); n > 0 {
					logger.Debug("rebalance migrated %d tasks", n)
				}
			}
		}
	}()
}

// Stop terminates the periodic rebalance.
func (b *Balancer) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Score exposes the per-worker heuristic:
// base - loadPenalty*load + capabilityBonus*match - min(maxWaitPenalty, minutesUntilAvailable).
func (b *Balancer) Score(w *types.WorkerInstance, task *types.TaskSpec, now time.Time) float64 {
	score := b.cfg.ScoreBase
	score -= b.cfg.LoadPenalty * w.CurrentLoad
	if w.HasCapability(task.RequiredCapability) {
		score += b.cfg.CapabilityBonus
	}

	waitMinutes := 0.0
	if w.NextAvailable.After(now) {
		waitMinutes = w.NextAvailable.Sub(now).Minutes()
	}
	score -= math.Min(b.cfg.MaxWaitPenalty, waitMinutes)
	return score
}

func (b *Balancer) pickLocked(task *types.TaskSpec) *types.WorkerInstance {
	now := b.clock.Now()

	var best *types.WorkerInstance
	bestScore := math.Inf(-1)

	// Iterate in sorted id order so ties resolve deterministically.
	ids := make([]string, 0, len(b.workers))
	for id := range b.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		w := b.workers[id]
		if score := b.Score(w, task, now); score > bestScore {
			best = w
			bestScore = score
		}
	}
	return best
}

func (b *Balancer) addWorkerLocked(capabilities []string) *types.WorkerInstance {
	w := &types.WorkerInstance{
		ID:            uuid.New().String(),
		Capabilities:  capabilities,
		NextAvailable: b.clock.Now(),
		SuccessRate:   1.0,
	}
	b.workers[w.ID] = w
	logger.Debug("created worker %s (capabilities: %v)", w.ID, capabilities)
	return w
}

func (b *Balancer) assignLocked(w *types.WorkerInstance, task *types.TaskSpec) {
	now := b.clock.Now()
	if w.NextAvailable.Before(now) {
		w.NextAvailable = now
	}
	w.NextAvailable = w.NextAvailable.Add(task.EstimatedDuration)
	b.queues[w.ID] = append(b.queues[w.ID], task)
	b.refreshLoadLocked(w)
}

func (b *Balancer) underloadedLocked(excludeID string) *types.WorkerInstance {
	ids := make([]string, 0, len(b.workers))
	for id := range b.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if id == excludeID {
			continue
		}
		if w := b.workers[id]; w.CurrentLoad < b.cfg.LowLoad {
			return w
		}
	}
	return nil
}

// refreshLoadLocked derives load from booked busy time over the load window.
func (b *Balancer) refreshLoadLocked(w *types.WorkerInstance) {
	busy := w.NextAvailable.Sub(b.clock.Now())
	if busy < 0 {
		busy = 0
	}
	w.CurrentLoad = clamp01(float64(busy) / float64(b.cfg.LoadWindow))
}

func capabilitiesFor(task *types.TaskSpec, execCtx *types.ExecutionContext) []string {
	if task.RequiredCapability != "" {
		return []string{task.RequiredCapability}
	}
	if execCtx != nil && execCtx.Environment.Platform != "" {
		return []string{execCtx.Environment.Platform}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
