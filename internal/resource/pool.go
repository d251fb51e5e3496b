// Package resource allocates bounded concurrency slots ("handles") for step
// execution. The pool enforces a hard ceiling, reclaims idle handles and can
// shed allocations under memory pressure. All periodic work runs off an
// injected clock so behaviour stays deterministic under test.
package resource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amitk432/Resolve25-sub002/internal/clock"
	"github.com/amitk432/Resolve25-sub002/pkg/logger"
	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// Config bounds the pool.
type Config struct {
	// MaxConcurrency is the hard ceiling on live handles.
	MaxConcurrency int `yaml:"max_concurrency"`

	// IdleTimeout is how long an untouched handle may live before a sweep
	// reclaims it.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// SweepInterval drives the periodic reclaim tick.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// MemoryLimitMB sheds idle handles when the summed memory requirements
	// of live handles exceed it. Zero disables shedding.
	MemoryLimitMB int `yaml:"memory_limit_mb"`
}

// DefaultConfig returns the pool defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		IdleTimeout:    5 * time.Minute,
		SweepInterval:  time.Minute,
		MemoryLimitMB:  2048,
	}
}

type entry struct {
	handle   *types.ResourceHandle
	lastUsed time.Time
	pinned   bool
	released bool
}

// Pool issues and reclaims resource handles.
type Pool struct {
	cfg   Config
	clock clock.Clock

	mu      sync.Mutex
	entries map[string]*entry
	waiters []chan struct{}

	// Peak counters feed the run's resource usage snapshot.
	peakLive  int
	allocated int

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a pool. A nil clock means the system clock.
func New(cfg Config, clk clock.Clock) *Pool {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Pool{
		cfg:     cfg,
		clock:   clk,
		entries: make(map[string]*entry),
		stopCh:  make(chan struct{}),
	}
}

// CanSatisfy reports whether the pool could ever grant the requirements.
// Engines call it at submission time so impossible requirements fail fast,
// before any step starts.
func (p *Pool) CanSatisfy(req types.ResourceRequirements) error {
	if p.cfg.MemoryLimitMB > 0 && req.MemoryMB > p.cfg.MemoryLimitMB {
		return fmt.Errorf("step requires %d MB, pool limit is %d MB", req.MemoryMB, p.cfg.MemoryLimitMB)
	}
	return nil
}

// Allocate issues a handle, blocking while the ceiling is reached. Before
// blocking it sweeps handles idle past IdleTimeout. The wait is cooperative:
// a cancelled ctx returns its error.
func (p *Pool) Allocate(ctx context.Context, sessionID string, req types.ResourceRequirements) (*types.ResourceHandle, error) {
	if err := p.CanSatisfy(req); err != nil {
		return nil, err
	}

	for {
		p.mu.Lock()
		if p.live() >= p.cfg.MaxConcurrency {
			p.sweepLocked(p.clock.Now())
		}
		if p.live() < p.cfg.MaxConcurrency {
			h := p.allocateLocked(sessionID, req)
			p.mu.Unlock()
			return h, nil
		}

		wait := make(chan struct{})
		p.waiters = append(p.waiters, wait)
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// Release frees the handle's capacity immediately. Releasing an unknown or
// already released handle is a no-op.
func (p *Pool) Release(h *types.ResourceHandle) {
	if h == nil {
		return
	}

	p.mu.Lock()
	e, ok := p.entries[h.ID]
	if ok && !e.released {
		e.released = true
		delete(p.entries, h.ID)
	}
	p.notifyLocked()
	p.mu.Unlock()
}

// Touch marks the handle as recently used so idle sweeps skip it.
func (p *Pool) Touch(h *types.ResourceHandle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	if e, ok := p.entries[h.ID]; ok {
		e.lastUsed = p.clock.Now()
	}
	p.mu.Unlock()
}

// Pin exempts the handle from idle reclaim and memory shedding while a step
// executes on it, no matter how long the attempt runs. A pinned handle stays
// live until Release.
func (p *Pool) Pin(h *types.ResourceHandle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	if e, ok := p.entries[h.ID]; ok {
		e.pinned = true
	}
	p.mu.Unlock()
}

// Utilization returns live handles over the ceiling.
func (p *Pool) Utilization() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return float64(p.live()) / float64(p.cfg.MaxConcurrency)
}

// Usage snapshots peak utilization and total allocations.
func (p *Pool) Usage() types.ResourceUsage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return types.ResourceUsage{
		PeakUtilization:  float64(p.peakLive) / float64(p.cfg.MaxConcurrency),
		HandlesAllocated: p.allocated,
	}
}

// Sweep reclaims handles idle past IdleTimeout and, under memory pressure,
// sheds further idle handles oldest-first. Pinned handles are never swept.
// Returns the number reclaimed.
func (p *Pool) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sweepLocked(p.clock.Now())
}

// Start runs the periodic sweep until ctx is cancelled or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	interval := p.cfg.SweepInterval
	if interval <= 0 {
		interval = DefaultConfig().SweepInterval
	}

	go func() {
		ticker := p.clock.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-ticker.C():
				if n := p.Sweep(); n > 0 {
					logger.Debug("resource pool reclaimed %d idle handles", n)
				}
			}
		}
	}()
}

// Stop terminates the periodic sweep.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

func (p *Pool) live() int { return len(p.entries) }

func (p *Pool) allocateLocked(sessionID string, req types.ResourceRequirements) *types.ResourceHandle {
	now := p.clock.Now()
	h := &types.ResourceHandle{
		ID:           uuid.New().String(),
		SessionID:    sessionID,
		AllocatedAt:  now,
		Requirements: req,
	}
	p.entries[h.ID] = &entry{handle: h, lastUsed: now}
	p.allocated++
	if p.live() > p.peakLive {
		p.peakLive = p.live()
	}
	return h
}

func (p *Pool) sweepLocked(now time.Time) int {
	reclaimed := 0

	if p.cfg.IdleTimeout > 0 {
		for id, e := range p.entries {
			if !e.pinned && now.Sub(e.lastUsed) >= p.cfg.IdleTimeout {
				e.released = true
				delete(p.entries, id)
				reclaimed++
			}
		}
	}

	// Memory pressure: shed the longest-idle handles until under the limit.
	if p.cfg.MemoryLimitMB > 0 {
		for p.memoryLocked() > p.cfg.MemoryLimitMB {
			id := p.oldestLocked()
			if id == "" {
				break
			}
			p.entries[id].released = true
			delete(p.entries, id)
			reclaimed++
		}
	}

	if reclaimed > 0 {
		p.notifyLocked()
	}
	return reclaimed
}

func (p *Pool) memoryLocked() int {
	total := 0
	for _, e := range p.entries {
		total += e.handle.Requirements.MemoryMB
	}
	return total
}

func (p *Pool) oldestLocked() string {
	var oldestID string
	var oldest time.Time
	for id, e := range p.entries {
		if e.pinned {
			continue
		}
		if oldestID == "" || e.lastUsed.Before(oldest) {
			oldestID = id
			oldest = e.lastUsed
		}
	}
	return oldestID
}

func (p *Pool) notifyLocked() {
	for _, w := range p.waiters {
		close(w)
	}
	p.waiters = nil
}
