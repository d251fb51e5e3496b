package run

import (
	"context"
	"fmt"
	"sync"

	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// Strategy names.
const (
	StrategySequential = "sequential"
	StrategyParallel   = "parallel"
)

// Strategy runs a complete step list to completion or failure. steps is the
// declaration order; batches is the dependency partition. Run returns an
// error only when the run aborts; step failures are recorded on the runtime.
type Strategy interface {
	Name() string
	Run(ctx context.Context, rt *Runtime, steps []*types.Step, batches [][]*types.Step) error
}

// Registry maps strategy names to factories.
type Registry struct {
	factories map[string]func() Strategy
	mu        sync.RWMutex
}

// NewRegistry creates a registry with the default strategies.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]func() Strategy)}
	r.Register(StrategySequential, func() Strategy { return &Sequential{} })
	r.Register(StrategyParallel, func() Strategy { return &Parallel{} })
	return r
}

// Register adds a strategy factory.
func (r *Registry) Register(name string, factory func() Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new instance of the named strategy.
func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown execution strategy: %s", name)
	}
	return factory(), nil
}
