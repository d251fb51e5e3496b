// Package action defines the pluggable capability that actually performs a
// step. The engine's scheduling, retry and resource logic stays agnostic to
// what a step does; callers register executors per step type and may bring
// their own.
package action

import (
	"context"
	"fmt"
	"sync"

	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// Executor performs one step against its real target.
type Executor interface {
	// Type returns the step type this executor handles.
	Type() string

	// Execute runs the step and returns its output. ctx carries the
	// per-attempt timeout and the run's cancellation signal.
	Execute(ctx context.Context, step *types.Step, execCtx *types.ExecutionContext) (any, error)
}

// Func adapts a function to the Executor interface.
type Func struct {
	Kind string
	Fn   func(ctx context.Context, step *types.Step, execCtx *types.ExecutionContext) (any, error)
}

func (f Func) Type() string { return f.Kind }

func (f Func) Execute(ctx context.Context, step *types.Step, execCtx *types.ExecutionContext) (any, error) {
	return f.Fn(ctx, step, execCtx)
}

// Registry maps step types to executors.
type Registry struct {
	executors map[string]Executor
	fallback  Executor
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds an executor for its step type. Registering a type twice is
// an error.
func (r *Registry) Register(executor Executor) error {
	if executor == nil {
		return fmt.Errorf("cannot register a nil executor")
	}
	kind := executor.Type()
	if kind == "" {
		return fmt.Errorf("executor type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[kind]; exists {
		return fmt.Errorf("executor type already registered: %s", kind)
	}
	r.executors[kind] = executor
	return nil
}

// MustRegister registers and panics on error.
func (r *Registry) MustRegister(executor Executor) {
	if err := r.Register(executor); err != nil {
		panic(err)
	}
}

// SetFallback installs the executor used for unregistered step types.
func (r *Registry) SetFallback(executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = executor
}

// Get returns the executor for a step type, the fallback if none is
// registered, or an error when neither exists.
func (r *Registry) Get(kind string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.executors[kind]; ok {
		return e, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("no executor registered for step type: %s", kind)
}

// Has reports whether a step type has a dedicated executor.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executors[kind]
	return ok
}

// Types lists registered step types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.executors))
	for k := range r.executors {
		kinds = append(kinds, k)
	}
	return kinds
}
