package action

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// ScriptType is the step type handled by the script executor.
const ScriptType = "script"

// ScriptExecutor evaluates a step's value as a JavaScript snippet. The
// script sees a read-only `step` object and `session`/`user` bindings from
// the execution context; its final expression value becomes the step output.
type ScriptExecutor struct{}

// NewScript creates a script executor.
func NewScript() *ScriptExecutor { return &ScriptExecutor{} }

func (e *ScriptExecutor) Type() string { return ScriptType }

func (e *ScriptExecutor) Execute(ctx context.Context, step *types.Step, execCtx *types.ExecutionContext) (any, error) {
	if step.Value == "" {
		return nil, fmt.Errorf("script step %s has no source", step.ID)
	}

	vm := goja.New()
	if err := vm.Set("step", map[string]any{
		"id":     step.ID,
		"type":   step.Type,
		"target": step.Target,
	}); err != nil {
		return nil, err
	}
	if execCtx != nil {
		_ = vm.Set("session", execCtx.SessionID)
		_ = vm.Set("user", execCtx.UserID)
	}

	// Interrupt the VM when the attempt context ends; goja scripts cannot
	// observe ctx themselves.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	value, err := vm.RunString(step.Value)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("script step %s: %w", step.ID, err)
	}
	return value.Export(), nil
}
