package codegen

import (
	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/smith"
	"github.com/wippyai/wasmgen/wasm"
)

// Builder synthesizes valid function bodies from a Registry of actions.
type Builder struct {
	registry *Registry
	buf      []Action
}

var _ smith.BodyBuilder = (*Builder)(nil)

// New creates a Builder over DefaultRegistry.
func New() *Builder {
	return NewWithRegistry(DefaultRegistry())
}

// NewWithRegistry creates a Builder over r.
func NewWithRegistry(r *Registry) *Builder {
	return &Builder{registry: r}
}

// Build implements smith.BodyBuilder. The body runs a bounded number of
// actions, closes every open block and then pushes the results. A result
// that cannot be produced ends the body with unreachable.
func (b *Builder) Build(u *oracle.Unstructured, bc *smith.BodyContext) ([]wasm.Instruction, error) {
	ctx := newContext(bc)
	budget := bc.Module.Config().MaxInstructions

	err := oracle.Loop(u, 0, budget, func() (bool, error) {
		b.buf = b.registry.eligible(ctx, b.buf[:0])
		a, err := oracle.Choose(u, b.buf)
		if err != nil {
			return false, err
		}
		if err := a.Emit(u, ctx); err != nil {
			return false, err
		}
		return len(ctx.Body) < budget, nil
	})
	if err != nil {
		return nil, err
	}

	for ; ctx.Depth > 0; ctx.Depth-- {
		ctx.Emit(wasm.Op(wasm.OpEnd))
	}
	if !ctx.producible(bc.Func.Results) {
		ctx.Emit(wasm.Op(wasm.OpUnreachable))
		return ctx.Body, nil
	}
	for _, r := range bc.Func.Results {
		if err := ctx.Produce(u, r); err != nil {
			return nil, err
		}
	}
	return ctx.Body, nil
}
