package codegen

import (
	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

// Action is one stack-neutral step of a function body.
type Action interface {
	// Eligible reports whether the action can be emitted in ctx.
	Eligible(ctx *Context) bool
	// Emit appends the action's instructions to ctx.
	Emit(u *oracle.Unstructured, ctx *Context) error
}

// Func adapts a pair of functions to Action.
type Func struct {
	When func(ctx *Context) bool
	Do   func(u *oracle.Unstructured, ctx *Context) error
}

// Eligible implements Action. A nil When is always eligible.
func (f Func) Eligible(ctx *Context) bool { return f.When == nil || f.When(ctx) }

// Emit implements Action.
func (f Func) Emit(u *oracle.Unstructured, ctx *Context) error { return f.Do(u, ctx) }

// Registry holds named actions in registration order.
type Registry struct {
	actions []Action
	names   []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an action. Registering a name twice replaces the action.
func (r *Registry) Register(name string, a Action) {
	for i, n := range r.names {
		if n == name {
			r.actions[i] = a
			return
		}
	}
	r.names = append(r.names, name)
	r.actions = append(r.actions, a)
}

// Names returns the registered action names.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// eligible appends the actions eligible in ctx to buf.
func (r *Registry) eligible(ctx *Context, buf []Action) []Action {
	for _, a := range r.actions {
		if a.Eligible(ctx) {
			buf = append(buf, a)
		}
	}
	return buf
}

// DefaultRegistry returns the registry used by New.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("nop", Func{Do: func(_ *oracle.Unstructured, ctx *Context) error {
		ctx.Emit(wasm.Op(wasm.OpNop))
		return nil
	}})
	r.Register("block", Func{When: canOpen, Do: openBlock(wasm.OpBlock)})
	r.Register("loop", Func{When: canOpen, Do: openBlock(wasm.OpLoop)})
	r.Register("if", Func{When: canOpen, Do: openIf})
	r.Register("end", Func{
		When: func(ctx *Context) bool { return ctx.Depth > 0 },
		Do: func(_ *oracle.Unstructured, ctx *Context) error {
			ctx.Emit(wasm.Op(wasm.OpEnd))
			ctx.Depth--
			return nil
		},
	})
	r.Register("br_if", Func{
		// Blocks opened here have empty types, so br_if 0 needs only the
		// condition. Branching out of a loop can spin forever.
		When: func(ctx *Context) bool { return ctx.Depth > 0 && !ctx.NoTraps },
		Do: func(u *oracle.Unstructured, ctx *Context) error {
			if err := ctx.Produce(u, wasm.I32); err != nil {
				return err
			}
			ctx.Emit(wasm.Index(wasm.OpBrIf, 0))
			return nil
		},
	})
	r.Register("const_drop", Func{Do: constDrop})
	r.Register("local_set", Func{
		When: func(ctx *Context) bool { return len(ctx.Locals) > 0 },
		Do:   localWrite(wasm.OpLocalSet),
	})
	r.Register("local_tee", Func{
		When: func(ctx *Context) bool { return len(ctx.Locals) > 0 },
		Do:   localWrite(wasm.OpLocalTee),
	})
	r.Register("global_set", Func{
		When: func(ctx *Context) bool { return len(mutableGlobals(ctx)) > 0 },
		Do:   globalSet,
	})
	r.Register("i32_binary", Func{Do: binary(wasm.I32, i32Binary)})
	r.Register("i64_binary", Func{Do: binary(wasm.I64, i64Binary)})
	r.Register("eqz", Func{Do: eqz})
	r.Register("select", Func{Do: selectOp})
	r.Register("ref_is_null", Func{
		When: func(ctx *Context) bool { return ctx.Module.Config().ReferenceTypes },
		Do:   refIsNull,
	})
	r.Register("call", Func{
		// Calls may recurse without bound.
		When: func(ctx *Context) bool { return !ctx.NoTraps && len(callable(ctx)) > 0 },
		Do:   call,
	})
	return r
}

var (
	i32Binary = []byte{wasm.OpI32Add, wasm.OpI32Sub, wasm.OpI32Mul, wasm.OpI32And, wasm.OpI32Or, wasm.OpI32Xor}
	i64Binary = []byte{wasm.OpI64Add, wasm.OpI64Sub, wasm.OpI64Mul, wasm.OpI64And, wasm.OpI64Or, wasm.OpI64Xor}
)

func canOpen(ctx *Context) bool { return ctx.Depth < maxBlockDepth }

func openBlock(op byte) func(*oracle.Unstructured, *Context) error {
	return func(_ *oracle.Unstructured, ctx *Context) error {
		ctx.Emit(wasm.Block(op))
		ctx.Depth++
		return nil
	}
}

func openIf(u *oracle.Unstructured, ctx *Context) error {
	if err := ctx.Produce(u, wasm.I32); err != nil {
		return err
	}
	ctx.Emit(wasm.Block(wasm.OpIf))
	ctx.Depth++
	return nil
}

// valueTypes lists the types constants may be drawn from.
func valueTypes(ctx *Context) []wasm.ValType {
	return ctx.Module.ValTypes()
}

func constDrop(u *oracle.Unstructured, ctx *Context) error {
	t, err := oracle.Choose(u, valueTypes(ctx))
	if err != nil {
		return err
	}
	if err := ctx.Produce(u, t); err != nil {
		return err
	}
	ctx.Emit(wasm.Op(wasm.OpDrop))
	return nil
}

func localWrite(op byte) func(*oracle.Unstructured, *Context) error {
	return func(u *oracle.Unstructured, ctx *Context) error {
		idx, err := u.ChooseIndex(len(ctx.Locals))
		if err != nil {
			return err
		}
		if err := ctx.Produce(u, ctx.Locals[idx]); err != nil {
			return err
		}
		ctx.Emit(wasm.Index(op, uint32(idx)))
		if op == wasm.OpLocalTee {
			ctx.Emit(wasm.Op(wasm.OpDrop))
		}
		return nil
	}
}

func mutableGlobals(ctx *Context) []uint32 {
	var out []uint32
	for i, g := range ctx.Module.Globals() {
		if g.Mutable && ctx.CanProduce(g.Val) {
			out = append(out, uint32(i))
		}
	}
	return out
}

func globalSet(u *oracle.Unstructured, ctx *Context) error {
	idx, err := oracle.Choose(u, mutableGlobals(ctx))
	if err != nil {
		return err
	}
	if err := ctx.Produce(u, ctx.Module.Globals()[idx].Val); err != nil {
		return err
	}
	ctx.Emit(wasm.Index(wasm.OpGlobalSet, idx))
	return nil
}

func binary(t wasm.ValType, ops []byte) func(*oracle.Unstructured, *Context) error {
	return func(u *oracle.Unstructured, ctx *Context) error {
		op, err := oracle.Choose(u, ops)
		if err != nil {
			return err
		}
		if err := ctx.Produce(u, t); err != nil {
			return err
		}
		if err := ctx.Produce(u, t); err != nil {
			return err
		}
		ctx.Emit(wasm.Op(op), wasm.Op(wasm.OpDrop))
		return nil
	}
}

func eqz(u *oracle.Unstructured, ctx *Context) error {
	t, op := wasm.I32, wasm.OpI32Eqz
	if u.Bool() {
		t, op = wasm.I64, wasm.OpI64Eqz
	}
	if err := ctx.Produce(u, t); err != nil {
		return err
	}
	ctx.Emit(wasm.Op(op), wasm.Op(wasm.OpDrop))
	return nil
}

// selectOp emits an untyped select, which only takes numeric operands.
func selectOp(u *oracle.Unstructured, ctx *Context) error {
	var numeric []wasm.ValType
	for _, t := range valueTypes(ctx) {
		if t.IsNumeric() {
			numeric = append(numeric, t)
		}
	}
	t, err := oracle.Choose(u, numeric)
	if err != nil {
		return err
	}
	for _, want := range []wasm.ValType{t, t, wasm.I32} {
		if err := ctx.Produce(u, want); err != nil {
			return err
		}
	}
	ctx.Emit(wasm.Op(wasm.OpSelect), wasm.Op(wasm.OpDrop))
	return nil
}

func refIsNull(u *oracle.Unstructured, ctx *Context) error {
	var refs []wasm.ValType
	for _, t := range valueTypes(ctx) {
		if !t.IsNumeric() {
			refs = append(refs, t)
		}
	}
	if len(refs) == 0 {
		ctx.Emit(wasm.Op(wasm.OpNop))
		return nil
	}
	t, err := oracle.Choose(u, refs)
	if err != nil {
		return err
	}
	if err := ctx.Produce(u, t); err != nil {
		return err
	}
	ctx.Emit(wasm.Op(wasm.OpRefIsNull), wasm.Op(wasm.OpDrop))
	return nil
}

func callable(ctx *Context) []uint32 {
	var out []uint32
	for i, f := range ctx.Module.Funcs() {
		if ctx.producible(f.Type.Params) {
			out = append(out, uint32(i))
		}
	}
	return out
}

func call(u *oracle.Unstructured, ctx *Context) error {
	idx, err := oracle.Choose(u, callable(ctx))
	if err != nil {
		return err
	}
	ft := ctx.Module.Funcs()[idx].Type
	for _, p := range ft.Params {
		if err := ctx.Produce(u, p); err != nil {
			return err
		}
	}
	ctx.Emit(wasm.Index(wasm.OpCall, idx))
	for range ft.Results {
		ctx.Emit(wasm.Op(wasm.OpDrop))
	}
	return nil
}
