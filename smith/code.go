package smith

import (
	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

const maxLocals = 100

// BodyContext is what a BodyBuilder sees of the function being generated.
// Locals excludes parameters. Module must be treated as read-only.
type BodyContext struct {
	Module *Module
	Func   *wasm.FuncType
	Locals []wasm.ValType
	Index  uint32
	Shared bool
}

// BodyBuilder synthesizes function bodies. The returned instructions exclude
// the final end and must validate against ctx.Func.
type BodyBuilder interface {
	Build(u *oracle.Unstructured, ctx *BodyContext) ([]wasm.Instruction, error)
}

// BodyBuilderFunc adapts a function to BodyBuilder.
type BodyBuilderFunc func(u *oracle.Unstructured, ctx *BodyContext) ([]wasm.Instruction, error)

// Build calls f.
func (f BodyBuilderFunc) Build(u *oracle.Unstructured, ctx *BodyContext) ([]wasm.Instruction, error) {
	return f(u, ctx)
}

// Unreachable builds bodies consisting of a single unreachable, which is
// valid for any signature.
type Unreachable struct{}

// Build implements BodyBuilder.
func (Unreachable) Build(*oracle.Unstructured, *BodyContext) ([]wasm.Instruction, error) {
	return []wasm.Instruction{wasm.Op(wasm.OpUnreachable)}, nil
}

func (m *Module) arbitraryCode(u *oracle.Unstructured) error {
	m.computeInterestingValues()
	first := len(m.funcs) - m.numDefinedFuncs
	m.code = make([]Code, 0, m.numDefinedFuncs)
	for i := first; i < len(m.funcs); i++ {
		f := m.funcs[i]
		code, err := m.arbitraryFuncBody(u, index(i), f)
		if err != nil {
			return err
		}
		m.code = append(m.code, code)
	}
	return nil
}

func (m *Module) arbitraryFuncBody(u *oracle.Unstructured, idx uint32, f Func) (Code, error) {
	locals, err := m.arbitraryLocals(u)
	if err != nil {
		return Code{}, err
	}
	if m.config.AllowInvalidFuncs && u.Bool() {
		return Code{Locals: locals, Raw: u.ByteSlice()}, nil
	}
	body, err := m.builder.Build(u, &BodyContext{
		Module: m,
		Func:   f.Type,
		Locals: locals,
		Index:  idx,
		Shared: m.isSharedType(f.TypeIndex),
	})
	if err != nil {
		return Code{}, err
	}
	return Code{Locals: locals, Body: body}, nil
}

func (m *Module) arbitraryLocals(u *oracle.Unstructured) ([]wasm.ValType, error) {
	var locals []wasm.ValType
	err := oracle.Loop(u, 0, maxLocals, func() (bool, error) {
		vt, err := m.arbitraryValType(u)
		if err != nil {
			return false, err
		}
		locals = append(locals, vt)
		return true, nil
	})
	return locals, err
}
