package smith

import (
	"slices"

	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

// constExprChoice produces one candidate constant expression for ty.
type constExprChoice func(u *oracle.Unstructured, ty wasm.ValType) (wasm.ConstExpr, error)

// maxExtendedConstOps bounds an extended constant expression; past it only
// constants are added until the stack balances.
const maxExtendedConstOps = 10

// globalsForConstExpr lists the immutable globals whose type is a subtype of
// ty. Only imported globals qualify unless GC is enabled and defined globals
// are allowed.
func (m *Module) globalsForConstExpr(ty wasm.ValType, allowDefined bool) []uint32 {
	limit := len(m.globals) - len(m.definedGlobals)
	if m.config.GC && allowDefined {
		limit = len(m.globals)
	}
	var out []uint32
	for i, g := range m.globals[:limit] {
		if !g.Mutable && m.IsSubType(g.Val, ty) {
			out = append(out, index(i))
		}
	}
	return out
}

// arbitraryConstExpr builds a constant expression producing a subtype of ty.
func (m *Module) arbitraryConstExpr(u *oracle.Unstructured, ty wasm.ValType, allowDefinedGlobals bool) (wasm.ConstExpr, error) {
	choices := m.constExprChoices[:0]
	defer func() { m.constExprChoices = choices[:0] }()

	for _, g := range m.globalsForConstExpr(ty, allowDefinedGlobals) {
		choices = append(choices, func(*oracle.Unstructured, wasm.ValType) (wasm.ConstExpr, error) {
			return wasm.ConstExpr{wasm.GlobalGet(g)}, nil
		})
	}

	ty, err := m.arbitraryMatchingValType(u, ty)
	if err != nil {
		return nil, err
	}
	switch ty.Kind {
	case wasm.ValI32:
		choices = append(choices, func(u *oracle.Unstructured, _ wasm.ValType) (wasm.ConstExpr, error) {
			return wasm.ConstExpr{wasm.I32Const(u.Int32())}, nil
		})
		if m.config.ExtendedConst {
			choices = append(choices, arbitraryExtendedConst)
		}
	case wasm.ValI64:
		choices = append(choices, func(u *oracle.Unstructured, _ wasm.ValType) (wasm.ConstExpr, error) {
			return wasm.ConstExpr{wasm.I64Const(u.Int64())}, nil
		})
		if m.config.ExtendedConst {
			choices = append(choices, arbitraryExtendedConst)
		}
	case wasm.ValF32:
		choices = append(choices, func(u *oracle.Unstructured, _ wasm.ValType) (wasm.ConstExpr, error) {
			return wasm.ConstExpr{wasm.F32Const(u.Float32Bits())}, nil
		})
	case wasm.ValF64:
		choices = append(choices, func(u *oracle.Unstructured, _ wasm.ValType) (wasm.ConstExpr, error) {
			return wasm.ConstExpr{wasm.F64Const(u.Float64Bits())}, nil
		})
	case wasm.ValV128:
		choices = append(choices, func(u *oracle.Unstructured, _ wasm.ValType) (wasm.ConstExpr, error) {
			lo, hi := u.V128()
			return wasm.ConstExpr{wasm.V128Const(lo, hi)}, nil
		})
	case wasm.ValRef:
		rt := ty.Ref
		if rt.Nullable {
			choices = append(choices, func(*oracle.Unstructured, wasm.ValType) (wasm.ConstExpr, error) {
				return wasm.ConstExpr{wasm.RefNull(rt.Heap)}, nil
			})
		}
		for _, f := range m.refFuncCandidates(u, rt.Heap) {
			choices = append(choices, func(*oracle.Unstructured, wasm.ValType) (wasm.ConstExpr, error) {
				return wasm.ConstExpr{wasm.RefFunc(f)}, nil
			})
		}
	}

	f, err := oracle.Choose(u, choices)
	if err != nil {
		return nil, err
	}
	return f(u, ty)
}

// refFuncCandidates returns the functions ref.func may name for heap type h.
// For abstract func one function of the right sharedness is drawn; for a
// concrete type every function of exactly that type qualifies.
func (m *Module) refFuncCandidates(u *oracle.Unstructured, h wasm.HeapType) []uint32 {
	if h.Concrete {
		var out []uint32
		for i, f := range m.funcs {
			if f.TypeIndex == h.Index {
				out = append(out, index(i))
			}
		}
		return out
	}
	if h.Abstract != wasm.HeapFunc {
		return nil
	}
	var matching []uint32
	for i, f := range m.funcs {
		if m.isSharedType(f.TypeIndex) == h.Shared {
			matching = append(matching, index(i))
		}
	}
	if len(matching) == 0 {
		return nil
	}
	return []uint32{matching[oracle.IntInRange(u, 0, len(matching)-1)]}
}

// arbitraryExtendedConst builds an i32 or i64 expression of add, sub and mul
// over constants. It is generated back to front: needed counts the operands
// still missing.
func arbitraryExtendedConst(u *oracle.Unstructured, ty wasm.ValType) (wasm.ConstExpr, error) {
	add, sub, mul := wasm.OpI64Add, wasm.OpI64Sub, wasm.OpI64Mul
	if ty.Kind == wasm.ValI32 {
		add, sub, mul = wasm.OpI32Add, wasm.OpI32Sub, wasm.OpI32Mul
	}
	var instrs wasm.ConstExpr
	for needed := 1; needed > 0; {
		choice := 0
		if !u.IsEmpty() && len(instrs) <= maxExtendedConstOps {
			choice = oracle.IntInRange(u, 0, 3)
		}
		switch choice {
		case 0:
			if ty.Kind == wasm.ValI32 {
				instrs = append(instrs, wasm.I32Const(u.Int32()))
			} else {
				instrs = append(instrs, wasm.I64Const(u.Int64()))
			}
			needed--
		case 1:
			instrs = append(instrs, wasm.Op(add))
			needed++
		case 2:
			instrs = append(instrs, wasm.Op(sub))
			needed++
		case 3:
			instrs = append(instrs, wasm.Op(mul))
			needed++
		}
	}
	slices.Reverse(instrs)
	return instrs, nil
}
