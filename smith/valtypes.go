package smith

import (
	"slices"

	"github.com/wippyai/wasmgen/config"
	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

// abstractRefHeaps are the abstract heap types offered as value types under GC.
var abstractRefHeaps = []wasm.AbstractHeap{
	wasm.HeapAny, wasm.HeapEq, wasm.HeapI31, wasm.HeapArray, wasm.HeapStruct,
	wasm.HeapNone, wasm.HeapFunc, wasm.HeapNoFunc, wasm.HeapExtern, wasm.HeapNoExtern,
}

// configuredValTypes lists the value types the configuration permits.
// References are always nullable.
func configuredValTypes(cfg *config.Config) []wasm.ValType {
	out := []wasm.ValType{wasm.I32, wasm.I64}
	if cfg.AllowFloats {
		out = append(out, wasm.F32, wasm.F64)
	}
	if cfg.SIMD {
		out = append(out, wasm.V128)
	}
	switch {
	case cfg.GC && cfg.ReferenceTypes:
		shares := []bool{false}
		if cfg.SharedEverythingThreads {
			shares = append(shares, true)
		}
		for _, shared := range shares {
			for _, h := range abstractRefHeaps {
				out = append(out, wasm.Ref(wasm.RefType{Nullable: true, Heap: wasm.Abstract(shared, h)}))
			}
		}
	case cfg.ReferenceTypes:
		out = append(out, wasm.Ref(wasm.ExternRef), wasm.Ref(wasm.FuncRef))
	}
	return out
}

// ValTypes returns the value types the configuration permits.
func (m *Module) ValTypes() []wasm.ValType { return m.valtypes }

func (m *Module) valKinds() []wasm.ValKind {
	kinds := make([]wasm.ValKind, 0, len(m.valtypes))
	for _, vt := range m.valtypes {
		kinds = append(kinds, vt.Kind)
	}
	slices.Sort(kinds)
	return slices.Compact(kinds)
}

// arbitraryValType picks a value type class uniformly, so references are not
// favored just because there are many reference types.
func (m *Module) arbitraryValType(u *oracle.Unstructured) (wasm.ValType, error) {
	kind, err := oracle.Choose(u, m.valKinds())
	if err != nil {
		return wasm.ValType{}, err
	}
	switch kind {
	case wasm.ValI32:
		return wasm.I32, nil
	case wasm.ValI64:
		return wasm.I64, nil
	case wasm.ValF32:
		return wasm.F32, nil
	case wasm.ValF64:
		return wasm.F64, nil
	case wasm.ValV128:
		return wasm.V128, nil
	}
	rt, err := m.arbitraryRefType(u)
	if err != nil {
		return wasm.ValType{}, err
	}
	return wasm.Ref(rt), nil
}

func (m *Module) arbitraryRefType(u *oracle.Unstructured) (wasm.RefType, error) {
	if !m.config.ReferenceTypes {
		return wasm.FuncRef, nil
	}
	h, err := m.arbitraryHeapType(u)
	if err != nil {
		return wasm.RefType{}, err
	}
	return wasm.RefType{Nullable: true, Heap: h}, nil
}

func (m *Module) arbitraryHeapType(u *oracle.Unstructured) (wasm.HeapType, error) {
	if !m.config.ReferenceTypes {
		panic("smith: heap types require reference types")
	}
	limit := m.typeLimit
	if limit < 0 {
		limit = len(m.types)
	}
	if m.config.GC && limit > 0 && u.Bool() {
		idx := oracle.IntInRange(u, 0, limit-1)
		// Sharedness of a forward reference into the group being generated
		// is unknown, so those fall back to abstract types in a shared
		// context, as do unshared types.
		switch {
		case idx >= len(m.types):
			if !m.mustShare {
				return wasm.Concrete(index(idx)), nil
			}
		case !m.mustShare || m.types[idx].Composite.Shared:
			return wasm.Concrete(index(idx)), nil
		}
	}

	choices := []wasm.AbstractHeap{wasm.HeapFunc, wasm.HeapExtern}
	if m.config.Exceptions {
		choices = append(choices, wasm.HeapExn)
	}
	if m.config.GC {
		choices = append(choices,
			wasm.HeapAny, wasm.HeapNone, wasm.HeapNoExtern, wasm.HeapNoFunc,
			wasm.HeapEq, wasm.HeapStruct, wasm.HeapArray, wasm.HeapI31)
	}
	shared := m.arbitraryShared(u)
	a, err := oracle.Choose(u, choices)
	if err != nil {
		return wasm.HeapType{}, err
	}
	return wasm.Abstract(shared, a), nil
}
