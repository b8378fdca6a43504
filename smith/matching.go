package smith

import (
	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

// Matching types are subtypes of a given type, used where a value flows into
// a slot (covariant positions). Supertypes are used for contravariant
// positions such as function parameters.

func (m *Module) arbitraryMatchingStructType(u *oracle.Unstructured, st *wasm.StructType) (*wasm.StructType, error) {
	extra := oracle.IntInRange(u, 0, 5)
	fields := make([]wasm.FieldType, 0, len(st.Fields)+extra)
	for _, f := range st.Fields {
		mf, err := m.arbitraryMatchingFieldType(u, f)
		if err != nil {
			return nil, err
		}
		fields = append(fields, mf)
	}
	for i := 0; i < extra; i++ {
		f, err := m.arbitraryFieldType(u)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return &wasm.StructType{Fields: fields}, nil
}

// arbitraryMatchingFieldType keeps mutable fields invariant.
func (m *Module) arbitraryMatchingFieldType(u *oracle.Unstructured, f wasm.FieldType) (wasm.FieldType, error) {
	if f.Mutable || f.Storage.Kind != wasm.StorageVal {
		return f, nil
	}
	vt, err := m.arbitraryMatchingValType(u, f.Storage.Val)
	if err != nil {
		return wasm.FieldType{}, err
	}
	return wasm.FieldType{Storage: wasm.StorageType{Kind: wasm.StorageVal, Val: vt}}, nil
}

func (m *Module) arbitraryMatchingValType(u *oracle.Unstructured, vt wasm.ValType) (wasm.ValType, error) {
	if vt.Kind != wasm.ValRef {
		return vt, nil
	}
	rt, err := m.arbitraryMatchingRefType(u, vt.Ref)
	if err != nil {
		return wasm.ValType{}, err
	}
	return wasm.Ref(rt), nil
}

func (m *Module) arbitraryMatchingRefType(u *oracle.Unstructured, rt wasm.RefType) (wasm.RefType, error) {
	h, err := m.arbitraryMatchingHeapType(u, rt.Heap)
	if err != nil {
		return wasm.RefType{}, err
	}
	return wasm.RefType{Nullable: rt.Nullable, Heap: h}, nil
}

func (m *Module) arbitraryMatchingHeapType(u *oracle.Unstructured, h wasm.HeapType) (wasm.HeapType, error) {
	if !m.config.GC {
		return h, nil
	}
	choices := []wasm.HeapType{h}
	if h.Concrete {
		for _, sub := range m.superToSubTypes[h.Index] {
			choices = append(choices, wasm.Concrete(sub))
		}
		// A forward reference into the group being generated has no
		// definition yet; only the type itself is a candidate then.
		if st, ok := m.TypeAt(h.Index); ok {
			bottom := wasm.HeapNone
			if st.Composite.Kind == wasm.CompFunc {
				bottom = wasm.HeapNoFunc
			}
			choices = append(choices, wasm.Abstract(st.Composite.Shared, bottom))
		}
		return oracle.Choose(u, choices)
	}

	shared := h.Shared
	abstract := func(as ...wasm.AbstractHeap) {
		for _, a := range as {
			choices = append(choices, wasm.Abstract(shared, a))
		}
	}
	concrete := func(idxs []uint32) {
		for _, idx := range idxs {
			if m.isSharedType(idx) == shared {
				choices = append(choices, wasm.Concrete(idx))
			}
		}
	}
	switch h.Abstract {
	case wasm.HeapAny:
		abstract(wasm.HeapEq, wasm.HeapStruct, wasm.HeapArray, wasm.HeapI31, wasm.HeapNone)
		concrete(m.arrayTypes)
		concrete(m.structTypes)
	case wasm.HeapEq:
		abstract(wasm.HeapStruct, wasm.HeapArray, wasm.HeapI31, wasm.HeapNone)
		concrete(m.arrayTypes)
		concrete(m.structTypes)
	case wasm.HeapStruct:
		abstract(wasm.HeapStruct, wasm.HeapNone)
		concrete(m.structTypes)
	case wasm.HeapArray:
		abstract(wasm.HeapArray, wasm.HeapNone)
		concrete(m.arrayTypes)
	case wasm.HeapI31:
		abstract(wasm.HeapNone)
	case wasm.HeapFunc:
		abstract(wasm.HeapNoFunc)
		concrete(m.funcTypes)
	case wasm.HeapExtern:
		abstract(wasm.HeapNoExtern)
	}
	return oracle.Choose(u, choices)
}

// arbitraryMatchingFuncType builds a subtype signature: parameters widen,
// results narrow.
func (m *Module) arbitraryMatchingFuncType(u *oracle.Unstructured, ft *wasm.FuncType) (*wasm.FuncType, error) {
	out := &wasm.FuncType{
		Params:  make([]wasm.ValType, 0, len(ft.Params)),
		Results: make([]wasm.ValType, 0, len(ft.Results)),
	}
	for _, p := range ft.Params {
		vt, err := m.arbitrarySuperTypeOfValType(u, p)
		if err != nil {
			return nil, err
		}
		out.Params = append(out.Params, vt)
	}
	for _, r := range ft.Results {
		vt, err := m.arbitraryMatchingValType(u, r)
		if err != nil {
			return nil, err
		}
		out.Results = append(out.Results, vt)
	}
	return out, nil
}

func (m *Module) arbitrarySuperTypeOfValType(u *oracle.Unstructured, vt wasm.ValType) (wasm.ValType, error) {
	if vt.Kind != wasm.ValRef {
		return vt, nil
	}
	rt, err := m.arbitrarySuperTypeOfRefType(u, vt.Ref)
	if err != nil {
		return wasm.ValType{}, err
	}
	return wasm.Ref(rt), nil
}

func (m *Module) arbitrarySuperTypeOfRefType(u *oracle.Unstructured, rt wasm.RefType) (wasm.RefType, error) {
	h, err := m.arbitrarySuperTypeOfHeapType(u, rt.Heap)
	if err != nil {
		return wasm.RefType{}, err
	}
	return wasm.RefType{Nullable: true, Heap: h}, nil
}

func (m *Module) arbitrarySuperTypeOfHeapType(u *oracle.Unstructured, h wasm.HeapType) (wasm.HeapType, error) {
	if !m.config.GC {
		return h, nil
	}
	choices := []wasm.HeapType{h}
	if h.Concrete {
		if st, ok := m.TypeAt(h.Index); ok {
			shared := st.Composite.Shared
			switch st.Composite.Kind {
			case wasm.CompArray:
				choices = append(choices,
					wasm.Abstract(shared, wasm.HeapAny),
					wasm.Abstract(shared, wasm.HeapEq),
					wasm.Abstract(shared, wasm.HeapArray))
			case wasm.CompFunc:
				choices = append(choices, wasm.Abstract(shared, wasm.HeapFunc))
			case wasm.CompStruct:
				choices = append(choices,
					wasm.Abstract(shared, wasm.HeapAny),
					wasm.Abstract(shared, wasm.HeapEq),
					wasm.Abstract(shared, wasm.HeapStruct))
			}
		}
		idx := h.Index
		for {
			st, ok := m.TypeAt(idx)
			if !ok || st.Supertype == nil {
				break
			}
			idx = *st.Supertype
			choices = append(choices, wasm.Concrete(idx))
		}
		return oracle.Choose(u, choices)
	}

	shared := h.Shared
	abstract := func(as ...wasm.AbstractHeap) {
		for _, a := range as {
			choices = append(choices, wasm.Abstract(shared, a))
		}
	}
	concrete := func(idxs []uint32) {
		for _, idx := range idxs {
			if m.isSharedType(idx) == shared {
				choices = append(choices, wasm.Concrete(idx))
			}
		}
	}
	switch h.Abstract {
	case wasm.HeapNone:
		abstract(wasm.HeapAny, wasm.HeapEq, wasm.HeapStruct, wasm.HeapArray, wasm.HeapI31)
		concrete(m.arrayTypes)
		concrete(m.structTypes)
	case wasm.HeapNoExtern:
		abstract(wasm.HeapExtern)
	case wasm.HeapNoFunc:
		abstract(wasm.HeapFunc)
		concrete(m.funcTypes)
	case wasm.HeapNoExn:
		abstract(wasm.HeapExn)
	case wasm.HeapStruct, wasm.HeapArray, wasm.HeapI31:
		abstract(wasm.HeapAny, wasm.HeapEq)
	case wasm.HeapEq:
		abstract(wasm.HeapAny)
	case wasm.HeapNoCont:
		abstract(wasm.HeapCont)
	}
	return oracle.Choose(u, choices)
}
