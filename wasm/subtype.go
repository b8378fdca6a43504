package wasm

// TypeSpace resolves concrete heap type indices to their definitions.
// A missing index (forward reference past the known types) reports false.
type TypeSpace interface {
	TypeAt(idx uint32) (*SubType, bool)
}

// ValTypeIsSubType reports whether a <: b.
func ValTypeIsSubType(ts TypeSpace, a, b ValType) bool {
	if a == b {
		return true
	}
	if a.Kind != ValRef || b.Kind != ValRef {
		return false
	}
	return RefTypeIsSubType(ts, a.Ref, b.Ref)
}

// RefTypeIsSubType reports whether a <: b. A nullable reference is never a
// subtype of a non-nullable one.
func RefTypeIsSubType(ts TypeSpace, a, b RefType) bool {
	if a == b {
		return true
	}
	if a.Nullable && !b.Nullable {
		return false
	}
	return HeapTypeIsSubType(ts, a.Heap, b.Heap)
}

// HeapTypeIsSubType reports whether a <: b in the heap type lattice.
func HeapTypeIsSubType(ts TypeSpace, a, b HeapType) bool {
	switch {
	case !a.Concrete && !b.Concrete:
		return a.Shared == b.Shared && abstractIsSubType(a.Abstract, b.Abstract)

	case a.Concrete && !b.Concrete:
		st, ok := ts.TypeAt(a.Index)
		if !ok || st.Composite.Shared != b.Shared {
			return false
		}
		k := st.Composite.Kind
		switch b.Abstract {
		case HeapAny, HeapEq:
			return k == CompArray || k == CompStruct
		case HeapStruct:
			return k == CompStruct
		case HeapArray:
			return k == CompArray
		case HeapFunc:
			return k == CompFunc
		}
		return false

	case !a.Concrete && b.Concrete:
		st, ok := ts.TypeAt(b.Index)
		if !ok || st.Composite.Shared != a.Shared {
			return false
		}
		switch a.Abstract {
		case HeapNone:
			return st.Composite.Kind == CompArray || st.Composite.Kind == CompStruct
		case HeapNoFunc:
			return st.Composite.Kind == CompFunc
		}
		return false
	}

	idx := a.Index
	for {
		if idx == b.Index {
			return true
		}
		st, ok := ts.TypeAt(idx)
		if !ok || st.Supertype == nil {
			return false
		}
		idx = *st.Supertype
	}
}

func abstractIsSubType(a, b AbstractHeap) bool {
	if a == b {
		return true
	}
	switch b {
	case HeapAny:
		return a == HeapEq || a == HeapI31 || a == HeapStruct || a == HeapArray || a == HeapNone
	case HeapEq:
		return a == HeapI31 || a == HeapStruct || a == HeapArray || a == HeapNone
	case HeapI31, HeapStruct, HeapArray:
		return a == HeapNone
	case HeapExtern:
		return a == HeapNoExtern
	case HeapFunc:
		return a == HeapNoFunc
	case HeapExn:
		return a == HeapNoExn
	case HeapCont:
		return a == HeapNoCont
	}
	return false
}

// TopOf returns the top of the hierarchy a heap type belongs to.
func TopOf(ts TypeSpace, h HeapType) HeapType {
	if h.Concrete {
		st, ok := ts.TypeAt(h.Index)
		if !ok {
			return h
		}
		if st.Composite.Kind == CompFunc {
			return Abstract(st.Composite.Shared, HeapFunc)
		}
		return Abstract(st.Composite.Shared, HeapAny)
	}
	top := h.Abstract
	switch h.Abstract {
	case HeapEq, HeapI31, HeapStruct, HeapArray, HeapNone:
		top = HeapAny
	case HeapNoFunc:
		top = HeapFunc
	case HeapNoExtern:
		top = HeapExtern
	case HeapNoExn:
		top = HeapExn
	case HeapNoCont:
		top = HeapCont
	}
	return Abstract(h.Shared, top)
}
