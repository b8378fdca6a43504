package wasm

import "testing"

var allAbstract = []AbstractHeap{
	HeapFunc, HeapExtern, HeapAny, HeapNone, HeapNoExtern, HeapNoFunc, HeapEq,
	HeapStruct, HeapArray, HeapI31, HeapExn, HeapNoExn, HeapCont, HeapNoCont,
}

func TestAbstractLattice(t *testing.T) {
	var ts Module
	sub := func(a, b AbstractHeap) bool {
		return HeapTypeIsSubType(&ts, Abstract(false, a), Abstract(false, b))
	}

	for _, a := range allAbstract {
		if !sub(a, a) {
			t.Errorf("%v is not a subtype of itself", a)
		}
		for _, b := range allAbstract {
			if a != b && sub(a, b) && sub(b, a) {
				t.Errorf("%v and %v are mutual subtypes", a, b)
			}
			if sub(a, b) && TopOf(&ts, Abstract(false, a)) != TopOf(&ts, Abstract(false, b)) {
				t.Errorf("%v <: %v across hierarchies", a, b)
			}
			for _, c := range allAbstract {
				if sub(a, b) && sub(b, c) && !sub(a, c) {
					t.Errorf("%v <: %v <: %v but not %v <: %v", a, b, c, a, c)
				}
			}
		}
	}

	for _, top := range []AbstractHeap{HeapFunc, HeapExtern, HeapExn} {
		if sub(top, HeapAny) || sub(HeapAny, top) {
			t.Errorf("%v is related to any", top)
		}
	}
}

func TestAbstractLattice_SharedIsSeparate(t *testing.T) {
	var ts Module
	if HeapTypeIsSubType(&ts, Abstract(true, HeapNone), Abstract(false, HeapAny)) {
		t.Error("shared none <: unshared any")
	}
	if !HeapTypeIsSubType(&ts, Abstract(true, HeapNone), Abstract(true, HeapAny)) {
		t.Error("shared none is not a subtype of shared any")
	}
}

func TestConcreteSubtyping(t *testing.T) {
	zero, one := uint32(0), uint32(1)
	ts := &Module{Types: []RecGroup{{Types: []SubType{
		{Composite: CompositeType{Kind: CompStruct, Struct: &StructType{}}},
		{Supertype: &zero, Composite: CompositeType{Kind: CompStruct, Struct: &StructType{}}},
		{Supertype: &one, Final: true, Composite: CompositeType{Kind: CompStruct, Struct: &StructType{}}},
		{Final: true, Composite: CompositeType{Kind: CompFunc, Func: &FuncType{}}},
	}}}}

	tests := []struct {
		name string
		a, b HeapType
		want bool
	}{
		{"chain", Concrete(2), Concrete(0), true},
		{"reverse_chain", Concrete(0), Concrete(2), false},
		{"struct_to_eq", Concrete(1), Abstract(false, HeapEq), true},
		{"struct_to_array", Concrete(1), Abstract(false, HeapArray), false},
		{"func_to_func", Concrete(3), Abstract(false, HeapFunc), true},
		{"func_to_any", Concrete(3), Abstract(false, HeapAny), false},
		{"none_to_struct", Abstract(false, HeapNone), Concrete(2), true},
		{"nofunc_to_func_type", Abstract(false, HeapNoFunc), Concrete(3), true},
		{"nofunc_to_struct", Abstract(false, HeapNoFunc), Concrete(0), false},
		{"forward_reference", Concrete(9), Abstract(false, HeapAny), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HeapTypeIsSubType(ts, tt.a, tt.b); got != tt.want {
				t.Errorf("HeapTypeIsSubType = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefNullability(t *testing.T) {
	var ts Module
	nonNull := RefType{Heap: Abstract(false, HeapFunc)}
	if !RefTypeIsSubType(&ts, nonNull, FuncRef) {
		t.Error("(ref func) is not a subtype of funcref")
	}
	if RefTypeIsSubType(&ts, FuncRef, nonNull) {
		t.Error("funcref is a subtype of (ref func)")
	}
	if ValTypeIsSubType(&ts, I32, I64) {
		t.Error("i32 <: i64")
	}
}
