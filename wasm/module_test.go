package wasm

import (
	"bytes"
	stderrors "errors"
	"testing"

	werrors "github.com/wippyai/wasmgen/errors"
)

func sampleModule() *Module {
	maxPages := uint64(4)
	start := uint32(1)
	return &Module{
		Types: []RecGroup{
			{Types: []SubType{{Final: true, Composite: CompositeType{Kind: CompFunc, Func: &FuncType{}}}}},
			{Types: []SubType{{Final: true, Composite: CompositeType{Kind: CompFunc, Func: &FuncType{
				Params:  []ValType{I32, F64},
				Results: []ValType{I64},
			}}}}},
		},
		Imports: []Import{
			{Module: "env", Name: "tick", Desc: ImportDesc{Kind: KindFunc, Func: 0}},
			{Module: "env", Name: "base", Desc: ImportDesc{Kind: KindGlobal, Global: GlobalType{Val: I32}}},
		},
		Funcs:    []uint32{0, 1},
		Tables:   []Table{{Type: TableType{Elem: FuncRef, Limits: Limits{Min: 2}}}},
		Memories: []MemoryType{{Limits: Limits{Min: 1, Max: &maxPages}}},
		Globals: []Global{
			{Type: GlobalType{Val: I64, Mutable: true}, Init: ConstExpr{I64Const(-7)}},
			{Type: GlobalType{Val: Ref(FuncRef)}, Init: ConstExpr{RefFunc(2)}},
		},
		Exports: []Export{
			{Name: "run", Kind: KindFunc, Idx: 2},
			{Name: "memory", Kind: KindMemory, Idx: 0},
		},
		Start: &start,
		Elements: []Element{
			{Mode: ElemActive, Offset: ConstExpr{GlobalGet(0)}, Funcs: []uint32{0, 1}, Type: FuncRef},
			{Mode: ElemPassive, Type: ExternRef, UsesExprs: true, Exprs: []ConstExpr{{RefNull(Abstract(false, HeapExtern))}}},
		},
		Code: []FuncBody{
			{Body: []Instruction{Op(OpNop)}},
			{
				Locals: []Local{{Type: I32, Count: 2}},
				Body: []Instruction{
					Index(OpLocalGet, 0),
					Index(OpLocalSet, 2),
					I64Const(1),
				},
			},
		},
		Data: []DataSegment{
			{Mode: DataActive, Offset: ConstExpr{I32Const(16)}, Init: []byte("hello")},
			{Mode: DataPassive, Init: []byte{1, 2, 3}},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := sampleModule()
	if err := m.Validate(); err != nil {
		t.Fatalf("sample module invalid: %v", err)
	}
	bin := m.Encode()
	back, err := ParseModuleValidate(bin)
	if err != nil {
		t.Fatal(err)
	}
	if again := back.Encode(); !bytes.Equal(bin, again) {
		t.Fatal("re-encoding a decoded module changed its bytes")
	}
	if len(back.Imports) != 2 || len(back.Funcs) != 2 || len(back.Exports) != 2 {
		t.Errorf("decoded counts: imports %d funcs %d exports %d", len(back.Imports), len(back.Funcs), len(back.Exports))
	}
	if back.Start == nil || *back.Start != 1 {
		t.Errorf("start = %v, want 1", back.Start)
	}
	if !bytes.Equal(back.Data[0].Init, []byte("hello")) {
		t.Errorf("data = %q", back.Data[0].Init)
	}
}

func TestEncodeDecodeRoundTrip_SharedTables(t *testing.T) {
	sharedFunc := RefType{Nullable: true, Heap: Abstract(true, HeapFunc)}
	maxElems := uint64(8)
	tests := []struct {
		name   string
		limits Limits
	}{
		{"shared", Limits{Min: 1, Shared: true}},
		{"shared_max", Limits{Min: 1, Max: &maxElems, Shared: true}},
		{"shared_table64", Limits{Min: 1, Is64: true, Shared: true}},
		{"shared_table64_max", Limits{Min: 1, Max: &maxElems, Is64: true, Shared: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Module{
				Imports: []Import{{Module: "env", Name: "t", Desc: ImportDesc{
					Kind:  KindTable,
					Table: TableType{Elem: sharedFunc, Limits: tt.limits},
				}}},
				Tables: []Table{{Type: TableType{Elem: sharedFunc, Limits: tt.limits}}},
			}
			bin := m.Encode()
			back, err := ParseModuleValidate(bin)
			if err != nil {
				t.Fatalf("shared table rejected: %v", err)
			}
			if !back.Tables[0].Type.Limits.Shared || !back.Imports[0].Desc.Table.Limits.Shared {
				t.Error("shared flag lost in decoding")
			}
			if back.Tables[0].Type.Limits.Is64 != tt.limits.Is64 {
				t.Errorf("is64 = %v, want %v", back.Tables[0].Type.Limits.Is64, tt.limits.Is64)
			}
			if again := back.Encode(); !bytes.Equal(bin, again) {
				t.Error("re-encoding changed the bytes")
			}
		})
	}
}

func TestEncodeEmptyModule(t *testing.T) {
	bin := (&Module{}).Encode()
	want := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(bin, want) {
		t.Fatalf("empty module = % x, want % x", bin, want)
	}
	kept := (&Module{KeepEmptyTypes: true, KeepEmptyImports: true}).Encode()
	if len(kept) != len(want)+6 {
		t.Errorf("empty kept sections encode to %d bytes, want %d", len(kept), len(want)+6)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Module)
		kind   werrors.Kind
	}{
		{"duplicate_export", func(m *Module) {
			m.Exports = append(m.Exports, Export{Name: "run", Kind: KindFunc, Idx: 0})
		}, werrors.KindDuplicate},
		{"export_out_of_range", func(m *Module) {
			m.Exports[0].Idx = 99
		}, werrors.KindOutOfBounds},
		{"start_with_params", func(m *Module) {
			s := uint32(2)
			m.Start = &s
		}, werrors.KindTypeMismatch},
		{"start_out_of_range", func(m *Module) {
			s := uint32(3)
			m.Start = &s
		}, werrors.KindOutOfBounds},
		{"global_init_type", func(m *Module) {
			m.Globals[0].Init = ConstExpr{I32Const(1)}
		}, werrors.KindTypeMismatch},
		{"body_result_missing", func(m *Module) {
			m.Code[1].Body = m.Code[1].Body[:2]
		}, werrors.KindInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := sampleModule()
			tt.mutate(m)
			err := m.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var we *werrors.Error
			if !stderrors.As(err, &we) {
				t.Fatalf("error %T is not structured: %v", err, err)
			}
			if we.Kind != tt.kind {
				t.Errorf("kind = %s, want %s (%v)", we.Kind, tt.kind, err)
			}
		})
	}
}

func TestValidate_RejectsInvalidWithoutKind(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Module)
	}{
		{"undeclared_ref_func", func(m *Module) {
			m.Code[0].Body = []Instruction{RefFunc(3), Op(OpDrop)}
		}},
		{"data_count_mismatch", func(m *Module) {
			n := uint32(5)
			m.DataCount = &n
		}},
		{"funcs_segment_not_funcref", func(m *Module) {
			m.Elements[0].Type = ExternRef
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := sampleModule()
			tt.mutate(m)
			if err := m.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseModule_Truncated(t *testing.T) {
	bin := sampleModule().Encode()
	for _, n := range []int{0, 4, len(bin) - 1} {
		if _, err := ParseModule(bin[:n]); err == nil {
			t.Errorf("truncated to %d bytes parsed without error", n)
		}
	}
}
