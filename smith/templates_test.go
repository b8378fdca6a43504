package smith

import (
	"testing"

	"github.com/wippyai/wasmgen/config"
	"github.com/wippyai/wasmgen/wasm"
)

func funcRecGroup(params, results []wasm.ValType) wasm.RecGroup {
	return wasm.RecGroup{Types: []wasm.SubType{{
		Final:     true,
		Composite: wasm.CompositeType{Kind: wasm.CompFunc, Func: &wasm.FuncType{Params: params, Results: results}},
	}}}
}

func shapeTemplate() []byte {
	maxPages := uint64(2)
	tm := &wasm.Module{
		Types: []wasm.RecGroup{
			funcRecGroup([]wasm.ValType{wasm.I32}, nil),
			funcRecGroup(nil, []wasm.ValType{wasm.I64}),
		},
		Imports: []wasm.Import{
			{Module: "env", Name: "log", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, Func: 0}},
			{Module: "env", Name: "counter", Desc: wasm.ImportDesc{Kind: wasm.KindGlobal, Global: wasm.GlobalType{Val: wasm.I32}}},
		},
		Funcs:    []uint32{1},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: &maxPages}}},
		Globals:  []wasm.Global{{Type: wasm.GlobalType{Val: wasm.I64, Mutable: true}, Init: wasm.ConstExpr{wasm.I64Const(0)}}},
		Exports: []wasm.Export{
			{Name: "run", Kind: wasm.KindFunc, Idx: 1},
			{Name: "memory", Kind: wasm.KindMemory, Idx: 0},
			{Name: "state", Kind: wasm.KindGlobal, Idx: 1},
		},
		Code: []wasm.FuncBody{{Body: []wasm.Instruction{wasm.Op(wasm.OpUnreachable)}}},
	}
	return tm.Encode()
}

func TestModuleShape(t *testing.T) {
	cfg := config.Default()
	cfg.ModuleShape = shapeTemplate()

	for seed := uint64(0); seed < 30; seed++ {
		m := mustNew(t, cfg, seed)
		out, err := wasm.ParseModuleValidate(m.Encode())
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}

		if len(out.Imports) != 2 || out.Imports[0].Name != "log" || out.Imports[1].Name != "counter" {
			t.Fatalf("seed %d: imports %+v", seed, out.Imports)
		}
		if len(out.Exports) != 3 {
			t.Fatalf("seed %d: %d exports, want 3", seed, len(out.Exports))
		}
		want := map[string]wasm.ExternKind{"run": wasm.KindFunc, "memory": wasm.KindMemory, "state": wasm.KindGlobal}
		for _, e := range out.Exports {
			if k, ok := want[e.Name]; !ok || k != e.Kind {
				t.Errorf("seed %d: unexpected export %q kind %d", seed, e.Name, e.Kind)
			}
		}

		run := out.Exports[0]
		ft := out.FuncTypeAt(m.Funcs()[run.Idx].TypeIndex)
		if ft == nil || len(ft.Params) != 0 || len(ft.Results) != 1 || ft.Results[0] != wasm.I64 {
			t.Errorf("seed %d: run has signature %v", seed, ft)
		}
		importedFuncs := len(m.Funcs()) - m.NumDefinedFuncs()
		if importedFuncs != 1 {
			t.Errorf("seed %d: %d imported funcs, want 1", seed, importedFuncs)
		}
		if int(run.Idx) < importedFuncs {
			t.Errorf("seed %d: run exports an imported func", seed)
		}
	}
}

func TestRequiredExports(t *testing.T) {
	cfg := config.Default()
	cfg.Exports = shapeTemplate()

	for seed := uint64(0); seed < 30; seed++ {
		m := mustNew(t, cfg, seed)
		if _, err := wasm.ParseModuleValidate(m.Encode()); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		names := map[string]Export{}
		for _, e := range m.Exports() {
			names[e.Name] = e
		}
		for _, n := range []string{"run", "memory", "state"} {
			if _, ok := names[n]; !ok {
				t.Fatalf("seed %d: export %q missing", seed, n)
			}
		}
		g := m.Globals()[names["state"].Index]
		if g.Val != wasm.I64 || !g.Mutable {
			t.Errorf("seed %d: state global %v", seed, g)
		}
		f := m.Funcs()[names["run"].Index]
		if !m.Types()[f.TypeIndex].Final {
			t.Errorf("seed %d: run signature is not final", seed)
		}
	}
}

func TestAvailableImports(t *testing.T) {
	cfg := config.Default()
	cfg.AvailableImports = shapeTemplate()

	for seed := uint64(0); seed < 30; seed++ {
		m := mustNew(t, cfg, seed)
		if _, err := wasm.ParseModuleValidate(m.Encode()); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		for _, imp := range m.Imports() {
			if imp.Module != "env" || (imp.Field != "log" && imp.Field != "counter") {
				t.Errorf("seed %d: import %s.%s not offered", seed, imp.Module, imp.Field)
			}
		}
	}
}

func TestModuleShape_InvalidTemplatePanics(t *testing.T) {
	cfg := config.Default()
	cfg.ModuleShape = []byte("not wasm")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	_, _ = New(cfg, streamFor(0, 64))
}

// gcImportsTemplate has a two-type rec group linked by subtyping and an
// unreferenced struct type. Only the subtype is used by an import.
func gcImportsTemplate() []byte {
	super := uint32(0)
	sig := &wasm.FuncType{Params: []wasm.ValType{wasm.I32}}
	tm := &wasm.Module{
		Types: []wasm.RecGroup{
			{Types: []wasm.SubType{
				{Composite: wasm.CompositeType{Kind: wasm.CompFunc, Func: sig}},
				{Final: true, Supertype: &super, Composite: wasm.CompositeType{Kind: wasm.CompFunc, Func: sig}},
			}},
			{Types: []wasm.SubType{{
				Final: true,
				Composite: wasm.CompositeType{Kind: wasm.CompStruct, Struct: &wasm.StructType{
					Fields: []wasm.FieldType{{Storage: wasm.StorageType{Val: wasm.I64}, Mutable: true}},
				}},
			}}},
		},
		Imports: []wasm.Import{
			{Module: "env", Name: "f", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, Func: 1}},
		},
	}
	return tm.Encode()
}

func TestAvailableImports_CopiesTypeSection(t *testing.T) {
	cfg := config.Default()
	cfg.GC = true
	cfg.AvailableImports = gcImportsTemplate()

	for seed := uint64(0); seed < 30; seed++ {
		m := mustNew(t, cfg, seed)
		if _, err := wasm.ParseModuleValidate(m.Encode()); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		types := m.Types()
		if len(types) < 3 {
			t.Fatalf("seed %d: %d types, template has 3", seed, len(types))
		}
		groups := m.RecGroups()
		if groups[0] != [2]int{0, 2} || groups[1] != [2]int{2, 3} {
			t.Errorf("seed %d: template rec groups became %v", seed, groups[:2])
		}
		if types[0].Final || types[0].Depth != 1 {
			t.Errorf("seed %d: type 0 final=%v depth=%d", seed, types[0].Final, types[0].Depth)
		}
		if types[1].Supertype == nil || *types[1].Supertype != 0 || types[1].Depth != 2 {
			t.Errorf("seed %d: type 1 lost its supertype", seed)
		}
		if types[2].Composite.Kind != wasm.CompStruct {
			t.Errorf("seed %d: unreferenced struct type not copied", seed)
		}
		for _, imp := range m.Imports() {
			if imp.Entity.Kind == wasm.KindFunc && imp.Entity.FuncIndex != 1 {
				t.Errorf("seed %d: import %s.%s has type %d, want 1", seed, imp.Module, imp.Field, imp.Entity.FuncIndex)
			}
		}
	}
}

func TestRequiredExports_KeepsSharedSignature(t *testing.T) {
	tm := &wasm.Module{
		Types: []wasm.RecGroup{{Types: []wasm.SubType{{
			Final:     true,
			Composite: wasm.CompositeType{Kind: wasm.CompFunc, Func: &wasm.FuncType{Params: []wasm.ValType{wasm.I32}}, Shared: true},
		}}}},
		Funcs:   []uint32{0},
		Exports: []wasm.Export{{Name: "run", Kind: wasm.KindFunc, Idx: 0}},
		Code:    []wasm.FuncBody{{Body: []wasm.Instruction{wasm.Op(wasm.OpUnreachable)}}},
	}
	cfg := config.Default()
	cfg.GC = true
	cfg.SharedEverythingThreads = true
	cfg.Exports = tm.Encode()

	for seed := uint64(0); seed < 20; seed++ {
		m := mustNew(t, cfg, seed)
		if _, err := wasm.ParseModuleValidate(m.Encode()); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		var run *Export
		for _, e := range m.Exports() {
			if e.Name == "run" {
				run = &e
			}
		}
		if run == nil {
			t.Fatalf("seed %d: run not exported", seed)
		}
		st := m.Types()[m.Funcs()[run.Index].TypeIndex]
		if !st.Composite.Shared || !st.Final {
			t.Errorf("seed %d: run signature shared=%v final=%v", seed, st.Composite.Shared, st.Final)
		}
	}
}
