package smith

import (
	"context"
	stderrors "errors"
	"math/rand/v2"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasmgen/config"
	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

func streamFor(seed uint64, n int) *oracle.Unstructured {
	var key [32]byte
	for i := 0; i < 8; i++ {
		key[i] = byte(seed >> (8 * i))
	}
	data := make([]byte, n)
	_, _ = rand.NewChaCha8(key).Read(data)
	return oracle.New(data)
}

func mustNew(t *testing.T, cfg config.Config, seed uint64) *Module {
	t.Helper()
	m, err := New(cfg, streamFor(seed, 8192))
	if err != nil {
		t.Fatalf("seed %d: New: %v", seed, err)
	}
	return m
}

func TestNew_Validates(t *testing.T) {
	noRefs := config.Default()
	noRefs.ReferenceTypes = false

	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"default", config.Default()},
		{"core2", config.Core2()},
		{"everything", config.Everything()},
		{"no_reference_types", noRefs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for seed := uint64(0); seed < 100; seed++ {
				m := mustNew(t, tt.cfg, seed)
				if _, err := wasm.ParseModuleValidate(m.Encode()); err != nil {
					t.Fatalf("seed %d: %v", seed, err)
				}
			}
		})
	}
}

func TestNew_SharedEverythingValidates(t *testing.T) {
	shared := func(base config.Config) config.Config {
		base.GC = true
		base.SharedEverythingThreads = true
		return base
	}
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"default", shared(config.Default())},
		{"core2", shared(config.Core2())},
		{"everything", config.Everything()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sharedTables := 0
			for seed := uint64(0); seed < 300; seed++ {
				m := mustNew(t, tt.cfg, seed)
				if _, err := wasm.ParseModuleValidate(m.Encode()); err != nil {
					t.Fatalf("seed %d: %v", seed, err)
				}
				for _, tab := range m.Tables() {
					if tab.Limits.Shared {
						sharedTables++
					}
				}
			}
			if sharedTables == 0 {
				t.Error("no shared table generated in 300 seeds")
			}
		})
	}
}

func TestNew_RespectsBounds(t *testing.T) {
	cfg := config.Everything()
	cfg.MaxTypes = 10
	cfg.MaxFuncs = 5
	cfg.MaxGlobals = 3
	cfg.MaxTables = 2
	cfg.MaxExports = 4
	cfg.MaxDataSegments = 2
	cfg.MaxElementSegments = 2

	for seed := uint64(0); seed < 100; seed++ {
		m := mustNew(t, cfg, seed)
		checks := []struct {
			what string
			got  int
			max  int
		}{
			{"types", len(m.Types()), cfg.MaxTypes},
			{"funcs", len(m.Funcs()), cfg.MaxFuncs},
			{"globals", len(m.Globals()), cfg.MaxGlobals},
			{"tables", len(m.Tables()), cfg.MaxTables},
			{"memories", len(m.Memories()), cfg.MaxMemories},
			{"exports", len(m.Exports()), cfg.MaxExports},
			{"data", len(m.Data()), cfg.MaxDataSegments},
			{"elements", len(m.Elements()), cfg.MaxElementSegments},
		}
		for _, c := range checks {
			if c.got > c.max {
				t.Errorf("seed %d: %d %s, max %d", seed, c.got, c.what, c.max)
			}
		}
		if m.TypeSize() > cfg.MaxTypeSize {
			t.Errorf("seed %d: type size %d over %d", seed, m.TypeSize(), cfg.MaxTypeSize)
		}
	}
}

func TestNew_WazeroCompiles(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)

	cfg := config.Core2()
	cfg.DisallowTraps = true
	for seed := uint64(0); seed < 50; seed++ {
		m := mustNew(t, cfg, seed)
		compiled, err := rt.CompileModule(ctx, wasm.RewriteEmptyModuleNames(m.Encode()))
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		_ = compiled.Close(ctx)
	}
}

func TestNew_WithoutGCEveryTypeIsAFinalFunc(t *testing.T) {
	cfg := config.Default()
	cfg.MinTypes, cfg.MaxTypes = 2, 2

	for seed := uint64(0); seed < 50; seed++ {
		m := mustNew(t, cfg, seed)
		if len(m.Types()) != 2 {
			t.Fatalf("seed %d: %d types, want 2", seed, len(m.Types()))
		}
		for i, g := range m.RecGroups() {
			if g[1]-g[0] != 1 {
				t.Errorf("seed %d: rec group %d has %d types", seed, i, g[1]-g[0])
			}
		}
		for i, st := range m.Types() {
			if st.Composite.Kind != wasm.CompFunc || !st.Final || st.Supertype != nil {
				t.Errorf("seed %d: type %d is not a final func type", seed, i)
			}
		}
	}
}

func TestNew_SubtypingDepth(t *testing.T) {
	cfg := config.Everything()
	for seed := uint64(0); seed < 100; seed++ {
		m := mustNew(t, cfg, seed)
		for i, st := range m.Types() {
			want := uint32(1)
			if st.Supertype != nil {
				want = m.Types()[*st.Supertype].Depth + 1
			}
			if st.Depth != want {
				t.Fatalf("seed %d: type %d depth %d, want %d", seed, i, st.Depth, want)
			}
		}
		for _, idx := range m.canSubtype {
			st := m.Types()[idx]
			if st.Final || st.Depth >= maxSubtypingDepth {
				t.Fatalf("seed %d: type %d offered as supertype", seed, idx)
			}
		}
	}
}

func TestNew_TableMaxRequired(t *testing.T) {
	cfg := config.Default()
	cfg.MinTables = 1
	cfg.TableMaxSizeRequired = true
	cfg.MemoryMaxSizeRequired = true
	cfg.MaxImports = 0

	for seed := uint64(0); seed < 50; seed++ {
		m := mustNew(t, cfg, seed)
		if len(m.Tables()) == 0 {
			t.Fatalf("seed %d: no tables", seed)
		}
		for i, tt := range m.Tables() {
			if tt.Limits.Max == nil || *tt.Limits.Max < tt.Limits.Min {
				t.Errorf("seed %d: table %d limits %+v", seed, i, tt.Limits)
			}
		}
		for i, mt := range m.Memories() {
			if mt.Limits.Max == nil {
				t.Errorf("seed %d: memory %d without maximum", seed, i)
			}
		}
	}
}

func TestNew_ExportBudget(t *testing.T) {
	cfg := config.Default()
	cfg.MinTypes = 1
	cfg.MinFuncs = 1
	cfg.MaxImports = 0
	cfg.MaxTypeSize = 0
	cfg.ExportEverything = true

	_, err := New(cfg, streamFor(1, 4096))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !stderrors.Is(err, ErrExportBudget) {
		t.Errorf("error %v does not match ErrExportBudget", err)
	}
	if !stderrors.Is(err, oracle.ErrIncorrectFormat) {
		t.Errorf("error %v does not wrap ErrIncorrectFormat", err)
	}
}

func TestNew_ExportEverything(t *testing.T) {
	cfg := config.Default()
	cfg.ExportEverything = true
	cfg.MaxTypeSize = 1 << 20

	for seed := uint64(0); seed < 20; seed++ {
		m := mustNew(t, cfg, seed)
		want := len(m.Funcs()) + len(m.Tables()) + len(m.Memories()) + len(m.Globals())
		if len(m.Exports()) != want {
			t.Errorf("seed %d: %d exports, want %d", seed, len(m.Exports()), want)
		}
	}
}

func TestNew_EmptyStream(t *testing.T) {
	m, err := New(config.Default(), oracle.New(nil))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wasm.ParseModuleValidate(m.Encode()); err != nil {
		t.Fatal(err)
	}
}

func TestNew_Deterministic(t *testing.T) {
	a := mustNew(t, config.Everything(), 42).Encode()
	b := mustNew(t, config.Everything(), 42).Encode()
	if string(a) != string(b) {
		t.Fatal("same seed produced different modules")
	}
}

func TestNew_BodyBuilderReceivesContext(t *testing.T) {
	var seen []uint32
	b := BodyBuilderFunc(func(_ *oracle.Unstructured, ctx *BodyContext) ([]wasm.Instruction, error) {
		if ctx.Module == nil || ctx.Func == nil {
			t.Fatal("incomplete body context")
		}
		seen = append(seen, ctx.Index)
		return []wasm.Instruction{wasm.Op(wasm.OpUnreachable)}, nil
	})
	cfg := config.Default()
	cfg.MinFuncs = 3
	m, err := New(cfg, streamFor(3, 4096), WithBodyBuilder(b))
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != m.NumDefinedFuncs() {
		t.Fatalf("builder called %d times for %d defined funcs", len(seen), m.NumDefinedFuncs())
	}
	first := uint32(len(m.Funcs()) - m.NumDefinedFuncs())
	for i, idx := range seen {
		if idx != first+uint32(i) {
			t.Errorf("call %d got index %d, want %d", i, idx, first+uint32(i))
		}
	}
}

func TestGlobalsForConstExpr(t *testing.T) {
	imported := wasm.GlobalType{Val: wasm.I32}
	tests := []struct {
		name         string
		gc           bool
		allowDefined bool
		want         []uint32
	}{
		{"imports_only", false, true, []uint32{0, 1}},
		{"gc_without_defined", true, false, []uint32{0, 1}},
		{"gc_with_defined", true, true, []uint32{0, 1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.GC = tt.gc
			m := empty(cfg)
			m.globals = []wasm.GlobalType{
				imported,
				imported,
				{Val: wasm.I32, Mutable: true},
				{Val: wasm.I32},
				{Val: wasm.I64},
			}
			m.definedGlobals = []definedGlobal{{index: 3}, {index: 4}}

			got := m.globalsForConstExpr(wasm.I32, tt.allowDefined)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}
