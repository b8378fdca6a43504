package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/wasmgen/config"
	"github.com/wippyai/wasmgen/wasm"
)

func TestProduce(t *testing.T) {
	cfg := config.Core2()
	cfg.DisallowTraps = true

	tests := []struct {
		name  string
		swarm bool
	}{
		{"fixed", false},
		{"swarm", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			m, err := Produce(context.Background(), Options{
				Dir:     dir,
				Preset:  "core2",
				Config:  cfg,
				Count:   16,
				Jobs:    4,
				Swarm:   tt.swarm,
				Compile: true,
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(m.Entries) != 16 {
				t.Fatalf("%d entries, want 16", len(m.Entries))
			}
			for i, e := range m.Entries {
				if e.Seed != uint64(i) {
					t.Errorf("entry %d has seed %d", i, e.Seed)
				}
				if e.Status == StatusRejected {
					t.Errorf("seed %d rejected by wazero: %s", e.Seed, e.Error)
				}
				if e.Status != StatusOK {
					continue
				}
				bin, err := os.ReadFile(filepath.Join(dir, e.File))
				if err != nil {
					t.Fatal(err)
				}
				if len(bin) != e.Size {
					t.Errorf("seed %d: file has %d bytes, manifest says %d", e.Seed, len(bin), e.Size)
				}
				if _, err := wasm.ParseModuleValidate(bin); err != nil {
					t.Errorf("seed %d: %v", e.Seed, err)
				}
				if !tt.swarm && !e.Compiled {
					t.Errorf("seed %d was not compiled", e.Seed)
				}
			}

			back, err := ReadManifest(dir)
			if err != nil {
				t.Fatal(err)
			}
			if len(back.Entries) != len(m.Entries) || back.Preset != "core2" || back.Swarm != tt.swarm {
				t.Errorf("manifest round trip mismatch: %+v", back)
			}
		})
	}
}

func TestProduce_NegativeCount(t *testing.T) {
	_, err := Produce(context.Background(), Options{Dir: t.TempDir(), Config: config.Default(), Count: -1})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestReadManifest_Missing(t *testing.T) {
	if _, err := ReadManifest(t.TempDir()); err == nil {
		t.Fatal("expected error")
	}
}

func TestEngineCompatible(t *testing.T) {
	core := config.Core2()
	core.DisallowTraps = true

	tests := []struct {
		name string
		cfg  config.Config
		want bool
	}{
		{"core2_no_traps", core, true},
		{"core2_traps", config.Core2(), false},
		{"default", config.Default(), false},
		{"everything", config.Everything(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EngineCompatible(tt.cfg); got != tt.want {
				t.Errorf("EngineCompatible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidator_CompileEmptyModuleName(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.RecGroup{{Types: []wasm.SubType{{
			Final:     true,
			Composite: wasm.CompositeType{Kind: wasm.CompFunc, Func: &wasm.FuncType{}},
		}}}},
		Imports: []wasm.Import{
			{Module: "", Name: "f", Desc: wasm.ImportDesc{Kind: wasm.KindFunc}},
			{Module: "", Name: "", Desc: wasm.ImportDesc{Kind: wasm.KindGlobal, Global: wasm.GlobalType{Val: wasm.I32}}},
		},
	}
	bin := m.Encode()

	ctx := context.Background()
	v := NewValidator(ctx)
	defer v.Close(ctx)
	if err := v.Validate(bin); err != nil {
		t.Fatalf("structurally invalid: %v", err)
	}
	if err := v.Compile(ctx, bin); err != nil {
		t.Fatalf("empty import module name rejected: %v", err)
	}
}
