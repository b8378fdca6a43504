package smith

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/wasmgen/config"
	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

// withFuncGroup returns a GC module holding one rec group of n final
// function types.
func withFuncGroup(maxTypes, n int) *Module {
	cfg := config.Default()
	cfg.GC = true
	cfg.MinTypes = 0
	cfg.MaxTypes = maxTypes
	m := empty(cfg)
	for i := 0; i < n; i++ {
		m.addType(SubType{
			SubType: wasm.SubType{
				Final:     true,
				Composite: wasm.CompositeType{Kind: wasm.CompFunc, Func: &wasm.FuncType{Params: []wasm.ValType{wasm.I32}}},
			},
			Depth: 1,
		})
	}
	m.recGroups = append(m.recGroups, span{0, n})
	return m
}

func TestArbitraryRecGroup_Clone(t *testing.T) {
	tests := []struct {
		name       string
		maxTypes   int
		wantTypes  int
		wantGroups int
	}{
		{"fits", 10, 4, 2},
		{"over_budget_adds_nothing", 3, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := withFuncGroup(tt.maxTypes, 2)
			// 0x00 selects a clone; the single group needs no choice byte.
			u := oracle.New([]byte{0x00, 0x05, 0x05, 0x05})
			if err := m.arbitraryRecGroup(u, false); err != nil {
				t.Fatal(err)
			}
			if len(m.types) != tt.wantTypes || len(m.recGroups) != tt.wantGroups {
				t.Fatalf("types %d groups %d, want %d and %d", len(m.types), len(m.recGroups), tt.wantTypes, tt.wantGroups)
			}
			if u.Len() != 3 {
				t.Errorf("clone consumed %d bytes, want 1", 4-u.Len())
			}
			if tt.wantGroups == 2 {
				g := m.recGroups[1]
				if g.start != 2 || g.end != 4 {
					t.Errorf("cloned group spans [%d, %d)", g.start, g.end)
				}
				for i := g.start; i < g.end; i++ {
					if m.types[i].Composite.Func != m.types[i-2].Composite.Func {
						t.Errorf("type %d is not a copy of type %d", i, i-2)
					}
				}
			}
		})
	}
}

func TestArbitraryTypes_ExhaustedSkippedClone(t *testing.T) {
	m := withFuncGroup(5, 4)
	m.config.MinTypes = 5
	err := m.arbitraryTypes(oracle.New(nil))
	if !stderrors.Is(err, oracle.ErrNotEnoughData) {
		t.Fatalf("err = %v, want ErrNotEnoughData", err)
	}
	if len(m.types) != 4 {
		t.Errorf("%d types, want 4", len(m.types))
	}
}
