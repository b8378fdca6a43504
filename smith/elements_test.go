package smith

import (
	"bytes"
	"testing"

	"github.com/wippyai/wasmgen/config"
	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

func TestArbitraryElems_EmptyTableBias(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want int
	}{
		// 0xff % 11 != 0: the empty table is skipped and nothing else is eligible.
		{"skipped", bytes.Repeat([]byte{0xff}, 16), 0},
		{"targeted", []byte{0x00}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.BulkMemory = false
			cfg.MinElementSegments = 1
			m := empty(cfg)
			m.tables = []wasm.TableType{{Elem: wasm.FuncRef}}
			m.definedTables = []wasm.ConstExpr{nil}

			if err := m.arbitraryElems(oracle.New(tt.data)); err != nil {
				t.Fatal(err)
			}
			if len(m.elems) != tt.want {
				t.Fatalf("%d segments, want %d", len(m.elems), tt.want)
			}
			for _, e := range m.elems {
				if e.Kind != ElementActive || e.Table != nil {
					t.Errorf("segment %+v is not a legacy active segment", e)
				}
			}
		})
	}
}

func TestArbitraryElems_DisallowTrapsStaysInBounds(t *testing.T) {
	cfg := config.Default()
	cfg.DisallowTraps = true
	cfg.MinTables = 1
	cfg.MinElementSegments = 1
	for seed := uint64(0); seed < 100; seed++ {
		m := mustNew(t, cfg, seed)
		for i, e := range m.Elements() {
			if e.Kind != ElementActive {
				continue
			}
			ti := uint32(0)
			if e.Table != nil {
				ti = *e.Table
			}
			n := len(e.Functions)
			if e.UsesExprs {
				n = len(e.Exprs)
			}
			if e.Offset.Kind == OffsetGlobal {
				t.Fatalf("seed %d: segment %d uses a global offset", seed, i)
			}
			if end := offsetValue(e.Offset) + uint64(n); end > m.Tables()[ti].Limits.Min {
				t.Fatalf("seed %d: segment %d ends at %d past table size %d", seed, i, end, m.Tables()[ti].Limits.Min)
			}
		}
	}
}

func TestArbitraryData_DisallowTrapsStaysInBounds(t *testing.T) {
	cfg := config.Default()
	cfg.DisallowTraps = true
	cfg.MinMemories = 1
	cfg.MinDataSegments = 1
	cfg.MaxImports = 0
	for seed := uint64(0); seed < 100; seed++ {
		m := mustNew(t, cfg, seed)
		for i, d := range m.Data() {
			if d.Kind != DataActive {
				continue
			}
			mem := m.Memories()[d.Memory]
			size := mem.Limits.Min * uint64(mem.PageSize())
			if d.Offset.Kind == OffsetGlobal {
				t.Fatalf("seed %d: data %d uses a global offset", seed, i)
			}
			if end := offsetValue(d.Offset) + uint64(len(d.Init)); end > size {
				t.Fatalf("seed %d: data %d ends at %d past memory size %d", seed, i, end, size)
			}
		}
	}
}

func offsetValue(o Offset) uint64 {
	if o.Kind == OffsetConst32 {
		return uint64(uint32(o.Value))
	}
	return uint64(o.Value)
}
