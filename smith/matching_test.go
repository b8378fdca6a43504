package smith

import (
	"testing"

	"github.com/wippyai/wasmgen/config"
	"github.com/wippyai/wasmgen/wasm"
)

func TestMatchingTypesAreSubtypes(t *testing.T) {
	for seed := uint64(0); seed < 40; seed++ {
		m := mustNew(t, config.Everything(), seed)
		u := streamFor(seed+1000, 1<<14)
		for i := 0; i < 200; i++ {
			rt, err := m.arbitraryRefType(u)
			if err != nil {
				t.Fatal(err)
			}
			ty := wasm.Ref(rt)

			sub, err := m.arbitraryMatchingValType(u, ty)
			if err != nil {
				t.Fatal(err)
			}
			if !m.IsSubType(sub, ty) {
				t.Fatalf("seed %d: matching %s is not a subtype of %s", seed, sub, ty)
			}

			super, err := m.arbitrarySuperTypeOfValType(u, ty)
			if err != nil {
				t.Fatal(err)
			}
			if !m.IsSubType(ty, super) {
				t.Fatalf("seed %d: %s is not a subtype of its supertype %s", seed, ty, super)
			}
		}
	}
}

func TestMatchingFuncTypeIsSubtype(t *testing.T) {
	for seed := uint64(0); seed < 40; seed++ {
		m := mustNew(t, config.Everything(), seed)
		u := streamFor(seed+2000, 1<<14)
		for _, idx := range m.FuncTypes() {
			ft := m.funcType(idx)
			sub, err := m.arbitraryMatchingFuncType(u, ft)
			if err != nil {
				t.Fatal(err)
			}
			for i, p := range sub.Params {
				if !m.IsSubType(ft.Params[i], p) {
					t.Fatalf("seed %d: param %d narrowed from %s to %s", seed, i, ft.Params[i], p)
				}
			}
			for i, r := range sub.Results {
				if !m.IsSubType(r, ft.Results[i]) {
					t.Fatalf("seed %d: result %d widened from %s to %s", seed, i, ft.Results[i], r)
				}
			}
		}
	}
}

func TestMatchingWithoutGCIsIdentity(t *testing.T) {
	m := mustNew(t, config.Default(), 5)
	u := streamFor(6, 256)
	for _, vt := range m.ValTypes() {
		got, err := m.arbitraryMatchingValType(u, vt)
		if err != nil {
			t.Fatal(err)
		}
		if got != vt {
			t.Errorf("matching %s = %s without GC", vt, got)
		}
	}
}

func TestConfiguredValTypes(t *testing.T) {
	noFloats := config.Default()
	noFloats.AllowFloats = false
	noFloats.SIMD = false
	noFloats.ReferenceTypes = false

	tests := []struct {
		name string
		cfg  config.Config
		want int
	}{
		{"integers_only", noFloats, 2},
		{"default", config.Default(), 7},
		{"gc_shared", config.Everything(), 5 + 2*len(abstractRefHeaps)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := configuredValTypes(&tt.cfg)
			if len(got) != tt.want {
				t.Fatalf("got %d types, want %d: %v", len(got), tt.want, got)
			}
			for _, vt := range got {
				if !vt.IsDefaultable() {
					t.Errorf("%s is not defaultable", vt)
				}
			}
		})
	}
}
