package main

import (
	"strings"
	"testing"

	"github.com/wippyai/wasmgen"
	"github.com/wippyai/wasmgen/config"
	"github.com/wippyai/wasmgen/wasm"
)

func TestRenderSummary(t *testing.T) {
	bin, err := wasmgen.Generate(config.Default(), 11)
	if err != nil {
		t.Fatal(err)
	}
	m, err := wasm.ParseModule(bin)
	if err != nil {
		t.Fatal(err)
	}
	out := renderSummary(m, len(bin))
	for _, want := range []string{"size", "types", "imports", "funcs"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestExploreModel_SeedNavigation(t *testing.T) {
	m := newExploreModel(5)
	m.Update(generatedMsg{seed: 5})
	if m.pending {
		t.Fatal("pending after result")
	}
	m.regenerate()
	if !m.pending {
		t.Fatal("not pending after regenerate")
	}
	m.Update(generatedMsg{seed: 4})
	if !m.pending {
		t.Error("stale result accepted")
	}
}
