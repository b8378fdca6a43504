package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasmgen/wasm"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Width(12)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// maxListed caps the imports and exports listed in a summary.
const maxListed = 8

func countKinds(n int, kind func(i int) wasm.ExternKind) map[wasm.ExternKind]int {
	out := make(map[wasm.ExternKind]int)
	for i := 0; i < n; i++ {
		out[kind(i)]++
	}
	return out
}

// renderSummary describes a decoded module.
func renderSummary(m *wasm.Module, size int) string {
	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	numTypes, groups := 0, 0
	for _, g := range m.Types {
		numTypes += len(g.Types)
		if len(g.Types) != 1 {
			groups++
		}
	}
	imports := countKinds(len(m.Imports), func(i int) wasm.ExternKind { return m.Imports[i].Desc.Kind })

	row("size", fmt.Sprintf("%d bytes", size))
	row("types", fmt.Sprintf("%d (%d explicit rec groups)", numTypes, groups))
	row("imports", fmt.Sprintf("%d (func %d, table %d, memory %d, global %d, tag %d)",
		len(m.Imports), imports[wasm.KindFunc], imports[wasm.KindTable],
		imports[wasm.KindMemory], imports[wasm.KindGlobal], imports[wasm.KindTag]))
	row("funcs", fmt.Sprintf("%d defined", len(m.Funcs)))
	row("tables", fmt.Sprintf("%d defined", len(m.Tables)))
	row("memories", fmt.Sprintf("%d defined", len(m.Memories)))
	row("globals", fmt.Sprintf("%d defined", len(m.Globals)))
	row("tags", fmt.Sprintf("%d defined", len(m.Tags)))
	row("elements", fmt.Sprintf("%d segments", len(m.Elements)))
	row("data", fmt.Sprintf("%d segments", len(m.Data)))
	if m.Start != nil {
		row("start", fmt.Sprintf("func %d", *m.Start))
	}

	for i, imp := range m.Imports {
		if i == maxListed {
			b.WriteString(helpStyle.Render(fmt.Sprintf("  ... %d more imports", len(m.Imports)-maxListed)) + "\n")
			break
		}
		b.WriteString(fmt.Sprintf("  import %s %s\n", imp.Desc.Kind, nameStyle.Render(fmt.Sprintf("%q.%q", imp.Module, imp.Name))))
	}
	for i, exp := range m.Exports {
		if i == maxListed {
			b.WriteString(helpStyle.Render(fmt.Sprintf("  ... %d more exports", len(m.Exports)-maxListed)) + "\n")
			break
		}
		b.WriteString(fmt.Sprintf("  export %s %d as %s\n", exp.Kind, exp.Idx, nameStyle.Render(fmt.Sprintf("%q", exp.Name))))
	}
	return b.String()
}
