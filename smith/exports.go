package smith

import (
	"fmt"

	"github.com/wippyai/wasmgen/errors"
	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

const maxExportName = 1000

// ErrExportBudget reports that committing an export pushed the type size
// past Config.MaxTypeSize. Returned errors also match oracle.ErrIncorrectFormat.
var ErrExportBudget = errors.Sentinel(errors.PhaseGenerate, errors.KindBudgetOverflow, "export exceeds type size budget")

type exportCandidate struct {
	kind wasm.ExternKind
	idx  uint32
}

// typeOf describes entry idx of the index space for kind.
func (m *Module) typeOf(kind wasm.ExternKind, idx uint32) EntityType {
	switch kind {
	case wasm.KindFunc:
		f := m.funcs[idx]
		return EntityType{Kind: kind, FuncIndex: f.TypeIndex, Func: f.Type}
	case wasm.KindTable:
		return EntityType{Kind: kind, Table: m.tables[idx]}
	case wasm.KindMemory:
		return EntityType{Kind: kind, Memory: m.memories[idx]}
	case wasm.KindGlobal:
		return EntityType{Kind: kind, Global: m.globals[idx]}
	case wasm.KindTag:
		return EntityType{Kind: kind, Tag: m.tags[idx]}
	}
	panic(fmt.Sprintf("smith: unknown extern kind %d", kind))
}

func (m *Module) arbitraryExports(u *oracle.Unstructured) error {
	if m.config.MaxTypeSize < m.typeSize && !m.config.ExportEverything {
		return nil
	}

	choices := [][]exportCandidate{
		m.exportCandidates(wasm.KindFunc, len(m.funcs)),
		m.exportCandidates(wasm.KindTable, len(m.tables)),
		m.exportCandidates(wasm.KindMemory, len(m.memories)),
		m.exportCandidates(wasm.KindGlobal, len(m.globals)),
	}

	if m.config.ExportEverything {
		for _, list := range choices {
			for _, c := range list {
				name := u.UniqueString(maxExportName, m.exportNames)
				if err := m.addArbitraryExport(name, c.kind, c.idx); err != nil {
					return err
				}
			}
		}
		return nil
	}

	return oracle.Loop(u, m.config.MinExports, m.config.MaxExports, func() (bool, error) {
		// Drop candidates that no longer fit the budget, then kinds with
		// nothing left.
		remaining := m.remainingTypeSize()
		kept := choices[:0]
		for _, list := range choices {
			fit := list[:0]
			for _, c := range list {
				if t := m.typeOf(c.kind, c.idx); t.Size()+1 < remaining {
					fit = append(fit, c)
				}
			}
			if len(fit) > 0 {
				kept = append(kept, fit)
			}
		}
		choices = kept
		if len(choices) == 0 {
			return false, nil
		}

		name := u.UniqueString(maxExportName, m.exportNames)
		list, err := oracle.Choose(u, choices)
		if err != nil {
			return false, err
		}
		c, err := oracle.Choose(u, list)
		if err != nil {
			return false, err
		}
		if err := m.addArbitraryExport(name, c.kind, c.idx); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (m *Module) exportCandidates(kind wasm.ExternKind, n int) []exportCandidate {
	out := make([]exportCandidate, n)
	for i := range out {
		out[i] = exportCandidate{kind: kind, idx: index(i)}
	}
	return out
}

// addArbitraryExport charges the export to the budget before checking it.
func (m *Module) addArbitraryExport(name string, kind wasm.ExternKind, idx uint32) error {
	t := m.typeOf(kind, idx)
	m.typeSize += 1 + t.Size()
	if m.typeSize > m.config.MaxTypeSize {
		return errors.Wrap(errors.PhaseGenerate, errors.KindBudgetOverflow, oracle.ErrIncorrectFormat,
			fmt.Sprintf("%s export %q brings type size to %d of %d", kind, name, m.typeSize, m.config.MaxTypeSize))
	}
	m.exports = append(m.exports, Export{Name: name, Kind: kind, Index: idx})
	return nil
}
