package smith

import (
	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

// entityKind selects which kind of entity an import or export step produces.
type entityKind uint8

const (
	entityTag entityKind = iota
	entityFunc
	entityGlobal
	entityMemory
	entityTable
)

func (m *Module) tagFuncTypes() []uint32 {
	var out []uint32
	for _, idx := range m.funcTypes {
		if len(m.funcType(idx).Results) == 0 {
			out = append(out, idx)
		}
	}
	return out
}

func (m *Module) canAddTag() bool {
	return m.config.Exceptions && len(m.tagFuncTypes()) > 0 && len(m.tags) < m.config.MaxTags
}

func (m *Module) canAddFunc() bool {
	return len(m.funcTypes) > 0 && len(m.funcs) < m.config.MaxFuncs
}

func (m *Module) canAddGlobal() bool { return len(m.globals) < m.config.MaxGlobals }

func (m *Module) canAddMemory() bool { return len(m.memories) < m.config.MaxMemories }

func (m *Module) canAddTable() bool { return len(m.tables) < m.config.MaxTables }

func (m *Module) arbitraryTagType(u *oracle.Unstructured) (TagType, error) {
	idx, err := oracle.Choose(u, m.tagFuncTypes())
	if err != nil {
		return TagType{}, err
	}
	return TagType{FuncTypeIndex: idx, Func: m.funcType(idx)}, nil
}

func (m *Module) arbitraryTags(u *oracle.Unstructured) error {
	if !m.config.Exceptions || len(m.tagFuncTypes()) == 0 {
		return nil
	}
	return oracle.Loop(u, m.config.MinTags, m.config.MaxTags, func() (bool, error) {
		if !m.canAddTag() {
			return false, nil
		}
		t, err := m.arbitraryTagType(u)
		if err != nil {
			return false, err
		}
		m.tags = append(m.tags, t)
		m.numDefinedTags++
		return true, nil
	})
}

// arbitraryFuncs defines functions. Shared signatures are skipped because
// bodies are never generated in a shared context.
func (m *Module) arbitraryFuncs(u *oracle.Unstructured) error {
	if len(m.funcTypes) == 0 {
		return nil
	}
	return oracle.Loop(u, m.config.MinFuncs, m.config.MaxFuncs, func() (bool, error) {
		if !m.canAddFunc() {
			return false, nil
		}
		var unshared []uint32
		for _, idx := range m.funcTypes {
			if !m.isSharedType(idx) {
				unshared = append(unshared, idx)
			}
		}
		if len(unshared) == 0 {
			return false, nil
		}
		idx := unshared[oracle.IntInRange(u, 0, len(unshared)-1)]
		m.addFunc(idx)
		return true, nil
	})
}

func (m *Module) addFunc(typeIdx uint32) uint32 {
	idx := index(len(m.funcs))
	m.funcs = append(m.funcs, Func{TypeIndex: typeIdx, Type: m.funcType(typeIdx)})
	m.numDefinedFuncs++
	return idx
}

func (m *Module) arbitraryTables(u *oracle.Unstructured) error {
	return oracle.Loop(u, m.config.MinTables, m.config.MaxTables, func() (bool, error) {
		if !m.canAddTable() {
			return false, nil
		}
		ty, err := m.arbitraryTableType(u)
		if err != nil {
			return false, err
		}
		if _, err := m.addTableOfType(u, ty); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (m *Module) addTableOfType(u *oracle.Unstructured, ty wasm.TableType) (uint32, error) {
	init, err := m.arbitraryTableInit(u, ty.Elem)
	if err != nil {
		return 0, err
	}
	idx := index(len(m.tables))
	m.definedTables = append(m.definedTables, init)
	m.tables = append(m.tables, ty)
	return idx, nil
}

// arbitraryTableInit returns nil when the table is filled with null.
// Explicit initializers need GC.
func (m *Module) arbitraryTableInit(u *oracle.Unstructured, elem wasm.RefType) (wasm.ConstExpr, error) {
	if !m.config.GC {
		return nil, nil
	}
	if elem.Nullable && u.Bool() {
		return nil, nil
	}
	return m.arbitraryConstExpr(u, wasm.Ref(elem), false)
}

func (m *Module) arbitraryMemories(u *oracle.Unstructured) error {
	return oracle.Loop(u, m.config.MinMemories, m.config.MaxMemories, func() (bool, error) {
		if !m.canAddMemory() {
			return false, nil
		}
		m.addMemoryOfType(m.arbitraryMemType(u))
		return true, nil
	})
}

func (m *Module) addMemoryOfType(ty wasm.MemoryType) uint32 {
	idx := index(len(m.memories))
	m.numDefinedMemories++
	m.memories = append(m.memories, ty)
	return idx
}

func (m *Module) arbitraryGlobalType(u *oracle.Unstructured) (wasm.GlobalType, error) {
	vt, err := m.arbitraryValType(u)
	if err != nil {
		return wasm.GlobalType{}, err
	}
	var shared bool
	if vt.IsNumeric() {
		shared = m.arbitraryShared(u)
	} else {
		shared = m.isSharedRefType(vt.Ref)
	}
	return wasm.GlobalType{Val: vt, Mutable: u.Bool(), Shared: shared}, nil
}

func (m *Module) arbitraryGlobals(u *oracle.Unstructured) error {
	return oracle.Loop(u, m.config.MinGlobals, m.config.MaxGlobals, func() (bool, error) {
		if !m.canAddGlobal() {
			return false, nil
		}
		ty, err := m.arbitraryGlobalType(u)
		if err != nil {
			return false, err
		}
		if _, err := m.addGlobalOfType(u, ty); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (m *Module) addGlobalOfType(u *oracle.Unstructured, ty wasm.GlobalType) (uint32, error) {
	init, err := m.arbitraryConstExpr(u, ty.Val, true)
	if err != nil {
		return 0, err
	}
	idx := index(len(m.globals))
	m.definedGlobals = append(m.definedGlobals, definedGlobal{index: idx, init: init})
	m.globals = append(m.globals, ty)
	return idx, nil
}

// arbitraryStart picks a start function among the [] -> [] functions.
func (m *Module) arbitraryStart(u *oracle.Unstructured) error {
	if !m.config.AllowStartExport {
		return nil
	}
	var choices []uint32
	for i, f := range m.funcs {
		if len(f.Type.Params) == 0 && len(f.Type.Results) == 0 {
			choices = append(choices, index(i))
		}
	}
	if len(choices) == 0 || !u.Bool() {
		return nil
	}
	f, err := oracle.Choose(u, choices)
	if err != nil {
		return err
	}
	m.start = &f
	return nil
}
