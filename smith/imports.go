package smith

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/wasmgen/config"
	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

const maxImportName = 1000

type importName struct {
	module, field string
}

// remainingTypeSize is the unused part of the type-size budget.
func (m *Module) remainingTypeSize() uint32 {
	if m.typeSize >= m.config.MaxTypeSize {
		return 0
	}
	return m.config.MaxTypeSize - m.typeSize
}

func (m *Module) arbitraryImports(u *oracle.Unstructured) error {
	if m.config.MaxTypeSize < m.typeSize {
		return nil
	}
	seen := make(map[importName]struct{})
	choices := make([]entityKind, 0, 5)
	lo := max(0, m.config.MinImports-m.numImports)
	hi := max(0, m.config.MaxImports-m.numImports)

	return oracle.Loop(u, lo, hi, func() (bool, error) {
		choices = choices[:0]
		if m.canAddTag() {
			choices = append(choices, entityTag)
		}
		if m.canAddFunc() {
			choices = append(choices, entityFunc)
		}
		if m.canAddGlobal() {
			choices = append(choices, entityGlobal)
		}
		if m.canAddMemory() {
			choices = append(choices, entityMemory)
		}
		if m.canAddTable() {
			choices = append(choices, entityTable)
		}
		if len(choices) == 0 {
			return false, nil
		}
		kind, err := oracle.Choose(u, choices)
		if err != nil {
			return false, err
		}
		entity, err := m.arbitraryEntity(u, kind)
		if err != nil {
			return false, err
		}
		if entity.Size()+1 > m.remainingTypeSize() {
			return false, nil
		}
		m.typeSize += entity.Size() + 1

		name := importName{u.LimitedString(maxImportName), u.LimitedString(maxImportName)}
		if m.config.DuplicateImports == config.DuplicatesDisallowed {
			for {
				if _, dup := seen[name]; !dup {
					break
				}
				name.field += strconv.Itoa(len(seen))
			}
			seen[name] = struct{}{}
		}
		m.pushImport(Import{Module: name.module, Field: name.field, Entity: entity})
		return true, nil
	})
}

func (m *Module) arbitraryEntity(u *oracle.Unstructured, kind entityKind) (EntityType, error) {
	switch kind {
	case entityTag:
		t, err := m.arbitraryTagType(u)
		return EntityType{Kind: wasm.KindTag, Tag: t}, err
	case entityFunc:
		idx, err := oracle.Choose(u, m.funcTypes)
		if err != nil {
			return EntityType{}, err
		}
		return EntityType{Kind: wasm.KindFunc, FuncIndex: idx, Func: m.funcType(idx)}, nil
	case entityGlobal:
		g, err := m.arbitraryGlobalType(u)
		return EntityType{Kind: wasm.KindGlobal, Global: g}, err
	case entityMemory:
		return EntityType{Kind: wasm.KindMemory, Memory: m.arbitraryMemType(u)}, nil
	default:
		t, err := m.arbitraryTableType(u)
		return EntityType{Kind: wasm.KindTable, Table: t}, err
	}
}

// pushImport records imp and appends the imported entity to its index space.
func (m *Module) pushImport(imp Import) {
	m.pushEntity(&imp.Entity)
	m.imports = append(m.imports, imp)
	m.numImports++
}

// importsFromAvailable copies the template's type section unchanged, rec
// groups and supertypes included, and keeps a random subset of its imports.
// It runs before any other type exists, so template type indices stay valid.
func (m *Module) importsFromAvailable(u *oracle.Unstructured, template []byte) {
	tm := parseTemplate("available imports", template)
	if len(m.types) != 0 {
		panic("smith: available imports must be applied before any other type")
	}

	var types []SubType
	groups := make([]int, 0, len(tm.Types))
	for gi := range tm.Types {
		groups = append(groups, len(tm.Types[gi].Types))
		for _, st := range tm.Types[gi].Types {
			depth := uint32(1)
			if st.Supertype != nil {
				depth = types[*st.Supertype].Depth + 1
			}
			types = append(types, SubType{SubType: st, Depth: depth})
		}
	}
	sig := func(idx uint32) *wasm.FuncType {
		if int(idx) >= len(types) || types[idx].Composite.Kind != wasm.CompFunc {
			panic(fmt.Sprintf("smith: available imports template type %d is not a function type", idx))
		}
		return types[idx].Composite.Func
	}

	var kept []Import
	for i := range tm.Imports {
		if !u.Bool() {
			continue
		}
		imp := &tm.Imports[i]
		entity := EntityType{Kind: imp.Desc.Kind}
		switch imp.Desc.Kind {
		case wasm.KindFunc:
			ft := sig(imp.Desc.Func)
			if len(m.funcs) >= m.config.MaxFuncs || !m.portableFuncType(ft) {
				continue
			}
			entity.FuncIndex, entity.Func = imp.Desc.Func, ft
		case wasm.KindTag:
			ft := sig(imp.Desc.Tag.TypeIdx)
			if !m.config.Exceptions || len(m.tags) >= m.config.MaxTags || len(ft.Results) > 0 || !m.portableFuncType(ft) {
				continue
			}
			entity.Tag = TagType{FuncTypeIndex: imp.Desc.Tag.TypeIdx, Func: ft}
		case wasm.KindTable:
			t := imp.Desc.Table
			if !m.canAddTable() || !m.portableRefType(t.Elem) || !m.portableLimits(t.Limits) {
				continue
			}
			entity.Table = imp.Desc.Table
		case wasm.KindMemory:
			if !m.canAddMemory() || !m.portableLimits(imp.Desc.Memory.Limits) {
				continue
			}
			entity.Memory = imp.Desc.Memory
		case wasm.KindGlobal:
			g := imp.Desc.Global
			if !m.canAddGlobal() || !m.portableValType(g.Val) || (g.Shared && !m.config.SharedEverythingThreads) {
				continue
			}
			entity.Global = imp.Desc.Global
		}
		if entity.Size()+1 > m.remainingTypeSize() {
			continue
		}
		m.typeSize += entity.Size() + 1
		// Entities enter their index spaces now so the ceilings above see
		// them. Imports are recorded once the types exist.
		m.pushEntity(&entity)
		kept = append(kept, Import{Module: imp.Module, Field: imp.Name, Entity: entity})
	}

	next := 0
	for _, n := range groups {
		start := len(m.types)
		for _, st := range types[next : next+n] {
			m.addType(st)
		}
		next += n
		m.recGroups = append(m.recGroups, span{start, len(m.types)})
	}
	for _, imp := range kept {
		m.imports = append(m.imports, imp)
		m.numImports++
	}
	Logger().Info("imports taken from template",
		zap.Int("available", len(tm.Imports)),
		zap.Int("kept", len(kept)),
		zap.Int("types", len(types)))
}

func (m *Module) pushEntity(e *EntityType) {
	switch e.Kind {
	case wasm.KindFunc:
		m.funcs = append(m.funcs, Func{TypeIndex: e.FuncIndex, Type: e.Func})
	case wasm.KindTable:
		m.tables = append(m.tables, e.Table)
	case wasm.KindMemory:
		m.memories = append(m.memories, e.Memory)
	case wasm.KindGlobal:
		m.globals = append(m.globals, e.Global)
	case wasm.KindTag:
		m.tags = append(m.tags, e.Tag)
	}
}

// portableValType reports whether a template value type can be used under
// the current configuration.
func (m *Module) portableValType(vt wasm.ValType) bool {
	switch vt.Kind {
	case wasm.ValF32, wasm.ValF64:
		return m.config.AllowFloats
	case wasm.ValV128:
		return m.config.SIMD
	case wasm.ValRef:
		return m.portableRefType(vt.Ref)
	}
	return true
}

func (m *Module) portableRefType(rt wasm.RefType) bool {
	if !m.config.ReferenceTypes {
		return false
	}
	if rt.Heap.Concrete {
		return m.config.GC
	}
	if !rt.Nullable && !m.config.GC {
		return false
	}
	switch rt.Heap.Abstract {
	case wasm.HeapFunc, wasm.HeapExtern:
		return !rt.Heap.Shared || m.config.SharedEverythingThreads
	case wasm.HeapExn, wasm.HeapNoExn:
		return m.config.Exceptions
	case wasm.HeapCont, wasm.HeapNoCont:
		return false
	}
	return m.config.GC && (!rt.Heap.Shared || m.config.SharedEverythingThreads)
}

func (m *Module) portableLimits(l wasm.Limits) bool {
	switch {
	case l.Is64 && !m.config.Memory64:
		return false
	case l.Shared && !m.config.Threads && !m.config.SharedEverythingThreads:
		return false
	case l.PageSizeLog2 != nil && !m.config.CustomPageSizes:
		return false
	}
	return true
}

func (m *Module) portableFuncType(ft *wasm.FuncType) bool {
	if len(ft.Results) > 1 && !m.config.MultiValue {
		return false
	}
	for _, vt := range ft.Params {
		if !m.portableValType(vt) {
			return false
		}
	}
	for _, vt := range ft.Results {
		if !m.portableValType(vt) {
			return false
		}
	}
	return true
}
