package smith

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

// parseTemplate decodes and validates a template module. A malformed
// template is a configuration bug, so it panics.
func parseTemplate(what string, data []byte) *wasm.Module {
	tm, err := wasm.ParseModuleValidate(data)
	if err != nil {
		panic(fmt.Sprintf("smith: invalid %s template: %v", what, err))
	}
	return tm
}

// templateFuncTypes returns the type index of every function in tm's
// function index space.
func templateFuncTypes(tm *wasm.Module) []uint32 {
	out := make([]uint32, 0, len(tm.Funcs))
	for i := range tm.Imports {
		if tm.Imports[i].Desc.Kind == wasm.KindFunc {
			out = append(out, tm.Imports[i].Desc.Func)
		}
	}
	return append(out, tm.Funcs...)
}

// importsExportsFromModuleShape copies the template's types, imports and
// export surface. Exported entities are backed by fresh definitions.
func (m *Module) importsExportsFromModuleShape(u *oracle.Unstructured, template []byte) error {
	tm := parseTemplate("module shape", template)
	base := index(len(m.types))
	if base != 0 {
		panic("smith: module shape must be applied before any other type")
	}

	for gi := range tm.Types {
		start := len(m.types)
		for _, st := range tm.Types[gi].Types {
			depth := uint32(1)
			if st.Supertype != nil {
				depth = m.types[*st.Supertype].Depth + 1
			}
			m.addType(SubType{SubType: st, Depth: depth})
		}
		m.recGroups = append(m.recGroups, span{start, len(m.types)})
	}

	for i := range tm.Imports {
		imp := &tm.Imports[i]
		entity := EntityType{Kind: imp.Desc.Kind}
		switch imp.Desc.Kind {
		case wasm.KindFunc:
			entity.FuncIndex = imp.Desc.Func
			entity.Func = m.funcType(imp.Desc.Func)
		case wasm.KindTag:
			entity.Tag = TagType{FuncTypeIndex: imp.Desc.Tag.TypeIdx, Func: m.funcType(imp.Desc.Tag.TypeIdx)}
		case wasm.KindTable:
			entity.Table = imp.Desc.Table
		case wasm.KindMemory:
			entity.Memory = imp.Desc.Memory
		case wasm.KindGlobal:
			entity.Global = imp.Desc.Global
		}
		m.pushImport(Import{Module: imp.Module, Field: imp.Name, Entity: entity})
	}

	funcTypes := templateFuncTypes(tm)
	tables, memories, globals, tags := tm.TableTypes(), tm.MemoryTypes(), tm.GlobalTypes(), tm.TagTypes()

	for _, exp := range tm.Exports {
		var idx uint32
		var err error
		switch exp.Kind {
		case wasm.KindFunc:
			idx = m.addFunc(funcTypes[exp.Idx])
		case wasm.KindTag:
			ti := tags[exp.Idx].TypeIdx
			idx = index(len(m.tags))
			m.tags = append(m.tags, TagType{FuncTypeIndex: ti, Func: m.funcType(ti)})
			m.numDefinedTags++
		case wasm.KindTable:
			idx, err = m.addTableOfType(u, tables[exp.Idx])
		case wasm.KindMemory:
			idx = m.addMemoryOfType(memories[exp.Idx])
		case wasm.KindGlobal:
			idx, err = m.addGlobalOfType(u, globals[exp.Idx])
		}
		if err != nil {
			return err
		}
		m.exports = append(m.exports, Export{Name: exp.Name, Kind: exp.Kind, Index: idx})
		m.exportNames[exp.Name] = struct{}{}
	}

	Logger().Info("module shape applied",
		zap.Int("types", len(m.types)),
		zap.Int("imports", len(m.imports)),
		zap.Int("exports", len(m.exports)))
	return nil
}

// requiredExports defines one entity per template export, of exactly the
// exported type. Signatures get fresh final types so arbitrary subtyping
// cannot disturb them.
func (m *Module) requiredExports(u *oracle.Unstructured, template []byte) error {
	tm := parseTemplate("exports", template)

	funcTypes := templateFuncTypes(tm)
	tables, memories, globals, tags := tm.TableTypes(), tm.MemoryTypes(), tm.GlobalTypes(), tm.TagTypes()

	freshSig := func(templateIdx uint32) uint32 {
		st, ok := tm.TypeAt(templateIdx)
		if !ok || st.Composite.Kind != wasm.CompFunc {
			panic(fmt.Sprintf("smith: exports template type %d is not a function type", templateIdx))
		}
		ft := st.Composite.Func
		for _, vt := range append(append([]wasm.ValType(nil), ft.Params...), ft.Results...) {
			if vt.Kind == wasm.ValRef && vt.Ref.Heap.Concrete {
				panic("smith: exported function signatures must not reference concrete types")
			}
		}
		start := len(m.types)
		idx := m.addType(SubType{
			SubType: wasm.SubType{
				Final:     true,
				Composite: wasm.CompositeType{Kind: wasm.CompFunc, Func: ft, Shared: st.Composite.Shared},
			},
			Depth: 1,
		})
		m.recGroups = append(m.recGroups, span{start, len(m.types)})
		return idx
	}
	noConcrete := func(vt wasm.ValType) {
		if vt.Kind == wasm.ValRef && vt.Ref.Heap.Concrete {
			panic("smith: exported globals and tables must not reference concrete types")
		}
	}

	for _, exp := range tm.Exports {
		var idx uint32
		var err error
		switch exp.Kind {
		case wasm.KindFunc:
			idx = m.addFunc(freshSig(funcTypes[exp.Idx]))
		case wasm.KindTag:
			ti := freshSig(tags[exp.Idx].TypeIdx)
			idx = index(len(m.tags))
			m.tags = append(m.tags, TagType{FuncTypeIndex: ti, Func: m.funcType(ti)})
			m.numDefinedTags++
		case wasm.KindTable:
			noConcrete(wasm.Ref(tables[exp.Idx].Elem))
			idx, err = m.addTableOfType(u, tables[exp.Idx])
		case wasm.KindMemory:
			idx = m.addMemoryOfType(memories[exp.Idx])
		case wasm.KindGlobal:
			noConcrete(globals[exp.Idx].Val)
			idx, err = m.addGlobalOfType(u, globals[exp.Idx])
		}
		if err != nil {
			return err
		}
		m.exports = append(m.exports, Export{Name: exp.Name, Kind: exp.Kind, Index: idx})
		m.exportNames[exp.Name] = struct{}{}
	}
	return nil
}
