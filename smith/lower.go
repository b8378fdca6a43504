package smith

import (
	"github.com/wippyai/wasmgen/wasm"
)

// Lower converts the generated module into its binary-level form, walking
// the sections in phase order.
func (m *Module) Lower() *wasm.Module {
	out := &wasm.Module{
		KeepEmptyTypes:   m.shouldEncodeTypes,
		KeepEmptyImports: m.shouldEncodeImports,
	}

	for _, g := range m.recGroups {
		group := wasm.RecGroup{Types: make([]wasm.SubType, 0, g.len())}
		for i := g.start; i < g.end; i++ {
			group.Types = append(group.Types, m.types[i].SubType)
		}
		out.Types = append(out.Types, group)
	}

	for _, imp := range m.imports {
		out.Imports = append(out.Imports, wasm.Import{
			Module: imp.Module,
			Name:   imp.Field,
			Desc:   importDesc(&imp.Entity),
		})
	}

	for _, f := range m.funcs[len(m.funcs)-m.numDefinedFuncs:] {
		out.Funcs = append(out.Funcs, f.TypeIndex)
	}

	importedTables := len(m.tables) - len(m.definedTables)
	for i, init := range m.definedTables {
		out.Tables = append(out.Tables, wasm.Table{Type: m.tables[importedTables+i], Init: init})
	}

	out.Memories = append(out.Memories, m.memories[len(m.memories)-m.numDefinedMemories:]...)

	for _, t := range m.tags[len(m.tags)-m.numDefinedTags:] {
		out.Tags = append(out.Tags, wasm.TagType{TypeIdx: t.FuncTypeIndex})
	}

	for _, g := range m.definedGlobals {
		out.Globals = append(out.Globals, wasm.Global{Type: m.globals[g.index], Init: g.init})
	}

	for _, exp := range m.exports {
		out.Exports = append(out.Exports, wasm.Export{Name: exp.Name, Kind: exp.Kind, Idx: exp.Index})
	}

	if m.start != nil {
		start := *m.start
		out.Start = &start
	}

	for i := range m.elems {
		out.Elements = append(out.Elements, lowerElement(&m.elems[i]))
	}

	if m.config.BulkMemory && len(m.data) > 0 {
		n := index(len(m.data))
		out.DataCount = &n
	}

	for i := range m.code {
		c := &m.code[i]
		out.Code = append(out.Code, wasm.FuncBody{
			Locals: compressLocals(c.Locals),
			Body:   c.Body,
			Raw:    c.Raw,
		})
	}

	for _, d := range m.data {
		seg := wasm.DataSegment{Init: d.Init, Mode: wasm.DataPassive}
		if d.Kind == DataActive {
			seg.Mode = wasm.DataActive
			seg.MemIdx = d.Memory
			seg.Offset = d.Offset.expr()
		}
		out.Data = append(out.Data, seg)
	}
	return out
}

// Encode returns the module in binary format.
func (m *Module) Encode() []byte {
	return m.Lower().Encode()
}

func importDesc(e *EntityType) wasm.ImportDesc {
	d := wasm.ImportDesc{Kind: e.Kind}
	switch e.Kind {
	case wasm.KindFunc:
		d.Func = e.FuncIndex
	case wasm.KindTable:
		d.Table = e.Table
	case wasm.KindMemory:
		d.Memory = e.Memory
	case wasm.KindGlobal:
		d.Global = e.Global
	case wasm.KindTag:
		d.Tag = wasm.TagType{TypeIdx: e.Tag.FuncTypeIndex}
	}
	return d
}

func lowerElement(e *ElementSegment) wasm.Element {
	out := wasm.Element{
		Table:     e.Table,
		Type:      e.Type,
		UsesExprs: e.UsesExprs,
		Funcs:     e.Functions,
		Exprs:     e.Exprs,
	}
	switch e.Kind {
	case ElementPassive:
		out.Mode = wasm.ElemPassive
	case ElementDeclared:
		out.Mode = wasm.ElemDeclared
	case ElementActive:
		out.Mode = wasm.ElemActive
		out.Offset = e.Offset.expr()
	}
	return out
}

// compressLocals groups runs of equal types into local declarations.
func compressLocals(types []wasm.ValType) []wasm.Local {
	var out []wasm.Local
	for _, t := range types {
		if n := len(out); n > 0 && out[n-1].Type == t {
			out[n-1].Count++
			continue
		}
		out = append(out, wasm.Local{Type: t, Count: 1})
	}
	return out
}
