package wasm

import (
	"github.com/wippyai/wasmgen/wasm/internal/binary"
)

// Encode encodes the module to WebAssembly binary format.
func (m *Module) Encode() []byte {
	w := binary.NewWriter()

	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	if len(m.Types) > 0 || m.KeepEmptyTypes {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Types)))
		for i := range m.Types {
			writeRecGroup(sec, &m.Types[i])
		}
		writeSection(w, SectionType, sec)
	}

	if len(m.Imports) > 0 || m.KeepEmptyImports {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Imports)))
		for i := range m.Imports {
			imp := &m.Imports[i]
			sec.WriteName(imp.Module)
			sec.WriteName(imp.Name)
			sec.Byte(byte(imp.Desc.Kind))
			switch imp.Desc.Kind {
			case KindFunc:
				sec.WriteU32(imp.Desc.Func)
			case KindTable:
				writeTableType(sec, imp.Desc.Table)
			case KindMemory:
				writeLimits(sec, imp.Desc.Memory.Limits)
			case KindGlobal:
				writeGlobalType(sec, imp.Desc.Global)
			case KindTag:
				writeTagType(sec, imp.Desc.Tag)
			}
		}
		writeSection(w, SectionImport, sec)
	}

	if len(m.Funcs) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Funcs)))
		for _, typeIdx := range m.Funcs {
			sec.WriteU32(typeIdx)
		}
		writeSection(w, SectionFunction, sec)
	}

	if len(m.Tables) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Tables)))
		for i := range m.Tables {
			t := &m.Tables[i]
			if t.Init != nil {
				sec.Byte(0x40)
				sec.Byte(0x00)
				writeTableType(sec, t.Type)
				writeConstExpr(sec, t.Init)
			} else {
				writeTableType(sec, t.Type)
			}
		}
		writeSection(w, SectionTable, sec)
	}

	if len(m.Memories) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			writeLimits(sec, mem.Limits)
		}
		writeSection(w, SectionMemory, sec)
	}

	if len(m.Tags) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Tags)))
		for _, tag := range m.Tags {
			writeTagType(sec, tag)
		}
		writeSection(w, SectionTag, sec)
	}

	if len(m.Globals) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Globals)))
		for i := range m.Globals {
			writeGlobalType(sec, m.Globals[i].Type)
			writeConstExpr(sec, m.Globals[i].Init)
		}
		writeSection(w, SectionGlobal, sec)
	}

	if len(m.Exports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			sec.WriteName(exp.Name)
			sec.Byte(byte(exp.Kind))
			sec.WriteU32(exp.Idx)
		}
		writeSection(w, SectionExport, sec)
	}

	if m.Start != nil {
		sec := binary.NewWriter()
		sec.WriteU32(*m.Start)
		writeSection(w, SectionStart, sec)
	}

	if len(m.Elements) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Elements)))
		for i := range m.Elements {
			writeElement(sec, &m.Elements[i])
		}
		writeSection(w, SectionElement, sec)
	}

	if m.DataCount != nil {
		sec := binary.NewWriter()
		sec.WriteU32(*m.DataCount)
		writeSection(w, SectionDataCount, sec)
	}

	if len(m.Code) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Code)))
		for i := range m.Code {
			body := binary.NewWriter()
			writeFuncBody(body, &m.Code[i])
			sec.WriteSized(body)
		}
		writeSection(w, SectionCode, sec)
	}

	if len(m.Data) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Data)))
		for i := range m.Data {
			writeDataSegment(sec, &m.Data[i])
		}
		writeSection(w, SectionData, sec)
	}

	for _, cs := range m.CustomSections {
		sec := binary.NewWriter()
		sec.WriteName(cs.Name)
		sec.WriteBytes(cs.Data)
		writeSection(w, SectionCustom, sec)
	}

	return w.Bytes()
}

func writeSection(w *binary.Writer, id byte, sec *binary.Writer) {
	w.Byte(id)
	w.WriteSized(sec)
}

func writeRecGroup(w *binary.Writer, g *RecGroup) {
	if len(g.Types) != 1 {
		w.Byte(RecTypeByte)
		w.WriteU32(uint32(len(g.Types)))
	}
	for i := range g.Types {
		writeSubType(w, &g.Types[i])
	}
}

func writeSubType(w *binary.Writer, st *SubType) {
	if st.Supertype != nil || !st.Final {
		if st.Final {
			w.Byte(SubFinalByte)
		} else {
			w.Byte(SubTypeByte)
		}
		if st.Supertype != nil {
			w.WriteU32(1)
			w.WriteU32(*st.Supertype)
		} else {
			w.WriteU32(0)
		}
	}
	writeCompositeType(w, &st.Composite)
}

func writeCompositeType(w *binary.Writer, ct *CompositeType) {
	if ct.Shared {
		w.Byte(byteShared)
	}
	switch ct.Kind {
	case CompFunc:
		w.Byte(FuncTypeByte)
		writeValTypes(w, ct.Func.Params)
		writeValTypes(w, ct.Func.Results)
	case CompArray:
		w.Byte(ArrayTypeByte)
		writeFieldType(w, ct.Array.Field)
	case CompStruct:
		w.Byte(StructTypeByte)
		w.WriteU32(uint32(len(ct.Struct.Fields)))
		for _, f := range ct.Struct.Fields {
			writeFieldType(w, f)
		}
	}
}

func writeFieldType(w *binary.Writer, f FieldType) {
	switch f.Storage.Kind {
	case StorageI8:
		w.Byte(byteI8)
	case StorageI16:
		w.Byte(byteI16)
	default:
		writeValType(w, f.Storage.Val)
	}
	if f.Mutable {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		writeValType(w, t)
	}
}

func writeValType(w *binary.Writer, v ValType) {
	switch v.Kind {
	case ValI32:
		w.Byte(byteI32)
	case ValI64:
		w.Byte(byteI64)
	case ValF32:
		w.Byte(byteF32)
	case ValF64:
		w.Byte(byteF64)
	case ValV128:
		w.Byte(byteV128)
	case ValRef:
		writeRefType(w, v.Ref)
	}
}

var abstractBytes = [...]byte{
	HeapFunc:     byteHeapFunc,
	HeapExtern:   byteHeapExtern,
	HeapAny:      byteHeapAny,
	HeapNone:     byteHeapNone,
	HeapNoExtern: byteHeapNoExtern,
	HeapNoFunc:   byteHeapNoFunc,
	HeapEq:       byteHeapEq,
	HeapStruct:   byteHeapStruct,
	HeapArray:    byteHeapArray,
	HeapI31:      byteHeapI31,
	HeapExn:      byteHeapExn,
	HeapNoExn:    byteHeapNoExn,
	HeapCont:     byteHeapCont,
	HeapNoCont:   byteHeapNoCont,
}

func writeRefType(w *binary.Writer, r RefType) {
	if r.Nullable && !r.Heap.Concrete && !r.Heap.Shared {
		w.Byte(abstractBytes[r.Heap.Abstract])
		return
	}
	if r.Nullable {
		w.Byte(byteRefNull)
	} else {
		w.Byte(byteRef)
	}
	writeHeapType(w, r.Heap)
}

func writeHeapType(w *binary.Writer, h HeapType) {
	if h.Concrete {
		w.WriteS64(int64(h.Index))
		return
	}
	if h.Shared {
		w.Byte(byteShared)
	}
	w.Byte(abstractBytes[h.Abstract])
}

func writeLimits(w *binary.Writer, l Limits) {
	var flags byte
	if l.Max != nil {
		flags |= LimitsHasMax
	}
	if l.Shared {
		flags |= LimitsShared
	}
	if l.Is64 {
		flags |= LimitsIs64
	}
	if l.PageSizeLog2 != nil {
		flags |= LimitsPageSize
	}
	w.Byte(flags)
	w.WriteU64(l.Min)
	if l.Max != nil {
		w.WriteU64(*l.Max)
	}
	if l.PageSizeLog2 != nil {
		w.WriteU32(*l.PageSizeLog2)
	}
}

func writeTableType(w *binary.Writer, t TableType) {
	writeRefType(w, t.Elem)
	writeLimits(w, t.Limits)
}

func writeGlobalType(w *binary.Writer, g GlobalType) {
	writeValType(w, g.Val)
	var flags byte
	if g.Mutable {
		flags |= GlobalMutable
	}
	if g.Shared {
		flags |= GlobalShared
	}
	w.Byte(flags)
}

func writeTagType(w *binary.Writer, t TagType) {
	w.Byte(0x00) // exception attribute
	w.WriteU32(t.TypeIdx)
}

// writeElement picks the most compact of the eight segment encodings.
// Flag bit 0 marks passive/declared, bit 1 an explicit table or declared,
// bit 2 expression items.
func writeElement(w *binary.Writer, e *Element) {
	var flags byte
	if e.UsesExprs {
		flags |= 0x04
	}
	implicitTable := e.Mode == ElemActive && e.Table == nil && e.Type == FuncRef
	switch e.Mode {
	case ElemPassive:
		flags |= 0x01
	case ElemDeclared:
		flags |= 0x03
	case ElemActive:
		if !implicitTable {
			flags |= 0x02
		}
	}
	w.WriteU32(uint32(flags))

	if e.Mode == ElemActive {
		if !implicitTable {
			w.WriteU32(e.TableIndex())
		}
		writeConstExpr(w, e.Offset)
	}
	if !implicitTable {
		if e.UsesExprs {
			writeRefType(w, e.Type)
		} else {
			w.Byte(0x00) // elemkind funcref
		}
	}
	if e.UsesExprs {
		w.WriteU32(uint32(len(e.Exprs)))
		for _, expr := range e.Exprs {
			writeConstExpr(w, expr)
		}
	} else {
		w.WriteU32(uint32(len(e.Funcs)))
		for _, idx := range e.Funcs {
			w.WriteU32(idx)
		}
	}
}

func writeFuncBody(w *binary.Writer, body *FuncBody) {
	w.WriteU32(uint32(len(body.Locals)))
	for _, l := range body.Locals {
		w.WriteU32(l.Count)
		writeValType(w, l.Type)
	}
	if body.Raw != nil {
		w.WriteBytes(body.Raw)
		return
	}
	writeInstructions(w, body.Body)
	w.Byte(OpEnd)
}

func writeDataSegment(w *binary.Writer, d *DataSegment) {
	switch {
	case d.Mode == DataPassive:
		w.WriteU32(1)
	case d.MemIdx == 0:
		w.WriteU32(0)
		writeConstExpr(w, d.Offset)
	default:
		w.WriteU32(2)
		w.WriteU32(d.MemIdx)
		writeConstExpr(w, d.Offset)
	}
	w.WriteU32(uint32(len(d.Init)))
	w.WriteBytes(d.Init)
}
