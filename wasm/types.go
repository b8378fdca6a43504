package wasm

import (
	"fmt"
	"strconv"
	"strings"
)

// Module is the binary-level representation of a WebAssembly module.
// Index spaces are flat: imported entities come first, in import order.
type Module struct {
	Types    []RecGroup
	Imports  []Import
	Funcs    []uint32 // type indices of defined functions
	Tables   []Table
	Memories []MemoryType
	Tags     []TagType
	Globals  []Global
	Exports  []Export
	Start    *uint32
	Elements []Element
	Code     []FuncBody
	Data     []DataSegment

	// DataCount holds the count from the DataCount section (ID 12).
	DataCount *uint32

	CustomSections []CustomSection

	// KeepEmptyTypes and KeepEmptyImports emit the section even when it has no entries.
	KeepEmptyTypes   bool
	KeepEmptyImports bool
}

// ValKind discriminates value types. The order is the canonical dedup order.
type ValKind uint8

const (
	ValI32 ValKind = iota
	ValI64
	ValF32
	ValF64
	ValV128
	ValRef
)

// ValType is a value type. Ref is only meaningful when Kind is ValRef.
// ValType is comparable, equality is structural.
type ValType struct {
	Ref  RefType
	Kind ValKind
}

// AbstractHeap names one of the abstract heap types.
type AbstractHeap uint8

const (
	HeapFunc AbstractHeap = iota
	HeapExtern
	HeapAny
	HeapNone
	HeapNoExtern
	HeapNoFunc
	HeapEq
	HeapStruct
	HeapArray
	HeapI31
	HeapExn
	HeapNoExn
	HeapCont
	HeapNoCont
)

// HeapType is either an abstract heap type (with a shared bit) or a
// concrete index into the type space.
type HeapType struct {
	Index    uint32
	Abstract AbstractHeap
	Concrete bool
	Shared   bool
}

// RefType is a reference type.
type RefType struct {
	Heap     HeapType
	Nullable bool
}

// Common value types.
var (
	I32  = ValType{Kind: ValI32}
	I64  = ValType{Kind: ValI64}
	F32  = ValType{Kind: ValF32}
	F64  = ValType{Kind: ValF64}
	V128 = ValType{Kind: ValV128}
)

// Common reference types.
var (
	FuncRef   = RefType{Nullable: true, Heap: HeapType{Abstract: HeapFunc}}
	ExternRef = RefType{Nullable: true, Heap: HeapType{Abstract: HeapExtern}}
)

// Abstract returns an abstract heap type.
func Abstract(shared bool, a AbstractHeap) HeapType {
	return HeapType{Abstract: a, Shared: shared}
}

// Concrete returns a heap type referring to type index idx.
func Concrete(idx uint32) HeapType {
	return HeapType{Concrete: true, Index: idx}
}

// Ref wraps a reference type into a value type.
func Ref(rt RefType) ValType {
	return ValType{Kind: ValRef, Ref: rt}
}

// IsNumeric reports whether v is a number or vector type.
func (v ValType) IsNumeric() bool {
	return v.Kind != ValRef
}

// IsDefaultable reports whether locals of this type can be zero-initialized.
func (v ValType) IsDefaultable() bool {
	return v.Kind != ValRef || v.Ref.Nullable
}

func (v ValType) String() string {
	switch v.Kind {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValRef:
		return v.Ref.String()
	}
	return "unknown"
}

var abstractNames = [...]string{
	HeapFunc:     "func",
	HeapExtern:   "extern",
	HeapAny:      "any",
	HeapNone:     "none",
	HeapNoExtern: "noextern",
	HeapNoFunc:   "nofunc",
	HeapEq:       "eq",
	HeapStruct:   "struct",
	HeapArray:    "array",
	HeapI31:      "i31",
	HeapExn:      "exn",
	HeapNoExn:    "noexn",
	HeapCont:     "cont",
	HeapNoCont:   "nocont",
}

func (a AbstractHeap) String() string {
	if int(a) < len(abstractNames) {
		return abstractNames[a]
	}
	return "unknown"
}

func (h HeapType) String() string {
	if h.Concrete {
		return strconv.FormatUint(uint64(h.Index), 10)
	}
	if h.Shared {
		return "(shared " + h.Abstract.String() + ")"
	}
	return h.Abstract.String()
}

func (r RefType) String() string {
	if r.Nullable && !r.Heap.Concrete && !r.Heap.Shared {
		switch r.Heap.Abstract {
		case HeapNone:
			return "nullref"
		case HeapNoExtern:
			return "nullexternref"
		case HeapNoFunc:
			return "nullfuncref"
		case HeapNoExn:
			return "nullexnref"
		default:
			return r.Heap.Abstract.String() + "ref"
		}
	}
	if r.Nullable {
		return "(ref null " + r.Heap.String() + ")"
	}
	return "(ref " + r.Heap.String() + ")"
}

// CompositeKind discriminates composite types.
type CompositeKind uint8

const (
	CompFunc CompositeKind = iota
	CompArray
	CompStruct
)

func (k CompositeKind) String() string {
	switch k {
	case CompFunc:
		return "func"
	case CompArray:
		return "array"
	case CompStruct:
		return "struct"
	}
	return "unknown"
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// StorageKind discriminates field storage types.
type StorageKind uint8

const (
	StorageVal StorageKind = iota
	StorageI8
	StorageI16
)

// StorageType is a packed integer or a full value type.
type StorageType struct {
	Val  ValType
	Kind StorageKind
}

// Unpacked returns the value type a storage type reads as.
func (s StorageType) Unpacked() ValType {
	if s.Kind == StorageVal {
		return s.Val
	}
	return I32
}

func (s StorageType) String() string {
	switch s.Kind {
	case StorageI8:
		return "i8"
	case StorageI16:
		return "i16"
	}
	return s.Val.String()
}

// FieldType is a struct field or array element.
type FieldType struct {
	Storage StorageType
	Mutable bool
}

// ArrayType has a single element field.
type ArrayType struct {
	Field FieldType
}

// StructType is an ordered list of fields.
type StructType struct {
	Fields []FieldType
}

// CompositeType is a function, array or struct type, possibly shared.
type CompositeType struct {
	Func   *FuncType
	Array  *ArrayType
	Struct *StructType
	Kind   CompositeKind
	Shared bool
}

// SubType is a composite type with finality and an optional declared supertype.
type SubType struct {
	Supertype *uint32
	Composite CompositeType
	Final     bool
}

// RecGroup is a recursion group. Types inside a group may reference each other.
type RecGroup struct {
	Types []SubType
}

// Limits describe table and memory bounds. Memories may use custom page sizes.
type Limits struct {
	Max          *uint64
	PageSizeLog2 *uint32
	Min          uint64
	Is64         bool
	Shared       bool
}

// TableType is a table's element type plus limits.
type TableType struct {
	Elem   RefType
	Limits Limits
}

// Table is a defined table with an optional initialization expression.
type Table struct {
	Init ConstExpr // nil when the table has no explicit initializer
	Type TableType
}

// MemoryType describes a linear memory.
type MemoryType struct {
	Limits Limits
}

// PageSize returns the page size in bytes.
func (m MemoryType) PageSize() uint64 {
	if m.Limits.PageSizeLog2 != nil {
		return 1 << *m.Limits.PageSizeLog2
	}
	return 1 << DefaultPageSizeLog2
}

// GlobalType describes a global variable.
type GlobalType struct {
	Val     ValType
	Mutable bool
	Shared  bool
}

// Global is a defined global with its initializer.
type Global struct {
	Init ConstExpr
	Type GlobalType
}

// TagType describes an exception tag by its function type index.
type TagType struct {
	TypeIdx uint32
}

// ImportDesc describes the imported entity. Only the field for Kind is used.
type ImportDesc struct {
	Table  TableType
	Memory MemoryType
	Global GlobalType
	Tag    TagType
	Func   uint32 // type index
	Kind   ExternKind
}

// Import is a single entry of the import section.
type Import struct {
	Module string
	Name   string
	Desc   ImportDesc
}

// Export is a single entry of the export section.
type Export struct {
	Name string
	Idx  uint32
	Kind ExternKind
}

// ElementMode selects how an element segment is applied.
type ElementMode uint8

const (
	ElemPassive ElementMode = iota
	ElemActive
	ElemDeclared
)

// Element is an element segment. Active segments with a nil Table use the
// legacy encoding that implies table 0.
type Element struct {
	Table     *uint32
	Offset    ConstExpr
	Funcs     []uint32
	Exprs     []ConstExpr
	Type      RefType
	Mode      ElementMode
	UsesExprs bool
}

// Len returns the number of items in the segment.
func (e *Element) Len() int {
	if e.UsesExprs {
		return len(e.Exprs)
	}
	return len(e.Funcs)
}

// TableIndex returns the table an active segment targets.
func (e *Element) TableIndex() uint32 {
	if e.Table == nil {
		return 0
	}
	return *e.Table
}

// DataMode selects how a data segment is applied.
type DataMode uint8

const (
	DataPassive DataMode = iota
	DataActive
)

// DataSegment is a data segment.
type DataSegment struct {
	Offset ConstExpr
	Init   []byte
	MemIdx uint32
	Mode   DataMode
}

// Local declares Count locals of type Type.
type Local struct {
	Type  ValType
	Count uint32
}

// FuncBody is a function body. Body excludes the final end. When Raw is set
// it replaces Body and the end, and is emitted verbatim after the locals.
type FuncBody struct {
	Locals []Local
	Body   []Instruction
	Raw    []byte
}

// CustomSection is an uninterpreted named section.
type CustomSection struct {
	Name string
	Data []byte
}

// NumImported returns the number of imports of the given kind.
func (m *Module) NumImported(kind ExternKind) int {
	n := 0
	for i := range m.Imports {
		if m.Imports[i].Desc.Kind == kind {
			n++
		}
	}
	return n
}

// NumTypes returns the size of the flat type index space.
func (m *Module) NumTypes() int {
	n := 0
	for i := range m.Types {
		n += len(m.Types[i].Types)
	}
	return n
}

// TypeAt returns the subtype at flat index idx.
func (m *Module) TypeAt(idx uint32) (*SubType, bool) {
	for i := range m.Types {
		g := m.Types[i].Types
		if int(idx) < len(g) {
			return &g[idx], true
		}
		idx -= uint32(len(g))
	}
	return nil, false
}

// FuncTypeAt returns the function type at type index idx, or nil.
func (m *Module) FuncTypeAt(idx uint32) *FuncType {
	st, ok := m.TypeAt(idx)
	if !ok || st.Composite.Kind != CompFunc {
		return nil
	}
	return st.Composite.Func
}

// FuncTypeIndex returns the type index of function funcIdx.
func (m *Module) FuncTypeIndex(funcIdx uint32) (uint32, bool) {
	for i := range m.Imports {
		if m.Imports[i].Desc.Kind != KindFunc {
			continue
		}
		if funcIdx == 0 {
			return m.Imports[i].Desc.Func, true
		}
		funcIdx--
	}
	if int(funcIdx) >= len(m.Funcs) {
		return 0, false
	}
	return m.Funcs[funcIdx], true
}

// GlobalTypes returns the global index space, imports first.
func (m *Module) GlobalTypes() []GlobalType {
	out := make([]GlobalType, 0, len(m.Globals))
	for i := range m.Imports {
		if m.Imports[i].Desc.Kind == KindGlobal {
			out = append(out, m.Imports[i].Desc.Global)
		}
	}
	for i := range m.Globals {
		out = append(out, m.Globals[i].Type)
	}
	return out
}

// TableTypes returns the table index space, imports first.
func (m *Module) TableTypes() []TableType {
	out := make([]TableType, 0, len(m.Tables))
	for i := range m.Imports {
		if m.Imports[i].Desc.Kind == KindTable {
			out = append(out, m.Imports[i].Desc.Table)
		}
	}
	for i := range m.Tables {
		out = append(out, m.Tables[i].Type)
	}
	return out
}

// MemoryTypes returns the memory index space, imports first.
func (m *Module) MemoryTypes() []MemoryType {
	out := make([]MemoryType, 0, len(m.Memories))
	for i := range m.Imports {
		if m.Imports[i].Desc.Kind == KindMemory {
			out = append(out, m.Imports[i].Desc.Memory)
		}
	}
	return append(out, m.Memories...)
}

// TagTypes returns the tag index space, imports first.
func (m *Module) TagTypes() []TagType {
	out := make([]TagType, 0, len(m.Tags))
	for i := range m.Imports {
		if m.Imports[i].Desc.Kind == KindTag {
			out = append(out, m.Imports[i].Desc.Tag)
		}
	}
	return append(out, m.Tags...)
}

func (f *FuncType) String() string {
	var b strings.Builder
	b.WriteString("(func")
	if len(f.Params) > 0 {
		b.WriteString(" (param")
		for _, p := range f.Params {
			b.WriteByte(' ')
			b.WriteString(p.String())
		}
		b.WriteByte(')')
	}
	if len(f.Results) > 0 {
		b.WriteString(" (result")
		for _, r := range f.Results {
			b.WriteByte(' ')
			b.WriteString(r.String())
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
	return b.String()
}

func (f FieldType) String() string {
	if f.Mutable {
		return "(mut " + f.Storage.String() + ")"
	}
	return f.Storage.String()
}

func (c *CompositeType) String() string {
	var body string
	switch c.Kind {
	case CompFunc:
		body = c.Func.String()
	case CompArray:
		body = "(array " + c.Array.Field.String() + ")"
	case CompStruct:
		parts := make([]string, len(c.Struct.Fields))
		for i, f := range c.Struct.Fields {
			parts[i] = "(field " + f.String() + ")"
		}
		body = "(struct"
		if len(parts) > 0 {
			body += " " + strings.Join(parts, " ")
		}
		body += ")"
	}
	if c.Shared {
		return "(shared " + body + ")"
	}
	return body
}

func (s *SubType) String() string {
	if s.Final && s.Supertype == nil {
		return s.Composite.String()
	}
	var b strings.Builder
	b.WriteString("(sub ")
	if s.Final {
		b.WriteString("final ")
	}
	if s.Supertype != nil {
		fmt.Fprintf(&b, "%d ", *s.Supertype)
	}
	b.WriteString(s.Composite.String())
	b.WriteByte(')')
	return b.String()
}
