package smith

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/wippyai/wasmgen/wasm"
)

// SubType is a type definition plus the length of its supertype chain.
// Depth is 1 without a supertype, otherwise 1 + the supertype's depth.
type SubType struct {
	wasm.SubType
	Depth uint32
}

// span is a half-open range of type indices forming one rec group.
type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// TagType is an exception tag signature.
type TagType struct {
	Func          *wasm.FuncType
	FuncTypeIndex uint32
}

// Func is an entry of the function index space.
type Func struct {
	Type      *wasm.FuncType
	TypeIndex uint32
}

// EntityType describes an importable or exportable entity. Only the field
// selected by Kind is meaningful.
type EntityType struct {
	Func      *wasm.FuncType
	Tag       TagType
	Table     wasm.TableType
	Memory    wasm.MemoryType
	Global    wasm.GlobalType
	FuncIndex uint32
	Kind      wasm.ExternKind
}

// Size is the contribution of the entity to the module's type size.
func (e *EntityType) Size() uint32 {
	if e.Kind == wasm.KindFunc {
		return 1 + index(len(e.Func.Params)+len(e.Func.Results))
	}
	return 1
}

// Import is a named imported entity.
type Import struct {
	Module string
	Field  string
	Entity EntityType
}

// Export names an entry of one of the index spaces.
type Export struct {
	Name  string
	Index uint32
	Kind  wasm.ExternKind
}

// OffsetKind discriminates segment offsets.
type OffsetKind uint8

const (
	OffsetConst32 OffsetKind = iota
	OffsetConst64
	OffsetGlobal
)

// Offset is the start position of an active segment.
type Offset struct {
	Value  int64
	Global uint32
	Kind   OffsetKind
}

func (o Offset) expr() wasm.ConstExpr {
	switch o.Kind {
	case OffsetConst32:
		return wasm.ConstExpr{wasm.I32Const(int32(o.Value))}
	case OffsetConst64:
		return wasm.ConstExpr{wasm.I64Const(o.Value)}
	}
	return wasm.ConstExpr{wasm.GlobalGet(o.Global)}
}

func (o Offset) String() string {
	switch o.Kind {
	case OffsetConst32:
		return fmt.Sprintf("i32.const %d", int32(o.Value))
	case OffsetConst64:
		return fmt.Sprintf("i64.const %d", o.Value)
	}
	return fmt.Sprintf("global.get %d", o.Global)
}

// ElementKind selects how an element segment is applied.
type ElementKind uint8

const (
	ElementPassive ElementKind = iota
	ElementDeclared
	ElementActive
)

// ElementSegment is a generated element segment. Active segments with a nil
// Table target table 0 through the legacy encoding.
type ElementSegment struct {
	Table     *uint32
	Functions []uint32
	Exprs     []wasm.ConstExpr
	Offset    Offset
	Type      wasm.RefType
	Kind      ElementKind
	UsesExprs bool
}

// DataKind selects how a data segment is applied.
type DataKind uint8

const (
	DataPassive DataKind = iota
	DataActive
)

// DataSegment is a generated data segment.
type DataSegment struct {
	Init   []byte
	Offset Offset
	Memory uint32
	Kind   DataKind
}

// Code is a defined function body. Raw, when set, replaces Body with
// uninterpreted bytes.
type Code struct {
	Locals []wasm.ValType
	Body   []wasm.Instruction
	Raw    []byte
}

type definedGlobal struct {
	init  wasm.ConstExpr
	index uint32
}

// index converts a slice length or position into a wasm index.
func index(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("index %d overflows uint32: %w", n, err))
	}
	return v
}
