package wasm

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// Section IDs define the binary identifiers for each module section.
const (
	SectionCustom    byte = 0
	SectionType      byte = 1
	SectionImport    byte = 2
	SectionFunction  byte = 3
	SectionTable     byte = 4
	SectionMemory    byte = 5
	SectionGlobal    byte = 6
	SectionExport    byte = 7
	SectionStart     byte = 8
	SectionElement   byte = 9
	SectionCode      byte = 10
	SectionData      byte = 11
	SectionDataCount byte = 12
	SectionTag       byte = 13
)

// sectionOrder gives the position a non-custom section must respect.
// DataCount sits between Element and Code, Tag between Memory and Global.
var sectionOrder = map[byte]int{
	SectionType:      1,
	SectionImport:    2,
	SectionFunction:  3,
	SectionTable:     4,
	SectionMemory:    5,
	SectionTag:       6,
	SectionGlobal:    7,
	SectionExport:    8,
	SectionStart:     9,
	SectionElement:   10,
	SectionDataCount: 11,
	SectionCode:      12,
	SectionData:      13,
}

// ExternKind identifies the kind of an imported or exported entity.
type ExternKind byte

const (
	KindFunc   ExternKind = 0
	KindTable  ExternKind = 1
	KindMemory ExternKind = 2
	KindGlobal ExternKind = 3
	KindTag    ExternKind = 4
)

func (k ExternKind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindTable:
		return "table"
	case KindMemory:
		return "memory"
	case KindGlobal:
		return "global"
	case KindTag:
		return "tag"
	}
	return "unknown"
}

// Value and storage type encodings.
const (
	byteI32  byte = 0x7F
	byteI64  byte = 0x7E
	byteF32  byte = 0x7D
	byteF64  byte = 0x7C
	byteV128 byte = 0x7B
	byteI8   byte = 0x78
	byteI16  byte = 0x77

	byteRefNull byte = 0x63 // (ref null ht)
	byteRef     byte = 0x64 // (ref ht)
	byteShared  byte = 0x65 // shared heap or composite type prefix
)

// Abstract heap type encodings.
const (
	byteHeapNoCont   byte = 0x75
	byteHeapNoExn    byte = 0x74
	byteHeapNoFunc   byte = 0x73
	byteHeapNoExtern byte = 0x72
	byteHeapNone     byte = 0x71
	byteHeapFunc     byte = 0x70
	byteHeapExtern   byte = 0x6F
	byteHeapAny      byte = 0x6E
	byteHeapEq       byte = 0x6D
	byteHeapI31      byte = 0x6C
	byteHeapStruct   byte = 0x6B
	byteHeapArray    byte = 0x6A
	byteHeapExn      byte = 0x69
	byteHeapCont     byte = 0x68
)

// Type section encodings.
const (
	FuncTypeByte   byte = 0x60
	StructTypeByte byte = 0x5F
	ArrayTypeByte  byte = 0x5E
	SubTypeByte    byte = 0x50 // sub (non-final)
	SubFinalByte   byte = 0x4F // sub final
	RecTypeByte    byte = 0x4E
)

// BlockTypeEmpty is the encoding of a block without params or results.
const BlockTypeEmpty byte = 0x40

// Limits flag bits shared by tables and memories.
const (
	LimitsHasMax   byte = 0x01
	LimitsShared   byte = 0x02
	LimitsIs64     byte = 0x04
	LimitsPageSize byte = 0x08
)

// Global type flag bits.
const (
	GlobalMutable byte = 0x01
	GlobalShared  byte = 0x02
)

// Memory page geometry.
const (
	DefaultPageSizeLog2 uint32 = 16
	MemoryMaxPages32    uint64 = 1 << 16
	MemoryMaxPages64    uint64 = 1 << 48
	TableMaxElements32  uint64 = 1<<32 - 1
)

// Control and parametric opcodes.
const (
	OpUnreachable byte = 0x00
	OpNop         byte = 0x01
	OpBlock       byte = 0x02
	OpLoop        byte = 0x03
	OpIf          byte = 0x04
	OpElse        byte = 0x05
	OpEnd         byte = 0x0B
	OpBr          byte = 0x0C
	OpBrIf        byte = 0x0D
	OpReturn      byte = 0x0F
	OpCall        byte = 0x10
	OpDrop        byte = 0x1A
	OpSelect      byte = 0x1B
)

// Variable access opcodes.
const (
	OpLocalGet  byte = 0x20
	OpLocalSet  byte = 0x21
	OpLocalTee  byte = 0x22
	OpGlobalGet byte = 0x23
	OpGlobalSet byte = 0x24
)

// Numeric opcodes.
const (
	OpI32Const byte = 0x41
	OpI64Const byte = 0x42
	OpF32Const byte = 0x43
	OpF64Const byte = 0x44

	OpI32Eqz byte = 0x45
	OpI64Eqz byte = 0x50

	OpI32Add byte = 0x6A
	OpI32Sub byte = 0x6B
	OpI32Mul byte = 0x6C
	OpI32And byte = 0x71
	OpI32Or  byte = 0x72
	OpI32Xor byte = 0x73

	OpI64Add byte = 0x7C
	OpI64Sub byte = 0x7D
	OpI64Mul byte = 0x7E
	OpI64And byte = 0x83
	OpI64Or  byte = 0x84
	OpI64Xor byte = 0x85
)

// Reference opcodes.
const (
	OpRefNull   byte = 0xD0
	OpRefIsNull byte = 0xD1
	OpRefFunc   byte = 0xD2
)

// Prefixed opcode families.
const (
	OpPrefixSIMD byte = 0xFD

	SIMDV128Const uint32 = 12
)
