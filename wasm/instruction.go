package wasm

import (
	"fmt"
	"math"
	"strconv"

	"github.com/wippyai/wasmgen/wasm/internal/binary"
)

// Instruction is a single instruction of a constant expression or function body.
//
// Imm depends on Opcode:
//
//	block, loop, if           BlockImm
//	br, br_if, call           uint32
//	local.*, global.*         uint32
//	ref.func                  uint32
//	i32.const                 int32
//	i64.const                 int64
//	f32.const                 uint32 (IEEE bits)
//	f64.const                 uint64 (IEEE bits)
//	ref.null                  HeapType
//	0xFD (v128.const)         V128Imm
type Instruction struct {
	Imm    any
	Opcode byte
}

// BlockImm is a block type: empty when Result is nil.
type BlockImm struct {
	Result *ValType
}

// V128Imm is the little-endian payload of v128.const.
type V128Imm [16]byte

// ConstExpr is a constant expression without its terminating end.
type ConstExpr []Instruction

// Op returns an instruction without immediates.
func Op(opcode byte) Instruction { return Instruction{Opcode: opcode} }

// I32Const returns i32.const v.
func I32Const(v int32) Instruction { return Instruction{Opcode: OpI32Const, Imm: v} }

// I64Const returns i64.const v.
func I64Const(v int64) Instruction { return Instruction{Opcode: OpI64Const, Imm: v} }

// F32Const returns f32.const with the given bit pattern. NaN payloads survive.
func F32Const(bits uint32) Instruction { return Instruction{Opcode: OpF32Const, Imm: bits} }

// F64Const returns f64.const with the given bit pattern.
func F64Const(bits uint64) Instruction { return Instruction{Opcode: OpF64Const, Imm: bits} }

// V128Const returns v128.const built from two 64-bit lanes.
func V128Const(lo, hi uint64) Instruction {
	var v V128Imm
	for i := 0; i < 8; i++ {
		v[i] = byte(lo >> (8 * i))
		v[8+i] = byte(hi >> (8 * i))
	}
	return Instruction{Opcode: OpPrefixSIMD, Imm: v}
}

// GlobalGet returns global.get idx.
func GlobalGet(idx uint32) Instruction { return Instruction{Opcode: OpGlobalGet, Imm: idx} }

// RefNull returns ref.null h.
func RefNull(h HeapType) Instruction { return Instruction{Opcode: OpRefNull, Imm: h} }

// RefFunc returns ref.func idx.
func RefFunc(idx uint32) Instruction { return Instruction{Opcode: OpRefFunc, Imm: idx} }

// Index returns an instruction with a single index immediate.
func Index(opcode byte, idx uint32) Instruction { return Instruction{Opcode: opcode, Imm: idx} }

// Block returns an empty-typed structured instruction (block, loop or if).
func Block(opcode byte) Instruction { return Instruction{Opcode: opcode, Imm: BlockImm{}} }

// EncodeInstructions encodes a sequence of instructions.
func EncodeInstructions(instrs []Instruction) []byte {
	w := binary.NewWriter()
	writeInstructions(w, instrs)
	return w.Bytes()
}

func writeInstructions(w *binary.Writer, instrs []Instruction) {
	for i := range instrs {
		writeInstruction(w, &instrs[i])
	}
}

func writeConstExpr(w *binary.Writer, expr ConstExpr) {
	writeInstructions(w, expr)
	w.Byte(OpEnd)
}

func writeInstruction(w *binary.Writer, in *Instruction) {
	w.Byte(in.Opcode)
	switch in.Opcode {
	case OpBlock, OpLoop, OpIf:
		imm, _ := in.Imm.(BlockImm)
		if imm.Result == nil {
			w.Byte(BlockTypeEmpty)
		} else {
			writeValType(w, *imm.Result)
		}
	case OpBr, OpBrIf, OpCall, OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet, OpRefFunc:
		w.WriteU32(in.Imm.(uint32))
	case OpI32Const:
		w.WriteS32(in.Imm.(int32))
	case OpI64Const:
		w.WriteS64(in.Imm.(int64))
	case OpF32Const:
		w.WriteU32LE(in.Imm.(uint32))
	case OpF64Const:
		w.WriteU64LE(in.Imm.(uint64))
	case OpRefNull:
		writeHeapType(w, in.Imm.(HeapType))
	case OpPrefixSIMD:
		v := in.Imm.(V128Imm)
		w.WriteU32(SIMDV128Const)
		w.WriteBytes(v[:])
	}
}

// DecodeInstructions decodes a flat instruction sequence, including end opcodes.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := binary.NewReader(code)
	var out []Instruction
	for !r.EOF() {
		in, err := readInstruction(r)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func readConstExpr(r *binary.Reader) (ConstExpr, error) {
	var out ConstExpr
	for {
		in, err := readInstruction(r)
		if err != nil {
			return nil, err
		}
		if in.Opcode == OpEnd {
			return out, nil
		}
		out = append(out, in)
	}
}

func readInstruction(r *binary.Reader) (Instruction, error) {
	op, err := r.ReadByte()
	if err != nil {
		return Instruction{}, err
	}
	in := Instruction{Opcode: op}
	switch op {
	case OpUnreachable, OpNop, OpElse, OpEnd, OpReturn, OpDrop, OpSelect, OpRefIsNull,
		OpI32Eqz, OpI64Eqz,
		OpI32Add, OpI32Sub, OpI32Mul, OpI32And, OpI32Or, OpI32Xor,
		OpI64Add, OpI64Sub, OpI64Mul, OpI64And, OpI64Or, OpI64Xor:
	case OpBlock, OpLoop, OpIf:
		b, err := r.PeekByte()
		if err != nil {
			return in, err
		}
		if b == BlockTypeEmpty {
			_, _ = r.ReadByte()
			in.Imm = BlockImm{}
			break
		}
		vt, err := readValType(r)
		if err != nil {
			return in, fmt.Errorf("block type: %w", err)
		}
		in.Imm = BlockImm{Result: &vt}
	case OpBr, OpBrIf, OpCall, OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet, OpRefFunc:
		idx, err := r.ReadU32()
		if err != nil {
			return in, err
		}
		in.Imm = idx
	case OpI32Const:
		v, err := r.ReadS32()
		if err != nil {
			return in, err
		}
		in.Imm = v
	case OpI64Const:
		v, err := r.ReadS64()
		if err != nil {
			return in, err
		}
		in.Imm = v
	case OpF32Const:
		v, err := r.ReadU32LE()
		if err != nil {
			return in, err
		}
		in.Imm = v
	case OpF64Const:
		v, err := r.ReadU64LE()
		if err != nil {
			return in, err
		}
		in.Imm = v
	case OpRefNull:
		h, err := readHeapType(r)
		if err != nil {
			return in, err
		}
		in.Imm = h
	case OpPrefixSIMD:
		sub, err := r.ReadU32()
		if err != nil {
			return in, err
		}
		if sub != SIMDV128Const {
			return in, fmt.Errorf("unsupported SIMD opcode 0xfd %d", sub)
		}
		raw, err := r.ReadBytes(16)
		if err != nil {
			return in, err
		}
		var v V128Imm
		copy(v[:], raw)
		in.Imm = v
	default:
		return in, fmt.Errorf("unsupported opcode 0x%02x", op)
	}
	return in, nil
}

var mnemonics = map[byte]string{
	OpUnreachable: "unreachable", OpNop: "nop", OpBlock: "block", OpLoop: "loop", OpIf: "if",
	OpElse: "else", OpEnd: "end", OpBr: "br", OpBrIf: "br_if", OpReturn: "return", OpCall: "call",
	OpDrop: "drop", OpSelect: "select", OpLocalGet: "local.get", OpLocalSet: "local.set",
	OpLocalTee: "local.tee", OpGlobalGet: "global.get", OpGlobalSet: "global.set",
	OpI32Const: "i32.const", OpI64Const: "i64.const", OpF32Const: "f32.const", OpF64Const: "f64.const",
	OpI32Eqz: "i32.eqz", OpI64Eqz: "i64.eqz",
	OpI32Add: "i32.add", OpI32Sub: "i32.sub", OpI32Mul: "i32.mul",
	OpI32And: "i32.and", OpI32Or: "i32.or", OpI32Xor: "i32.xor",
	OpI64Add: "i64.add", OpI64Sub: "i64.sub", OpI64Mul: "i64.mul",
	OpI64And: "i64.and", OpI64Or: "i64.or", OpI64Xor: "i64.xor",
	OpRefNull: "ref.null", OpRefIsNull: "ref.is_null", OpRefFunc: "ref.func",
	OpPrefixSIMD: "v128.const",
}

func (i Instruction) String() string {
	name, ok := mnemonics[i.Opcode]
	if !ok {
		name = fmt.Sprintf("<0x%02x>", i.Opcode)
	}
	switch imm := i.Imm.(type) {
	case uint32:
		if i.Opcode == OpF32Const {
			return name + " " + strconv.FormatFloat(float64(math.Float32frombits(imm)), 'g', -1, 32)
		}
		return name + " " + strconv.FormatUint(uint64(imm), 10)
	case uint64:
		return name + " " + strconv.FormatFloat(math.Float64frombits(imm), 'g', -1, 64)
	case int32:
		return name + " " + strconv.FormatInt(int64(imm), 10)
	case int64:
		return name + " " + strconv.FormatInt(imm, 10)
	case HeapType:
		return name + " " + imm.String()
	case V128Imm:
		return fmt.Sprintf("%s i8x16 %v", name, imm[:])
	case BlockImm:
		if imm.Result != nil {
			return name + " (result " + imm.Result.String() + ")"
		}
	}
	return name
}
