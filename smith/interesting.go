package smith

import (
	"math"
	"slices"

	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

// Float special values as bit patterns. NaN is the canonical quiet NaN.
var (
	f64Specials = []uint64{
		0,
		1 << 63,            // -0
		0x7FF0000000000000, // +inf
		0xFFF0000000000000, // -inf
		0x3CB0000000000000, // epsilon
		0xBCB0000000000000, // -epsilon
		math.Float64bits(-math.MaxFloat64),
		0x0010000000000000, // smallest normal
		math.Float64bits(math.MaxFloat64),
		0x7FF8000000000000,
	}
	f32Specials = []uint32{
		0,
		1 << 31,
		0x7F800000,
		0xFF800000,
		0x34000000,
		0xB4000000,
		math.Float32bits(-math.MaxFloat32),
		0x00800000,
		math.Float32bits(math.MaxFloat32),
		0x7FC00000,
	}
)

// computeInterestingValues fills the sorted tables of boundary constants.
// The 32-bit table holds the truncations of the 64-bit values.
func (m *Module) computeInterestingValues() {
	set := make(map[uint64]struct{})
	add := func(v uint64) { set[v] = struct{}{} }

	add(0)
	add(math.MaxUint8)
	add(math.MaxUint16)
	add(math.MaxUint32)
	add(math.MaxUint64)
	for _, v := range []int64{math.MinInt8, math.MinInt16, math.MinInt32, math.MinInt64} {
		add(uint64(v))
	}

	for i := range 64 {
		p := uint64(1) << i
		add(p)
		add(^p)
		add(p - 1)
		add(uint64(int64(math.MinInt64) >> i))
	}

	for _, pattern := range []byte{0x55, 0x11, 0x01} {
		for _, b := range []byte{pattern, ^pattern} {
			add(uint64(b) * 0x0101010101010101)
		}
	}

	for _, bits := range f64Specials {
		add(bits)
	}
	for _, bits := range f32Specials {
		add(uint64(bits))
	}

	for _, t := range m.tables {
		add(t.Limits.Min)
		if t.Limits.Min < math.MaxUint64 {
			add(t.Limits.Min + 1)
		}
		if t.Limits.Max != nil {
			add(*t.Limits.Max)
			if *t.Limits.Max < math.MaxUint64 {
				add(*t.Limits.Max + 1)
			}
		}
	}

	window := func(v uint64) {
		add(v)
		for i := range 5 {
			d := uint64(1) << i
			if v <= math.MaxUint64-d {
				add(v + d)
			}
			if v >= d {
				add(v - d)
			}
		}
	}
	for _, mem := range m.memories {
		page := mem.PageSize()
		window(saturatingMul(mem.Limits.Min, page))
		if mem.Limits.Max != nil {
			window(saturatingMul(*mem.Limits.Max, page))
		}
	}

	set32 := make(map[uint32]struct{}, len(set))
	m.interesting64 = make([]uint64, 0, len(set))
	for v := range set {
		m.interesting64 = append(m.interesting64, v)
		set32[uint32(v)] = struct{}{}
	}
	m.interesting32 = make([]uint32, 0, len(set32))
	for v := range set32 {
		m.interesting32 = append(m.interesting32, v)
	}
	slices.Sort(m.interesting64)
	slices.Sort(m.interesting32)
}

func saturatingMul(a, b uint64) uint64 {
	if a != 0 && b > math.MaxUint64/a {
		return math.MaxUint64
	}
	return a * b
}

// ArbitraryConstInstruction returns a constant of type ty, drawn half of the
// time from the interesting value tables. References yield ref.null.
func (m *Module) ArbitraryConstInstruction(u *oracle.Unstructured, ty wasm.ValType) (wasm.Instruction, error) {
	if len(m.interesting64) == 0 {
		m.computeInterestingValues()
	}
	choose32 := func() (uint32, error) {
		if !u.Bool() {
			return u.Uint32(), nil
		}
		return oracle.Choose(u, m.interesting32)
	}
	choose64 := func() (uint64, error) {
		if !u.Bool() {
			return u.Uint64(), nil
		}
		return oracle.Choose(u, m.interesting64)
	}

	switch ty.Kind {
	case wasm.ValI32:
		v, err := choose32()
		return wasm.I32Const(int32(v)), err
	case wasm.ValI64:
		v, err := choose64()
		return wasm.I64Const(int64(v)), err
	case wasm.ValF32:
		v, err := choose32()
		return wasm.F32Const(v), err
	case wasm.ValF64:
		v, err := choose64()
		return wasm.F64Const(v), err
	case wasm.ValV128:
		if !u.Bool() {
			lo, hi := u.V128()
			return wasm.V128Const(lo, hi), nil
		}
		hi, err := oracle.Choose(u, m.interesting64)
		if err != nil {
			return wasm.Instruction{}, err
		}
		lo, err := oracle.Choose(u, m.interesting64)
		return wasm.V128Const(lo, hi), err
	}
	if !ty.Ref.Nullable {
		panic("smith: constant of non-nullable reference type " + ty.String())
	}
	return wasm.RefNull(ty.Ref.Heap), nil
}
