package oracle

import (
	"encoding/binary"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/wippyai/wasmgen/errors"
)

// Errors reported by the oracle. Match them with errors.Is.
var (
	ErrNotEnoughData   = errors.Sentinel(errors.PhaseOracle, errors.KindExhausted, "not enough data")
	ErrEmptyChoose     = errors.Sentinel(errors.PhaseOracle, errors.KindEmptyChoice, "choose from an empty list")
	ErrIncorrectFormat = errors.Sentinel(errors.PhaseOracle, errors.KindIncorrectFormat, "input does not describe a valid value")
)

// Integer is any built-in integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Unstructured is a read cursor over decision bytes. It is not safe for
// concurrent use.
type Unstructured struct {
	data []byte
}

// New returns an Unstructured over data. The slice is not copied.
func New(data []byte) *Unstructured {
	return &Unstructured{data: data}
}

// Len returns the number of bytes left.
func (u *Unstructured) Len() int {
	return len(u.data)
}

// IsEmpty reports whether all input was consumed.
func (u *Unstructured) IsEmpty() bool {
	return len(u.data) == 0
}

// IntInRange returns an integer in [lo, hi]. It reads only as many bytes as
// the width of the range needs and returns lo once the input is exhausted.
// It panics if lo > hi.
func IntInRange[T Integer](u *Unstructured, lo, hi T) T {
	v, n := intInRange(u.data, lo, hi)
	u.data = u.data[n:]
	return v
}

func intInRange[T Integer](data []byte, lo, hi T) (T, int) {
	if lo > hi {
		panic("oracle: IntInRange with lo > hi")
	}
	if lo == hi {
		return lo, 0
	}
	delta := uint64(hi) - uint64(lo)
	var v uint64
	consumed := 0
	for consumed < 8 && delta>>(uint(consumed)*8) > 0 && consumed < len(data) {
		v = v<<8 | uint64(data[consumed])
		consumed++
	}
	offset := v
	if delta != math.MaxUint64 {
		offset = v % (delta + 1)
	}
	return T(uint64(lo) + offset), consumed
}

// Ratio returns true with probability num/den.
func (u *Unstructured) Ratio(num, den uint32) bool {
	return IntInRange(u, 1, den) <= num
}

// Bool reads one byte and returns its low bit; false once exhausted.
func (u *Unstructured) Bool() bool {
	return u.Uint8()&1 == 1
}

// fill copies up to len(buf) bytes into buf, leaving the rest zero.
func (u *Unstructured) fill(buf []byte) {
	n := copy(buf, u.data)
	u.data = u.data[n:]
}

// Uint8 reads a byte, zero once exhausted.
func (u *Unstructured) Uint8() uint8 {
	var b [1]byte
	u.fill(b[:])
	return b[0]
}

// Uint16 reads a little-endian uint16, zero padded.
func (u *Unstructured) Uint16() uint16 {
	var b [2]byte
	u.fill(b[:])
	return binary.LittleEndian.Uint16(b[:])
}

// Uint32 reads a little-endian uint32, zero padded.
func (u *Unstructured) Uint32() uint32 {
	var b [4]byte
	u.fill(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// Uint64 reads a little-endian uint64, zero padded.
func (u *Unstructured) Uint64() uint64 {
	var b [8]byte
	u.fill(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// Int32 reads a little-endian int32, zero padded.
func (u *Unstructured) Int32() int32 { return int32(u.Uint32()) }

// Int64 reads a little-endian int64, zero padded.
func (u *Unstructured) Int64() int64 { return int64(u.Uint64()) }

// Float32Bits reads the bit pattern of an arbitrary f32, NaNs included.
func (u *Unstructured) Float32Bits() uint32 { return u.Uint32() }

// Float64Bits reads the bit pattern of an arbitrary f64, NaNs included.
func (u *Unstructured) Float64Bits() uint64 { return u.Uint64() }

// V128 reads 16 bytes as two little-endian 64-bit lanes.
func (u *Unstructured) V128() (lo, hi uint64) {
	return u.Uint64(), u.Uint64()
}

// Bytes consumes exactly n bytes.
func (u *Unstructured) Bytes(n int) ([]byte, error) {
	if n < 0 || n > len(u.data) {
		return nil, ErrNotEnoughData
	}
	out := u.data[:n]
	u.data = u.data[n:]
	return out, nil
}

// ArbitraryLen returns a collection length for elements of elemSize bytes.
// The length prefix is read from the end of the input and the result never
// exceeds what the remaining input could fill.
func (u *Unstructured) ArbitraryLen(elemSize int) int {
	if elemSize <= 0 {
		elemSize = 1
	}
	return u.arbitraryByteSize() / elemSize
}

func (u *Unstructured) arbitraryByteSize() int {
	n := len(u.data)
	switch {
	case n == 0:
		return 0
	case n == 1:
		u.data = u.data[:0]
		return 0
	case n <= math.MaxUint8+1:
		limit := n - 1
		size, _ := intInRange(u.data[limit:], 0, uint8(limit))
		u.data = u.data[:limit]
		return int(size)
	case n <= math.MaxUint16+2:
		limit := n - 2
		size, _ := intInRange(u.data[limit:], 0, uint16(limit))
		u.data = u.data[:limit]
		return int(size)
	default:
		limit := n - 4
		bound := uint32(math.MaxUint32)
		if uint64(limit) < uint64(bound) {
			bound = uint32(limit)
		}
		size, _ := intInRange(u.data[limit:], 0, bound)
		u.data = u.data[:limit]
		return int(size)
	}
}

// ByteSlice reads a length-prefixed byte vector. The result is a copy.
func (u *Unstructured) ByteSlice() []byte {
	n := u.ArbitraryLen(1)
	b, _ := u.Bytes(n)
	return append([]byte(nil), b...)
}

// ChooseIndex returns an index in [0, n).
func (u *Unstructured) ChooseIndex(n int) (int, error) {
	if n == 0 {
		return 0, ErrEmptyChoose
	}
	return IntInRange(u, 0, n-1), nil
}

// Choose picks one element of list uniformly.
func Choose[T any](u *Unstructured, list []T) (T, error) {
	i, err := u.ChooseIndex(len(list))
	if err != nil {
		var zero T
		return zero, err
	}
	return list[i], nil
}

// Loop calls body between lo and hi times. After lo iterations each further
// iteration is gated by Bool. A body returning false stops the loop without
// error and a body error aborts it. It panics if lo > hi.
func Loop(u *Unstructured, lo, hi int, body func() (bool, error)) error {
	if lo > hi || lo < 0 {
		panic("oracle: Loop with invalid bounds")
	}
	for i := 0; i < lo; i++ {
		more, err := body()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	for i := 0; i < hi-lo; i++ {
		if !u.Bool() {
			return nil
		}
		more, err := body()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

// LimitedString reads a string of at most maxLen bytes. Input that is not
// valid UTF-8 is cut at the first invalid sequence.
func (u *Unstructured) LimitedString(maxLen int) string {
	size := min(u.ArbitraryLen(1), maxLen)
	peek := u.data[:size]
	valid := 0
	for valid < len(peek) {
		r, n := utf8.DecodeRune(peek[valid:])
		if r == utf8.RuneError && n <= 1 {
			break
		}
		valid += n
	}
	b, _ := u.Bytes(valid)
	return string(b)
}

// UniqueString reads a LimitedString and appends the size of names until the
// result is not in names, then records it.
func (u *Unstructured) UniqueString(maxLen int, names map[string]struct{}) string {
	name := u.LimitedString(maxLen)
	for {
		if _, taken := names[name]; !taken {
			break
		}
		name += strconv.Itoa(len(names))
	}
	names[name] = struct{}{}
	return name
}
