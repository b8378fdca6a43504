package binary

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
)

func TestReaderReadByte(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	r := NewReader(data)

	for i, want := range data {
		if r.Position() != i {
			t.Errorf("position before read %d: got %d, want %d", i, r.Position(), i)
		}
		b, err := r.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte %d: %v", i, err)
		}
		if b != want {
			t.Errorf("ReadByte %d: got 0x%02x, want 0x%02x", i, b, want)
		}
	}

	if !r.EOF() {
		t.Error("expected EOF after reading all bytes")
	}
	if _, err := r.ReadByte(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReaderReadBytes(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03, 0x04, 0x05})

	got, err := r.ReadBytes(3)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("ReadBytes: got %v, want [1 2 3]", got)
	}
	if r.Remaining() != 2 {
		t.Errorf("remaining: got %d, want 2", r.Remaining())
	}
	if _, err := r.ReadBytes(10); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestReaderReadU32(t *testing.T) {
	tests := []struct {
		data []byte
		want uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, math.MaxUint32},
	}
	for _, tt := range tests {
		got, err := NewReader(tt.data).ReadU32()
		if err != nil {
			t.Errorf("ReadU32(%x): %v", tt.data, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ReadU32(%x) = %d, want %d", tt.data, got, tt.want)
		}
	}
}

func TestReaderReadU32Overflow(t *testing.T) {
	for _, data := range [][]byte{
		{0xff, 0xff, 0xff, 0xff, 0x1f},
		{0x80, 0x80, 0x80, 0x80, 0x80, 0x00},
	} {
		if _, err := NewReader(data).ReadU32(); !errors.Is(err, ErrOverflow) {
			t.Errorf("ReadU32(%x): expected overflow, got %v", data, err)
		}
	}
}

func TestReaderReadSigned(t *testing.T) {
	tests := []struct {
		data []byte
		want int64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, -1},
		{[]byte{0x40}, -64},
		{[]byte{0x80, 0x7f}, -128},
		{[]byte{0x3f}, 63},
	}
	for _, tt := range tests {
		got, err := NewReader(tt.data).ReadS64()
		if err != nil || got != tt.want {
			t.Errorf("ReadS64(%x) = %d, %v; want %d", tt.data, got, err, tt.want)
		}
		got32, err := NewReader(tt.data).ReadS32()
		if err != nil || int64(got32) != tt.want {
			t.Errorf("ReadS32(%x) = %d, %v; want %d", tt.data, got32, err, tt.want)
		}
	}
}

func TestReaderReadS33HeapTypes(t *testing.T) {
	// funcref shorthand 0x70 is -16 as s33
	got, err := NewReader([]byte{0x70}).ReadS33()
	if err != nil || got != -16 {
		t.Errorf("ReadS33(0x70) = %d, %v; want -16", got, err)
	}
	if _, err := NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x00}).ReadS33(); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected overflow for 6-byte s33, got %v", err)
	}
}

func TestReaderReadName(t *testing.T) {
	r := NewReader([]byte{0x03, 'a', 'b', 'c'})
	name, err := r.ReadName()
	if err != nil || name != "abc" {
		t.Errorf("ReadName = %q, %v; want abc", name, err)
	}

	if _, err := NewReader([]byte{0x02, 0xff, 0xfe}).ReadName(); !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("expected invalid UTF-8, got %v", err)
	}
	if _, err := NewReader([]byte{0x05, 'a'}).ReadName(); err == nil {
		t.Error("expected error for truncated name")
	}
}

func TestReaderFixedWidth(t *testing.T) {
	r := NewReader([]byte{0x78, 0x56, 0x34, 0x12, 1, 0, 0, 0, 0, 0, 0, 0x80})
	v32, err := r.ReadU32LE()
	if err != nil || v32 != 0x12345678 {
		t.Errorf("ReadU32LE = %x, %v", v32, err)
	}
	v64, err := r.ReadU64LE()
	if err != nil || v64 != 0x8000000000000001 {
		t.Errorf("ReadU64LE = %x, %v", v64, err)
	}
	if _, err := r.ReadU32LE(); err == nil {
		t.Error("expected error reading past end")
	}
}

func TestReaderSub(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4})
	sub, err := r.Sub(2)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Remaining() != 2 || r.Position() != 2 {
		t.Errorf("sub remaining %d, parent position %d", sub.Remaining(), r.Position())
	}
}

func TestParseError(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, _ = r.ReadByte()
	cause := errors.New("boom")
	err := r.WrapError("import", cause)

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %T", err)
	}
	if pe.Position != 1 || pe.Section != "import" {
		t.Errorf("unexpected %+v", pe)
	}
	if !errors.Is(err, cause) {
		t.Error("ParseError should unwrap to cause")
	}
	if got := (&ParseError{Position: 3, Err: cause}).Error(); got != "wasm: at position 3: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestWriterLEB128(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  []byte
	}{
		{"u32 zero", func(w *Writer) { w.WriteU32(0) }, []byte{0x00}},
		{"u32 624485", func(w *Writer) { w.WriteU32(624485) }, []byte{0xe5, 0x8e, 0x26}},
		{"u64 max", func(w *Writer) { w.WriteU64(math.MaxUint64) }, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
		{"s32 -1", func(w *Writer) { w.WriteS32(-1) }, []byte{0x7f}},
		{"s64 -128", func(w *Writer) { w.WriteS64(-128) }, []byte{0x80, 0x7f}},
		{"s64 64", func(w *Writer) { w.WriteS64(64) }, []byte{0xc0, 0x00}},
		{"name", func(w *Writer) { w.WriteName("hi") }, []byte{0x02, 'h', 'i'}},
		{"u32le", func(w *Writer) { w.WriteU32LE(0x7fc00001) }, []byte{0x01, 0x00, 0xc0, 0x7f}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter()
			tt.write(w)
			if !bytes.Equal(w.Bytes(), tt.want) {
				t.Errorf("got %x, want %x", w.Bytes(), tt.want)
			}
		})
	}
}

func TestWriterSized(t *testing.T) {
	inner := NewWriter()
	inner.WriteBytes([]byte{1, 2, 3})
	w := NewWriter()
	w.Byte(0x0b)
	w.WriteSized(inner)
	if !bytes.Equal(w.Bytes(), []byte{0x0b, 0x03, 1, 2, 3}) {
		t.Errorf("got %x", w.Bytes())
	}
}

func TestRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 63, -64, 64, -65, math.MaxInt32, math.MinInt32, math.MaxInt64, math.MinInt64}
	w := NewWriter()
	for _, v := range values {
		w.WriteS64(v)
	}
	for _, v := range values {
		w.WriteU64(uint64(v))
	}
	r := NewReader(w.Bytes())
	for _, v := range values {
		got, err := r.ReadS64()
		if err != nil || got != v {
			t.Errorf("s64 round trip %d: got %d, %v", v, got, err)
		}
	}
	for _, v := range values {
		got, err := r.ReadU64()
		if err != nil || got != uint64(v) {
			t.Errorf("u64 round trip %d: got %d, %v", uint64(v), got, err)
		}
	}
	if !r.EOF() {
		t.Errorf("%d trailing bytes", r.Remaining())
	}
}
