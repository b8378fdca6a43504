package oracle

import (
	"errors"
	"testing"

	werrors "github.com/wippyai/wasmgen/errors"
)

func TestIntInRange(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		lo, hi   int
		want     int
		consumed int
	}{
		{"empty input yields lo", nil, 3, 10, 3, 0},
		{"single value range", []byte{0xff}, 5, 5, 5, 0},
		{"one byte modulo", []byte{9}, 0, 3, 1, 1},
		{"offset from lo", []byte{2}, 10, 20, 12, 1},
		{"two bytes for wide range", []byte{0x01, 0x00, 0x07}, 0, 1000, 256, 2},
		{"short input", []byte{0x03}, 0, 1 << 20, 3, 1},
		{"negative bounds", []byte{1}, -5, 5, -4, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := New(tt.data)
			got := IntInRange(u, tt.lo, tt.hi)
			if got != tt.want {
				t.Errorf("IntInRange = %d, want %d", got, tt.want)
			}
			if used := len(tt.data) - u.Len(); used != tt.consumed {
				t.Errorf("consumed %d bytes, want %d", used, tt.consumed)
			}
		})
	}
}

func TestIntInRangeFullWidth(t *testing.T) {
	u := New([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01})
	if got := IntInRange(u, uint64(0), ^uint64(0)); got != ^uint64(0) {
		t.Errorf("got %#x", got)
	}
	if u.Len() != 1 {
		t.Errorf("remaining = %d, want 1", u.Len())
	}
}

func TestIntInRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for lo > hi")
		}
	}()
	IntInRange(New(nil), 2, 1)
}

func TestBoolAndRatio(t *testing.T) {
	u := New([]byte{1, 2})
	if !u.Bool() {
		t.Error("odd byte should be true")
	}
	if u.Bool() {
		t.Error("even byte should be false")
	}
	if u.Bool() {
		t.Error("exhausted input should be false")
	}

	// ratio(1, 1) always holds.
	if !New(nil).Ratio(1, 1) {
		t.Error("Ratio(1,1) = false")
	}
	// Empty input picks the low end of 1..=den.
	if !New(nil).Ratio(1, 10) {
		t.Error("Ratio(1,10) on empty input = false")
	}
	if New([]byte{5}).Ratio(1, 10) {
		t.Error("Ratio(1,10) with byte 5 = true")
	}
}

func TestFixedWidth(t *testing.T) {
	u := New([]byte{0x01, 0x02, 0x03})
	if got := u.Uint32(); got != 0x030201 {
		t.Errorf("Uint32 = %#x", got)
	}
	if got := u.Uint64(); got != 0 {
		t.Errorf("Uint64 after exhaustion = %#x", got)
	}
	lo, hi := New([]byte{1, 0, 0, 0, 0, 0, 0, 0, 2}).V128()
	if lo != 1 || hi != 2 {
		t.Errorf("V128 = %d, %d", lo, hi)
	}
}

func TestBytes(t *testing.T) {
	u := New([]byte{1, 2, 3})
	b, err := u.Bytes(2)
	if err != nil || len(b) != 2 {
		t.Fatalf("Bytes(2) = %v, %v", b, err)
	}
	if _, err := u.Bytes(2); !errors.Is(err, ErrNotEnoughData) {
		t.Errorf("Bytes past end: err = %v", err)
	}
	if u.Len() != 1 {
		t.Errorf("failed read consumed input")
	}
}

func TestArbitraryLen(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		elem int
		want int
		left int
	}{
		{"empty", nil, 1, 0, 0},
		{"one byte", []byte{7}, 1, 0, 0},
		{"prefix from tail", []byte{1, 2, 3, 2}, 1, 2, 3},
		{"wraps to remaining", []byte{1, 2, 3, 9}, 1, 1, 3},
		{"element size divides", []byte{0, 0, 0, 0, 3}, 2, 1, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := New(tt.data)
			if got := u.ArbitraryLen(tt.elem); got != tt.want {
				t.Errorf("ArbitraryLen = %d, want %d", got, tt.want)
			}
			if u.Len() != tt.left {
				t.Errorf("remaining = %d, want %d", u.Len(), tt.left)
			}
		})
	}
}

func TestArbitraryLenNeverExceedsInput(t *testing.T) {
	for size := 0; size < 600; size += 7 {
		data := make([]byte, size)
		for i := range data {
			data[i] = 0xff
		}
		u := New(data)
		if n := u.ArbitraryLen(1); n > u.Len() {
			t.Fatalf("size %d: length %d exceeds remaining %d", size, n, u.Len())
		}
	}
}

func TestChoose(t *testing.T) {
	got, err := Choose(New([]byte{2}), []string{"a", "b", "c"})
	if err != nil || got != "c" {
		t.Errorf("Choose = %q, %v", got, err)
	}
	got, err = Choose(New(nil), []string{"a", "b"})
	if err != nil || got != "a" {
		t.Errorf("Choose on empty input = %q, %v", got, err)
	}
	if _, err := Choose[int](New([]byte{1}), nil); !errors.Is(err, ErrEmptyChoose) {
		t.Errorf("Choose on empty list: err = %v", err)
	}
}

func TestLoop(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		min, max int
		stopAt   int
		want     int
	}{
		{"min runs without input", nil, 3, 10, -1, 3},
		{"gated iterations", []byte{1, 1, 0}, 0, 10, -1, 2},
		{"capped by max", []byte{1, 1, 1, 1, 1}, 1, 3, -1, 3},
		{"body stops during min", nil, 5, 5, 2, 2},
		{"body stops after min", []byte{1, 1, 1}, 0, 10, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := New(tt.data)
			calls := 0
			err := Loop(u, tt.min, tt.max, func() (bool, error) {
				calls++
				return calls != tt.stopAt, nil
			})
			if err != nil {
				t.Fatal(err)
			}
			if calls != tt.want {
				t.Errorf("calls = %d, want %d", calls, tt.want)
			}
		})
	}
}

func TestLoopError(t *testing.T) {
	boom := werrors.Sentinel(werrors.PhaseGenerate, werrors.KindBudgetOverflow, "boom")
	err := Loop(New(nil), 2, 4, func() (bool, error) { return true, boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestLimitedString(t *testing.T) {
	u := New([]byte{'a', 'b', 'c', 'd', 3})
	if got := u.LimitedString(2); got != "ab" {
		t.Errorf("LimitedString = %q", got)
	}

	u = New([]byte{'o', 'k', 0xff, 'x', 4})
	if got := u.LimitedString(10); got != "ok" {
		t.Errorf("invalid utf8 cut = %q", got)
	}
	if u.Len() != 2 {
		t.Errorf("remaining = %d, want 2", u.Len())
	}
}

func TestUniqueString(t *testing.T) {
	names := map[string]struct{}{}
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		s := New(nil).UniqueString(10, names)
		if seen[s] {
			t.Fatalf("duplicate name %q", s)
		}
		seen[s] = true
	}
	if len(names) != 5 {
		t.Errorf("names = %d, want 5", len(names))
	}
}
