package smith

import (
	"bytes"
	"testing"

	"github.com/wippyai/wasmgen/oracle"
)

func TestGraduallyGrow(t *testing.T) {
	tests := []struct {
		name                string
		data                []byte
		lo, maxInbounds, hi uint64
		want                uint64
	}{
		{"equal_bounds", nil, 7, 7, 7, 7},
		{"zero_stream_gives_lo", bytes.Repeat([]byte{0}, 8), 3, 100, 1000, 3},
		{"max_stream_gives_hi", bytes.Repeat([]byte{0xff}, 8), 3, 100, 1000, 1000},
		{"inbounds_equals_lo", bytes.Repeat([]byte{0}, 8), 5, 5, 1000, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graduallyGrow(oracle.New(tt.data), tt.lo, tt.maxInbounds, tt.hi)
			if got != tt.want {
				t.Errorf("graduallyGrow = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGraduallyGrow_MostlyInbounds(t *testing.T) {
	const n = 20000
	u := streamFor(9, n*4)
	inbounds, low := 0, 0
	for i := 0; i < n; i++ {
		v := graduallyGrow(u, 0, 1000, 1_000_000)
		if v > 1_000_000 {
			t.Fatalf("value %d out of range", v)
		}
		if v <= 1000 {
			inbounds++
		}
		if v <= 100 {
			low++
		}
	}
	if frac := float64(inbounds) / n; frac < 0.98 {
		t.Errorf("inbounds fraction %.4f, want >= 0.98", frac)
	}
	// The sixth power keeps values near the bottom of the range.
	if frac := float64(low) / n; frac < 0.6 {
		t.Errorf("fraction under a tenth of the range %.4f, want >= 0.6", frac)
	}
}

func TestArbitraryLimits64(t *testing.T) {
	floor := uint64(4)
	for seed := uint64(0); seed < 200; seed++ {
		u := streamFor(seed, 64)
		lo, hi := arbitraryLimits64(u, &floor, 100, true, 10)
		if lo < floor || lo > 100 {
			t.Fatalf("seed %d: min %d outside [4, 100]", seed, lo)
		}
		if hi == nil {
			t.Fatalf("seed %d: required maximum missing", seed)
		}
		if *hi < lo || *hi > 100 {
			t.Fatalf("seed %d: max %d outside [%d, 100]", seed, *hi, lo)
		}
	}
}

func TestArbitraryOffset(t *testing.T) {
	for seed := uint64(0); seed < 200; seed++ {
		u := streamFor(seed, 64)
		if off := arbitraryOffset(u, 10, 50, 4); off > 50 {
			t.Fatalf("seed %d: offset %d past limit", seed, off)
		}
		if off := arbitraryOffset(u, 2, 8, 4); off > 8 {
			t.Fatalf("seed %d: oversized segment offset %d past limit", seed, off)
		}
	}
}

func TestSaturatingMul(t *testing.T) {
	if got := saturatingMul(1<<40, 1<<40); got != ^uint64(0) {
		t.Errorf("overflow = %d, want max", got)
	}
	if got := saturatingMul(0, ^uint64(0)); got != 0 {
		t.Errorf("zero = %d", got)
	}
	if got := saturatingMul(6, 7); got != 42 {
		t.Errorf("6*7 = %d", got)
	}
}
