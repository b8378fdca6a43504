package smith

import (
	"slices"
	"testing"

	"github.com/wippyai/wasmgen/config"
)

func TestComputeInterestingValues_SignedMinimums(t *testing.T) {
	m := empty(config.Default())
	m.computeInterestingValues()

	tests := []struct {
		name string
		v64  uint64
		v32  uint32
	}{
		{"min_int8", 0xffff_ffff_ffff_ff80, 0xffff_ff80},
		{"min_int16", 0xffff_ffff_ffff_8000, 0xffff_8000},
		{"min_int32", 0xffff_ffff_8000_0000, 0x8000_0000},
		{"min_int64", 0x8000_0000_0000_0000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := slices.BinarySearch(m.InterestingValues64(), tt.v64); !ok {
				t.Errorf("64-bit table lacks %#x", tt.v64)
			}
			if _, ok := slices.BinarySearch(m.InterestingValues32(), tt.v32); !ok {
				t.Errorf("32-bit table lacks %#x", tt.v32)
			}
		})
	}
	if !slices.IsSorted(m.InterestingValues64()) || !slices.IsSorted(m.InterestingValues32()) {
		t.Error("tables are not sorted")
	}
}
