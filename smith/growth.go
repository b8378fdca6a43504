package smith

import (
	"math"

	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

// graduallyGrow picks a value in [lo, hi], landing in [lo, maxInbounds] with
// probability pctInbounds and skewed towards lo.
func graduallyGrow(u *oracle.Unstructured, lo, maxInbounds, hi uint64) uint64 {
	if lo == hi {
		return lo
	}
	x := float64(u.Uint32()) / float64(math.MaxUint32)
	var v float64
	if x < pctInbounds {
		if lo == maxInbounds {
			return lo
		}
		v = mapRange(math.Pow(x/pctInbounds, 6), float64(lo), float64(maxInbounds))
	} else {
		v = mapRange((x-pctInbounds)/(1-pctInbounds), float64(lo), float64(hi))
	}
	return clampFloat(v, lo, hi)
}

// mapRange maps x in [0, 1] linearly onto [lo, hi].
func mapRange(x, lo, hi float64) float64 {
	return lo + x*(hi-lo)
}

func clampFloat(v float64, lo, hi uint64) uint64 {
	v = math.Round(v)
	switch {
	case v <= float64(lo):
		return lo
	case v >= float64(hi):
		return hi
	}
	return uint64(v)
}

// arbitraryOffset picks a segment offset for a table or memory with the given
// minimum size. Segments that cannot fit are placed anywhere.
func arbitraryOffset(u *oracle.Unstructured, limitMin, limitMax, segmentSize uint64) uint64 {
	if segmentSize > limitMin {
		return oracle.IntInRange(u, 0, limitMax)
	}
	return graduallyGrow(u, 0, limitMin-segmentSize, limitMax)
}

// arbitraryLimits64 draws a minimum, biased to stay below maxInbounds, and an
// optional maximum no smaller than it.
func arbitraryLimits64(u *oracle.Unstructured, minMin *uint64, maxMin uint64, maxRequired bool, maxInbounds uint64) (uint64, *uint64) {
	var floor uint64
	if minMin != nil {
		floor = *minMin
	}
	lo := graduallyGrow(u, floor, maxInbounds, maxMin)
	if maxRequired || u.Bool() {
		hi := oracle.IntInRange(u, lo, maxMin)
		return lo, &hi
	}
	return lo, nil
}

func (m *Module) arbitraryTableType(u *oracle.Unstructured) (wasm.TableType, error) {
	table64 := m.config.Memory64 && u.Bool()
	var minElems *uint64
	if m.config.DisallowTraps {
		one := uint64(1)
		minElems = &one
	}
	var floor uint64
	if minElems != nil {
		floor = *minElems
	}
	maxElems := max(floor, m.config.MaxTableElements)
	if !table64 {
		maxElems = min(maxElems, math.MaxUint32)
	}
	lo, hi := arbitraryLimits64(u, minElems, maxElems, m.config.TableMaxSizeRequired, min(10_000, maxElems))

	elem, err := m.arbitraryRefType(u)
	if err != nil {
		return wasm.TableType{}, err
	}
	return wasm.TableType{
		Elem: elem,
		Limits: wasm.Limits{
			Min:    lo,
			Max:    hi,
			Is64:   table64,
			Shared: m.isSharedRefType(elem),
		},
	}, nil
}

func (m *Module) arbitraryMemType(u *oracle.Unstructured) wasm.MemoryType {
	shared := m.config.Threads && u.Ratio(1, 4)
	mem64 := m.config.Memory64 && u.Bool()

	var pageLog2 *uint32
	if m.config.CustomPageSizes && u.Bool() {
		l := wasm.DefaultPageSizeLog2
		if u.Bool() {
			l = 0
		}
		pageLog2 = &l
	}
	log2 := wasm.DefaultPageSizeLog2
	if pageLog2 != nil {
		log2 = *pageLog2
	}

	var minPages *uint64
	if m.config.DisallowTraps {
		one := uint64(1)
		minPages = &one
	}
	var floor uint64
	if minPages != nil {
		floor = *minPages
	}
	var maxPages uint64
	if mem64 {
		maxPages = m.config.MaxMemory64Bytes >> log2
	} else {
		maxPages = min(min(m.config.MaxMemory32Bytes, 1<<32)>>log2, math.MaxUint32)
	}
	maxPages = max(floor, maxPages)

	// Keep the combined in-bounds size of all memories around 1 GiB.
	memories := uint64(max(1, m.config.MaxMemories))
	inbounds := ((1 << 30) / memories) >> log2
	inbounds = min(max(inbounds, floor), maxPages)

	lo, hi := arbitraryLimits64(u, minPages, maxPages, m.config.MemoryMaxSizeRequired || shared, inbounds)
	return wasm.MemoryType{Limits: wasm.Limits{
		Min:          lo,
		Max:          hi,
		Is64:         mem64,
		Shared:       shared,
		PageSizeLog2: pageLog2,
	}}
}
