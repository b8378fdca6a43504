package smith

import (
	"math"

	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

// dataOffset picks an offset for a segment of dataLen bytes in a memory
// whose minimum size is minBytes.
type dataOffset func(u *oracle.Unstructured, minBytes uint64, dataLen int) Offset

func (m *Module) arbitraryData(u *oracle.Unstructured) error {
	if len(m.memories) == 0 && !m.config.BulkMemory {
		return nil
	}
	disallowTraps := m.config.DisallowTraps

	choices32 := []dataOffset{func(u *oracle.Unstructured, minBytes uint64, dataLen int) Offset {
		lo := min(minBytes, math.MaxUint32)
		hi := uint64(math.MaxUint32)
		if disallowTraps {
			hi = lo
		}
		v := arbitraryOffset(u, lo, hi, uint64(dataLen))
		return Offset{Kind: OffsetConst32, Value: int64(int32(uint32(v)))}
	}}
	choices64 := []dataOffset{func(u *oracle.Unstructured, minBytes uint64, dataLen int) Offset {
		hi := uint64(math.MaxUint64)
		if disallowTraps {
			hi = minBytes
		}
		v := arbitraryOffset(u, minBytes, hi, uint64(dataLen))
		return Offset{Kind: OffsetConst64, Value: int64(v)}
	}}
	if !disallowTraps {
		for _, g := range m.globalsForConstExpr(wasm.I32, true) {
			choices32 = append(choices32, func(*oracle.Unstructured, uint64, int) Offset {
				return Offset{Kind: OffsetGlobal, Global: g}
			})
		}
		for _, g := range m.globalsForConstExpr(wasm.I64, true) {
			choices64 = append(choices64, func(*oracle.Unstructured, uint64, int) Offset {
				return Offset{Kind: OffsetGlobal, Global: g}
			})
		}
	}

	// Segments on a memory with no initial pages trap, so such memories are
	// rarely targeted.
	var memories []uint32
	for i, mem := range m.memories {
		if mem.Limits.Min > 0 || oracle.IntInRange(u, 0, chanceSegmentOnEmpty) == 0 {
			memories = append(memories, index(i))
		}
	}
	if len(memories) == 0 && !m.config.BulkMemory {
		return nil
	}

	return oracle.Loop(u, m.config.MinDataSegments, m.config.MaxDataSegments, func() (bool, error) {
		seg := DataSegment{Init: u.ByteSlice()}
		if m.config.BulkMemory && (len(memories) == 0 || u.Bool()) {
			seg.Kind = DataPassive
			m.data = append(m.data, seg)
			return true, nil
		}

		memIdx, err := oracle.Choose(u, memories)
		if err != nil {
			return false, err
		}
		mem := m.memories[memIdx]
		page := mem.PageSize()
		minBytes := saturatingMul(mem.Limits.Min, page)
		choices := choices32
		if mem.Limits.Is64 {
			choices = choices64
		}
		f, err := oracle.Choose(u, choices)
		if err != nil {
			return false, err
		}
		offset := f(u, minBytes, len(seg.Init))

		// Truncate the segment to the minimum memory size and clamp the
		// offset so it fits.
		if disallowTraps {
			maxSize := min(math.MaxUint64/page, mem.Limits.Min) * page
			if uint64(len(seg.Init)) > maxSize {
				seg.Init = seg.Init[:maxSize]
			}
			maxOffset := maxSize - uint64(len(seg.Init))
			switch offset.Kind {
			case OffsetConst32:
				offset.Value = int64(int32(uint32(min(uint64(uint32(offset.Value)), maxOffset))))
			case OffsetConst64:
				offset.Value = int64(min(uint64(offset.Value), maxOffset))
			default:
				panic("smith: global data offset with traps disallowed")
			}
		}
		seg.Kind = DataActive
		seg.Memory = memIdx
		seg.Offset = offset
		m.data = append(m.data, seg)
		return true, nil
	})
}
