package smith

import (
	"math"

	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

// elemPlacement is a segment kind plus, for active segments, its target and
// offset. maxSize, when set, is the number of items that fit in bounds.
type elemPlacement struct {
	table   *uint32
	offset  Offset
	maxSize *uint64
	kind    ElementKind
}

func (m *Module) arbitraryElems(u *oracle.Unstructured) error {
	var globalI32, globalI64 []uint32
	if !m.config.DisallowTraps {
		globalI32 = m.globalsForConstExpr(wasm.I32, true)
		globalI64 = m.globalsForConstExpr(wasm.I64, true)
	}

	activeElem := func(u *oracle.Unstructured, table *uint32, ty wasm.TableType) (elemPlacement, error) {
		p := elemPlacement{kind: ElementActive, table: table}
		globals := globalI32
		if ty.Limits.Is64 {
			globals = globalI64
		}
		if len(globals) > 0 && u.Bool() {
			g, err := oracle.Choose(u, globals)
			if err != nil {
				return p, err
			}
			p.offset = Offset{Kind: OffsetGlobal, Global: g}
			return p, nil
		}

		minSize := ty.Limits.Min
		var maxSize uint64
		switch {
		case m.config.DisallowTraps:
			maxSize = minSize
		case ty.Limits.Is64:
			maxSize = math.MaxUint64
		default:
			maxSize = math.MaxUint32
		}
		offset := arbitraryOffset(u, minSize, maxSize, 0)
		if m.config.DisallowTraps || (offset <= minSize && oracle.IntInRange(u, 0, chanceOffsetInbounds) != 0) {
			hint := minSize - offset
			p.maxSize = &hint
		}
		if ty.Limits.Is64 {
			p.offset = Offset{Kind: OffsetConst64, Value: int64(offset)}
		} else {
			p.offset = Offset{Kind: OffsetConst32, Value: int64(int32(uint32(offset)))}
		}
		return p, nil
	}

	var choices []func(*oracle.Unstructured) (elemPlacement, error)
	if m.config.BulkMemory {
		choices = append(choices,
			func(*oracle.Unstructured) (elemPlacement, error) { return elemPlacement{kind: ElementPassive}, nil },
			func(*oracle.Unstructured) (elemPlacement, error) { return elemPlacement{kind: ElementDeclared}, nil })
	}
	for i, ty := range m.tables {
		// Any non-empty segment on an empty table traps, so such tables are
		// rarely targeted.
		if ty.Limits.Min == 0 && oracle.IntInRange(u, 0, chanceSegmentOnEmpty) != 0 {
			continue
		}
		if i == 0 && ty.Elem == wasm.FuncRef {
			choices = append(choices, func(u *oracle.Unstructured) (elemPlacement, error) {
				return activeElem(u, nil, ty)
			})
		}
		if m.config.BulkMemory {
			idx := index(i)
			choices = append(choices, func(u *oracle.Unstructured) (elemPlacement, error) {
				return activeElem(u, &idx, ty)
			})
		}
	}
	if len(choices) == 0 {
		return nil
	}

	return oracle.Loop(u, m.config.MinElementSegments, m.config.MaxElementSegments, func() (bool, error) {
		gen, err := oracle.Choose(u, choices)
		if err != nil {
			return false, err
		}
		p, err := gen(u)
		if err != nil {
			return false, err
		}
		hi := m.config.MaxElements
		if p.maxSize != nil && *p.maxSize < uint64(hi) {
			hi = int(*p.maxSize)
		}
		lo := min(m.config.MinElements, hi)

		var ty wasm.RefType
		if p.kind == ElementActive {
			var ti uint32
			if p.table != nil {
				ti = *p.table
			}
			ty, err = m.arbitraryMatchingRefType(u, m.tables[ti].Elem)
		} else {
			ty, err = m.arbitraryRefType(u)
		}
		if err != nil {
			return false, err
		}

		// Function index lists can only encode funcref segments.
		canUseFuncList := ty == wasm.FuncRef
		if !m.config.ReferenceTypes && !canUseFuncList {
			panic("smith: element type other than funcref without reference types")
		}
		var candidates []uint32
		if canUseFuncList {
			for i := range m.funcs {
				candidates = append(candidates, index(i))
			}
		}

		seg := ElementSegment{Kind: p.kind, Table: p.table, Offset: p.offset, Type: ty}
		if !m.config.ReferenceTypes || (canUseFuncList && u.Bool()) {
			if len(candidates) > 0 {
				err = oracle.Loop(u, lo, hi, func() (bool, error) {
					f, err := oracle.Choose(u, candidates)
					if err != nil {
						return false, err
					}
					seg.Functions = append(seg.Functions, f)
					return true, nil
				})
			}
		} else {
			seg.UsesExprs = true
			err = oracle.Loop(u, lo, hi, func() (bool, error) {
				expr, err := m.arbitraryConstExpr(u, wasm.Ref(ty), true)
				if err != nil {
					return false, err
				}
				seg.Exprs = append(seg.Exprs, expr)
				return true, nil
			})
		}
		if err != nil {
			return false, err
		}
		m.elems = append(m.elems, seg)
		return true, nil
	})
}
