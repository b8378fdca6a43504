package smith

import (
	"fmt"

	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

// maxSubtypingDepth stays below the format limit of 63 so chains built from
// templates still have room.
const maxSubtypingDepth = 60

func (m *Module) arbitraryTypes(u *oracle.Unstructured) error {
	for len(m.types) < m.config.MinTypes {
		before := len(m.types)
		if err := m.arbitraryRecGroup(u, false); err != nil {
			return err
		}
		// An exhausted stream keeps choosing the same skipped clone.
		if len(m.types) == before && u.IsEmpty() {
			return oracle.ErrNotEnoughData
		}
	}
	for len(m.types) < m.config.MaxTypes {
		if !u.Bool() {
			break
		}
		if err := m.arbitraryRecGroup(u, true); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) addType(st SubType) uint32 {
	idx := index(len(m.types))
	if st.Supertype != nil {
		super := *st.Supertype
		if m.isSharedType(super) != st.Composite.Shared {
			panic(fmt.Sprintf("smith: type %d and its supertype %d disagree on sharedness", idx, super))
		}
		m.superToSubTypes[super] = append(m.superToSubTypes[super], idx)
	}
	switch st.Composite.Kind {
	case wasm.CompArray:
		m.arrayTypes = append(m.arrayTypes, idx)
	case wasm.CompFunc:
		m.funcTypes = append(m.funcTypes, idx)
	case wasm.CompStruct:
		m.structTypes = append(m.structTypes, idx)
	}
	if !st.Final && st.Depth < maxSubtypingDepth {
		m.canSubtype = append(m.canSubtype, idx)
	}
	m.types = append(m.types, st)
	return idx
}

func (m *Module) arbitraryRecGroup(u *oracle.Unstructured, allowEmpty bool) error {
	start := len(m.types)
	defer func() { m.typeLimit = -1 }()

	if !m.config.GC {
		m.typeLimit = len(m.types)
		st, err := m.arbitrarySubType(u)
		if err != nil {
			return err
		}
		m.addType(st)
		m.recGroups = append(m.recGroups, span{start, len(m.types)})
		return nil
	}

	if len(m.recGroups) > 0 && u.Ratio(1, 255) {
		return m.cloneRecGroup(u, allowEmpty)
	}

	minSize := 1
	if allowEmpty {
		minSize = 0
	}
	size := oracle.IntInRange(u, minSize, m.config.MaxTypes-len(m.types))
	m.typeLimit = len(m.types) + size
	for i := 0; i < size; i++ {
		st, err := m.arbitrarySubType(u)
		if err != nil {
			return err
		}
		m.addType(st)
	}
	m.recGroups = append(m.recGroups, span{start, len(m.types)})
	return nil
}

// cloneRecGroup appends a copy of an existing rec group. Copies reference the
// original group's types and are not linked to them by subtyping. Nothing is
// added when the chosen group is empty but must not be, or does not fit.
func (m *Module) cloneRecGroup(u *oracle.Unstructured, allowEmpty bool) error {
	group, err := oracle.Choose(u, m.recGroups)
	if err != nil {
		return err
	}
	if group.len() == 0 && !allowEmpty {
		return nil
	}
	if group.len() > max(0, m.config.MaxTypes-len(m.types)) {
		return nil
	}
	start := len(m.types)
	for i := group.start; i < group.end; i++ {
		m.addType(m.types[i])
	}
	m.recGroups = append(m.recGroups, span{start, len(m.types)})
	return nil
}

func (m *Module) arbitrarySubType(u *oracle.Unstructured) (SubType, error) {
	if !m.config.GC {
		shared := m.arbitraryShared(u)
		var ft *wasm.FuncType
		err := m.propagateShared(shared, func() (err error) {
			ft, err = m.arbitraryFuncType(u)
			return err
		})
		if err != nil {
			return SubType{}, err
		}
		return SubType{
			SubType: wasm.SubType{
				Final:     true,
				Composite: wasm.CompositeType{Kind: wasm.CompFunc, Func: ft, Shared: shared},
			},
			Depth: 1,
		}, nil
	}

	if len(m.canSubtype) > 0 && u.Ratio(1, 32) {
		return m.arbitrarySubTypeOfSuperType(u)
	}
	final := u.Bool()
	ct, err := m.arbitraryCompositeType(u)
	if err != nil {
		return SubType{}, err
	}
	return SubType{SubType: wasm.SubType{Final: final, Composite: ct}, Depth: 1}, nil
}

func (m *Module) arbitrarySubTypeOfSuperType(u *oracle.Unstructured) (SubType, error) {
	super, err := oracle.Choose(u, m.canSubtype)
	if err != nil {
		return SubType{}, err
	}
	base := m.types[super]
	ct := base.Composite
	switch ct.Kind {
	case wasm.CompArray:
		f, err := m.arbitraryMatchingFieldType(u, ct.Array.Field)
		if err != nil {
			return SubType{}, err
		}
		ct.Array = &wasm.ArrayType{Field: f}
	case wasm.CompFunc:
		ft, err := m.arbitraryMatchingFuncType(u, ct.Func)
		if err != nil {
			return SubType{}, err
		}
		ct.Func = ft
	case wasm.CompStruct:
		var st *wasm.StructType
		err := m.propagateShared(ct.Shared, func() (err error) {
			st, err = m.arbitraryMatchingStructType(u, ct.Struct)
			return err
		})
		if err != nil {
			return SubType{}, err
		}
		ct.Struct = st
	}
	return SubType{
		SubType: wasm.SubType{
			Final:     u.Bool(),
			Supertype: &super,
			Composite: ct,
		},
		Depth: 1 + base.Depth,
	}, nil
}

func (m *Module) arbitraryCompositeType(u *oracle.Unstructured) (wasm.CompositeType, error) {
	shared := m.arbitraryShared(u)
	ct := wasm.CompositeType{Shared: shared}

	kind := wasm.CompFunc
	if m.config.GC {
		switch oracle.IntInRange(u, 0, 2) {
		case 0:
			kind = wasm.CompArray
		case 2:
			kind = wasm.CompStruct
		}
	}
	ct.Kind = kind

	err := m.propagateShared(shared, func() error {
		switch kind {
		case wasm.CompArray:
			f, err := m.arbitraryFieldType(u)
			if err != nil {
				return err
			}
			ct.Array = &wasm.ArrayType{Field: f}
		case wasm.CompFunc:
			ft, err := m.arbitraryFuncType(u)
			if err != nil {
				return err
			}
			ct.Func = ft
		case wasm.CompStruct:
			st, err := m.arbitraryStructType(u)
			if err != nil {
				return err
			}
			ct.Struct = st
		}
		return nil
	})
	return ct, err
}

func (m *Module) arbitraryStructType(u *oracle.Unstructured) (*wasm.StructType, error) {
	n := oracle.IntInRange(u, 0, 20)
	fields := make([]wasm.FieldType, 0, n)
	for i := 0; i < n; i++ {
		f, err := m.arbitraryFieldType(u)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return &wasm.StructType{Fields: fields}, nil
}

func (m *Module) arbitraryFieldType(u *oracle.Unstructured) (wasm.FieldType, error) {
	s, err := m.arbitraryStorageType(u)
	if err != nil {
		return wasm.FieldType{}, err
	}
	return wasm.FieldType{Storage: s, Mutable: u.Bool()}, nil
}

func (m *Module) arbitraryStorageType(u *oracle.Unstructured) (wasm.StorageType, error) {
	switch oracle.IntInRange(u, 0, 2) {
	case 0:
		return wasm.StorageType{Kind: wasm.StorageI8}, nil
	case 1:
		return wasm.StorageType{Kind: wasm.StorageI16}, nil
	}
	vt, err := m.arbitraryValType(u)
	if err != nil {
		return wasm.StorageType{}, err
	}
	return wasm.StorageType{Kind: wasm.StorageVal, Val: vt}, nil
}

func (m *Module) arbitraryFuncType(u *oracle.Unstructured) (*wasm.FuncType, error) {
	const maxParams = 20
	ft := &wasm.FuncType{}
	err := oracle.Loop(u, 0, maxParams, func() (bool, error) {
		vt, err := m.arbitraryValType(u)
		if err != nil {
			return false, err
		}
		ft.Params = append(ft.Params, vt)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	maxResults := 1
	if m.config.MultiValue {
		maxResults = maxParams
	}
	err = oracle.Loop(u, 0, maxResults, func() (bool, error) {
		vt, err := m.arbitraryValType(u)
		if err != nil {
			return false, err
		}
		ft.Results = append(ft.Results, vt)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return ft, nil
}

// propagateShared runs f with the must-share flag set to shared and restores
// the previous value afterwards.
func (m *Module) propagateShared(shared bool, f func() error) error {
	prev := m.mustShare
	m.mustShare = shared
	err := f()
	m.mustShare = prev
	return err
}

func (m *Module) arbitraryShared(u *oracle.Unstructured) bool {
	if m.mustShare {
		return true
	}
	return m.config.SharedEverythingThreads && u.Ratio(1, 4)
}
