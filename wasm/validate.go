package wasm

import (
	"strconv"

	"github.com/wippyai/wasmgen/errors"
)

// MaxSubtypingDepth is the deepest supertype chain the binary format admits.
const MaxSubtypingDepth = 63

// Validate checks the module for structural and type validity. Function
// bodies are type checked for the instruction subset this package decodes.
func (m *Module) Validate() error {
	v := &validator{m: m}
	v.globals = m.GlobalTypes()
	v.tables = m.TableTypes()
	v.memories = m.MemoryTypes()
	v.tags = m.TagTypes()
	v.numTypes = uint32(m.NumTypes())
	v.numFuncs = uint32(m.NumImported(KindFunc) + len(m.Funcs))
	v.declared = m.declaredFuncs()

	steps := []func() error{
		v.validateTypes,
		v.validateImports,
		v.validateFuncs,
		v.validateTables,
		v.validateMemories,
		v.validateTags,
		v.validateGlobals,
		v.validateExports,
		v.validateStart,
		v.validateElements,
		v.validateData,
		v.validateCode,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// ParseModuleValidate parses a WebAssembly binary and validates it.
func ParseModuleValidate(data []byte) (*Module, error) {
	m, err := ParseModule(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

type validator struct {
	m        *Module
	declared map[uint32]bool
	globals  []GlobalType
	tables   []TableType
	memories []MemoryType
	tags     []TagType
	numTypes uint32
	numFuncs uint32
}

func invalid(path []string, format string, args ...any) error {
	return errors.New(errors.PhaseValidate, errors.KindInvalidData).Path(path...).Detail(format, args...).Build()
}

func outOfBounds(path []string, idx uint32, n int) error {
	return errors.OutOfBounds(errors.PhaseValidate, path, int(idx), n)
}

func itoa(i int) string { return strconv.Itoa(i) }

func (v *validator) TypeAt(idx uint32) (*SubType, bool) {
	return v.m.TypeAt(idx)
}

func (v *validator) validateTypes() error {
	var base uint32
	for gi := range v.m.Types {
		group := v.m.Types[gi].Types
		end := base + uint32(len(group))
		for i := range group {
			idx := base + uint32(i)
			path := []string{"type", itoa(int(idx))}
			st := &group[i]
			if err := v.validateComposite(path, &st.Composite, end); err != nil {
				return err
			}
			if st.Supertype == nil {
				continue
			}
			sup := *st.Supertype
			if sup >= idx {
				return invalid(path, "supertype %d must precede the subtype", sup)
			}
			parent, _ := v.m.TypeAt(sup)
			if parent.Final {
				return invalid(path, "supertype %d is final", sup)
			}
			if parent.Composite.Shared != st.Composite.Shared {
				return invalid(path, "sharedness differs from supertype %d", sup)
			}
			if !v.compositeMatches(&st.Composite, &parent.Composite) {
				return errors.TypeMismatch(errors.PhaseValidate, path, parent.Composite.String(), st.Composite.String())
			}
			if depth := v.depth(idx); depth > MaxSubtypingDepth {
				return invalid(path, "subtyping depth %d exceeds %d", depth, MaxSubtypingDepth)
			}
		}
		base = end
	}
	return nil
}

func (v *validator) depth(idx uint32) int {
	d := 1
	for {
		st, ok := v.m.TypeAt(idx)
		if !ok || st.Supertype == nil {
			return d
		}
		idx = *st.Supertype
		d++
	}
}

func (v *validator) validateComposite(path []string, ct *CompositeType, limit uint32) error {
	switch ct.Kind {
	case CompFunc:
		if ct.Func == nil {
			return invalid(path, "missing func type")
		}
		for _, p := range ct.Func.Params {
			if err := v.validateValType(path, p, limit); err != nil {
				return err
			}
		}
		for _, r := range ct.Func.Results {
			if err := v.validateValType(path, r, limit); err != nil {
				return err
			}
		}
	case CompArray:
		if ct.Array == nil {
			return invalid(path, "missing array type")
		}
		return v.validateStorage(path, ct.Array.Field.Storage, limit)
	case CompStruct:
		if ct.Struct == nil {
			return invalid(path, "missing struct type")
		}
		for _, f := range ct.Struct.Fields {
			if err := v.validateStorage(path, f.Storage, limit); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *validator) validateStorage(path []string, s StorageType, limit uint32) error {
	if s.Kind != StorageVal {
		return nil
	}
	return v.validateValType(path, s.Val, limit)
}

// validateValType checks that concrete references stay below limit.
func (v *validator) validateValType(path []string, t ValType, limit uint32) error {
	if t.Kind != ValRef || !t.Ref.Heap.Concrete {
		return nil
	}
	if t.Ref.Heap.Index >= limit {
		return outOfBounds(path, t.Ref.Heap.Index, int(limit))
	}
	return nil
}

func (v *validator) compositeMatches(sub, sup *CompositeType) bool {
	if sub.Kind != sup.Kind {
		return false
	}
	switch sub.Kind {
	case CompFunc:
		a, b := sub.Func, sup.Func
		if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
			return false
		}
		for i := range a.Params {
			if !ValTypeIsSubType(v, b.Params[i], a.Params[i]) {
				return false
			}
		}
		for i := range a.Results {
			if !ValTypeIsSubType(v, a.Results[i], b.Results[i]) {
				return false
			}
		}
		return true
	case CompArray:
		return v.fieldMatches(sub.Array.Field, sup.Array.Field)
	case CompStruct:
		if len(sub.Struct.Fields) < len(sup.Struct.Fields) {
			return false
		}
		for i := range sup.Struct.Fields {
			if !v.fieldMatches(sub.Struct.Fields[i], sup.Struct.Fields[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func (v *validator) fieldMatches(a, b FieldType) bool {
	if a.Mutable != b.Mutable || a.Storage.Kind != b.Storage.Kind {
		return false
	}
	if a.Storage.Kind != StorageVal {
		return true
	}
	if a.Mutable {
		return a.Storage.Val == b.Storage.Val
	}
	return ValTypeIsSubType(v, a.Storage.Val, b.Storage.Val)
}

func (v *validator) funcType(path []string, idx uint32) (*FuncType, error) {
	st, ok := v.m.TypeAt(idx)
	if !ok {
		return nil, outOfBounds(path, idx, int(v.numTypes))
	}
	if st.Composite.Kind != CompFunc {
		return nil, errors.TypeMismatch(errors.PhaseValidate, path, "func type", st.Composite.Kind.String()+" type")
	}
	return st.Composite.Func, nil
}

func (v *validator) validateRef(path []string, r RefType) error {
	return v.validateValType(path, Ref(r), v.numTypes)
}

func (v *validator) validateLimits(path []string, l Limits, maxUnits uint64) error {
	if l.Min > maxUnits {
		return invalid(path, "minimum %d exceeds %d", l.Min, maxUnits)
	}
	if l.Max != nil {
		if *l.Max > maxUnits {
			return invalid(path, "maximum %d exceeds %d", *l.Max, maxUnits)
		}
		if *l.Max < l.Min {
			return invalid(path, "maximum %d below minimum %d", *l.Max, l.Min)
		}
	}
	return nil
}

func (v *validator) validateTableType(path []string, t TableType) error {
	if err := v.validateRef(path, t.Elem); err != nil {
		return err
	}
	max := TableMaxElements32
	if t.Limits.Is64 {
		max = ^uint64(0)
	}
	return v.validateLimits(path, t.Limits, max)
}

func (v *validator) validateMemoryType(path []string, mt MemoryType) error {
	log2 := DefaultPageSizeLog2
	if mt.Limits.PageSizeLog2 != nil {
		log2 = *mt.Limits.PageSizeLog2
		if log2 != 0 && log2 != DefaultPageSizeLog2 {
			return invalid(path, "unsupported page size 2^%d", log2)
		}
	}
	if mt.Limits.Shared && mt.Limits.Max == nil {
		return invalid(path, "shared memory must have a maximum")
	}
	maxPages := uint64(1) << (32 - log2)
	if mt.Limits.Is64 {
		maxPages = ^uint64(0)
		if log2 > 0 {
			maxPages = 1 << (64 - log2)
		}
	}
	return v.validateLimits(path, mt.Limits, maxPages)
}

func (v *validator) validateGlobalType(path []string, g GlobalType) error {
	return v.validateValType(path, g.Val, v.numTypes)
}

func (v *validator) validateTagType(path []string, t TagType) error {
	ft, err := v.funcType(path, t.TypeIdx)
	if err != nil {
		return err
	}
	if len(ft.Results) != 0 {
		return invalid(path, "tag type must not have results")
	}
	return nil
}

func (v *validator) validateImports() error {
	for i := range v.m.Imports {
		imp := &v.m.Imports[i]
		path := []string{"import", itoa(i)}
		var err error
		switch imp.Desc.Kind {
		case KindFunc:
			_, err = v.funcType(path, imp.Desc.Func)
		case KindTable:
			err = v.validateTableType(path, imp.Desc.Table)
		case KindMemory:
			err = v.validateMemoryType(path, imp.Desc.Memory)
		case KindGlobal:
			err = v.validateGlobalType(path, imp.Desc.Global)
		case KindTag:
			err = v.validateTagType(path, imp.Desc.Tag)
		default:
			err = invalid(path, "unknown import kind %d", imp.Desc.Kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateFuncs() error {
	for i, idx := range v.m.Funcs {
		if _, err := v.funcType([]string{"func", itoa(i)}, idx); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateTables() error {
	numImported := len(v.tables) - len(v.m.Tables)
	for i := range v.m.Tables {
		t := &v.m.Tables[i]
		path := []string{"table", itoa(numImported + i)}
		if err := v.validateTableType(path, t.Type); err != nil {
			return err
		}
		if t.Init == nil {
			if !t.Type.Elem.Nullable {
				return invalid(path, "non-nullable table requires an initializer")
			}
			continue
		}
		if err := v.validateConstExpr(append(path, "init"), t.Init, Ref(t.Type.Elem), len(v.globals)); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateMemories() error {
	numImported := len(v.memories) - len(v.m.Memories)
	for i := range v.m.Memories {
		if err := v.validateMemoryType([]string{"memory", itoa(numImported + i)}, v.m.Memories[i]); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateTags() error {
	for i, t := range v.m.Tags {
		if err := v.validateTagType([]string{"tag", itoa(i)}, t); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateGlobals() error {
	numImported := len(v.globals) - len(v.m.Globals)
	for i := range v.m.Globals {
		g := &v.m.Globals[i]
		idx := numImported + i
		path := []string{"global", itoa(idx)}
		if err := v.validateGlobalType(path, g.Type); err != nil {
			return err
		}
		if err := v.validateConstExpr(append(path, "init"), g.Init, g.Type.Val, idx); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateExports() error {
	seen := make(map[string]bool, len(v.m.Exports))
	for i, exp := range v.m.Exports {
		path := []string{"export", itoa(i)}
		if seen[exp.Name] {
			return errors.Duplicate(errors.PhaseValidate, path, exp.Name)
		}
		seen[exp.Name] = true
		var n int
		switch exp.Kind {
		case KindFunc:
			n = int(v.numFuncs)
		case KindTable:
			n = len(v.tables)
		case KindMemory:
			n = len(v.memories)
		case KindGlobal:
			n = len(v.globals)
		case KindTag:
			n = len(v.tags)
		default:
			return invalid(path, "unknown export kind %d", exp.Kind)
		}
		if int(exp.Idx) >= n {
			return outOfBounds(path, exp.Idx, n)
		}
	}
	return nil
}

func (v *validator) validateStart() error {
	if v.m.Start == nil {
		return nil
	}
	path := []string{"start"}
	typeIdx, ok := v.m.FuncTypeIndex(*v.m.Start)
	if !ok {
		return outOfBounds(path, *v.m.Start, int(v.numFuncs))
	}
	ft, err := v.funcType(path, typeIdx)
	if err != nil {
		return err
	}
	if len(ft.Params) != 0 || len(ft.Results) != 0 {
		return errors.TypeMismatch(errors.PhaseValidate, path, "(func)", ft.String())
	}
	return nil
}

func (v *validator) validateElements() error {
	for i := range v.m.Elements {
		e := &v.m.Elements[i]
		path := []string{"elem", itoa(i)}
		if err := v.validateRef(path, e.Type); err != nil {
			return err
		}
		if e.Mode == ElemActive {
			ti := e.TableIndex()
			if int(ti) >= len(v.tables) {
				return outOfBounds(path, ti, len(v.tables))
			}
			table := v.tables[ti]
			offsetType := I32
			if table.Limits.Is64 {
				offsetType = I64
			}
			if err := v.validateConstExpr(append(path, "offset"), e.Offset, offsetType, len(v.globals)); err != nil {
				return err
			}
			if !RefTypeIsSubType(v, e.Type, table.Elem) {
				return errors.TypeMismatch(errors.PhaseValidate, path, table.Elem.String(), e.Type.String())
			}
		}
		if !e.UsesExprs {
			if e.Type != FuncRef {
				return invalid(path, "function index segments must have type funcref")
			}
			for _, f := range e.Funcs {
				if f >= v.numFuncs {
					return outOfBounds(path, f, int(v.numFuncs))
				}
			}
			continue
		}
		for j, expr := range e.Exprs {
			if err := v.validateConstExpr(append(path, itoa(j)), expr, Ref(e.Type), len(v.globals)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *validator) validateData() error {
	if v.m.DataCount != nil && int(*v.m.DataCount) != len(v.m.Data) {
		return invalid([]string{"datacount"}, "declares %d segments, data section has %d", *v.m.DataCount, len(v.m.Data))
	}
	for i := range v.m.Data {
		d := &v.m.Data[i]
		if d.Mode != DataActive {
			continue
		}
		path := []string{"data", itoa(i)}
		if int(d.MemIdx) >= len(v.memories) {
			return outOfBounds(path, d.MemIdx, len(v.memories))
		}
		offsetType := I32
		if v.memories[d.MemIdx].Limits.Is64 {
			offsetType = I64
		}
		if err := v.validateConstExpr(append(path, "offset"), d.Offset, offsetType, len(v.globals)); err != nil {
			return err
		}
	}
	return nil
}

// declaredFuncs collects the functions ref.func may name inside bodies.
func (m *Module) declaredFuncs() map[uint32]bool {
	out := make(map[uint32]bool)
	addExpr := func(expr ConstExpr) {
		for _, in := range expr {
			if in.Opcode == OpRefFunc {
				out[in.Imm.(uint32)] = true
			}
		}
	}
	for i := range m.Elements {
		for _, f := range m.Elements[i].Funcs {
			out[f] = true
		}
		for _, expr := range m.Elements[i].Exprs {
			addExpr(expr)
		}
	}
	for _, exp := range m.Exports {
		if exp.Kind == KindFunc {
			out[exp.Idx] = true
		}
	}
	for i := range m.Globals {
		addExpr(m.Globals[i].Init)
	}
	for i := range m.Tables {
		addExpr(m.Tables[i].Init)
	}
	return out
}
