package wasm

import (
	"errors"
	"fmt"

	"github.com/wippyai/wasmgen/wasm/internal/binary"
)

// Parsing errors returned by ParseModule.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

// ParseModule parses a WebAssembly binary module.
func ParseModule(data []byte) (*Module, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	m := &Module{}
	var lastOrder int

	for !r.EOF() {
		sectionID, err := r.ReadByte()
		if err != nil {
			return nil, r.WrapError("section header", err)
		}
		if sectionID != SectionCustom {
			order, ok := sectionOrder[sectionID]
			if !ok {
				return nil, fmt.Errorf("unknown section ID: 0x%02x", sectionID)
			}
			if order <= lastOrder {
				return nil, fmt.Errorf("section %d appears out of order", sectionID)
			}
			lastOrder = order
		}

		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}
		sr, err := r.Sub(int(size))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}

		var parse func(*binary.Reader, *Module) error
		var name string
		switch sectionID {
		case SectionCustom:
			parse, name = parseCustomSection, "custom"
		case SectionType:
			parse, name = parseTypeSection, "type"
		case SectionImport:
			parse, name = parseImportSection, "import"
		case SectionFunction:
			parse, name = parseFunctionSection, "function"
		case SectionTable:
			parse, name = parseTableSection, "table"
		case SectionMemory:
			parse, name = parseMemorySection, "memory"
		case SectionTag:
			parse, name = parseTagSection, "tag"
		case SectionGlobal:
			parse, name = parseGlobalSection, "global"
		case SectionExport:
			parse, name = parseExportSection, "export"
		case SectionStart:
			parse, name = parseStartSection, "start"
		case SectionElement:
			parse, name = parseElementSection, "element"
		case SectionDataCount:
			parse, name = parseDataCountSection, "data count"
		case SectionCode:
			parse, name = parseCodeSection, "code"
		case SectionData:
			parse, name = parseDataSection, "data"
		}
		if err := parse(sr, m); err != nil {
			return nil, sr.WrapError(name+" section", err)
		}
		if !sr.EOF() {
			return nil, sr.WrapError(name+" section", fmt.Errorf("%d trailing bytes", sr.Remaining()))
		}
	}

	return m, nil
}

func parseCustomSection(r *binary.Reader, m *Module) error {
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	rest, err := r.ReadBytes(r.Remaining())
	if err != nil {
		return err
	}
	m.CustomSections = append(m.CustomSections, CustomSection{Name: name, Data: rest})
	return nil
}

func parseTypeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.KeepEmptyTypes = count == 0
	m.Types = make([]RecGroup, 0, count)
	for i := uint32(0); i < count; i++ {
		b, err := r.PeekByte()
		if err != nil {
			return err
		}
		if b != RecTypeByte {
			st, err := readSubType(r)
			if err != nil {
				return fmt.Errorf("type %d: %w", i, err)
			}
			m.Types = append(m.Types, RecGroup{Types: []SubType{st}})
			continue
		}
		_, _ = r.ReadByte()
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		group := RecGroup{Types: make([]SubType, 0, n)}
		for j := uint32(0); j < n; j++ {
			st, err := readSubType(r)
			if err != nil {
				return fmt.Errorf("rec group %d type %d: %w", i, j, err)
			}
			group.Types = append(group.Types, st)
		}
		m.Types = append(m.Types, group)
	}
	return nil
}

func readSubType(r *binary.Reader) (SubType, error) {
	b, err := r.PeekByte()
	if err != nil {
		return SubType{}, err
	}
	st := SubType{Final: true}
	if b == SubTypeByte || b == SubFinalByte {
		_, _ = r.ReadByte()
		st.Final = b == SubFinalByte
		n, err := r.ReadU32()
		if err != nil {
			return st, err
		}
		switch n {
		case 0:
		case 1:
			idx, err := r.ReadU32()
			if err != nil {
				return st, err
			}
			st.Supertype = &idx
		default:
			return st, fmt.Errorf("%d supertypes, at most one is allowed", n)
		}
	}
	st.Composite, err = readCompositeType(r)
	return st, err
}

func readCompositeType(r *binary.Reader) (CompositeType, error) {
	var ct CompositeType
	form, err := r.ReadByte()
	if err != nil {
		return ct, err
	}
	if form == byteShared {
		ct.Shared = true
		if form, err = r.ReadByte(); err != nil {
			return ct, err
		}
	}
	switch form {
	case FuncTypeByte:
		params, err := readValTypes(r)
		if err != nil {
			return ct, err
		}
		results, err := readValTypes(r)
		if err != nil {
			return ct, err
		}
		ct.Kind = CompFunc
		ct.Func = &FuncType{Params: params, Results: results}
	case ArrayTypeByte:
		f, err := readFieldType(r)
		if err != nil {
			return ct, err
		}
		ct.Kind = CompArray
		ct.Array = &ArrayType{Field: f}
	case StructTypeByte:
		n, err := r.ReadU32()
		if err != nil {
			return ct, err
		}
		fields := make([]FieldType, 0, n)
		for i := uint32(0); i < n; i++ {
			f, err := readFieldType(r)
			if err != nil {
				return ct, err
			}
			fields = append(fields, f)
		}
		ct.Kind = CompStruct
		ct.Struct = &StructType{Fields: fields}
	default:
		return ct, fmt.Errorf("unsupported composite type form 0x%02x", form)
	}
	return ct, nil
}

func readFieldType(r *binary.Reader) (FieldType, error) {
	var f FieldType
	b, err := r.PeekByte()
	if err != nil {
		return f, err
	}
	switch b {
	case byteI8:
		_, _ = r.ReadByte()
		f.Storage.Kind = StorageI8
	case byteI16:
		_, _ = r.ReadByte()
		f.Storage.Kind = StorageI16
	default:
		v, err := readValType(r)
		if err != nil {
			return f, err
		}
		f.Storage = StorageType{Kind: StorageVal, Val: v}
	}
	mut, err := r.ReadByte()
	if err != nil {
		return f, err
	}
	if mut > 1 {
		return f, fmt.Errorf("invalid mutability 0x%02x", mut)
	}
	f.Mutable = mut == 1
	return f, nil
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if int(n) > r.Remaining() {
		return nil, fmt.Errorf("value type count %d exceeds section size", n)
	}
	out := make([]ValType, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := readValType(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func readValType(r *binary.Reader) (ValType, error) {
	b, err := r.PeekByte()
	if err != nil {
		return ValType{}, err
	}
	switch b {
	case byteI32:
		_, _ = r.ReadByte()
		return I32, nil
	case byteI64:
		_, _ = r.ReadByte()
		return I64, nil
	case byteF32:
		_, _ = r.ReadByte()
		return F32, nil
	case byteF64:
		_, _ = r.ReadByte()
		return F64, nil
	case byteV128:
		_, _ = r.ReadByte()
		return V128, nil
	}
	rt, err := readRefType(r)
	if err != nil {
		return ValType{}, err
	}
	return Ref(rt), nil
}

func readRefType(r *binary.Reader) (RefType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return RefType{}, err
	}
	switch b {
	case byteRefNull, byteRef:
		h, err := readHeapType(r)
		if err != nil {
			return RefType{}, err
		}
		return RefType{Nullable: b == byteRefNull, Heap: h}, nil
	}
	a, ok := abstractFromByte(b)
	if !ok {
		return RefType{}, fmt.Errorf("invalid value type 0x%02x", b)
	}
	return RefType{Nullable: true, Heap: Abstract(false, a)}, nil
}

func readHeapType(r *binary.Reader) (HeapType, error) {
	b, err := r.PeekByte()
	if err != nil {
		return HeapType{}, err
	}
	if b == byteShared {
		_, _ = r.ReadByte()
		b, err = r.ReadByte()
		if err != nil {
			return HeapType{}, err
		}
		a, ok := abstractFromByte(b)
		if !ok {
			return HeapType{}, fmt.Errorf("invalid shared heap type 0x%02x", b)
		}
		return Abstract(true, a), nil
	}
	v, err := r.ReadS33()
	if err != nil {
		return HeapType{}, err
	}
	if v >= 0 {
		return Concrete(uint32(v)), nil
	}
	a, ok := abstractFromByte(byte(v & 0x7f))
	if !ok {
		return HeapType{}, fmt.Errorf("invalid heap type %d", v)
	}
	return Abstract(false, a), nil
}

func abstractFromByte(b byte) (AbstractHeap, bool) {
	for a, enc := range abstractBytes {
		if enc == b {
			return AbstractHeap(a), true
		}
	}
	return 0, false
}

func readLimits(r *binary.Reader, memory bool) (Limits, error) {
	var l Limits
	flags, err := r.ReadByte()
	if err != nil {
		return l, err
	}
	allowed := LimitsHasMax | LimitsIs64 | LimitsShared
	if memory {
		allowed |= LimitsPageSize
	}
	if flags&^allowed != 0 {
		return l, fmt.Errorf("invalid limits flags 0x%02x", flags)
	}
	l.Shared = flags&LimitsShared != 0
	l.Is64 = flags&LimitsIs64 != 0
	if l.Min, err = r.ReadU64(); err != nil {
		return l, err
	}
	if flags&LimitsHasMax != 0 {
		max, err := r.ReadU64()
		if err != nil {
			return l, err
		}
		if max < l.Min {
			return l, fmt.Errorf("limits max %d is below min %d", max, l.Min)
		}
		l.Max = &max
	}
	if flags&LimitsPageSize != 0 {
		log2, err := r.ReadU32()
		if err != nil {
			return l, err
		}
		l.PageSizeLog2 = &log2
	}
	return l, nil
}

func readTableType(r *binary.Reader) (TableType, error) {
	elem, err := readRefType(r)
	if err != nil {
		return TableType{}, err
	}
	limits, err := readLimits(r, false)
	if err != nil {
		return TableType{}, err
	}
	return TableType{Elem: elem, Limits: limits}, nil
}

func readGlobalType(r *binary.Reader) (GlobalType, error) {
	v, err := readValType(r)
	if err != nil {
		return GlobalType{}, err
	}
	flags, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if flags&^(GlobalMutable|GlobalShared) != 0 {
		return GlobalType{}, fmt.Errorf("invalid global flags 0x%02x", flags)
	}
	return GlobalType{Val: v, Mutable: flags&GlobalMutable != 0, Shared: flags&GlobalShared != 0}, nil
}

func readTagType(r *binary.Reader) (TagType, error) {
	attr, err := r.ReadByte()
	if err != nil {
		return TagType{}, err
	}
	if attr != 0 {
		return TagType{}, fmt.Errorf("invalid tag attribute 0x%02x", attr)
	}
	idx, err := r.ReadU32()
	return TagType{TypeIdx: idx}, err
}

func parseImportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.KeepEmptyImports = count == 0
	for i := uint32(0); i < count; i++ {
		var imp Import
		if imp.Module, err = r.ReadName(); err != nil {
			return err
		}
		if imp.Name, err = r.ReadName(); err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		imp.Desc.Kind = ExternKind(kind)
		switch imp.Desc.Kind {
		case KindFunc:
			imp.Desc.Func, err = r.ReadU32()
		case KindTable:
			imp.Desc.Table, err = readTableType(r)
		case KindMemory:
			imp.Desc.Memory.Limits, err = readLimits(r, true)
		case KindGlobal:
			imp.Desc.Global, err = readGlobalType(r)
		case KindTag:
			imp.Desc.Tag, err = readTagType(r)
		default:
			return fmt.Errorf("import %d: invalid kind 0x%02x", i, kind)
		}
		if err != nil {
			return fmt.Errorf("import %d (%s.%s): %w", i, imp.Module, imp.Name, err)
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		m.Funcs = append(m.Funcs, idx)
	}
	return nil
}

func parseTableSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		var t Table
		b, err := r.PeekByte()
		if err != nil {
			return err
		}
		if b == 0x40 {
			_, _ = r.ReadByte()
			if z, err := r.ReadByte(); err != nil || z != 0 {
				return fmt.Errorf("table %d: malformed initializer prefix", i)
			}
			if t.Type, err = readTableType(r); err != nil {
				return err
			}
			if t.Init, err = readConstExpr(r); err != nil {
				return fmt.Errorf("table %d init: %w", i, err)
			}
		} else if t.Type, err = readTableType(r); err != nil {
			return err
		}
		m.Tables = append(m.Tables, t)
	}
	return nil
}

func parseMemorySection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		l, err := readLimits(r, true)
		if err != nil {
			return fmt.Errorf("memory %d: %w", i, err)
		}
		m.Memories = append(m.Memories, MemoryType{Limits: l})
	}
	return nil
}

func parseTagSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		tag, err := readTagType(r)
		if err != nil {
			return err
		}
		m.Tags = append(m.Tags, tag)
	}
	return nil
}

func parseGlobalSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		init, err := readConstExpr(r)
		if err != nil {
			return fmt.Errorf("global %d init: %w", i, err)
		}
		m.Globals = append(m.Globals, Global{Type: gt, Init: init})
	}
	return nil
}

func parseExportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		if kind > byte(KindTag) {
			return fmt.Errorf("export %q: invalid kind 0x%02x", name, kind)
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		m.Exports = append(m.Exports, Export{Name: name, Kind: ExternKind(kind), Idx: idx})
	}
	return nil
}

func parseStartSection(r *binary.Reader, m *Module) error {
	idx, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Start = &idx
	return nil
}

func parseElementSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		e, err := readElement(r)
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		m.Elements = append(m.Elements, e)
	}
	return nil
}

func readElement(r *binary.Reader) (Element, error) {
	var e Element
	flags, err := r.ReadU32()
	if err != nil {
		return e, err
	}
	if flags > 7 {
		return e, fmt.Errorf("invalid element flags %d", flags)
	}
	e.UsesExprs = flags&0x04 != 0
	switch {
	case flags&0x01 == 0:
		e.Mode = ElemActive
	case flags&0x02 != 0:
		e.Mode = ElemDeclared
	default:
		e.Mode = ElemPassive
	}
	implicit := flags&0x03 == 0

	if e.Mode == ElemActive {
		if !implicit {
			idx, err := r.ReadU32()
			if err != nil {
				return e, err
			}
			e.Table = &idx
		}
		if e.Offset, err = readConstExpr(r); err != nil {
			return e, err
		}
	}

	e.Type = FuncRef
	if !implicit {
		if e.UsesExprs {
			if e.Type, err = readRefType(r); err != nil {
				return e, err
			}
		} else {
			kind, err := r.ReadByte()
			if err != nil {
				return e, err
			}
			if kind != 0 {
				return e, fmt.Errorf("invalid element kind 0x%02x", kind)
			}
		}
	}

	n, err := r.ReadU32()
	if err != nil {
		return e, err
	}
	if int(n) > r.Remaining() {
		return e, fmt.Errorf("element count %d exceeds section size", n)
	}
	for j := uint32(0); j < n; j++ {
		if e.UsesExprs {
			expr, err := readConstExpr(r)
			if err != nil {
				return e, err
			}
			e.Exprs = append(e.Exprs, expr)
		} else {
			idx, err := r.ReadU32()
			if err != nil {
				return e, err
			}
			e.Funcs = append(e.Funcs, idx)
		}
	}
	return e, nil
}

func parseDataCountSection(r *binary.Reader, m *Module) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.DataCount = &n
	return nil
}

func parseCodeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		size, err := r.ReadU32()
		if err != nil {
			return err
		}
		br, err := r.Sub(int(size))
		if err != nil {
			return fmt.Errorf("body %d: %w", i, err)
		}
		var body FuncBody
		groups, err := br.ReadU32()
		if err != nil {
			return err
		}
		for j := uint32(0); j < groups; j++ {
			n, err := br.ReadU32()
			if err != nil {
				return err
			}
			t, err := readValType(br)
			if err != nil {
				return fmt.Errorf("body %d locals: %w", i, err)
			}
			body.Locals = append(body.Locals, Local{Count: n, Type: t})
		}
		if body.Raw, err = br.ReadBytes(br.Remaining()); err != nil {
			return err
		}
		m.Code = append(m.Code, body)
	}
	return nil
}

func parseDataSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		var d DataSegment
		flags, err := r.ReadU32()
		if err != nil {
			return err
		}
		switch flags {
		case 0:
			d.Mode = DataActive
		case 1:
			d.Mode = DataPassive
		case 2:
			d.Mode = DataActive
			if d.MemIdx, err = r.ReadU32(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("data %d: invalid flags %d", i, flags)
		}
		if d.Mode == DataActive {
			if d.Offset, err = readConstExpr(r); err != nil {
				return fmt.Errorf("data %d offset: %w", i, err)
			}
		}
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		if d.Init, err = r.ReadBytes(int(n)); err != nil {
			return err
		}
		m.Data = append(m.Data, d)
	}
	return nil
}

// Instructions returns the instructions of a function body, without the
// final end. Bodies built in memory are returned as is.
func (b *FuncBody) Instructions() ([]Instruction, error) {
	if b.Raw == nil {
		return b.Body, nil
	}
	instrs, err := DecodeInstructions(b.Raw)
	if err != nil {
		return nil, err
	}
	if len(instrs) == 0 || instrs[len(instrs)-1].Opcode != OpEnd {
		return nil, errors.New("function body does not end with end")
	}
	return instrs[:len(instrs)-1], nil
}
