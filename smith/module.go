package smith

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasmgen/config"
	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/wasm"
)

// Rates of rare events. Larger values make the event less likely.
const (
	chanceOffsetInbounds = 10
	chanceSegmentOnEmpty = 10
	pctInbounds          = 0.995
)

// Module is a module under construction and, once New returns, the finished
// generated module. Index spaces list imported entities first.
type Module struct {
	config  config.Config
	builder BodyBuilder

	valtypes []wasm.ValType

	types           []SubType
	recGroups       []span
	superToSubTypes map[uint32][]uint32
	canSubtype      []uint32
	arrayTypes      []uint32
	funcTypes       []uint32
	structTypes     []uint32

	// typeLimit bounds concrete references while a rec group is generated.
	// A negative value means every defined type may be referenced.
	typeLimit int
	mustShare bool

	imports             []Import
	shouldEncodeTypes   bool
	shouldEncodeImports bool

	numImports         int
	numDefinedTags     int
	numDefinedFuncs    int
	numDefinedMemories int
	definedTables      []wasm.ConstExpr
	definedGlobals     []definedGlobal

	tags     []TagType
	funcs    []Func
	tables   []wasm.TableType
	globals  []wasm.GlobalType
	memories []wasm.MemoryType

	exports []Export
	start   *uint32
	elems   []ElementSegment
	code    []Code
	data    []DataSegment

	typeSize    uint32
	exportNames map[string]struct{}

	constExprChoices []constExprChoice

	interesting32 []uint32
	interesting64 []uint64
}

// Option customizes New.
type Option func(*Module)

// WithBodyBuilder sets the function body synthesizer. Without it every body
// is a single unreachable instruction.
func WithBodyBuilder(b BodyBuilder) Option {
	return func(m *Module) { m.builder = b }
}

// New sanitizes cfg and generates a module from u. Errors are either oracle
// errors from a malformed stream or ErrExportBudget.
func New(cfg config.Config, u *oracle.Unstructured, opts ...Option) (*Module, error) {
	m := empty(cfg)
	for _, opt := range opts {
		opt(m)
	}
	if err := m.build(u); err != nil {
		Logger().Debug("generation failed", zap.Error(err), zap.Int("remaining", u.Len()))
		return nil, err
	}
	return m, nil
}

func empty(cfg config.Config) *Module {
	cfg.Sanitize()
	return &Module{
		config:          cfg,
		builder:         Unreachable{},
		superToSubTypes: make(map[uint32][]uint32),
		exportNames:     make(map[string]struct{}),
		typeLimit:       -1,
	}
}

func (m *Module) build(u *oracle.Unstructured) error {
	log := Logger()
	m.valtypes = configuredValTypes(&m.config)

	arbitraryImports, arbitraryExports := true, true
	if m.config.ModuleShape != nil {
		if err := m.importsExportsFromModuleShape(u, m.config.ModuleShape); err != nil {
			return err
		}
		arbitraryImports, arbitraryExports = false, false
	}
	if m.config.AvailableImports != nil {
		if m.config.ModuleShape != nil {
			log.Warn("available imports ignored with a module shape")
		} else {
			m.importsFromAvailable(u, m.config.AvailableImports)
			arbitraryImports = false
		}
	}

	if err := m.arbitraryTypes(u); err != nil {
		return err
	}
	log.Debug("types generated",
		zap.Int("types", len(m.types)),
		zap.Int("rec_groups", len(m.recGroups)))

	if arbitraryImports {
		if err := m.arbitraryImports(u); err != nil {
			return err
		}
	}
	m.shouldEncodeImports = len(m.imports) > 0 || u.Bool()

	steps := []struct {
		name string
		run  func(*oracle.Unstructured) error
	}{
		{"tags", m.arbitraryTags},
		{"funcs", m.arbitraryFuncs},
		{"tables", m.arbitraryTables},
		{"memories", m.arbitraryMemories},
		{"globals", m.arbitraryGlobals},
	}
	for _, s := range steps {
		if err := s.run(u); err != nil {
			return err
		}
	}

	if m.config.Exports != nil {
		if err := m.requiredExports(u, m.config.Exports); err != nil {
			return err
		}
		arbitraryExports = false
	}
	if arbitraryExports {
		if err := m.arbitraryExports(u); err != nil {
			return err
		}
	}
	m.shouldEncodeTypes = len(m.types) > 0 || u.Bool()
	log.Debug("entities generated",
		zap.Int("imports", len(m.imports)),
		zap.Int("funcs", len(m.funcs)),
		zap.Int("exports", len(m.exports)),
		zap.Uint32("type_size", m.typeSize))

	if err := m.arbitraryStart(u); err != nil {
		return err
	}
	if err := m.arbitraryElems(u); err != nil {
		return err
	}
	if err := m.arbitraryData(u); err != nil {
		return err
	}
	if err := m.arbitraryCode(u); err != nil {
		return err
	}
	log.Debug("module generated",
		zap.Int("elements", len(m.elems)),
		zap.Int("data", len(m.data)),
		zap.Int("code", len(m.code)),
		zap.Int("unused_bytes", u.Len()))
	return nil
}

// Config returns the sanitized configuration the module was built with.
func (m *Module) Config() config.Config { return m.config }

// TypeAt implements wasm.TypeSpace over the types generated so far.
func (m *Module) TypeAt(idx uint32) (*wasm.SubType, bool) {
	if int(idx) >= len(m.types) {
		return nil, false
	}
	return &m.types[idx].SubType, true
}

// Types returns the type index space.
func (m *Module) Types() []SubType { return m.types }

// FuncTypes returns the indices of function types.
func (m *Module) FuncTypes() []uint32 { return m.funcTypes }

// Funcs returns the function index space.
func (m *Module) Funcs() []Func { return m.funcs }

// Tables returns the table index space.
func (m *Module) Tables() []wasm.TableType { return m.tables }

// Memories returns the memory index space.
func (m *Module) Memories() []wasm.MemoryType { return m.memories }

// Globals returns the global index space.
func (m *Module) Globals() []wasm.GlobalType { return m.globals }

// Tags returns the tag index space.
func (m *Module) Tags() []TagType { return m.tags }

// Imports returns the imports in declaration order.
func (m *Module) Imports() []Import { return m.imports }

// Exports returns the exports in declaration order.
func (m *Module) Exports() []Export { return m.exports }

// Start returns the start function, if any.
func (m *Module) Start() (uint32, bool) {
	if m.start == nil {
		return 0, false
	}
	return *m.start, true
}

// Elements returns the element segments.
func (m *Module) Elements() []ElementSegment { return m.elems }

// Data returns the data segments.
func (m *Module) Data() []DataSegment { return m.data }

// Code returns the bodies of defined functions in index order.
func (m *Module) Code() []Code { return m.code }

// NumImports returns how many entities are imported.
func (m *Module) NumImports() int { return m.numImports }

// NumDefinedFuncs returns how many functions have bodies.
func (m *Module) NumDefinedFuncs() int { return m.numDefinedFuncs }

// TypeSize returns the accumulated import and export type size.
func (m *Module) TypeSize() uint32 { return m.typeSize }

// RecGroups returns the rec group boundaries as [start, end) pairs.
func (m *Module) RecGroups() [][2]int {
	out := make([][2]int, len(m.recGroups))
	for i, g := range m.recGroups {
		out[i] = [2]int{g.start, g.end}
	}
	return out
}

// InterestingValues32 returns the sorted table of notable 32-bit constants.
// It is empty until code generation starts.
func (m *Module) InterestingValues32() []uint32 { return m.interesting32 }

// InterestingValues64 returns the sorted table of notable 64-bit constants.
func (m *Module) InterestingValues64() []uint64 { return m.interesting64 }

// IsSubType reports whether a <: b in this module's type space.
func (m *Module) IsSubType(a, b wasm.ValType) bool {
	return wasm.ValTypeIsSubType(m, a, b)
}

func (m *Module) ty(idx uint32) *SubType {
	return &m.types[idx]
}

func (m *Module) funcType(idx uint32) *wasm.FuncType {
	st := m.ty(idx)
	if st.Composite.Kind != wasm.CompFunc {
		panic(fmt.Sprintf("smith: type %d is not a func type", idx))
	}
	return st.Composite.Func
}

func (m *Module) isSharedType(idx uint32) bool {
	return m.ty(idx).Composite.Shared
}

func (m *Module) isSharedRefType(r wasm.RefType) bool {
	if r.Heap.Concrete {
		return m.isSharedType(r.Heap.Index)
	}
	return r.Heap.Shared
}
