package config

import (
	"github.com/wippyai/wasmgen/errors"
)

// DuplicateImports controls whether two imports may share a module and field
// name pair.
type DuplicateImports string

const (
	DuplicatesAllowed    DuplicateImports = "allowed"
	DuplicatesDisallowed DuplicateImports = "disallowed"
)

// Config configures module generation. Min/Max pairs are inclusive bounds on
// the number of entities of a kind; imported entities count toward them.
type Config struct {
	// Template modules in binary form. Populated from the *Path fields by
	// Load, or directly by callers.
	ModuleShape      []byte `toml:"-"`
	AvailableImports []byte `toml:"-"`
	Exports          []byte `toml:"-"`

	ModuleShapePath      string `toml:"module_shape,omitempty"`
	AvailableImportsPath string `toml:"available_imports,omitempty"`
	ExportsPath          string `toml:"exports,omitempty"`

	DuplicateImports DuplicateImports `toml:"duplicate_imports"`

	MaxMemory32Bytes uint64 `toml:"max_memory32_bytes"`
	MaxMemory64Bytes uint64 `toml:"max_memory64_bytes"`

	MinTypes           int `toml:"min_types"`
	MaxTypes           int `toml:"max_types"`
	MinImports         int `toml:"min_imports"`
	MaxImports         int `toml:"max_imports"`
	MinTags            int `toml:"min_tags"`
	MaxTags            int `toml:"max_tags"`
	MinFuncs           int `toml:"min_funcs"`
	MaxFuncs           int `toml:"max_funcs"`
	MinGlobals         int `toml:"min_globals"`
	MaxGlobals         int `toml:"max_globals"`
	MinExports         int `toml:"min_exports"`
	MaxExports         int `toml:"max_exports"`
	MinTables          int `toml:"min_tables"`
	MaxTables          int `toml:"max_tables"`
	MinMemories        int `toml:"min_memories"`
	MaxMemories        int `toml:"max_memories"`
	MinElementSegments int `toml:"min_element_segments"`
	MaxElementSegments int `toml:"max_element_segments"`
	MinElements        int `toml:"min_elements"`
	MaxElements        int `toml:"max_elements"`
	MinDataSegments    int `toml:"min_data_segments"`
	MaxDataSegments    int `toml:"max_data_segments"`
	MaxInstructions    int `toml:"max_instructions"`

	MaxTableElements uint64 `toml:"max_table_elements"`
	MaxTypeSize      uint32 `toml:"max_type_size"`

	ReferenceTypes          bool `toml:"reference_types"`
	GC                      bool `toml:"gc"`
	Exceptions              bool `toml:"exceptions"`
	SIMD                    bool `toml:"simd"`
	MultiValue              bool `toml:"multi_value"`
	BulkMemory              bool `toml:"bulk_memory"`
	ExtendedConst           bool `toml:"extended_const"`
	CustomPageSizes         bool `toml:"custom_page_sizes"`
	SharedEverythingThreads bool `toml:"shared_everything_threads"`
	Threads                 bool `toml:"threads"`
	Memory64                bool `toml:"memory64"`
	AllowFloats             bool `toml:"allow_floats"`

	DisallowTraps         bool `toml:"disallow_traps"`
	AllowInvalidFuncs     bool `toml:"allow_invalid_funcs"`
	AllowStartExport      bool `toml:"allow_start_export"`
	ExportEverything      bool `toml:"export_everything"`
	TableMaxSizeRequired  bool `toml:"table_max_size_required"`
	MemoryMaxSizeRequired bool `toml:"memory_max_size_required"`
}

// Sanitize clamps bounds and switches off features whose prerequisites are
// disabled. It is idempotent.
func (c *Config) Sanitize() {
	for _, p := range c.bounds() {
		if *p.max < 0 {
			*p.max = 0
		}
		if *p.min < 0 {
			*p.min = 0
		}
		if *p.min > *p.max {
			*p.min = *p.max
		}
	}
	if c.MaxInstructions < 0 {
		c.MaxInstructions = 0
	}
	if !c.ReferenceTypes {
		c.MaxTables = min(c.MaxTables, 1)
		c.MinTables = min(c.MinTables, c.MaxTables)
		c.GC = false
		c.Exceptions = false
	}
	if !c.GC {
		c.SharedEverythingThreads = false
	}
	if c.DuplicateImports == "" {
		c.DuplicateImports = DuplicatesAllowed
	}
}

// Validate reports settings Sanitize cannot repair.
func (c *Config) Validate() error {
	switch c.DuplicateImports {
	case "", DuplicatesAllowed, DuplicatesDisallowed:
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidConfig).
			Path("duplicate_imports").
			Expected("allowed or disallowed").
			Actual(string(c.DuplicateImports)).
			Build()
	}
	for _, p := range c.bounds() {
		if *p.min > *p.max {
			return errors.New(errors.PhaseConfig, errors.KindInvalidConfig).
				Path(p.name).
				Detail("minimum %d exceeds maximum %d", *p.min, *p.max).
				Build()
		}
	}
	if c.MaxMemory64Bytes > 1<<48 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidConfig).
			Path("max_memory64_bytes").
			Detail("%d exceeds the 2^48 byte address space", c.MaxMemory64Bytes).
			Build()
	}
	return nil
}

type bound struct {
	min, max *int
	name     string
}

func (c *Config) bounds() []bound {
	return []bound{
		{&c.MinTypes, &c.MaxTypes, "types"},
		{&c.MinImports, &c.MaxImports, "imports"},
		{&c.MinTags, &c.MaxTags, "tags"},
		{&c.MinFuncs, &c.MaxFuncs, "funcs"},
		{&c.MinGlobals, &c.MaxGlobals, "globals"},
		{&c.MinExports, &c.MaxExports, "exports"},
		{&c.MinTables, &c.MaxTables, "tables"},
		{&c.MinMemories, &c.MaxMemories, "memories"},
		{&c.MinElementSegments, &c.MaxElementSegments, "element_segments"},
		{&c.MinElements, &c.MaxElements, "elements"},
		{&c.MinDataSegments, &c.MaxDataSegments, "data_segments"},
	}
}

// Features lists the names of enabled proposals in a stable order.
func (c *Config) Features() []string {
	all := []struct {
		name string
		on   bool
	}{
		{"reference-types", c.ReferenceTypes},
		{"gc", c.GC},
		{"exceptions", c.Exceptions},
		{"simd", c.SIMD},
		{"multi-value", c.MultiValue},
		{"bulk-memory", c.BulkMemory},
		{"extended-const", c.ExtendedConst},
		{"custom-page-sizes", c.CustomPageSizes},
		{"shared-everything-threads", c.SharedEverythingThreads},
		{"threads", c.Threads},
		{"memory64", c.Memory64},
		{"floats", c.AllowFloats},
	}
	var out []string
	for _, f := range all {
		if f.on {
			out = append(out, f.name)
		}
	}
	return out
}
