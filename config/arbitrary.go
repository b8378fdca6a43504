package config

import (
	"github.com/wippyai/wasmgen/oracle"
)

const maxArbitraryCount = 1000

// Arbitrary draws a sanitized configuration from u. Templates are never
// produced and the type size budget stays at its default.
func Arbitrary(u *oracle.Unstructured) Config {
	count := func() int { return oracle.IntInRange(u, 0, maxArbitraryCount) }
	c := Config{
		DuplicateImports: DuplicatesAllowed,

		MaxTypes:           count(),
		MaxImports:         count(),
		MaxTags:            count(),
		MaxFuncs:           count(),
		MaxGlobals:         count(),
		MaxExports:         count(),
		MaxElementSegments: count(),
		MaxElements:        count(),
		MaxDataSegments:    count(),
		MaxInstructions:    count(),
		MaxMemories:        oracle.IntInRange(u, 0, 100),
		MaxTables:          oracle.IntInRange(u, 0, 100),

		MaxMemory32Bytes: oracle.IntInRange(u, uint64(0), 1<<32),
		MaxMemory64Bytes: oracle.IntInRange(u, uint64(0), 1<<48),
		MaxTableElements: oracle.IntInRange(u, uint64(0), 1_000_000),
		MaxTypeSize:      1000,

		BulkMemory:              u.Bool(),
		ReferenceTypes:          u.Bool(),
		SIMD:                    u.Bool(),
		MultiValue:              u.Bool(),
		Memory64:                u.Bool(),
		Threads:                 u.Bool(),
		GC:                      u.Bool(),
		Exceptions:              u.Bool(),
		ExtendedConst:           u.Bool(),
		CustomPageSizes:         u.Bool(),
		SharedEverythingThreads: u.Bool(),
		AllowFloats:             u.Bool(),
		DisallowTraps:           u.Bool(),
		TableMaxSizeRequired:    u.Bool(),
		MemoryMaxSizeRequired:   u.Bool(),
		AllowStartExport:        u.Bool(),
	}
	c.MinTypes = oracle.IntInRange(u, 0, c.MaxTypes)
	c.MinFuncs = oracle.IntInRange(u, 0, c.MaxFuncs)
	c.MinGlobals = oracle.IntInRange(u, 0, c.MaxGlobals)
	c.MinMemories = oracle.IntInRange(u, 0, min(c.MaxMemories, 1))
	c.MinTables = oracle.IntInRange(u, 0, min(c.MaxTables, 1))
	if u.Bool() {
		c.DuplicateImports = DuplicatesDisallowed
	}
	c.Sanitize()
	return c
}
