package config

// Default returns the baseline configuration: standardized proposals on,
// GC and threading proposals off.
func Default() Config {
	return Config{
		DuplicateImports: DuplicatesAllowed,

		MaxMemory32Bytes: 1 << 32,
		MaxMemory64Bytes: 1 << 48,

		MaxTypes:           100,
		MaxImports:         100,
		MaxTags:            100,
		MaxFuncs:           100,
		MaxGlobals:         100,
		MaxExports:         100,
		MaxTables:          100,
		MaxMemories:        1,
		MaxElementSegments: 100,
		MaxElements:        100,
		MaxDataSegments:    100,
		MaxInstructions:    100,

		MaxTableElements: 1_000_000,
		MaxTypeSize:      1000,

		ReferenceTypes: true,
		SIMD:           true,
		MultiValue:     true,
		BulkMemory:     true,
		ExtendedConst:  true,
		Exceptions:     true,
		AllowFloats:    true,
	}
}

// Core2 returns a configuration restricted to WebAssembly 2.0 features, the
// set wazero compiles without experimental flags.
func Core2() Config {
	c := Default()
	c.ExtendedConst = false
	c.Exceptions = false
	c.MaxMemories = 1
	return c
}

// Everything enables every proposal the generator knows, including GC and
// shared-everything threads.
func Everything() Config {
	c := Default()
	c.GC = true
	c.Threads = true
	c.SharedEverythingThreads = true
	c.Memory64 = true
	c.CustomPageSizes = true
	c.MaxMemories = 4
	return c
}

// Preset returns a named configuration: "default", "core2" or "gc".
func Preset(name string) (Config, bool) {
	switch name {
	case "", "default":
		return Default(), true
	case "core2":
		return Core2(), true
	case "gc", "everything":
		return Everything(), true
	}
	return Config{}, false
}
