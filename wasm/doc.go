// Package wasm models WebAssembly binary modules for generation.
//
// The model covers what the generator emits and what templates may contain:
// GC type definitions (rec groups, subtypes, structs, arrays, shared composite
// types), typed references, tables with initializers, 64-bit tables and
// memories, custom page sizes, tags, element and data segments in all
// encodings, and function bodies.
//
// # Types
//
// Value types are small comparable structs, so equality is structural:
//
//	wasm.I32 == wasm.ValType{Kind: wasm.ValI32}
//	wasm.Ref(wasm.FuncRef).String() // "funcref"
//
// The subtyping lattice is exposed through ValTypeIsSubType, RefTypeIsSubType
// and HeapTypeIsSubType. Concrete heap types are resolved through a TypeSpace,
// which *Module implements.
//
// # Encoding and parsing
//
//	data := module.Encode()
//	parsed, err := wasm.ParseModule(data)
//
// Float constants carry raw IEEE bits, so NaN payloads round trip.
//
// # Validation
//
//	if err := module.Validate(); err != nil {
//	    log.Printf("invalid module: %v", err)
//	}
//
// Validation checks type definitions and subtyping declarations, index
// bounds, limits, constant expressions and export names, and type checks
// function bodies. Bodies using instructions outside the subset in
// instruction.go are reported as unsupported.
package wasm
