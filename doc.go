// Package wasmgen generates structurally valid WebAssembly modules from
// opaque decision bytes, for fuzzing engines and producing test corpora.
//
// # Architecture Overview
//
//	wasmgen/         Seed-based entry points
//	├── smith/       Module synthesis: types, entities, segments, bodies
//	├── codegen/     Default function body builder
//	├── oracle/      Decision stream over a byte slice
//	├── config/      Limits, feature toggles, presets, TOML loading
//	├── wasm/        Module model, encoder, decoder, validator
//	├── corpus/      Parallel corpus production with wazero checks
//	├── errors/      Structured error types
//	└── cmd/wasmgen/ Command line front end
//
// # Quick Start
//
//	bin, err := wasmgen.Generate(config.Default(), 42)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("out.wasm", bin, 0o644)
//
// The same seed and configuration always produce the same module. Callers
// that already have decision bytes, such as a fuzzer, use GenerateModule or
// smith.New directly:
//
//	func FuzzEngine(f *testing.F) {
//	    f.Fuzz(func(t *testing.T, data []byte) {
//	        m, err := wasmgen.GenerateModule(config.Core2(), data)
//	        if err != nil {
//	            return
//	        }
//	        run(t, m.Encode())
//	    })
//	}
//
// # Validity
//
// Every module returned without error passes wasm.Validate. Modules built
// with config.Core2 also compile under wazero. Runtime traps are possible
// unless Config.DisallowTraps is set.
//
// # Thread Safety
//
// A single generation is sequential. Independent generations share no state
// apart from package loggers and can run concurrently.
package wasmgen
