// Package smith synthesizes valid WebAssembly modules from a decision stream.
//
// New consumes an oracle.Unstructured and populates a Module phase by phase:
// types, imports, tags, functions, tables, memories, globals, exports, the
// start function, element segments, data segments and finally function
// bodies. Every choice is drawn from the stream, so the same bytes and the
// same configuration always produce the same module. Running out of bytes is
// not an error; generation settles on the smallest legal choice instead.
//
// Function bodies are delegated to a BodyBuilder. The codegen package
// provides the default builder.
//
//	u := oracle.New(data)
//	m, err := smith.New(config.Default(), u, smith.WithBodyBuilder(codegen.New()))
//	if err != nil {
//	    return err
//	}
//	wasmBytes := m.Encode()
package smith
