package corpus

import (
	"context"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasmgen/config"
	"github.com/wippyai/wasmgen/errors"
	"github.com/wippyai/wasmgen/wasm"
)

// Validator checks modules with the structural validator and wazero's
// compiler. It is safe for concurrent use.
type Validator struct {
	rt wazero.Runtime
}

// NewValidator creates a Validator backed by a wazero interpreter runtime.
func NewValidator(ctx context.Context) *Validator {
	return &Validator{
		rt: wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter()),
	}
}

// Close releases the wazero runtime.
func (v *Validator) Close(ctx context.Context) error {
	return v.rt.Close(ctx)
}

// Validate runs the structural validator.
func (v *Validator) Validate(bin []byte) error {
	if _, err := wasm.ParseModuleValidate(bin); err != nil {
		return errors.Wrap(errors.PhaseValidate, errors.KindInvalidData, err, "structural validation")
	}
	return nil
}

// Compile compiles bin with wazero and discards the result. wazero rejects
// empty import module names, so those are renamed to wasm.EmptyModuleName
// first.
func (v *Validator) Compile(ctx context.Context, bin []byte) error {
	compiled, err := v.rt.CompileModule(ctx, wasm.RewriteEmptyModuleNames(bin))
	if err != nil {
		return errors.Wrap(errors.PhaseValidate, errors.KindRejected, err, "wazero compile")
	}
	return compiled.Close(ctx)
}

// EngineCompatible reports whether modules generated under cfg stay within
// the WebAssembly 2.0 feature set wazero compiles. Segment bounds are part of
// wazero's checks, so traps must be disallowed too.
func EngineCompatible(cfg config.Config) bool {
	cfg.Sanitize()
	switch {
	case cfg.GC, cfg.Exceptions, cfg.ExtendedConst, cfg.Threads, cfg.Memory64,
		cfg.CustomPageSizes, cfg.SharedEverythingThreads:
		return false
	case cfg.MaxMemories > 1, cfg.AllowInvalidFuncs, !cfg.DisallowTraps:
		return false
	}
	return true
}
