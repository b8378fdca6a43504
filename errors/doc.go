// Package errors provides structured error types for the wasmgen packages.
//
// Errors are categorized by Phase (which stage failed) and Kind (error category).
// The Error type carries a location path, expected/actual shapes and a cause chain.
//
//	err := errors.New(errors.PhaseValidate, errors.KindTypeMismatch).
//		Path("global", "2", "init").
//		Expected("i64").
//		Actual("i32").
//		Build()
//
// errors.Is matches on Phase and Kind only, so package level sentinels built with
// Sentinel work as targets for any error of the same category.
package errors
