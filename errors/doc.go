// Package errors provides structured error types for the bindings generator.
//
// Every error carries the pipeline phase it originated from (layout, flatten,
// emit, config, runtime), a machine-matchable kind, and an optional type path
// pinpointing the offending WIT type:
//
//	[config] unsupported: type permissions - unsupported number of flags: 129
//	[emit] invalid_data at point.x: negative field offset
//
// Errors from the same phase and kind match via errors.Is, letting callers
// branch on categories without string comparison.
//
// Structural invariant violations inside the instruction interpreter (operand
// stack underflow, unbalanced blocks) are deliberately NOT represented here:
// they indicate bugs in the generator or a backend, never bad input, and
// surface as panics at generation time.
package errors
