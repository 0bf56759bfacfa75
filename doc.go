// Package witgen is the language-independent core of a WIT bindings
// generator: it turns resolved WIT functions into Canonical ABI
// lowering/lifting instruction streams that target-language backends render
// as source code.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	witgen/              Root package (overview only)
//	├── abi/             Layout, flattening and the instruction interpreter
//	├── asyncrt/         Runtime support for async-generated bindings
//	├── errors/          Structured error types for debugging
//	├── cmd/witgen/      Debug driver and interactive instruction browser
//	└── examples/        Runnable usage examples
//
// # Quick Start
//
// Generate the caller-side stream for one function:
//
//	sizes := abi.NewSizeAlign()
//	sizes.Fill(typeDefs)
//
//	rec := abi.NewRecorder(sizes)
//	err := abi.Call(abi.GuestImport, abi.LowerArgsLiftResults, fn, rec, abi.Options{})
//	fmt.Println(rec.Listing())
//
// A real backend implements abi.Bindgen with its own operand type and
// renders each instruction as target-language code instead of recording it.
//
// # WIT Type Support
//
// The interpreter covers the full WIT type system:
//
//   - Primitives: bool, u8-u64, s8-s64, f32, f64, char, string
//   - Compound: list<T>, option<T>, result<T, E>, tuple<...>
//   - Named: record, variant, enum, flags
//   - Handles: own<T>, borrow<T>, plus stream<T> and future<T>
//
// # Thread Safety
//
// A filled abi.SizeAlign table is safe for concurrent readers, and each
// generation pass owns its state, so functions can be generated in
// parallel. An asyncrt.Executor is strictly single-threaded by design.
package witgen
