// Package abi generates Canonical ABI lifting and lowering instruction
// streams for WIT functions.
//
// The package is the language-independent core of a bindings generator: it
// walks a resolved WIT type graph and a function signature and produces an
// ordered sequence of abstract stack-machine instructions that a backend
// turns into real source code. Backends implement the Bindgen interface and
// never need to know the Canonical ABI; the interpreter never needs to know
// the target language.
//
// # Memory Layout
//
// Compound types are laid out in linear memory with Canonical ABI alignment:
//
//	Type            Size    Alignment
//	──────────────────────────────────
//	bool            1       1
//	u8/s8           1       1
//	u16/s16         2       2
//	u32/s32/f32     4       4
//	u64/s64/f64     8       8
//	char            4       4
//	string          8       4 (ptr + len)
//	list<T>         8       4 (ptr + len)
//	record          sum     max field align
//	variant         varies  max(tag, case aligns)
//	flags           1/2/4N  1/2/4 (per bit count)
//
// SizeAlign memoizes these per type definition; all components derive
// discriminant widths and offsets from the same table, which is what makes
// two independent backends produce byte-identical layouts.
//
// # Flattening
//
// Values passed by value are flattened to core wasm types (i32/i64/f32/f64):
//
//	func add(a: u32, b: u32) -> u32
//	Core: (i32, i32) -> i32            [flattened]
//
//	func get-data() -> list<u8>
//	Core: (retptr: i32) -> ()          [via memory]
//
// The thresholds are MaxFlatParams (16) and MaxFlatResults (1); anything
// larger is spilled to linear memory behind a single pointer.
//
// # Instruction Streams
//
// Call drives one function in one direction with one intent:
//
//	rec := abi.NewRecorder(sizes)
//	err := abi.Call(abi.GuestImport, abi.LowerArgsLiftResults, fn, rec, opts)
//
// Branchy types (variant, option, result, enum) are emitted as isolated
// blocks bracketed by PushBlock/FinishBlock so a backend can render them as
// match arms, switch cases or nested ifs without the interpreter caring.
//
// # Cleanup and Return Pointers
//
// Lowering arguments for an import call may allocate temporary buffers
// (per-element list lowering). Each allocation is recorded through a
// DeferCleanup instruction and released by exactly one CleanupList
// instruction after the call, no matter which variant branches executed.
// Oversized parameter and result areas are obtained through the backend's
// ReturnPointer hook: a scratch stack allocation on the caller side, a
// shared static area on the export side.
//
// # Checked vs Unchecked
//
// In checked mode (the default) lift instructions carry validation: invalid
// discriminants, bad UTF-8 and out-of-range chars become deterministic traps
// in the generated code. Options.Unchecked drops the guards while keeping
// the generated code well-typed; the trade-off is the caller's.
//
// # Thread Safety
//
// A SizeAlign table is safe for concurrent readers once filled. Each Call is
// independent and owns its operand stack, so generating many functions in
// parallel needs no synchronization beyond sharing the table.
package abi
