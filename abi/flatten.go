package abi

import (
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
)

// CoreValType is a core wasm value type.
type CoreValType = api.ValueType

const coreI32 = api.ValueTypeI32

// Canonical ABI flattening limits.
const (
	MaxFlatParams  = 16
	MaxFlatResults = 1
)

// AbiVariant is the direction a function is crossed in.
type AbiVariant int

const (
	// GuestImport is a function imported by the guest: the guest lowers
	// arguments and lifts results.
	GuestImport AbiVariant = iota
	// GuestExport is a function exported by the guest: the guest lifts
	// arguments and lowers results.
	GuestExport
	// GuestImportAsync is an async-lowered import: parameters and results
	// travel through linear memory and the core call returns a status word.
	GuestImportAsync
	// GuestExportAsync is an async-lifted export: results are delivered
	// through task.return rather than the core return value.
	GuestExportAsync
)

func (v AbiVariant) String() string {
	switch v {
	case GuestImport:
		return "guest-import"
	case GuestExport:
		return "guest-export"
	case GuestImportAsync:
		return "guest-import-async"
	case GuestExportAsync:
		return "guest-export-async"
	default:
		return "unknown"
	}
}

// Async reports whether the variant uses the async call protocol.
func (v AbiVariant) Async() bool {
	return v == GuestImportAsync || v == GuestExportAsync
}

// LiftLower is the intent of one generation pass.
type LiftLower int

const (
	// LowerArgsLiftResults is the caller side: lower native arguments into
	// flat form, call, lift the flat result back.
	LowerArgsLiftResults LiftLower = iota
	// LiftArgsLowerResults is the callee side: lift flat arguments, call
	// user code, lower the native result.
	LiftArgsLowerResults
)

// WasmSignature is the flat core signature a function's boundary actually
// passes.
type WasmSignature struct {
	Params  []CoreValType
	Results []CoreValType

	// IndirectParams is set when the flattened parameters exceeded
	// MaxFlatParams and collapsed to a single pointer.
	IndirectParams bool
	// RetPtr is set when results are returned through a memory area rather
	// than by value.
	RetPtr bool
}

// FlattenSignature computes the flat core signature of f for the given
// variant, applying the MaxFlatParams/MaxFlatResults spill rules.
func FlattenSignature(variant AbiVariant, f *Function) WasmSignature {
	if variant == GuestImportAsync {
		// Fully indirect: (params_ptr, results_ptr) -> status.
		return WasmSignature{
			Params:         []CoreValType{api.ValueTypeI32, api.ValueTypeI32},
			Results:        []CoreValType{api.ValueTypeI32},
			IndirectParams: true,
			RetPtr:         true,
		}
	}

	var sig WasmSignature
	for _, p := range f.Params {
		sig.Params = append(sig.Params, FlattenType(p.Type)...)
	}
	for _, r := range f.Results {
		sig.Results = append(sig.Results, FlattenType(r.Type)...)
	}

	if len(sig.Params) > MaxFlatParams {
		sig.Params = []CoreValType{api.ValueTypeI32}
		sig.IndirectParams = true
	}

	if variant == GuestExportAsync {
		// Results travel through task.return; the core call yields a task
		// handle (or null when the export completed synchronously).
		sig.Results = []CoreValType{api.ValueTypeI32}
		sig.RetPtr = true
		return sig
	}

	if len(sig.Results) > MaxFlatResults {
		sig.RetPtr = true
		switch variant {
		case GuestImport:
			// Caller passes a return area as a trailing parameter.
			sig.Params = append(sig.Params, api.ValueTypeI32)
			sig.Results = nil
		case GuestExport:
			// Callee returns a pointer into its own return area.
			sig.Results = []CoreValType{api.ValueTypeI32}
		}
	}

	return sig
}

// FlattenType returns the flat core value sequence t lowers to when passed
// by value.
func FlattenType(t wit.Type) []CoreValType {
	switch v := t.(type) {
	case wit.Bool, wit.U8, wit.U16, wit.U32, wit.S8, wit.S16, wit.S32, wit.Char:
		return []CoreValType{api.ValueTypeI32}
	case wit.U64, wit.S64:
		return []CoreValType{api.ValueTypeI64}
	case wit.F32:
		return []CoreValType{api.ValueTypeF32}
	case wit.F64:
		return []CoreValType{api.ValueTypeF64}
	case wit.String:
		return []CoreValType{api.ValueTypeI32, api.ValueTypeI32} // ptr, len
	case *wit.TypeDef:
		return flattenTypeDef(v)
	default:
		return []CoreValType{api.ValueTypeI32}
	}
}

func flattenTypeDef(td *wit.TypeDef) []CoreValType {
	switch kind := td.Kind.(type) {
	case *wit.Record:
		var flat []CoreValType
		for _, f := range kind.Fields {
			flat = append(flat, FlattenType(f.Type)...)
		}
		return flat
	case *wit.Tuple:
		var flat []CoreValType
		for _, t := range kind.Types {
			flat = append(flat, FlattenType(t)...)
		}
		return flat
	case *wit.List:
		return []CoreValType{api.ValueTypeI32, api.ValueTypeI32} // ptr, len
	case *wit.Variant:
		return flattenCases(caseTypes(kind.Cases))
	case *wit.Option:
		return flattenCases([]wit.Type{kind.Type})
	case *wit.Result:
		return flattenCases([]wit.Type{kind.OK, kind.Err})
	case *wit.Enum:
		return []CoreValType{api.ValueTypeI32} // discriminant only
	case *wit.Flags:
		n := flagsRepr(len(kind.Flags)).FlatCount()
		flat := make([]CoreValType, n)
		for i := range flat {
			flat[i] = api.ValueTypeI32
		}
		return flat
	case *wit.Own, *wit.Borrow, *wit.Resource:
		return []CoreValType{api.ValueTypeI32} // table index
	case *wit.Stream, *wit.Future:
		return []CoreValType{api.ValueTypeI32} // handle
	case wit.Type:
		return FlattenType(kind)
	default:
		return []CoreValType{api.ValueTypeI32}
	}
}

// flattenCases computes discriminant + element-wise join of every case's
// flattening, zero-padding shorter cases.
func flattenCases(payloads []wit.Type) []CoreValType {
	var payload []CoreValType
	for _, t := range payloads {
		if t == nil {
			continue
		}
		for i, ft := range FlattenType(t) {
			if i < len(payload) {
				payload[i] = join(payload[i], ft)
			} else {
				payload = append(payload, ft)
			}
		}
	}
	return append([]CoreValType{api.ValueTypeI32}, payload...)
}

// join unions two core types occupying the same variant payload slot.
func join(a, b CoreValType) CoreValType {
	if a == b {
		return a
	}
	// i32 and f32 can share a 32-bit slot through a bitcast.
	if (a == api.ValueTypeI32 && b == api.ValueTypeF32) ||
		(a == api.ValueTypeF32 && b == api.ValueTypeI32) {
		return api.ValueTypeI32
	}
	// Everything else widens to i64.
	return api.ValueTypeI64
}

// Bitcast reinterprets one core value type as another inside a shared
// variant payload slot.
type Bitcast int

const (
	BitcastNone Bitcast = iota
	BitcastI32ToI64
	BitcastI64ToI32
	BitcastF32ToI32
	BitcastI32ToF32
	BitcastF64ToI64
	BitcastI64ToF64
	BitcastF32ToI64
	BitcastI64ToF32
)

func (b Bitcast) String() string {
	switch b {
	case BitcastNone:
		return "none"
	case BitcastI32ToI64:
		return "i32-to-i64"
	case BitcastI64ToI32:
		return "i64-to-i32"
	case BitcastF32ToI32:
		return "f32-to-i32"
	case BitcastI32ToF32:
		return "i32-to-f32"
	case BitcastF64ToI64:
		return "f64-to-i64"
	case BitcastI64ToF64:
		return "i64-to-f64"
	case BitcastF32ToI64:
		return "f32-to-i64"
	case BitcastI64ToF32:
		return "i64-to-f32"
	default:
		return "unknown"
	}
}

// bitcast selects the reinterpretation from one core type to another.
// Combinations that never arise from join are interpreter bugs.
func bitcast(from, to CoreValType) Bitcast {
	if from == to {
		return BitcastNone
	}
	switch {
	case from == api.ValueTypeI32 && to == api.ValueTypeI64:
		return BitcastI32ToI64
	case from == api.ValueTypeI64 && to == api.ValueTypeI32:
		return BitcastI64ToI32
	case from == api.ValueTypeF32 && to == api.ValueTypeI32:
		return BitcastF32ToI32
	case from == api.ValueTypeI32 && to == api.ValueTypeF32:
		return BitcastI32ToF32
	case from == api.ValueTypeF64 && to == api.ValueTypeI64:
		return BitcastF64ToI64
	case from == api.ValueTypeI64 && to == api.ValueTypeF64:
		return BitcastI64ToF64
	case from == api.ValueTypeF32 && to == api.ValueTypeI64:
		return BitcastF32ToI64
	case from == api.ValueTypeI64 && to == api.ValueTypeF32:
		return BitcastI64ToF32
	default:
		panic("abi: impossible bitcast " + coreTypeName(from) + " -> " + coreTypeName(to))
	}
}

func coreTypeName(t CoreValType) string {
	switch t {
	case api.ValueTypeI32:
		return "i32"
	case api.ValueTypeI64:
		return "i64"
	case api.ValueTypeF32:
		return "f32"
	case api.ValueTypeF64:
		return "f64"
	default:
		return "unknown"
	}
}
