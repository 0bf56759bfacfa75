package abi

import (
	"fmt"

	"go.bytecodealliance.org/wit"
)

// Instruction is one step of the abstract lifting/lowering program. The set
// is closed: backends dispatch exhaustively over the concrete types below
// and the interpreter guarantees the operand arity of every emission.
//
// Conventions: "native" operands hold values in the backend's surface
// representation, "core" operands hold flat wasm values. Store instructions
// consume (value, address); loads consume (address).
type Instruction interface {
	isInstruction()
}

// ---- arguments and constants ----

// GetArg pushes the nth flat argument of the generated function.
type GetArg struct{ Nth int }

// I32Const pushes a constant i32.
type I32Const struct{ Val int32 }

// ConstZero pushes a zero value for each listed core type, used to pad
// variant payload slots the active case does not occupy.
type ConstZero struct{ Types []CoreValType }

// ---- memory loads ----

type I32Load struct{ Offset uint32 }
type I32Load8U struct{ Offset uint32 }
type I32Load8S struct{ Offset uint32 }
type I32Load16U struct{ Offset uint32 }
type I32Load16S struct{ Offset uint32 }
type I64Load struct{ Offset uint32 }
type F32Load struct{ Offset uint32 }
type F64Load struct{ Offset uint32 }

// ---- memory stores ----

type I32Store struct{ Offset uint32 }
type I32Store8 struct{ Offset uint32 }
type I32Store16 struct{ Offset uint32 }
type I64Store struct{ Offset uint32 }
type F32Store struct{ Offset uint32 }
type F64Store struct{ Offset uint32 }

// ---- scalar conversions, native -> core ----

type I32FromBool struct{}
type I32FromU8 struct{}
type I32FromS8 struct{}
type I32FromU16 struct{}
type I32FromS16 struct{}
type I32FromU32 struct{}
type I32FromS32 struct{}
type I32FromChar struct{}
type I64FromU64 struct{}
type I64FromS64 struct{}
type F32FromFloat32 struct{}
type F64FromFloat64 struct{}

// ---- scalar conversions, core -> native ----

// BoolFromI32 converts a core i32 to a native bool. Checked emissions trap
// on values other than 0 and 1.
type BoolFromI32 struct{ Checked bool }

type U8FromI32 struct{}
type S8FromI32 struct{}
type U16FromI32 struct{}
type S16FromI32 struct{}
type U32FromI32 struct{}
type S32FromI32 struct{}

// CharFromI32 converts a core i32 to a native char. Checked emissions trap
// on surrogates and values above the Unicode scalar range.
type CharFromI32 struct{ Checked bool }

type U64FromI64 struct{}
type S64FromI64 struct{}
type Float32FromF32 struct{}
type Float64FromF64 struct{}

// Bitcasts reinterprets each operand per the parallel cast list, aligning a
// variant case's natural flat types with the joined payload slots.
type Bitcasts struct{ Casts []Bitcast }

// ---- flags ----

// FlagsLower packs a native flags value into Repr.FlatCount() core words.
type FlagsLower struct {
	Flags *wit.Flags
	Name  string
	Repr  FlagsRepr
}

// FlagsLift reassembles a native flags value from its core words. Checked
// emissions mask off bits beyond the declared flag count.
type FlagsLift struct {
	Flags   *wit.Flags
	Name    string
	Repr    FlagsRepr
	Checked bool
}

// ---- records and tuples ----

// RecordLower destructures a native record into one operand per field, in
// declared order.
type RecordLower struct {
	Record *wit.Record
	Name   string
	Ty     *wit.TypeDef
}

// RecordLift reconstructs a native record from one operand per field.
type RecordLift struct {
	Record *wit.Record
	Name   string
	Ty     *wit.TypeDef
}

type TupleLower struct {
	Tuple *wit.Tuple
	Ty    *wit.TypeDef
}

type TupleLift struct {
	Tuple *wit.Tuple
	Ty    *wit.TypeDef
}

// ---- variants, enums, options, results ----

// VariantPayloadName pushes the binding the enclosing block uses to refer to
// the active case's payload.
type VariantPayloadName struct{}

// VariantLower dispatches on a native variant. One block per case was
// finished before this emission, each ending with len(Results) core
// operands (or zero operands when Results is empty and the blocks only
// produced side effects such as stores).
type VariantLower struct {
	Variant *wit.Variant
	Name    string
	Ty      *wit.TypeDef
	Results []CoreValType
}

// VariantLift dispatches on a core discriminant, selecting one of the
// previously finished per-case blocks. Checked emissions trap on
// out-of-range discriminants; unchecked emissions treat the last case as
// the default arm.
type VariantLift struct {
	Variant *wit.Variant
	Name    string
	Ty      *wit.TypeDef
	Checked bool
}

type EnumLower struct {
	Enum *wit.Enum
	Name string
	Ty   *wit.TypeDef
}

type EnumLift struct {
	Enum    *wit.Enum
	Name    string
	Ty      *wit.TypeDef
	Checked bool
}

// OptionLower dispatches on a native option; two blocks (none, some).
type OptionLower struct {
	Payload wit.Type
	Ty      *wit.TypeDef
	Results []CoreValType
}

// OptionLift selects between two previously finished blocks (none, some).
type OptionLift struct {
	Payload wit.Type
	Ty      *wit.TypeDef
	Checked bool
}

// ResultLower dispatches on a native result; two blocks (ok, err).
type ResultLower struct {
	Result  *wit.Result
	Ty      *wit.TypeDef
	Results []CoreValType
}

// ResultLift selects between two previously finished blocks (ok, err).
type ResultLift struct {
	Result  *wit.Result
	Ty      *wit.TypeDef
	Checked bool
}

// ---- lists and strings ----

// StringLower produces (ptr, len). With Realloc set the string is copied
// into memory obtained from that allocator and ownership passes to the
// callee; with Realloc empty the backend passes a view of the existing
// bytes or a temporary the interpreter registers for cleanup.
type StringLower struct{ Realloc string }

// StringLift consumes (ptr, len) and produces a native string, taking
// ownership of the region. Validate requests a UTF-8 check.
type StringLift struct {
	Validate bool
}

// ListCanonLower lowers a list whose element representation is bit-identical
// to its canonical form: a single memcpy, no per-element block.
type ListCanonLower struct {
	Element wit.Type
	Realloc string
}

type ListCanonLift struct {
	Element wit.Type
	Ty      *wit.TypeDef
}

// ListLower lowers a list element by element. One block was finished before
// this emission; it writes the element bound by IterElem to the address
// bound by IterBasePointer.
type ListLower struct {
	Element wit.Type
	Realloc string
	Ty      *wit.TypeDef
}

// ListLift lifts a list element by element from (ptr, len). One block was
// finished before this emission; it reads an element from IterBasePointer
// and produces one native operand.
type ListLift struct {
	Element wit.Type
	Ty      *wit.TypeDef
}

// IterElem pushes the current element inside a ListLower block.
type IterElem struct{ Element wit.Type }

// IterBasePointer pushes the current element address inside a list block.
type IterBasePointer struct{}

// ---- handles, streams, futures ----

// HandleLower replaces a native resource wrapper with its table index.
type HandleLower struct {
	Ty     *wit.TypeDef
	Name   string
	Borrow bool
}

// HandleLift wraps a table index in the native resource representation.
type HandleLift struct {
	Ty     *wit.TypeDef
	Name   string
	Borrow bool
}

type StreamLower struct {
	Payload wit.Type
	Ty      *wit.TypeDef
}

type StreamLift struct {
	Payload wit.Type
	Ty      *wit.TypeDef
}

type FutureLower struct {
	Payload wit.Type
	Ty      *wit.TypeDef
}

type FutureLift struct {
	Payload wit.Type
	Ty      *wit.TypeDef
}

// ---- calls and returns ----

// CallWasm invokes the core function behind the boundary with the flat
// signature's parameters, yielding its flat results.
type CallWasm struct {
	Name string
	Sig  WasmSignature
}

// CallInterface invokes the user-facing native function, consuming one
// operand per parameter and yielding one per result.
type CallInterface struct{ Func *Function }

// Return ends the generated function with Amt operands.
type Return struct {
	Func *Function
	Amt  int
}

// ---- allocation and cleanup ----

// Malloc obtains Size bytes from the named allocator and pushes the pointer.
type Malloc struct {
	Realloc string
	Size    uint32
	Align   uint32
}

// DeferCleanup records a temporary (ptr, len) allocation on the runtime
// cleanup list and passes both operands through unchanged. The byte length
// is len scaled by ElemSize.
type DeferCleanup struct {
	ElemSize  uint32
	ElemAlign uint32
}

// CleanupList frees every allocation recorded by DeferCleanup during this
// call. Emitted at most once, after control returns across the boundary on
// the lowering side.
type CleanupList struct{}

// GuestDeallocate frees a fixed-size region addressed by the operand.
type GuestDeallocate struct {
	Size  uint32
	Align uint32
}

// GuestDeallocateString frees the (ptr, len) region of a lifted string.
type GuestDeallocateString struct{}

// GuestDeallocateList frees a (ptr, len) list region. One block was
// finished before this emission; it deallocates whatever a single element
// owns and may be empty for scalar elements.
type GuestDeallocateList struct{ Element wit.Type }

// GuestDeallocateVariant dispatches deallocation over the previously
// finished per-case blocks, consuming the discriminant.
type GuestDeallocateVariant struct{ Blocks int }

// ---- async protocol ----

// AsyncCallWasm starts an async-lowered import with (params_ptr,
// results_ptr), yielding the packed status word.
type AsyncCallWasm struct{ Name string }

// AsyncPostCallInterface closes out an async export after its results have
// been delivered, pushing the task handle the core function returns to the
// host (or the null handle when the export completed synchronously).
type AsyncPostCallInterface struct{ Func *Function }

// AsyncCallReturn delivers an async export's lowered results to the host
// through the named task.return intrinsic.
type AsyncCallReturn struct {
	Name   string
	Params []CoreValType
}

func (GetArg) isInstruction()                 {}
func (I32Const) isInstruction()               {}
func (ConstZero) isInstruction()              {}
func (I32Load) isInstruction()                {}
func (I32Load8U) isInstruction()              {}
func (I32Load8S) isInstruction()              {}
func (I32Load16U) isInstruction()             {}
func (I32Load16S) isInstruction()             {}
func (I64Load) isInstruction()                {}
func (F32Load) isInstruction()                {}
func (F64Load) isInstruction()                {}
func (I32Store) isInstruction()               {}
func (I32Store8) isInstruction()              {}
func (I32Store16) isInstruction()             {}
func (I64Store) isInstruction()               {}
func (F32Store) isInstruction()               {}
func (F64Store) isInstruction()               {}
func (I32FromBool) isInstruction()            {}
func (I32FromU8) isInstruction()              {}
func (I32FromS8) isInstruction()              {}
func (I32FromU16) isInstruction()             {}
func (I32FromS16) isInstruction()             {}
func (I32FromU32) isInstruction()             {}
func (I32FromS32) isInstruction()             {}
func (I32FromChar) isInstruction()            {}
func (I64FromU64) isInstruction()             {}
func (I64FromS64) isInstruction()             {}
func (F32FromFloat32) isInstruction()         {}
func (F64FromFloat64) isInstruction()         {}
func (BoolFromI32) isInstruction()            {}
func (U8FromI32) isInstruction()              {}
func (S8FromI32) isInstruction()              {}
func (U16FromI32) isInstruction()             {}
func (S16FromI32) isInstruction()             {}
func (U32FromI32) isInstruction()             {}
func (S32FromI32) isInstruction()             {}
func (CharFromI32) isInstruction()            {}
func (U64FromI64) isInstruction()             {}
func (S64FromI64) isInstruction()             {}
func (Float32FromF32) isInstruction()         {}
func (Float64FromF64) isInstruction()         {}
func (Bitcasts) isInstruction()               {}
func (FlagsLower) isInstruction()             {}
func (FlagsLift) isInstruction()              {}
func (RecordLower) isInstruction()            {}
func (RecordLift) isInstruction()             {}
func (TupleLower) isInstruction()             {}
func (TupleLift) isInstruction()              {}
func (VariantPayloadName) isInstruction()     {}
func (VariantLower) isInstruction()           {}
func (VariantLift) isInstruction()            {}
func (EnumLower) isInstruction()              {}
func (EnumLift) isInstruction()               {}
func (OptionLower) isInstruction()            {}
func (OptionLift) isInstruction()             {}
func (ResultLower) isInstruction()            {}
func (ResultLift) isInstruction()             {}
func (StringLower) isInstruction()            {}
func (StringLift) isInstruction()             {}
func (ListCanonLower) isInstruction()         {}
func (ListCanonLift) isInstruction()          {}
func (ListLower) isInstruction()              {}
func (ListLift) isInstruction()               {}
func (IterElem) isInstruction()               {}
func (IterBasePointer) isInstruction()        {}
func (HandleLower) isInstruction()            {}
func (HandleLift) isInstruction()             {}
func (StreamLower) isInstruction()            {}
func (StreamLift) isInstruction()             {}
func (FutureLower) isInstruction()            {}
func (FutureLift) isInstruction()             {}
func (CallWasm) isInstruction()               {}
func (CallInterface) isInstruction()          {}
func (Return) isInstruction()                 {}
func (Malloc) isInstruction()                 {}
func (DeferCleanup) isInstruction()           {}
func (CleanupList) isInstruction()            {}
func (GuestDeallocate) isInstruction()        {}
func (GuestDeallocateString) isInstruction()  {}
func (GuestDeallocateList) isInstruction()    {}
func (GuestDeallocateVariant) isInstruction() {}
func (AsyncCallWasm) isInstruction()          {}
func (AsyncPostCallInterface) isInstruction() {}
func (AsyncCallReturn) isInstruction()        {}

// arity returns the number of operands an instruction consumes and the
// number of results it produces. The interpreter enforces both sides of the
// contract on every emission.
func arity(inst Instruction) (operands, results int) {
	switch i := inst.(type) {
	case GetArg, I32Const:
		return 0, 1
	case ConstZero:
		return 0, len(i.Types)
	case I32Load, I32Load8U, I32Load8S, I32Load16U, I32Load16S, I64Load, F32Load, F64Load:
		return 1, 1
	case I32Store, I32Store8, I32Store16, I64Store, F32Store, F64Store:
		return 2, 0
	case I32FromBool, I32FromU8, I32FromS8, I32FromU16, I32FromS16, I32FromU32,
		I32FromS32, I32FromChar, I64FromU64, I64FromS64, F32FromFloat32, F64FromFloat64,
		BoolFromI32, U8FromI32, S8FromI32, U16FromI32, S16FromI32, U32FromI32,
		S32FromI32, CharFromI32, U64FromI64, S64FromI64, Float32FromF32, Float64FromF64:
		return 1, 1
	case Bitcasts:
		return len(i.Casts), len(i.Casts)
	case FlagsLower:
		return 1, i.Repr.FlatCount()
	case FlagsLift:
		return i.Repr.FlatCount(), 1
	case RecordLower:
		return 1, len(i.Record.Fields)
	case RecordLift:
		return len(i.Record.Fields), 1
	case TupleLower:
		return 1, len(i.Tuple.Types)
	case TupleLift:
		return len(i.Tuple.Types), 1
	case VariantPayloadName:
		return 0, 1
	case VariantLower:
		return 1, len(i.Results)
	case VariantLift:
		return 1, 1
	case EnumLower, EnumLift:
		return 1, 1
	case OptionLower:
		return 1, len(i.Results)
	case OptionLift:
		return 1, 1
	case ResultLower:
		return 1, len(i.Results)
	case ResultLift:
		return 1, 1
	case StringLower, ListCanonLower, ListLower:
		return 1, 2
	case StringLift, ListCanonLift, ListLift:
		return 2, 1
	case IterElem:
		return 0, 1
	case IterBasePointer:
		return 0, 1
	case HandleLower, HandleLift, StreamLower, StreamLift, FutureLower, FutureLift:
		return 1, 1
	case CallWasm:
		return len(i.Sig.Params), len(i.Sig.Results)
	case CallInterface:
		return len(i.Func.Params), len(i.Func.Results)
	case Return:
		return i.Amt, 0
	case Malloc:
		return 0, 1
	case DeferCleanup:
		return 2, 2
	case CleanupList:
		return 0, 0
	case GuestDeallocate:
		return 1, 0
	case GuestDeallocateString:
		return 2, 0
	case GuestDeallocateList:
		return 2, 0
	case GuestDeallocateVariant:
		return 1, 0
	case AsyncCallWasm:
		return 2, 1
	case AsyncPostCallInterface:
		return 0, 1
	case AsyncCallReturn:
		return len(i.Params), 0
	default:
		panic(fmt.Sprintf("abi: unknown instruction %T", inst))
	}
}

// Mnemonic returns a short printable name for an instruction, used by
// debug tooling and test diagnostics.
func Mnemonic(inst Instruction) string {
	return fmt.Sprintf("%T", inst)[len("abi."):]
}
