package abi

import "go.bytecodealliance.org/wit"

// Bindgen is the backend a generation pass drives. O is the backend's
// operand representation, typically an expression fragment in the target
// language.
//
// Emit receives each instruction with exactly the operands its arity
// demands and must append exactly the declared number of results. Branchy
// instructions are preceded by PushBlock/FinishBlock pairs, one per arm, in
// case order; FinishBlock receives the operands the arm's body left behind
// and the backend stores the completed arm until the dispatching
// instruction consumes it.
type Bindgen[O any] interface {
	// Emit appends the results of one instruction to results and returns
	// the extended slice.
	Emit(inst Instruction, operands []O, results []O) []O

	// PushBlock begins collecting code for one arm of a branchy
	// instruction.
	PushBlock()

	// FinishBlock ends the current arm. operands are the values the arm's
	// body produced and must be forwarded into the arm's result position.
	FinishBlock(operands []O)

	// ReturnPointer reserves a memory area of the given size and alignment
	// for an oversized parameter or result spill and returns an operand
	// addressing it.
	ReturnPointer(size, align uint32) O

	// Sizes is the layout table for the resolved graph being generated.
	Sizes() *SizeAlign

	// IsListCanonical reports whether the backend's representation of
	// list<element> is bit-identical to the canonical memory form, enabling
	// the single-memcpy path.
	IsListCanonical(element wit.Type) bool
}
