package abi

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"
)

// Recorder is a reference Bindgen that records the instruction stream
// instead of generating code. Operands are synthetic value names, so the
// recorded listing reads like three-address pseudo-code. It backs the
// inspection tooling and the package tests; real backends follow the same
// shape with target-language expressions as operands.
type Recorder struct {
	sizes *SizeAlign

	// Stream is every emitted instruction in order, block bodies included.
	Stream []Instruction
	// Lines is a readable rendering of the pass, one line per emission.
	Lines []string
	// Blocks is the number of finished blocks.
	Blocks int

	depth int
	next  int
}

func NewRecorder(sizes *SizeAlign) *Recorder {
	return &Recorder{sizes: sizes}
}

func (r *Recorder) Emit(inst Instruction, operands []string, results []string) []string {
	r.Stream = append(r.Stream, inst)

	_, n := arity(inst)
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		names = append(names, r.fresh("v"))
	}

	line := Mnemonic(inst) + "(" + strings.Join(operands, ", ") + ")"
	if len(names) > 0 {
		line = strings.Join(names, ", ") + " = " + line
	}
	r.line(line)

	return append(results, names...)
}

func (r *Recorder) PushBlock() {
	r.line("block {")
	r.depth++
}

func (r *Recorder) FinishBlock(operands []string) {
	r.depth--
	r.line("} -> (" + strings.Join(operands, ", ") + ")")
	r.Blocks++
}

func (r *Recorder) ReturnPointer(size, align uint32) string {
	name := r.fresh("ptr")
	r.line(fmt.Sprintf("%s = ReturnPointer(size=%d, align=%d)", name, size, align))
	return name
}

func (r *Recorder) Sizes() *SizeAlign {
	return r.sizes
}

// IsListCanonical reports true for fixed-width numeric elements, whose
// recorded representation matches the canonical byte layout.
func (r *Recorder) IsListCanonical(element wit.Type) bool {
	switch element.(type) {
	case wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32,
		wit.U64, wit.S64, wit.F32, wit.F64:
		return true
	default:
		return false
	}
}

// Listing returns the rendered pass as one string.
func (r *Recorder) Listing() string {
	return strings.Join(r.Lines, "\n")
}

func (r *Recorder) fresh(prefix string) string {
	name := fmt.Sprintf("%s%d", prefix, r.next)
	r.next++
	return name
}

func (r *Recorder) line(s string) {
	r.Lines = append(r.Lines, strings.Repeat("  ", r.depth)+s)
}
