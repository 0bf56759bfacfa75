package abi

import (
	"github.com/wippyai/witgen/errors"
	"go.bytecodealliance.org/wit"
)

// MaxFlags is the largest flag count the Canonical ABI can represent
// (four 32-bit words).
const MaxFlags = 128

// Layout describes the linear-memory footprint of one type.
type Layout struct {
	Size  uint32
	Align uint32
}

// SizeAlign memoizes Canonical ABI size and alignment per type definition.
// Fill the table once per resolved graph; lookups afterwards are read-only
// and safe for concurrent generation passes.
type SizeAlign struct {
	cache map[*wit.TypeDef]Layout
}

func NewSizeAlign() *SizeAlign {
	return &SizeAlign{
		cache: make(map[*wit.TypeDef]Layout),
	}
}

// Fill pre-computes the layout of every given type definition. Dependencies
// are resolved recursively through the memo table, so callers may pass the
// definitions in any order.
func (s *SizeAlign) Fill(defs []*wit.TypeDef) {
	for _, td := range defs {
		s.Calculate(td)
	}
}

// Size returns the byte size of t.
func (s *SizeAlign) Size(t wit.Type) uint32 {
	return s.Calculate(t).Size
}

// Align returns the byte alignment of t.
func (s *SizeAlign) Align(t wit.Type) uint32 {
	return s.Calculate(t).Align
}

// Calculate returns the layout of t, memoizing type definitions.
func (s *SizeAlign) Calculate(t wit.Type) Layout {
	switch t.(type) {
	case wit.Bool, wit.U8, wit.S8:
		return Layout{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Layout{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Layout{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Layout{Size: 8, Align: 8}
	case wit.String:
		return Layout{Size: 8, Align: 4} // ptr + len
	case *wit.TypeDef:
		return s.calculateTypeDef(t.(*wit.TypeDef))
	default:
		return Layout{Size: 0, Align: 1}
	}
}

func (s *SizeAlign) calculateTypeDef(t *wit.TypeDef) Layout {
	if cached, ok := s.cache[t]; ok {
		return cached
	}

	var l Layout

	switch kind := t.Kind.(type) {
	case *wit.Record:
		l = s.recordLayout(fieldTypes(kind.Fields))
	case *wit.Tuple:
		l = s.recordLayout(kind.Types)
	case *wit.Variant:
		l = s.variantLayout(len(kind.Cases), caseTypes(kind.Cases))
	case *wit.Enum:
		size := DiscriminantSize(len(kind.Cases))
		l = Layout{Size: size, Align: size}
	case *wit.Option:
		l = s.variantLayout(2, []wit.Type{kind.Type})
	case *wit.Result:
		l = s.variantLayout(2, resultTypes(kind))
	case *wit.Flags:
		l = flagsRepr(len(kind.Flags)).Layout()
	case *wit.List:
		l = Layout{Size: 8, Align: 4} // ptr + len
	case *wit.Own, *wit.Borrow, *wit.Resource:
		l = Layout{Size: 4, Align: 4} // table index
	case *wit.Stream, *wit.Future:
		l = Layout{Size: 4, Align: 4} // handle
	case wit.Type:
		l = s.Calculate(kind)
	default:
		l = Layout{Size: 0, Align: 1}
	}

	s.cache[t] = l
	return l
}

func (s *SizeAlign) recordLayout(types []wit.Type) Layout {
	if len(types) == 0 {
		return Layout{Size: 0, Align: 1}
	}

	maxAlign := uint32(1)
	offset := uint32(0)

	for _, t := range types {
		l := s.Calculate(t)
		offset = AlignTo(offset, l.Align)
		if l.Align > maxAlign {
			maxAlign = l.Align
		}
		offset += l.Size
	}

	return Layout{
		Size:  AlignTo(offset, maxAlign),
		Align: maxAlign,
	}
}

func (s *SizeAlign) variantLayout(numCases int, payloads []wit.Type) Layout {
	if numCases == 0 {
		return Layout{Size: 0, Align: 1}
	}

	discSize := DiscriminantSize(numCases)

	maxAlign := discSize
	maxSize := uint32(0)

	for _, t := range payloads {
		if t == nil {
			continue
		}
		l := s.Calculate(t)
		if l.Align > maxAlign {
			maxAlign = l.Align
		}
		if l.Size > maxSize {
			maxSize = l.Size
		}
	}

	payloadOffset := AlignTo(discSize, maxAlign)
	return Layout{
		Size:  AlignTo(payloadOffset+maxSize, maxAlign),
		Align: maxAlign,
	}
}

// Area returns the layout of a sequence of types packed like record fields,
// e.g. a spilled parameter area or an async call's argument block.
func (s *SizeAlign) Area(types []wit.Type) Layout {
	return s.recordLayout(types)
}

// FieldOffsets returns the cumulative aligned offset of each record field in
// declared order.
func (s *SizeAlign) FieldOffsets(fields []wit.Field) []uint32 {
	return s.ElementOffsets(fieldTypes(fields))
}

// ElementOffsets returns the cumulative aligned offset of each type in a
// sequential layout, e.g. tuple elements or a function's spilled parameter
// area.
func (s *SizeAlign) ElementOffsets(types []wit.Type) []uint32 {
	offsets := make([]uint32, len(types))
	offset := uint32(0)
	for i, t := range types {
		l := s.Calculate(t)
		offset = AlignTo(offset, l.Align)
		offsets[i] = offset
		offset += l.Size
	}
	return offsets
}

// PayloadOffset returns the offset at which a variant's payload begins: the
// tag size rounded up to the maximum payload alignment.
func (s *SizeAlign) PayloadOffset(numCases int, payloads []wit.Type) uint32 {
	discSize := DiscriminantSize(numCases)
	maxAlign := discSize
	for _, t := range payloads {
		if t == nil {
			continue
		}
		if a := s.Align(t); a > maxAlign {
			maxAlign = a
		}
	}
	return AlignTo(discSize, maxAlign)
}

// DiscriminantSize returns the byte width of the smallest unsigned integer
// tag for a variant or enum with the given case count.
func DiscriminantSize(numCases int) uint32 {
	switch {
	case numCases <= 1<<8-1:
		return 1
	case numCases <= 1<<16-1:
		return 2
	default:
		return 4
	}
}

// AlignTo rounds offset up to the next multiple of align.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// FlagsRepr describes how a flags type is stored: a single small integer for
// up to 16 bits, otherwise one or more 32-bit words.
type FlagsRepr struct {
	// Words is the number of 32-bit words, or 0 for the packed u8/u16 forms.
	Words int
	// Bits is 8 or 16 for the packed forms, 0 otherwise.
	Bits int
}

// Layout returns the memory footprint of the representation.
func (r FlagsRepr) Layout() Layout {
	switch {
	case r.Bits == 8:
		return Layout{Size: 1, Align: 1}
	case r.Bits == 16:
		return Layout{Size: 2, Align: 2}
	default:
		return Layout{Size: uint32(r.Words) * 4, Align: 4}
	}
}

// FlatCount returns how many core values the representation occupies when
// passed by value.
func (r FlagsRepr) FlatCount() int {
	if r.Words > 1 {
		return r.Words
	}
	return 1
}

func flagsRepr(numFlags int) FlagsRepr {
	switch {
	case numFlags == 0:
		return FlagsRepr{Words: 0, Bits: 8}
	case numFlags <= 8:
		return FlagsRepr{Bits: 8}
	case numFlags <= 16:
		return FlagsRepr{Bits: 16}
	default:
		return FlagsRepr{Words: (numFlags + 31) / 32}
	}
}

// FlagsLayout validates and returns the representation of a flags type. More
// than MaxFlags flags is an unsupported shape: generation for the enclosing
// function must abort before any instruction is emitted.
func FlagsLayout(f *wit.Flags, name string) (FlagsRepr, error) {
	if len(f.Flags) > MaxFlags {
		return FlagsRepr{}, errors.FlagCount(name, len(f.Flags))
	}
	return flagsRepr(len(f.Flags)), nil
}

func fieldTypes(fields []wit.Field) []wit.Type {
	types := make([]wit.Type, len(fields))
	for i, f := range fields {
		types[i] = f.Type
	}
	return types
}

func caseTypes(cases []wit.Case) []wit.Type {
	types := make([]wit.Type, len(cases))
	for i, c := range cases {
		types[i] = c.Type
	}
	return types
}

func resultTypes(r *wit.Result) []wit.Type {
	var types []wit.Type
	if r.OK != nil {
		types = append(types, r.OK)
	}
	if r.Err != nil {
		types = append(types, r.Err)
	}
	return types
}
