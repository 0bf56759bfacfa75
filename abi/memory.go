package abi

import (
	"fmt"

	"go.bytecodealliance.org/wit"
)

// LowerToMemory generates the instruction stream that writes one native
// value into linear memory at addr+offset. It drives the same recursion as
// Call and is the entry point runtimes use for values that travel through
// argument and result areas, such as async calls.
func LowerToMemory[O any](b Bindgen[O], opts Options, t wit.Type, value, addr O, offset uint32) error {
	if err := validateType(t, make(map[*wit.TypeDef]bool)); err != nil {
		return err
	}
	g := &generator[O]{
		variant: GuestExport,
		lift:    LiftArgsLowerResults,
		f:       &Function{Name: "<memory>"},
		b:       b,
		opts:    opts,
		sizes:   b.Sizes(),
	}
	g.push(value)
	g.writeToMemory(t, addr, offset)
	if len(g.stack) != 0 {
		panic(fmt.Sprintf("abi: %d operands left on stack after memory lower", len(g.stack)))
	}
	return nil
}

// LiftFromMemory generates the instruction stream that reads one native
// value from linear memory at addr+offset and returns its operand.
func LiftFromMemory[O any](b Bindgen[O], opts Options, t wit.Type, addr O, offset uint32) (O, error) {
	var zero O
	if err := validateType(t, make(map[*wit.TypeDef]bool)); err != nil {
		return zero, err
	}
	g := &generator[O]{
		variant: GuestImport,
		lift:    LowerArgsLiftResults,
		f:       &Function{Name: "<memory>"},
		b:       b,
		opts:    opts,
		sizes:   b.Sizes(),
	}
	g.readFromMemory(t, addr, offset)
	v := g.pop()
	if len(g.stack) != 0 {
		panic(fmt.Sprintf("abi: %d operands left on stack after memory lift", len(g.stack)))
	}
	return v, nil
}

// writeToMemory consumes one native operand from the stack and emits the
// stores placing it at addr+offset.
func (g *generator[O]) writeToMemory(t wit.Type, addr O, offset uint32) {
	switch t.(type) {
	case wit.Bool:
		g.emit(I32FromBool{})
		g.push(addr)
		g.emit(I32Store8{Offset: offset})
	case wit.U8:
		g.emit(I32FromU8{})
		g.push(addr)
		g.emit(I32Store8{Offset: offset})
	case wit.S8:
		g.emit(I32FromS8{})
		g.push(addr)
		g.emit(I32Store8{Offset: offset})
	case wit.U16:
		g.emit(I32FromU16{})
		g.push(addr)
		g.emit(I32Store16{Offset: offset})
	case wit.S16:
		g.emit(I32FromS16{})
		g.push(addr)
		g.emit(I32Store16{Offset: offset})
	case wit.U32:
		g.emit(I32FromU32{})
		g.push(addr)
		g.emit(I32Store{Offset: offset})
	case wit.S32:
		g.emit(I32FromS32{})
		g.push(addr)
		g.emit(I32Store{Offset: offset})
	case wit.Char:
		g.emit(I32FromChar{})
		g.push(addr)
		g.emit(I32Store{Offset: offset})
	case wit.U64:
		g.emit(I64FromU64{})
		g.push(addr)
		g.emit(I64Store{Offset: offset})
	case wit.S64:
		g.emit(I64FromS64{})
		g.push(addr)
		g.emit(I64Store{Offset: offset})
	case wit.F32:
		g.emit(F32FromFloat32{})
		g.push(addr)
		g.emit(F32Store{Offset: offset})
	case wit.F64:
		g.emit(F64FromFloat64{})
		g.push(addr)
		g.emit(F64Store{Offset: offset})
	case wit.String:
		g.lowerString()
		g.storePtrLen(addr, offset)
	case *wit.TypeDef:
		g.writeTypeDefToMemory(t.(*wit.TypeDef), addr, offset)
	default:
		panic(fmt.Sprintf("abi: cannot write %T to memory", t))
	}
}

func (g *generator[O]) writeTypeDefToMemory(td *wit.TypeDef, addr O, offset uint32) {
	switch kind := td.Kind.(type) {
	case *wit.Record:
		g.emit(RecordLower{Record: kind, Name: typeName(td), Ty: td})
		vals := g.popN(len(kind.Fields))
		offsets := g.sizes.FieldOffsets(kind.Fields)
		for i, f := range kind.Fields {
			g.push(vals[i])
			g.writeToMemory(f.Type, addr, offset+offsets[i])
		}
	case *wit.Tuple:
		g.emit(TupleLower{Tuple: kind, Ty: td})
		vals := g.popN(len(kind.Types))
		offsets := g.sizes.ElementOffsets(kind.Types)
		for i, t := range kind.Types {
			g.push(vals[i])
			g.writeToMemory(t, addr, offset+offsets[i])
		}
	case *wit.Flags:
		g.writeFlagsToMemory(kind, td, addr, offset)
	case *wit.Variant:
		payloads := caseTypes(kind.Cases)
		g.writeVariantBlocks(payloads, len(kind.Cases), addr, offset)
		g.emit(VariantLower{Variant: kind, Name: typeName(td), Ty: td})
	case *wit.Option:
		payloads := []wit.Type{nil, kind.Type}
		g.writeVariantBlocks(payloads, 2, addr, offset)
		g.emit(OptionLower{Payload: kind.Type, Ty: td})
	case *wit.Result:
		payloads := []wit.Type{kind.OK, kind.Err}
		g.writeVariantBlocks(payloads, 2, addr, offset)
		g.emit(ResultLower{Result: kind, Ty: td})
	case *wit.Enum:
		g.emit(EnumLower{Enum: kind, Name: typeName(td), Ty: td})
		g.push(addr)
		g.storeDiscriminant(DiscriminantSize(len(kind.Cases)), offset)
	case *wit.List:
		g.lowerList(kind, td)
		g.storePtrLen(addr, offset)
	case *wit.Own:
		g.emit(HandleLower{Ty: kind.Type, Name: typeName(kind.Type), Borrow: false})
		g.push(addr)
		g.emit(I32Store{Offset: offset})
	case *wit.Borrow:
		g.emit(HandleLower{Ty: kind.Type, Name: typeName(kind.Type), Borrow: true})
		g.push(addr)
		g.emit(I32Store{Offset: offset})
	case *wit.Resource:
		g.emit(HandleLower{Ty: td, Name: typeName(td), Borrow: true})
		g.push(addr)
		g.emit(I32Store{Offset: offset})
	case *wit.Stream:
		g.emit(StreamLower{Payload: kind.Type, Ty: td})
		g.push(addr)
		g.emit(I32Store{Offset: offset})
	case *wit.Future:
		g.emit(FutureLower{Payload: kind.Type, Ty: td})
		g.push(addr)
		g.emit(I32Store{Offset: offset})
	case wit.Type:
		g.writeToMemory(kind, addr, offset)
	default:
		panic(fmt.Sprintf("abi: cannot write type kind %T to memory", kind))
	}
}

// writeVariantBlocks emits one block per case, each storing the
// discriminant and its payload directly; the blocks leave nothing on the
// stack and the dispatching instruction carries no results.
func (g *generator[O]) writeVariantBlocks(payloads []wit.Type, numCases int, addr O, offset uint32) {
	discSize := DiscriminantSize(numCases)
	payloadOffset := g.sizes.PayloadOffset(numCases, payloads)

	for i, pt := range payloads {
		g.b.PushBlock()
		g.emit(VariantPayloadName{})
		payload := g.pop()
		g.emit(I32Const{Val: int32(i)})
		g.push(addr)
		g.storeDiscriminant(discSize, offset)
		if pt != nil {
			g.push(payload)
			g.writeToMemory(pt, addr, offset+payloadOffset)
		}
		g.b.FinishBlock(nil)
	}
}

func (g *generator[O]) writeFlagsToMemory(kind *wit.Flags, td *wit.TypeDef, addr O, offset uint32) {
	repr := flagsRepr(len(kind.Flags))
	g.emit(FlagsLower{Flags: kind, Name: typeName(td), Repr: repr})

	switch {
	case repr.Bits == 8:
		g.push(addr)
		g.emit(I32Store8{Offset: offset})
	case repr.Bits == 16:
		g.push(addr)
		g.emit(I32Store16{Offset: offset})
	default:
		words := g.popN(repr.FlatCount())
		for i, w := range words {
			g.push(w)
			g.push(addr)
			g.emit(I32Store{Offset: offset + uint32(i)*4})
		}
	}
}

// storePtrLen consumes (ptr, len) from the stack and stores them as the
// canonical two-word form at addr+offset.
func (g *generator[O]) storePtrLen(addr O, offset uint32) {
	vals := g.popN(2)
	g.push(vals[1])
	g.push(addr)
	g.emit(I32Store{Offset: offset + 4})
	g.push(vals[0])
	g.push(addr)
	g.emit(I32Store{Offset: offset})
}

func (g *generator[O]) storeDiscriminant(discSize uint32, offset uint32) {
	switch discSize {
	case 1:
		g.emit(I32Store8{Offset: offset})
	case 2:
		g.emit(I32Store16{Offset: offset})
	default:
		g.emit(I32Store{Offset: offset})
	}
}

// readFromMemory emits the loads lifting one native value from addr+offset
// and leaves its operand on the stack.
func (g *generator[O]) readFromMemory(t wit.Type, addr O, offset uint32) {
	checked := !g.opts.Unchecked
	switch t.(type) {
	case wit.Bool:
		g.push(addr)
		g.emit(I32Load8U{Offset: offset})
		g.emit(BoolFromI32{Checked: checked})
	case wit.U8:
		g.push(addr)
		g.emit(I32Load8U{Offset: offset})
		g.emit(U8FromI32{})
	case wit.S8:
		g.push(addr)
		g.emit(I32Load8S{Offset: offset})
		g.emit(S8FromI32{})
	case wit.U16:
		g.push(addr)
		g.emit(I32Load16U{Offset: offset})
		g.emit(U16FromI32{})
	case wit.S16:
		g.push(addr)
		g.emit(I32Load16S{Offset: offset})
		g.emit(S16FromI32{})
	case wit.U32:
		g.push(addr)
		g.emit(I32Load{Offset: offset})
		g.emit(U32FromI32{})
	case wit.S32:
		g.push(addr)
		g.emit(I32Load{Offset: offset})
		g.emit(S32FromI32{})
	case wit.Char:
		g.push(addr)
		g.emit(I32Load{Offset: offset})
		g.emit(CharFromI32{Checked: checked})
	case wit.U64:
		g.push(addr)
		g.emit(I64Load{Offset: offset})
		g.emit(U64FromI64{})
	case wit.S64:
		g.push(addr)
		g.emit(I64Load{Offset: offset})
		g.emit(S64FromI64{})
	case wit.F32:
		g.push(addr)
		g.emit(F32Load{Offset: offset})
		g.emit(Float32FromF32{})
	case wit.F64:
		g.push(addr)
		g.emit(F64Load{Offset: offset})
		g.emit(Float64FromF64{})
	case wit.String:
		g.loadPtrLen(addr, offset)
		g.emit(StringLift{Validate: checked && !g.opts.RawStrings})
	case *wit.TypeDef:
		g.readTypeDefFromMemory(t.(*wit.TypeDef), addr, offset)
	default:
		panic(fmt.Sprintf("abi: cannot read %T from memory", t))
	}
}

func (g *generator[O]) readTypeDefFromMemory(td *wit.TypeDef, addr O, offset uint32) {
	checked := !g.opts.Unchecked
	switch kind := td.Kind.(type) {
	case *wit.Record:
		offsets := g.sizes.FieldOffsets(kind.Fields)
		for i, f := range kind.Fields {
			g.readFromMemory(f.Type, addr, offset+offsets[i])
		}
		g.emit(RecordLift{Record: kind, Name: typeName(td), Ty: td})
	case *wit.Tuple:
		offsets := g.sizes.ElementOffsets(kind.Types)
		for i, t := range kind.Types {
			g.readFromMemory(t, addr, offset+offsets[i])
		}
		g.emit(TupleLift{Tuple: kind, Ty: td})
	case *wit.Flags:
		g.readFlagsFromMemory(kind, td, addr, offset)
	case *wit.Variant:
		payloads := caseTypes(kind.Cases)
		g.readVariantBlocks(payloads, len(kind.Cases), addr, offset)
		g.emit(VariantLift{Variant: kind, Name: typeName(td), Ty: td, Checked: checked})
	case *wit.Option:
		g.readVariantBlocks([]wit.Type{nil, kind.Type}, 2, addr, offset)
		g.emit(OptionLift{Payload: kind.Type, Ty: td, Checked: checked})
	case *wit.Result:
		g.readVariantBlocks([]wit.Type{kind.OK, kind.Err}, 2, addr, offset)
		g.emit(ResultLift{Result: kind, Ty: td, Checked: checked})
	case *wit.Enum:
		g.push(addr)
		g.loadDiscriminant(DiscriminantSize(len(kind.Cases)), offset)
		g.emit(EnumLift{Enum: kind, Name: typeName(td), Ty: td, Checked: checked})
	case *wit.List:
		g.loadPtrLen(addr, offset)
		if g.b.IsListCanonical(kind.Type) {
			g.emit(ListCanonLift{Element: kind.Type, Ty: td})
		} else {
			g.b.PushBlock()
			g.emit(IterBasePointer{})
			base := g.pop()
			g.readFromMemory(kind.Type, base, 0)
			g.b.FinishBlock(g.popN(1))
			g.emit(ListLift{Element: kind.Type, Ty: td})
		}
	case *wit.Own:
		g.push(addr)
		g.emit(I32Load{Offset: offset})
		g.emit(HandleLift{Ty: kind.Type, Name: typeName(kind.Type), Borrow: false})
	case *wit.Borrow:
		g.push(addr)
		g.emit(I32Load{Offset: offset})
		g.emit(HandleLift{Ty: kind.Type, Name: typeName(kind.Type), Borrow: true})
	case *wit.Resource:
		g.push(addr)
		g.emit(I32Load{Offset: offset})
		g.emit(HandleLift{Ty: td, Name: typeName(td), Borrow: true})
	case *wit.Stream:
		g.push(addr)
		g.emit(I32Load{Offset: offset})
		g.emit(StreamLift{Payload: kind.Type, Ty: td})
	case *wit.Future:
		g.push(addr)
		g.emit(I32Load{Offset: offset})
		g.emit(FutureLift{Payload: kind.Type, Ty: td})
	case wit.Type:
		g.readFromMemory(kind, addr, offset)
	default:
		panic(fmt.Sprintf("abi: cannot read type kind %T from memory", kind))
	}
}

// readVariantBlocks loads the discriminant, then emits one block per case
// lifting that case's payload from the shared payload area.
func (g *generator[O]) readVariantBlocks(payloads []wit.Type, numCases int, addr O, offset uint32) {
	discSize := DiscriminantSize(numCases)
	payloadOffset := g.sizes.PayloadOffset(numCases, payloads)

	g.push(addr)
	g.loadDiscriminant(discSize, offset)

	for _, pt := range payloads {
		g.b.PushBlock()
		if pt != nil {
			g.readFromMemory(pt, addr, offset+payloadOffset)
			g.b.FinishBlock(g.popN(1))
		} else {
			g.b.FinishBlock(nil)
		}
	}
}

func (g *generator[O]) readFlagsFromMemory(kind *wit.Flags, td *wit.TypeDef, addr O, offset uint32) {
	repr := flagsRepr(len(kind.Flags))

	switch {
	case repr.Bits == 8:
		g.push(addr)
		g.emit(I32Load8U{Offset: offset})
	case repr.Bits == 16:
		g.push(addr)
		g.emit(I32Load16U{Offset: offset})
	default:
		for i := 0; i < repr.FlatCount(); i++ {
			g.push(addr)
			g.emit(I32Load{Offset: offset + uint32(i)*4})
		}
	}

	g.emit(FlagsLift{Flags: kind, Name: typeName(td), Repr: repr, Checked: !g.opts.Unchecked})
}

func (g *generator[O]) loadPtrLen(addr O, offset uint32) {
	g.push(addr)
	g.emit(I32Load{Offset: offset})
	g.push(addr)
	g.emit(I32Load{Offset: offset + 4})
}

func (g *generator[O]) loadDiscriminant(discSize uint32, offset uint32) {
	switch discSize {
	case 1:
		g.emit(I32Load8U{Offset: offset})
	case 2:
		g.emit(I32Load16U{Offset: offset})
	default:
		g.emit(I32Load{Offset: offset})
	}
}
