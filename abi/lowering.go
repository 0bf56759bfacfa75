package abi

import (
	"fmt"

	"go.bytecodealliance.org/wit"
)

// lower consumes one native operand from the stack and pushes its flat core
// representation.
func (g *generator[O]) lower(t wit.Type) {
	switch t.(type) {
	case wit.Bool:
		g.emit(I32FromBool{})
	case wit.U8:
		g.emit(I32FromU8{})
	case wit.S8:
		g.emit(I32FromS8{})
	case wit.U16:
		g.emit(I32FromU16{})
	case wit.S16:
		g.emit(I32FromS16{})
	case wit.U32:
		g.emit(I32FromU32{})
	case wit.S32:
		g.emit(I32FromS32{})
	case wit.U64:
		g.emit(I64FromU64{})
	case wit.S64:
		g.emit(I64FromS64{})
	case wit.F32:
		g.emit(F32FromFloat32{})
	case wit.F64:
		g.emit(F64FromFloat64{})
	case wit.Char:
		g.emit(I32FromChar{})
	case wit.String:
		g.lowerString()
	case *wit.TypeDef:
		g.lowerTypeDef(t.(*wit.TypeDef))
	default:
		panic(fmt.Sprintf("abi: cannot lower %T", t))
	}
}

func (g *generator[O]) lowerString() {
	realloc := g.loweringRealloc()
	g.emit(StringLower{Realloc: realloc})
	if realloc == "" {
		g.emit(DeferCleanup{ElemSize: 1, ElemAlign: 1})
	}
}

func (g *generator[O]) lowerTypeDef(td *wit.TypeDef) {
	switch kind := td.Kind.(type) {
	case *wit.Record:
		g.emit(RecordLower{Record: kind, Name: typeName(td), Ty: td})
		vals := g.popN(len(kind.Fields))
		for i, f := range kind.Fields {
			g.push(vals[i])
			g.lower(f.Type)
		}
	case *wit.Tuple:
		g.emit(TupleLower{Tuple: kind, Ty: td})
		vals := g.popN(len(kind.Types))
		for i, t := range kind.Types {
			g.push(vals[i])
			g.lower(t)
		}
	case *wit.Flags:
		g.emit(FlagsLower{Flags: kind, Name: typeName(td), Repr: flagsRepr(len(kind.Flags))})
	case *wit.Variant:
		flat := FlattenType(td)
		g.lowerVariantBlocks(caseTypes(kind.Cases), flat)
		g.emit(VariantLower{Variant: kind, Name: typeName(td), Ty: td, Results: flat})
	case *wit.Enum:
		g.emit(EnumLower{Enum: kind, Name: typeName(td), Ty: td})
	case *wit.Option:
		flat := FlattenType(td)
		g.lowerVariantBlocks([]wit.Type{nil, kind.Type}, flat)
		g.emit(OptionLower{Payload: kind.Type, Ty: td, Results: flat})
	case *wit.Result:
		flat := FlattenType(td)
		g.lowerVariantBlocks([]wit.Type{kind.OK, kind.Err}, flat)
		g.emit(ResultLower{Result: kind, Ty: td, Results: flat})
	case *wit.List:
		g.lowerList(kind, td)
	case *wit.Own:
		g.emit(HandleLower{Ty: kind.Type, Name: typeName(kind.Type), Borrow: false})
	case *wit.Borrow:
		g.emit(HandleLower{Ty: kind.Type, Name: typeName(kind.Type), Borrow: true})
	case *wit.Resource:
		g.emit(HandleLower{Ty: td, Name: typeName(td), Borrow: true})
	case *wit.Stream:
		g.emit(StreamLower{Payload: kind.Type, Ty: td})
	case *wit.Future:
		g.emit(FutureLower{Payload: kind.Type, Ty: td})
	case wit.Type:
		g.lower(kind)
	default:
		panic(fmt.Sprintf("abi: cannot lower type kind %T", kind))
	}
}

// lowerVariantBlocks emits one block per case, each leaving the discriminant
// and the joined payload slots. flat is the full flattening of the variant,
// discriminant included.
func (g *generator[O]) lowerVariantBlocks(payloads []wit.Type, flat []CoreValType) {
	slots := flat[1:]
	for i, pt := range payloads {
		g.b.PushBlock()
		g.emit(VariantPayloadName{})
		payload := g.pop()
		g.emit(I32Const{Val: int32(i)})
		if pt != nil {
			g.push(payload)
			g.lower(pt)
			caseFlat := FlattenType(pt)
			casts := make([]Bitcast, len(caseFlat))
			mixed := false
			for j, ct := range caseFlat {
				casts[j] = bitcast(ct, slots[j])
				if casts[j] != BitcastNone {
					mixed = true
				}
			}
			if mixed {
				g.emit(Bitcasts{Casts: casts})
			}
			if len(caseFlat) < len(slots) {
				g.emit(ConstZero{Types: slots[len(caseFlat):]})
			}
		} else if len(slots) > 0 {
			g.emit(ConstZero{Types: slots})
		}
		g.b.FinishBlock(g.popN(len(flat)))
	}
}

func (g *generator[O]) lowerList(kind *wit.List, td *wit.TypeDef) {
	realloc := g.loweringRealloc()
	elem := g.sizes.Calculate(kind.Type)

	if g.b.IsListCanonical(kind.Type) {
		g.emit(ListCanonLower{Element: kind.Type, Realloc: realloc})
		if realloc == "" {
			g.emit(DeferCleanup{ElemSize: elem.Size, ElemAlign: elem.Align})
		}
		return
	}

	g.b.PushBlock()
	g.emit(IterElem{Element: kind.Type})
	g.emit(IterBasePointer{})
	addr := g.pop()
	g.writeToMemory(kind.Type, addr, 0)
	g.b.FinishBlock(nil)
	g.emit(ListLower{Element: kind.Type, Realloc: realloc, Ty: td})
	if realloc == "" {
		g.emit(DeferCleanup{ElemSize: elem.Size, ElemAlign: elem.Align})
	}
}

// liftType consumes a type's flat core operands from the stack and pushes
// one native operand.
func (g *generator[O]) liftType(t wit.Type) {
	checked := !g.opts.Unchecked
	switch t.(type) {
	case wit.Bool:
		g.emit(BoolFromI32{Checked: checked})
	case wit.U8:
		g.emit(U8FromI32{})
	case wit.S8:
		g.emit(S8FromI32{})
	case wit.U16:
		g.emit(U16FromI32{})
	case wit.S16:
		g.emit(S16FromI32{})
	case wit.U32:
		g.emit(U32FromI32{})
	case wit.S32:
		g.emit(S32FromI32{})
	case wit.U64:
		g.emit(U64FromI64{})
	case wit.S64:
		g.emit(S64FromI64{})
	case wit.F32:
		g.emit(Float32FromF32{})
	case wit.F64:
		g.emit(Float64FromF64{})
	case wit.Char:
		g.emit(CharFromI32{Checked: checked})
	case wit.String:
		g.emit(StringLift{Validate: checked && !g.opts.RawStrings})
	case *wit.TypeDef:
		g.liftTypeDef(t.(*wit.TypeDef))
	default:
		panic(fmt.Sprintf("abi: cannot lift %T", t))
	}
}

func (g *generator[O]) liftTypeDef(td *wit.TypeDef) {
	checked := !g.opts.Unchecked
	switch kind := td.Kind.(type) {
	case *wit.Record:
		g.liftAll(fieldTypes(kind.Fields))
		g.emit(RecordLift{Record: kind, Name: typeName(td), Ty: td})
	case *wit.Tuple:
		g.liftAll(kind.Types)
		g.emit(TupleLift{Tuple: kind, Ty: td})
	case *wit.Flags:
		g.emit(FlagsLift{Flags: kind, Name: typeName(td), Repr: flagsRepr(len(kind.Flags)), Checked: checked})
	case *wit.Variant:
		g.liftVariantBlocks(td, caseTypes(kind.Cases))
		g.emit(VariantLift{Variant: kind, Name: typeName(td), Ty: td, Checked: checked})
	case *wit.Enum:
		g.emit(EnumLift{Enum: kind, Name: typeName(td), Ty: td, Checked: checked})
	case *wit.Option:
		g.liftVariantBlocks(td, []wit.Type{nil, kind.Type})
		g.emit(OptionLift{Payload: kind.Type, Ty: td, Checked: checked})
	case *wit.Result:
		g.liftVariantBlocks(td, []wit.Type{kind.OK, kind.Err})
		g.emit(ResultLift{Result: kind, Ty: td, Checked: checked})
	case *wit.List:
		g.liftList(kind, td)
	case *wit.Own:
		g.emit(HandleLift{Ty: kind.Type, Name: typeName(kind.Type), Borrow: false})
	case *wit.Borrow:
		g.emit(HandleLift{Ty: kind.Type, Name: typeName(kind.Type), Borrow: true})
	case *wit.Resource:
		g.emit(HandleLift{Ty: td, Name: typeName(td), Borrow: true})
	case *wit.Stream:
		g.emit(StreamLift{Payload: kind.Type, Ty: td})
	case *wit.Future:
		g.emit(FutureLift{Payload: kind.Type, Ty: td})
	case wit.Type:
		g.liftType(kind)
	default:
		panic(fmt.Sprintf("abi: cannot lift type kind %T", kind))
	}
}

// liftVariantBlocks pops the variant's flat operands, emits one block per
// case lifting that case's slice of payload slots, and leaves the
// discriminant on the stack for the dispatching instruction.
func (g *generator[O]) liftVariantBlocks(td *wit.TypeDef, payloads []wit.Type) {
	flat := FlattenType(td)
	temp := g.popN(len(flat))
	disc, slots := temp[0], temp[1:]
	slotTypes := flat[1:]

	for _, pt := range payloads {
		g.b.PushBlock()
		if pt != nil {
			caseFlat := FlattenType(pt)
			casts := make([]Bitcast, len(caseFlat))
			mixed := false
			for j, ct := range caseFlat {
				g.push(slots[j])
				casts[j] = bitcast(slotTypes[j], ct)
				if casts[j] != BitcastNone {
					mixed = true
				}
			}
			if mixed {
				g.emit(Bitcasts{Casts: casts})
			}
			g.liftType(pt)
			g.b.FinishBlock(g.popN(1))
		} else {
			g.b.FinishBlock(nil)
		}
	}

	g.push(disc)
}

func (g *generator[O]) liftList(kind *wit.List, td *wit.TypeDef) {
	if g.b.IsListCanonical(kind.Type) {
		g.emit(ListCanonLift{Element: kind.Type, Ty: td})
		return
	}

	g.b.PushBlock()
	g.emit(IterBasePointer{})
	addr := g.pop()
	g.readFromMemory(kind.Type, addr, 0)
	g.b.FinishBlock(g.popN(1))
	g.emit(ListLift{Element: kind.Type, Ty: td})
}
