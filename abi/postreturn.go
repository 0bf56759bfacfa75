package abi

import (
	"fmt"

	"go.bytecodealliance.org/wit"
)

// NeedsPostReturn reports whether f's results own linear memory the guest
// must release after the host has copied them out. Exports whose results
// are plain scalars need no post-return entry point at all.
func NeedsPostReturn(f *Function) bool {
	for _, r := range f.Results {
		if ownsMemory(r.Type, make(map[*wit.TypeDef]bool)) {
			return true
		}
	}
	return false
}

// PostReturn generates the deallocation stream for an export's post-return
// entry point. The single core argument mirrors the export's core result:
// the return-area pointer when results were spilled, otherwise the flat
// value (which owns nothing and is ignored).
func PostReturn[O any](f *Function, b Bindgen[O], opts Options) error {
	if err := validateFunction(f); err != nil {
		return err
	}

	g := &generator[O]{
		variant: GuestExport,
		lift:    LiftArgsLowerResults,
		f:       f,
		b:       b,
		opts:    opts,
		sizes:   b.Sizes(),
	}

	sig := FlattenSignature(GuestExport, f)
	if sig.RetPtr && NeedsPostReturn(f) {
		g.emit(GetArg{Nth: 0})
		addr := g.pop()
		offsets := g.sizes.ElementOffsets(f.ResultTypes())
		for i, r := range f.Results {
			g.deallocate(r.Type, addr, offsets[i])
		}
	}
	g.emit(Return{Func: f, Amt: 0})

	if len(g.stack) != 0 {
		panic(fmt.Sprintf("abi: %d operands left on stack after post-return for %s", len(g.stack), f.Name))
	}
	return nil
}

// ownsMemory reports whether a value of type t can reference guest
// allocations that outlive the call.
func ownsMemory(t wit.Type, seen map[*wit.TypeDef]bool) bool {
	switch v := t.(type) {
	case wit.String:
		return true
	case *wit.TypeDef:
		if seen[v] {
			return false
		}
		seen[v] = true
		switch kind := v.Kind.(type) {
		case *wit.List:
			return true
		case *wit.Record:
			for _, f := range kind.Fields {
				if ownsMemory(f.Type, seen) {
					return true
				}
			}
		case *wit.Tuple:
			for _, t := range kind.Types {
				if ownsMemory(t, seen) {
					return true
				}
			}
		case *wit.Variant:
			for _, c := range kind.Cases {
				if c.Type != nil && ownsMemory(c.Type, seen) {
					return true
				}
			}
		case *wit.Option:
			return ownsMemory(kind.Type, seen)
		case *wit.Result:
			if kind.OK != nil && ownsMemory(kind.OK, seen) {
				return true
			}
			if kind.Err != nil && ownsMemory(kind.Err, seen) {
				return true
			}
		case wit.Type:
			return ownsMemory(kind, seen)
		}
	}
	return false
}

// deallocate emits the frees for whatever a value at addr+offset owns. Types
// that own nothing emit nothing.
func (g *generator[O]) deallocate(t wit.Type, addr O, offset uint32) {
	switch v := t.(type) {
	case wit.String:
		g.loadPtrLen(addr, offset)
		g.emit(GuestDeallocateString{})
	case *wit.TypeDef:
		g.deallocateTypeDef(v, addr, offset)
	}
}

func (g *generator[O]) deallocateTypeDef(td *wit.TypeDef, addr O, offset uint32) {
	switch kind := td.Kind.(type) {
	case *wit.List:
		g.deallocateList(kind, addr, offset)
	case *wit.Record:
		offsets := g.sizes.FieldOffsets(kind.Fields)
		for i, f := range kind.Fields {
			g.deallocate(f.Type, addr, offset+offsets[i])
		}
	case *wit.Tuple:
		offsets := g.sizes.ElementOffsets(kind.Types)
		for i, t := range kind.Types {
			g.deallocate(t, addr, offset+offsets[i])
		}
	case *wit.Variant:
		g.deallocateVariant(caseTypes(kind.Cases), len(kind.Cases), addr, offset)
	case *wit.Option:
		g.deallocateVariant([]wit.Type{nil, kind.Type}, 2, addr, offset)
	case *wit.Result:
		g.deallocateVariant([]wit.Type{kind.OK, kind.Err}, 2, addr, offset)
	case wit.Type:
		g.deallocate(kind, addr, offset)
	}
}

func (g *generator[O]) deallocateList(kind *wit.List, addr O, offset uint32) {
	g.b.PushBlock()
	if ownsMemory(kind.Type, make(map[*wit.TypeDef]bool)) {
		g.emit(IterBasePointer{})
		base := g.pop()
		g.deallocate(kind.Type, base, 0)
	}
	g.b.FinishBlock(nil)
	g.loadPtrLen(addr, offset)
	g.emit(GuestDeallocateList{Element: kind.Type})
}

func (g *generator[O]) deallocateVariant(payloads []wit.Type, numCases int, addr O, offset uint32) {
	owns := false
	for _, pt := range payloads {
		if pt != nil && ownsMemory(pt, make(map[*wit.TypeDef]bool)) {
			owns = true
			break
		}
	}
	if !owns {
		return
	}

	payloadOffset := g.sizes.PayloadOffset(numCases, payloads)
	for _, pt := range payloads {
		g.b.PushBlock()
		if pt != nil {
			g.deallocate(pt, addr, offset+payloadOffset)
		}
		g.b.FinishBlock(nil)
	}

	g.push(addr)
	g.loadDiscriminant(DiscriminantSize(numCases), offset)
	g.emit(GuestDeallocateVariant{Blocks: len(payloads)})
}
