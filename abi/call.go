package abi

import (
	"fmt"

	"github.com/wippyai/witgen/errors"
	"go.bytecodealliance.org/wit"
)

// DefaultRealloc is the canonical allocator export used when Options does
// not name another one.
const DefaultRealloc = "cabi_realloc"

// Options adjusts one generation pass.
type Options struct {
	// Unchecked drops validation from lift instructions: discriminants,
	// bools and chars are trusted, out-of-range values become undefined
	// behavior in the generated code.
	Unchecked bool

	// RawStrings skips UTF-8 validation on lifted strings independently of
	// Unchecked.
	RawStrings bool

	// Realloc overrides the allocator export name. Empty means
	// DefaultRealloc.
	Realloc string
}

func (o Options) realloc() string {
	if o.Realloc != "" {
		return o.Realloc
	}
	return DefaultRealloc
}

// Call generates the full instruction stream for one function crossing in
// one direction with one intent. Configuration problems (such as a flags
// type wider than MaxFlags) are reported as errors before any instruction
// reaches the backend; stack imbalance afterwards is an interpreter bug and
// panics.
func Call[O any](variant AbiVariant, lift LiftLower, f *Function, b Bindgen[O], opts Options) error {
	if err := validateFunction(f); err != nil {
		return err
	}

	g := &generator[O]{
		variant: variant,
		lift:    lift,
		f:       f,
		b:       b,
		opts:    opts,
		sizes:   b.Sizes(),
	}
	return g.call()
}

type generator[O any] struct {
	variant AbiVariant
	lift    LiftLower
	f       *Function
	b       Bindgen[O]
	opts    Options
	sizes   *SizeAlign

	stack []O
	// cleanup is set once any DeferCleanup was emitted; the lowering side
	// then releases everything with a single CleanupList after the call.
	cleanup bool
}

func (g *generator[O]) call() error {
	switch g.lift {
	case LowerArgsLiftResults:
		if err := g.callLowering(); err != nil {
			return err
		}
	case LiftArgsLowerResults:
		if err := g.callLifting(); err != nil {
			return err
		}
	default:
		return errors.Unsupported(errors.PhaseEmit, fmt.Sprintf("lift/lower intent %d", g.lift))
	}

	if len(g.stack) != 0 {
		panic(fmt.Sprintf("abi: %d operands left on stack after %s", len(g.stack), g.f.Name))
	}
	return nil
}

// callLowering is the caller side: native arguments in, native results out,
// a core call in the middle.
func (g *generator[O]) callLowering() error {
	sig := FlattenSignature(g.variant, g.f)

	if g.variant == GuestImportAsync {
		return g.callLoweringAsync(sig)
	}
	if g.variant.Async() {
		return errors.Unsupported(errors.PhaseEmit, g.variant.String()+" with lowered arguments")
	}

	if !sig.IndirectParams {
		for nth, p := range g.f.Params {
			g.emit(GetArg{Nth: nth})
			g.lower(p.Type)
		}
	} else {
		area := g.sizes.Area(g.f.ParamTypes())
		ptr := g.b.ReturnPointer(area.Size, area.Align)
		offsets := g.sizes.ElementOffsets(g.f.ParamTypes())
		for nth, p := range g.f.Params {
			g.emit(GetArg{Nth: nth})
			g.writeToMemory(p.Type, ptr, offsets[nth])
		}
		g.push(ptr)
	}

	// An import takes the return area as a trailing pointer parameter; an
	// export returns the address of its own static return area as the core
	// result.
	var retptr O
	if sig.RetPtr && g.variant == GuestImport {
		area := g.sizes.Area(g.f.ResultTypes())
		retptr = g.b.ReturnPointer(area.Size, area.Align)
		g.push(retptr)
	}

	g.emit(CallWasm{Name: g.f.Name, Sig: sig})

	if sig.RetPtr {
		if g.variant != GuestImport {
			retptr = g.pop()
		}
		offsets := g.sizes.ElementOffsets(g.f.ResultTypes())
		for i, r := range g.f.Results {
			g.readFromMemory(r.Type, retptr, offsets[i])
		}
	} else {
		g.liftAll(g.f.ResultTypes())
	}

	if g.cleanup {
		g.emit(CleanupList{})
	}

	g.emit(Return{Func: g.f, Amt: len(g.f.Results)})
	return nil
}

// callLoweringAsync starts an async import: both argument and result areas
// live in memory and the core call returns a status word the runtime
// interprets. Result lifting happens later, when the runtime observes
// completion, through LiftFromMemory.
func (g *generator[O]) callLoweringAsync(sig WasmSignature) error {
	params := g.sizes.Area(g.f.ParamTypes())
	ptr := g.b.ReturnPointer(params.Size, params.Align)
	offsets := g.sizes.ElementOffsets(g.f.ParamTypes())
	for nth, p := range g.f.Params {
		g.emit(GetArg{Nth: nth})
		g.writeToMemory(p.Type, ptr, offsets[nth])
	}

	results := g.sizes.Area(g.f.ResultTypes())
	retptr := g.b.ReturnPointer(results.Size, results.Align)

	g.push(ptr)
	g.push(retptr)
	g.emit(AsyncCallWasm{Name: g.f.Name})
	g.emit(Return{Func: g.f, Amt: 1})
	return nil
}

// callLifting is the callee side: flat arguments in, a user call in the
// middle, flat or spilled results out.
func (g *generator[O]) callLifting() error {
	sig := FlattenSignature(g.variant, g.f)

	if g.variant == GuestImportAsync {
		return errors.Unsupported(errors.PhaseEmit, "guest-import-async with lifted arguments")
	}

	if sig.IndirectParams {
		g.emit(GetArg{Nth: 0})
		addr := g.pop()
		offsets := g.sizes.ElementOffsets(g.f.ParamTypes())
		for i, p := range g.f.Params {
			g.readFromMemory(p.Type, addr, offsets[i])
		}
	} else {
		nth := 0
		for _, p := range g.f.Params {
			n := len(FlattenType(p.Type))
			for j := 0; j < n; j++ {
				g.emit(GetArg{Nth: nth})
				nth++
			}
			g.liftType(p.Type)
		}
	}

	g.emit(CallInterface{Func: g.f})

	if g.variant == GuestExportAsync {
		return g.finishLiftingAsync()
	}

	switch {
	case !sig.RetPtr:
		for _, r := range g.f.Results {
			g.lower(r.Type)
		}
		g.emit(Return{Func: g.f, Amt: len(sig.Results)})

	case g.variant == GuestImport:
		// Host side of an import: the caller passed the return area as the
		// trailing core parameter.
		values := g.popN(len(g.f.Results))
		g.emit(GetArg{Nth: len(sig.Params) - 1})
		addr := g.pop()
		offsets := g.sizes.ElementOffsets(g.f.ResultTypes())
		for i, r := range g.f.Results {
			g.push(values[i])
			g.writeToMemory(r.Type, addr, offsets[i])
		}
		g.emit(Return{Func: g.f, Amt: 0})

	default:
		// Export: results go to a static return area whose address is the
		// core return value.
		area := g.sizes.Area(g.f.ResultTypes())
		retptr := g.b.ReturnPointer(area.Size, area.Align)
		values := g.popN(len(g.f.Results))
		offsets := g.sizes.ElementOffsets(g.f.ResultTypes())
		for i, r := range g.f.Results {
			g.push(values[i])
			g.writeToMemory(r.Type, retptr, offsets[i])
		}
		g.push(retptr)
		g.emit(Return{Func: g.f, Amt: 1})
	}
	return nil
}

// finishLiftingAsync delivers an async export's results through task.return
// and hands the task handle back to the host.
func (g *generator[O]) finishLiftingAsync() error {
	var flat []CoreValType
	for _, r := range g.f.Results {
		flat = append(flat, FlattenType(r.Type)...)
	}

	if len(flat) > MaxFlatParams {
		area := g.sizes.Area(g.f.ResultTypes())
		ptr := g.b.ReturnPointer(area.Size, area.Align)
		values := g.popN(len(g.f.Results))
		offsets := g.sizes.ElementOffsets(g.f.ResultTypes())
		for i, r := range g.f.Results {
			g.push(values[i])
			g.writeToMemory(r.Type, ptr, offsets[i])
		}
		g.push(ptr)
		flat = []CoreValType{coreI32}
	} else {
		values := g.popN(len(g.f.Results))
		for i, r := range g.f.Results {
			g.push(values[i])
			g.lower(r.Type)
		}
	}

	g.emit(AsyncCallReturn{Name: "[task-return]" + g.f.Name, Params: flat})
	g.emit(AsyncPostCallInterface{Func: g.f})
	g.emit(Return{Func: g.f, Amt: 1})
	return nil
}

// liftAll lifts a sequence of flat values sitting on the stack into one
// native value per type.
func (g *generator[O]) liftAll(types []wit.Type) {
	total := 0
	counts := make([]int, len(types))
	for i, t := range types {
		counts[i] = len(FlattenType(t))
		total += counts[i]
	}
	flat := g.popN(total)
	off := 0
	for i, t := range types {
		for _, v := range flat[off : off+counts[i]] {
			g.push(v)
		}
		off += counts[i]
		g.liftType(t)
	}
}

// ---- stack plumbing ----

func (g *generator[O]) push(v O) {
	g.stack = append(g.stack, v)
}

func (g *generator[O]) pop() O {
	vals := g.popN(1)
	return vals[0]
}

func (g *generator[O]) popN(n int) []O {
	if len(g.stack) < n {
		panic(fmt.Sprintf("abi: stack underflow in %s: need %d, have %d", g.f.Name, n, len(g.stack)))
	}
	vals := make([]O, n)
	copy(vals, g.stack[len(g.stack)-n:])
	g.stack = g.stack[:len(g.stack)-n]
	return vals
}

// emit hands one instruction to the backend, enforcing its arity on both
// sides.
func (g *generator[O]) emit(inst Instruction) {
	nOps, nRes := arity(inst)
	operands := g.popN(nOps)
	results := g.b.Emit(inst, operands, make([]O, 0, nRes))
	if len(results) != nRes {
		panic(fmt.Sprintf("abi: %s produced %d results, want %d", Mnemonic(inst), len(results), nRes))
	}
	g.stack = append(g.stack, results...)
	if _, ok := inst.(DeferCleanup); ok {
		g.cleanup = true
	}
}

// loweringRealloc returns the allocator lowered buffers are obtained from,
// or "" on the sync import path where temporaries live on the cleanup list.
func (g *generator[O]) loweringRealloc() string {
	if g.variant == GuestImport && g.lift == LowerArgsLiftResults {
		return ""
	}
	return g.opts.realloc()
}

func typeName(td *wit.TypeDef) string {
	if td.Name != nil {
		return *td.Name
	}
	return ""
}

// ---- validation ----

// validateFunction rejects type shapes the ABI cannot represent before any
// instruction is emitted.
func validateFunction(f *Function) error {
	seen := make(map[*wit.TypeDef]bool)
	for _, p := range f.Params {
		if err := validateType(p.Type, seen); err != nil {
			return err
		}
	}
	for _, r := range f.Results {
		if err := validateType(r.Type, seen); err != nil {
			return err
		}
	}
	return nil
}

func validateType(t wit.Type, seen map[*wit.TypeDef]bool) error {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return nil
	}
	if seen[td] {
		return nil
	}
	seen[td] = true

	switch kind := td.Kind.(type) {
	case *wit.Flags:
		if _, err := FlagsLayout(kind, typeName(td)); err != nil {
			return err
		}
	case *wit.Record:
		for _, f := range kind.Fields {
			if err := validateType(f.Type, seen); err != nil {
				return err
			}
		}
	case *wit.Tuple:
		for _, t := range kind.Types {
			if err := validateType(t, seen); err != nil {
				return err
			}
		}
	case *wit.Variant:
		for _, c := range kind.Cases {
			if c.Type == nil {
				continue
			}
			if err := validateType(c.Type, seen); err != nil {
				return err
			}
		}
	case *wit.Option:
		return validateType(kind.Type, seen)
	case *wit.Result:
		if kind.OK != nil {
			if err := validateType(kind.OK, seen); err != nil {
				return err
			}
		}
		if kind.Err != nil {
			return validateType(kind.Err, seen)
		}
	case *wit.List:
		return validateType(kind.Type, seen)
	case wit.Type:
		return validateType(kind, seen)
	}
	return nil
}
