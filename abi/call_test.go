package abi

import (
	"reflect"
	"strings"
	"testing"

	"go.bytecodealliance.org/wit"
)

func mnemonics(stream []Instruction) []string {
	out := make([]string, len(stream))
	for i, inst := range stream {
		out[i] = Mnemonic(inst)
	}
	return out
}

func countInstr(stream []Instruction, want string) int {
	n := 0
	for _, inst := range stream {
		if Mnemonic(inst) == want {
			n++
		}
	}
	return n
}

func generate(t *testing.T, variant AbiVariant, lift LiftLower, f *Function, opts Options) *Recorder {
	t.Helper()
	rec := NewRecorder(NewSizeAlign())
	if err := Call(variant, lift, f, rec, opts); err != nil {
		t.Fatalf("Call(%s): %v", f.Name, err)
	}
	return rec
}

func TestImportCallScalars(t *testing.T) {
	f := &Function{
		Name:    "add",
		Params:  []Param{{"a", wit.U32{}}, {"b", wit.U32{}}},
		Results: []Param{{"sum", wit.U32{}}},
	}

	rec := generate(t, GuestImport, LowerArgsLiftResults, f, Options{})

	want := []string{
		"GetArg", "I32FromU32",
		"GetArg", "I32FromU32",
		"CallWasm",
		"U32FromI32",
		"Return",
	}
	if got := mnemonics(rec.Stream); !reflect.DeepEqual(got, want) {
		t.Fatalf("stream = %v\nwant %v", got, want)
	}
}

func TestImportCallRecord(t *testing.T) {
	rec := recordDef("config",
		wit.Field{Name: "a", Type: wit.U8{}},
		wit.Field{Name: "b", Type: wit.String{}},
		wit.Field{Name: "c", Type: namedDef("opt", &wit.Option{Type: wit.U32{}})},
	)
	f := &Function{
		Name:   "configure",
		Params: []Param{{"cfg", rec}},
	}

	r := generate(t, GuestImport, LowerArgsLiftResults, f, Options{})

	want := []string{
		"GetArg",
		"RecordLower",
		"I32FromU8",
		"StringLower", "DeferCleanup",
		"VariantPayloadName", "I32Const", "ConstZero",
		"VariantPayloadName", "I32Const", "I32FromU32",
		"OptionLower",
		"CallWasm",
		"CleanupList",
		"Return",
	}
	if got := mnemonics(r.Stream); !reflect.DeepEqual(got, want) {
		t.Fatalf("stream = %v\nwant %v", got, want)
	}

	if r.Blocks != 2 {
		t.Errorf("blocks = %d, want 2 (none and some)", r.Blocks)
	}
	for _, inst := range r.Stream {
		if s, ok := inst.(StringLower); ok && s.Realloc != "" {
			t.Errorf("import argument string must use the cleanup list, got realloc %q", s.Realloc)
		}
	}
}

func TestExportCallString(t *testing.T) {
	f := &Function{
		Name:    "greet",
		Params:  []Param{{"name", wit.String{}}},
		Results: []Param{{"msg", wit.String{}}},
	}

	r := generate(t, GuestExport, LiftArgsLowerResults, f, Options{})

	want := []string{
		"GetArg", "GetArg", "StringLift",
		"CallInterface",
		"StringLower",
		"I32Store", "I32Store",
		"Return",
	}
	if got := mnemonics(r.Stream); !reflect.DeepEqual(got, want) {
		t.Fatalf("stream = %v\nwant %v", got, want)
	}

	// The result string outlives the call, so it is allocated through the
	// canonical allocator rather than the cleanup list.
	for _, inst := range r.Stream {
		if s, ok := inst.(StringLower); ok && s.Realloc != DefaultRealloc {
			t.Errorf("export result realloc = %q, want %q", s.Realloc, DefaultRealloc)
		}
	}
	if n := countInstr(r.Stream, "DeferCleanup"); n != 0 {
		t.Errorf("export lowering deferred %d cleanups, want 0", n)
	}
}

func TestCleanupAcrossVariantBranches(t *testing.T) {
	v := namedDef("msg", &wit.Variant{Cases: []wit.Case{
		{Name: "txt", Type: wit.String{}},
		{Name: "num", Type: wit.U32{}},
	}})
	f := &Function{Name: "send", Params: []Param{{"m", v}}}

	r := generate(t, GuestImport, LowerArgsLiftResults, f, Options{})

	// The string case defers inside its block; release happens exactly once
	// at the top level regardless of which branch runs.
	if n := countInstr(r.Stream, "DeferCleanup"); n != 1 {
		t.Errorf("DeferCleanup count = %d, want 1", n)
	}
	if n := countInstr(r.Stream, "CleanupList"); n != 1 {
		t.Errorf("CleanupList count = %d, want 1", n)
	}

	got := mnemonics(r.Stream)
	lastCleanup, callWasm := -1, -1
	for i, m := range got {
		switch m {
		case "CleanupList":
			lastCleanup = i
		case "CallWasm":
			callWasm = i
		}
	}
	if lastCleanup < callWasm {
		t.Errorf("CleanupList at %d precedes CallWasm at %d", lastCleanup, callWasm)
	}

	// The u32 case pads the second payload slot.
	if n := countInstr(r.Stream, "ConstZero"); n != 1 {
		t.Errorf("ConstZero count = %d, want 1", n)
	}
}

func TestVariantPayloadBitcast(t *testing.T) {
	v := namedDef("num", &wit.Variant{Cases: []wit.Case{
		{Name: "i", Type: wit.U64{}},
		{Name: "f", Type: wit.F32{}},
	}})
	f := &Function{Name: "push", Params: []Param{{"n", v}}}

	r := generate(t, GuestImport, LowerArgsLiftResults, f, Options{})

	// The f32 case shares an i64 slot and must be reinterpreted.
	found := false
	for _, inst := range r.Stream {
		b, ok := inst.(Bitcasts)
		if !ok {
			continue
		}
		found = true
		if len(b.Casts) != 1 || b.Casts[0] != BitcastF32ToI64 {
			t.Errorf("casts = %v, want [f32-to-i64]", b.Casts)
		}
	}
	if !found {
		t.Fatal("no Bitcasts emitted for mixed payload slots")
	}
}

func TestListLowering(t *testing.T) {
	t.Run("canonical", func(t *testing.T) {
		l := namedDef("bytes", &wit.List{Type: wit.U8{}})
		f := &Function{Name: "write", Params: []Param{{"data", l}}}

		r := generate(t, GuestImport, LowerArgsLiftResults, f, Options{})
		want := []string{"GetArg", "ListCanonLower", "DeferCleanup", "CallWasm", "CleanupList", "Return"}
		if got := mnemonics(r.Stream); !reflect.DeepEqual(got, want) {
			t.Fatalf("stream = %v\nwant %v", got, want)
		}
	})

	t.Run("per-element", func(t *testing.T) {
		l := namedDef("names", &wit.List{Type: wit.String{}})
		f := &Function{Name: "write", Params: []Param{{"data", l}}}

		r := generate(t, GuestImport, LowerArgsLiftResults, f, Options{})
		got := mnemonics(r.Stream)

		want := []string{
			"GetArg",
			"IterElem", "IterBasePointer",
			"StringLower", "DeferCleanup",
			"I32Store", "I32Store",
			"ListLower", "DeferCleanup",
			"CallWasm", "CleanupList", "Return",
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("stream = %v\nwant %v", got, want)
		}
		if r.Blocks != 1 {
			t.Errorf("blocks = %d, want 1 (element body)", r.Blocks)
		}
	})
}

func TestParamSpill(t *testing.T) {
	params := make([]Param, MaxFlatParams+1)
	for i := range params {
		params[i] = Param{Name: "p", Type: wit.U32{}}
	}
	f := &Function{Name: "many", Params: params}

	r := generate(t, GuestImport, LowerArgsLiftResults, f, Options{})

	if n := countInstr(r.Stream, "I32Store"); n != MaxFlatParams+1 {
		t.Errorf("I32Store count = %d, want %d", n, MaxFlatParams+1)
	}
	for _, inst := range r.Stream {
		if c, ok := inst.(CallWasm); ok && !c.Sig.IndirectParams {
			t.Error("CallWasm signature should be indirect")
		}
	}
}

func TestResultSpillImport(t *testing.T) {
	f := &Function{
		Name:    "fetch",
		Results: []Param{{"body", wit.String{}}},
	}

	r := generate(t, GuestImport, LowerArgsLiftResults, f, Options{})

	want := []string{
		"CallWasm",
		"I32Load", "I32Load", "StringLift",
		"Return",
	}
	if got := mnemonics(r.Stream); !reflect.DeepEqual(got, want) {
		t.Fatalf("stream = %v\nwant %v", got, want)
	}
}

func TestResultSpillExport(t *testing.T) {
	f := &Function{
		Name:    "fetch",
		Results: []Param{{"body", wit.String{}}},
	}

	r := generate(t, GuestExport, LowerArgsLiftResults, f, Options{})

	want := []string{
		"CallWasm",
		"I32Load", "I32Load", "StringLift",
		"Return",
	}
	if got := mnemonics(r.Stream); !reflect.DeepEqual(got, want) {
		t.Fatalf("stream = %v\nwant %v", got, want)
	}

	// The export hands back the address of its static return area as the
	// core result; the caller reads through that, never a scratch buffer of
	// its own.
	call := r.Stream[0].(CallWasm)
	if len(call.Sig.Params) != 0 || len(call.Sig.Results) != 1 {
		t.Errorf("core signature = (%d params, %d results), want (0, 1)",
			len(call.Sig.Params), len(call.Sig.Results))
	}
	if strings.Contains(r.Listing(), "ReturnPointer") {
		t.Error("caller allocated a return area for an export call")
	}
}

func TestCheckedLifts(t *testing.T) {
	e := enumDef("color", 3)
	f := &Function{
		Name:    "pick",
		Results: []Param{{"c", e}},
	}

	checked := generate(t, GuestImport, LowerArgsLiftResults, f, Options{})
	for _, inst := range checked.Stream {
		if l, ok := inst.(EnumLift); ok && !l.Checked {
			t.Error("default options must produce checked enum lifts")
		}
	}

	unchecked := generate(t, GuestImport, LowerArgsLiftResults, f, Options{Unchecked: true})
	for _, inst := range unchecked.Stream {
		if l, ok := inst.(EnumLift); ok && l.Checked {
			t.Error("Unchecked must drop enum lift validation")
		}
	}
}

func TestRawStrings(t *testing.T) {
	f := &Function{
		Name:    "read",
		Results: []Param{{"s", wit.String{}}},
	}

	r := generate(t, GuestImport, LowerArgsLiftResults, f, Options{RawStrings: true})
	for _, inst := range r.Stream {
		if l, ok := inst.(StringLift); ok && l.Validate {
			t.Error("RawStrings must skip UTF-8 validation")
		}
	}
}

func TestFlagsTooWideRejected(t *testing.T) {
	f := &Function{
		Name:   "set",
		Params: []Param{{"f", flagsDef("wide", MaxFlags+1)}},
	}

	rec := NewRecorder(NewSizeAlign())
	err := Call(GuestImport, LowerArgsLiftResults, f, rec, Options{})
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if len(rec.Stream) != 0 {
		t.Errorf("%d instructions emitted before the error, want 0", len(rec.Stream))
	}
}

func TestAsyncImportCall(t *testing.T) {
	f := &Function{
		Name:    "fetch",
		Params:  []Param{{"n", wit.U32{}}},
		Results: []Param{{"out", wit.U32{}}},
	}

	r := generate(t, GuestImportAsync, LowerArgsLiftResults, f, Options{})

	want := []string{
		"GetArg", "I32FromU32", "I32Store",
		"AsyncCallWasm",
		"Return",
	}
	if got := mnemonics(r.Stream); !reflect.DeepEqual(got, want) {
		t.Fatalf("stream = %v\nwant %v", got, want)
	}
}

func TestAsyncExportCall(t *testing.T) {
	f := &Function{
		Name:    "compute",
		Results: []Param{{"out", wit.U32{}}},
	}

	r := generate(t, GuestExportAsync, LiftArgsLowerResults, f, Options{})

	want := []string{
		"CallInterface",
		"I32FromU32",
		"AsyncCallReturn",
		"AsyncPostCallInterface",
		"Return",
	}
	if got := mnemonics(r.Stream); !reflect.DeepEqual(got, want) {
		t.Fatalf("stream = %v\nwant %v", got, want)
	}

	for _, inst := range r.Stream {
		if c, ok := inst.(AsyncCallReturn); ok {
			if c.Name != "[task-return]compute" {
				t.Errorf("task return name = %q", c.Name)
			}
		}
	}
}

func TestHostImportSide(t *testing.T) {
	// Lifting arguments for an import is the host's side of the boundary:
	// results go back through the caller-provided return area.
	f := &Function{
		Name:    "fetch",
		Results: []Param{{"body", wit.String{}}},
	}

	r := generate(t, GuestImport, LiftArgsLowerResults, f, Options{})

	want := []string{
		"CallInterface",
		"GetArg",
		"StringLower",
		"I32Store", "I32Store",
		"Return",
	}
	if got := mnemonics(r.Stream); !reflect.DeepEqual(got, want) {
		t.Fatalf("stream = %v\nwant %v", got, want)
	}
}

func TestImportExportSymmetry(t *testing.T) {
	// The same function generated for both sides must agree on the flat
	// signature embedded in CallWasm and implied by GetArg usage.
	f := &Function{
		Name:    "round",
		Params:  []Param{{"x", wit.U32{}}, {"s", wit.String{}}},
		Results: []Param{{"y", wit.U32{}}},
	}

	imp := generate(t, GuestImport, LowerArgsLiftResults, f, Options{})
	exp := generate(t, GuestExport, LiftArgsLowerResults, f, Options{})

	var callSig WasmSignature
	for _, inst := range imp.Stream {
		if c, ok := inst.(CallWasm); ok {
			callSig = c.Sig
		}
	}

	maxArg := -1
	for _, inst := range exp.Stream {
		if g, ok := inst.(GetArg); ok && g.Nth > maxArg {
			maxArg = g.Nth
		}
	}

	if maxArg+1 != len(callSig.Params) {
		t.Errorf("export consumed %d flat args, import call passes %d", maxArg+1, len(callSig.Params))
	}
}
