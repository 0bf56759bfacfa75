package abi

import (
	"reflect"
	"testing"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
)

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
	f32 = api.ValueTypeF32
	f64 = api.ValueTypeF64
)

func TestFlattenPrimitives(t *testing.T) {
	tests := []struct {
		name string
		ty   wit.Type
		want []CoreValType
	}{
		{"bool", wit.Bool{}, []CoreValType{i32}},
		{"u8", wit.U8{}, []CoreValType{i32}},
		{"s32", wit.S32{}, []CoreValType{i32}},
		{"u64", wit.U64{}, []CoreValType{i64}},
		{"f32", wit.F32{}, []CoreValType{f32}},
		{"f64", wit.F64{}, []CoreValType{f64}},
		{"char", wit.Char{}, []CoreValType{i32}},
		{"string", wit.String{}, []CoreValType{i32, i32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FlattenType(tt.ty); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FlattenType(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestFlattenRecord(t *testing.T) {
	rec := recordDef("r",
		wit.Field{Name: "a", Type: wit.U8{}},
		wit.Field{Name: "b", Type: wit.String{}},
	)
	want := []CoreValType{i32, i32, i32}
	if got := FlattenType(rec); !reflect.DeepEqual(got, want) {
		t.Fatalf("FlattenType = %v, want %v", got, want)
	}
}

func TestFlattenVariantJoin(t *testing.T) {
	tests := []struct {
		name  string
		cases []wit.Case
		want  []CoreValType
	}{
		{
			// i32 and f32 share a 32-bit slot.
			"i32-f32",
			[]wit.Case{{Name: "a", Type: wit.U32{}}, {Name: "b", Type: wit.F32{}}},
			[]CoreValType{i32, i32},
		},
		{
			// Mixed widths widen to i64.
			"u64-f32",
			[]wit.Case{{Name: "a", Type: wit.U64{}}, {Name: "b", Type: wit.F32{}}},
			[]CoreValType{i32, i64},
		},
		{
			"f64-u32",
			[]wit.Case{{Name: "a", Type: wit.F64{}}, {Name: "b", Type: wit.U32{}}},
			[]CoreValType{i32, i64},
		},
		{
			// Shorter cases zero-pad; the slot count is the longest case.
			"string-u32",
			[]wit.Case{{Name: "a", Type: wit.String{}}, {Name: "b", Type: wit.U32{}}},
			[]CoreValType{i32, i32, i32},
		},
		{
			"no-payload",
			[]wit.Case{{Name: "a"}, {Name: "b"}},
			[]CoreValType{i32},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := namedDef("v", &wit.Variant{Cases: tt.cases})
			if got := FlattenType(v); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FlattenType = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlattenFlags(t *testing.T) {
	tests := []struct {
		flags int
		want  int
	}{
		{1, 1},
		{16, 1},
		{17, 1},
		{32, 1},
		{33, 2},
		{128, 4},
	}

	for _, tt := range tests {
		got := FlattenType(flagsDef("f", tt.flags))
		if len(got) != tt.want {
			t.Errorf("flags=%d: %d flat values, want %d", tt.flags, len(got), tt.want)
		}
		for _, ty := range got {
			if ty != i32 {
				t.Errorf("flags=%d: flat type %v, want i32", tt.flags, ty)
			}
		}
	}
}

func TestSignatureDirect(t *testing.T) {
	f := &Function{
		Name:    "add",
		Params:  []Param{{"a", wit.U32{}}, {"b", wit.U32{}}},
		Results: []Param{{"sum", wit.U32{}}},
	}

	sig := FlattenSignature(GuestImport, f)
	if !reflect.DeepEqual(sig.Params, []CoreValType{i32, i32}) {
		t.Errorf("params = %v", sig.Params)
	}
	if !reflect.DeepEqual(sig.Results, []CoreValType{i32}) {
		t.Errorf("results = %v", sig.Results)
	}
	if sig.IndirectParams || sig.RetPtr {
		t.Errorf("unexpected spill: %+v", sig)
	}
}

func TestSignatureParamSpill(t *testing.T) {
	params := make([]Param, MaxFlatParams+1)
	for i := range params {
		params[i] = Param{Name: "p", Type: wit.U32{}}
	}
	f := &Function{Name: "many", Params: params}

	sig := FlattenSignature(GuestImport, f)
	if !sig.IndirectParams {
		t.Fatal("expected indirect params")
	}
	if !reflect.DeepEqual(sig.Params, []CoreValType{i32}) {
		t.Errorf("params = %v, want single pointer", sig.Params)
	}
}

func TestSignatureResultSpill(t *testing.T) {
	f := &Function{
		Name:    "get",
		Results: []Param{{"s", wit.String{}}},
	}

	imp := FlattenSignature(GuestImport, f)
	if !imp.RetPtr {
		t.Fatal("import: expected retptr")
	}
	if !reflect.DeepEqual(imp.Params, []CoreValType{i32}) {
		t.Errorf("import: params = %v, want trailing return area", imp.Params)
	}
	if imp.Results != nil {
		t.Errorf("import: results = %v, want none", imp.Results)
	}

	exp := FlattenSignature(GuestExport, f)
	if !exp.RetPtr {
		t.Fatal("export: expected retptr")
	}
	if !reflect.DeepEqual(exp.Results, []CoreValType{i32}) {
		t.Errorf("export: results = %v, want returned pointer", exp.Results)
	}
}

func TestSignatureAsyncImport(t *testing.T) {
	f := &Function{
		Name:    "fetch",
		Params:  []Param{{"url", wit.String{}}},
		Results: []Param{{"body", wit.String{}}},
	}

	sig := FlattenSignature(GuestImportAsync, f)
	if !reflect.DeepEqual(sig.Params, []CoreValType{i32, i32}) {
		t.Errorf("params = %v, want (params_ptr, results_ptr)", sig.Params)
	}
	if !reflect.DeepEqual(sig.Results, []CoreValType{i32}) {
		t.Errorf("results = %v, want status word", sig.Results)
	}
	if !sig.IndirectParams || !sig.RetPtr {
		t.Errorf("async import must be fully indirect: %+v", sig)
	}
}

func TestSignatureAsyncExport(t *testing.T) {
	f := &Function{
		Name:    "compute",
		Params:  []Param{{"n", wit.U32{}}},
		Results: []Param{{"out", wit.String{}}},
	}

	sig := FlattenSignature(GuestExportAsync, f)
	if !reflect.DeepEqual(sig.Params, []CoreValType{i32}) {
		t.Errorf("params = %v", sig.Params)
	}
	if !reflect.DeepEqual(sig.Results, []CoreValType{i32}) {
		t.Errorf("results = %v, want task handle", sig.Results)
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		a, b, want CoreValType
	}{
		{i32, i32, i32},
		{f32, f32, f32},
		{i32, f32, i32},
		{f32, i32, i32},
		{i32, i64, i64},
		{f32, f64, i64},
		{f64, i64, i64},
	}

	for _, tt := range tests {
		if got := join(tt.a, tt.b); got != tt.want {
			t.Errorf("join(%s, %s) = %s, want %s",
				coreTypeName(tt.a), coreTypeName(tt.b), coreTypeName(got), coreTypeName(tt.want))
		}
	}
}

func TestBitcast(t *testing.T) {
	tests := []struct {
		from, to CoreValType
		want     Bitcast
	}{
		{i32, i32, BitcastNone},
		{i32, i64, BitcastI32ToI64},
		{i64, i32, BitcastI64ToI32},
		{f32, i32, BitcastF32ToI32},
		{i32, f32, BitcastI32ToF32},
		{f64, i64, BitcastF64ToI64},
		{i64, f64, BitcastI64ToF64},
		{f32, i64, BitcastF32ToI64},
		{i64, f32, BitcastI64ToF32},
	}

	for _, tt := range tests {
		if got := bitcast(tt.from, tt.to); got != tt.want {
			t.Errorf("bitcast(%s, %s) = %s, want %s",
				coreTypeName(tt.from), coreTypeName(tt.to), got, tt.want)
		}
	}
}
