package abi

import (
	"reflect"
	"testing"

	"go.bytecodealliance.org/wit"
)

func TestNeedsPostReturn(t *testing.T) {
	listU8 := namedDef("bytes", &wit.List{Type: wit.U8{}})
	recWithList := recordDef("r",
		wit.Field{Name: "n", Type: wit.U32{}},
		wit.Field{Name: "data", Type: listU8},
	)

	tests := []struct {
		name string
		ty   wit.Type
		want bool
	}{
		{"u32", wit.U32{}, false},
		{"string", wit.String{}, true},
		{"list", listU8, true},
		{"record-with-list", recWithList, true},
		{"enum", enumDef("e", 3), false},
		{"option-string", namedDef("o", &wit.Option{Type: wit.String{}}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &Function{Name: "f", Results: []Param{{"r", tt.ty}}}
			if got := NeedsPostReturn(f); got != tt.want {
				t.Errorf("NeedsPostReturn = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPostReturnScalar(t *testing.T) {
	f := &Function{Name: "get", Results: []Param{{"n", wit.U32{}}}}

	r := NewRecorder(NewSizeAlign())
	if err := PostReturn(f, r, Options{}); err != nil {
		t.Fatal(err)
	}

	want := []string{"Return"}
	if got := mnemonics(r.Stream); !reflect.DeepEqual(got, want) {
		t.Fatalf("stream = %v, want %v", got, want)
	}
}

func TestPostReturnString(t *testing.T) {
	f := &Function{Name: "get", Results: []Param{{"s", wit.String{}}}}

	r := NewRecorder(NewSizeAlign())
	if err := PostReturn(f, r, Options{}); err != nil {
		t.Fatal(err)
	}

	want := []string{"GetArg", "I32Load", "I32Load", "GuestDeallocateString", "Return"}
	if got := mnemonics(r.Stream); !reflect.DeepEqual(got, want) {
		t.Fatalf("stream = %v\nwant %v", got, want)
	}
}

func TestPostReturnListOfStrings(t *testing.T) {
	l := namedDef("names", &wit.List{Type: wit.String{}})
	f := &Function{Name: "get", Results: []Param{{"names", l}}}

	r := NewRecorder(NewSizeAlign())
	if err := PostReturn(f, r, Options{}); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"GetArg",
		"IterBasePointer",
		"I32Load", "I32Load", "GuestDeallocateString",
		"I32Load", "I32Load",
		"GuestDeallocateList",
		"Return",
	}
	if got := mnemonics(r.Stream); !reflect.DeepEqual(got, want) {
		t.Fatalf("stream = %v\nwant %v", got, want)
	}
	if r.Blocks != 1 {
		t.Errorf("blocks = %d, want 1", r.Blocks)
	}
}

func TestPostReturnCanonicalList(t *testing.T) {
	l := namedDef("bytes", &wit.List{Type: wit.U8{}})
	f := &Function{Name: "get", Results: []Param{{"data", l}}}

	r := NewRecorder(NewSizeAlign())
	if err := PostReturn(f, r, Options{}); err != nil {
		t.Fatal(err)
	}

	// Scalar elements own nothing: the per-element block is empty and only
	// the buffer itself is freed.
	want := []string{"GetArg", "I32Load", "I32Load", "GuestDeallocateList", "Return"}
	if got := mnemonics(r.Stream); !reflect.DeepEqual(got, want) {
		t.Fatalf("stream = %v\nwant %v", got, want)
	}
	if r.Blocks != 1 {
		t.Errorf("blocks = %d, want 1", r.Blocks)
	}
}

func TestPostReturnVariant(t *testing.T) {
	v := namedDef("res", &wit.Variant{Cases: []wit.Case{
		{Name: "none"},
		{Name: "text", Type: wit.String{}},
	}})
	f := &Function{Name: "get", Results: []Param{{"r", v}}}

	r := NewRecorder(NewSizeAlign())
	if err := PostReturn(f, r, Options{}); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"GetArg",
		"I32Load", "I32Load", "GuestDeallocateString",
		"I32Load8U",
		"GuestDeallocateVariant",
		"Return",
	}
	if got := mnemonics(r.Stream); !reflect.DeepEqual(got, want) {
		t.Fatalf("stream = %v\nwant %v", got, want)
	}
	if r.Blocks != 2 {
		t.Errorf("blocks = %d, want 2", r.Blocks)
	}
}
