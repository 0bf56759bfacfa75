package main

import (
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/witgen/abi"
)

// The demo package graph exercises every interesting ABI shape: scalar
// fast paths, cleanup-list strings, joined variant payloads, canonical and
// per-element lists, spilled parameters and results, and the async call
// protocol. Parsing real WIT input is out of scope for this tool.

type demoWorld struct {
	types []*wit.TypeDef
	funcs []*abi.Function
}

func named(name string, kind wit.TypeDefKind) *wit.TypeDef {
	return &wit.TypeDef{Name: &name, Kind: kind}
}

func buildDemoWorld() *demoWorld {
	point := named("point", &wit.Record{Fields: []wit.Field{
		{Name: "x", Type: wit.F64{}},
		{Name: "y", Type: wit.F64{}},
	}})

	config := named("config", &wit.Record{Fields: []wit.Field{
		{Name: "id", Type: wit.U8{}},
		{Name: "label", Type: wit.String{}},
		{Name: "limit", Type: named("limit", &wit.Option{Type: wit.U32{}})},
	}})

	message := named("message", &wit.Variant{Cases: []wit.Case{
		{Name: "text", Type: wit.String{}},
		{Name: "code", Type: wit.U32{}},
		{Name: "ratio", Type: wit.F32{}},
	}})

	level := named("level", &wit.Enum{Cases: []wit.EnumCase{
		{Name: "debug"}, {Name: "info"}, {Name: "warn"}, {Name: "error"},
	}})

	permFlags := make([]wit.Flag, 33)
	for i := range permFlags {
		permFlags[i] = wit.Flag{Name: fmt.Sprintf("p%d", i)}
	}
	permissions := named("permissions", &wit.Flags{Flags: permFlags})

	bytes := named("bytes", &wit.List{Type: wit.U8{}})
	names := named("names", &wit.List{Type: wit.String{}})

	lookup := named("lookup-result", &wit.Result{OK: wit.String{}, Err: level})

	wideParams := make([]abi.Param, abi.MaxFlatParams+1)
	for i := range wideParams {
		wideParams[i] = abi.Param{Name: fmt.Sprintf("v%d", i), Type: wit.U32{}}
	}

	return &demoWorld{
		types: []*wit.TypeDef{point, config, message, level, permissions, bytes, names, lookup},
		funcs: []*abi.Function{
			{
				Name:    "add",
				Params:  []abi.Param{{Name: "a", Type: wit.U32{}}, {Name: "b", Type: wit.U32{}}},
				Results: []abi.Param{{Name: "sum", Type: wit.U32{}}},
			},
			{
				Name:    "distance",
				Params:  []abi.Param{{Name: "from", Type: point}, {Name: "to", Type: point}},
				Results: []abi.Param{{Name: "d", Type: wit.F64{}}},
			},
			{
				Name:   "configure",
				Params: []abi.Param{{Name: "cfg", Type: config}},
			},
			{
				Name:    "send",
				Params:  []abi.Param{{Name: "msg", Type: message}},
				Results: []abi.Param{{Name: "ok", Type: wit.Bool{}}},
			},
			{
				Name:   "set-permissions",
				Params: []abi.Param{{Name: "perms", Type: permissions}},
			},
			{
				Name:    "checksum",
				Params:  []abi.Param{{Name: "data", Type: bytes}},
				Results: []abi.Param{{Name: "crc", Type: wit.U32{}}},
			},
			{
				Name:   "register-all",
				Params: []abi.Param{{Name: "entries", Type: names}},
			},
			{
				Name:    "lookup",
				Params:  []abi.Param{{Name: "key", Type: wit.String{}}},
				Results: []abi.Param{{Name: "value", Type: lookup}},
			},
			{
				Name:   "sum-wide",
				Params: wideParams,
			},
		},
	}
}

func (w *demoWorld) find(name string) *abi.Function {
	for _, f := range w.funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (w *demoWorld) sizes() *abi.SizeAlign {
	s := abi.NewSizeAlign()
	s.Fill(w.types)
	return s
}
