package abi

import (
	"go.bytecodealliance.org/wit"
)

// FunctionKind distinguishes freestanding functions from the resource-bound
// forms.
type FunctionKind int

const (
	Freestanding FunctionKind = iota
	Method
	Static
	Constructor
)

func (k FunctionKind) String() string {
	switch k {
	case Freestanding:
		return "freestanding"
	case Method:
		return "method"
	case Static:
		return "static"
	case Constructor:
		return "constructor"
	default:
		return "unknown"
	}
}

// Param is one named parameter or result slot.
type Param struct {
	Name string
	Type wit.Type
}

// Function describes one function of the resolved interface graph. Method,
// Static and Constructor kinds carry the owning resource type definition.
type Function struct {
	Name     string
	Kind     FunctionKind
	Resource *wit.TypeDef
	Params   []Param
	Results  []Param
}

// ParamTypes returns the parameter types in declared order.
func (f *Function) ParamTypes() []wit.Type {
	types := make([]wit.Type, len(f.Params))
	for i, p := range f.Params {
		types[i] = p.Type
	}
	return types
}

// ResultTypes returns the result types in declared order.
func (f *Function) ResultTypes() []wit.Type {
	types := make([]wit.Type, len(f.Results))
	for i, r := range f.Results {
		types[i] = r.Type
	}
	return types
}
