package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the generation pipeline the error occurred
type Phase string

const (
	PhaseLayout  Phase = "layout"  // size/alignment calculation
	PhaseFlatten Phase = "flatten" // core signature flattening
	PhaseEmit    Phase = "emit"    // instruction stream emission
	PhaseConfig  Phase = "config"  // generator configuration
	PhaseRuntime Phase = "runtime" // async runtime support
)

// Kind categorizes the error
type Kind string

const (
	KindUnsupported Kind = "unsupported"
	KindInvalidData Kind = "invalid_data"
	KindNotFound    Kind = "not_found"
	KindClosed      Kind = "closed"
)

// Error is the structured error type used throughout the generator
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	WitType string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.WitType != "" {
		b.WriteString(": type ")
		b.WriteString(e.WitType)
	}

	if e.Detail != "" {
		if e.WitType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the type path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// WitType sets the WIT type name
func (b *Builder) WitType(t string) *Builder {
	b.err.WitType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Unsupported creates an unsupported shape error
func Unsupported(phase Phase, what string) *Error {
	return New(phase, KindUnsupported).Detail("%s", what).Build()
}

// FlagCount reports a flags type whose bit count the ABI cannot represent
func FlagCount(typeName string, count int) *Error {
	return New(PhaseConfig, KindUnsupported).
		WitType(typeName).
		Value(count).
		Detail("unsupported number of flags: %d", count).
		Build()
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return New(phase, KindInvalidData).Path(path...).Detail("%s", detail).Build()
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return New(phase, KindNotFound).Detail("%s %q not found", what, name).Build()
}

// Closed reports an operation on a closed executor or handle
func Closed(what string) *Error {
	return New(PhaseRuntime, KindClosed).Detail("%s is closed", what).Build()
}
