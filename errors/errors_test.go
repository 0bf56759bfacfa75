package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want []string
	}{
		{
			name: "phase_and_kind",
			err:  New(PhaseEmit, KindInvalidData).Build(),
			want: []string{"[emit]", "invalid_data"},
		},
		{
			name: "with_path",
			err: New(PhaseLayout, KindUnsupported).
				Path("my-record", "field-a").
				Build(),
			want: []string{"at my-record.field-a"},
		},
		{
			name: "with_type_and_detail",
			err: New(PhaseConfig, KindUnsupported).
				WitType("permissions").
				Detail("unsupported number of flags: %d", 129).
				Build(),
			want: []string{"type permissions", "unsupported number of flags: 129"},
		},
		{
			name: "not_found",
			err:  NotFound(PhaseConfig, "function", "lookup"),
			want: []string{"[config]", "not_found", `function "lookup" not found`},
		},
		{
			name: "invalid_data_with_path",
			err:  InvalidData(PhaseConfig, []string{"dir"}, "unknown direction"),
			want: []string{"at dir", "unknown direction"},
		},
		{
			name: "closed",
			err:  Closed("handle 7"),
			want: []string{"[runtime]", "closed", "handle 7 is closed"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := tc.err.Error()
			for _, want := range tc.want {
				if !strings.Contains(msg, want) {
					t.Errorf("message %q missing %q", msg, want)
				}
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := FlagCount("permissions", 129)

	if !stderrors.Is(err, &Error{Phase: PhaseConfig, Kind: KindUnsupported}) {
		t.Error("expected match on phase+kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseEmit, Kind: KindUnsupported}) {
		t.Error("unexpected match on different phase")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := New(PhaseRuntime, KindClosed).
		Cause(cause).
		Detail("dispatch event").
		Build()

	if !stderrors.Is(err, cause) {
		t.Error("expected unwrap to reach cause")
	}
	if !strings.Contains(err.Error(), "caused by: boom") {
		t.Errorf("message %q missing cause", err.Error())
	}
}

func TestFlagCount(t *testing.T) {
	err := FlagCount("perms", 129)
	if err.Value != 129 {
		t.Errorf("value: got %v, want 129", err.Value)
	}
	if !strings.Contains(err.Error(), "unsupported number of flags: 129") {
		t.Errorf("message %q missing flag count detail", err.Error())
	}
}
