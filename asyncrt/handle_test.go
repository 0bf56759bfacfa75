package asyncrt

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/witgen/errors"
)

func TestHandleTable(t *testing.T) {
	ex := NewExecutor(&scriptHost{t: t})

	h := ex.NewHandle(1, LocalOpen)
	if got, ok := ex.Handle(1); !ok || got != h {
		t.Fatal("handle not registered")
	}

	// Writer arrives first: park the value.
	h.State = LocalReady
	h.Value = "payload"

	// Reader consumes and reopens.
	got, _ := ex.Handle(1)
	if got.Value != "payload" {
		t.Errorf("value = %v, want payload", got.Value)
	}
	got.State = LocalOpen
	got.Value = nil

	if err := ex.DropHandle(1); err != nil {
		t.Fatalf("DropHandle(1): %v", err)
	}
	if _, ok := ex.Handle(1); ok {
		t.Fatal("handle still present after drop")
	}

	// A second drop reports the handle as closed.
	err := ex.DropHandle(1)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindClosed}) {
		t.Errorf("double drop error = %v, want runtime/closed", err)
	}
}

func TestDuplicateHandlePanics(t *testing.T) {
	ex := NewExecutor(&scriptHost{t: t})
	ex.NewHandle(4, Read)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate handle id")
		}
	}()
	ex.NewHandle(4, Write)
}

func TestFutureResultImmediate(t *testing.T) {
	ex := NewExecutor(&scriptHost{t: t})

	tests := []struct {
		name string
		code uint32
		want bool
	}{
		{"transferred", 1, true},
		{"closed", Closed, false},
		{"canceled", Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *bool
			ex.FutureResult(func(handle, addr uint32) uint32 {
				return tt.code
			}, 2, 0, func(ok bool) { got = &ok })

			if got == nil {
				t.Fatal("completion did not run synchronously")
			}
			if *got != tt.want {
				t.Errorf("ok = %v, want %v", *got, tt.want)
			}
		})
	}
}

func TestFutureResultBlocked(t *testing.T) {
	host := &scriptHost{t: t}
	ex := NewExecutor(host)

	var got *bool
	task := ex.FirstPoll(func(ex *Executor) Poll {
		ex.FutureResult(func(handle, addr uint32) uint32 {
			return Blocked
		}, 5, 0, func(ok bool) { got = &ok })
		return Ready
	})

	if task == nil {
		t.Fatal("task completed synchronously, want blocked")
	}
	if got != nil {
		t.Fatal("completion ran before the host event")
	}

	if code := ex.Callback(task, EventFutureRead, 5, 1); code != 1 {
		t.Errorf("callback code = %d, want 1", code)
	}
	if got == nil || !*got {
		t.Errorf("ok = %v, want true", got)
	}
}

func TestStreamResultBlockedThenReady(t *testing.T) {
	host := &scriptHost{t: t}
	ex := NewExecutor(host)

	var n int
	var ok bool
	task := ex.FirstPoll(func(ex *Executor) Poll {
		ex.StreamResult(func(handle, addr, count uint32) uint32 {
			return Blocked
		}, 6, 0, 8, func(gotN int, gotOK bool) {
			n, ok = gotN, gotOK
		})
		return Ready
	})

	if task == nil {
		t.Fatal("task completed synchronously, want blocked")
	}

	// Host reports four elements transferred.
	if code := ex.Callback(task, EventStreamRead, 6, 4); code != 1 {
		t.Errorf("callback code = %d, want 1", code)
	}
	if !ok || n != 4 {
		t.Errorf("(n, ok) = (%d, %v), want (4, true)", n, ok)
	}
}

func TestStreamResultClosed(t *testing.T) {
	ex := NewExecutor(&scriptHost{t: t})

	var n int
	ok := true
	ex.StreamResult(func(handle, addr, count uint32) uint32 {
		return Closed
	}, 6, 0, 8, func(gotN int, gotOK bool) {
		n, ok = gotN, gotOK
	})

	if ok || n != 0 {
		t.Errorf("(n, ok) = (%d, %v), want (0, false)", n, ok)
	}
}

func TestStreamResultImmediateCount(t *testing.T) {
	ex := NewExecutor(&scriptHost{t: t})

	var n int
	var ok bool
	ex.StreamResult(func(handle, addr, count uint32) uint32 {
		return 3
	}, 6, 0, 8, func(gotN int, gotOK bool) {
		n, ok = gotN, gotOK
	})

	if !ok || n != 3 {
		t.Errorf("(n, ok) = (%d, %v), want (3, true)", n, ok)
	}
}
