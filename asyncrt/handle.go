package asyncrt

import (
	"fmt"

	"github.com/wippyai/witgen/errors"
)

// HandleState is the lifecycle state of an open stream or future endpoint.
type HandleState int

const (
	// LocalOpen is an intra-instance endpoint with no pending operation.
	LocalOpen HandleState = iota
	// LocalReady holds a value written before the reader arrived.
	LocalReady
	// LocalWaiting holds a reader that arrived before the value.
	LocalWaiting
	// LocalClosed is a dropped intra-instance endpoint.
	LocalClosed
	// Read is the reading end of a host-mediated channel.
	Read
	// Write is the writing end of a host-mediated channel.
	Write
)

func (s HandleState) String() string {
	switch s {
	case LocalOpen:
		return "local-open"
	case LocalReady:
		return "local-ready"
	case LocalWaiting:
		return "local-waiting"
	case LocalClosed:
		return "local-closed"
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return "unknown"
	}
}

// Handle is one open stream or future endpoint.
type Handle struct {
	State HandleState

	// Value is the parked payload while State is LocalReady.
	Value any
	// Wake resumes the writer once a LocalReady value is consumed.
	Wake func()
	// Deliver hands a value to the parked reader while State is
	// LocalWaiting.
	Deliver func(any)
}

// NewHandle registers a stream or future endpoint. Reusing a live id is a
// bindings bug.
func (ex *Executor) NewHandle(id uint32, state HandleState) *Handle {
	if _, ok := ex.handles[id]; ok {
		panic(fmt.Sprintf("asyncrt: handle %d already open", id))
	}
	h := &Handle{State: state}
	ex.handles[id] = h
	return h
}

// Handle looks up an open endpoint.
func (ex *Executor) Handle(id uint32) (*Handle, bool) {
	h, ok := ex.handles[id]
	return h, ok
}

// DropHandle removes an endpoint from the table. Dropping an id that is not
// open reports a closed-handle error so double drops surface in the caller.
func (ex *Executor) DropHandle(id uint32) error {
	if _, ok := ex.handles[id]; !ok {
		return errors.Closed(fmt.Sprintf("handle %d", id))
	}
	delete(ex.handles, id)
	return nil
}

// FutureOp is the core shape of a future read or write: the handle and the
// payload address, returning a result code.
type FutureOp func(handle, addr uint32) uint32

// StreamOp is the core shape of a stream read or write: the handle, the
// element buffer address and its capacity, returning a result code.
type StreamOp func(handle, addr, count uint32) uint32

// FutureResult performs a future read or write. complete receives true when
// the payload transferred, false when the other end closed or the operation
// was canceled; it runs synchronously unless the host reports BLOCKED.
func (ex *Executor) FutureResult(op FutureOp, handle, addr uint32, complete func(ok bool)) {
	switch code := op(handle, addr); code {
	case Blocked:
		ex.block(handle, func(payload uint32) {
			complete(payload == 1)
		})
	case Closed, Canceled:
		complete(false)
	case 1:
		complete(true)
	default:
		panic(fmt.Sprintf("asyncrt: unexpected future result %#x", code))
	}
}

// StreamResult performs a stream read or write. complete receives the
// transferred element count, or ok=false when the other end closed or the
// operation was canceled.
func (ex *Executor) StreamResult(op StreamOp, handle, addr, count uint32, complete func(n int, ok bool)) {
	finish := func(code uint32) {
		switch code {
		case Closed, Canceled:
			complete(0, false)
		default:
			complete(int(code), true)
		}
	}

	switch code := op(handle, addr, count); code {
	case Blocked:
		ex.block(handle, finish)
	default:
		finish(code)
	}
}

// block parks a completion for an operation the host reported BLOCKED,
// charging it to the task being polled.
func (ex *Executor) block(handle uint32, complete func(payload uint32)) {
	if ex.current == nil {
		panic("asyncrt: blocked operation outside a polled task")
	}
	ex.current.todo++
	ex.calls[handle] = complete
}
