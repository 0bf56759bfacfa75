package asyncrt

import (
	"fmt"

	"go.uber.org/zap"
)

// Status is the top-two-bit state of a packed async call result.
type Status uint32

const (
	StatusStarting Status = 0
	StatusStarted  Status = 1
	StatusReturned Status = 2
	StatusDone     Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusStarted:
		return "started"
	case StatusReturned:
		return "returned"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is a host progress notification code.
type Event int32

const (
	EventCallStarting Event = 0
	EventCallStarted  Event = 1
	EventCallReturned Event = 2
	EventCallDone     Event = 3
	EventYielded      Event = 4
	EventStreamRead   Event = 5
	EventStreamWrite  Event = 6
	EventFutureRead   Event = 7
	EventFutureWrite  Event = 8
)

// Stream and future operation result codes defined by the Canonical ABI.
// Any other value is a transferred element count.
const (
	Blocked  uint32 = 0xffffffff
	Closed   uint32 = 0x80000000
	Canceled uint32 = 0
)

// UnpackStatus splits a packed async call result into its status and
// subtask handle.
func UnpackStatus(result uint32) (Status, uint32) {
	return Status(result >> 30), result &^ (0b11 << 30)
}

// Host is the set of canonical built-ins the executor drives. Generated
// bindings wire these to the actual component intrinsics; tests substitute
// a scripted host.
type Host interface {
	// TaskWait blocks until the host has progress to report and returns the
	// event triple passed on to Callback.
	TaskWait() (event Event, handle, payload uint32)

	// TaskYield temporarily returns control to the host.
	TaskYield()

	// TaskBackpressure tells the host to defer (or resume) new calls into
	// this instance.
	TaskBackpressure(enabled bool)

	// SubtaskDrop releases a completed subtask handle.
	SubtaskDrop(subtask uint32)
}

// Poll is the outcome of stepping one unit of work.
type Poll int

const (
	Pending Poll = iota
	Ready
)

// Step is one resumable unit of work. It is invoked repeatedly until it
// reports Ready; each invocation runs on the executor's single thread.
type Step func(ex *Executor) Poll

// Task is a unit of async work tracked across host callbacks: either an
// async-lifted export in flight or a BlockOn in progress.
type Task struct {
	// todo counts in-progress async-lowered calls and stream/future
	// operations owned by this task. The task is not reported done until it
	// reaches zero.
	todo int
	work []Step
}

// Executor owns all async runtime state for one wasm instance. It is not
// safe for concurrent use: the cooperative single-threaded model is the
// synchronization.
type Executor struct {
	host Host
	log  *zap.Logger

	// calls holds one-shot completions for in-flight operations, keyed by
	// the handle the host issued.
	calls map[uint32]func(payload uint32)
	// handles holds the states of open streams and futures.
	handles map[uint32]*Handle
	// current is the task being polled, or nil. Spawned work attaches to it.
	current *Task
	spawned []Step
}

func NewExecutor(host Host) *Executor {
	return &Executor{
		host:    host,
		log:     Logger(),
		calls:   make(map[uint32]func(uint32)),
		handles: make(map[uint32]*Handle),
	}
}

// poll steps the task's work until everything is Ready or nothing can make
// immediate progress. Work spawned during a step joins the same task before
// the next pass.
func (ex *Executor) poll(t *Task) Poll {
	for {
		if len(t.work) == 0 {
			return Ready
		}

		prev := ex.current
		ex.current = t
		remaining := t.work[:0]
		for _, step := range t.work {
			if step(ex) == Pending {
				remaining = append(remaining, step)
			}
		}
		t.work = remaining
		ex.current = prev

		if len(ex.spawned) > 0 {
			t.work = append(t.work, ex.spawned...)
			ex.spawned = nil
			continue
		}
		if len(t.work) > 0 {
			return Pending
		}
	}
}

// FirstPoll creates the task for a newly invoked async export and polls it
// once. It returns nil when the work completed synchronously, otherwise the
// task to hand back to the host for callback dispatch.
func (ex *Executor) FirstPoll(step Step) *Task {
	t := &Task{work: []Step{step}}
	if ex.poll(t) == Ready && t.todo == 0 {
		return nil
	}
	return t
}

// BlockOn runs one unit of work to completion, waiting on the host whenever
// the work stalls on in-flight operations.
func (ex *Executor) BlockOn(step Step) {
	t := &Task{work: []Step{step}}
	for {
		if ex.poll(t) == Ready && t.todo == 0 {
			return
		}
		event, handle, payload := ex.host.TaskWait()
		ex.Callback(t, event, handle, payload)
	}
}

// Spawn defers work to the task currently being polled. The task stays
// running until all spawned work has completed.
func (ex *Executor) Spawn(step Step) {
	ex.spawned = append(ex.spawned, step)
}

// Yield returns control to the host temporarily. Call inside busy loops
// that would otherwise never yield.
func (ex *Executor) Yield() {
	ex.host.TaskYield()
}

// Backpressure toggles the host's admission of new calls into this
// instance.
func (ex *Executor) Backpressure(enabled bool) {
	ex.host.TaskBackpressure(enabled)
}

// ImportFunc is the core shape of an async-lowered import: fully indirect
// parameters and results, returning a packed status word.
type ImportFunc func(paramsPtr, resultsPtr uint32) uint32

// Call starts an async-lowered import. freeParams releases the lowered
// parameter area; it runs immediately once the callee no longer reads the
// parameters (STARTED or later), or on completion for STATUS_STARTING.
// complete runs exactly once: synchronously when results are already
// available (STATUS_RETURNED or STATUS_DONE), otherwise from the event
// callback.
func (ex *Executor) Call(imp ImportFunc, paramsPtr, resultsPtr uint32, freeParams, complete func()) {
	status, handle := UnpackStatus(imp(paramsPtr, resultsPtr))
	debugf("async call: status=%s handle=%d", status, handle)

	if status == StatusDone {
		freeParams()
		complete()
		return
	}

	if ex.current == nil {
		panic("asyncrt: async call outside a polled task")
	}
	ex.current.todo++

	switch status {
	case StatusStarting:
		// The callee may still read the parameters; keep them alive until
		// the call completes.
		ex.calls[handle] = func(uint32) {
			freeParams()
			complete()
		}
	case StatusStarted:
		freeParams()
		ex.calls[handle] = func(uint32) {
			complete()
		}
	case StatusReturned:
		// Results already sit in the return area; consume them now. The
		// subtask stays charged to the task until the host reports DONE.
		freeParams()
		complete()
	default:
		panic(fmt.Sprintf("asyncrt: unexpected call status %d", status))
	}
}

// Callback dispatches one host progress notification to the given task. The
// return value is the callback code for the host: 1 when the task fully
// completed and was released, 0 otherwise.
func (ex *Executor) Callback(t *Task, event Event, handle, payload uint32) int32 {
	debugf("callback: event=%d handle=%d payload=%d", event, handle, payload)

	switch event {
	case EventCallStarted:
		return 0

	case EventCallReturned, EventCallDone,
		EventStreamRead, EventStreamWrite, EventFutureRead, EventFutureWrite:
		if complete, ok := ex.calls[handle]; ok {
			delete(ex.calls, handle)
			complete(payload)
		}

		done := ex.poll(t) == Ready

		if event == EventCallDone {
			ex.host.SubtaskDrop(handle)
		}
		if event != EventCallReturned {
			t.todo--
		}

		if done && t.todo == 0 {
			return 1
		}
		return 0

	default:
		ex.log.Warn("unexpected callback event", zap.Int32("event", int32(event)))
		return 0
	}
}
