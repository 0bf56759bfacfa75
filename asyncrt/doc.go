// Package asyncrt is the runtime support library async-generated bindings
// call into: the executor behind async-lowered imports, async-lifted
// exports and stream/future operations.
//
// The model is cooperative and strictly single-threaded, bound to one wasm
// instance. An Executor owns all mutable state: the table of in-flight
// calls awaiting a host event, the stream/future handle states, the task
// currently being polled and the queue of work spawned during a poll.
// Nothing here is safe for concurrent use; the single-instance invariant is
// what replaces locks.
//
// # Call Protocol
//
// An async-lowered import returns a packed status word: the status in the
// top two bits, the subtask handle in the rest. STATUS_DONE completes
// synchronously and never produces an event. Any other status registers a
// completion with the executor and counts toward the owning task's
// outstanding work; the host later reports progress through Callback with
// an event code, the subtask handle and a payload:
//
//	Status               Event
//	─────────────────────────────────────
//	STARTING (0)         CALL_STARTED (1)
//	STARTED  (1)         CALL_RETURNED (2)
//	RETURNED (2)         CALL_DONE (3)
//	DONE     (3)         (none)
//
// CALL_DONE additionally triggers the subtask-drop canonical built-in.
// Events for one subtask arrive at most once per transition and in order.
//
// # Stream and Future Operations
//
// Reads and writes return BLOCKED, CLOSED, CANCELED or a count. BLOCKED
// parks the operation in the calls table until the matching STREAM_READ /
// STREAM_WRITE / FUTURE_READ / FUTURE_WRITE event delivers the final code.
//
// # Driving Work
//
// BlockOn runs one unit of work to completion, using the host's task-wait
// built-in whenever progress stalls. FirstPoll is the async export entry
// point: it polls newly created work once and hands back a Task pointer for
// the host callback, or nil when the export finished synchronously. Spawn
// defers work to the task currently being polled; it runs before that task
// reports completion.
package asyncrt
