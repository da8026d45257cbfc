// Package lifecycle owns one peer's in-memory order list and every
// operation that mutates it.
//
// The engine validates status transitions against the fixed progression
// pending → confirmed → preparing → ready → served → completed and the
// role permission matrix, writes each accepted change through to the
// durable store, and schedules the time-based rules: the cancel window,
// the auto-completion of served orders, and the session clear that
// follows a staff completion.
//
// Thread-safety model:
//   - All exported methods are safe from any goroutine; a single mutex
//     serializes mutations so each peer behaves like a run-to-completion
//     event loop.
//   - Notifications, change listeners and receipt printing run after the
//     mutex is released.
//
// Cross-peer conflicts are resolved only by last-writer-wins on UpdatedAt
// (see ApplySnapshot). A transition applied here can be overwritten by a
// later-stamped snapshot from another peer; this is best-effort eventual
// consistency, not linearizability.
package lifecycle
