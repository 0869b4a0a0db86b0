// Package store provides SQLite-backed persistence for engine workspaces
// and the call journal.
//
// A workspace is a named snapshot of the engine's global namespace. Each
// variable is stored as a CBOR blob (wire.Marshal) next to its canonical
// digest (wire.Digest); LoadWorkspace recomputes the digest and refuses
// rows that no longer match. Values that hold handles, bound method
// references or host callbacks only mean something inside the session
// that issued them, so SaveWorkspace skips them.
//
// The journal records every primitive call a session made, in order:
//
//	s.Recorder(ctx, "default", logger) // session.Observer
//
// Journal entries are append-only. Ordering uses the store-assigned seq
// column, NEVER timestamps, so a journal reads back identically however
// fast it was written.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
