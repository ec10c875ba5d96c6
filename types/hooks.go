package types

import "context"

// Hooks defines callbacks for session lifecycle events.
//
// All hooks are optional. Cursor and roster hooks fire from the session's
// watch loop goroutine, in event order; hook errors are logged but never
// fail session operations.
//
// Best practices for hook implementation:
//   - Complete quickly; the watch loop applies later events only after the
//     hook returns
//   - Respect context cancellation (the context ends when the session
//     closes)
//   - Make hooks idempotent: reconnecting watchers may replay the latest
//     value
//   - Never call back into the Session from OnStateChanged. It fires while
//     the session's operation lock is held, so a hook that calls Assign,
//     Undo, Acknowledge, ReplaceRoster, or LastResult deadlocks. Record the
//     transition and act on it from another goroutine instead
type Hooks struct {
	// OnCursorChanged is called when another client moves the shared
	// cursor. The displayed value should simply be overwritten;
	// last write wins, no merge.
	OnCursorChanged func(ctx context.Context, old, new int) error

	// OnRosterReplaced is called when the roster is replaced by any
	// client. Any pending undo has already been discarded by the session
	// when this fires.
	OnRosterReplaced func(ctx context.Context, fingerprint uint64) error

	// OnStateChanged is called when the session state transitions.
	OnStateChanged func(ctx context.Context, from, to SessionState) error
}
