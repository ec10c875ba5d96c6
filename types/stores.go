package types

import "context"

// RosterStore provides access to the ordered candidate roster held in the
// remote row-store.
//
// The roster is read-mostly: it is mutated only by full replacement, never
// row by row. Implementations must wrap transport failures with
// ErrConnectivity so callers can distinguish them from validation errors.
type RosterStore interface {
	// List returns all candidates ordered ascending by Position.
	//
	// An empty roster is not an error; it returns an empty slice.
	List(ctx context.Context) ([]Candidate, error)

	// Replace atomically swaps the roster for the given ordered names:
	// delete all existing rows, insert the new set with Position equal to
	// source order, and reset the shared cursor to 0.
	//
	// A partially replaced roster must never be observable. If the insert
	// step fails after the delete step succeeded, the store is left with an
	// empty roster and the returned error wraps ErrPartialImport so the
	// caller can prompt a retry of the whole import.
	//
	// Names are validated before any deletion; a blank name fails with
	// ErrInvalidName and leaves the existing roster untouched.
	Replace(ctx context.Context, orderedNames []string) error

	// Fingerprint returns the content fingerprint of the current roster,
	// used to detect replacement and invalidate pending undo state.
	// A roster that has never been imported has fingerprint 0.
	Fingerprint(ctx context.Context) (uint64, error)
}

// CursorStore provides access to the single shared "next assignee" cursor.
//
// The cursor is one logical integer cell shared by all clients; there is no
// per-client cursor. Revisions returned by mutating operations allow undo to
// be applied as a compare-and-set that cannot overwrite a later assignment.
type CursorStore interface {
	// Read returns the current cursor value and its store revision.
	//
	// Default initialization: if no cursor row exists yet, one is created
	// with value 0 before being returned.
	Read(ctx context.Context) (value int, revision uint64, err error)

	// Write unconditionally sets the cursor. Used by roster replacement to
	// reset the cursor to 0; regular assignment goes through IncrementBy.
	Write(ctx context.Context, value int) (revision uint64, err error)

	// IncrementBy atomically advances the cursor by count modulo modulo,
	// returning the value before and after the advance. The read-modify-
	// write happens as one conditional update on the store so concurrent
	// clients cannot double-assign the same range.
	IncrementBy(ctx context.Context, count, modulo int) (oldValue, newValue int, revision uint64, err error)

	// CompareAndSet sets the cursor to value only if its revision still
	// equals expectedRevision. A revision mismatch fails with
	// ErrCursorMoved. Used by undo to restore the pre-assignment value
	// without clobbering a later assignment.
	CompareAndSet(ctx context.Context, value int, expectedRevision uint64) (revision uint64, err error)
}

// CursorUpdate is one change-notification event for the shared state.
type CursorUpdate struct {
	// Cursor is the new shared cursor value.
	Cursor int

	// Revision is the store revision of the update.
	Revision uint64

	// RosterReplaced is true when this event signals a roster replacement
	// rather than a plain cursor move. Any pending undo must be discarded.
	RosterReplaced bool

	// RosterFingerprint is the fingerprint of the new roster when
	// RosterReplaced is true.
	RosterFingerprint uint64
}

// ChangeNotifier is the optional push stream supplied by stores that can
// deliver updates made by other clients.
type ChangeNotifier interface {
	// WatchUpdates delivers cursor moves and roster replacements performed
	// by any client until ctx is canceled. The returned channel is closed
	// when the watch ends.
	WatchUpdates(ctx context.Context) (<-chan CursorUpdate, error)
}
