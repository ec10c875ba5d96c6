package types

import "errors"

// Sentinel errors for the rota library.
//
// These errors provide type-safe error checking using errors.Is() and
// errors.As(). Components use these sentinels for known conditions and wrap
// external errors with context using fmt.Errorf("...: %w", err).

// Engine errors - validation failures raised synchronously by pure compute.
var (
	// ErrEmptyRoster is returned when an assignment is requested against a
	// roster with no candidates.
	ErrEmptyRoster = errors.New("roster is empty")

	// ErrInvalidCount is returned when the requested assignment count is
	// zero or negative.
	ErrInvalidCount = errors.New("assignment count must be a positive integer")

	// ErrNoPendingAssignment is returned when undo is requested with no
	// recorded assignment to reverse. Callers typically treat this as a
	// no-op and disable the undo control instead of surfacing it.
	ErrNoPendingAssignment = errors.New("no pending assignment to undo")
)

// Session errors - returned by the assignment session coordinator.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrRosterStoreRequired is returned when the roster store is nil.
	ErrRosterStoreRequired = errors.New("roster store is required")

	// ErrCursorStoreRequired is returned when the cursor store is nil.
	ErrCursorStoreRequired = errors.New("cursor store is required")

	// ErrSessionClosed is returned when operations are invoked on a closed
	// session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrCursorMoved is returned when an undo finds that another client has
	// advanced the shared cursor since the assignment being reversed. The
	// pending result is discarded; the later assignment wins.
	ErrCursorMoved = errors.New("cursor moved since last assignment")

	// ErrRosterChanged is returned when an undo finds that the roster has
	// been replaced since the assignment being reversed, so the recorded
	// indexes no longer correspond to meaningful positions.
	ErrRosterChanged = errors.New("roster replaced since last assignment")
)

// Store errors - returned by roster and cursor store implementations.
var (
	// ErrConnectivity indicates a transport failure reaching the remote
	// store. Callers recover by reverting optimistic state and falling back
	// to the last-known-good cached snapshot, clearly marked stale.
	ErrConnectivity = errors.New("store connectivity failure")

	// ErrPartialImport indicates a roster replacement failed after the old
	// roster was deleted but before the new one was fully inserted. The
	// store is left with an observable empty roster; the whole import must
	// be retried.
	ErrPartialImport = errors.New("roster import failed after delete, roster left empty")

	// ErrInvalidName is returned when a roster import contains an empty or
	// blank display name.
	ErrInvalidName = errors.New("candidate name must be non-empty")
)

// IsConnectivityError reports whether err stems from a transport failure
// reaching the remote store, as opposed to a validation or state error.
func IsConnectivityError(err error) bool {
	return errors.Is(err, ErrConnectivity)
}
