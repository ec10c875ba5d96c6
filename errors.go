package rota

import "github.com/lunavale/rota/types"

// Sentinel errors re-exported from the types package for convenient
// errors.Is checks against the root package.
var (
	// ErrEmptyRoster is returned when an assignment is requested against a
	// roster with no candidates.
	ErrEmptyRoster = types.ErrEmptyRoster

	// ErrInvalidCount is returned when the requested assignment count is
	// zero or negative.
	ErrInvalidCount = types.ErrInvalidCount

	// ErrNoPendingAssignment is returned when undo is requested with no
	// recorded assignment to reverse.
	ErrNoPendingAssignment = types.ErrNoPendingAssignment

	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrRosterStoreRequired is returned when the roster store is nil.
	ErrRosterStoreRequired = types.ErrRosterStoreRequired

	// ErrCursorStoreRequired is returned when the cursor store is nil.
	ErrCursorStoreRequired = types.ErrCursorStoreRequired

	// ErrSessionClosed is returned when operations are invoked on a closed
	// session.
	ErrSessionClosed = types.ErrSessionClosed

	// ErrCursorMoved is returned when an undo finds that another client
	// has advanced the shared cursor since the assignment being reversed.
	ErrCursorMoved = types.ErrCursorMoved

	// ErrRosterChanged is returned when an undo finds that the roster has
	// been replaced since the assignment being reversed.
	ErrRosterChanged = types.ErrRosterChanged

	// ErrConnectivity indicates a transport failure reaching the remote
	// store.
	ErrConnectivity = types.ErrConnectivity

	// ErrPartialImport indicates a roster replacement failed after the old
	// roster was deleted but before the new one was fully inserted.
	ErrPartialImport = types.ErrPartialImport

	// ErrInvalidName is returned when a roster import contains an empty
	// display name.
	ErrInvalidName = types.ErrInvalidName
)
