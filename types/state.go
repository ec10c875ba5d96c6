package types

// SessionState represents the per-client assignment session state.
//
// The session cycles between two resting states for its whole life:
//
//	StateIdle → StateAssigned (assign) → StateIdle (undo or acknowledge)
//
// StateSyncing is observable while a store call is outstanding; callers
// should disable assign/undo controls in that state to narrow the
// cross-client race window.
type SessionState int32

const (
	// StateIdle means no assignment result is pending; undo is unavailable.
	StateIdle SessionState = iota

	// StateSyncing means a store round-trip is in flight.
	StateSyncing

	// StateAssigned means exactly one assignment result is pending and a
	// single undo is available.
	StateAssigned

	// StateClosed means the session has been closed and rejects operations.
	StateClosed
)

// String returns the string representation of the state.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSyncing:
		return "Syncing"
	case StateAssigned:
		return "Assigned"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
