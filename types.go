package rota

import "github.com/lunavale/rota/types"

// Re-export types from the types subpackage.
//
// This file provides a stable public API for the library's core types. It
// uses type aliases to re-export definitions from the `types` subpackage,
// which contains the actual implementations. The pattern lets internal
// packages depend on `types` without importing the root package, while users
// still get a convenient `rota.Candidate`, `rota.Logger`, etc.
type (
	Candidate        = types.Candidate
	AssignmentResult = types.AssignmentResult
	Snapshot         = types.Snapshot
	SessionState     = types.SessionState
	CursorUpdate     = types.CursorUpdate
)

// Re-export interfaces from the types subpackage for convenience.
type (
	RosterStore      = types.RosterStore
	CursorStore      = types.CursorStore
	ChangeNotifier   = types.ChangeNotifier
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export SessionState constants from the types subpackage.
const (
	StateIdle     = types.StateIdle
	StateSyncing  = types.StateSyncing
	StateAssigned = types.StateAssigned
	StateClosed   = types.StateClosed
)
