package types

// MetricsCollector defines the instrumentation points exposed by the session
// and stores.
//
// Implementations must be safe for concurrent use. The library ships a no-op
// collector (used by default) and a Prometheus-backed collector in
// internal/metrics.
type MetricsCollector interface {
	// IncrementAssignments records one successful assignment covering
	// documents documents.
	IncrementAssignments(documents int)

	// IncrementUndo records an undo attempt with the given result
	// ("success", "cursor_moved", "roster_changed", "none_pending").
	IncrementUndo(result string)

	// SetCursorPosition records the latest observed shared cursor value.
	SetCursorPosition(value int)

	// SetRosterSize records the latest observed roster length.
	SetRosterSize(size int)

	// IncrementRosterReplacements records one completed roster replacement.
	IncrementRosterReplacements()

	// IncrementStoreFailure records a failed store operation by name
	// ("list", "read", "write", "increment", "cas", "replace", "watch").
	IncrementStoreFailure(op string)

	// ObserveAssignLatency records the duration in seconds of one assign
	// round-trip including the atomic cursor advance.
	ObserveAssignLatency(seconds float64)
}
