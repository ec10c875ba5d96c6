package types

// AssignmentResult describes one successful round-robin assignment.
//
// It is ephemeral state: the session keeps at most one result in memory to
// support a single undo step, and discards it on acknowledge, undo, or
// roster replacement. Results are never persisted.
type AssignmentResult struct {
	// AssignedNames is the ordered sequence of assignee display names.
	// Its length equals the requested count; names repeat when the count
	// exceeds the roster length and the walk wraps.
	AssignedNames []string

	// StartIndex is the cursor value before this assignment. Undo restores
	// the shared cursor to this value.
	StartIndex int

	// EndIndex is the cursor value after this assignment:
	// (StartIndex + count) mod roster length.
	EndIndex int

	// CursorRevision is the store revision of the cursor write that
	// produced EndIndex. Undo is applied as a compare-and-set against this
	// revision so it cannot clobber a later assignment by another client.
	CursorRevision uint64

	// RosterFingerprint identifies the roster contents the assignment was
	// computed against. A pending undo is invalidated when the roster has
	// been replaced since, because the recorded indexes no longer refer to
	// meaningful positions.
	RosterFingerprint uint64
}

// Count returns the number of documents covered by this assignment.
func (r *AssignmentResult) Count() int {
	return len(r.AssignedNames)
}
