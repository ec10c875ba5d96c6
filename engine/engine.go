package engine

import (
	"github.com/lunavale/rota/types"
)

// ComputeAssignment selects the next count assignees from the roster
// starting at startIndex, treating the roster as a circular buffer.
//
// The walk is purely modular: element i of the output is
// roster[(startIndex+i) mod len(roster)].Name. The count may exceed the
// roster length; candidates are then revisited as the walk wraps, which is
// intentional round-robin behavior rather than an error.
//
// The caller must reduce a persisted cursor via NormalizeIndex first, since
// stored values can drift out of range when the roster shrank after the
// cursor was last written.
//
// Parameters:
//   - roster: Candidates ordered by Position ascending; must be non-empty
//   - startIndex: Cursor value before the assignment, in [0, len(roster))
//   - count: Number of documents to assign; must be positive
//
// Returns:
//   - *types.AssignmentResult: Ordered assignee names plus the start and end
//     cursor values; EndIndex = (startIndex + count) mod len(roster)
//   - error: types.ErrEmptyRoster or types.ErrInvalidCount
//
// Example:
//
//	result, err := engine.ComputeAssignment(roster, cursor, 2)
//	if err != nil { /* handle */ }
//	// result.AssignedNames holds the next two assignees in order.
func ComputeAssignment(roster []types.Candidate, startIndex, count int) (*types.AssignmentResult, error) {
	if len(roster) == 0 {
		return nil, types.ErrEmptyRoster
	}
	if count <= 0 {
		return nil, types.ErrInvalidCount
	}

	length := len(roster)
	names := make([]string, count)
	for i := 0; i < count; i++ {
		names[i] = roster[(startIndex+i)%length].Name
	}

	return &types.AssignmentResult{
		AssignedNames: names,
		StartIndex:    startIndex,
		EndIndex:      (startIndex + count) % length,
	}, nil
}

// ComputeUndo reverses the single most recent assignment.
//
// Given the most recent AssignmentResult, it returns the cursor value to
// restore. Only one undo level exists: the caller must discard the result
// after restoring the cursor, and a second undo without an intervening
// assignment fails because there is no prior state left to restore.
//
// Parameters:
//   - last: The pending assignment result, or nil when nothing is pending
//
// Returns:
//   - int: The cursor value before the assignment (last.StartIndex)
//   - error: types.ErrNoPendingAssignment when last is nil
func ComputeUndo(last *types.AssignmentResult) (int, error) {
	if last == nil {
		return 0, types.ErrNoPendingAssignment
	}

	return last.StartIndex, nil
}

// NormalizeIndex reduces a possibly drifted cursor value into [0, length).
//
// Persisted cursors can fall out of range when the roster was shrunk after
// the cursor was last written. Negative values (which no store write
// produces, but defensive callers may pass) are wrapped into range as well.
//
// Parameters:
//   - idx: Raw cursor value as read from the store
//   - length: Current roster length; must be positive
//
// Returns:
//   - int: Equivalent index in [0, length); 0 when length <= 0
func NormalizeIndex(idx, length int) int {
	if length <= 0 {
		return 0
	}

	idx %= length
	if idx < 0 {
		idx += length
	}

	return idx
}
