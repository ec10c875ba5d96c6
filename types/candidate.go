package types

import (
	"sort"
	"time"
)

// Candidate is a single roster member eligible for round-robin assignment.
//
// The ID is assigned by the roster store when the roster is imported and is
// the only structurally unique field; display names may repeat. Position
// defines roster order: the roster is the sequence of candidates sorted by
// Position ascending.
type Candidate struct {
	// ID is the stable identifier assigned by the roster store.
	ID string `json:"id"`

	// Name is the non-empty display name shown in assignment output.
	Name string `json:"name"`

	// Position is the integer rank defining roster order.
	Position int `json:"position"`
}

// SortCandidates orders candidates in place by Position ascending.
//
// Stores return candidates already ordered; this is the canonical ordering
// applied after listing raw rows.
func SortCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Position < candidates[j].Position
	})
}

// CandidateNames extracts the ordered display names from a roster slice.
func CandidateNames(candidates []Candidate) []string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}

	return names
}

// Snapshot is a point-in-time view of the shared state used for display.
//
// When the live read fails and the session substitutes its last-known-good
// cached copy, Stale is true so callers can clearly mark the data as
// possibly out of date.
type Snapshot struct {
	// Candidates is the roster ordered by Position ascending.
	Candidates []Candidate

	// Cursor is the shared next-assignee index at fetch time.
	Cursor int

	// Stale indicates the snapshot came from the local fallback cache
	// rather than a live store read.
	Stale bool

	// FetchedAt is when the snapshot was read from the store.
	FetchedAt time.Time
}
