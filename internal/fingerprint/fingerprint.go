// Package fingerprint computes content fingerprints of roster snapshots.
//
// A fingerprint identifies a roster by its ordered contents. Sessions record
// the fingerprint at assignment time and compare it before undo: a changed
// fingerprint means the roster was replaced and the recorded cursor indexes
// no longer refer to meaningful positions.
package fingerprint

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"

	"github.com/lunavale/rota/types"
)

// Roster returns the xxh3 fingerprint of the given ordered candidates.
//
// The hash covers IDs, names, and positions with length prefixes so that
// reordered or merged fields cannot collide. An empty roster has
// fingerprint 0, matching the "never imported" store state.
func Roster(candidates []types.Candidate) uint64 {
	if len(candidates) == 0 {
		return 0
	}

	h := xxh3.New()
	var buf [8]byte
	for _, c := range candidates {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(c.ID)))
		_, _ = h.Write(buf[:])
		_, _ = h.WriteString(c.ID)

		binary.LittleEndian.PutUint64(buf[:], uint64(len(c.Name)))
		_, _ = h.Write(buf[:])
		_, _ = h.WriteString(c.Name)

		binary.LittleEndian.PutUint64(buf[:], uint64(c.Position)) //nolint:gosec // positions are small non-negative ints
		_, _ = h.Write(buf[:])
	}

	return h.Sum64()
}
