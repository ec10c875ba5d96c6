// Package cache holds the last successfully fetched roster/cursor snapshot
// so the session can keep displaying data while the remote store is
// unreachable.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/lunavale/rota/types"
)

// snapshotKey is the single cache slot; only the latest snapshot is kept.
const snapshotKey = "last-known-good"

// SnapshotCache stores the last-known-good display snapshot.
//
// Snapshots loaded from the cache are always marked stale: the cache is
// consulted only after a live read failed, and the user must be able to see
// that the data may be out of date. Entries expire after the configured
// retention so an outage cannot surface arbitrarily old rosters.
type SnapshotCache struct {
	c *gocache.Cache
}

// New creates a snapshot cache that keeps fallback data for retention.
//
// A retention of 0 keeps the last snapshot indefinitely.
func New(retention time.Duration) *SnapshotCache {
	if retention <= 0 {
		retention = gocache.NoExpiration
	}

	return &SnapshotCache{
		c: gocache.New(retention, retention),
	}
}

// Store records a fresh snapshot as the new last-known-good copy.
//
// Stale snapshots are never stored; re-caching fallback data would let it
// outlive the retention window.
func (s *SnapshotCache) Store(snap types.Snapshot) {
	if snap.Stale {
		return
	}

	s.c.Set(snapshotKey, snap, gocache.DefaultExpiration)
}

// Load returns the cached snapshot marked stale, or false when no usable
// copy exists (never stored, or retention expired).
func (s *SnapshotCache) Load() (types.Snapshot, bool) {
	v, ok := s.c.Get(snapshotKey)
	if !ok {
		return types.Snapshot{}, false
	}

	snap, ok := v.(types.Snapshot)
	if !ok {
		return types.Snapshot{}, false
	}

	snap.Stale = true

	return snap, true
}
