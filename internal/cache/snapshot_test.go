package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lunavale/rota/types"
)

func TestSnapshotCache(t *testing.T) {
	snap := types.Snapshot{
		Candidates: []types.Candidate{{ID: "a", Name: "Alice", Position: 0}},
		Cursor:     1,
		FetchedAt:  time.Now(),
	}

	t.Run("empty cache has no fallback", func(t *testing.T) {
		c := New(0)
		_, ok := c.Load()
		require.False(t, ok)
	})

	t.Run("loaded snapshot is marked stale", func(t *testing.T) {
		c := New(0)
		c.Store(snap)

		got, ok := c.Load()
		require.True(t, ok)
		require.True(t, got.Stale)
		require.Equal(t, snap.Cursor, got.Cursor)
		require.Equal(t, snap.Candidates, got.Candidates)
	})

	t.Run("latest store wins", func(t *testing.T) {
		c := New(0)
		c.Store(snap)

		newer := snap
		newer.Cursor = 2
		c.Store(newer)

		got, ok := c.Load()
		require.True(t, ok)
		require.Equal(t, 2, got.Cursor)
	})

	t.Run("stale snapshots are not re-cached", func(t *testing.T) {
		c := New(0)
		already := snap
		already.Stale = true
		c.Store(already)

		_, ok := c.Load()
		require.False(t, ok)
	})

	t.Run("retention expires old snapshots", func(t *testing.T) {
		c := New(20 * time.Millisecond)
		c.Store(snap)

		time.Sleep(50 * time.Millisecond)

		_, ok := c.Load()
		require.False(t, ok)
	})
}
