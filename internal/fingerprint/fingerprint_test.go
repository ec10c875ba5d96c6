package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lunavale/rota/types"
)

func TestRoster(t *testing.T) {
	base := []types.Candidate{
		{ID: "a", Name: "Alice", Position: 0},
		{ID: "b", Name: "Bob", Position: 1},
	}

	t.Run("empty roster is zero", func(t *testing.T) {
		require.Zero(t, Roster(nil))
		require.Zero(t, Roster([]types.Candidate{}))
	})

	t.Run("deterministic for identical content", func(t *testing.T) {
		clone := make([]types.Candidate, len(base))
		copy(clone, base)
		require.Equal(t, Roster(base), Roster(clone))
	})

	t.Run("order changes the fingerprint", func(t *testing.T) {
		swapped := []types.Candidate{base[1], base[0]}
		require.NotEqual(t, Roster(base), Roster(swapped))
	})

	t.Run("different ids change the fingerprint", func(t *testing.T) {
		// Same names, new identities: a re-import of identical names must
		// still count as a replacement.
		reimported := []types.Candidate{
			{ID: "x", Name: "Alice", Position: 0},
			{ID: "y", Name: "Bob", Position: 1},
		}
		require.NotEqual(t, Roster(base), Roster(reimported))
	})

	t.Run("field boundaries are unambiguous", func(t *testing.T) {
		joined := []types.Candidate{{ID: "ab", Name: "c", Position: 0}}
		split := []types.Candidate{{ID: "a", Name: "bc", Position: 0}}
		require.NotEqual(t, Roster(joined), Roster(split))
	})
}
