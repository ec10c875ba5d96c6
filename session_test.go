package rota_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lunavale/rota"
	"github.com/lunavale/rota/internal/fingerprint"
	"github.com/lunavale/rota/store"
	rotatesting "github.com/lunavale/rota/testing"
	"github.com/lunavale/rota/types"
)

// fakeRosterStore is an in-memory RosterStore with injectable failures. A
// successful Replace resets the linked cursor store, matching the contract
// of the real store.
type fakeRosterStore struct {
	mu         sync.Mutex
	roster     []types.Candidate
	cursor     *fakeCursorStore
	replaceErr error
}

func newFakeStores(names ...string) (*fakeRosterStore, *fakeCursorStore) {
	cursor := newFakeCursorStore()
	roster := &fakeRosterStore{cursor: cursor}
	roster.setRoster(names)

	return roster, cursor
}

func (f *fakeRosterStore) setRoster(names []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.roster = make([]types.Candidate, len(names))
	for i, name := range names {
		f.roster[i] = types.Candidate{ID: fmt.Sprintf("id-%d", i), Name: name, Position: i}
	}
}

func (f *fakeRosterStore) List(context.Context) ([]types.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]types.Candidate, len(f.roster))
	copy(out, f.roster)

	return out, nil
}

func (f *fakeRosterStore) Replace(_ context.Context, orderedNames []string) error {
	f.mu.Lock()
	err := f.replaceErr
	f.mu.Unlock()

	if err != nil {
		// A partial failure leaves the observable empty roster behind.
		if errors.Is(err, types.ErrPartialImport) {
			f.setRoster(nil)
		}

		return err
	}

	f.setRoster(orderedNames)
	_, _ = f.cursor.Write(context.Background(), 0)

	return nil
}

func (f *fakeRosterStore) Fingerprint(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return fingerprint.Roster(f.roster), nil
}

// fakeCursorStore is an in-memory CursorStore with injectable failures.
type fakeCursorStore struct {
	mu     sync.Mutex
	value  int
	rev    uint64
	casErr error
}

func newFakeCursorStore() *fakeCursorStore {
	return &fakeCursorStore{rev: 1}
}

func (f *fakeCursorStore) Read(context.Context) (int, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.value, f.rev, nil
}

func (f *fakeCursorStore) Write(_ context.Context, value int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.value = value
	f.rev++

	return f.rev, nil
}

func (f *fakeCursorStore) IncrementBy(_ context.Context, count, modulo int) (int, int, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	old := f.value % modulo
	if old < 0 {
		old += modulo
	}
	f.value = (old + count) % modulo
	f.rev++

	return old, f.value, f.rev, nil
}

func (f *fakeCursorStore) CompareAndSet(_ context.Context, value int, expectedRevision uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.casErr != nil {
		return 0, f.casErr
	}
	if expectedRevision != f.rev {
		return 0, types.ErrCursorMoved
	}

	f.value = value
	f.rev++

	return f.rev, nil
}

func newTestStore(t *testing.T, suffix string) *store.NATSKV {
	t.Helper()

	_, nc := rotatesting.StartEmbeddedNATS(t)

	st, err := store.New(context.Background(), nc, store.Config{
		RosterBucket: "roster-" + suffix,
		CursorBucket: "cursor-" + suffix,
	})
	require.NoError(t, err)

	return st
}

func newTestSession(t *testing.T, st *store.NATSKV, opts ...rota.Option) *rota.Session {
	t.Helper()

	cfg := rota.TestConfig()
	session, err := rota.NewSession(&cfg, st, st, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

func TestNewSession_Validation(t *testing.T) {
	st := newTestStore(t, "validation")

	t.Run("nil config", func(t *testing.T) {
		_, err := rota.NewSession(nil, st, st)
		require.ErrorIs(t, err, rota.ErrInvalidConfig)
	})

	t.Run("nil roster store", func(t *testing.T) {
		cfg := rota.TestConfig()
		_, err := rota.NewSession(&cfg, nil, st)
		require.ErrorIs(t, err, rota.ErrRosterStoreRequired)
	})

	t.Run("nil cursor store", func(t *testing.T) {
		cfg := rota.TestConfig()
		_, err := rota.NewSession(&cfg, st, nil)
		require.ErrorIs(t, err, rota.ErrCursorStoreRequired)
	})

	t.Run("defaults applied", func(t *testing.T) {
		cfg := rota.Config{}
		session, err := rota.NewSession(&cfg, st, st)
		require.NoError(t, err)
		defer session.Close()

		require.Equal(t, rota.StateIdle, session.State())
		require.Positive(t, cfg.OperationTimeout)
	})
}

func TestSession_AssignUndo(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, "assign-undo")
	require.NoError(t, st.Replace(ctx, []string{"Alice", "Bob", "Carol"}))

	session := newTestSession(t, st)

	t.Run("assign walks roster in order", func(t *testing.T) {
		result, err := session.Assign(ctx, 2)
		require.NoError(t, err)
		require.Equal(t, []string{"Alice", "Bob"}, result.AssignedNames)
		require.Equal(t, 0, result.StartIndex)
		require.Equal(t, 2, result.EndIndex)
		require.Equal(t, rota.StateAssigned, session.State())
		require.Equal(t, 2, session.Cursor())
	})

	t.Run("undo restores the cursor", func(t *testing.T) {
		restored, err := session.Undo(ctx)
		require.NoError(t, err)
		require.Equal(t, 0, restored)
		require.Equal(t, rota.StateIdle, session.State())

		value, _, err := st.Read(ctx)
		require.NoError(t, err)
		require.Equal(t, 0, value)
	})

	t.Run("undo without pending assignment", func(t *testing.T) {
		_, err := session.Undo(ctx)
		require.ErrorIs(t, err, rota.ErrNoPendingAssignment)
	})

	t.Run("assign wraps around the roster", func(t *testing.T) {
		result, err := session.Assign(ctx, 4)
		require.NoError(t, err)
		require.Equal(t, []string{"Alice", "Bob", "Carol", "Alice"}, result.AssignedNames)
		require.Equal(t, 1, result.EndIndex)
	})

	t.Run("invalid count", func(t *testing.T) {
		_, err := session.Assign(ctx, 0)
		require.ErrorIs(t, err, rota.ErrInvalidCount)

		_, err = session.Assign(ctx, -3)
		require.ErrorIs(t, err, rota.ErrInvalidCount)
	})
}

func TestSession_AssignEmptyRoster(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, "empty-roster")
	session := newTestSession(t, st)

	_, err := session.Assign(ctx, 1)
	require.ErrorIs(t, err, rota.ErrEmptyRoster)
	require.Equal(t, rota.StateIdle, session.State())
}

func TestSession_UndoCursorMoved(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, "cursor-moved")
	require.NoError(t, st.Replace(ctx, []string{"Alice", "Bob", "Carol"}))

	session := newTestSession(t, st)

	_, err := session.Assign(ctx, 1)
	require.NoError(t, err)

	// Another client advances the shared cursor before the undo lands.
	other := newTestSession(t, st)
	result, err := other.Assign(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"Bob"}, result.AssignedNames)

	_, err = session.Undo(ctx)
	require.ErrorIs(t, err, rota.ErrCursorMoved)
	require.Equal(t, rota.StateIdle, session.State())

	// The later assignment wins; the cursor stays where the other client
	// left it.
	value, _, err := st.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, value)

	// The pending result is gone; a second undo has nothing to reverse.
	_, err = session.Undo(ctx)
	require.ErrorIs(t, err, rota.ErrNoPendingAssignment)
}

func TestSession_UndoRosterChanged(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, "roster-changed")
	require.NoError(t, st.Replace(ctx, []string{"Alice", "Bob"}))

	session := newTestSession(t, st)

	_, err := session.Assign(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, st.Replace(ctx, []string{"Dave", "Erin", "Frank"}))

	_, err = session.Undo(ctx)
	require.ErrorIs(t, err, rota.ErrRosterChanged)
	require.Equal(t, rota.StateIdle, session.State())

	_, ok := session.LastResult()
	require.False(t, ok)
}

func TestSession_Acknowledge(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, "acknowledge")
	require.NoError(t, st.Replace(ctx, []string{"Alice", "Bob"}))

	session := newTestSession(t, st)

	_, err := session.Assign(ctx, 1)
	require.NoError(t, err)

	session.Acknowledge()
	require.Equal(t, rota.StateIdle, session.State())

	_, err = session.Undo(ctx)
	require.ErrorIs(t, err, rota.ErrNoPendingAssignment)

	// The cursor keeps its advanced value.
	value, _, err := st.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, value)
}

func TestSession_ReplaceRoster(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, "replace")
	require.NoError(t, st.Replace(ctx, []string{"Alice", "Bob"}))

	session := newTestSession(t, st)

	_, err := session.Assign(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 0, session.Cursor()) // wrapped back to the start

	require.NoError(t, session.ReplaceRoster(ctx, []string{"Dave", "Erin", "Frank"}))
	require.Equal(t, rota.StateIdle, session.State())
	require.Equal(t, 0, session.Cursor())

	// Pending undo is discarded by the replacement.
	_, err = session.Undo(ctx)
	require.ErrorIs(t, err, rota.ErrNoPendingAssignment)

	// Assignment starts over from the top of the new roster.
	result, err := session.Assign(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"Dave", "Erin"}, result.AssignedNames)

	t.Run("invalid name rejected", func(t *testing.T) {
		err := session.ReplaceRoster(ctx, []string{"Gina", "  ", "Henry"})
		require.ErrorIs(t, err, rota.ErrInvalidName)

		// The previous roster survives a rejected import.
		snap, err := session.Snapshot(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"Dave", "Erin", "Frank"}, types.CandidateNames(snap.Candidates))
	})
}

func TestSession_ReplaceRosterPartialImport(t *testing.T) {
	ctx := context.Background()

	newFakeSession := func(t *testing.T) (*rota.Session, *fakeRosterStore, *fakeCursorStore) {
		t.Helper()

		roster, cursor := newFakeStores("Alice", "Bob")

		cfg := rota.TestConfig()
		session, err := rota.NewSession(&cfg, roster, cursor)
		require.NoError(t, err)
		t.Cleanup(func() { _ = session.Close() })

		return session, roster, cursor
	}

	t.Run("partial failure discards pending undo", func(t *testing.T) {
		session, roster, _ := newFakeSession(t)

		_, err := session.Assign(ctx, 1)
		require.NoError(t, err)

		roster.replaceErr = fmt.Errorf("%w: insert of position 1 failed", types.ErrPartialImport)

		err = session.ReplaceRoster(ctx, []string{"Carol", "Dave"})
		require.ErrorIs(t, err, rota.ErrPartialImport)
		require.Equal(t, rota.StateIdle, session.State())

		// The old roster is gone; the recorded indexes refer to nothing
		// restorable, so the pending undo is discarded.
		_, ok := session.LastResult()
		require.False(t, ok)

		// The empty roster left behind is observable and assignment is
		// blocked until the import is retried.
		_, err = session.Assign(ctx, 1)
		require.ErrorIs(t, err, rota.ErrEmptyRoster)

		roster.replaceErr = nil
		require.NoError(t, session.ReplaceRoster(ctx, []string{"Carol", "Dave"}))

		result, err := session.Assign(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, []string{"Carol"}, result.AssignedNames)
	})

	t.Run("non-partial failure keeps pending undo", func(t *testing.T) {
		session, roster, _ := newFakeSession(t)

		_, err := session.Assign(ctx, 1)
		require.NoError(t, err)

		roster.replaceErr = fmt.Errorf("%w: request timeout", types.ErrConnectivity)

		err = session.ReplaceRoster(ctx, []string{"Carol"})
		require.Error(t, err)
		require.True(t, types.IsConnectivityError(err))
		require.Equal(t, rota.StateAssigned, session.State())

		// Nothing was deleted; the pending undo is still usable.
		_, ok := session.LastResult()
		require.True(t, ok)

		roster.replaceErr = nil
		restored, err := session.Undo(ctx)
		require.NoError(t, err)
		require.Equal(t, 0, restored)
	})
}

func TestSession_UndoRetryAfterStoreFailure(t *testing.T) {
	ctx := context.Background()

	roster, cursor := newFakeStores("Alice", "Bob")

	cfg := rota.TestConfig()
	session, err := rota.NewSession(&cfg, roster, cursor)
	require.NoError(t, err)
	defer session.Close()

	_, err = session.Assign(ctx, 1)
	require.NoError(t, err)

	// The restore write fails in transit: the pending result must survive
	// so the caller can retry.
	cursor.casErr = fmt.Errorf("%w: request timeout", types.ErrConnectivity)

	_, err = session.Undo(ctx)
	require.Error(t, err)
	require.True(t, types.IsConnectivityError(err))
	require.Equal(t, rota.StateAssigned, session.State())

	_, ok := session.LastResult()
	require.True(t, ok)

	// The retry succeeds once the store is reachable again.
	cursor.casErr = nil

	restored, err := session.Undo(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, restored)
	require.Equal(t, rota.StateIdle, session.State())

	value, _, err := cursor.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, value)
}

func TestSession_Snapshot(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, "snapshot")
	require.NoError(t, st.Replace(ctx, []string{"Alice", "Bob", "Carol"}))

	session := newTestSession(t, st)

	snap, err := session.Snapshot(ctx)
	require.NoError(t, err)
	require.False(t, snap.Stale)
	require.Equal(t, 0, snap.Cursor)
	require.Equal(t, []string{"Alice", "Bob", "Carol"}, types.CandidateNames(snap.Candidates))
	require.WithinDuration(t, time.Now(), snap.FetchedAt, 5*time.Second)
}

func TestSession_SnapshotFallback(t *testing.T) {
	ctx := context.Background()
	srv, nc := rotatesting.StartEmbeddedNATS(t)

	st, err := store.New(ctx, nc, store.Config{
		RosterBucket:     "roster-fallback",
		CursorBucket:     "cursor-fallback",
		OperationTimeout: 500 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, st.Replace(ctx, []string{"Alice", "Bob"}))

	session := newTestSession(t, st)

	// Prime the fallback cache with a live read.
	snap, err := session.Snapshot(ctx)
	require.NoError(t, err)
	require.False(t, snap.Stale)

	// Take the server down; the session must serve the cached copy.
	srv.Shutdown()
	srv.WaitForShutdown()

	stale, err := session.Snapshot(ctx)
	require.NoError(t, err)
	require.True(t, stale.Stale)
	require.Equal(t, snap.Cursor, stale.Cursor)
	require.Equal(t, types.CandidateNames(snap.Candidates), types.CandidateNames(stale.Candidates))

	// Assignment is refused rather than applied to stale data.
	_, err = session.Assign(ctx, 1)
	require.Error(t, err)
	require.NotErrorIs(t, err, rota.ErrEmptyRoster)
}

func TestSession_Updates(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, "updates")
	require.NoError(t, st.Replace(ctx, []string{"Alice", "Bob", "Carol"}))

	var mu sync.Mutex
	var cursorChanges [][2]int

	hooks := &rota.Hooks{
		OnCursorChanged: func(_ context.Context, oldValue, newValue int) error {
			mu.Lock()
			defer mu.Unlock()
			cursorChanges = append(cursorChanges, [2]int{oldValue, newValue})

			return nil
		},
	}

	observer := newTestSession(t, st, rota.WithNotifier(st), rota.WithHooks(hooks))

	updates, unsubscribe := observer.Updates()
	defer unsubscribe()

	// A different session moves the shared cursor.
	writer := newTestSession(t, st)
	_, err := writer.Assign(ctx, 2)
	require.NoError(t, err)

	select {
	case update := <-updates:
		require.False(t, update.RosterReplaced)
		require.Equal(t, 2, update.Cursor)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for cursor update")
	}

	require.Eventually(t, func() bool {
		return observer.Cursor() == 2
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	require.NotEmpty(t, cursorChanges)
	require.Equal(t, [2]int{0, 2}, cursorChanges[len(cursorChanges)-1])
	mu.Unlock()
}

func TestSession_UpdatesRosterReplaced(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, "updates-replace")
	require.NoError(t, st.Replace(ctx, []string{"Alice", "Bob"}))

	observer := newTestSession(t, st, rota.WithNotifier(st))

	// Record a pending assignment so the replacement has something to
	// invalidate.
	_, err := observer.Assign(ctx, 1)
	require.NoError(t, err)

	updates, unsubscribe := observer.Updates()
	defer unsubscribe()

	writer := newTestSession(t, st)
	require.NoError(t, writer.ReplaceRoster(ctx, []string{"Dave", "Erin"}))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case update := <-updates:
			if !update.RosterReplaced {
				continue // cursor reset event from the replacement
			}
			require.NotZero(t, update.RosterFingerprint)
		case <-deadline:
			t.Fatal("timed out waiting for roster replacement event")
		}

		break
	}

	// The observer's pending undo is discarded by the remote replacement.
	require.Eventually(t, func() bool {
		_, ok := observer.LastResult()

		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSession_Closed(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, "closed")
	require.NoError(t, st.Replace(ctx, []string{"Alice"}))

	cfg := rota.TestConfig()
	session, err := rota.NewSession(&cfg, st, st, rota.WithNotifier(st))
	require.NoError(t, err)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close()) // idempotent
	require.Equal(t, rota.StateClosed, session.State())

	_, err = session.Assign(ctx, 1)
	require.ErrorIs(t, err, rota.ErrSessionClosed)

	_, err = session.Undo(ctx)
	require.ErrorIs(t, err, rota.ErrSessionClosed)

	_, err = session.Snapshot(ctx)
	require.ErrorIs(t, err, rota.ErrSessionClosed)

	require.ErrorIs(t, session.ReplaceRoster(ctx, []string{"Bob"}), rota.ErrSessionClosed)
}

func TestSession_ConcurrentAssign(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, "concurrent")
	require.NoError(t, st.Replace(ctx, []string{"Alice", "Bob", "Carol", "Dave", "Erin"}))

	const sessions = 4
	const perSession = 5

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		session := newTestSession(t, st)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSession; j++ {
				_, err := session.Assign(ctx, 1)
				require.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	// No lost updates: 20 single assignments over 5 candidates land on 0.
	value, _, err := st.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, (sessions*perSession)%5, value)
}
