package rota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lunavale/rota/engine"
	"github.com/lunavale/rota/internal/cache"
	"github.com/lunavale/rota/internal/fingerprint"
	"github.com/lunavale/rota/internal/logger"
	"github.com/lunavale/rota/internal/metrics"
	"github.com/lunavale/rota/types"
)

// Session coordinates round-robin assignment for one client against the
// shared roster and cursor stores.
//
// A Session is the stateful counterpart of the pure engine package. It
// performs the two user-facing operations (assign N documents, undo the last
// assignment), keeps the single pending result that makes undo possible,
// applies change notifications pushed by other clients, and serves a
// last-known-good cached snapshot when the store is unreachable.
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//   - Assign, Undo, Acknowledge, and ReplaceRoster are mutually exclusive;
//     the session is observable in StateSyncing while one is in flight
//
// Lifecycle:
//   - Create with NewSession()
//   - Use hooks or Updates() to react to remote changes
//   - Call Close() to stop the watch loop and release subscribers
type Session struct {
	cfg      Config
	roster   types.RosterStore
	cursor   types.CursorStore
	notifier types.ChangeNotifier
	hooks    *types.Hooks
	logger   types.Logger
	metrics  types.MetricsCollector

	fallback  *cache.SnapshotCache
	broadcast *broadcaster

	// mu serializes the mutating operations of this session; the UI
	// equivalent is disabling the assign/undo controls while a call is
	// outstanding.
	mu      sync.Mutex
	pending *types.AssignmentResult

	state      atomic.Int32 // types.SessionState
	lastCursor atomic.Int64
	closed     atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession creates a Session over the given stores.
//
// Returns a concrete *Session following the "accept interfaces, return
// structs" principle; the store arguments only need to implement the small
// interfaces in the types package, so tests can substitute fakes.
//
// When a change notifier is supplied via WithNotifier, the session starts a
// background watch loop immediately; Close() stops it.
//
// Parameters:
//   - cfg: Session configuration (defaults applied in place)
//   - roster: Roster store (the NATS KV store implements this)
//   - cursor: Cursor store (the NATS KV store implements this)
//   - opts: Optional logger, metrics, hooks, and change notifier
//
// Returns:
//   - *Session: Initialized session in StateIdle
//   - error: Validation error if configuration or stores are invalid
//
// Example:
//
//	st, _ := store.New(ctx, nc, store.Config{})
//	cfg := rota.DefaultConfig()
//	session, err := rota.NewSession(&cfg, st, st, rota.WithNotifier(st))
func NewSession(cfg *Config, roster types.RosterStore, cursor types.CursorStore, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, types.ErrInvalidConfig
	}
	if roster == nil {
		return nil, types.ErrRosterStoreRequired
	}
	if cursor == nil {
		return nil, types.ErrCursorStoreRequired
	}

	SetDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidConfig, err)
	}

	options := &sessionOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = logger.NewNop()
	}
	if options.metrics == nil {
		options.metrics = metrics.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		cfg:       *cfg,
		roster:    roster,
		cursor:    cursor,
		notifier:  options.notifier,
		hooks:     options.hooks,
		logger:    options.logger,
		metrics:   options.metrics,
		fallback:  cache.New(cfg.CacheRetention),
		broadcast: newBroadcaster(cfg.UpdateBuffer),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.state.Store(int32(types.StateIdle))

	if s.notifier != nil {
		s.wg.Add(1)
		go s.watchLoop()
	}

	return s, nil
}

// State returns the current session state.
func (s *Session) State() types.SessionState {
	return types.SessionState(s.state.Load())
}

// Cursor returns the last cursor value this session has observed, whether
// from its own operations or from remote change notifications.
func (s *Session) Cursor() int {
	return int(s.lastCursor.Load())
}

// LastResult returns a copy of the pending assignment result, if any.
func (s *Session) LastResult() (types.AssignmentResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return types.AssignmentResult{}, false
	}

	return *s.pending, true
}

// Assign assigns the next count documents in round-robin order.
//
// The roster is read live, the shared cursor is advanced by one atomic
// store operation, and the assignee names are computed from the cursor value
// before the advance. On success the result becomes the pending undo target
// and the session transitions to StateAssigned.
//
// A failed store call leaves local state unchanged: the previous pending
// result (if any) and session state are preserved so the caller can retry.
//
// Parameters:
//   - ctx: Context for the store round-trips
//   - count: Number of documents to assign; must be positive
//
// Returns:
//   - *types.AssignmentResult: Names, start and end cursor values
//   - error: types.ErrInvalidCount, types.ErrEmptyRoster, or a wrapped
//     store failure (types.IsConnectivityError reports transport causes)
func (s *Session) Assign(ctx context.Context, count int) (*types.AssignmentResult, error) {
	if s.closed.Load() {
		return nil, types.ErrSessionClosed
	}
	if count <= 0 {
		return nil, types.ErrInvalidCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.State()
	s.transition(ctx, types.StateSyncing)
	started := time.Now()

	opCtx, cancelOp := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancelOp()

	roster, err := s.roster.List(opCtx)
	if err != nil {
		s.transition(ctx, prev)

		return nil, fmt.Errorf("failed to load roster for assignment: %w", err)
	}
	if len(roster) == 0 {
		s.transition(ctx, prev)

		return nil, types.ErrEmptyRoster
	}

	oldValue, newValue, rev, err := s.cursor.IncrementBy(opCtx, count, len(roster))
	if err != nil {
		s.transition(ctx, prev)

		return nil, fmt.Errorf("failed to advance shared cursor: %w", err)
	}

	result, err := engine.ComputeAssignment(roster, oldValue, count)
	if err != nil {
		s.transition(ctx, prev)

		return nil, err
	}
	result.CursorRevision = rev
	result.RosterFingerprint = fingerprint.Roster(roster)

	if result.EndIndex != newValue {
		// The roster length changed between the list and the advance. The
		// stored value wins for display; the names stand as computed.
		s.logger.Warn("roster changed during assignment",
			"computedEnd", result.EndIndex, "storedEnd", newValue)
	}

	s.pending = result
	s.lastCursor.Store(int64(newValue))
	s.fallback.Store(types.Snapshot{Candidates: roster, Cursor: newValue, FetchedAt: time.Now()})

	s.metrics.IncrementAssignments(count)
	s.metrics.ObserveAssignLatency(time.Since(started).Seconds())
	s.transition(ctx, types.StateAssigned)
	s.logger.Info("documents assigned", "count", count, "start", oldValue, "end", newValue)

	resultCopy := *result

	return &resultCopy, nil
}

// Undo reverses the single most recent assignment made by this session.
//
// The restore is applied as a compare-and-set against the cursor revision
// recorded at assignment time, so it cannot clobber an assignment another
// client has made since; that case fails with types.ErrCursorMoved and the
// pending result is discarded (the later assignment wins). A roster
// replacement since the assignment fails with types.ErrRosterChanged,
// likewise discarding the pending result.
//
// With nothing pending, Undo fails with types.ErrNoPendingAssignment;
// callers typically disable the undo control instead of surfacing this.
//
// Returns:
//   - int: The restored cursor value
//   - error: See above; wrapped store failures keep the pending result so
//     the caller can retry
func (s *Session) Undo(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, types.ErrSessionClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := engine.ComputeUndo(s.pending)
	if err != nil {
		s.metrics.IncrementUndo("none_pending")

		return 0, err
	}

	s.transition(ctx, types.StateSyncing)

	opCtx, cancelOp := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancelOp()

	fp, err := s.roster.Fingerprint(opCtx)
	if err != nil {
		// Pending result kept; the caller may retry.
		s.transition(ctx, types.StateAssigned)

		return 0, fmt.Errorf("failed to verify roster before undo: %w", err)
	}
	if fp != s.pending.RosterFingerprint {
		s.pending = nil
		s.metrics.IncrementUndo("roster_changed")
		s.transition(ctx, types.StateIdle)

		return 0, types.ErrRosterChanged
	}

	_, err = s.cursor.CompareAndSet(opCtx, target, s.pending.CursorRevision)
	if errors.Is(err, types.ErrCursorMoved) {
		s.pending = nil
		s.metrics.IncrementUndo("cursor_moved")
		s.transition(ctx, types.StateIdle)

		return 0, types.ErrCursorMoved
	}
	if err != nil {
		s.transition(ctx, types.StateAssigned)

		return 0, fmt.Errorf("failed to restore cursor: %w", err)
	}

	s.pending = nil
	s.lastCursor.Store(int64(target))
	s.metrics.IncrementUndo("success")
	s.transition(ctx, types.StateIdle)
	s.logger.Info("assignment undone", "cursor", target)

	return target, nil
}

// Acknowledge accepts the pending assignment, keeping the cursor where it
// is and discarding the undo opportunity. A no-op when nothing is pending.
func (s *Session) Acknowledge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return
	}

	s.pending = nil
	s.transition(s.ctx, types.StateIdle)
}

// ReplaceRoster atomically swaps the roster for the given ordered names and
// resets the shared cursor to 0.
//
// Any pending undo is discarded: its recorded indexes no longer correspond
// to meaningful positions in the new roster. A partial import failure
// (wrapping types.ErrPartialImport) leaves an observable empty roster and
// also discards the pending result; the whole import must be retried.
func (s *Session) ReplaceRoster(ctx context.Context, orderedNames []string) error {
	if s.closed.Load() {
		return types.ErrSessionClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.State()
	s.transition(ctx, types.StateSyncing)

	opCtx, cancelOp := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancelOp()

	if err := s.roster.Replace(opCtx, orderedNames); err != nil {
		if errors.Is(err, types.ErrPartialImport) {
			// The old roster is gone; the pending result no longer refers
			// to anything restorable.
			s.pending = nil
			s.transition(ctx, types.StateIdle)
		} else {
			s.transition(ctx, prev)
		}

		return fmt.Errorf("roster replacement failed: %w", err)
	}

	s.pending = nil
	s.lastCursor.Store(0)
	s.transition(ctx, types.StateIdle)
	s.logger.Info("roster replaced", "size", len(orderedNames))

	return nil
}

// Snapshot returns the current roster and cursor for display.
//
// On a live read the snapshot also refreshes the fallback cache. When the
// store is unreachable, the last-known-good cached copy is returned with
// Stale set so the user can see the data may be out of date; with no usable
// cached copy the store error is returned.
func (s *Session) Snapshot(ctx context.Context) (types.Snapshot, error) {
	if s.closed.Load() {
		return types.Snapshot{}, types.ErrSessionClosed
	}

	opCtx, cancelOp := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancelOp()

	roster, err := s.roster.List(opCtx)
	if err == nil {
		var value int
		value, _, err = s.cursor.Read(opCtx)
		if err == nil {
			if len(roster) > 0 {
				value = engine.NormalizeIndex(value, len(roster))
			}

			snap := types.Snapshot{Candidates: roster, Cursor: value, FetchedAt: time.Now()}
			s.fallback.Store(snap)
			s.lastCursor.Store(int64(value))
			s.metrics.SetCursorPosition(value)
			s.metrics.SetRosterSize(len(roster))

			return snap, nil
		}
	}

	if snap, ok := s.fallback.Load(); ok {
		s.logger.Warn("store unreachable, serving stale snapshot",
			"error", err, "fetchedAt", snap.FetchedAt)

		return snap, nil
	}

	return types.Snapshot{}, fmt.Errorf("no cached snapshot available: %w", err)
}

// Updates subscribes to change-notification events observed by this
// session: cursor moves by any client and roster replacements. The second
// return value unsubscribes and closes the channel.
//
// Without a configured notifier the channel never receives events.
func (s *Session) Updates() (<-chan types.CursorUpdate, func()) {
	return s.broadcast.subscribe()
}

// Close stops the watch loop, closes all subscriber channels, and moves the
// session to StateClosed. Further operations fail with ErrSessionClosed.
// Close is idempotent.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.cancel()
	s.wg.Wait()
	s.broadcast.closeAll()
	s.state.Store(int32(types.StateClosed))
	s.logger.Debug("session closed")

	return nil
}

// transition swaps the session state and fires the state-change hook.
func (s *Session) transition(ctx context.Context, to types.SessionState) {
	from := types.SessionState(s.state.Swap(int32(to)))
	if from == to {
		return
	}

	if s.hooks != nil && s.hooks.OnStateChanged != nil {
		if err := s.hooks.OnStateChanged(ctx, from, to); err != nil {
			s.logger.Warn("state change hook failed", "from", from, "to", to, "error", err)
		}
	}
}

// watchLoop applies change notifications until the session closes,
// re-establishing the watch after failures.
func (s *Session) watchLoop() {
	defer s.wg.Done()

	for {
		updates, err := s.notifier.WatchUpdates(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}

			s.logger.Warn("change notification watch failed, retrying",
				"error", err, "retryIn", s.cfg.WatchRetryDelay)

			select {
			case <-s.ctx.Done():
				return
			case <-time.After(s.cfg.WatchRetryDelay):
			}

			continue
		}

		s.consume(updates)

		if s.ctx.Err() != nil {
			return
		}

		// Watch ended unexpectedly; back off before re-establishing.
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.cfg.WatchRetryDelay):
		}
	}
}

// consume applies events from one watch stream until it ends.
func (s *Session) consume(updates <-chan types.CursorUpdate) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.applyRemote(update)
		}
	}
}

// applyRemote applies one pushed event: last write wins, no merge. A roster
// replacement additionally discards any pending undo recorded against the
// old roster.
func (s *Session) applyRemote(update types.CursorUpdate) {
	if update.RosterReplaced {
		s.mu.Lock()
		discarded := false
		if s.pending != nil && s.pending.RosterFingerprint != update.RosterFingerprint {
			s.pending = nil
			discarded = true
			s.transition(s.ctx, types.StateIdle)
		}
		s.mu.Unlock()

		if discarded {
			s.logger.Info("pending undo discarded after roster replacement",
				"fingerprint", update.RosterFingerprint)
		}

		if s.hooks != nil && s.hooks.OnRosterReplaced != nil {
			if err := s.hooks.OnRosterReplaced(s.ctx, update.RosterFingerprint); err != nil {
				s.logger.Warn("roster replaced hook failed", "error", err)
			}
		}

		s.broadcast.publish(update)

		return
	}

	old := int(s.lastCursor.Swap(int64(update.Cursor)))
	s.metrics.SetCursorPosition(update.Cursor)

	if old != update.Cursor {
		if s.hooks != nil && s.hooks.OnCursorChanged != nil {
			if err := s.hooks.OnCursorChanged(s.ctx, old, update.Cursor); err != nil {
				s.logger.Warn("cursor changed hook failed", "old", old, "new", update.Cursor, "error", err)
			}
		}
	}

	s.broadcast.publish(update)
}
