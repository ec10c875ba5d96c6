package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/lunavale/rota/internal/fingerprint"
	"github.com/lunavale/rota/internal/kvutil"
	"github.com/lunavale/rota/internal/logger"
	"github.com/lunavale/rota/internal/metrics"
	"github.com/lunavale/rota/types"
)

const (
	// cursorKey is the single shared cursor row. All clients observe and
	// mutate the same logical cell; there is no per-client cursor.
	cursorKey = "current"

	// revisionKey holds the roster content fingerprint, rewritten on every
	// replacement so watchers can detect roster swaps.
	revisionKey = "meta.revision"

	// candidateKeyPrefix prefixes one KV row per roster position.
	candidateKeyPrefix = "candidate."

	// casMaxAttempts bounds the conditional-update retry loop. Contention
	// on the cursor comes from a handful of clerks, not a fleet; hitting
	// this bound means something is wrong with the store.
	casMaxAttempts = 64
)

// Config configures the NATS KV store.
type Config struct {
	// RosterBucket is the KV bucket holding candidate rows. Default "rota-roster".
	RosterBucket string `yaml:"rosterBucket"`

	// CursorBucket is the KV bucket holding the shared cursor. Default "rota-cursor".
	CursorBucket string `yaml:"cursorBucket"`

	// Replicas is the KV bucket replica count. Default 1.
	Replicas int `yaml:"replicas"`

	// OperationTimeout bounds each KV operation. Default 10s.
	OperationTimeout time.Duration `yaml:"operationTimeout"`
}

// setDefaults fills in missing configuration values.
func (cfg *Config) setDefaults() {
	if cfg.RosterBucket == "" {
		cfg.RosterBucket = "rota-roster"
	}
	if cfg.CursorBucket == "" {
		cfg.CursorBucket = "rota-cursor"
	}
	if cfg.Replicas <= 0 {
		cfg.Replicas = 1
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 10 * time.Second
	}
}

// Option configures a NATSKV store with optional dependencies.
type Option func(*NATSKV)

// WithLogger sets a logger.
func WithLogger(log types.Logger) Option {
	return func(s *NATSKV) {
		s.logger = log
	}
}

// WithMetrics sets a metrics collector.
func WithMetrics(collector types.MetricsCollector) Option {
	return func(s *NATSKV) {
		s.metrics = collector
	}
}

// NATSKV implements types.RosterStore, types.CursorStore, and
// types.ChangeNotifier over two JetStream KV buckets.
//
// All methods are safe for concurrent use; the underlying KV operations are
// individually atomic and no local mutable state is kept beyond the bucket
// handles.
type NATSKV struct {
	rosterKV jetstream.KeyValue
	cursorKV jetstream.KeyValue
	timeout  time.Duration
	logger   types.Logger
	metrics  types.MetricsCollector
}

var (
	_ types.RosterStore    = (*NATSKV)(nil)
	_ types.CursorStore    = (*NATSKV)(nil)
	_ types.ChangeNotifier = (*NATSKV)(nil)
)

// New creates a NATSKV store, ensuring both KV buckets exist.
//
// Parameters:
//   - ctx: Context for bucket creation
//   - nc: NATS connection
//   - cfg: Store configuration (zero values get defaults)
//   - opts: Optional logger and metrics
//
// Returns:
//   - *NATSKV: Initialized store
//   - error: Bucket creation or connectivity failure
//
// Example:
//
//	st, err := store.New(ctx, nc, store.Config{}, store.WithLogger(log))
//	if err != nil { /* handle */ }
//	session, err := rota.NewSession(&cfg, st, st)
func New(ctx context.Context, nc *nats.Conn, cfg Config, opts ...Option) (*NATSKV, error) {
	if nc == nil {
		return nil, fmt.Errorf("%w: NATS connection is required", types.ErrInvalidConfig)
	}

	cfg.setDefaults()

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	rosterKV, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      cfg.RosterBucket,
		Description: "rota candidate roster rows",
		Replicas:    cfg.Replicas,
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("%w: roster bucket: %w", types.ErrConnectivity, err)
	}

	cursorKV, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      cfg.CursorBucket,
		Description: "rota shared assignment cursor",
		Replicas:    cfg.Replicas,
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("%w: cursor bucket: %w", types.ErrConnectivity, err)
	}

	s := &NATSKV{
		rosterKV: rosterKV,
		cursorKV: cursorKV,
		timeout:  cfg.OperationTimeout,
		logger:   logger.NewNop(),
		metrics:  metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// opContext bounds a store operation with the configured timeout.
func (s *NATSKV) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// candidateKey formats the row key for a roster position.
func candidateKey(position int) string {
	return fmt.Sprintf("%s%05d", candidateKeyPrefix, position)
}

// List returns all candidates ordered ascending by Position.
func (s *NATSKV) List(ctx context.Context) ([]types.Candidate, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	lister, err := s.rosterKV.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []types.Candidate{}, nil
		}
		s.metrics.IncrementStoreFailure("list")

		return nil, fmt.Errorf("%w: failed to list roster keys: %w", types.ErrConnectivity, err)
	}

	var candidates []types.Candidate
	for key := range lister.Keys() {
		if len(key) <= len(candidateKeyPrefix) || key[:len(candidateKeyPrefix)] != candidateKeyPrefix {
			continue
		}

		entry, err := s.rosterKV.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				// Row deleted between list and get during a replacement.
				continue
			}
			s.metrics.IncrementStoreFailure("list")

			return nil, fmt.Errorf("%w: failed to read roster row %s: %w", types.ErrConnectivity, key, err)
		}

		var c types.Candidate
		if err := json.Unmarshal(entry.Value(), &c); err != nil {
			return nil, fmt.Errorf("failed to decode roster row %s: %w", key, err)
		}
		candidates = append(candidates, c)
	}

	types.SortCandidates(candidates)
	s.metrics.SetRosterSize(len(candidates))

	if candidates == nil {
		candidates = []types.Candidate{}
	}

	return candidates, nil
}

// Replace atomically swaps the roster for the given ordered names and resets
// the shared cursor to 0.
//
// Names are validated before any deletion so a bad import leaves the old
// roster untouched. Once deletion has begun, any failure leaves the store
// with an observable empty (or partially inserted) roster and the returned
// error wraps types.ErrPartialImport: the caller must retry the whole
// import rather than operate on a partial set.
func (s *NATSKV) Replace(ctx context.Context, orderedNames []string) error {
	for i, name := range orderedNames {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: name at position %d", types.ErrInvalidName, i)
		}
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	existing, err := s.List(ctx)
	if err != nil {
		s.metrics.IncrementStoreFailure("replace")

		return fmt.Errorf("failed to list roster before replace: %w", err)
	}

	// Delete phase. From here on a failure is a partial import.
	for _, c := range existing {
		if err := s.rosterKV.Purge(ctx, candidateKey(c.Position)); err != nil {
			s.metrics.IncrementStoreFailure("replace")

			return fmt.Errorf("%w: delete of position %d failed: %w", types.ErrPartialImport, c.Position, err)
		}
	}

	// Insert phase.
	inserted := make([]types.Candidate, 0, len(orderedNames))
	for i, name := range orderedNames {
		c := types.Candidate{
			ID:       uuid.NewString(),
			Name:     name,
			Position: i,
		}

		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("%w: failed to encode candidate %d: %w", types.ErrPartialImport, i, err)
		}

		if _, err := s.rosterKV.Put(ctx, candidateKey(i), payload); err != nil {
			s.metrics.IncrementStoreFailure("replace")

			return fmt.Errorf("%w: insert of position %d failed: %w", types.ErrPartialImport, i, err)
		}
		inserted = append(inserted, c)
	}

	// Publish the new fingerprint so watchers learn about the swap, then
	// reset the shared cursor.
	fp := fingerprint.Roster(inserted)
	if _, err := s.rosterKV.Put(ctx, revisionKey, []byte(strconv.FormatUint(fp, 10))); err != nil {
		s.metrics.IncrementStoreFailure("replace")

		return fmt.Errorf("%w: failed to write roster revision: %w", types.ErrPartialImport, err)
	}

	if _, err := s.Write(ctx, 0); err != nil {
		s.metrics.IncrementStoreFailure("replace")

		return fmt.Errorf("%w: failed to reset cursor: %w", types.ErrPartialImport, err)
	}

	s.metrics.IncrementRosterReplacements()
	s.metrics.SetRosterSize(len(inserted))
	s.logger.Info("roster replaced", "size", len(inserted), "fingerprint", fp)

	return nil
}

// Fingerprint returns the stored roster content fingerprint, or 0 when the
// roster has never been imported.
func (s *NATSKV) Fingerprint(ctx context.Context) (uint64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	entry, err := s.rosterKV.Get(ctx, revisionKey)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return 0, nil
		}
		s.metrics.IncrementStoreFailure("read")

		return 0, fmt.Errorf("%w: failed to read roster revision: %w", types.ErrConnectivity, err)
	}

	fp, err := strconv.ParseUint(string(entry.Value()), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt roster revision %q: %w", entry.Value(), err)
	}

	return fp, nil
}

// Read returns the shared cursor value and its revision, creating the row
// with value 0 if it does not exist yet.
func (s *NATSKV) Read(ctx context.Context) (int, uint64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	return s.read(ctx)
}

// read is Read without the timeout wrapper, for use inside CAS loops that
// already bounded their context.
func (s *NATSKV) read(ctx context.Context) (int, uint64, error) {
	entry, err := s.cursorKV.Get(ctx, cursorKey)
	if err == nil {
		value, perr := strconv.Atoi(string(entry.Value()))
		if perr != nil {
			return 0, 0, fmt.Errorf("corrupt cursor value %q: %w", entry.Value(), perr)
		}

		return value, entry.Revision(), nil
	}

	if !errors.Is(err, jetstream.ErrKeyNotFound) {
		s.metrics.IncrementStoreFailure("read")

		return 0, 0, fmt.Errorf("%w: failed to read cursor: %w", types.ErrConnectivity, err)
	}

	// Default initialization: create the row with value 0. Another client
	// may win the race; re-read in that case.
	rev, err := s.cursorKV.Create(ctx, cursorKey, []byte("0"))
	if err == nil {
		return 0, rev, nil
	}
	if errors.Is(err, jetstream.ErrKeyExists) {
		return s.read(ctx)
	}

	s.metrics.IncrementStoreFailure("read")

	return 0, 0, fmt.Errorf("%w: failed to initialize cursor: %w", types.ErrConnectivity, err)
}

// Write unconditionally sets the shared cursor.
func (s *NATSKV) Write(ctx context.Context, value int) (uint64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rev, err := s.cursorKV.Put(ctx, cursorKey, []byte(strconv.Itoa(value)))
	if err != nil {
		s.metrics.IncrementStoreFailure("write")

		return 0, fmt.Errorf("%w: failed to write cursor: %w", types.ErrConnectivity, err)
	}

	s.metrics.SetCursorPosition(value)

	return rev, nil
}

// IncrementBy atomically advances the cursor by count modulo modulo.
//
// The advance runs as a conditional update against the revision observed by
// the read, retried on contention, so two clients incrementing concurrently
// can never both start from the same value: the whole read-modify-write is
// one atomic operation from the callers' point of view.
//
// The stored value is reduced modulo modulo before the advance, which heals
// cursors that drifted out of range when the roster shrank.
func (s *NATSKV) IncrementBy(ctx context.Context, count, modulo int) (int, int, uint64, error) {
	if count <= 0 {
		return 0, 0, 0, types.ErrInvalidCount
	}
	if modulo <= 0 {
		return 0, 0, 0, types.ErrEmptyRoster
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	for attempt := 0; attempt < casMaxAttempts; attempt++ {
		raw, rev, err := s.read(ctx)
		if err != nil {
			return 0, 0, 0, err
		}

		old := raw % modulo
		if old < 0 {
			old += modulo
		}
		newValue := (old + count) % modulo

		newRev, err := s.cursorKV.Update(ctx, cursorKey, []byte(strconv.Itoa(newValue)), rev)
		if err == nil {
			s.metrics.SetCursorPosition(newValue)

			return old, newValue, newRev, nil
		}

		if !isWrongLastRevision(err) {
			s.metrics.IncrementStoreFailure("increment")

			return 0, 0, 0, fmt.Errorf("%w: failed to advance cursor: %w", types.ErrConnectivity, err)
		}

		// Lost the race to another client; re-read and retry.
		if ctx.Err() != nil {
			return 0, 0, 0, fmt.Errorf("%w: context ended during cursor advance: %w", types.ErrConnectivity, ctx.Err())
		}
	}

	s.metrics.IncrementStoreFailure("increment")

	return 0, 0, 0, fmt.Errorf("%w: cursor advance contended beyond %d attempts", types.ErrConnectivity, casMaxAttempts)
}

// CompareAndSet sets the cursor to value only if its revision still equals
// expectedRevision, failing with types.ErrCursorMoved when another client
// has advanced the cursor in the meantime.
func (s *NATSKV) CompareAndSet(ctx context.Context, value int, expectedRevision uint64) (uint64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rev, err := s.cursorKV.Update(ctx, cursorKey, []byte(strconv.Itoa(value)), expectedRevision)
	if err != nil {
		if isWrongLastRevision(err) {
			return 0, types.ErrCursorMoved
		}
		s.metrics.IncrementStoreFailure("cas")

		return 0, fmt.Errorf("%w: failed to restore cursor: %w", types.ErrConnectivity, err)
	}

	s.metrics.SetCursorPosition(value)

	return rev, nil
}

// WatchUpdates delivers cursor moves and roster replacements performed by
// any client until ctx is canceled.
//
// Events arrive in store order per key. A roster replacement is reported as
// a single event with RosterReplaced set; the accompanying cursor reset to 0
// also arrives as a regular cursor event.
func (s *NATSKV) WatchUpdates(ctx context.Context) (<-chan types.CursorUpdate, error) {
	cursorWatcher, err := s.cursorKV.Watch(ctx, cursorKey, jetstream.UpdatesOnly())
	if err != nil {
		s.metrics.IncrementStoreFailure("watch")

		return nil, fmt.Errorf("%w: failed to watch cursor: %w", types.ErrConnectivity, err)
	}

	rosterWatcher, err := s.rosterKV.Watch(ctx, revisionKey, jetstream.UpdatesOnly())
	if err != nil {
		_ = cursorWatcher.Stop()
		s.metrics.IncrementStoreFailure("watch")

		return nil, fmt.Errorf("%w: failed to watch roster revision: %w", types.ErrConnectivity, err)
	}

	updates := make(chan types.CursorUpdate, 16)

	go func() {
		defer close(updates)
		defer func() {
			_ = cursorWatcher.Stop()
			_ = rosterWatcher.Stop()
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case entry, ok := <-cursorWatcher.Updates():
				if !ok {
					return
				}
				if entry == nil || entry.Operation() != jetstream.KeyValuePut {
					continue
				}

				value, err := strconv.Atoi(string(entry.Value()))
				if err != nil {
					s.logger.Warn("ignoring corrupt cursor update", "value", string(entry.Value()))

					continue
				}

				s.metrics.SetCursorPosition(value)
				s.send(ctx, updates, types.CursorUpdate{Cursor: value, Revision: entry.Revision()})

			case entry, ok := <-rosterWatcher.Updates():
				if !ok {
					return
				}
				if entry == nil || entry.Operation() != jetstream.KeyValuePut {
					continue
				}

				fp, err := strconv.ParseUint(string(entry.Value()), 10, 64)
				if err != nil {
					s.logger.Warn("ignoring corrupt roster revision", "value", string(entry.Value()))

					continue
				}

				s.send(ctx, updates, types.CursorUpdate{
					RosterReplaced:    true,
					RosterFingerprint: fp,
				})
			}
		}
	}()

	return updates, nil
}

// send delivers an update unless the watch context has ended.
func (s *NATSKV) send(ctx context.Context, updates chan<- types.CursorUpdate, u types.CursorUpdate) {
	select {
	case updates <- u:
	case <-ctx.Done():
	}
}

// isWrongLastRevision reports whether err is the JetStream rejection of a
// conditional update whose expected revision no longer matches.
func isWrongLastRevision(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}

	return false
}
