// Package history implements the clipboard history store: a single-writer
// coordinator over one backend adapter. Every mutation is a reconciled change
// set that commits to the backend before it becomes visible, and readers are
// served from an immutable in-memory snapshot that backend I/O never blocks.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nissy/kipple-sub002/internal/backend"
	"github.com/nissy/kipple-sub002/internal/clip"
	"github.com/nissy/kipple-sub002/internal/logfields"
	"github.com/nissy/kipple-sub002/internal/metrics"
	"github.com/nissy/kipple-sub002/internal/retry"
)

// PinOutcome is the declared result of a pin state change. Hitting the
// pinned ceiling is an outcome, not an error: the store is healthy and the
// caller chooses how to present the refusal.
type PinOutcome string

const (
	PinUpdated      PinOutcome = "updated"
	PinLimitReached PinOutcome = "limit_reached"
	PinNotFound     PinOutcome = "not_found"
)

// ErrNotOpen is returned by mutations invoked before Open loaded the backend.
var ErrNotOpen = errors.New("history store is not open")

// Options configures a Store. Zero fields fall back to safe defaults: no
// watermarks, the default slog logger, noop metrics, the default retry policy.
type Options struct {
	Watermarks Watermarks
	Logger     *slog.Logger
	Recorder   metrics.Recorder
	Retry      retry.Policy
	Clock      func() time.Time
}

// Store coordinates every mutation of the clipboard history over a single
// backend adapter. Writes funnel through one mutex and commit to the backend
// before the snapshot swap, so readers observe either the previous or the
// next state, never a partial one.
type Store struct {
	adapter backend.Adapter
	marks   Watermarks
	logger  *slog.Logger
	rec     metrics.Recorder
	retry   retry.Policy
	clock   func() time.Time

	writeMu sync.Mutex // serializes mutations end to end
	opened  bool       // guarded by writeMu
	closed  bool       // guarded by writeMu
	nextSeq uint64     // guarded by writeMu

	stateMu sync.RWMutex // guards snap
	snap    *snapshot

	obsMu     sync.Mutex
	observers []func(Event)
}

// New wires a store over the given adapter. The store owns the adapter from
// here on; Close releases it. Call Open before anything else.
func New(adapter backend.Adapter, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := opts.Recorder
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	pol := opts.Retry
	if pol.Validate() != nil {
		pol = retry.DefaultPolicy()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		adapter: adapter,
		marks:   opts.Watermarks,
		logger:  logger.With(logfields.Backend(adapter.Name())),
		rec:     rec,
		retry:   pol,
		clock:   clock,
		snap:    newSnapshot(nil),
	}
}

// Open loads the backend, seeds the sequence counter past everything loaded,
// and runs the age purge over the result. A purge that fails to commit is
// logged and picked up by the next purge run; the expired entries stay
// visible until then.
func (s *Store) Open(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return ErrNotOpen
	}
	if s.opened {
		return nil
	}
	loaded, err := s.adapter.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	next := newSnapshot(loaded)
	s.nextSeq = 1
	for _, e := range next.entries {
		if e.Seq >= s.nextSeq {
			s.nextSeq = e.Seq + 1
		}
	}
	s.swap(next)
	s.opened = true
	s.rec.SetEntryCounts(next.pinnedCount(), next.unpinnedCount())
	s.logger.Info("history loaded",
		logfields.Count(next.len()), slog.Int("pinned", next.pinnedCount()))
	if n, err := s.purgeExpiredLocked(ctx); err != nil {
		s.logger.Warn("age purge failed, expired entries kept", logfields.Error(err))
	} else if n > 0 {
		s.logger.Info("purged expired entries", logfields.Count(n))
	}
	return nil
}

// Close releases the backend. Further mutations fail with ErrNotOpen.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.opened = false
	if err := s.adapter.Close(); err != nil {
		return fmt.Errorf("closing backend: %w", err)
	}
	return nil
}

// ApplyChanges is the single mutation primitive: one reconciled, capacity
// checked change set per call, applied atomically to the backend and then to
// the snapshot. An empty or fully elided change set succeeds without touching
// the backend. On failure the prior state stays intact.
func (s *Store) ApplyChanges(ctx context.Context, cs backend.ChangeSet) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if !s.opened {
		return ErrNotOpen
	}
	cur := s.currentSnapshot()
	cs.Inserted = s.normalizeInserts(cs.Inserted)
	diff, st := reconcile(cur, cs)
	st.log(s.logger)
	if diff.Empty() {
		return nil
	}
	s.foldOverflow(cur, &diff)
	if _, err := s.commit(ctx, diff, cur); err != nil {
		return fmt.Errorf("applying changes: %w", err)
	}
	return nil
}

// SetPinned flips the pin state of one entry. The pinned ceiling is checked
// here and nowhere else; loads and inserts never refuse pinned entries.
func (s *Store) SetPinned(ctx context.Context, id string, pinned bool) (PinOutcome, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if !s.opened {
		return "", ErrNotOpen
	}
	cur := s.currentSnapshot()
	e, ok := cur.get(id)
	if !ok {
		return PinNotFound, nil
	}
	if e.Pinned == pinned {
		return PinUpdated, nil
	}
	if pinned && s.marks.MaxPinnedItems > 0 && cur.pinnedCount() >= s.marks.MaxPinnedItems {
		s.rec.IncPinRefused()
		s.logger.Info("pin refused at pinned ceiling",
			logfields.EntryID(id), slog.Int("max_pinned", s.marks.MaxPinnedItems))
		return PinLimitReached, nil
	}
	e.Pinned = pinned
	diff := backend.ChangeSet{Updated: []clip.Entry{e}}
	if _, err := s.commit(ctx, diff, cur); err != nil {
		return "", fmt.Errorf("persisting pin state: %w", err)
	}
	return PinUpdated, nil
}

// Delete removes one entry by id. Deleting an id that is not present is a
// success; the caller's intent already holds.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.ApplyChanges(ctx, backend.ChangeSet{RemovedIDs: []string{id}})
}

// Clear removes every entry, or every unpinned entry when keepPinned is set.
// The removal is explicit id by id, so the backend and observers see exactly
// what left.
func (s *Store) Clear(ctx context.Context, keepPinned bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if !s.opened {
		return ErrNotOpen
	}
	cur := s.currentSnapshot()
	var removed []string
	for _, e := range cur.entries {
		if keepPinned && e.Pinned {
			continue
		}
		removed = append(removed, e.ID)
	}
	if len(removed) == 0 {
		return nil
	}
	diff := backend.ChangeSet{RemovedIDs: removed}
	if _, err := s.commit(ctx, diff, cur); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	s.logger.Info("history cleared",
		logfields.Count(len(removed)), slog.Bool("keep_pinned", keepPinned))
	return nil
}

// PurgeExpired removes unpinned entries older than the retention window. It
// is safe to call on a schedule; without a window it does nothing.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if !s.opened {
		return 0, ErrNotOpen
	}
	return s.purgeExpiredLocked(ctx)
}

func (s *Store) purgeExpiredLocked(ctx context.Context) (int, error) {
	if s.marks.Retention <= 0 {
		return 0, nil
	}
	cur := s.currentSnapshot()
	cutoff := s.clock().Add(-s.marks.Retention)
	expired := expiredUnpinned(cur.entries, cutoff)
	if len(expired) == 0 {
		return 0, nil
	}
	diff := backend.ChangeSet{RemovedIDs: expired}
	if _, err := s.commit(ctx, diff, cur); err != nil {
		return 0, fmt.Errorf("purging expired entries: %w", err)
	}
	s.rec.IncEvicted(metrics.EvictionAge, len(expired))
	return len(expired), nil
}

// Load returns up to limit entries in display order; limit <= 0 means all.
// Reads serve from the current snapshot and never touch the backend.
func (s *Store) Load(limit int) []clip.Entry {
	return s.currentSnapshot().head(limit)
}

// LoadAll returns every entry in display order.
func (s *Store) LoadAll() []clip.Entry {
	return s.currentSnapshot().all()
}

// Get returns the entry with the given id from the current snapshot.
func (s *Store) Get(id string) (clip.Entry, bool) {
	return s.currentSnapshot().get(id)
}

// Count returns the total number of entries.
func (s *Store) Count() int { return s.currentSnapshot().len() }

// CountPinned returns the number of pinned entries.
func (s *Store) CountPinned() int { return s.currentSnapshot().pinnedCount() }

// Backend returns the name of the storage adapter behind the store.
func (s *Store) Backend() string { return s.adapter.Name() }

// Subscribe registers an observer for committed changes. Callbacks run
// synchronously on the mutating goroutine after the snapshot swap; keep them
// fast and never call back into the store from them.
func (s *Store) Subscribe(fn func(Event)) {
	if fn == nil {
		return
	}
	s.obsMu.Lock()
	s.observers = append(s.observers, fn)
	s.obsMu.Unlock()
}

// normalizeInserts stamps what producers cannot know: missing ids, missing
// timestamps, timestamp precision, and the order sequence. Batch position
// feeds the sequence, so same-timestamp inserts keep their relative order
// for life.
func (s *Store) normalizeInserts(inserted []clip.Entry) []clip.Entry {
	if len(inserted) == 0 {
		return nil
	}
	out := make([]clip.Entry, len(inserted))
	for i, e := range inserted {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = s.clock()
		}
		e.Timestamp = clip.Quantize(e.Timestamp)
		e.Seq = s.nextSeq
		s.nextSeq++
		out[i] = e
	}
	return out
}

// foldOverflow extends the diff with capacity evictions so one backend apply
// carries both. Only inserts can push the unpinned count over the ceiling,
// and eviction only ever targets unpinned entries, oldest first.
func (s *Store) foldOverflow(cur *snapshot, diff *backend.ChangeSet) {
	if s.marks.MaxHistoryItems <= 0 || len(diff.Inserted) == 0 {
		return
	}
	prospective := successor(cur, *diff)
	evicted := overflowUnpinned(prospective.entries, s.marks.MaxHistoryItems)
	if len(evicted) == 0 {
		return
	}
	s.logger.Info("evicting oldest unpinned entries over capacity",
		logfields.Count(len(evicted)), slog.Int("max_items", s.marks.MaxHistoryItems))
	diff.RemovedIDs = append(diff.RemovedIDs, evicted...)
	s.rec.IncEvicted(metrics.EvictionCapacity, len(evicted))
}

// commit writes the diff to the backend, retrying transient failures per the
// policy, and on success swaps in the successor snapshot built from base.
// Observer callbacks run after the swap. Callers hold writeMu.
func (s *Store) commit(ctx context.Context, diff backend.ChangeSet, base *snapshot) (*snapshot, error) {
	start := time.Now()
	attempt := 0
	err := retry.Do(ctx, s.retry, backend.IsIOFailure, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.rec.IncBackendRetry(s.adapter.Name())
			s.logger.Warn("retrying backend apply", logfields.Attempt(attempt))
		}
		return s.adapter.Apply(ctx, diff)
	})
	d := time.Since(start)
	if err != nil {
		s.rec.ObserveApplyDuration(s.adapter.Name(), d, false)
		s.logger.Error("backend apply failed, state unchanged", logfields.Error(err))
		return nil, err
	}
	s.rec.ObserveApplyDuration(s.adapter.Name(), d, true)
	next := successor(base, diff)
	s.swap(next)
	s.rec.SetEntryCounts(next.pinnedCount(), next.unpinnedCount())
	s.notify(Event{
		Backend:     s.adapter.Name(),
		InsertedIDs: entryIDs(diff.Inserted),
		UpdatedIDs:  entryIDs(diff.Updated),
		RemovedIDs:  diff.RemovedIDs,
		Pinned:      next.pinnedCount(),
		Unpinned:    next.unpinnedCount(),
	})
	return next, nil
}

func (s *Store) currentSnapshot() *snapshot {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.snap
}

func (s *Store) swap(next *snapshot) {
	s.stateMu.Lock()
	s.snap = next
	s.stateMu.Unlock()
}

func (s *Store) notify(ev Event) {
	s.obsMu.Lock()
	obs := make([]func(Event), len(s.observers))
	copy(obs, s.observers)
	s.obsMu.Unlock()
	for _, fn := range obs {
		fn(ev)
	}
}

func entryIDs(entries []clip.Entry) []string {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
