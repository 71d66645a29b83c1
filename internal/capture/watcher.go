// Package capture ingests clipboard drops from a spool directory. Producers
// (hotkey helpers, shell pipes, editor plugins) write one JSON file per clip;
// the watcher validates it against the embedded schema, suppresses duplicate
// content inside the dedup window, and hands the entry to the history store.
// Undecodable or invalid drops are quarantined under rejected/ so they can be
// inspected instead of wedging the pipeline.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nissy/kipple-sub002/internal/backend"
	"github.com/nissy/kipple-sub002/internal/clip"
	"github.com/nissy/kipple-sub002/internal/logfields"
	"github.com/nissy/kipple-sub002/internal/metrics"
)

const rejectedDirName = "rejected"

// Sink receives validated entries; the history store satisfies it.
type Sink interface {
	ApplyChanges(ctx context.Context, cs backend.ChangeSet) error
}

// Options configures a Watcher.
type Options struct {
	SpoolDir    string
	DedupWindow time.Duration
	Debounce    time.Duration // settle time after the last write event, default 500ms
	Logger      *slog.Logger
	Recorder    metrics.Recorder
}

// Watcher monitors the spool directory and ingests dropped clip files.
type Watcher struct {
	dir       string
	rejectDir string
	sink      Sink
	validator *Validator
	dedup     *Deduper
	debounce  time.Duration
	logger    *slog.Logger
	rec       metrics.Recorder

	watcher  *fsnotify.Watcher
	stopChan chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
}

// NewWatcher creates a spool watcher over the sink.
func NewWatcher(sink Sink, opts Options) (*Watcher, error) {
	if opts.SpoolDir == "" {
		return nil, fmt.Errorf("spool directory not set")
	}
	absDir, err := filepath.Abs(opts.SpoolDir)
	if err != nil {
		return nil, fmt.Errorf("resolving spool directory: %w", err)
	}
	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := opts.Recorder
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		dir:       absDir,
		rejectDir: filepath.Join(absDir, rejectedDirName),
		sink:      sink,
		validator: validator,
		dedup:     NewDeduper(opts.DedupWindow),
		debounce:  debounce,
		logger:    logger,
		rec:       rec,
		watcher:   fsw,
		stopChan:  make(chan struct{}),
		pending:   make(map[string]*time.Timer),
	}, nil
}

// Start creates the spool directory if needed, ingests files already waiting
// there, and begins watching for new drops.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating spool directory: %w", err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching spool directory: %w", err)
	}
	w.logger.Info("watching spool directory", logfields.Path(w.dir))

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scanning spool directory: %w", err)
	}
	for _, de := range entries {
		if de.IsDir() || !isDropFile(de.Name()) {
			continue
		}
		w.schedule(ctx, filepath.Join(w.dir, de.Name()))
	}

	go w.watchLoop(ctx)
	return nil
}

// Stop stops the watcher and cancels pending ingests.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	close(w.stopChan)
	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// only top-level drop files; quarantined files live a level down
			if filepath.Dir(event.Name) != w.dir || !isDropFile(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&fsnotify.Create == fsnotify.Create || event.Op&fsnotify.Write == fsnotify.Write {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("spool watcher error", logfields.Error(err))
		}
	}
}

// schedule (re)arms the debounce timer for one file so a producer still
// writing does not get read mid-stream.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		stopped := w.stopped
		w.mu.Unlock()
		if stopped {
			return
		}
		w.ingestFile(ctx, path)
	})
}

// ingestFile runs one drop through validation, dedup, and the sink. The file
// is removed on success and on duplicate, quarantined when invalid, and left
// in place when the store rejects it so the next start retries.
func (w *Watcher) ingestFile(ctx context.Context, path string) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return // already consumed
		}
		w.rec.IncCaptureResult(metrics.OutcomeFailure)
		w.logger.Error("reading drop failed", logfields.Path(path), logfields.Error(err))
		return
	}

	if err := w.validator.Validate(payload); err != nil {
		w.rec.IncCaptureResult(metrics.OutcomeInvalid)
		w.quarantine(path, err)
		return
	}
	d, err := decodeDrop(payload)
	if err != nil {
		w.rec.IncCaptureResult(metrics.OutcomeInvalid)
		w.quarantine(path, err)
		return
	}

	fingerprint := clip.Fingerprint(d.Content)
	if w.dedup.Seen(fingerprint) {
		w.rec.IncCaptureResult(metrics.OutcomeDuplicate)
		w.logger.Debug("duplicate content inside dedup window", logfields.Path(path))
		w.remove(path)
		return
	}

	entry := d.toEntry()
	cs := backend.ChangeSet{Inserted: []clip.Entry{entry}}
	if err := w.sink.ApplyChanges(ctx, cs); err != nil {
		w.rec.IncCaptureResult(metrics.OutcomeFailure)
		w.logger.Error("storing capture failed, drop kept for retry",
			logfields.Path(path), logfields.Error(err))
		return
	}

	w.dedup.Remember(fingerprint)
	w.rec.IncCaptureResult(metrics.OutcomeSuccess)
	w.logger.Info("captured clip",
		logfields.EntryID(entry.ID), logfields.Kind(string(entry.Kind)))
	w.remove(path)
}

// quarantine moves an invalid drop under rejected/ for inspection.
func (w *Watcher) quarantine(path string, cause error) {
	w.logger.Warn("rejecting invalid drop", logfields.Path(path), logfields.Error(cause))
	if err := os.MkdirAll(w.rejectDir, 0o755); err != nil {
		w.logger.Error("creating rejected directory failed", logfields.Error(err))
		return
	}
	dest := filepath.Join(w.rejectDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		w.logger.Error("quarantining drop failed", logfields.Path(path), logfields.Error(err))
	}
}

func (w *Watcher) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.Warn("removing consumed drop failed", logfields.Path(path), logfields.Error(err))
	}
}

func isDropFile(name string) bool {
	return !strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".json")
}
