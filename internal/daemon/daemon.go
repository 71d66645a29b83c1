// Package daemon composes the long-running kipple process: the history store
// over its configured backend, the capture spool watcher, the change
// notifier, the scheduled retention purge and the optional metrics listener.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/nissy/kipple-sub002/internal/backend"
	"github.com/nissy/kipple-sub002/internal/capture"
	"github.com/nissy/kipple-sub002/internal/config"
	"github.com/nissy/kipple-sub002/internal/history"
	"github.com/nissy/kipple-sub002/internal/logfields"
	"github.com/nissy/kipple-sub002/internal/metrics"
	"github.com/nissy/kipple-sub002/internal/notify"
)

// Status is the daemon lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

const purgeTimeout = time.Minute

// Daemon owns every component of the running service. Construction wires the
// graph; Start opens backends and blocks until the context is cancelled or
// Stop is called.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	rec    metrics.Recorder

	registry  *prom.Registry
	store     *history.Store
	watcher   *capture.Watcher
	notifier  *notify.Notifier
	scheduler gocron.Scheduler

	metricsServer *metricsServer

	status    atomic.Value
	startTime time.Time
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// New builds the component graph from configuration. Nothing touches the
// network or the filesystem yet; that happens in Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		rec:      metrics.NoopRecorder{},
		stopChan: make(chan struct{}),
	}
	d.status.Store(StatusStopped)

	if cfg.Metrics.Enabled {
		d.registry = prom.NewRegistry()
		d.rec = metrics.NewPrometheusRecorder(d.registry)
		d.metricsServer = newMetricsServer(cfg.Metrics.Listen, d.registry, logger)
	}

	adapter, err := backend.FromDSN(cfg.Backend.DSN)
	if err != nil {
		return nil, fmt.Errorf("creating storage backend: %w", err)
	}
	d.store = history.New(adapter, history.Options{
		Watermarks: history.Watermarks{
			MaxHistoryItems: cfg.History.EffectiveMaxItems(),
			MaxPinnedItems:  cfg.History.EffectiveMaxPinned(),
			Retention:       cfg.History.Retention(),
		},
		Logger:   logger,
		Recorder: d.rec,
		Retry:    cfg.Backend.Retry.Policy(),
	})

	if cfg.Capture.SpoolDir != "" {
		d.watcher, err = capture.NewWatcher(d.store, capture.Options{
			SpoolDir:    cfg.Capture.SpoolDir,
			DedupWindow: cfg.Capture.DedupWindow(),
			Logger:      logger,
			Recorder:    d.rec,
		})
		if err != nil {
			return nil, fmt.Errorf("creating capture watcher: %w", err)
		}
	}

	d.scheduler, err = gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	return d, nil
}

// Start brings every component up and blocks until the context is cancelled
// or Stop is called. Components that fail to start abort the whole daemon;
// the caller is expected to exit.
func (d *Daemon) Start(ctx context.Context) error {
	if d.GetStatus() != StatusStopped {
		return fmt.Errorf("daemon is not stopped: %s", d.GetStatus())
	}
	d.status.Store(StatusStarting)
	d.startTime = time.Now()
	d.logger.Info("starting kipple daemon")

	if err := d.store.Open(ctx); err != nil {
		d.status.Store(StatusStopped)
		return fmt.Errorf("opening history store: %w", err)
	}

	if d.cfg.Notify.Enabled {
		notifier, err := notify.NewNotifier(d.cfg.Notify, notify.Options{
			Logger:   d.logger,
			Recorder: d.rec,
		})
		if err != nil {
			d.status.Store(StatusStopped)
			return fmt.Errorf("starting change notifier: %w", err)
		}
		d.notifier = notifier
		d.store.Subscribe(notifier.HandleEvent)
		go notifier.Run(ctx)
	}

	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			d.status.Store(StatusStopped)
			return fmt.Errorf("starting capture watcher: %w", err)
		}
	} else {
		d.logger.Info("capture disabled, no spool directory configured")
	}

	if err := d.schedulePurge(); err != nil {
		d.status.Store(StatusStopped)
		return err
	}
	d.scheduler.Start()

	if d.metricsServer != nil {
		if err := d.metricsServer.Start(); err != nil {
			d.status.Store(StatusStopped)
			return fmt.Errorf("starting metrics listener: %w", err)
		}
	}

	d.status.Store(StatusRunning)
	d.logger.Info("kipple daemon started",
		slog.Int("entries", d.store.Count()),
		slog.Int("pinned", d.store.CountPinned()))

	select {
	case <-ctx.Done():
		d.logger.Info("daemon context cancelled")
	case <-d.stopChan:
		d.logger.Info("daemon stop requested")
	}
	return nil
}

// Stop shuts components down in reverse start order. Safe to call more than
// once and from a different goroutine than Start.
func (d *Daemon) Stop(ctx context.Context) error {
	current := d.GetStatus()
	if current == StatusStopped || current == StatusStopping {
		return nil
	}
	d.status.Store(StatusStopping)
	d.stopOnce.Do(func() { close(d.stopChan) })

	if d.metricsServer != nil {
		if err := d.metricsServer.Stop(ctx); err != nil {
			d.logger.Error("stopping metrics listener failed", logfields.Error(err))
		}
	}
	if err := d.scheduler.Shutdown(); err != nil {
		d.logger.Error("stopping scheduler failed", logfields.Error(err))
	}
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			d.logger.Error("stopping capture watcher failed", logfields.Error(err))
		}
	}
	if d.notifier != nil {
		if err := d.notifier.Close(); err != nil {
			d.logger.Error("closing change notifier failed", logfields.Error(err))
		}
	}
	if err := d.store.Close(); err != nil {
		d.logger.Error("closing history store failed", logfields.Error(err))
	}

	d.status.Store(StatusStopped)
	d.logger.Info("kipple daemon stopped", slog.Duration("uptime", time.Since(d.startTime)))
	return nil
}

// schedulePurge registers the periodic retention sweep when both a retention
// and an interval are configured.
func (d *Daemon) schedulePurge() error {
	interval := d.cfg.Purge.Interval()
	if interval <= 0 || d.cfg.History.Retention() <= 0 {
		d.logger.Info("retention purge disabled")
		return nil
	}
	_, err := d.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(d.runPurge),
		gocron.WithName("history-purge"),
	)
	if err != nil {
		return fmt.Errorf("scheduling retention purge: %w", err)
	}
	d.logger.Info("retention purge scheduled", slog.Duration("interval", interval))
	return nil
}

// runPurge is invoked by the scheduler.
func (d *Daemon) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	n, err := d.store.PurgeExpired(ctx)
	if err != nil {
		d.logger.Error("retention purge failed", logfields.Error(err))
		return
	}
	if n > 0 {
		d.logger.Info("retention purge removed entries", logfields.Count(n))
	}
}

// GetStatus returns the daemon lifecycle state.
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusStopped
	}
	return status
}

// History exposes the store, for status queries and tests.
func (d *Daemon) History() *history.Store { return d.store }

// StartTime returns when Start was called.
func (d *Daemon) StartTime() time.Time { return d.startTime }
