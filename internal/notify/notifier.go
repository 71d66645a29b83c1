// Package notify publishes history change events to NATS JetStream so other
// processes (menu bar UI, sync agents) can react to clipboard mutations
// without polling the store.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/nissy/kipple-sub002/internal/config"
	"github.com/nissy/kipple-sub002/internal/history"
	"github.com/nissy/kipple-sub002/internal/logfields"
	"github.com/nissy/kipple-sub002/internal/metrics"
	"github.com/nissy/kipple-sub002/internal/retry"
)

const (
	streamName     = "KIPPLE_HISTORY"
	queueSize      = 256
	initTimeout    = 10 * time.Second
	publishTimeout = 10 * time.Second
)

// publisher is the JetStream subset the pump needs; jetstream.JetStream
// satisfies it and tests inject fakes.
type publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Options tunes a Notifier beyond its config block.
type Options struct {
	Logger   *slog.Logger
	Recorder metrics.Recorder
	Retry    retry.Policy
}

// Notifier bridges store events onto a JetStream subject. HandleEvent is
// cheap and never blocks: events queue onto a channel and a pump goroutine
// does the publishing, so a slow or absent broker cannot stall store writes.
// When the queue is full the newest event is dropped and counted.
type Notifier struct {
	conn    *nats.Conn
	pub     publisher
	subject string
	logger  *slog.Logger
	rec     metrics.Recorder
	retry   retry.Policy

	events chan history.Event
	stop   chan struct{}
	once   sync.Once
}

// NewNotifier connects to the broker and ensures the change stream exists.
func NewNotifier(cfg config.NotifyConfig, opts Options) (*Notifier, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("change notification is disabled")
	}

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.URL, err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := opts.Recorder
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	policy := opts.Retry
	if policy.Validate() != nil {
		policy = retry.NewPolicy(retry.BackoffFixed, time.Second, time.Second, 2)
	}

	n := &Notifier{
		conn:    conn,
		pub:     js,
		subject: cfg.Subject,
		logger:  logger.With(logfields.Subject(cfg.Subject)),
		rec:     rec,
		retry:   policy,
		events:  make(chan history.Event, queueSize),
		stop:    make(chan struct{}),
	}
	if err := n.initStream(js); err != nil {
		conn.Close()
		return nil, err
	}
	n.logger.Info("change notifier connected", slog.String("url", cfg.URL))
	return n, nil
}

// initStream creates the change stream or updates its subject binding when
// the configured subject moved.
func (n *Notifier) initStream(js jetstream.JetStream) error {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        streamName,
		Description: "Kipple clipboard history change feed",
		Subjects:    []string{n.subject},
		Storage:     jetstream.FileStorage,
		MaxAge:      24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("ensuring change stream: %w", err)
	}
	return nil
}

// HandleEvent queues one store event for publishing. Wire it up with
// store.Subscribe; it runs on the store's commit path and must stay cheap.
func (n *Notifier) HandleEvent(ev history.Event) {
	select {
	case n.events <- ev:
	default:
		n.rec.IncNotifyResult(metrics.OutcomeFailure)
		n.logger.Warn("notify queue full, dropping change event")
	}
}

// Run drains the event queue until the context is cancelled or Close is
// called. Start it once, from the daemon.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stop:
			return
		case ev := <-n.events:
			n.publish(ctx, ev)
		}
	}
}

func (n *Notifier) publish(ctx context.Context, ev history.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		n.rec.IncNotifyResult(metrics.OutcomeFailure)
		n.logger.Error("encoding change event failed", logfields.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	transient := func(error) bool { return true }
	err = retry.Do(pubCtx, n.retry, transient, func(ctx context.Context) error {
		_, err := n.pub.Publish(ctx, n.subject, data)
		return err
	})
	if err != nil {
		n.rec.IncNotifyResult(metrics.OutcomeFailure)
		n.logger.Error("publishing change event failed", logfields.Error(err))
		return
	}
	n.rec.IncNotifyResult(metrics.OutcomeSuccess)
	n.logger.Debug("published change event",
		logfields.Count(len(ev.InsertedIDs)+len(ev.UpdatedIDs)+len(ev.RemovedIDs)))
}

// Close stops the pump and closes the connection. Queued events that have
// not been published yet are discarded.
func (n *Notifier) Close() error {
	n.once.Do(func() { close(n.stop) })
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
