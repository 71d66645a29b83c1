package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/nissy/kipple-sub002/internal/logfields"
	"github.com/nissy/kipple-sub002/internal/metrics"
)

// metricsServer serves /metrics and /healthz on the configured listen
// address. The port is bound in Start so address conflicts fail the daemon
// start instead of surfacing later from a background goroutine.
type metricsServer struct {
	addr     string
	registry *prom.Registry
	logger   *slog.Logger

	ln     net.Listener
	server *http.Server
}

func newMetricsServer(addr string, registry *prom.Registry, logger *slog.Logger) *metricsServer {
	return &metricsServer{addr: addr, registry: registry, logger: logger}
}

// Start binds the port and begins serving.
func (m *metricsServer) Start() error {
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", m.addr, err)
	}
	m.ln = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(m.registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	m.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics listener error", logfields.Error(err))
		}
	}()

	m.logger.Info("metrics listener started", slog.String("addr", ln.Addr().String()))
	return nil
}

// Stop shuts the listener down gracefully.
func (m *metricsServer) Stop(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

// Addr returns the bound address, useful when the configured port is 0.
func (m *metricsServer) Addr() string {
	if m.ln == nil {
		return m.addr
	}
	return m.ln.Addr().String()
}
