// Package statusserver exposes the poller's progress over HTTP: a liveness
// probe, a JSON snapshot of the current run, and Prometheus metrics.
package statusserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshot is the state reported by GET /status.
type Snapshot struct {
	ResourceID    string     `json:"resource_id"`
	Action        string     `json:"action"`
	IntervalMS    int64      `json:"interval_ms"`
	Successes     int64      `json:"successes"`
	AccessExpiry  *time.Time `json:"access_expiry,omitempty"`
	RefreshExpiry *time.Time `json:"refresh_expiry,omitempty"`
}

// SnapshotFunc returns the current state. It is called once per request and
// must be safe for concurrent use.
type SnapshotFunc func() Snapshot

// Server serves the status endpoints.
type Server struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// Option configures a Server.
type Option func(*options)

type options struct {
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// WithGatherer sets the registry served on /metrics. Defaults to the
// process-wide Prometheus registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *options) { o.gatherer = g }
}

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a status server reading state from snapshot.
func New(snapshot SnapshotFunc, opts ...Option) (*Server, error) {
	if snapshot == nil {
		return nil, errors.New("snapshot func cannot be nil")
	}

	o := options{gatherer: prometheus.DefaultGatherer, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, map[string]string{"status": "ok"}, http.StatusOK)
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, snapshot(), http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(r.Context(), w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	root := http.NewServeMux()
	root.Handle("/", applyMiddlewares(mux,
		Logging(o.logger),
		Recovery,
	))

	return &Server{mux: root}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors are sent to the returned channel, which is closed once the
// server stops.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return s.serve(ctx, listener), nil
}

func (s *Server) serve(ctx context.Context, listener net.Listener) <-chan error {
	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh
}

// Shutdown stops the server gracefully, closing it forcibly if ctx expires first.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
