// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/logging"
	"github.com/NVIDIA/kstat-exporter/pkg/snapshotter"
)

const (
	name           = "kstatd"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Source produces snapshots and keeps the request counters reported in
// them.
type Source interface {
	snapshotter.Collector
	RecordRequest()
	RecordDenied()
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer appends the families of g to text scrapes.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithListener serves on ln instead of binding the configured address.
func WithListener(ln net.Listener) Option {
	return func(s *Server) {
		s.listener = ln
	}
}

// Server serves snapshots from a Source behind the access gate.
type Server struct {
	config      *Config
	app         *config.Config
	source      Source
	gatherer    prometheus.Gatherer
	listener    net.Listener
	httpServer  *http.Server
	rateLimiter *rate.Limiter
	mu          sync.RWMutex
	ready       bool
}

// New creates a server for a validated application config. Exporter
// self-metrics come from the default gatherer when exporter_metrics is on.
func New(app *config.Config, source Source, opts ...Option) *Server {
	s := &Server{
		config: NewConfig(app),
		app:    app,
		source: source,
	}
	if app.ExporterMetrics {
		s.gatherer = prometheus.DefaultGatherer
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.RateLimit > 0 {
		s.rateLimiter = rate.NewLimiter(s.config.RateLimit, s.config.RateLimitBurst)
	}

	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.setupRoutes(),
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		ErrorLog:          logging.NewLogLogger(slog.LevelWarn),
	}
	if s.config.TLSEnabled() {
		s.httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return s
}

// Handler returns the fully wrapped request handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// SetReady sets the readiness reported by /ready.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// listen prefers a socket passed by systemd over binding the address.
func (s *Server) listen() (net.Listener, error) {
	if s.listener != nil {
		return s.listener, nil
	}
	listeners, err := activation.Listeners()
	if err != nil {
		return nil, fmt.Errorf("failed to read systemd sockets: %w", err)
	}
	for _, ln := range listeners {
		if ln != nil {
			slog.Info("using systemd socket", "address", ln.Addr().String())
			return ln, nil
		}
	}
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	return ln, nil
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		return err
	}

	slog.Info("starting server",
		"address", ln.Addr().String(),
		"tls", s.config.TLSEnabled(),
		"auth", s.app.AuthEnabled())

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		var serveErr error
		if s.config.TLSEnabled() {
			serveErr = s.httpServer.ServeTLS(ln, s.config.TLSCert, s.config.TLSKey)
		} else {
			serveErr = s.httpServer.Serve(ln)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	s.SetReady(true)
	notify(daemon.SdNotifyReady)

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.SetReady(false)
		return err
	}
}

// Shutdown stops accepting scrapes and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.SetReady(false)
	notify(daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	slog.Info("shutting down server")
	return s.httpServer.Shutdown(shutdownCtx)
}

func notify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		slog.Debug("sd_notify failed", "state", state, "error", err)
	}
}

// Run serves until SIGINT or SIGTERM.
func Run(ctx context.Context, app *config.Config, source Source, opts ...Option) error {
	slog.Info("starting kstatd",
		slog.String("version", version),
		slog.String("commit", commit),
		slog.String("date", date))

	if app.TLSPartial() {
		slog.Warn("only one of tls_cert and tls_key is set, serving PLAINTEXT",
			slog.String("tls_cert", app.TLSCert),
			slog.String("tls_key", app.TLSKey))
	}

	server := New(app, source, opts...)

	slog.Info("server config",
		slog.String("address", server.config.Address),
		slog.Any("rateLimit", server.config.RateLimit),
		slog.Int("rateLimitBurst", server.config.RateLimitBurst),
		slog.Duration("readTimeout", server.config.ReadTimeout),
		slog.Duration("writeTimeout", server.config.WriteTimeout),
		slog.Duration("idleTimeout", server.config.IdleTimeout),
		slog.Duration("shutdownTimeout", server.config.ShutdownTimeout),
		slog.Duration("scrapeTimeout", app.ScrapeTimeout),
	)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Use errgroup for concurrent operations
	g, gctx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		return server.Start(gctx)
	})

	// Wait for completion or error
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// SetBuildInfo records the ldflags-injected build metadata.
func SetBuildInfo(v, c, d string) {
	if v != "" {
		version = v
	}
	if c != "" {
		commit = c
	}
	if d != "" {
		date = d
	}
}
