package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/BioHazard786/huddle/internal/config"
	"github.com/BioHazard786/huddle/internal/metrics"
	"github.com/BioHazard786/huddle/internal/relay"
)

// Server is the relay process: one hub behind an HTTP server.
type Server struct {
	cfg     *config.ServerConfig
	hub     *relay.Hub
	metrics *metrics.PrometheusCollector
	http    *http.Server
	log     *slog.Logger
}

// New builds the hub, metrics and router from cfg.
func New(cfg *config.ServerConfig, log *slog.Logger) *Server {
	collector := metrics.NewPrometheusCollector()

	opts := cfg.RelayOptions()
	opts.Metrics = collector
	opts.Logger = log
	hub := relay.NewHub(opts)

	router := NewRouter(hub, Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        collector,
		Logger:         log,
	})

	return &Server{
		cfg:     cfg,
		hub:     hub,
		metrics: collector,
		log:     log,
		http: &http.Server{
			Addr:         cfg.HTTP.Address,
			Handler:      router,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
	}
}

// Hub exposes the relay hub.
func (s *Server) Hub() *relay.Hub { return s.hub }

// Serve runs the hub and serves HTTP on ln until ctx is cancelled, then
// shuts down within the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.hub.Run()
	defer s.hub.Close()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting signaling relay", "addr", ln.Addr().String())
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down signaling relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown; closing
	// the hub closes them.
	s.hub.Close()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.HTTP.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
