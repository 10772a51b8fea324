// Package api exposes the conversation orchestrator to the chat/voice UI
// layer over a small JSON API.
//
// Endpoints:
//
//	POST /api/v1/sessions                 create a session id
//	POST /api/v1/sessions/{id}/turns      process one user turn
//	GET  /api/v1/sessions/{id}            inspect persisted session state
//	GET  /api/v1/stats                    orchestrator counters
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/PathPilotApp/PathPilot/internal/flow"
)

// DefaultAddr is the default listen address.
const DefaultAddr = ":8080"

// Opts holds configurable options for the server.
type Opts struct {
	Addr string
}

// Option configures the server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server serves the PathPilot HTTP API.
type Server struct {
	orchestrator *flow.Orchestrator
	addr         string
}

// NewServer creates an API server over the given orchestrator.
func NewServer(orchestrator *flow.Orchestrator, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Server.NewServer: creating API server", "addr", cfg.Addr)
	return &Server{orchestrator: orchestrator, addr: cfg.Addr}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sessions", s.createSessionHandler)
	mux.HandleFunc("POST /api/v1/sessions/{id}/turns", s.turnHandler)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("GET /api/v1/stats", s.statsHandler)
	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: PathPilot API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
