// ABOUTME: HTTP surface for jarvis-gateway: history, chat, health, static UI
// ABOUTME: Owns the http.Server lifecycle and route registration

package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jarvislabs/jarvis-gateway/internal/conversation"
)

// Config holds HTTP server configuration
type Config struct {
	Addr string
}

// Server translates HTTP requests into conversation service calls and
// serves the embedded chat frontend.
type Server struct {
	service *conversation.Service
	config  Config
	logger  *slog.Logger
}

// New creates a new web Server
func New(service *conversation.Service, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		service: service,
		config:  cfg,
		logger:  logger.With("component", "web"),
	}
}

// RegisterRoutes registers all routes on the given mux
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /history", s.withSession(s.handleHistory))
	mux.HandleFunc("POST /chat", s.withSession(s.handleChat))
	mux.HandleFunc("GET /health", s.handleHealth)

	// Everything else is the embedded single-page frontend
	mux.Handle("GET /", http.FileServerFS(staticFS()))
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.config.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
