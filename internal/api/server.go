package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/affiliate-ledger/internal/auth"
	"github.com/ignite/affiliate-ledger/internal/config"
	"github.com/ignite/affiliate-ledger/internal/domain"
)

var errNoRoute = fmt.Errorf("route: %w", domain.ErrNotFound)

// Server represents the API server
type Server struct {
	config      config.ServerConfig
	handler     http.Handler
	handlers    *Handlers
	server      *http.Server
	authManager *auth.AuthManager
	router      *chi.Mux
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, handlers *Handlers, authManager *auth.AuthManager) *Server {
	router := SetupRoutes(handlers, authManager, cfg.AllowedOrigins)
	return &Server{
		config:      cfg,
		handler:     router,
		handlers:    handlers,
		authManager: authManager,
		router:      router,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
