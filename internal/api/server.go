package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/AllanBico/atlas/internal/ports"
)

// Server represents the HTTP API server
type Server struct {
	httpServer *http.Server
	logger     ports.Logger
}

// NewServer creates a new API server listening on addr (e.g. ":8080").
func NewServer(addr string, router http.Handler, logger ports.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "Starting API server", map[string]interface{}{"addr": s.httpServer.Addr})

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
