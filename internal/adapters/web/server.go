package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"linepulse/internal/adapters/web/handlers"
	"linepulse/internal/application/usecases"
)

// Server represents the HTTP server
type Server struct {
	port            int
	pipelineUseCase *usecases.PipelineUseCase
	movementUseCase *usecases.MovementQueryUseCase
	logger          *slog.Logger
	server          *http.Server
}

// NewServer creates a new HTTP server
func NewServer(port int, pipelineUseCase *usecases.PipelineUseCase, movementUseCase *usecases.MovementQueryUseCase, logger *slog.Logger) *Server {
	return &Server{
		port:            port,
		pipelineUseCase: pipelineUseCase,
		movementUseCase: movementUseCase,
		logger:          logger,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(s.logger)
	statusHandler := handlers.NewStatusHandler(s.pipelineUseCase, s.logger)
	movementsHandler := handlers.NewMovementsHandler(s.movementUseCase, s.logger)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("Health request", "method", r.Method, "path", r.URL.Path)
		healthHandler.Handle(w, r)
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("Status request", "method", r.Method, "path", r.URL.Path)
		statusHandler.Handle(w, r)
	})

	mux.HandleFunc("/movements/", func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("Movements request", "method", r.Method, "path", r.URL.Path)
		movementsHandler.Handle(w, r)
	})

	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	s.logger.Info("Starting HTTP server", "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
