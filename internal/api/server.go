package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server with the full route table.
func NewServer(cfg domain.ServerConfig, handler *Handler, metricsHandler http.Handler) *Server {
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler)
	}

	router.Route("/api", func(r chi.Router) {
		// Transaction screening and retrieval
		r.Post("/transactions", handler.Screen)
		r.Get("/transactions", handler.ListTransactions)
		r.Post("/transactions/analyze", handler.Analyze)
		r.Get("/transactions/{id}", handler.GetTransaction)
		r.Put("/transactions/{id}", handler.UpdateTransaction)
		r.Delete("/transactions/{id}", handler.DeleteTransaction)

		// Alert management
		r.Get("/alerts", handler.ListAlerts)
		r.Get("/alerts/archive", handler.ListArchivedAlerts)
		r.Get("/alerts/archive/{id}", handler.GetArchivedAlert)
		r.Get("/alerts/{id}", handler.GetAlert)
		r.Put("/alerts/{id}/status", handler.UpdateAlertStatus)
		r.Post("/alerts/{id}/resolve", handler.ResolveAlert)
		r.Delete("/alerts/{id}", handler.DeleteAlert)

		// Rule configuration
		r.Get("/rules", handler.ListRules)
		r.Post("/rules", handler.CreateRule)
		r.Put("/rules", handler.UpdateRule)

		// Aggregates
		r.Get("/stats", handler.Stats)
		r.Get("/stats/patterns", handler.PatternStats)
		r.Get("/stats/geography", handler.GeographyStats)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
