// Package server exposes the oracle's HTTP + WebSocket API: dashboard
// snapshots, verdict history, resolver status, manual verification, and the
// free-form ask endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/djinn-protocol/cerberus/internal/server/handler"
	"github.com/djinn-protocol/cerberus/internal/server/middleware"
	"github.com/djinn-protocol/cerberus/internal/server/ws"
)

// askRateLimit bounds the LLM-backed ask endpoint per client IP.
const (
	askRateLimit  = 10
	askRateWindow = time.Minute
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Dashboard *handler.DashboardHandler
	Oracle    *handler.OracleHandler
}

// Server is the headless HTTP + WebSocket API server for the oracle.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth) and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Dashboard endpoints.
	mux.HandleFunc("GET /api/dashboard", handlers.Dashboard.GetState)
	mux.HandleFunc("GET /api/dashboard/markets/{id}", handlers.Dashboard.GetMarket)
	mux.HandleFunc("GET /api/verdicts/recent", handlers.Dashboard.ListVerdicts)

	// Oracle control and query endpoints.
	mux.HandleFunc("GET /api/oracle/status", handlers.Oracle.GetStatus)
	mux.HandleFunc("GET /api/oracle/resolver", handlers.Oracle.GetResolver)
	mux.HandleFunc("POST /api/oracle/verify/{id}", handlers.Oracle.VerifyMarket)

	// The ask endpoint burns an LLM call per request, so it gets its own
	// per-IP rate limit.
	askLimit := middleware.RateLimit(askRateLimit, askRateWindow)
	mux.Handle("POST /api/oracle/ask", askLimit(http.HandlerFunc(handlers.Oracle.Ask)))

	// WebSocket event stream.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
