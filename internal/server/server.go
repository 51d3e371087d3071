// Package server exposes the settlement engine over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kleoslabs/kleos/internal/domain"
	"github.com/kleoslabs/kleos/internal/server/handler"
	"github.com/kleoslabs/kleos/internal/server/middleware"
	"github.com/kleoslabs/kleos/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// Stake and claim submissions per client within RateWindow. Zero
	// disables throttling.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	Protocol  *handler.ProtocolHandler
	Markets   *handler.MarketHandler
	Positions *handler.PositionHandler
	Audit     *handler.AuditHandler
}

// Server is the HTTP + WebSocket API server for the settlement engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// New creates a Server with all routes registered on the ServeMux and the
// middleware chain (rate limiting, auth, logging, CORS) wired around it.
// limiter may be nil to disable throttling.
func New(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Stake and claim submissions are the hot write paths; they get their
	// own per-client throttle.
	throttle := func(h http.HandlerFunc) http.Handler {
		if limiter == nil || cfg.RateLimit <= 0 {
			return h
		}
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Second
		}
		return middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Protocol singleton.
	mux.HandleFunc("POST /api/protocol/initialize", handlers.Protocol.Initialize)
	mux.HandleFunc("GET /api/protocol", handlers.Protocol.Get)
	mux.HandleFunc("PUT /api/protocol", handlers.Protocol.Update)

	// Market lifecycle.
	mux.HandleFunc("POST /api/markets", handlers.Markets.Create)
	mux.HandleFunc("GET /api/markets", handlers.Markets.List)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.Get)
	mux.HandleFunc("PUT /api/markets/{id}", handlers.Markets.Edit)
	mux.HandleFunc("POST /api/markets/{id}/open", handlers.Markets.Open)
	mux.HandleFunc("POST /api/markets/{id}/close", handlers.Markets.Close)
	mux.HandleFunc("POST /api/markets/{id}/settle", handlers.Markets.Settle)

	// Stakes and claims.
	mux.Handle("POST /api/markets/{id}/stakes", throttle(handlers.Positions.PlaceStake))
	mux.Handle("POST /api/markets/{id}/claims", throttle(handlers.Positions.Claim))
	mux.HandleFunc("GET /api/markets/{id}/positions", handlers.Positions.ListByMarket)
	mux.HandleFunc("GET /api/markets/{id}/positions/{participant}", handlers.Positions.Get)

	// Audit log.
	mux.HandleFunc("GET /api/audit", handlers.Audit.List)

	// WebSocket event feed.
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
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
