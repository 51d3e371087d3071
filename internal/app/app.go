// Package app provides the top-level application lifecycle management for the
// settlement service. It wires together all dependencies (ledger, caches,
// blob storage, services, and notifications) and runs the HTTP/WebSocket API
// until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kleoslabs/kleos/internal/config"
	"github.com/kleoslabs/kleos/internal/custody"
	"github.com/kleoslabs/kleos/internal/server"
	"github.com/kleoslabs/kleos/internal/server/handler"
	"github.com/kleoslabs/kleos/internal/server/ws"
	"github.com/kleoslabs/kleos/internal/service"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the API
// server and WebSocket hub, and blocks until the context is cancelled. On
// return it leaves cleanup to Close.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Bool("archival", a.cfg.S3.Enabled),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	clock := service.SystemClock{}
	token := custody.NewToken()
	native := custody.NewNative()

	protocolSvc := service.NewProtocolService(
		deps.Ledger, deps.SignalBus, deps.AuditStore, deps.Notifier, clock, a.logger,
	)
	marketSvc := service.NewMarketService(
		deps.Ledger, token, native, deps.MarketCache, deps.LockManager,
		deps.SignalBus, deps.AuditStore, deps.Reporter, deps.Notifier, clock, a.logger,
	)
	positionSvc := service.NewPositionService(
		deps.Ledger, token, native, deps.MarketCache,
		deps.SignalBus, deps.AuditStore, clock, a.logger,
	)

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": deps.Postgres,
			"redis":    deps.Redis,
		}, a.logger),
		Protocol:  handler.NewProtocolHandler(protocolSvc, a.logger),
		Markets:   handler.NewMarketHandler(marketSvc, deps.Ledger, a.logger),
		Positions: handler.NewPositionHandler(positionSvc, a.logger),
		Audit:     handler.NewAuditHandler(deps.AuditStore, a.logger),
	}

	hub := ws.NewHub(deps.SignalBus, a.logger)

	srv := server.New(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.Info("HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
