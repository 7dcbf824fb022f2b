// Package app provides top-level lifecycle management for the Cerberus
// oracle. It wires the registry client, validation engine, social resolver,
// event bus, notifier, and API server together, starts their goroutines, and
// tears everything down in reverse order on shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/djinn-protocol/cerberus/internal/config"
	"github.com/djinn-protocol/cerberus/internal/server"
	"github.com/djinn-protocol/cerberus/internal/server/handler"
	"github.com/djinn-protocol/cerberus/internal/server/ws"
)

// shutdownTimeout bounds graceful HTTP server drain on exit.
const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
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

// Run is the main entry point. It wires all dependencies, starts the oracle
// loops and auxiliary goroutines, and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting cerberus oracle",
		slog.String("registry", a.cfg.Djinn.APIURL),
		slog.String("model", a.cfg.LLM.Model),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, gctx := errgroup.WithContext(ctx)
	startedAt := time.Now().UTC()

	// Notification consumer.
	g.Go(func() error {
		err := deps.Notifier.Run(gctx, deps.Bus)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// Optional Redis event mirror.
	if deps.RedisBridge != nil {
		g.Go(func() error {
			err := deps.RedisBridge.Run(gctx, deps.Bus)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	// HTTP + WebSocket API.
	if a.cfg.Server.Enabled {
		hub := ws.NewHub(deps.Bus, a.logger)
		g.Go(func() error {
			err := hub.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})

		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		}, server.Handlers{
			Health:    handler.NewHealthHandler(startedAt),
			Dashboard: handler.NewDashboardHandler(deps.Store, a.logger),
			Oracle:    handler.NewOracleHandler(deps.Orchestrator, deps.Resolver, deps.Ask, a.logger),
		}, hub, a.logger)

		g.Go(func() error {
			return srv.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// The oracle loops themselves.
	deps.Orchestrator.Start(gctx)
	g.Go(func() error {
		<-gctx.Done()
		deps.Orchestrator.Stop()
		return nil
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
