// Package app provides the top-level application lifecycle management for the
// trading bot. It wires together all dependencies (stores, caches, blob
// storage, the exchange client, and notifications), acquires the loop lock,
// and starts the trading engine, dashboard server, and exporter goroutines.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/en-exe/calci-trade/internal/config"
	"github.com/en-exe/calci-trade/internal/domain"
	"github.com/en-exe/calci-trade/internal/engine"
	"github.com/en-exe/calci-trade/internal/executor"
	"github.com/en-exe/calci-trade/internal/export"
	"github.com/en-exe/calci-trade/internal/platform/kalshi"
	"github.com/en-exe/calci-trade/internal/reconciler"
	"github.com/en-exe/calci-trade/internal/scanner"
	"github.com/en-exe/calci-trade/internal/server"
	"github.com/en-exe/calci-trade/internal/server/handler"
	"github.com/en-exe/calci-trade/internal/server/ws"
	"github.com/en-exe/calci-trade/internal/strategy"
)

// loopLockKey names the distributed lock that guarantees a single trading
// loop per account.
const loopLockKey = "trading-loop"

// loopLockTTL bounds how long a crashed instance blocks a replacement.
const loopLockTTL = 15 * time.Minute

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

// Run is the main entry point. It wires all dependencies, starts the trading
// engine plus its supporting goroutines, and blocks until the context is
// cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// Refuse to start a second trading loop against the same account.
	unlock, err := deps.LockManager.Acquire(ctx, loopLockKey, loopLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return fmt.Errorf("app: another bot instance is already running: %w", err)
		}
		return fmt.Errorf("app: acquire loop lock: %w", err)
	}
	a.closers = append(a.closers, unlock)

	client, err := kalshi.New(kalshi.Config{
		BaseURL:           a.cfg.Kalshi.BaseURL,
		ApiKeyID:          a.cfg.Kalshi.ApiKey,
		RsaPrivateKeyPath: a.cfg.Kalshi.RsaPrivateKeyPath,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("app: kalshi client: %w", err)
	}

	scan := scanner.New(client, scanner.Config{
		YesLowThreshold:  int64(a.cfg.Trading.YesLowThreshold),
		YesHighThreshold: int64(a.cfg.Trading.YesHighThreshold),
		MaxExpiryDays:    a.cfg.Trading.MaxExpiryDays,
		Timeout:          time.Duration(a.cfg.Trading.ScanTimeoutSec) * time.Second,
	}, a.logger)

	sizer := strategy.New(strategy.Config{
		MaxPositionPct: int64(a.cfg.Trading.MaxPositionPct),
		CashReservePct: int64(a.cfg.Trading.CashReservePct),
	}, a.logger)

	exec := executor.New(client, deps.TradeStore, deps.SettingsStore, executor.Config{
		MaxDailyLossPct: int64(a.cfg.Trading.MaxDailyLossPct),
	}, a.logger)

	recon := reconciler.New(client, deps.TradeStore, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	// WebSocket hub (only useful when the dashboard server runs).
	var hub *ws.Hub
	if a.cfg.Server.Enabled {
		hub = ws.NewHub(a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	opts := engine.Options{
		SnapshotCache: deps.SnapshotCache,
		Notifier:      deps.Notifier,
	}
	if hub != nil {
		opts.Broadcaster = hub
	}

	eng := engine.New(
		client, scan, sizer, exec, recon,
		engine.Stores{
			Trades:    deps.TradeStore,
			Settings:  deps.SettingsStore,
			Activity:  deps.ActivityStore,
			Scans:     deps.ScanStore,
			Snapshots: deps.SnapshotStore,
		},
		time.Duration(a.cfg.Trading.ScanIntervalSec)*time.Second,
		opts,
		a.logger,
	)
	g.Go(func() error {
		return eng.Run(ctx)
	})

	// Dashboard HTTP API.
	if a.cfg.Server.Enabled {
		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		}, server.Handlers{
			Health:  handler.NewHealthHandler(),
			Status:  handler.NewStatusHandler(eng, deps.TradeStore, a.logger),
			Trades:  handler.NewTradeHandler(deps.TradeStore, a.logger),
			History: handler.NewHistoryHandler(deps.ActivityStore, deps.ScanStore, deps.SnapshotStore, a.logger),
			Control: handler.NewControlHandler(deps.SettingsStore, deps.ActivityStore, a.logger),
		}, hub, a.logger)

		g.Go(func() error {
			return srv.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// Trade-history export.
	if a.cfg.Export.Enabled && deps.BlobWriter != nil {
		exp := export.New(deps.TradeStore, deps.SnapshotStore, deps.BlobWriter, export.Config{
			Interval: time.Duration(a.cfg.Export.IntervalHours) * time.Hour,
		}, a.logger)
		g.Go(func() error {
			return exp.Run(ctx)
		})
	}

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
