// Package executor enforces account-level risk gates and submits orders for
// the sizer's trade signals.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/en-exe/calci-trade/internal/domain"
	"github.com/en-exe/calci-trade/internal/platform/kalshi"
)

// pauseKey is the settings-store key holding the externally controlled
// pause flag.
const pauseKey = "paused"

// OrderPlacer is the slice of the exchange client the executor needs.
type OrderPlacer interface {
	CreateOrder(ctx context.Context, req kalshi.OrderRequest) (kalshi.Order, error)
}

// Config holds the risk parameters.
type Config struct {
	MaxDailyLossPct int64
}

// Executor places orders for a batch of signals. Risk gates are evaluated
// once per batch, not per signal; a tripped gate refuses the entire batch.
type Executor struct {
	client   OrderPlacer
	trades   domain.TradeStore
	settings domain.SettingsStore
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Executor.
func New(client OrderPlacer, trades domain.TradeStore, settings domain.SettingsStore, cfg Config, logger *slog.Logger) *Executor {
	return &Executor{
		client:   client,
		trades:   trades,
		settings: settings,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "executor")),
		now:      time.Now,
	}
}

// Execute runs the batch gates and then attempts each signal's order,
// returning the count of successfully placed orders. A single order failure
// is logged and never aborts the rest of the batch.
func (e *Executor) Execute(ctx context.Context, signals []domain.TradeSignal, balance int64) (int, error) {
	if len(signals) == 0 {
		return 0, nil
	}

	// Gate 1: daily loss breaker.
	startOfDay := e.now().UTC().Truncate(24 * time.Hour)
	dailyPnL, err := e.trades.SumPnLSince(ctx, startOfDay)
	if err != nil {
		return 0, fmt.Errorf("executor: daily pnl: %w", err)
	}
	lossLimit := -(balance * e.cfg.MaxDailyLossPct / 100)
	if dailyPnL <= lossLimit {
		e.logger.WarnContext(ctx, "daily loss limit hit, refusing batch",
			slog.Int64("daily_pnl", dailyPnL),
			slog.Int64("loss_limit", lossLimit),
			slog.Int("signals", len(signals)),
		)
		return 0, nil
	}

	// Gate 2: pause flag.
	paused, err := e.settings.Get(ctx, pauseKey, "false")
	if err != nil {
		return 0, fmt.Errorf("executor: read pause flag: %w", err)
	}
	if paused == "true" {
		e.logger.InfoContext(ctx, "trading paused, refusing batch",
			slog.Int("signals", len(signals)),
		)
		return 0, nil
	}

	placed := 0
	for _, sig := range signals {
		if err := e.place(ctx, sig); err != nil {
			e.logger.ErrorContext(ctx, "order placement failed",
				slog.String("ticker", sig.Ticker),
				slog.String("side", string(sig.Side)),
				slog.Int64("quantity", sig.Quantity),
				slog.String("error", err.Error()),
			)
			continue
		}
		placed++
	}
	return placed, nil
}

// place submits one buy limit order and records the resulting open trade.
func (e *Executor) place(ctx context.Context, sig domain.TradeSignal) error {
	clientOrderID := uuid.NewString()

	order, err := e.client.CreateOrder(ctx, kalshi.OrderRequest{
		Ticker:        sig.Ticker,
		Side:          string(sig.Side),
		Count:         sig.Quantity,
		Price:         sig.EntryPrice,
		ClientOrderID: clientOrderID,
	})
	if err != nil {
		return err
	}

	id, err := e.trades.Insert(ctx, domain.Trade{
		MarketTicker:  sig.Ticker,
		EventTicker:   sig.EventTicker,
		Side:          sig.Side,
		Price:         sig.EntryPrice,
		Quantity:      sig.Quantity,
		OrderID:       order.OrderID,
		ClientOrderID: clientOrderID,
		Status:        domain.StatusOpen,
	})
	if err != nil {
		// The order is live on the exchange but unrecorded; the reconciler
		// cannot see it, so this is loud.
		return fmt.Errorf("order %s placed but trade not recorded: %w", order.OrderID, err)
	}

	e.logger.InfoContext(ctx, "order placed",
		slog.Int64("trade_id", id),
		slog.String("ticker", sig.Ticker),
		slog.String("side", string(sig.Side)),
		slog.Int64("quantity", sig.Quantity),
		slog.Int64("price", sig.EntryPrice),
		slog.String("order_id", order.OrderID),
		slog.String("reason", sig.Reason),
	)
	return nil
}
