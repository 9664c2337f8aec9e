// Package reconciler cross-references locally open trades against the
// broker's authoritative positions, settlements, and fills to finalize their
// outcome.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/en-exe/calci-trade/internal/domain"
	"github.com/en-exe/calci-trade/internal/platform/kalshi"
)

// PortfolioReader is the slice of the exchange client the reconciler needs.
type PortfolioReader interface {
	GetPositions(ctx context.Context) ([]kalshi.MarketPosition, error)
	GetSettlements(ctx context.Context) ([]kalshi.Settlement, error)
	GetFills(ctx context.Context) ([]kalshi.Fill, error)
}

// Reconciler finalizes open trades once per cycle. It only ever reads trades
// still in the open state, so terminal trades are never re-processed and
// re-running reconciliation is idempotent.
type Reconciler struct {
	client PortfolioReader
	trades domain.TradeStore
	logger *slog.Logger
}

// New creates a Reconciler.
func New(client PortfolioReader, trades domain.TradeStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		client: client,
		trades: trades,
		logger: logger.With(slog.String("component", "reconciler")),
	}
}

// Reconcile updates the status and pnl of every open trade that the broker
// has resolved, returning the number of trades updated.
//
// Failure handling is asymmetric on purpose. Without positions we cannot
// safely judge whether an order is still active, so a positions fetch
// failure aborts the whole pass with zero updates (fail-closed). Settlements
// and fills degrade to empty sets (fail-open): a missing settlement just
// leaves the trade open until the next cycle.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	openTrades, err := r.trades.ListOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconciler: list open trades: %w", err)
	}
	if len(openTrades) == 0 {
		return 0, nil
	}

	positions, err := r.client.GetPositions(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconciler: fetch positions: %w", err)
	}
	activeTickers := make(map[string]bool, len(positions))
	for _, pos := range positions {
		if pos.Position != 0 || pos.TotalTraded != 0 {
			activeTickers[pos.Ticker] = true
		}
	}

	settledRevenue := make(map[string]int64)
	settlements, err := r.client.GetSettlements(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "settlements fetch failed, treating as empty",
			slog.String("error", err.Error()),
		)
	} else {
		for _, s := range settlements {
			settledRevenue[s.MarketTicker] = s.Revenue
		}
	}

	filledOrderIDs := make(map[string]bool)
	fills, err := r.client.GetFills(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "fills fetch failed, treating as empty",
			slog.String("error", err.Error()),
		)
	} else {
		for _, f := range fills {
			filledOrderIDs[f.OrderID] = true
		}
	}

	updated := 0
	for _, trade := range openTrades {
		status, pnl, ok := resolve(trade, settledRevenue, filledOrderIDs, activeTickers)
		if !ok {
			continue
		}
		if err := r.trades.UpdateOutcome(ctx, trade.ID, status, pnl); err != nil {
			r.logger.ErrorContext(ctx, "trade update failed",
				slog.Int64("trade_id", trade.ID),
				slog.String("status", string(status)),
				slog.String("error", err.Error()),
			)
			continue
		}
		r.logger.InfoContext(ctx, "trade reconciled",
			slog.Int64("trade_id", trade.ID),
			slog.String("ticker", trade.MarketTicker),
			slog.String("status", string(status)),
			slog.Int64("pnl", pnl),
		)
		updated++
	}
	return updated, nil
}

// resolve decides the terminal transition for one open trade, if any.
//
// Settlement takes precedence: positive revenue settles the trade with
// pnl = revenue - cost, otherwise it is lost with pnl = -cost. A trade whose
// order id never appears in the fills and whose ticker has no active
// position expired unfilled, pnl 0. Everything else stays open.
func resolve(
	trade domain.Trade,
	settledRevenue map[string]int64,
	filledOrderIDs map[string]bool,
	activeTickers map[string]bool,
) (domain.TradeStatus, int64, bool) {
	cost := trade.Cost()

	if revenue, ok := settledRevenue[trade.MarketTicker]; ok {
		if revenue > 0 {
			return domain.StatusSettled, revenue - cost, true
		}
		return domain.StatusLost, -cost, true
	}

	if trade.OrderID != "" && !filledOrderIDs[trade.OrderID] && !activeTickers[trade.MarketTicker] {
		return domain.StatusExpired, 0, true
	}

	return "", 0, false
}
