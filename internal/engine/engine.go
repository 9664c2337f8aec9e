// Package engine runs the trading control loop. One cycle is a strictly
// sequential pass of Reconcile, Scan, Size, Execute, record-snapshot; cycles
// never overlap and the loop sleeps a fixed interval measured from cycle end.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/en-exe/calci-trade/internal/domain"
	"github.com/en-exe/calci-trade/internal/notify"
)

const pauseKey = "paused"

// BalanceFetcher is the slice of the exchange client the engine needs
// directly.
type BalanceFetcher interface {
	GetBalance(ctx context.Context) (int64, error)
}

// MarketScanner produces the cycle's ranked opportunity list.
type MarketScanner interface {
	Scan(ctx context.Context) ([]domain.Opportunity, error)
}

// PositionSizer converts opportunities into budgeted trade signals.
type PositionSizer interface {
	Size(opps []domain.Opportunity, balance int64, openTickers map[string]bool) []domain.TradeSignal
}

// OrderExecutor places orders for a batch of signals.
type OrderExecutor interface {
	Execute(ctx context.Context, signals []domain.TradeSignal, balance int64) (int, error)
}

// TradeReconciler finalizes open trades against broker state.
type TradeReconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// Broadcaster pushes the per-cycle snapshot to live dashboard clients.
type Broadcaster interface {
	Broadcast(v any)
}

// Stores bundles the persistence collaborators the engine writes to.
type Stores struct {
	Trades    domain.TradeStore
	Settings  domain.SettingsStore
	Activity  domain.ActivityStore
	Scans     domain.ScanStore
	Snapshots domain.SnapshotStore
}

// Engine owns the trading loop and the immutable dashboard snapshot. The
// engine is the sole writer of the snapshot; it swaps a fresh copy in
// atomically once per cycle, so readers need no locking and always observe
// the last complete cycle.
type Engine struct {
	client     BalanceFetcher
	scanner    MarketScanner
	sizer      PositionSizer
	executor   OrderExecutor
	reconciler TradeReconciler

	stores      Stores
	snapCache   domain.SnapshotCache // optional
	broadcaster Broadcaster          // optional
	notifier    *notify.Notifier     // optional

	interval time.Duration
	logger   *slog.Logger

	snap atomic.Pointer[domain.DashboardSnapshot]
}

// Options carries the optional collaborators.
type Options struct {
	SnapshotCache domain.SnapshotCache
	Broadcaster   Broadcaster
	Notifier      *notify.Notifier
}

// New creates an Engine.
func New(
	client BalanceFetcher,
	scanner MarketScanner,
	sizer PositionSizer,
	executor OrderExecutor,
	reconciler TradeReconciler,
	stores Stores,
	interval time.Duration,
	opts Options,
	logger *slog.Logger,
) *Engine {
	e := &Engine{
		client:      client,
		scanner:     scanner,
		sizer:       sizer,
		executor:    executor,
		reconciler:  reconciler,
		stores:      stores,
		snapCache:   opts.SnapshotCache,
		broadcaster: opts.Broadcaster,
		notifier:    opts.Notifier,
		interval:    interval,
		logger:      logger.With(slog.String("component", "engine")),
	}
	e.snap.Store(&domain.DashboardSnapshot{Opportunities: []domain.Opportunity{}})
	return e
}

// Snapshot returns the last complete cycle's dashboard view.
func (e *Engine) Snapshot() domain.DashboardSnapshot {
	return *e.snap.Load()
}

// Run executes trading cycles until the context is cancelled. Any failure
// inside a single cycle is caught here, logged, and the loop continues after
// the standard sleep; one bad cycle never terminates the process.
func (e *Engine) Run(ctx context.Context) error {
	e.logActivity(ctx, "info", "Bot started. Connecting to exchange API...")

	for {
		if err := e.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.ErrorContext(ctx, "cycle failed", slog.String("error", err.Error()))
			e.logActivity(ctx, "error", fmt.Sprintf("ERROR: %v", err))
			if e.notifier != nil {
				_ = e.notifier.Notify(ctx, notify.EventError, "Trading cycle failed", err.Error())
			}
		}

		timer := time.NewTimer(e.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runCycle executes one full pass of the pipeline.
func (e *Engine) runCycle(ctx context.Context) error {
	paused, err := e.stores.Settings.Get(ctx, pauseKey, "false")
	if err != nil {
		return fmt.Errorf("engine: read pause flag: %w", err)
	}
	if paused == "true" {
		e.logActivity(ctx, "warning", "Trading paused by user.")
		prev := e.Snapshot()
		prev.Paused = true
		prev.UpdatedAt = time.Now().UTC()
		e.publish(ctx, prev)
		return nil
	}

	balance, err := e.client.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("engine: fetch balance: %w", err)
	}
	e.logActivity(ctx, "info", fmt.Sprintf("Balance fetched: $%.2f", float64(balance)/100))

	// Reconciliation failure degrades to zero updates; the cycle proceeds
	// with scanning either way.
	reconciled, err := e.reconciler.Reconcile(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "reconciliation skipped", slog.String("error", err.Error()))
		e.logActivity(ctx, "warning", fmt.Sprintf("Reconciliation skipped: %v", err))
	} else if reconciled > 0 {
		e.logActivity(ctx, "info", fmt.Sprintf("Reconciled %d open trades.", reconciled))
		if e.notifier != nil {
			_ = e.notifier.Notify(ctx, notify.EventTradeSettled, "Trades reconciled",
				fmt.Sprintf("%d open trades finalized", reconciled))
		}
	}

	e.logActivity(ctx, "info", "Scanning markets for opportunities...")
	opportunities, err := e.scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("engine: scan: %w", err)
	}
	if len(opportunities) > 0 {
		e.logActivity(ctx, "success", fmt.Sprintf("Found %d opportunities. Top: %s",
			len(opportunities), summarize(opportunities)))
	} else {
		e.logActivity(ctx, "info", "Scan complete, no opportunities match thresholds.")
	}

	openTrades, err := e.stores.Trades.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("engine: list open trades: %w", err)
	}
	openTickers := make(map[string]bool, len(openTrades))
	for _, t := range openTrades {
		openTickers[t.MarketTicker] = true
	}

	signals := e.sizer.Size(opportunities, balance, openTickers)
	if len(signals) > 0 {
		e.logActivity(ctx, "info", fmt.Sprintf("Strategy selected %d trades to execute.", len(signals)))
	}

	placed, err := e.executor.Execute(ctx, signals, balance)
	if err != nil {
		return fmt.Errorf("engine: execute: %w", err)
	}
	if placed > 0 {
		e.logActivity(ctx, "success", fmt.Sprintf("Placed %d orders successfully.", placed))
		if e.notifier != nil {
			_ = e.notifier.Notify(ctx, notify.EventOrdersPlaced, "Orders placed",
				fmt.Sprintf("%d orders submitted this cycle", placed))
		}
	}

	if err := e.stores.Scans.Record(ctx, len(opportunities), placed); err != nil {
		e.logger.WarnContext(ctx, "scan record failed", slog.String("error", err.Error()))
	}

	stats, err := e.stores.Trades.Stats(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "trade stats failed", slog.String("error", err.Error()))
	} else {
		if err := e.stores.Snapshots.Record(ctx, domain.PortfolioSnapshot{
			Balance:   balance,
			TotalPnL:  stats.TotalPnL,
			WinCount:  stats.Wins,
			LossCount: stats.Losses,
		}); err != nil {
			e.logger.WarnContext(ctx, "portfolio snapshot failed", slog.String("error", err.Error()))
		}
	}

	e.publish(ctx, domain.DashboardSnapshot{
		Balance:       balance,
		Paused:        false,
		Opportunities: opportunities,
		UpdatedAt:     time.Now().UTC(),
	})

	e.logActivity(ctx, "info", fmt.Sprintf(
		"Cycle complete. Balance=$%.2f, Opps=%d, Placed=%d. Next scan in %s.",
		float64(balance)/100, len(opportunities), placed, e.interval))
	return nil
}

// publish swaps the in-process snapshot and best-effort propagates it to the
// external cache and live dashboard clients.
func (e *Engine) publish(ctx context.Context, snap domain.DashboardSnapshot) {
	if snap.Opportunities == nil {
		snap.Opportunities = []domain.Opportunity{}
	}
	e.snap.Store(&snap)

	if e.snapCache != nil {
		if err := e.snapCache.Publish(ctx, snap); err != nil {
			e.logger.WarnContext(ctx, "snapshot cache publish failed",
				slog.String("error", err.Error()),
			)
		}
	}
	if e.broadcaster != nil {
		e.broadcaster.Broadcast(snap)
	}
}

// logActivity appends to the durable activity log; a logging failure must
// never disturb the cycle.
func (e *Engine) logActivity(ctx context.Context, level, message string) {
	if err := e.stores.Activity.Append(ctx, level, message); err != nil {
		e.logger.WarnContext(ctx, "activity log append failed",
			slog.String("error", err.Error()),
		)
	}
}

// summarize renders the top opportunities for the activity log.
func summarize(opps []domain.Opportunity) string {
	top := opps
	if len(top) > 5 {
		top = top[:5]
	}
	out := ""
	for i, o := range top {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s (%s @%dc, edge=%.1f%%)", o.Ticker, o.Side, o.EntryPrice, o.Edge*100)
	}
	return out
}
