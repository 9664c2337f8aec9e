// Package strategy turns the scanner's ranked opportunities into budgeted,
// deduplicated trade signals.
package strategy

import (
	"fmt"
	"log/slog"

	"github.com/en-exe/calci-trade/internal/domain"
)

// Config holds the sizing parameters as whole percents of the current
// balance.
type Config struct {
	MaxPositionPct int64
	CashReservePct int64
}

// Sizer allocates budget to opportunities. It is deterministic and greedy:
// a single pass in edge-descending order, earlier opportunities claiming
// budget first. Not globally optimal, but reproducible given identical
// inputs.
type Sizer struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Sizer.
func New(cfg Config, logger *slog.Logger) *Sizer {
	return &Sizer{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "sizer")),
	}
}

// Size converts opportunities into trade signals given the current balance
// (cents) and the set of tickers that already have an open trade.
//
// A single running budget of balance*(1-reserve%) decrements as signals are
// emitted; each market is capped at balance*maxPosition%. Opportunities whose
// budget buys less than one contract are skipped without deducting anything.
func (s *Sizer) Size(opps []domain.Opportunity, balance int64, openTickers map[string]bool) []domain.TradeSignal {
	var signals []domain.TradeSignal

	available := balance * (100 - s.cfg.CashReservePct) / 100
	perMarketCap := balance * s.cfg.MaxPositionPct / 100

	for _, opp := range opps {
		if openTickers[opp.Ticker] {
			continue
		}
		if available <= 0 {
			break
		}

		budget := min(perMarketCap, available)
		quantity := budget / opp.EntryPrice
		if quantity < 1 {
			continue
		}

		available -= quantity * opp.EntryPrice

		signals = append(signals, domain.TradeSignal{
			Opportunity: opp,
			Quantity:    quantity,
			Reason:      reason(opp),
		})
	}

	s.logger.Info("sizing complete",
		slog.Int("opportunities", len(opps)),
		slog.Int("signals", len(signals)),
		slog.Int64("remaining_budget", available),
	)
	return signals
}

// reason builds the human-readable rationale recorded with the signal.
func reason(opp domain.Opportunity) string {
	name := "Favorite back"
	if opp.Side == domain.SideNo {
		name = "Longshot fade"
	}
	return fmt.Sprintf("%s: YES@%dc, edge=%.1f%%", name, opp.YesPrice, opp.Edge*100)
}
