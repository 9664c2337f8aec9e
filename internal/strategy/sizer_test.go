package strategy

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/en-exe/calci-trade/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSizer() *Sizer {
	return New(Config{MaxPositionPct: 20, CashReservePct: 20}, testLogger())
}

func opp(ticker string, side domain.Side, entry int64, edge float64) domain.Opportunity {
	yes := entry
	if side == domain.SideNo {
		yes = 100 - entry
	}
	return domain.Opportunity{
		Ticker:     ticker,
		YesPrice:   yes,
		Side:       side,
		EntryPrice: entry,
		Edge:       edge,
	}
}

func TestSizeBudgetAndCap(t *testing.T) {
	// balance 100000c: available = 80000, per-market cap = 20000.
	// Entry 5c: cap buys 4000 contracts for 20000c, leaving 60000.
	s := newTestSizer()

	signals := s.Size([]domain.Opportunity{
		opp("A", domain.SideNo, 5, 0.45),
		opp("B", domain.SideYes, 95, 0.45),
	}, 100000, nil)

	if len(signals) != 2 {
		t.Fatalf("signals = %d, want 2", len(signals))
	}
	if signals[0].Quantity != 4000 {
		t.Errorf("A quantity = %d, want 4000 (20000c cap / 5c)", signals[0].Quantity)
	}
	if signals[1].Quantity != 210 {
		t.Errorf("B quantity = %d, want 210 (20000c cap / 95c)", signals[1].Quantity)
	}
}

func TestSizeSkipsOpenTickers(t *testing.T) {
	s := newTestSizer()

	signals := s.Size([]domain.Opportunity{
		opp("OPEN", domain.SideNo, 95, 0.45),
		opp("FRESH", domain.SideNo, 95, 0.40),
	}, 100000, map[string]bool{"OPEN": true})

	if len(signals) != 1 {
		t.Fatalf("signals = %d, want 1", len(signals))
	}
	if signals[0].Ticker != "FRESH" {
		t.Fatalf("ticker = %s, want FRESH", signals[0].Ticker)
	}
}

func TestSizeSkipsUnaffordableWithoutDeduction(t *testing.T) {
	// balance 500c: available = 400, cap = 100. Entry 99c fits once; an
	// earlier unaffordable entry must not consume any budget.
	s := New(Config{MaxPositionPct: 10, CashReservePct: 20}, testLogger())

	signals := s.Size([]domain.Opportunity{
		opp("TOO-RICH", domain.SideYes, 95, 0.45), // cap 50 < 95, qty 0
		opp("FITS", domain.SideNo, 50, 0.40),      // cap 50 / 50 = 1
	}, 500, nil)

	if len(signals) != 1 {
		t.Fatalf("signals = %d, want 1", len(signals))
	}
	if signals[0].Ticker != "FITS" {
		t.Fatalf("ticker = %s, want FITS", signals[0].Ticker)
	}
	if signals[0].Quantity != 1 {
		t.Fatalf("quantity = %d, want 1", signals[0].Quantity)
	}
}

func TestSizeStopsWhenBudgetExhausted(t *testing.T) {
	// balance 1000c: available = 800, cap 800 (100%). First signal takes all
	// 800; later opportunities get nothing.
	s := New(Config{MaxPositionPct: 100, CashReservePct: 20}, testLogger())

	signals := s.Size([]domain.Opportunity{
		opp("FIRST", domain.SideNo, 80, 0.45),
		opp("SECOND", domain.SideNo, 80, 0.40),
	}, 1000, nil)

	if len(signals) != 1 {
		t.Fatalf("signals = %d, want 1", len(signals))
	}
	if signals[0].Quantity != 10 {
		t.Fatalf("quantity = %d, want 10", signals[0].Quantity)
	}
}

func TestSizeZeroBalance(t *testing.T) {
	s := newTestSizer()
	signals := s.Size([]domain.Opportunity{opp("A", domain.SideNo, 95, 0.45)}, 0, nil)
	if len(signals) != 0 {
		t.Fatalf("signals = %d, want 0 for zero balance", len(signals))
	}
}

func TestSizeReason(t *testing.T) {
	s := newTestSizer()

	signals := s.Size([]domain.Opportunity{
		opp("L", domain.SideNo, 95, 0.45),
		opp("F", domain.SideYes, 92, 0.42),
	}, 100000, nil)

	if len(signals) != 2 {
		t.Fatalf("signals = %d, want 2", len(signals))
	}
	if !strings.HasPrefix(signals[0].Reason, "Longshot fade: YES@5c") {
		t.Errorf("longshot reason = %q", signals[0].Reason)
	}
	if !strings.HasPrefix(signals[1].Reason, "Favorite back: YES@92c") {
		t.Errorf("favorite reason = %q", signals[1].Reason)
	}
}
