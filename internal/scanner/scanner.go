// Package scanner walks every open market on the exchange once per cycle and
// emits ranked opportunities for the two extreme-price patterns: longshot
// fade (back NO against a very cheap YES) and favorite back (back a very
// expensive YES).
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/en-exe/calci-trade/internal/domain"
	"github.com/en-exe/calci-trade/internal/platform/kalshi"
)

const pageLimit = 1000

// MarketLister is the slice of the exchange client the scanner needs.
type MarketLister interface {
	GetMarkets(ctx context.Context, status string, limit int, cursor string) (kalshi.MarketsPage, error)
}

// Config holds the scan thresholds. Prices are integer cents.
type Config struct {
	YesLowThreshold  int64         // longshot ceiling: 0 < yes_bid < this
	YesHighThreshold int64         // favorite floor: yes_bid > this
	MaxExpiryDays    int           // only markets closing within this window
	Timeout          time.Duration // soft wall-clock bound on pagination
}

// Scanner produces the ranked opportunity list for the current cycle. It is
// stateless across cycles: no memory of previously seen markets.
type Scanner struct {
	client MarketLister
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Scanner.
func New(client MarketLister, cfg Config, logger *slog.Logger) *Scanner {
	return &Scanner{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "scanner")),
		now:    time.Now,
	}
}

// Scan pages through all open markets and returns opportunities sorted by
// edge descending (stable, so equal edges keep discovery order). The
// pagination loop is bounded by the configured soft timeout; on expiry the
// accumulated opportunities are returned as a degraded-but-valid result
// rather than an error.
func (s *Scanner) Scan(ctx context.Context) ([]domain.Opportunity, error) {
	scanCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var opportunities []domain.Opportunity
	cutoff := s.now().UTC().Add(time.Duration(s.cfg.MaxExpiryDays) * 24 * time.Hour)
	cursor := ""
	pages := 0

	for {
		page, err := s.client.GetMarkets(scanCtx, "open", pageLimit, cursor)
		if err != nil {
			// The soft timeout degrades to a partial result; anything else
			// is a real failure.
			if errors.Is(scanCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				s.logger.WarnContext(ctx, "market scan timed out, returning partial results",
					slog.Duration("timeout", s.cfg.Timeout),
					slog.Int("pages_fetched", pages),
					slog.Int("opportunities", len(opportunities)),
				)
				break
			}
			return nil, fmt.Errorf("scanner: fetch markets page %d: %w", pages+1, err)
		}
		pages++

		for _, m := range page.Markets {
			opportunities = append(opportunities, s.evaluate(m, cutoff)...)
		}

		cursor = page.Cursor
		if cursor == "" || len(page.Markets) == 0 {
			break
		}
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].Edge > opportunities[j].Edge
	})

	s.logger.InfoContext(ctx, "scan complete",
		slog.Int("pages", pages),
		slog.Int("opportunities", len(opportunities)),
	)
	return opportunities, nil
}

// evaluate applies the expiry filter and the two price filters to a single
// market. The filters are checked independently; the gap between thresholds
// makes them mutually exclusive in practice.
func (s *Scanner) evaluate(m kalshi.Market, cutoff time.Time) []domain.Opportunity {
	if m.CloseTime == "" {
		return nil
	}
	closeTime, err := parseCloseTime(m.CloseTime)
	if err != nil {
		return nil
	}
	if closeTime.After(cutoff) {
		return nil
	}

	yes := m.YesBid
	var opps []domain.Opportunity

	// Longshot fade: YES priced near zero, back NO.
	if yes > 0 && yes < s.cfg.YesLowThreshold {
		impliedWin := float64(100-yes) / 100.0
		if impliedWin >= 0.90 {
			opps = append(opps, domain.Opportunity{
				Ticker:      m.Ticker,
				EventTicker: m.EventTicker,
				Title:       m.Title,
				YesPrice:    yes,
				NoPrice:     m.NoBid,
				Side:        domain.SideNo,
				EntryPrice:  100 - yes,
				Edge:        roundEdge(impliedWin - 0.5),
				CloseTime:   m.CloseTime,
			})
		}
	}

	// Favorite back: YES priced near certainty, back YES.
	if yes > s.cfg.YesHighThreshold {
		impliedWin := float64(yes) / 100.0
		if impliedWin >= 0.90 {
			opps = append(opps, domain.Opportunity{
				Ticker:      m.Ticker,
				EventTicker: m.EventTicker,
				Title:       m.Title,
				YesPrice:    yes,
				NoPrice:     m.NoBid,
				Side:        domain.SideYes,
				EntryPrice:  yes,
				Edge:        roundEdge(impliedWin - 0.5),
				CloseTime:   m.CloseTime,
			})
		}
	}

	return opps
}

// parseCloseTime accepts ISO-8601 with either a "Z" suffix or a numeric
// offset.
func parseCloseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}

// roundEdge rounds to four decimal places for stable display and dedup.
func roundEdge(edge float64) float64 {
	return math.Round(edge*1e4) / 1e4
}
