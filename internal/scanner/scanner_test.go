package scanner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/en-exe/calci-trade/internal/domain"
	"github.com/en-exe/calci-trade/internal/platform/kalshi"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLister serves a fixed sequence of pages (or errors).
type fakeLister struct {
	pages []kalshi.MarketsPage
	errs  []error
	calls int
}

func (f *fakeLister) GetMarkets(ctx context.Context, status string, limit int, cursor string) (kalshi.MarketsPage, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return kalshi.MarketsPage{}, f.errs[i]
	}
	if i >= len(f.pages) {
		return kalshi.MarketsPage{}, nil
	}
	return f.pages[i], nil
}

var scanBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestScanner(lister MarketLister) *Scanner {
	s := New(lister, Config{
		YesLowThreshold:  10,
		YesHighThreshold: 85,
		MaxExpiryDays:    7,
		Timeout:          time.Minute,
	}, testLogger())
	s.now = func() time.Time { return scanBase }
	return s
}

// closeIn returns an ISO-8601 close time the given number of days after the
// fixed test clock.
func closeIn(days int) string {
	return scanBase.Add(time.Duration(days) * 24 * time.Hour).Format(time.RFC3339)
}

func market(ticker string, yesBid int64, closeTime string) kalshi.Market {
	return kalshi.Market{
		Ticker:      ticker,
		EventTicker: "EVT-" + ticker,
		Title:       "Test market " + ticker,
		Status:      "open",
		YesBid:      yesBid,
		NoBid:       100 - yesBid,
		CloseTime:   closeTime,
	}
}

func TestScanLongshotFade(t *testing.T) {
	lister := &fakeLister{pages: []kalshi.MarketsPage{
		{Markets: []kalshi.Market{market("LONG-5", 5, closeIn(2))}},
	}}
	s := newTestScanner(lister)

	opps, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(opps))
	}
	o := opps[0]
	if o.Side != domain.SideNo {
		t.Errorf("side = %s, want no", o.Side)
	}
	if o.EntryPrice != 95 {
		t.Errorf("entry price = %d, want 95", o.EntryPrice)
	}
	if o.Edge != 0.45 {
		t.Errorf("edge = %v, want 0.45", o.Edge)
	}
}

func TestScanFavoriteBack(t *testing.T) {
	lister := &fakeLister{pages: []kalshi.MarketsPage{
		{Markets: []kalshi.Market{market("FAV-92", 92, closeIn(2))}},
	}}
	s := newTestScanner(lister)

	opps, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(opps))
	}
	o := opps[0]
	if o.Side != domain.SideYes {
		t.Errorf("side = %s, want yes", o.Side)
	}
	if o.EntryPrice != 92 {
		t.Errorf("entry price = %d, want 92", o.EntryPrice)
	}
	if o.Edge != 0.42 {
		t.Errorf("edge = %v, want 0.42", o.Edge)
	}
}

func TestScanFilterBoundaries(t *testing.T) {
	cases := []struct {
		name   string
		yesBid int64
		want   int
	}{
		{"zero bid excluded", 0, 0},
		{"just under low threshold", 9, 1},
		{"at low threshold excluded", 10, 0},
		{"mid-range excluded", 50, 0},
		{"at high threshold excluded", 85, 0},
		{"above high threshold but implied below 90pct", 86, 0},
		{"implied exactly 90pct", 90, 1},
		{"near certainty", 99, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lister := &fakeLister{pages: []kalshi.MarketsPage{
				{Markets: []kalshi.Market{market("M", tc.yesBid, closeIn(2))}},
			}}
			s := newTestScanner(lister)
			opps, err := s.Scan(context.Background())
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if len(opps) != tc.want {
				t.Fatalf("yes_bid=%d: opportunities = %d, want %d", tc.yesBid, len(opps), tc.want)
			}
		})
	}
}

func TestScanExpiryWindow(t *testing.T) {
	lister := &fakeLister{pages: []kalshi.MarketsPage{
		{Markets: []kalshi.Market{
			market("SOON", 5, closeIn(3)),
			market("LATE", 5, closeIn(10)),
			market("NO-CLOSE", 5, ""),
			market("BAD-CLOSE", 5, "not-a-date"),
		}},
	}}
	s := newTestScanner(lister)

	opps, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(opps))
	}
	if opps[0].Ticker != "SOON" {
		t.Fatalf("ticker = %s, want SOON", opps[0].Ticker)
	}
}

func TestScanAcceptsOffsetTimestamps(t *testing.T) {
	// Same instant as closeIn(1), expressed with a numeric offset.
	offset := scanBase.Add(24 * time.Hour).In(time.FixedZone("", -5*3600)).Format(time.RFC3339)
	lister := &fakeLister{pages: []kalshi.MarketsPage{
		{Markets: []kalshi.Market{market("OFFSET", 5, offset)}},
	}}
	s := newTestScanner(lister)

	opps, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(opps))
	}
}

func TestScanSortsByEdgeDescending(t *testing.T) {
	lister := &fakeLister{pages: []kalshi.MarketsPage{
		{
			Markets: []kalshi.Market{
				market("EDGE-40", 90, closeIn(1)), // edge 0.40
				market("EDGE-47A", 3, closeIn(1)), // edge 0.47
				market("EDGE-45", 95, closeIn(1)), // edge 0.45
				market("EDGE-47B", 3, closeIn(1)), // edge 0.47, ties with A
			},
			Cursor: "",
		},
	}}
	s := newTestScanner(lister)

	opps, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := []string{"EDGE-47A", "EDGE-47B", "EDGE-45", "EDGE-40"}
	if len(opps) != len(want) {
		t.Fatalf("opportunities = %d, want %d", len(opps), len(want))
	}
	for i, w := range want {
		if opps[i].Ticker != w {
			t.Errorf("opps[%d] = %s, want %s (stable sort by edge desc)", i, opps[i].Ticker, w)
		}
	}
}

func TestScanPaginates(t *testing.T) {
	lister := &fakeLister{pages: []kalshi.MarketsPage{
		{Markets: []kalshi.Market{market("P1", 5, closeIn(1))}, Cursor: "next"},
		{Markets: []kalshi.Market{market("P2", 95, closeIn(1))}, Cursor: ""},
	}}
	s := newTestScanner(lister)

	opps, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if lister.calls != 2 {
		t.Fatalf("pages fetched = %d, want 2", lister.calls)
	}
	if len(opps) != 2 {
		t.Fatalf("opportunities = %d, want 2", len(opps))
	}
}

// slowLister serves one good page, then blocks until the scan context
// expires.
type slowLister struct {
	first kalshi.MarketsPage
	calls int
}

func (f *slowLister) GetMarkets(ctx context.Context, status string, limit int, cursor string) (kalshi.MarketsPage, error) {
	f.calls++
	if f.calls == 1 {
		return f.first, nil
	}
	<-ctx.Done()
	return kalshi.MarketsPage{}, ctx.Err()
}

func TestScanTimeoutReturnsPartialResults(t *testing.T) {
	lister := &slowLister{first: kalshi.MarketsPage{
		Markets: []kalshi.Market{market("PARTIAL", 5, closeIn(1))},
		Cursor:  "more",
	}}
	s := New(lister, Config{
		YesLowThreshold:  10,
		YesHighThreshold: 85,
		MaxExpiryDays:    7,
		Timeout:          50 * time.Millisecond,
	}, testLogger())
	s.now = func() time.Time { return scanBase }

	opps, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan must degrade on soft timeout, got error: %v", err)
	}
	if len(opps) != 1 || opps[0].Ticker != "PARTIAL" {
		t.Fatalf("opps = %v, want the one market from the completed page", opps)
	}
}

func TestScanPropagatesHardErrors(t *testing.T) {
	wantErr := errors.New("exchange down")
	lister := &fakeLister{errs: []error{wantErr}}
	s := newTestScanner(lister)

	_, err := s.Scan(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
}

func TestScanParentCancellationIsAnError(t *testing.T) {
	lister := &slowLister{first: kalshi.MarketsPage{
		Markets: []kalshi.Market{market("X", 5, closeIn(1))},
		Cursor:  "more",
	}}
	s := newTestScanner(lister)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := s.Scan(ctx); err == nil {
		t.Fatal("parent cancellation must surface as an error, not a partial result")
	}
}
