// Package domain defines the core types shared across the trading bot:
// opportunities, trade signals, durable trades, and the store interfaces
// implemented by the persistence and cache layers.
package domain

import "time"

// Side is the contract side of a binary market.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// TradeStatus is the lifecycle state of a recorded trade. A trade starts
// open and transitions exactly once to one of the terminal states; it never
// returns to open and never moves between terminal states.
type TradeStatus string

const (
	StatusOpen    TradeStatus = "open"
	StatusSettled TradeStatus = "settled"
	StatusLost    TradeStatus = "lost"
	StatusExpired TradeStatus = "expired"
)

// Terminal reports whether the status is one of the final states.
func (s TradeStatus) Terminal() bool {
	return s == StatusSettled || s == StatusLost || s == StatusExpired
}

// Opportunity is a mispriced market detected by the scanner. Prices are in
// cents on the 0-100 scale; Edge is the implied probability advantage over
// the 50% baseline. Opportunities are rebuilt from scratch every cycle and
// are never persisted directly.
type Opportunity struct {
	Ticker      string  `json:"ticker"`
	EventTicker string  `json:"event_ticker"`
	Title       string  `json:"title"`
	YesPrice    int64   `json:"yes_price"`
	NoPrice     int64   `json:"no_price"`
	Side        Side    `json:"side"`
	EntryPrice  int64   `json:"entry_price"`
	Edge        float64 `json:"edge"`
	CloseTime   string  `json:"close_time"`
}

// TradeSignal is a sized trade recommendation produced by the position sizer
// and consumed exactly once by the executor.
type TradeSignal struct {
	Opportunity
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
}

// Trade is the durable record of a submitted order. PnL is in cents and only
// meaningful once Status is terminal; it is 0 at creation. Trades are created
// by the executor, mutated only by the reconciler, and never deleted.
type Trade struct {
	ID            int64       `json:"id"`
	MarketTicker  string      `json:"market_ticker"`
	EventTicker   string      `json:"event_ticker"`
	Side          Side        `json:"side"`
	Price         int64       `json:"price"`
	Quantity      int64       `json:"quantity"`
	OrderID       string      `json:"order_id"`
	ClientOrderID string      `json:"client_order_id"`
	CreatedAt     time.Time   `json:"created_at"`
	Status        TradeStatus `json:"status"`
	PnL           int64       `json:"pnl"`
}

// Cost returns the total cents committed to the trade at entry.
func (t Trade) Cost() int64 {
	return t.Price * t.Quantity
}

// TradeStats summarises trade outcomes across the full history.
type TradeStats struct {
	Total    int64 `json:"total"`
	Wins     int64 `json:"wins"`
	Losses   int64 `json:"losses"`
	TotalPnL int64 `json:"total_pnl"`
}
