package domain

import "time"

// DashboardSnapshot is the read-only view of the bot state exposed to the
// presentation layer. The engine builds a fresh snapshot once per cycle and
// swaps it atomically; readers always see the last complete cycle.
type DashboardSnapshot struct {
	Balance       int64         `json:"balance"`
	Paused        bool          `json:"paused"`
	Opportunities []Opportunity `json:"opportunities"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// PortfolioSnapshot is one durable point on the balance/PnL history curve,
// recorded at the end of each cycle.
type PortfolioSnapshot struct {
	ID        int64     `json:"id"`
	Balance   int64     `json:"balance"`
	TotalPnL  int64     `json:"total_pnl"`
	WinCount  int64     `json:"win_count"`
	LossCount int64     `json:"loss_count"`
	CreatedAt time.Time `json:"created_at"`
}

// ScanRecord summarises one market scan: how many opportunities were found
// and how many orders were placed from them.
type ScanRecord struct {
	ID                 int64     `json:"id"`
	OpportunitiesFound int       `json:"opportunities_found"`
	OrdersPlaced       int       `json:"orders_placed"`
	CreatedAt          time.Time `json:"created_at"`
}

// ActivityEntry is one row of the append-only activity log shown on the
// dashboard.
type ActivityEntry struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"` // info / success / warning / error
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
