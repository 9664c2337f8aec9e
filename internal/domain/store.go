package domain

import (
	"context"
	"time"
)

// TradeStore persists the durable trade audit trail.
type TradeStore interface {
	// Insert records a new open trade and returns its assigned id.
	Insert(ctx context.Context, t Trade) (int64, error)
	// UpdateOutcome moves a trade to a terminal status with its realized pnl.
	UpdateOutcome(ctx context.Context, id int64, status TradeStatus, pnl int64) error
	// ListOpen returns all trades still in the open state.
	ListOpen(ctx context.Context) ([]Trade, error)
	// List returns the most recent trades, newest first.
	List(ctx context.Context, limit int) ([]Trade, error)
	// ListSettled returns all trades in a terminal state, oldest first.
	ListSettled(ctx context.Context) ([]Trade, error)
	// SumPnLSince returns the total realized pnl of trades created at or
	// after the given time.
	SumPnLSince(ctx context.Context, since time.Time) (int64, error)
	// Stats returns win/loss counts and total pnl across all trades.
	Stats(ctx context.Context) (TradeStats, error)
}

// SettingsStore is a durable string key/value store. The pause flag lives
// here under the key "paused" with values "true"/"false".
type SettingsStore interface {
	Get(ctx context.Context, key, fallback string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// ActivityStore persists the append-only activity log.
type ActivityStore interface {
	Append(ctx context.Context, level, message string) error
	List(ctx context.Context, limit int) ([]ActivityEntry, error)
}

// ScanStore persists per-cycle scan summaries.
type ScanStore interface {
	Record(ctx context.Context, opportunitiesFound, ordersPlaced int) error
	ListRecent(ctx context.Context, limit int) ([]ScanRecord, error)
}

// SnapshotStore persists the portfolio history curve.
type SnapshotStore interface {
	Record(ctx context.Context, snap PortfolioSnapshot) error
	ListRecent(ctx context.Context, limit int) ([]PortfolioSnapshot, error)
}

// SnapshotCache publishes the latest dashboard snapshot for out-of-process
// consumers. Publishing is best effort; the in-process accessor on the engine
// remains the source of truth.
type SnapshotCache interface {
	Publish(ctx context.Context, snap DashboardSnapshot) error
	Latest(ctx context.Context) (DashboardSnapshot, error)
}

// LockManager grants exclusive named locks so only one bot instance trades
// against the account at a time.
type LockManager interface {
	// Acquire returns an unlock function on success, or ErrLockHeld when
	// another holder owns the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// BlobWriter stores an object in blob storage under the given key.
type BlobWriter interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
}
