package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/en-exe/calci-trade/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, market_ticker, event_ticker, side, price, quantity,
	order_id, client_order_id, status, pnl, created_at`

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(
			&t.ID, &t.MarketTicker, &t.EventTicker, &t.Side, &t.Price,
			&t.Quantity, &t.OrderID, &t.ClientOrderID, &t.Status, &t.PnL,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Insert records a new open trade and returns its assigned id.
func (s *TradeStore) Insert(ctx context.Context, t domain.Trade) (int64, error) {
	const query = `
		INSERT INTO trades (
			market_ticker, event_ticker, side, price, quantity,
			order_id, client_order_id, status, pnl
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 'open', 0)
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		t.MarketTicker, t.EventTicker, t.Side, t.Price, t.Quantity,
		t.OrderID, t.ClientOrderID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert trade: %w", err)
	}
	return id, nil
}

// UpdateOutcome moves an open trade to a terminal status with its realized
// pnl. The WHERE clause guards the single-transition invariant: a trade that
// has already left the open state is never touched again.
func (s *TradeStore) UpdateOutcome(ctx context.Context, id int64, status domain.TradeStatus, pnl int64) error {
	if !status.Terminal() {
		return fmt.Errorf("postgres: update trade %d: %q is not a terminal status", id, status)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE trades SET status = $1, pnl = $2 WHERE id = $3 AND status = 'open'`,
		status, pnl, id,
	)
	if err != nil {
		return fmt.Errorf("postgres: update trade %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update trade %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListOpen returns all trades still in the open state, newest first.
func (s *TradeStore) ListOpen(ctx context.Context) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE status = 'open' ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open trades: %w", err)
	}
	return trades, nil
}

// List returns the most recent trades, newest first.
func (s *TradeStore) List(ctx context.Context, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// ListSettled returns all trades in a terminal state, oldest first.
func (s *TradeStore) ListSettled(ctx context.Context) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE status <> 'open' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan settled trades: %w", err)
	}
	return trades, nil
}

// SumPnLSince returns the total realized pnl of trades created at or after
// the given time.
func (s *TradeStore) SumPnLSince(ctx context.Context, since time.Time) (int64, error) {
	var pnl int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(pnl), 0) FROM trades WHERE created_at >= $1`, since,
	).Scan(&pnl)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum pnl since %s: %w", since.Format(time.RFC3339), err)
	}
	return pnl, nil
}

// Stats returns win/loss counts and total pnl across all trades.
func (s *TradeStore) Stats(ctx context.Context) (domain.TradeStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'settled'),
			COUNT(*) FILTER (WHERE status = 'lost'),
			COALESCE(SUM(pnl), 0)
		FROM trades`

	var stats domain.TradeStats
	err := s.pool.QueryRow(ctx, query).Scan(
		&stats.Total, &stats.Wins, &stats.Losses, &stats.TotalPnL,
	)
	if err != nil {
		return domain.TradeStats{}, fmt.Errorf("postgres: trade stats: %w", err)
	}
	return stats, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
