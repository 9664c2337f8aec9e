package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/en-exe/calci-trade/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a SnapshotStore backed by the given connection
// pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Record stores one portfolio snapshot.
func (s *SnapshotStore) Record(ctx context.Context, snap domain.PortfolioSnapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO portfolio_snapshots (balance, total_pnl, win_count, loss_count)
		 VALUES ($1, $2, $3, $4)`,
		snap.Balance, snap.TotalPnL, snap.WinCount, snap.LossCount,
	)
	if err != nil {
		return fmt.Errorf("postgres: record snapshot: %w", err)
	}
	return nil
}

// ListRecent returns the most recent portfolio snapshots, newest first.
func (s *SnapshotStore) ListRecent(ctx context.Context, limit int) ([]domain.PortfolioSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, balance, total_pnl, win_count, loss_count, created_at
		 FROM portfolio_snapshots ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.PortfolioSnapshot
	for rows.Next() {
		var p domain.PortfolioSnapshot
		if err := rows.Scan(&p.ID, &p.Balance, &p.TotalPnL, &p.WinCount, &p.LossCount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan snapshots: %w", err)
		}
		snaps = append(snaps, p)
	}
	return snaps, rows.Err()
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
