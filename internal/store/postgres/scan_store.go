package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/en-exe/calci-trade/internal/domain"
)

// ScanStore implements domain.ScanStore using PostgreSQL.
type ScanStore struct {
	pool *pgxpool.Pool
}

// NewScanStore creates a ScanStore backed by the given connection pool.
func NewScanStore(pool *pgxpool.Pool) *ScanStore {
	return &ScanStore{pool: pool}
}

// Record stores one scan summary.
func (s *ScanStore) Record(ctx context.Context, opportunitiesFound, ordersPlaced int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO market_scans (opportunities_found, orders_placed) VALUES ($1, $2)`,
		opportunitiesFound, ordersPlaced,
	)
	if err != nil {
		return fmt.Errorf("postgres: record scan: %w", err)
	}
	return nil
}

// ListRecent returns the most recent scan summaries, newest first.
func (s *ScanStore) ListRecent(ctx context.Context, limit int) ([]domain.ScanRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, opportunities_found, orders_placed, created_at FROM market_scans
		 ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list scans: %w", err)
	}
	defer rows.Close()

	var scans []domain.ScanRecord
	for rows.Next() {
		var r domain.ScanRecord
		if err := rows.Scan(&r.ID, &r.OpportunitiesFound, &r.OrdersPlaced, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan scans: %w", err)
		}
		scans = append(scans, r)
	}
	return scans, rows.Err()
}

var _ domain.ScanStore = (*ScanStore)(nil)
