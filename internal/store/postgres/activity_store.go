package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/en-exe/calci-trade/internal/domain"
)

// ActivityStore implements domain.ActivityStore using PostgreSQL.
type ActivityStore struct {
	pool *pgxpool.Pool
}

// NewActivityStore creates an ActivityStore backed by the given connection
// pool.
func NewActivityStore(pool *pgxpool.Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

// Append adds one entry to the activity log.
func (s *ActivityStore) Append(ctx context.Context, level, message string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO activity_log (level, message) VALUES ($1, $2)`,
		level, message,
	)
	if err != nil {
		return fmt.Errorf("postgres: append activity: %w", err)
	}
	return nil
}

// List returns the most recent activity entries, newest first.
func (s *ActivityStore) List(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, level, message, created_at FROM activity_log
		 ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list activity: %w", err)
	}
	defer rows.Close()

	var entries []domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		if err := rows.Scan(&e.ID, &e.Level, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan activity: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ domain.ActivityStore = (*ActivityStore)(nil)
