package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/en-exe/calci-trade/internal/domain"
)

const snapshotTTL = 15 * time.Minute

// SnapshotCache implements domain.SnapshotCache using a single Redis key with
// JSON-serialized dashboard state. The engine publishes after every cycle;
// other processes (or a restarted bot) can read the latest state without
// touching the database.
type SnapshotCache struct {
	conn *redis.Client
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{conn: c.Underlying()}
}

const snapshotKey = "dashboard:snapshot"

// Publish stores the snapshot with a 15-minute TTL. A stale key expiring is
// preferable to a dashboard that silently shows hours-old data.
func (sc *SnapshotCache) Publish(ctx context.Context, snap domain.DashboardSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot: %w", err)
	}
	if err := sc.conn.Set(ctx, snapshotKey, data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: publish snapshot: %w", err)
	}
	return nil
}

// Latest retrieves the most recently published snapshot.
// It returns domain.ErrNotFound when no snapshot has been published or the
// key has expired.
func (sc *SnapshotCache) Latest(ctx context.Context) (domain.DashboardSnapshot, error) {
	data, err := sc.conn.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.DashboardSnapshot{}, domain.ErrNotFound
		}
		return domain.DashboardSnapshot{}, fmt.Errorf("redis: get snapshot: %w", err)
	}

	var snap domain.DashboardSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.DashboardSnapshot{}, fmt.Errorf("redis: unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
