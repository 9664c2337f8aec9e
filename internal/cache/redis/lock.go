package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/en-exe/calci-trade/internal/domain"
)

// releaseScript deletes the lock key only when it still holds the caller's
// token. A lock that expired and was re-acquired by someone else must not be
// deleted by the original holder.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// LockManager guards the trading loop against concurrent bot instances.
// A lock is a Redis key set with NX and a TTL; the value is a random token
// identifying the holder.
type LockManager struct {
	conn *redis.Client
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{conn: c.Underlying()}
}

// Acquire takes the named lock for at most ttl. It returns a release function
// that is safe to call more than once, or domain.ErrLockHeld when another
// holder already owns the lock.
func (lm *LockManager) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	key := "calci:lock:" + name
	token := uuid.NewString()

	ok, err := lm.conn.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire %s: %w", name, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// The caller's context is usually cancelled by the time the lock
			// is released, so the unlock runs on its own deadline.
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			releaseScript.Run(rctx, lm.conn, []string{key}, token)
		})
	}
	return release, nil
}

var _ domain.LockManager = (*LockManager)(nil)
