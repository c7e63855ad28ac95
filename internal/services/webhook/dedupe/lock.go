package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockPrefix = "webhook:lock:"

// releaseScript deletes the lock only when the caller still holds it, so a
// slow holder cannot release a lock that already expired and was re-acquired.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// LockManager provides best-effort mutual exclusion over an idempotency key
// across instances. The TTL is the correctness mechanism: release is only for
// promptness. This is not a consensus-backed lock; at-least-once delivery is
// the accepted baseline.
type LockManager interface {
	// Acquire returns false when another holder owns the lock.
	Acquire(ctx context.Context, key, holderID string, ttl time.Duration) (bool, error)
	// Release drops the lock if holderID still owns it. Best effort.
	Release(ctx context.Context, key, holderID string) error
}

type RedisLockManager struct {
	client redis.UniversalClient
}

func NewRedisLockManager(client redis.UniversalClient) *RedisLockManager {
	return &RedisLockManager{client: client}
}

func (m *RedisLockManager) Acquire(ctx context.Context, key, holderID string, ttl time.Duration) (bool, error) {
	ok, err := m.client.SetNX(ctx, lockPrefix+key, holderID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock acquire: %w", err)
	}
	return ok, nil
}

func (m *RedisLockManager) Release(ctx context.Context, key, holderID string) error {
	if err := releaseScript.Run(ctx, m.client, []string{lockPrefix + key}, holderID).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("lock release: %w", err)
	}
	return nil
}
