package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "webhook:processed:"

// Store is the shared deduplication marker store. Markers expire by TTL;
// there is no explicit cleanup.
type Store interface {
	// Seen reports whether the key was already marked processed.
	Seen(ctx context.Context, key string) (bool, error)
	// Mark records the key as processed for ttl.
	Mark(ctx context.Context, key string, ttl time.Duration) error
	// CheckAndMark atomically marks the key and reports whether it was
	// already present. Preferred over Seen+Mark when the store supports it.
	CheckAndMark(ctx context.Context, key string, ttl time.Duration) (duplicate bool, err error)
}

type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe check: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Mark(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("dedupe mark: %w", err)
	}
	return nil
}

// CheckAndMark uses SETNX so check and mark are a single round trip: a false
// return from SETNX means another delivery already claimed the key.
func (s *RedisStore) CheckAndMark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	set, err := s.client.SetNX(ctx, keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe check-and-mark: %w", err)
	}
	return !set, nil
}
