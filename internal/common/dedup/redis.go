package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "grants:processed:"

// RedisStore keeps processed markers in Redis with a per-key TTL, so it is
// shared across consumer replicas.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(messageID string) string {
	return keyPrefix + messageID
}

func (r *RedisStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	n, err := r.client.Exists(ctx, redisKey(messageID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

func (r *RedisStore) MarkProcessed(ctx context.Context, messageID, grantID string) error {
	if err := r.client.Set(ctx, redisKey(messageID), grantID, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Cleanup is a no-op; Redis expires keys on its own.
func (r *RedisStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	return nil
}

// Close leaves the shared client open; its owner closes it.
func (r *RedisStore) Close() error {
	return nil
}
