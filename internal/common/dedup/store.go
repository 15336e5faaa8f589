// internal/common/dedup/store.go
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/step-security-bot/usdr-gost/internal/common/config"

	"github.com/redis/go-redis/v9"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Store tracks queue messages whose grant was already persisted, so a
// redelivered message can be acknowledged without a second write.
type Store interface {
	// IsProcessed reports whether the message was already persisted.
	IsProcessed(ctx context.Context, messageID string) (bool, error)

	// MarkProcessed records that the message's grant was persisted.
	MarkProcessed(ctx context.Context, messageID, grantID string) error

	// Cleanup removes entries older than olderThan.
	Cleanup(ctx context.Context, olderThan time.Duration) error

	Close() error
}

// New builds the store selected by cfg.Backend. rdb is only used by the
// redis backend.
func New(cfg config.DedupConfig, rdb *redis.Client) (Store, error) {
	ttl := time.Duration(cfg.TTL) * time.Second
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(ttl), nil
	case BackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis dedup backend requires a redis client")
		}
		return NewRedisStore(rdb, ttl), nil
	default:
		return nil, fmt.Errorf("dedup backend %q not supported", cfg.Backend)
	}
}
