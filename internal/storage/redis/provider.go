package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reciperag/session-cache/internal/storage"
)

// Provider stores encoded session records as Redis string values. Every key
// carries a TTL slightly above the record's own lifetime, so entries that are
// never read back still get reclaimed; expiry as observed by callers remains
// the record's own ExpiresAt, evaluated on read.
type Provider struct {
	client *Client
	class  storage.Class
	prefix string
	ttl    time.Duration
}

// NewProvider creates a Redis-backed provider. prefix scopes Flush to this
// subsystem's keys; ttl is the per-key retention ceiling.
func NewProvider(client *Client, class storage.Class, prefix string, ttl time.Duration) *Provider {
	return &Provider{
		client: client,
		class:  class,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (p *Provider) Get(ctx context.Context, key string) (string, error) {
	value, err := p.client.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

func (p *Provider) Set(ctx context.Context, key, value string) error {
	err := p.client.rdb.Set(ctx, key, value, p.ttl).Err()
	if err == nil {
		return nil
	}
	// Redis signals maxmemory exhaustion with an OOM error reply.
	if strings.Contains(err.Error(), "OOM") {
		return storage.ErrQuotaExceeded
	}
	return fmt.Errorf("redis set: %w", err)
}

func (p *Provider) Delete(ctx context.Context, key string) error {
	if err := p.client.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (p *Provider) Class() storage.Class {
	return p.class
}

// Flush removes every key under the provider's prefix and reports how many
// were deleted. Used by the guest-cleanup lifecycle hook.
func (p *Provider) Flush(ctx context.Context) (int64, error) {
	pattern := p.prefix + "*"
	var cursor uint64
	var deleted int64

	for {
		keys, nextCursor, err := p.client.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			count, err := p.client.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += count
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}
