package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mirefox/wallcast/internal/app/service"
	"github.com/mirefox/wallcast/internal/search"
	"github.com/redis/go-redis/v9"
)

// ResultCache stores tag-result snapshots in redis as JSON blobs with a
// per-key TTL. Implements service.ResultCache.
type ResultCache struct {
	rdb *redis.Client
}

// NewResultCache wraps an existing redis client.
func NewResultCache(rdb *redis.Client) *ResultCache {
	return &ResultCache{rdb: rdb}
}

// Read returns the stored snapshot or service.ErrCacheMiss. A corrupt blob
// counts as a miss so the entry gets overwritten by the next write.
func (c *ResultCache) Read(ctx context.Context, key string) ([]search.Post, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, service.ErrCacheMiss
		}
		return nil, fmt.Errorf("result cache: read %q: %w", key, err)
	}

	var posts []search.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, service.ErrCacheMiss
	}
	return posts, nil
}

// Write stores a snapshot under key for the given TTL.
func (c *ResultCache) Write(ctx context.Context, key string, posts []search.Post, ttl time.Duration) error {
	data, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("result cache: encode %q: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("result cache: write %q: %w", key, err)
	}
	return nil
}
