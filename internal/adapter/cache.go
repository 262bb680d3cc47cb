package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kari-ai/core/internal/domain"
)

// Cache backs both the short-term recall cache and the write buffer (spec
// §4.2), grounded on wisbric-nightowl/internal/platform/redis.go's
// redis.ParseURL + Ping construction.
type Cache struct {
	client *redis.Client
}

// NewCache dials Redis from a connection URL.
func NewCache(ctx context.Context, redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Cache{client: client}, nil
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return v, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Scan implements the prefix-scan contract explicitly (spec §9 REDESIGN
// FLAG / Q3: scan is authoritative, not a workaround) using Redis's cursor
// based SCAN with a MATCH glob. The returned channel is closed once
// iteration completes or ctx is cancelled.
func (c *Cache) Scan(ctx context.Context, prefix string) (<-chan string, error) {
	out := make(chan string)
	go func() {
		defer close(out)
		var cursor uint64
		match := prefix + "*"
		for {
			keys, next, err := c.client.Scan(ctx, cursor, match, 100).Result()
			if err != nil {
				return
			}
			for _, k := range keys {
				select {
				case out <- k:
				case <-ctx.Done():
					return
				}
			}
			cursor = next
			if cursor == 0 {
				return
			}
		}
	}()
	return out, nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (c *Cache) Health(ctx context.Context) domain.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, domain.DefaultHealthCheckTimeout)
	defer cancel()
	start := time.Now()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return domain.HealthStatus{OK: false, Detail: err.Error()}
	}
	return domain.HealthStatus{OK: true, LatencyMS: time.Since(start).Milliseconds()}
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error { return c.client.Close() }
