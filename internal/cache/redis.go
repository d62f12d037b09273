package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"taxi-platform/internal/config"
	"taxi-platform/pkg/logging"
)

// Cache is a read-through JSON cache for query results. It is strictly
// best-effort: lookups that fail behave like misses and the caller recomputes.
// Entries are written only after a query succeeds, so a failed query can
// never leave partial state behind.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.StructuredLogger
}

// New connects to Redis and verifies the connection.
func New(cfg config.RedisConfig, logger *logging.StructuredLogger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{client: client, ttl: cfg.TTL, logger: logger}, nil
}

// Get unmarshals the cached value for key into dest. The second return value
// reports whether the key was found.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache entry corrupt: %w", err)
	}

	return true, nil
}

// Set stores value under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}

	return nil
}

// Close releases the underlying connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
