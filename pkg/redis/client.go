package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/helix/pkg/config"
)

// pingTimeout bounds the startup connectivity check
const pingTimeout = 5 * time.Second

// Client wraps go-redis for the depth cache and the API rate limiter.
// Redis is an optional accelerator here: with REDIS_ENABLED=false the
// exchange still runs, serving depth straight from the in-memory books.
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb     *redis.Client
	enabled bool
}

// New connects to Redis, or returns a disabled no-op client when the
// config turns Redis off.
func New(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return &Client{enabled: false}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Client{
		rdb:     rdb,
		enabled: true,
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Enabled reports whether a live connection backs this client.
// The cache and rate limiter degrade to pass-through when it is false.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Redis exposes the underlying client for command access
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
