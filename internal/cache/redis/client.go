// Package redis provides the Redis-backed fast-lookup order cache and the
// sliding-window rate limiter, plus the shared connection plumbing both sit
// on.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPoolSize   = 20
	defaultMaxRetries = 3

	// dialTimeout bounds the initial connection attempt so a bad address
	// fails fast at startup instead of hanging the wire-up.
	dialTimeout = 5 * time.Second
)

// ClientConfig carries the connection parameters taken from the [redis]
// section of the configuration file. Zero pool and retry values fall back
// to the package defaults.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// withDefaults fills unset tuning knobs with the package defaults.
func (c ClientConfig) withDefaults() ClientConfig {
	if c.PoolSize <= 0 {
		c.PoolSize = defaultPoolSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	return c
}

// Client wraps the go-redis driver. The order cache, the rate limiter, and
// the job queue all share one Client so the process holds a single
// connection pool.
type Client struct {
	rdb *redis.Client
}

// New connects to Redis and verifies the connection with a ping. The
// returned Client owns the pool; call Close on shutdown.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis: address is required")
	}
	cfg = cfg.withDefaults()

	opts := &redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: dialTimeout,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Addr, err)
	}

	return &Client{rdb: rdb}, nil
}

// Ping reports whether Redis is reachable. The health endpoint calls this.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying exposes the raw driver client for the job queue, which needs
// list and sorted-set commands beyond what the cache wrapper offers.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
