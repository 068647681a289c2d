package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/clover/pkg/metrics"
)

// Config holds Redis connection configuration
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Client wraps the Redis client with logging and common operations
type Client struct {
	rdb    *redis.Client
	logger ectologger.Logger
}

// Open builds a client without touching the network
func Open(cfg Config, logger ectologger.Logger) *Client {
	return Wrap(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}), logger)
}

// NewClient creates a new Redis client and checks the connection
func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	c := Open(cfg, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}

	logger.Infof("Connected to Redis at %s", cfg.Addr())
	return c, nil
}

// Wrap builds a Client around an existing connection without pinging it
func Wrap(rdb *redis.Client, logger ectologger.Logger) *Client {
	return &Client{
		rdb:    rdb,
		logger: logger,
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Redis returns the underlying Redis client for advanced operations
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Ping checks if Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.timed("ping", func() error {
		return c.rdb.Ping(ctx).Err()
	})
}

// SetNX sets key only if it does not exist yet. It reports whether the key was set.
func (c *Client) SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error) {
	var set bool
	err := c.timed("setnx", func() error {
		var err error
		set, err = c.rdb.SetNX(ctx, key, value, expiration).Result()
		return err
	})
	return set, err
}

// Exists checks if a key exists
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := c.timed("exists", func() error {
		var err error
		n, err = c.rdb.Exists(ctx, key).Result()
		return err
	})
	return n > 0, err
}

// Del deletes one or more keys
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.timed("del", func() error {
		return c.rdb.Del(ctx, keys...).Err()
	})
}

func (c *Client) timed(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordRedisOperation(operation, time.Since(start).Seconds())
	return err
}
