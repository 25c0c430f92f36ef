// Package cache provides a Redis-backed caching layer with graceful fallback.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// errUnavailable is returned by writes attempted while the breaker is open.
var errUnavailable = errors.New("cache unavailable")

const (
	DefaultTTL        = 5 * time.Minute
	DefaultRetryAfter = 30 * time.Second
)

// Config contains cache configuration.
type Config struct {
	// URL is a redis:// connection string. Empty disables caching.
	URL string
	TTL time.Duration
	// RetryAfter is how long the cache stays disabled after a Redis error.
	RetryAfter time.Duration
}

// Cache stores JSON values in Redis. Any Redis error trips a circuit breaker
// that turns every operation into a miss until RetryAfter has passed.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config
	now    func() time.Time

	mu            sync.RWMutex
	disabledUntil time.Time
}

// New connects to Redis. An empty URL or an unreachable server yields a
// disabled cache rather than an error; only a malformed URL fails.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Cache, error) {
	logger = logger.With().Str("component", "cache").Logger()
	if cfg.URL == "" {
		logger.Info().Msg("REDIS_URL not set, running without caching")
		return &Cache{logger: logger, config: withDefaults(cfg), now: time.Now}, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	c := NewWithClient(redis.NewClient(opts), cfg, logger)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, retrying later")
		c.trip()
		return c, nil
	}

	logger.Info().Str("addr", opts.Addr).Msg("Redis cache initialized")
	return c, nil
}

// NewWithClient wraps an existing client without probing it.
func NewWithClient(client *redis.Client, cfg Config, logger zerolog.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger,
		config: withDefaults(cfg),
		now:    time.Now,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = DefaultRetryAfter
	}
	return cfg
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	if c.client == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.now().Before(c.disabledUntil)
}

// Ping reports whether Redis answers. A cache without a client is healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) trip() {
	c.mu.Lock()
	c.disabledUntil = c.now().Add(c.config.RetryAfter)
	c.mu.Unlock()
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	c.logger.Warn().Err(err).Str("operation", operation).
		Dur("retry_after", c.config.RetryAfter).
		Msg("cache operation failed, disabling cache")
	c.trip()
}

// get retrieves a value from cache and unmarshals it into dest.
func (c *Cache) get(ctx context.Context, key string, dest any) bool {
	if !c.IsAvailable() {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		c.handleError(err, "get")
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false
	}
	return true
}

// set stores a value in cache with the configured TTL.
func (c *Cache) set(ctx context.Context, key string, value any) {
	if !c.IsAvailable() {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to marshal cache value")
		return
	}
	if err := c.client.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		c.handleError(err, "set")
	}
}

// del deletes one key.
func (c *Cache) del(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return errUnavailable
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}
	return nil
}

// generation reads an integer counter. A missing key reads as zero.
func (c *Cache) generation(ctx context.Context, key string) (int64, bool) {
	if !c.IsAvailable() {
		return 0, false
	}
	n, err := c.client.Get(ctx, key).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, true
	case err != nil:
		c.handleError(err, "generation")
		return 0, false
	}
	return n, true
}

// incr bumps an integer counter. The key never expires.
func (c *Cache) incr(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return errUnavailable
	}
	if err := c.client.Incr(ctx, key).Err(); err != nil {
		c.handleError(err, "incr")
		return err
	}
	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete")
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
