/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for frequently read
// rotation data. All methods degrade to misses when Redis is unreachable.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Default TTL values for different cache types
const (
	DefaultReportTTL       = 1 * time.Hour
	DefaultQuickStatsTTL   = 1 * time.Minute
	DefaultLibraryStatsTTL = 5 * time.Minute
	DefaultRulesSummaryTTL = 10 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyLatestReport = "muninn:cache:latest_report"
	KeyQuickStats   = "muninn:cache:quick_stats:" // + period hours
	KeyLibraryStats = "muninn:cache:library_stats"
	KeyRulesSummary = "muninn:cache:rules_summary"
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	ReportTTL       time.Duration
	QuickStatsTTL   time.Duration
	LibraryStatsTTL time.Duration
	RulesSummaryTTL time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:       "localhost:6379",
		ReportTTL:       DefaultReportTTL,
		QuickStatsTTL:   DefaultQuickStatsTTL,
		LibraryStatsTTL: DefaultLibraryStatsTTL,
		RulesSummaryTTL: DefaultRulesSummaryTTL,
		DisableOnError:  true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance. An unreachable Redis yields a disabled
// cache, not an error; callers read through to the database either way.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
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
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// SCAN rather than KEYS so a big keyspace never stalls Redis.
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Report caching

// GetLatestReport retrieves the cached latest audit report JSON.
func (c *Cache) GetLatestReport(ctx context.Context, dest any) bool {
	found, err := c.get(ctx, KeyLatestReport, dest)
	if err != nil || !found {
		return false
	}
	c.logger.Debug().Msg("latest report cache hit")
	return true
}

// SetLatestReport caches the latest audit report.
func (c *Cache) SetLatestReport(ctx context.Context, report any) error {
	return c.set(ctx, KeyLatestReport, report, c.config.ReportTTL)
}

// InvalidateLatestReport removes the latest report from cache.
func (c *Cache) InvalidateLatestReport(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating latest report cache")
	return c.delete(ctx, KeyLatestReport)
}

// Quick stats caching

// GetQuickStats retrieves cached quick stats for a trailing period.
func (c *Cache) GetQuickStats(ctx context.Context, hours int, dest any) bool {
	found, err := c.get(ctx, fmt.Sprintf("%s%d", KeyQuickStats, hours), dest)
	if err != nil || !found {
		return false
	}
	return true
}

// SetQuickStats caches quick stats for a trailing period.
func (c *Cache) SetQuickStats(ctx context.Context, hours int, stats any) error {
	return c.set(ctx, fmt.Sprintf("%s%d", KeyQuickStats, hours), stats, c.config.QuickStatsTTL)
}

// InvalidateQuickStats removes all cached quick stats windows.
func (c *Cache) InvalidateQuickStats(ctx context.Context) error {
	return c.deletePattern(ctx, KeyQuickStats+"*")
}

// Library stats caching

// GetLibraryStats retrieves cached catalog statistics.
func (c *Cache) GetLibraryStats(ctx context.Context, dest any) bool {
	found, err := c.get(ctx, KeyLibraryStats, dest)
	if err != nil || !found {
		return false
	}
	return true
}

// SetLibraryStats caches catalog statistics.
func (c *Cache) SetLibraryStats(ctx context.Context, stats any) error {
	return c.set(ctx, KeyLibraryStats, stats, c.config.LibraryStatsTTL)
}

// InvalidateLibraryStats removes catalog statistics from cache.
func (c *Cache) InvalidateLibraryStats(ctx context.Context) error {
	return c.delete(ctx, KeyLibraryStats)
}

// Rules summary caching

// GetRulesSummary retrieves the cached rules summary.
func (c *Cache) GetRulesSummary(ctx context.Context, dest any) bool {
	found, err := c.get(ctx, KeyRulesSummary, dest)
	if err != nil || !found {
		return false
	}
	return true
}

// SetRulesSummary caches the rules summary.
func (c *Cache) SetRulesSummary(ctx context.Context, summary any) error {
	return c.set(ctx, KeyRulesSummary, summary, c.config.RulesSummaryTTL)
}

// InvalidateRulesSummary removes the rules summary from cache.
func (c *Cache) InvalidateRulesSummary(ctx context.Context) error {
	return c.delete(ctx, KeyRulesSummary)
}
