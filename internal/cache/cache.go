/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for stored break rules.
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

	"github.com/friendsincode/breakplan/internal/models"
)

// Default TTL values for different cache types
const (
	DefaultRuleListTTL = 5 * time.Minute
	DefaultRuleTTL     = 30 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyPrefix   = "breakplan:cache:"
	KeyRuleList = KeyPrefix + "break_rules"
	KeyRule     = KeyPrefix + "break_rule:" // + dept_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RuleListTTL time.Duration
	RuleTTL     time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		RuleListTTL:    DefaultRuleListTTL,
		RuleTTL:        DefaultRuleTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback. A nil *Cache
// behaves like a disabled one.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance. An unreachable Redis yields a disabled
// cache, not an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	logger = logger.With().Str("component", "cache").Logger()
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
		_ = client.Close()
		return &Cache{logger: logger, config: cfg, disabled: true}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")
	return &Cache{client: client, logger: logger, config: cfg}, nil
}

// Disabled returns a cache that never stores anything.
func Disabled() *Cache {
	return &Cache{logger: zerolog.Nop(), disabled: true}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c != nil && c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
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
	if errors.Is(err, redis.Nil) {
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

// delete removes keys from cache.
func (c *Cache) delete(ctx context.Context, keys ...string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
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

	// SCAN rather than KEYS so large keyspaces are not blocked
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

// GetRules retrieves the cached list of break rules.
func (c *Cache) GetRules(ctx context.Context) ([]models.BreakRule, bool) {
	var rules []models.BreakRule
	found, err := c.get(ctx, KeyRuleList, &rules)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Int("count", len(rules)).Msg("break rule list cache hit")
	return rules, true
}

// SetRules caches the list of break rules.
func (c *Cache) SetRules(ctx context.Context, rules []models.BreakRule) error {
	if !c.IsAvailable() {
		return nil
	}
	c.logger.Debug().Int("count", len(rules)).Msg("caching break rule list")
	return c.set(ctx, KeyRuleList, rules, c.config.RuleListTTL)
}

// GetRule retrieves the cached rule of one department.
func (c *Cache) GetRule(ctx context.Context, deptID string) (*models.BreakRule, bool) {
	var rule models.BreakRule
	found, err := c.get(ctx, KeyRule+deptID, &rule)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("dept_id", deptID).Msg("break rule cache hit")
	return &rule, true
}

// SetRule caches the rule of one department.
func (c *Cache) SetRule(ctx context.Context, rule *models.BreakRule) error {
	if !c.IsAvailable() {
		return nil
	}
	c.logger.Debug().Str("dept_id", rule.DeptID).Msg("caching break rule")
	return c.set(ctx, KeyRule+rule.DeptID, rule, c.config.RuleTTL)
}

// InvalidateRule removes a department's rule and the rule list.
func (c *Cache) InvalidateRule(ctx context.Context, deptID string) error {
	if !c.IsAvailable() {
		return nil
	}
	c.logger.Debug().Str("dept_id", deptID).Msg("invalidating break rule cache")
	return c.delete(ctx, KeyRule+deptID, KeyRuleList)
}

// InvalidateRules removes the rules of the given departments and the rule list.
func (c *Cache) InvalidateRules(ctx context.Context, deptIDs ...string) error {
	if !c.IsAvailable() {
		return nil
	}
	keys := make([]string, 0, len(deptIDs)+1)
	for _, deptID := range deptIDs {
		keys = append(keys, KeyRule+deptID)
	}
	keys = append(keys, KeyRuleList)
	c.logger.Debug().Int("departments", len(deptIDs)).Msg("invalidating break rule cache")
	return c.delete(ctx, keys...)
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, KeyPrefix+"*")
}
