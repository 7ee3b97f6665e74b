// Package rediscache provides an optional Redis-backed read-through cache
// for learner profile snapshots. The store of record stays authoritative;
// a cache failure degrades reads to the database, never to an error.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"brightwords/internal/domain"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when the requested key is not cached.
var ErrCacheMiss = errors.New("rediscache: key not found")

const (
	profilePrefix = "brightwords:profile:"

	// Profiles change on every recorded activity, so the TTL only bounds
	// staleness after a missed invalidation.
	profileTTL = 10 * time.Minute

	dialTimeout = 5 * time.Second
)

// Cache wraps a Redis client with JSON serialization.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// New connects to Redis at url (redis://host:port/db) and verifies the
// connection before returning.
func New(url string, logger *slog.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Cache{client: client, logger: logger}, nil
}

// Close closes the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetProfile reports whether a cached snapshot was found. Redis errors are
// logged and treated as misses.
func (c *Cache) GetProfile(ctx context.Context, learnerID string) (*domain.LearnerProfile, bool) {
	var p domain.LearnerProfile
	err := c.get(ctx, profilePrefix+learnerID, &p)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("profile cache read failed", "learner_id", learnerID, "error", err)
		}
		return nil, false
	}
	return &p, true
}

// SetProfile stores a profile snapshot. Best effort.
func (c *Cache) SetProfile(ctx context.Context, p *domain.LearnerProfile) {
	if err := c.set(ctx, profilePrefix+p.LearnerID, p, profileTTL); err != nil {
		c.logger.Warn("profile cache write failed", "learner_id", p.LearnerID, "error", err)
	}
}

// InvalidateLearner drops the learner's cached snapshot after a commit
// changes the underlying record.
func (c *Cache) InvalidateLearner(ctx context.Context, learnerID string) {
	if err := c.client.Del(ctx, profilePrefix+learnerID).Err(); err != nil {
		c.logger.Warn("profile cache invalidation failed", "learner_id", learnerID, "error", err)
	}
}
