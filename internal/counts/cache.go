// Package counts is a Redis cache of per-session attendee counts kept warm
// by the worker so session listings avoid a COUNT query per row. It is a
// cache only; the store remains the source of truth.
package counts

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rollcall:attendees:"

// Cache tracks attendee counts per session id.
type Cache struct {
	client *redis.Client
}

// NewCache creates a cache over an existing Redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Incr bumps the count for a session.
func (c *Cache) Incr(ctx context.Context, sessionID string) error {
	return c.client.Incr(ctx, keyPrefix+sessionID).Err()
}

// Get returns the cached count. ok is false when the session has no cached
// value (or Redis is unreachable) and the caller should fall back to the
// store.
func (c *Cache) Get(ctx context.Context, sessionID string) (count int, ok bool) {
	val, err := c.client.Get(ctx, keyPrefix+sessionID).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Set overwrites the cached count, used to backfill from the store.
func (c *Cache) Set(ctx context.Context, sessionID string, count int) error {
	return c.client.Set(ctx, keyPrefix+sessionID, count, 0).Err()
}

// Drop removes the cached count when a session is deleted.
func (c *Cache) Drop(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, keyPrefix+sessionID).Err()
}
