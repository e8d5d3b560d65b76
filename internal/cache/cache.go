package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Gateway is a read-through / write-through-invalidation cache over Redis.
// Every method is best-effort: a Redis failure is logged and reported, and
// callers treat it as a miss rather than failing the business operation.
type Gateway struct {
	client *redis.Client
}

func NewGateway(client *redis.Client) *Gateway {
	return &Gateway{
		client: client,
	}
}

// Get loads the value stored under key into dest. The second return value
// is false on a miss or on a backend failure.
func (g *Gateway) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := g.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}

		slog.Warn("Cache get failed", "key", key, "error", err)

		return false, fmt.Errorf("cache get %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		// A corrupt entry behaves like a miss; drop it so the next write
		// replaces it.
		g.Remove(ctx, key)

		return false, nil
	}

	return true, nil
}

// Set stores value under key with the given TTL.
func (g *Gateway) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %q: %w", key, err)
	}

	if err := g.client.Set(ctx, key, data, ttl).Err(); err != nil {
		slog.Warn("Cache set failed", "key", key, "error", err)

		return fmt.Errorf("cache set %q: %w", key, err)
	}

	return nil
}

// Remove drops a single key.
func (g *Gateway) Remove(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, key).Err(); err != nil {
		slog.Warn("Cache remove failed", "key", key, "error", err)

		return fmt.Errorf("cache remove %q: %w", key, err)
	}

	return nil
}

// RemoveByPrefix drops every key under the given namespace prefix, walking
// the keyspace with SCAN so the server is never blocked by a KEYS call.
func (g *Gateway) RemoveByPrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := g.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			slog.Warn("Cache scan failed", "prefix", prefix, "error", err)

			return fmt.Errorf("cache scan %q: %w", prefix, err)
		}

		if len(keys) > 0 {
			if err := g.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("Cache remove by prefix failed", "prefix", prefix, "error", err)

				return fmt.Errorf("cache remove by prefix %q: %w", prefix, err)
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
