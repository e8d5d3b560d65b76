package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

const (
	failureKeyPrefix = "ratelimit:fail:"
	blockKeyPrefix   = "ratelimit:block:"
)

// Store is the narrow set of key/value primitives the limiter needs. The
// production store is Redis; tests use an in-memory store with a manual
// clock.
type Store interface {
	// Incr atomically increments the counter at key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// SetWithTTL sets key to value with the given TTL.
	SetWithTTL(ctx context.Context, key string, value string, ttl time.Duration) error
	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes the given keys.
	Delete(ctx context.Context, keys ...string) error
}

// Limiter is a sliding-failure-window rate limiter with block semantics.
// The failure counter carries the rolling window TTL while the block flag
// carries its own cooldown TTL, so a short burst window can trigger a much
// longer lockout. Both sides are single atomic store primitives.
//
// The limiter fails open: if the backing store is unreachable, callers are
// treated as not blocked and failures are not tracked. Order processing
// availability takes priority over rate-limit precision.
type Limiter struct {
	store Store
}

func NewLimiter(store Store) *Limiter {
	return &Limiter{
		store: store,
	}
}

// IsBlocked reports whether a prior block on key is still active.
func (l *Limiter) IsBlocked(ctx context.Context, key string) bool {
	blocked, err := l.store.Exists(ctx, blockKeyPrefix+key)
	if err != nil {
		slog.Warn("Rate limiter unavailable, failing open", "key", key, "error", err)

		return false
	}

	return blocked
}

// RegisterFailure increments the failure counter for key and returns the
// new count. The first failure in a window starts the window TTL; reaching
// limit sets an independent block flag that expires after blockDuration.
func (l *Limiter) RegisterFailure(
	ctx context.Context,
	key string,
	limit int64,
	window time.Duration,
	blockDuration time.Duration,
) int64 {
	count, err := l.store.Incr(ctx, failureKeyPrefix+key)
	if err != nil {
		slog.Warn("Rate limiter unavailable, not tracking failure", "key", key, "error", err)

		return 0
	}

	if count == 1 {
		if err := l.store.Expire(ctx, failureKeyPrefix+key, window); err != nil {
			slog.Warn("Failed to start rate limit window", "key", key, "error", err)
		}
	}

	if count >= limit {
		if err := l.store.SetWithTTL(ctx, blockKeyPrefix+key, "1", blockDuration); err != nil {
			slog.Warn("Failed to set rate limit block", "key", key, "error", err)
		}
	}

	return count
}

// Reset clears both the failure counter and the block flag for key.
func (l *Limiter) Reset(ctx context.Context, key string) {
	if err := l.store.Delete(ctx, failureKeyPrefix+key, blockKeyPrefix+key); err != nil {
		slog.Warn("Failed to reset rate limit", "key", key, "error", err)
	}
}
