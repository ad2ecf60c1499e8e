package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Limiter is a fixed-window counter shared across instances. Keys combine
// the operation with the email and client IP so one caller cannot starve
// another.
type Limiter struct {
	redis  *redis.Client
	window time.Duration
}

// NewLimiter creates a Limiter with the given window.
func NewLimiter(client *redis.Client, window time.Duration) *Limiter {
	return &Limiter{redis: client, window: window}
}

// Allow increments the counter for (op, email, ip) and reports whether the
// ceiling still holds. INCR is atomic, so concurrent attempts cannot slip
// past the limit together.
func (l *Limiter) Allow(ctx context.Context, op, email, ip string, limit int) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%s:%s", op, email, ip)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}
	return count <= int64(limit), nil
}
