package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fixed-window limits per IP and purpose.
const (
	defaultLimit  = 20
	defaultWindow = time.Minute
)

// Limiter is a fixed-window rate limiter backed by Redis
type Limiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{
		client: client,
		limit:  defaultLimit,
		window: defaultWindow,
	}
}

func rateLimitKey(purpose, ip string) string {
	return fmt.Sprintf("rate_limit:%s:%s", purpose, ip)
}

// CheckIPRateLimitWithPurpose increments the counter for (purpose, ip) and
// reports whether the limit is exceeded. The first hit in a window sets the
// TTL.
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	key := rateLimitKey(purpose, ip)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit TTL: %w", err)
		}
	}

	return count > int64(l.limit), nil
}
