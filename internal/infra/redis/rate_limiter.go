package redis

import (
	"context"
	"fmt"
	"time"

	"telegram-credit-miniapp/internal/domain/ports/adapter"
)

var _ adapter.RateLimiter = (*RateLimiter)(nil)

// RateLimiter is a fixed-window counter shared by every instance pointing at the same Redis.
type RateLimiter struct {
	client RedisClient
	now    func() time.Time
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (adapter.RateDecision, error) {
	count, ttl, err := r.client.IncrWindow(ctx, RateLimitKey(key), window)
	if err != nil {
		return adapter.RateDecision{}, err
	}

	d := adapter.RateDecision{
		Limit:   limit,
		ResetAt: r.now().Add(ttl),
	}
	if count > int64(limit) {
		d.Limited = true
		d.RetryAfter = ttl
		return d, nil
	}
	d.Remaining = limit - int(count)
	return d, nil
}

// RateLimitKey namespaces an "action:userId" key.
func RateLimitKey(key string) string {
	return fmt.Sprintf("rate_limit:%s", key)
}
