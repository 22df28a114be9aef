package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window request counter shared by every server
// instance that points at the same redis.
type Limiter struct {
	client *Client
	limit  int
	window time.Duration
	prefix string
}

func NewLimiter(client *Client, limit int, window time.Duration) (*Limiter, error) {
	if client.Raw() == nil {
		return nil, errNotInitialized
	}
	if limit <= 0 || window <= 0 {
		return nil, errors.New("limit and window must be positive")
	}
	return &Limiter{client: client, limit: limit, window: window, prefix: "docsummary:rl:"}, nil
}

// Allow counts one hit for key and reports whether it is within the limit.
// A counter left without a ttl gets one on the next hit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + key
	rdb := l.client.Raw()
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	if _, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	}); err != nil {
		return false, fmt.Errorf("incr %s: %w", k, err)
	}
	if ttl.Val() < 0 {
		if err := rdb.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("expire %s: %w", k, err)
		}
	}
	return incr.Val() <= int64(l.limit), nil
}

// RetryAfter reports how long until the window for key resets.
func (l *Limiter) RetryAfter(ctx context.Context, key string) time.Duration {
	ttl, err := l.client.TTL(ctx, l.prefix+key)
	if err != nil || ttl <= 0 {
		return l.window
	}
	return ttl
}
