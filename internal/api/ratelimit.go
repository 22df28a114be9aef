package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Limiter decides whether a client may make another upload.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type retryAfterer interface {
	RetryAfter(ctx context.Context, key string) time.Duration
}

// MemoryLimiter is a per-process sliding window, used when redis is off.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	mu     sync.Mutex
	hits   map[string][]time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, window: window, hits: make(map[string][]time.Time)}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	queue := l.prune(key, now)
	if len(queue) >= l.limit {
		return false, nil
	}
	l.hits[key] = append(queue, now)
	return true, nil
}

func (l *MemoryLimiter) RetryAfter(_ context.Context, key string) time.Duration {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	queue := l.prune(key, now)
	if len(queue) == 0 {
		return 0
	}
	return queue[0].Add(l.window).Sub(now)
}

// prune drops hits older than the window. Callers hold l.mu.
func (l *MemoryLimiter) prune(key string, now time.Time) []time.Time {
	queue := l.hits[key]
	cutoff := now.Add(-l.window)
	idx := 0
	for _, t := range queue {
		if t.After(cutoff) {
			break
		}
		idx++
	}
	if idx > 0 {
		queue = queue[idx:]
	}
	if len(queue) == 0 {
		delete(l.hits, key)
		return nil
	}
	l.hits[key] = queue
	return queue
}

// rateLimit rejects clients over the limit. Limiter failures let the
// request through.
func (h *Handler) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter == nil {
			c.Next()
			return
		}
		key := c.ClientIP()
		ok, err := h.limiter.Allow(c.Request.Context(), key)
		if err != nil {
			h.logger.Warn("rate limiter unavailable", "err", err)
			c.Next()
			return
		}
		if !ok {
			if ra, isRA := h.limiter.(retryAfterer); isRA {
				secs := int(ra.RetryAfter(c.Request.Context(), key).Seconds() + 0.999)
				if secs > 0 {
					c.Header("Retry-After", strconv.Itoa(secs))
				}
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, please retry later"})
			return
		}
		c.Next()
	}
}
