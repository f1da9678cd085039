// Package security holds request admission controls for the chat API.
package security

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bakeassist/bakeassist/internal/config"
)

// Limiter decides whether another request for key is admitted.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// NewLimiter builds the limiter selected by cfg. It returns nil when rate
// limiting is disabled. The returned close func releases backend resources.
func NewLimiter(cfg config.RateLimitConfig) (Limiter, func() error, error) {
	noop := func() error { return nil }
	if !cfg.Enabled {
		return nil, noop, nil
	}
	switch cfg.Backend {
	case "", "memory":
		return NewSlidingWindowLimiter(cfg.Requests, cfg.Window), noop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisLimiter(client, "bakeassist:ratelimit:", cfg.Requests, cfg.Window), client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}

// SlidingWindowLimiter admits at most limit requests per key in any window.
// Keys with no hits inside the window are swept at most once per window.
type SlidingWindowLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

func NewSlidingWindowLimiter(limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		hits:   map[string][]time.Time{},
	}
}

func (l *SlidingWindowLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	arr := l.hits[key]
	kept := arr[:0]
	for _, t := range arr {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.limit {
		l.hits[key] = kept
		return false, nil
	}
	l.hits[key] = append(kept, now)
	return true, nil
}

// sweep drops keys whose newest hit is outside the window. Callers hold mu.
func (l *SlidingWindowLimiter) sweep(cutoff time.Time) {
	for key, arr := range l.hits {
		if len(arr) == 0 || !arr[len(arr)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

// RedisLimiter is a fixed-window counter shared by every server instance
// pointed at the same Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	bucket := l.now().UnixNano() / int64(l.window)
	redisKey := l.prefix + key + ":" + strconv.FormatInt(bucket, 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}
