package security

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/bakeassist/bakeassist/internal/config"
)

func TestSlidingWindowLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewSlidingWindowLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow(ctx, "2"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if ok, _ := l.Allow(ctx, "2"); ok {
		t.Fatal("third request in window should be rejected")
	}
	if ok, _ := l.Allow(ctx, "3"); !ok {
		t.Fatal("other customers have their own budget")
	}

	now = now.Add(61 * time.Second)
	if ok, _ := l.Allow(ctx, "2"); !ok {
		t.Fatal("request after window should be allowed")
	}
}

func TestSlidingWindowLimiterEvictsIdleKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewSlidingWindowLimiter(5, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 10000; i++ {
		if ok, _ := l.Allow(ctx, strconv.Itoa(i)); !ok {
			t.Fatalf("first request for key %d should be allowed", i)
		}
	}
	if got := len(l.hits); got != 10000 {
		t.Fatalf("expected 10000 tracked keys, got %d", got)
	}

	now = now.Add(30 * time.Second)
	l.Allow(ctx, "2")
	now = now.Add(31 * time.Second)
	if ok, _ := l.Allow(ctx, "fresh"); !ok {
		t.Fatal("new key should be allowed")
	}
	if got := len(l.hits); got != 2 {
		t.Fatalf("expected only keys active inside the window to remain, got %d", got)
	}
	if _, ok := l.hits["2"]; !ok {
		t.Fatal("key with a hit inside the window must be kept")
	}
}

func TestSlidingWindowLimiterDisabled(t *testing.T) {
	l := NewSlidingWindowLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if ok, _ := l.Allow(context.Background(), "k"); !ok {
			t.Fatal("zero limit should admit everything")
		}
	}
}

func TestRedisLimiter(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewRedisLimiter(client, "test:", 2, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "2")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if ok, _ := l.Allow(ctx, "2"); ok {
		t.Fatal("third request in window should be rejected")
	}

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one counter key, got %v", keys)
	}
	if ttl := mr.TTL(keys[0]); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected counter to expire within the window, got %s", ttl)
	}

	mr.FastForward(time.Minute)
	now = now.Add(time.Minute)
	if ok, _ := l.Allow(ctx, "2"); !ok {
		t.Fatal("next window should admit requests again")
	}
}

func TestRedisLimiterUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	l := NewRedisLimiter(client, "test:", 2, time.Minute)
	if _, err := l.Allow(context.Background(), "2"); err == nil {
		t.Fatal("expected error when redis is down")
	}
}

func TestNewLimiter(t *testing.T) {
	cfg := config.Default().RateLimit

	cfg.Enabled = false
	l, closeFn, err := NewLimiter(cfg)
	if err != nil || l != nil {
		t.Fatalf("expected nil limiter when disabled, got %v, %v", l, err)
	}
	_ = closeFn()

	cfg.Enabled = true
	l, _, err = NewLimiter(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := l.(*SlidingWindowLimiter); !ok {
		t.Fatalf("expected memory limiter, got %T", l)
	}

	cfg.Backend = "redis"
	l, closeFn, err = NewLimiter(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := l.(*RedisLimiter); !ok {
		t.Fatalf("expected redis limiter, got %T", l)
	}
	_ = closeFn()

	cfg.Backend = "etcd"
	if _, _, err := NewLimiter(cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
