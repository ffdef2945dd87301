package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLocalLimiterBurstRefillAndIsolation(t *testing.T) {
	now := time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC)
	l := NewLocalLimiter(Config{Capacity: 2, RefillInterval: time.Second, TTL: time.Minute})
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "alice")
		if err != nil || !res.Allowed {
			t.Fatalf("request %d: %+v %v", i, res, err)
		}
	}
	res, _ := l.Allow(ctx, "alice")
	if res.Allowed || res.RetryAfter <= 0 || res.RetryAfter > time.Second {
		t.Fatalf("expected rejection with retry hint, got %+v", res)
	}

	if res, _ := l.Allow(ctx, "bob"); !res.Allowed {
		t.Fatalf("bob should have a separate bucket")
	}

	now = now.Add(time.Second)
	if res, _ := l.Allow(ctx, "alice"); !res.Allowed {
		t.Fatalf("expected refill after one interval")
	}
}

func TestLocalLimiterForgetsIdleBuckets(t *testing.T) {
	now := time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC)
	l := NewLocalLimiter(Config{Capacity: 1, RefillInterval: time.Second, TTL: 5 * time.Second})
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = l.Allow(ctx, "a")
	_, _ = l.Allow(ctx, "b")
	if l.size() != 2 {
		t.Fatalf("expected 2 buckets, got %d", l.size())
	}

	now = now.Add(10 * time.Second)
	_, _ = l.Allow(ctx, "c")
	if l.size() != 1 {
		t.Fatalf("expected idle buckets to be dropped, got %d", l.size())
	}
}
