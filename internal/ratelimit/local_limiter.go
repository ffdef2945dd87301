package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter keeps one rate.Limiter per key in process memory. It is the
// fallback when Redis is not configured and is exact only for one replica.
type LocalLimiter struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	buckets   map[string]*localBucket
	lastSweep time.Time
}

// NewLocalLimiter creates an in-process limiter.
func NewLocalLimiter(cfg Config) *LocalLimiter {
	return &LocalLimiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*localBucket),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &localBucket{limiter: rate.NewLimiter(rate.Every(l.cfg.RefillInterval), l.cfg.Capacity)}
		l.buckets[key] = bucket
	}
	bucket.lastSeen = now

	if bucket.limiter.AllowN(now, 1) {
		return Result{Allowed: true, Remaining: int(bucket.limiter.TokensAt(now))}, nil
	}
	missing := 1 - bucket.limiter.TokensAt(now)
	wait := time.Duration(math.Ceil(missing * float64(l.cfg.RefillInterval)))
	return Result{Allowed: false, RetryAfter: wait}, nil
}

// sweepLocked drops buckets idle for longer than TTL, at most once per TTL.
func (l *LocalLimiter) sweepLocked(now time.Time) {
	if l.cfg.TTL <= 0 || now.Sub(l.lastSweep) < l.cfg.TTL {
		return
	}
	for key, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) > l.cfg.TTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

func (l *LocalLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
