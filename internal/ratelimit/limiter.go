// Package ratelimit implements per-key token buckets, shared across replicas
// through Redis or kept in process when Redis is not configured.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of taking one token.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter takes one token from the bucket identified by key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Config sizes the buckets. One token is added every RefillInterval up to
// Capacity; idle buckets are forgotten after TTL.
type Config struct {
	Capacity       int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}
