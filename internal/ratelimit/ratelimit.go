// Package ratelimit implements a per-API-key token bucket rate limiter
// for HTTP ingress (spec.md §6: "token bucket per key with a configurable
// per-minute allowance").
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter rate-limits requests per key, lazily creating a bucket for
// each key seen.
type Limiter struct {
	mu             sync.Mutex
	buckets        map[string]*rate.Limiter
	perMinute      int
	burst          int
}

// New constructs a Limiter allowing perMinute requests per key, with a
// burst sized to accept a full minute's worth of traffic immediately
// (typical for ingestion clients that send in short bursts).
func New(perMinute int) *Limiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &Limiter{
		buckets:   make(map[string]*rate.Limiter),
		perMinute: perMinute,
		burst:     perMinute,
	}
}

// Allow reports whether a request for key may proceed, consuming one
// token if so.
func (l *Limiter) Allow(key string) bool {
	return l.bucketFor(key).Allow()
}

func (l *Limiter) bucketFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		perSecond := rate.Limit(float64(l.perMinute) / 60.0)
		b = rate.NewLimiter(perSecond, l.burst)
		l.buckets[key] = b
	}
	return b
}
