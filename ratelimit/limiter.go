// Package ratelimit throttles outbound deliveries per endpoint using token
// buckets, honoring each endpoint's configured deliveries-per-second cap.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/hookline/hookline/id"
)

// Limiter holds one token bucket per endpoint. Buckets are created lazily on
// first use and sized to the endpoint's rate limit (burst = rate).
type Limiter struct {
	mu      sync.Mutex
	buckets map[id.ID]*bucket
}

type bucket struct {
	tokens   float64
	lastFill time.Time
	rate     float64 // tokens per second
}

// New creates a new per-endpoint rate limiter.
func New() *Limiter {
	return &Limiter{
		buckets: make(map[id.ID]*bucket),
	}
}

// Allow reports whether a delivery to the endpoint may proceed now.
// A rateLimit of 0 means unlimited.
func (l *Limiter) Allow(epID id.ID, rateLimit int) bool {
	if rateLimit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucketFor(epID, float64(rateLimit))
	b.refill()

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Wait blocks until the endpoint's rate limit admits the delivery or the
// context is cancelled. A rateLimit of 0 returns immediately.
func (l *Limiter) Wait(ctx context.Context, epID id.ID, rateLimit int) error {
	if rateLimit <= 0 {
		return nil
	}

	for {
		if l.Allow(epID, rateLimit) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(float64(time.Second) / float64(rateLimit))):
		}
	}
}

// Reset drops the bucket for an endpoint. Called when an endpoint is deleted
// or its rate limit reconfigured.
func (l *Limiter) Reset(epID id.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, epID)
}

func (l *Limiter) bucketFor(epID id.ID, rate float64) *bucket {
	b, ok := l.buckets[epID]
	if !ok {
		b = &bucket{
			tokens:   rate, // start full
			lastFill: time.Now(),
			rate:     rate,
		}
		l.buckets[epID] = b
	}
	return b
}

func (b *bucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastFill).Seconds()
	b.tokens += elapsed * b.rate
	if b.tokens > b.rate {
		b.tokens = b.rate
	}
	b.lastFill = now
}
