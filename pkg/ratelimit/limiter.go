// Package ratelimit throttles credential attempts against the guarded
// login endpoint. Each key gets a token bucket; a burst of failures
// drains it and subsequent attempts are refused until it refills.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

func (b *bucket) take(capacity int, refillRate float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = min(float64(capacity), b.tokens+elapsed*refillRate)
	b.lastRefill = now

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true
	}
	return false
}

// AttemptLimiter tracks login attempts per key. Keys are chosen by the
// caller; the middleware uses the client IP.
type AttemptLimiter struct {
	capacity   int
	refillRate float64
	ttl        time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewAttemptLimiter creates a limiter allowing a burst of capacity
// attempts per key, refilling at refillRate attempts per second.
// Buckets idle longer than ttl are swept; ttl of 0 keeps them forever.
func NewAttemptLimiter(capacity int, refillRate float64, ttl time.Duration) *AttemptLimiter {
	l := &AttemptLimiter{
		capacity:   capacity,
		refillRate: refillRate,
		ttl:        ttl,
		buckets:    make(map[string]*bucket),
	}
	if ttl > 0 {
		go l.sweep()
	}
	return l
}

// Allow reports whether another attempt for the key is permitted.
func (l *AttemptLimiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.capacity), lastRefill: time.Now()}
		l.buckets[key] = b
	}
	l.mu.Unlock()

	return b.take(l.capacity, l.refillRate)
}

// Reset refills the key's bucket. Called after a successful login so a
// legitimate user is not penalized for earlier typos.
func (l *AttemptLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		b.mu.Lock()
		b.tokens = float64(l.capacity)
		b.lastRefill = time.Now()
		b.mu.Unlock()
	}
}

// ActiveKeys returns the number of tracked keys.
func (l *AttemptLimiter) ActiveKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *AttemptLimiter) sweep() {
	ticker := time.NewTicker(l.ttl)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		l.mu.Lock()
		for key, b := range l.buckets {
			b.mu.Lock()
			idle := now.Sub(b.lastRefill) > l.ttl
			b.mu.Unlock()
			if idle {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}
