// Package ratelimit throttles challenge issuance per signing address.
package ratelimit

import (
	"sync"
	"time"

	"github.com/chainvault/walletgate/pkg/constants"
)

// TokenBucket is a thread-safe token bucket with time-based refill.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	rate       float64 // tokens per second
	lastRefill time.Time
}

// NewTokenBucket creates a bucket that starts full.
func NewTokenBucket(capacity, rate float64) *TokenBucket {
	if capacity <= 0 {
		capacity = float64(constants.ChallengeRateBurst)
	}
	if rate <= 0 {
		rate = float64(constants.ChallengeRateLimitPerMinute) / 60.0
	}
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		rate:       rate,
		lastRefill: time.Now(),
	}
}

// Allow consumes one token if available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// refill adds tokens for the elapsed time. Must be called with the
// lock held.
func (tb *TokenBucket) refill() {
	now := time.Now()
	tb.tokens += now.Sub(tb.lastRefill).Seconds() * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// Available returns the current token count.
func (tb *TokenBucket) Available() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.tokens
}

// Reset refills the bucket to capacity.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

// ChallengeLimiter holds one bucket per signing address so a noisy
// client cannot starve challenge issuance for everyone else.
type ChallengeLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*limiterEntry
	capacity float64
	rate     float64
}

type limiterEntry struct {
	bucket   *TokenBucket
	lastUsed time.Time
}

// NewChallengeLimiter creates a limiter allowing perMinute requests
// per address with the given burst.
func NewChallengeLimiter(perMinute, burst int) *ChallengeLimiter {
	if perMinute <= 0 {
		perMinute = constants.ChallengeRateLimitPerMinute
	}
	if burst <= 0 {
		burst = constants.ChallengeRateBurst
	}
	return &ChallengeLimiter{
		buckets:  make(map[string]*limiterEntry),
		capacity: float64(burst),
		rate:     float64(perMinute) / 60.0,
	}
}

// Allow reports whether the address may request another challenge now.
func (l *ChallengeLimiter) Allow(address string) bool {
	l.mu.Lock()
	entry, ok := l.buckets[address]
	if !ok {
		entry = &limiterEntry{bucket: NewTokenBucket(l.capacity, l.rate)}
		l.buckets[address] = entry
	}
	entry.lastUsed = time.Now()
	l.mu.Unlock()

	return entry.bucket.Allow()
}

// Cleanup drops buckets idle longer than maxIdle and returns how many
// were removed.
func (l *ChallengeLimiter) Cleanup(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	removed := 0
	for address, entry := range l.buckets {
		if now.Sub(entry.lastUsed) > maxIdle {
			delete(l.buckets, address)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked addresses.
func (l *ChallengeLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
