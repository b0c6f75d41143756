package ai

import (
	"context"
	"sync"
	"time"
)

// RateLimiter bounds the rate of outbound provider requests
type RateLimiter interface {
	// Wait blocks until a request can proceed or the context is cancelled
	Wait(ctx context.Context) error

	// Allow checks if a request can proceed without blocking
	Allow() bool

	// Limit returns the current limit (requests per minute)
	Limit() float64
}

// TokenBucketLimiter implements token bucket rate limiting.
// Thread-safe; suitable for the bounded per-user extraction fan-out.
type TokenBucketLimiter struct {
	rate       float64 // requests per second
	burst      int
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewTokenBucketLimiter creates a limiter allowing reqPerMinute requests.
// burst <= 0 defaults to 10% of the rate (minimum 1).
func NewTokenBucketLimiter(reqPerMinute float64, burst int) *TokenBucketLimiter {
	if burst <= 0 {
		burst = int(reqPerMinute / 10)
		if burst < 1 {
			burst = 1
		}
	}

	return &TokenBucketLimiter{
		rate:       reqPerMinute / 60.0,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled
func (l *TokenBucketLimiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Allow consumes a token if one is available
func (l *TokenBucketLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastUpdate).Seconds()
	l.lastUpdate = now

	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}

	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Limit returns requests per minute
func (l *TokenBucketLimiter) Limit() float64 {
	return l.rate * 60.0
}
