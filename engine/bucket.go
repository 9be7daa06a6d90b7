package engine

import (
	"sync"
	"time"
)

// TokenBucket is a fractional token bucket refilled from the monotonic
// clock. Capacity and refill rate come straight from an endpoint's rate
// limit; capacity may be fractional, which is why this does not sit on top
// of golang.org/x/time/rate.
//
// The mutex is held only for the O(1) refill-and-decrement; never across a
// sleep.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64
	lastRefill time.Time
}

// NewTokenBucket creates a full bucket. Capacity is burst when set,
// otherwise requestsPerSecond.
func NewTokenBucket(requestsPerSecond float64, burst *float64) *TokenBucket {
	capacity := requestsPerSecond
	if burst != nil {
		capacity = *burst
	}
	if capacity < 0 {
		capacity = 0
	}
	rate := requestsPerSecond
	if rate < 0 {
		rate = 0
	}
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: rate,
		lastRefill: time.Now(),
	}
}

// TryTake refills from elapsed time and consumes one token if available.
// Rejection never queues; back-pressure is reject-and-respond.
func (b *TokenBucket) TryTake() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now

	if elapsed > 0 && b.refillRate > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
	}

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}
