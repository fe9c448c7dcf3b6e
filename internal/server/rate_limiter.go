// Package server implements a token bucket rate limiter for per-connection
// throttling that protects rooms from message floods.
package server

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled from elapsed wall-clock time at each
// check. A rejected check consumes no tokens.
type RateLimiter struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	rate      float64
	lastCheck time.Time
}

// NewRateLimiter creates a bucket with the given capacity that refills at
// refillRate tokens per second.
func NewRateLimiter(capacity int, refillRate float64) *RateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if refillRate <= 0 {
		refillRate = float64(capacity)
	}

	return &RateLimiter{
		tokens:    float64(capacity),
		capacity:  float64(capacity),
		rate:      refillRate,
		lastCheck: time.Now(),
	}
}

// Allow reports whether one message may pass, consuming a token if so.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastCheck).Seconds()
	rl.lastCheck = now

	if elapsed > 0 {
		rl.tokens += elapsed * rl.rate
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
	}

	if rl.tokens < 1 {
		return false
	}

	rl.tokens--
	return true
}
