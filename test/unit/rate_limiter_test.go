package unit

import (
	"testing"
	"time"

	"github.com/Tyrowin/roomrelay/internal/server"
)

// TestRateLimiterBurst verifies that a fresh bucket admits exactly its burst
// capacity before rejecting.
func TestRateLimiterBurst(t *testing.T) {
	limiter := server.NewRateLimiter(10, 5)

	for i := 0; i < 10; i++ {
		if !limiter.Allow() {
			t.Fatalf("Message %d within burst capacity was rejected", i+1)
		}
	}

	if limiter.Allow() {
		t.Fatal("Message 11 should be rejected with the bucket exhausted")
	}
}

// TestRateLimiterRefill verifies that tokens are restored from elapsed
// wall-clock time between checks.
func TestRateLimiterRefill(t *testing.T) {
	limiter := server.NewRateLimiter(1, 100)

	if !limiter.Allow() {
		t.Fatal("First message should pass")
	}
	if limiter.Allow() {
		t.Fatal("Second immediate message should be rejected")
	}

	time.Sleep(30 * time.Millisecond)

	if !limiter.Allow() {
		t.Fatal("Message after refill window should pass")
	}
}

// TestRateLimiterRejectionConsumesNothing verifies that rejected checks do
// not burn tokens: after repeated rejections, a refill worth one token still
// admits exactly one message.
func TestRateLimiterRejectionConsumesNothing(t *testing.T) {
	limiter := server.NewRateLimiter(1, 20)

	if !limiter.Allow() {
		t.Fatal("First message should pass")
	}
	for i := 0; i < 5; i++ {
		if limiter.Allow() {
			t.Fatalf("Rejection %d should not admit", i+1)
		}
	}

	// 20 tokens/sec caps at capacity 1; one message should pass, not six.
	time.Sleep(120 * time.Millisecond)

	if !limiter.Allow() {
		t.Fatal("Message after refill should pass")
	}
	if limiter.Allow() {
		t.Fatal("Capacity must cap the refill at one token")
	}
}
