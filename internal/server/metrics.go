// Package server tracks relay counters exposed on the read-only metrics
// endpoint. Counters are advisory only and never feed back into relay logic.
package server

import "sync/atomic"

// Metrics aggregates process-lifetime counters for external monitoring.
type Metrics struct {
	rejectedTooLong   atomic.Int64
	rateLimited       atomic.Int64
	broadcastsSkipped atomic.Int64
	messagesTotal     atomic.Int64
	dissolveBlocked   atomic.Int64
}

// MetricsSnapshot is the JSON form of the counters at one point in time.
type MetricsSnapshot struct {
	RejectedTooLong   int64 `json:"rejectedTooLong"`
	RateLimited       int64 `json:"rateLimited"`
	BroadcastsSkipped int64 `json:"broadcastsSkipped"`
	MessagesTotal     int64 `json:"messagesTotal"`
	DissolveBlocked   int64 `json:"dissolveBlocked"`
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		RejectedTooLong:   m.rejectedTooLong.Load(),
		RateLimited:       m.rateLimited.Load(),
		BroadcastsSkipped: m.broadcastsSkipped.Load(),
		MessagesTotal:     m.messagesTotal.Load(),
		DissolveBlocked:   m.dissolveBlocked.Load(),
	}
}
