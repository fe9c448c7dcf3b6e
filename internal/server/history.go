// Package server keeps a bounded FIFO log of relayed messages per room so
// that late joiners can catch up on recent traffic.
package server

// HistoryBuffer is a strict FIFO log bounded at a fixed number of entries.
// When full, the oldest entry is evicted first. It is not safe for concurrent
// use; callers synchronize through the owning room's lock.
type HistoryBuffer struct {
	entries []ChatMessage
	limit   int
}

// NewHistoryBuffer creates a buffer holding at most limit entries.
func NewHistoryBuffer(limit int) *HistoryBuffer {
	if limit <= 0 {
		limit = 1
	}
	return &HistoryBuffer{
		entries: make([]ChatMessage, 0, limit),
		limit:   limit,
	}
}

// Append adds a message, evicting the oldest entry if the buffer is full.
func (h *HistoryBuffer) Append(msg ChatMessage) {
	if len(h.entries) >= h.limit {
		n := copy(h.entries, h.entries[1:])
		h.entries = h.entries[:n]
	}
	h.entries = append(h.entries, msg)
}

// Len returns the number of stored entries.
func (h *HistoryBuffer) Len() int {
	return len(h.entries)
}

// Snapshot returns an ordered copy of the stored entries, oldest first.
func (h *HistoryBuffer) Snapshot() []ChatMessage {
	out := make([]ChatMessage, len(h.entries))
	copy(out, h.entries)
	return out
}
