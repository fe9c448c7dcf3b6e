// Package server models a single relay room: its owner, live member set,
// bounded history, and activity tracking. All room state is guarded by the
// room's own lock so one busy room never stalls another.
package server

import (
	"fmt"
	"sync"
	"time"
)

// Room groups live connections behind a shared token and keeps a bounded
// history for late joiners. The owner is assigned at creation and never
// reassigned while the room is open.
type Room struct {
	id string

	mu           sync.Mutex
	owner        string
	members      map[*Client]bool
	history      *HistoryBuffer
	lastActivity time.Time
	dissolved    bool

	metrics         *Metrics
	maxPendingBytes int64
}

func newRoom(id, ownerID string, historyLimit int, maxPendingBytes int64, metrics *Metrics) *Room {
	return &Room{
		id:              id,
		owner:           ownerID,
		members:         make(map[*Client]bool),
		history:         NewHistoryBuffer(historyLimit),
		lastActivity:    time.Now(),
		metrics:         metrics,
		maxPendingBytes: maxPendingBytes,
	}
}

// ID returns the room identifier, which doubles as its access token.
func (r *Room) ID() string {
	return r.id
}

// Owner returns the identity of the connection that created the room.
func (r *Room) Owner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

// MemberCount returns the number of attached connections.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// LastActivity returns the time of the most recent join or traffic.
func (r *Room) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// HistorySnapshot returns an ordered copy of the room history, oldest first.
func (r *Room) HistorySnapshot() []ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.Snapshot()
}

// attach adds a connection to the room, delivering the history snapshot and
// the join notices. The snapshot send and the member-set insert happen under
// one lock acquisition, so the new member observes no gap and no duplicate
// relative to concurrent broadcasts.
func (r *Room) attach(c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dissolved {
		return ErrRoomDissolved
	}

	if r.history.Len() > 0 {
		c.enqueue(encodePayload(historyBatch{Type: "history", Messages: r.history.Snapshot()}))
	}

	r.members[c] = true
	r.lastActivity = time.Now()

	display := c.displayName()
	isOwner := r.owner == c.id
	c.enqueue(encodePayload(newWelcomeNotice(fmt.Sprintf("welcome, %s (id: %s)", display, c.id), isOwner)))

	r.broadcastLocked(encodePayload(newSystemNotice(display+" joined")), nil)
	r.broadcastUserCountLocked()
	r.broadcastRosterLocked()
	return nil
}

// detach removes a connection and announces the departure. It reports whether
// the connection was still a member. The room itself is never deleted here;
// reclamation of empty rooms belongs to the reaper.
func (r *Room) detach(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.members[c] {
		return false
	}

	delete(r.members, c)
	r.lastActivity = time.Now()

	r.broadcastLocked(encodePayload(newSystemNotice(c.displayName()+" left")), nil)
	r.broadcastUserCountLocked()
	r.broadcastRosterLocked()
	return true
}

// PostContent stamps a content message, appends it to the history, and fans
// it out to every member including the sender. The history append is
// unconditional so late joiners observe the message even if every live
// delivery is skipped.
func (r *Room) PostContent(senderID, name, text string) ChatMessage {
	msg := stampMessage(senderID, name, text)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastActivity = time.Now()
	r.history.Append(msg)
	r.broadcastLocked(encodePayload(msg), nil)
	return msg
}

// touch stamps the room's activity clock.
func (r *Room) touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActivity = time.Now()
}

// rebroadcastRoster resends the member list, typically after a rename.
func (r *Room) rebroadcastRoster() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastRosterLocked()
}
