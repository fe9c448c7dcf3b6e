package unit

import (
	"fmt"
	"testing"

	"github.com/Tyrowin/roomrelay/internal/server"
)

func message(id string) server.ChatMessage {
	return server.ChatMessage{Type: "message", ID: id, From: "alice", Text: "payload-" + id}
}

// TestHistoryBufferFIFOOrder verifies that entries come back in insertion
// order, oldest first.
func TestHistoryBufferFIFOOrder(t *testing.T) {
	buf := server.NewHistoryBuffer(10)
	for i := 0; i < 3; i++ {
		buf.Append(message(fmt.Sprintf("m%d", i)))
	}

	snapshot := buf.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("Snapshot length = %d, want 3", len(snapshot))
	}
	for i, msg := range snapshot {
		if want := fmt.Sprintf("m%d", i); msg.ID != want {
			t.Errorf("Entry %d = %q, want %q", i, msg.ID, want)
		}
	}
}

// TestHistoryBufferEviction verifies that the buffer never exceeds its limit
// and evicts strictly oldest-first when full.
func TestHistoryBufferEviction(t *testing.T) {
	const limit = 100
	buf := server.NewHistoryBuffer(limit)

	for i := 0; i < limit+25; i++ {
		buf.Append(message(fmt.Sprintf("m%d", i)))
		if buf.Len() > limit {
			t.Fatalf("Buffer grew to %d entries, limit is %d", buf.Len(), limit)
		}
	}

	snapshot := buf.Snapshot()
	if len(snapshot) != limit {
		t.Fatalf("Snapshot length = %d, want %d", len(snapshot), limit)
	}
	if snapshot[0].ID != "m25" {
		t.Errorf("Oldest surviving entry = %q, want m25", snapshot[0].ID)
	}
	if snapshot[limit-1].ID != fmt.Sprintf("m%d", limit+24) {
		t.Errorf("Newest entry = %q, want m%d", snapshot[limit-1].ID, limit+24)
	}
}

// TestHistoryBufferSnapshotIsCopy verifies that mutating a snapshot does not
// affect the buffer contents.
func TestHistoryBufferSnapshotIsCopy(t *testing.T) {
	buf := server.NewHistoryBuffer(5)
	buf.Append(message("original"))

	snapshot := buf.Snapshot()
	snapshot[0].ID = "mutated"

	if got := buf.Snapshot()[0].ID; got != "original" {
		t.Errorf("Buffer entry = %q, want original", got)
	}
}

// TestColorForIsDeterministic verifies that a sender identity always derives
// the same display color and that the color is a hex triplet.
func TestColorForIsDeterministic(t *testing.T) {
	first := server.ColorFor("alice")
	for i := 0; i < 10; i++ {
		if got := server.ColorFor("alice"); got != first {
			t.Fatalf("ColorFor changed between calls: %q then %q", first, got)
		}
	}
	if len(first) != 7 || first[0] != '#' {
		t.Errorf("ColorFor = %q, want #RRGGBB form", first)
	}
}
