package integration

import (
	"testing"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomrelay/test/testhelpers"
)

// TestOwnerDissolvesRoom verifies the full dissolution flow: every member
// receives the terminal notice followed by a normal closure, and the room id
// is refused during the cooldown.
func TestOwnerDissolvesRoom(t *testing.T) {
	registry, ts := testhelpers.NewRelayServer(t, nil)

	owner := testhelpers.Dial(t, ts, "room=citadel&id=alice")
	testhelpers.WaitForType(t, owner, "roster", frameTimeout)
	member := testhelpers.Dial(t, ts, "room=citadel&id=bob")
	testhelpers.WaitForType(t, member, "roster", frameTimeout)

	if err := owner.WriteMessage(websocket.TextMessage, []byte(`{"type":"dissolveRoom"}`)); err != nil {
		t.Fatalf("Failed to send dissolve request: %v", err)
	}

	notice := testhelpers.WaitForType(t, member, "roomDissolved", frameTimeout)
	if notice.Text() == "" {
		t.Error("Terminal notice carries no text")
	}
	testhelpers.ExpectClose(t, member, websocket.CloseNormalClosure, frameTimeout)
	testhelpers.ExpectClose(t, owner, websocket.CloseNormalClosure, frameTimeout)

	if registry.RoomCount() != 0 {
		t.Errorf("RoomCount = %d after dissolution, want 0", registry.RoomCount())
	}

	// Rejoining the same id inside the cooldown is a policy violation.
	late, _, err := websocket.DefaultDialer.Dial(testhelpers.WebSocketURL(ts, "room=citadel&id=carol"), nil)
	if err != nil {
		t.Fatalf("Handshake should succeed before the cooldown check: %v", err)
	}
	defer func() { _ = late.Close() }()

	frame := testhelpers.ReadFrame(t, late, frameTimeout)
	if frame.Type() != "error" || frame["kind"] != "policy" {
		t.Errorf("Cooldown rejection frame = %v, want a policy error", frame)
	}
	testhelpers.ExpectClose(t, late, websocket.ClosePolicyViolation, frameTimeout)

	if got := registry.Metrics().Snapshot().DissolveBlocked; got != 1 {
		t.Errorf("dissolveBlocked = %d, want 1", got)
	}
}

// TestNonOwnerDissolveDenied verifies that a non-owner request is refused,
// the requester alone is notified, and the room keeps operating.
func TestNonOwnerDissolveDenied(t *testing.T) {
	registry, ts := testhelpers.NewRelayServer(t, nil)

	owner := testhelpers.Dial(t, ts, "room=fortress&id=alice")
	testhelpers.WaitForType(t, owner, "roster", frameTimeout)
	member := testhelpers.Dial(t, ts, "room=fortress&id=bob")
	testhelpers.WaitForType(t, member, "roster", frameTimeout)

	if err := member.WriteMessage(websocket.TextMessage, []byte(`{"type":"dissolveRoom"}`)); err != nil {
		t.Fatalf("Failed to send dissolve request: %v", err)
	}

	denial := testhelpers.WaitForType(t, member, "error", frameTimeout)
	if denial["kind"] != "authorization" {
		t.Errorf("Denial kind = %v, want authorization", denial["kind"])
	}
	if registry.RoomCount() != 1 {
		t.Errorf("RoomCount = %d after denied dissolve, want 1", registry.RoomCount())
	}

	// The room and both connections keep working.
	if err := member.WriteMessage(websocket.TextMessage, []byte(`{"type":"text","text":"still here"}`)); err != nil {
		t.Fatalf("Connection unusable after denial: %v", err)
	}
	if frame := testhelpers.WaitForType(t, owner, "message", frameTimeout); frame.Text() != "still here" {
		t.Errorf("Owner received %q, want still here", frame.Text())
	}
}
