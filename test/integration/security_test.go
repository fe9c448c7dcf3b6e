package integration

import (
	"net/http"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomrelay/internal/server"
	"github.com/Tyrowin/roomrelay/test/testhelpers"
)

// TestMissingRoomTokenRejected verifies that an upgrade without a room token
// is refused with a policy-violation close and creates no relay state.
func TestMissingRoomTokenRejected(t *testing.T) {
	registry, ts := testhelpers.NewRelayServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(testhelpers.WebSocketURL(ts, ""), nil)
	if err != nil {
		t.Fatalf("Handshake should succeed before the gate check: %v", err)
	}
	defer func() { _ = conn.Close() }()

	frame := testhelpers.ReadFrame(t, conn, frameTimeout)
	if frame.Type() != "error" || frame["kind"] != "policy" {
		t.Errorf("Rejection frame = %v, want a policy error", frame)
	}
	testhelpers.ExpectClose(t, conn, websocket.ClosePolicyViolation, frameTimeout)

	if registry.RoomCount() != 0 || registry.ClientCount() != 0 {
		t.Errorf("Rejected upgrade left state behind: rooms=%d clients=%d",
			registry.RoomCount(), registry.ClientCount())
	}
}

// TestBlankRoomTokenRejected verifies that a whitespace-only token is treated
// as missing.
func TestBlankRoomTokenRejected(t *testing.T) {
	_, ts := testhelpers.NewRelayServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(testhelpers.WebSocketURL(ts, "room=%20%20"), nil)
	if err != nil {
		t.Fatalf("Handshake should succeed before the gate check: %v", err)
	}
	defer func() { _ = conn.Close() }()

	testhelpers.ExpectClose(t, conn, websocket.ClosePolicyViolation, frameTimeout)
}

// TestDisallowedOriginRejected verifies that a declared origin outside the
// allow-list, the request host, and loopback is refused at the upgrade.
func TestDisallowedOriginRejected(t *testing.T) {
	_, ts := testhelpers.NewRelayServer(t, nil)

	header := http.Header{"Origin": []string{"http://evil.example.com"}}
	conn, resp, err := websocket.DefaultDialer.Dial(testhelpers.WebSocketURL(ts, "room=lobby"), header)
	if err == nil {
		_ = conn.Close()
		t.Fatal("Upgrade from a disallowed origin should fail")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("Status = %d, want 403", resp.StatusCode)
	}
}

// TestAllowListedOriginAccepted verifies that a configured origin passes the
// gate even when it matches neither host nor loopback.
func TestAllowListedOriginAccepted(t *testing.T) {
	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	_, ts := testhelpers.NewRelayServer(t, cfg)

	header := http.Header{"Origin": []string{"https://app.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(testhelpers.WebSocketURL(ts, "room=lobby"), header)
	if err != nil {
		t.Fatalf("Upgrade from allow-listed origin failed: %v", err)
	}
	_ = conn.Close()
}

// TestLoopbackOriginAccepted verifies that loopback origins are always
// allowed for local tooling and development.
func TestLoopbackOriginAccepted(t *testing.T) {
	_, ts := testhelpers.NewRelayServer(t, nil)

	header := http.Header{"Origin": []string{"http://localhost:3000"}}
	conn, _, err := websocket.DefaultDialer.Dial(testhelpers.WebSocketURL(ts, "room=lobby"), header)
	if err != nil {
		t.Fatalf("Upgrade from loopback origin failed: %v", err)
	}
	_ = conn.Close()
}

// TestGeneratedIdentityForAnonymousClient verifies that a connection without
// a declared id still gets a stable server-generated identity.
func TestGeneratedIdentityForAnonymousClient(t *testing.T) {
	_, ts := testhelpers.NewRelayServer(t, nil)

	anon := testhelpers.Dial(t, ts, "room=anon")
	testhelpers.WaitForType(t, anon, "roster", frameTimeout)

	if err := anon.WriteMessage(websocket.TextMessage, []byte(`{"type":"text","text":"who am I"}`)); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
	echo := testhelpers.WaitForType(t, anon, "message", frameTimeout)
	if from, _ := echo["from"].(string); from == "" {
		t.Error("Anonymous client message carries no generated identity")
	}
}
