// Package testhelpers provides common utilities and helper functions for
// testing the roomrelay server.
//
// This package contains reusable test utilities that are shared across unit
// and integration tests. It provides functions for creating relay test
// servers, dialing WebSocket connections, and reading typed frames to reduce
// code duplication in test files.
package testhelpers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomrelay/internal/server"
)

// Frame is a decoded outbound message, keyed by JSON field name.
type Frame map[string]any

// Type returns the frame's type tag, or the empty string.
func (f Frame) Type() string {
	t, _ := f["type"].(string)
	return t
}

// Text returns the frame's text field, or the empty string.
func (f Frame) Text() string {
	t, _ := f["text"].(string)
	return t
}

// NewRelayServer creates a registry from the given config and serves its
// routes on an httptest server. Both are torn down when the test ends.
func NewRelayServer(t *testing.T, cfg *server.Config) (*server.Registry, *httptest.Server) {
	t.Helper()

	registry := server.NewRegistry(cfg)
	ts := httptest.NewServer(server.SetupRoutes(registry))
	t.Cleanup(func() {
		ts.Close()
		_ = registry.Shutdown(2 * time.Second)
	})
	return registry, ts
}

// WebSocketURL converts an httptest server URL to the ws:// endpoint with the
// given query string, e.g. "room=lobby&id=alice".
func WebSocketURL(ts *httptest.Server, query string) string {
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if query != "" {
		url += "?" + query
	}
	return url
}

// Dial opens a WebSocket connection to the relay test server. The connection
// is closed when the test ends.
func Dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(WebSocketURL(ts, query), nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// ReadFrame reads one frame from the connection, failing the test if nothing
// arrives before the timeout.
func ReadFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) Frame {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("Failed to decode frame %q: %v", raw, err)
	}
	return frame
}

// WaitForType reads frames until one with the given type tag arrives,
// discarding interleaved notices. It fails the test after the timeout.
func WaitForType(t *testing.T, conn *websocket.Conn, frameType string, timeout time.Duration) Frame {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("Timed out waiting for frame of type %q", frameType)
		}
		frame := ReadFrame(t, conn, remaining)
		if frame.Type() == frameType {
			return frame
		}
	}
}

// ExpectClose reads until the connection closes, failing the test if the
// close code does not match or data keeps arriving past the timeout.
func ExpectClose(t *testing.T, conn *websocket.Conn, code int, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("Failed to set read deadline: %v", err)
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, code) {
				return
			}
			t.Fatalf("Expected close code %d, got error: %v", code, err)
		}
	}
}

// ExpectSilence asserts that no frame arrives within the given window.
func ExpectSilence(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(window)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	if _, raw, err := conn.ReadMessage(); err == nil {
		t.Fatalf("Expected no frame, got %q", raw)
	}
}
