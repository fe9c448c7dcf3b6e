// Package server defines shared connection metadata types and utility helpers
// that are reused across client and registry logic.
package server

import "strings"

// ClientInfo carries the identity fields a client declares on its upgrade
// request: a reusable id, an optional display name, and a protocol version.
type ClientInfo struct {
	ID    string
	Name  string
	Proto string
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
