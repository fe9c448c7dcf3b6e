// Package server exposes the HTTP surface: the WebSocket upgrade endpoint and
// the read-only liveness and metrics endpoints for external monitoring.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketHandler validates and upgrades an inbound connection request, then
// attaches the resulting client to its room. Requests carry the client
// identity, optional display name, mandatory room token, and protocol version
// as query parameters. Gate rejections close with a policy-violation code and
// create no room or connection state.
func (reg *Registry) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := reg.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	query := r.URL.Query()
	roomID := strings.TrimSpace(query.Get("room"))
	if roomID == "" {
		rejectConnection(conn, "no room token provided, connection refused")
		return
	}

	client := NewClient(conn, reg, r.RemoteAddr, ClientInfo{
		ID:    query.Get("id"),
		Name:  query.Get("name"),
		Proto: query.Get("v"),
	})

	if _, err := reg.JoinOrCreate(roomID, client); err != nil {
		rejectConnection(conn, "room has been dissolved and cannot be joined yet")
		return
	}

	reg.startClientPumps(client)
}

// rejectConnection notifies the peer and closes with a policy-violation code
// before any relay state exists for the connection.
func rejectConnection(conn *websocket.Conn, text string) {
	deadline := time.Now().Add(writeWait)
	if payload := encodePayload(newErrorMessage(errKindPolicy, text)); payload != nil {
		if err := conn.SetWriteDeadline(deadline); err == nil {
			_ = conn.WriteMessage(websocket.TextMessage, payload)
		}
	}
	closeFrame := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, text)
	_ = conn.WriteControl(websocket.CloseMessage, closeFrame, deadline)
	if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
		log.Printf("Error closing rejected connection: %v", err)
	}
}

type healthResponse struct {
	OK      bool    `json:"ok"`
	Uptime  float64 `json:"uptime"`
	Rooms   int     `json:"rooms"`
	Clients int     `json:"clients"`
}

// roomDetail is the per-room section of the metrics response.
type roomDetail struct {
	Clients      int    `json:"clients"`
	Owner        string `json:"owner"`
	History      int    `json:"history"`
	LastActivity int64  `json:"lastActivity"`
}

type metricsResponse struct {
	OK             bool                  `json:"ok"`
	Uptime         float64               `json:"uptime"`
	Rooms          int                   `json:"rooms"`
	Clients        int                   `json:"clients"`
	DissolvedRooms int                   `json:"dissolvedRooms"`
	Metrics        MetricsSnapshot       `json:"metrics"`
	RoomsDetail    map[string]roomDetail `json:"roomsDetail"`
}

// HealthHandler reports process liveness along with room and connection counts.
func (reg *Registry) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, healthResponse{
		OK:      true,
		Uptime:  time.Since(reg.started).Seconds(),
		Rooms:   reg.RoomCount(),
		Clients: reg.ClientCount(),
	})
}

// MetricsHandler returns a snapshot of the relay counters and per-room detail.
// The snapshot is for external monitoring only; nothing in the relay consumes it.
func (reg *Registry) MetricsHandler(w http.ResponseWriter, _ *http.Request) {
	detail := make(map[string]roomDetail)
	reg.mu.RLock()
	openRooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		openRooms = append(openRooms, room)
	}
	reg.mu.RUnlock()

	for _, room := range openRooms {
		detail[room.ID()] = roomDetail{
			Clients:      room.MemberCount(),
			Owner:        room.Owner(),
			History:      len(room.HistorySnapshot()),
			LastActivity: room.LastActivity().UnixMilli(),
		}
	}

	writeJSON(w, metricsResponse{
		OK:             true,
		Uptime:         time.Since(reg.started).Seconds(),
		Rooms:          reg.RoomCount(),
		Clients:        reg.ClientCount(),
		DissolvedRooms: reg.CooldownCount(),
		Metrics:        reg.metrics.Snapshot(),
		RoomsDetail:    detail,
	})
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}
