// Package server manages individual WebSocket connections, handling read/write
// pumps, message dispatch, rate limiting, and lifecycle control.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Client represents one relayed connection: its identity, display name,
// outbound queue, rate-limiter state, and liveness flag.
type Client struct {
	conn     *websocket.Conn
	registry *Registry
	room     *Room
	send     chan []byte
	addr     string
	id       string
	proto    string

	mu          sync.Mutex
	name        string
	closed      bool
	closeCode   int
	closeReason string

	alive           atomic.Bool
	pendingBytes    atomic.Int64
	maxPendingBytes int64
	limiter         *RateLimiter
	maxMessageSize  int
	maxNameLength   int
	pongWait        time.Duration
}

// NewClient creates a Client for the provided WebSocket connection. A blank
// declared identity gets a server-generated one; the display name is trimmed
// and capped at the configured length.
func NewClient(conn *websocket.Conn, registry *Registry, addr string, info ClientInfo) *Client {
	cfg := registry.cfg

	if conn != nil {
		// Frame limit leaves headroom over the payload cap for the JSON
		// envelope and escaping; payload length is enforced in dispatch.
		conn.SetReadLimit(int64(cfg.MaxMessageSize)*2 + 1024)
	}

	id := strings.TrimSpace(info.ID)
	if id == "" {
		id = uuid.NewString()
	}

	proto := strings.TrimSpace(info.Proto)
	if proto == "" {
		proto = protocolVersion
	}

	c := &Client{
		conn:            conn,
		registry:        registry,
		send:            make(chan []byte, 256),
		addr:            addr,
		id:              id,
		proto:           proto,
		name:            truncateRunes(strings.TrimSpace(info.Name), cfg.MaxNameLength),
		closeCode:       websocket.CloseNormalClosure,
		maxPendingBytes: cfg.MaxPendingBytes,
		limiter:         NewRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillRate),
		maxMessageSize:  cfg.MaxMessageSize,
		maxNameLength:   cfg.MaxNameLength,
		pongWait:        2 * cfg.HeartbeatInterval,
	}
	c.alive.Store(true)
	return c
}

// ID returns the connection's stable identity.
func (c *Client) ID() string {
	return c.id
}

// Name returns the current display name, which may be empty.
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *Client) setName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

func (c *Client) displayName() string {
	if name := c.Name(); name != "" {
		return name
	}
	return c.id
}

// GetSendChan returns the client's send channel for reading outgoing messages.
// This channel is read-only from the caller's perspective.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// PendingBytes returns the number of bytes queued but not yet written.
func (c *Client) PendingBytes() int64 {
	return c.pendingBytes.Load()
}

// enqueue queues a payload for delivery without blocking. It reports false
// when the client is closed, its pending bytes are over the backpressure
// threshold, or the queue is full.
func (c *Client) enqueue(payload []byte) bool {
	if payload == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if c.pendingBytes.Load() >= c.maxPendingBytes {
		return false
	}

	select {
	case c.send <- payload:
		c.pendingBytes.Add(int64(len(payload)))
		return true
	default:
		return false
	}
}

// closeSend marks the client closed and closes its outbound queue so the
// write pump drains remaining messages and finishes with the given close
// code. Safe to call more than once; later calls are ignored.
func (c *Client) closeSend(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
}

func (c *Client) closeStatus() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason
}

// terminate abruptly drops the underlying connection without a close
// handshake. Used by the heartbeat sweep for half-open sockets.
func (c *Client) terminate() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		log.Printf("Error terminating connection from %s: %v", c.addr, err)
	}
}

func (c *Client) ping() {
	if c.conn == nil {
		return
	}
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing ping message to %s: %v", c.addr, err)
		}
	}
}

// setupReadConnection configures read deadlines and the pong handler that
// feeds the heartbeat monitor's liveness flag.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		c.alive.Store(true)
		if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// handleReadError logs an appropriate message for a failed read.
func (c *Client) handleReadError(err error) {
	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("Frame from %s exceeded the read limit", c.addr)
		return
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Printf("Client %s disconnected: %v", c.addr, err)
		return
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		log.Printf("Client %s connection closed: %v", c.addr, err)
		return
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		log.Printf("Unexpected WebSocket error from %s: %v", c.addr, err)
		return
	}

	log.Printf("WebSocket read error from %s: %v", c.addr, err)
}

func (c *Client) readPump() {
	defer func() {
		c.registry.Leave(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection in readPump: %v", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			break
		}
		c.handleFrame(raw)
	}
}

// handleFrame dispatches one inbound message. Any panic while processing is
// contained here so malformed input from one client never affects others.
func (c *Client) handleFrame(raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic handling message from %s: %v", c.addr, r)
		}
	}()

	in := parseInbound(raw)
	switch in.Type {
	case "text":
		c.handleContent(in)
	case "updateName":
		c.handleRename(in)
	case "dissolveRoom":
		c.handleDissolve()
	}
}

// parseInbound decodes a raw frame. Unparseable payloads and unrecognized
// shapes fall back to opaque text, which stays subject to size and rate checks.
func parseInbound(raw []byte) inboundMessage {
	var in inboundMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		return inboundMessage{Type: "text", Text: string(raw)}
	}

	switch in.Type {
	case "text", "updateName", "dissolveRoom":
		return in
	default:
		if in.Text == "" {
			in.Text = string(raw)
		}
		return inboundMessage{Type: "text", Text: in.Text, Name: in.Name}
	}
}

func (c *Client) handleContent(in inboundMessage) {
	if utf8.RuneCountInString(in.Text) > c.maxMessageSize {
		c.registry.metrics.rejectedTooLong.Add(1)
		c.enqueue(encodePayload(newMessageError(errKindOversize, "message too long, rejected by server")))
		return
	}

	if !c.limiter.Allow() {
		c.registry.metrics.rateLimited.Add(1)
		c.enqueue(encodePayload(newMessageError(errKindRateLimited, "sending too fast, please slow down")))
		return
	}

	room := c.room
	if room == nil {
		return
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = c.Name()
	}

	msg := room.PostContent(c.id, name, in.Text)
	c.registry.metrics.messagesTotal.Add(1)
	log.Printf("[room %s] %s: len=%d", room.ID(), c.displayName(), len(msg.Text))
}

func (c *Client) handleRename(in inboundMessage) {
	trimmed := strings.TrimSpace(in.Name)
	if utf8.RuneCountInString(trimmed) > c.maxNameLength {
		c.enqueue(encodePayload(newMessageError(errKindOversize, "display name too long")))
		return
	}

	c.setName(trimmed)

	if room := c.room; room != nil {
		room.touch()
		room.rebroadcastRoster()
	}
}

func (c *Client) handleDissolve() {
	room := c.room
	if room == nil {
		c.enqueue(encodePayload(newErrorMessage(errKindNotFound, "room does not exist")))
		return
	}

	err := c.registry.Dissolve(room.ID(), c.id)
	switch {
	case errors.Is(err, ErrRoomNotFound):
		c.enqueue(encodePayload(newErrorMessage(errKindNotFound, "room does not exist")))
	case errors.Is(err, ErrNotOwner):
		c.enqueue(encodePayload(newErrorMessage(errKindAuthorization, "only the room owner can dissolve the room")))
	}
}

func (c *Client) writePump() {
	defer c.closeConnection()

	for {
		message, ok := <-c.send
		if !c.handleMessage(message, ok) {
			return
		}
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		log.Printf("Error closing connection in writePump: %v", err)
	}
}

// handleMessage processes one outgoing message and returns false when the
// pump should stop.
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for %s: %v", c.addr, err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	c.pendingBytes.Add(-int64(len(message)))
	return c.writeTextMessage(message)
}

// writeCloseMessage finishes the connection with the close code recorded when
// the outbound queue was shut.
func (c *Client) writeCloseMessage() bool {
	code, reason := c.closeStatus()
	payload := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteMessage(websocket.CloseMessage, payload); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %s: %v", c.addr, err)
		}
	}
	return false
}

// writeTextMessage writes a text message and any queued messages.
func (c *Client) writeTextMessage(message []byte) bool {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		log.Printf("Error creating writer for %s: %v", c.addr, err)
		return false
	}

	if _, err := w.Write(message); err != nil {
		log.Printf("Error writing message to %s: %v", c.addr, err)
		return false
	}

	if err := w.Close(); err != nil {
		log.Printf("Error closing writer for %s: %v", c.addr, err)
		return false
	}
	return true
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
