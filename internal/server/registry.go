// Package server coordinates the room directory, dissolution cooldowns, and
// connection bookkeeping for the roomrelay service via the Registry type.
package server

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Registry failure modes surfaced to callers.
var (
	// ErrRoomDissolved is returned when a room identifier is still inside its
	// dissolution cooldown and may not be reused.
	ErrRoomDissolved = errors.New("room is dissolved and in cooldown")

	// ErrRoomNotFound is returned when an operation targets an unknown room.
	ErrRoomNotFound = errors.New("room not found")

	// ErrNotOwner is returned when a dissolution is requested by a connection
	// that does not own the room.
	ErrNotOwner = errors.New("only the room owner can dissolve the room")
)

// Registry owns the room directory and the dissolution-cooldown table. It is
// constructed once at process start and passed to handlers explicitly; the
// background heartbeat and reaper timers are owned by its lifecycle.
type Registry struct {
	cfg      Config
	metrics  *Metrics
	policy   *originPolicy
	upgrader websocket.Upgrader
	started  time.Time

	mu        sync.RWMutex
	rooms     map[string]*Room
	dissolved map[string]time.Time
	clients   map[*Client]bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRegistry creates a Registry with the provided configuration. Passing nil
// uses the defaults. The background timers are not running until Start.
func NewRegistry(cfg *Config) *Registry {
	resolved := defaultConfig()
	if cfg != nil {
		resolved = sanitizeConfig(*cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	reg := &Registry{
		cfg:       resolved,
		metrics:   &Metrics{},
		policy:    newOriginPolicy(resolved.AllowedOrigins),
		started:   time.Now(),
		rooms:     make(map[string]*Room),
		dissolved: make(map[string]time.Time),
		clients:   make(map[*Client]bool),
		ctx:       ctx,
		cancel:    cancel,
	}
	reg.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     reg.policy.checkOrigin,
	}
	return reg
}

// Config returns a copy of the registry's effective configuration.
func (reg *Registry) Config() Config {
	cfg := reg.cfg
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// Metrics returns the registry's counter set.
func (reg *Registry) Metrics() *Metrics {
	return reg.metrics
}

// Start launches the heartbeat sweep and the idle-room reaper.
func (reg *Registry) Start() {
	reg.wg.Add(2)
	go func() {
		defer reg.wg.Done()
		reg.runHeartbeat()
	}()
	go func() {
		defer reg.wg.Done()
		reg.runReaper()
	}()
	log.Println("Registry started with heartbeat and reaper timers")
}

// JoinOrCreate attaches the connection to the named room, creating the room
// with the connection as owner if it does not exist. Creation and ownership
// assignment happen under the directory lock, so exactly one of two racing
// first joins becomes owner. A room inside its dissolution cooldown refuses
// the join; an expired cooldown record is cleared.
func (reg *Registry) JoinOrCreate(roomID string, c *Client) (*Room, error) {
	reg.mu.Lock()
	if until, ok := reg.dissolved[roomID]; ok {
		if time.Now().Before(until) {
			reg.mu.Unlock()
			reg.metrics.dissolveBlocked.Add(1)
			return nil, ErrRoomDissolved
		}
		delete(reg.dissolved, roomID)
	}

	room, exists := reg.rooms[roomID]
	if !exists {
		room = newRoom(roomID, c.id, reg.cfg.HistoryLimit, reg.cfg.MaxPendingBytes, reg.metrics)
		reg.rooms[roomID] = room
	}
	reg.clients[c] = true

	// Attach under the directory lock so the room cannot be dissolved or
	// reaped between lookup and attach. The attach itself only performs
	// non-blocking queue writes.
	err := room.attach(c)
	if err != nil {
		delete(reg.clients, c)
	}
	reg.mu.Unlock()

	if err != nil {
		reg.metrics.dissolveBlocked.Add(1)
		return nil, err
	}

	c.room = room
	if exists {
		log.Printf("Client %s joined room %s. Members: %d", c.id, roomID, room.MemberCount())
	} else {
		log.Printf("Client %s created room %s as owner", c.id, roomID)
	}
	return room, nil
}

// Leave removes the connection from its room, announces the departure, and
// closes the outbound queue. The room is left in place even if now empty;
// deleting idle rooms is exclusively the reaper's responsibility.
func (reg *Registry) Leave(c *Client) {
	reg.mu.Lock()
	delete(reg.clients, c)
	reg.mu.Unlock()

	if room := c.room; room != nil && room.detach(c) {
		log.Printf("Client %s left room %s. Members: %d", c.id, room.ID(), room.MemberCount())
	}
	c.closeSend(websocket.CloseNormalClosure, "")
}

// Dissolve tears the room down on behalf of its owner: every member receives
// a terminal notice and a normal closure, the room is deleted, and the room
// identifier enters its reuse cooldown.
func (reg *Registry) Dissolve(roomID, requesterID string) error {
	reg.mu.Lock()
	room, ok := reg.rooms[roomID]
	if !ok {
		reg.mu.Unlock()
		return ErrRoomNotFound
	}

	room.mu.Lock()
	if room.owner != requesterID {
		room.mu.Unlock()
		reg.mu.Unlock()
		return ErrNotOwner
	}

	room.dissolved = true
	delete(reg.rooms, roomID)
	reg.dissolved[roomID] = time.Now().Add(reg.cfg.DissolveCooldown)

	payload := encodePayload(newRoomDissolvedNotice())
	members := make([]*Client, 0, len(room.members))
	for member := range room.members {
		member.enqueue(payload)
		members = append(members, member)
		delete(room.members, member)
		delete(reg.clients, member)
	}
	room.mu.Unlock()
	reg.mu.Unlock()

	for _, member := range members {
		member.closeSend(websocket.CloseNormalClosure, "room dissolved by owner")
	}

	log.Printf("Room %s dissolved by owner %s; cooldown until %s",
		roomID, requesterID, time.Now().Add(reg.cfg.DissolveCooldown).Format(time.RFC3339))
	return nil
}

// Reap deletes rooms that have had zero members for longer than the room TTL
// and purges expired dissolution records. Rooms holding members are never
// reaped regardless of age. It returns the number of rooms removed.
func (reg *Registry) Reap(now time.Time) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	removed := 0
	for id, room := range reg.rooms {
		room.mu.Lock()
		expired := len(room.members) == 0 && now.Sub(room.lastActivity) > reg.cfg.RoomTTL
		room.mu.Unlock()

		if expired {
			delete(reg.rooms, id)
			removed++
			log.Printf("Reaped idle room %s", id)
		}
	}

	for id, until := range reg.dissolved {
		if !now.Before(until) {
			delete(reg.dissolved, id)
		}
	}

	return removed
}

// Room returns the named room if it is currently open.
func (reg *Registry) Room(id string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[id]
	return room, ok
}

// RoomCount returns the number of open rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// ClientCount returns the number of registered connections.
func (reg *Registry) ClientCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.clients)
}

// CooldownCount returns the number of dissolution records still in effect.
func (reg *Registry) CooldownCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.dissolved)
}

func (reg *Registry) clientSnapshot() []*Client {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	clients := make([]*Client, 0, len(reg.clients))
	for c := range reg.clients {
		clients = append(clients, c)
	}
	return clients
}

func (reg *Registry) startClientPumps(c *Client) {
	reg.wg.Add(2)
	go func() {
		defer reg.wg.Done()
		c.writePump()
	}()
	go func() {
		defer reg.wg.Done()
		c.readPump()
	}()
}

// Shutdown stops the background timers, closes all client connections, and
// waits for the pump goroutines to finish or the timeout to elapse.
func (reg *Registry) Shutdown(timeout time.Duration) error {
	log.Println("Initiating registry shutdown...")
	reg.cancel()

	for _, c := range reg.clientSnapshot() {
		c.closeSend(websocket.CloseGoingAway, "server shutting down")
		if c.conn != nil {
			if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
				log.Printf("Error closing client connection from %s: %v", c.addr, err)
			}
		}
	}

	done := make(chan struct{})
	go func() {
		reg.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Registry shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Registry shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
