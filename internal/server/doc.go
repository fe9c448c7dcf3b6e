// Package server implements the core WebSocket relay for roomrelay: a
// registry of ephemeral token-gated rooms with bounded history, per-connection
// rate limiting, backpressure-aware broadcast, and timed reclamation of dead
// connections and idle rooms.
//
// The implementation is organized into specialized files for configuration,
// the room registry, rooms, clients, broadcasting, background timers, routing,
// and HTTP handlers to keep the codebase maintainable and testable as the
// project grows.
package server
