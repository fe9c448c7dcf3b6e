// Package server constructs and starts the roomrelay HTTP service with
// helpers that apply sensible production defaults.
package server

import (
	"context"
	"log"
	"net/http"
	"time"
)

// CreateServer builds the HTTP server that fronts the relay. The read and
// write timeouts cover the plain endpoints only; upgraded WebSocket
// connections are hijacked from the server and governed by the pump deadlines
// instead.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer begins listening for connections and blocks until the server
// stops.
func StartServer(server *http.Server) error {
	log.Printf("Relay listening on %s", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer stops accepting new connections and waits for in-flight
// requests to finish or the timeout to elapse. WebSocket connections are not
// waited on here; the registry closes those itself.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	log.Println("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		return err
	}

	log.Println("HTTP server shutdown completed")
	return nil
}
