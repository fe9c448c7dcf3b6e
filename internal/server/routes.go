// Package server wires HTTP handlers into a ServeMux for the roomrelay
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes bound to the provided registry: the liveness probe, the metrics
// snapshot, and the WebSocket endpoint.
func SetupRoutes(registry *Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", registry.HealthHandler)
	mux.HandleFunc("/metrics", registry.MetricsHandler)
	mux.HandleFunc("/ws", registry.WebSocketHandler)
	return mux
}
