// Package server wires HTTP handlers into a ServeMux for the NightOwl relay
// via routing helpers.
package server

import "net/http"

// Routes configures and returns an HTTP ServeMux with all application routes:
// the health check, the WebSocket endpoint, and message history.
func (a *App) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", a.HealthHandler)
	mux.HandleFunc("GET /ws/{identity}", a.WebSocketHandler)
	mux.HandleFunc("GET /history", a.HistoryHandler)
	return mux
}
