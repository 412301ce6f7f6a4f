// Package server exposes the HTTP boundary of the relay: WebSocket upgrades,
// the health check, and the message history endpoint.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// App owns the relay's boundary state: configuration, the registry, the relay,
// and the durable log. Handlers hang off App so nothing in the package is
// ambient global state.
type App struct {
	cfg      *Config
	registry *Registry
	relay    *Relay
	history  MessageLog
	upgrader websocket.Upgrader

	wg sync.WaitGroup
}

// NewApp wires the boundary around an already-constructed registry, relay, and
// message log.
func NewApp(cfg *Config, registry *Registry, relay *Relay, history MessageLog) *App {
	policy := newOriginPolicy(cfg.Origins())
	return &App{
		cfg:      cfg,
		registry: registry,
		relay:    relay,
		history:  history,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
	}
}

// WebSocketHandler upgrades the request at /ws/{identity} and starts the
// session pumps. The identity is caller-chosen; the only policy enforced at
// this boundary is that it must be non-empty. If the identity is already
// registered, the newest connection silently wins and the displaced one is
// force-closed so it does not linger believing it is still registered.
func (a *App) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")
	if identity == "" {
		http.Error(w, "A non-empty client identity is required.", http.StatusBadRequest)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed for %q: %v", identity, err)
		return
	}

	client := NewClient(conn, identity, r.RemoteAddr, a.relay, a.registry, a.cfg)

	if displaced := a.registry.Register(identity, client); displaced != nil {
		displaced.shutdown("displaced by a newer connection under the same identity")
	}
	log.Printf("Client %q registered from %s. Total clients: %d", identity, r.RemoteAddr, a.registry.Len())

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		client.writePump()
	}()
	go func() {
		defer a.wg.Done()
		client.readPump()
	}()
}

// HistoryHandler serves the most recent messages, newest first, as a JSON
// array. The limit query parameter may lower the configured maximum.
func (a *App) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit := a.cfg.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	messages, err := a.history.RecentFirst(limit)
	if err != nil {
		log.Printf("History fetch failed: %v", err)
		http.Error(w, "Failed to fetch message history", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(messages); err != nil {
		log.Printf("Error writing history response: %v", err)
	}
}

// HealthHandler provides a simple health check endpoint that returns server
// status as plain text.
func (a *App) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "NightOwl relay is running!")
}

// Shutdown force-closes every registered session and waits for the pump
// goroutines to finish, or until the timeout is reached.
func (a *App) Shutdown(timeout time.Duration) error {
	clients := a.registry.Snapshot()
	for _, client := range clients {
		client.shutdown("server shutting down")
	}
	log.Printf("Closed %d client connections", len(clients))

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		log.Println("Session shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
