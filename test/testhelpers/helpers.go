// Package testhelpers provides common utilities for testing the NightOwl
// relay server.
//
// It contains reusable helpers shared across integration tests: starting a
// fully wired relay over httptest, opening identity-scoped WebSocket
// connections, and reading broadcast records.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/nightowl-chat/server/internal/server"
	"github.com/nightowl-chat/server/internal/store"
)

// TestOrigin is the origin every test connection presents; test configurations
// allow it by default.
const TestOrigin = "http://localhost:8080"

// Relay bundles the components of a running test instance.
type Relay struct {
	Config   *server.Config
	Registry *server.Registry
	App      *server.App
	Store    *store.MessageStore
	Server   *httptest.Server
}

// URL returns the base http:// address of the test server.
func (r *Relay) URL() string {
	return r.Server.URL
}

// WebSocketURL returns the ws:// address for the given identity.
func (r *Relay) WebSocketURL(identity string) string {
	return "ws" + r.Server.URL[len("http"):] + "/ws/" + identity
}

// StartRelay boots a complete relay (Badger store in a temp dir, registry,
// relay loop, HTTP boundary) on an httptest server and tears everything down
// with the test.
func StartRelay(t *testing.T, customize func(cfg *server.Config)) *Relay {
	t.Helper()

	cfg := server.NewConfig()
	cfg.BadgerFilepath = t.TempDir()
	if customize != nil {
		customize(cfg)
	}

	messageStore, err := store.Open(cfg.BadgerFilepath)
	require.NoError(t, err)

	registry := server.NewRegistry()
	relay := server.NewRelay(registry, messageStore)
	go relay.Run()

	app := server.NewApp(cfg, registry, relay, messageStore)
	testServer := httptest.NewServer(app.Routes())

	t.Cleanup(func() {
		testServer.Close()
		_ = app.Shutdown(2 * time.Second)
		_ = relay.Shutdown(2 * time.Second)
		_ = messageStore.Close()
	})

	return &Relay{
		Config:   cfg,
		Registry: registry,
		App:      app,
		Store:    messageStore,
		Server:   testServer,
	}
}

// ConnectWebSocket opens a WebSocket connection to url with the test origin
// header set.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Origin", TestOrigin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// MustConnect opens a connection for identity and fails the test on error.
func MustConnect(t *testing.T, relay *Relay, identity string) *websocket.Conn {
	t.Helper()
	conn, err := ConnectWebSocket(relay.WebSocketURL(identity))
	require.NoErrorf(t, err, "Failed to connect client %q", identity)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// SendText sends one raw inbound text frame; inbound content carries no
// envelope.
func SendText(conn *websocket.Conn, content string) error {
	return conn.WriteMessage(websocket.TextMessage, []byte(content))
}

// ReceiveRecord reads the next outbound broadcast record within the timeout.
func ReceiveRecord(t *testing.T, conn *websocket.Conn, timeout time.Duration) server.Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err, "Failed to read broadcast record")

	var msg server.Message
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

// ExpectClosed asserts that the connection terminates within the timeout
// instead of delivering another record.
func ExpectClosed(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "Expected the connection to be closed")
}

// MakeRequest creates and executes an HTTP request, returning the response.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
