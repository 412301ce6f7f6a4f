// Package server manages individual WebSocket sessions, handling the
// read/write pumps and lifecycle of each connection.
package server

import (
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the deadline for a single outbound frame.
	writeWait = 10 * time.Second
	// pongWait is how long a connection may stay silent before its read
	// loop gives up on it.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = 54 * time.Second
)

// Client bridges one WebSocket connection to the relay and the registry. Its
// read loop forwards inbound text to the relay; its write loop drains the send
// buffer filled by broadcasts. Deliver is safe to call concurrently with both
// pumps, since broadcasts for other senders' messages arrive on a different
// goroutine than this session's own loops.
type Client struct {
	conn     *websocket.Conn
	identity string
	addr     string

	send chan []byte
	done chan struct{}

	relay    *Relay
	registry *Registry

	maxMessageSize int64
	closeOnce      sync.Once
}

// NewClient creates a session for one accepted connection. The send channel is
// buffered so a briefly slow reader does not stall broadcasts; a reader that
// falls further behind has frames dropped by Deliver.
func NewClient(conn *websocket.Conn, identity, addr string, relay *Relay, registry *Registry, cfg *Config) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		conn:           conn,
		identity:       identity,
		addr:           addr,
		send:           make(chan []byte, cfg.SendBufferSize),
		done:           make(chan struct{}),
		relay:          relay,
		registry:       registry,
		maxMessageSize: cfg.MaxMessageSize,
	}
}

// Identity returns the caller-chosen identity this session registered under.
func (c *Client) Identity() string {
	return c.identity
}

// Deliver offers one encoded message to this session's write pump without
// blocking. It returns false when the buffer is full or the session is
// shutting down; the caller logs and moves on.
func (c *Client) Deliver(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// shutdown tears the session down exactly once: the identity is released (only
// if this session still owns it), the write pump is signalled, and the socket
// is closed. It is the sole unregistration path, reached from the read loop on
// transport termination and from the handler when a newer connection displaces
// this one.
func (c *Client) shutdown(reason string) {
	c.closeOnce.Do(func() {
		c.registry.Unregister(c.identity, c)
		close(c.done)
		if c.conn != nil {
			if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
				log.Printf("Error closing connection for %q at %s: %v", c.identity, c.addr, err)
			}
		}
		log.Printf("Session for %q at %s ended: %s", c.identity, c.addr, reason)
	})
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Error setting initial read deadline for %q: %v", c.identity, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %q: %v", c.identity, err)
		}
		return nil
	})
}

// handleReadError logs the error according to its kind. Every read error ends
// the session; the distinction only matters for the log.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Message from %q exceeded maximum size of %d bytes", c.identity, c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Printf("Client %q disconnected: %v", c.identity, err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		log.Printf("Client %q connection closed: %v", c.identity, err)
	default:
		log.Printf("WebSocket read error from %q at %s: %v", c.identity, c.addr, err)
	}
}

// readPump blocks on the connection until the next inbound text frame and
// forwards it to the relay, repeating until the transport terminates.
func (c *Client) readPump() {
	defer c.shutdown("transport terminated")

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		c.relay.Submit(c.identity, string(raw))
	}
}

// writePump pushes queued broadcast frames to the connection and keeps it
// alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown("write pump stopped")
	}()

	for {
		select {
		case <-c.done:
			c.writeCloseMessage()
			return
		case payload := <-c.send:
			if !c.writeTextMessage(payload) {
				return
			}
		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

func (c *Client) writeCloseMessage() {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %q: %v", c.identity, err)
		}
	}
}

func (c *Client) writeTextMessage(payload []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for %q: %v", c.identity, err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing message to %q: %v", c.identity, err)
		}
		return false
	}
	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for ping to %q: %v", c.identity, err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing ping message to %q: %v", c.identity, err)
		}
		return false
	}
	return true
}
