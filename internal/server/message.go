// Package server defines the message record exchanged between clients and
// utility helpers reused across client and relay logic.
package server

import (
	"encoding/json"
	"strings"
	"time"
)

// Message is the immutable record created by the relay for every inbound
// submission. The timestamp is assigned by the server at submission time, which
// makes the relay the single ordering authority. The JSON field names match the
// wire format consumed by the browser client.
type Message struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"client_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Encode serializes the message into its outbound wire representation.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses a wire-format record back into a Message.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(data, &m)
	return m, err
}

// MessageLog is the durable, append-only store of every message the relay has
// accepted. Append failures are never fatal to delivery; the relay logs them
// and broadcasts anyway. RecentFirst returns records newest first and is not
// invoked on the live broadcast path.
type MessageLog interface {
	Append(msg Message) error
	RecentFirst(limit int) ([]Message, error)
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
