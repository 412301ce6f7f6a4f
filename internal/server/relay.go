// Package server coordinates message persistence and broadcast for the
// NightOwl relay via the Relay type.
package server

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// submissionBuffer bounds how many inbound submissions may queue while the
// relay is busy persisting or broadcasting, so that a slow append does not
// stall the read loops of other connections.
const submissionBuffer = 256

type submission struct {
	senderID string
	content  string
}

// Relay is the single choke point every session handler feeds into. It
// processes submissions one at a time: each inbound content is stamped into a
// Message, appended to the durable log, and broadcast to a snapshot of the
// registry. Serialized processing guarantees that every recipient observes
// messages in the same order without per-message locking of the registry.
type Relay struct {
	registry *Registry
	history  MessageLog

	submissions chan submission
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewRelay creates a relay that broadcasts over registry and records every
// accepted message in history. Call Run in a separate goroutine to start
// processing.
func NewRelay(registry *Registry, history MessageLog) *Relay {
	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		registry:    registry,
		history:     history,
		submissions: make(chan submission, submissionBuffer),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Submit queues one inbound content for processing. There is no acknowledgment
// protocol: a return from Submit means the relay accepted the content, not
// that any recipient received it. After shutdown, submissions are discarded.
func (r *Relay) Submit(senderID, content string) {
	select {
	case r.submissions <- submission{senderID: senderID, content: content}:
	case <-r.ctx.Done():
	}
}

// Run starts the relay's processing loop, draining submissions until Shutdown
// is called. This method should be called in a separate goroutine as it runs
// indefinitely.
func (r *Relay) Run() {
	defer close(r.done)

	for {
		select {
		case <-r.ctx.Done():
			return
		case sub := <-r.submissions:
			r.process(sub)
		}
	}
}

func (r *Relay) process(sub submission) {
	msg := Message{
		ID:        uuid.NewString(),
		SenderID:  sub.senderID,
		Content:   sub.content,
		Timestamp: time.Now().UTC(),
	}

	// Fail-open persistence: a degraded store must not cost clients their
	// live delivery, so append errors are logged and broadcast proceeds.
	if err := r.history.Append(msg); err != nil {
		log.Printf("History append failed for message %s from %q: %v", msg.ID, msg.SenderID, err)
	}

	payload, err := msg.Encode()
	if err != nil {
		log.Printf("Failed to encode message %s from %q: %v", msg.ID, msg.SenderID, err)
		return
	}

	r.broadcast(msg.ID, payload)
}

// broadcast delivers one encoded message to every client registered at this
// instant. Delivery failures are isolated per recipient: a full buffer or a
// closing connection is logged and skipped, never aborting delivery to the
// rest and never unregistering the failed client. Eviction stays owned by
// that client's own read loop.
func (r *Relay) broadcast(msgID string, payload []byte) {
	for _, client := range r.registry.Snapshot() {
		if !client.Deliver(payload) {
			log.Printf("Dropped message %s for client %q: send buffer full or connection closing",
				msgID, client.Identity())
		}
	}
}

// Shutdown stops the processing loop and waits for it to finish, or until the
// timeout is reached.
func (r *Relay) Shutdown(timeout time.Duration) error {
	r.cancel()

	select {
	case <-r.done:
		return nil
	case <-time.After(timeout):
		log.Println("Relay shutdown timeout reached")
		return context.DeadlineExceeded
	}
}
