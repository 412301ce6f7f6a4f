// Package store persists the relay's message history in BadgerDB. Keys encode
// the server-assigned timestamp so a reverse iteration yields newest-first
// reads without a secondary index.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/nightowl-chat/server/internal/server"
)

// messagePrefix namespaces message records inside the shared Badger keyspace.
const messagePrefix = "msg:"

// MessageStore is the durable, append-only log of every message the relay has
// accepted. It implements server.MessageLog. Badger transactions make Append
// and RecentFirst safe for concurrent use.
type MessageStore struct {
	db *badger.DB
}

// Open opens (or creates) the Badger database at path and wraps it in a
// MessageStore. The caller owns Close.
func Open(path string) (*MessageStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return NewMessageStore(db), nil
}

// NewMessageStore wraps an already-open Badger handle.
func NewMessageStore(db *badger.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Append durably records one message. The key orders records by the server
// timestamp, with the message ID as a tiebreaker for messages stamped within
// the same nanosecond.
func (s *MessageStore) Append(msg server.Message) error {
	key := fmt.Sprintf("%s%020d:%s", messagePrefix, msg.Timestamp.UnixNano(), msg.ID)

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", msg.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("append message %s: %w", msg.ID, err)
	}
	return nil
}

// RecentFirst returns up to limit messages, newest first. A non-positive
// limit yields no records.
func (s *MessageStore) RecentFirst(limit int) ([]server.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	var messages []server.Message
	prefix := []byte(messagePrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = true
		opts.PrefetchSize = limit

		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode the seek starts just past the last message key.
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(messages) < limit; it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var msg server.Message
				if err := json.Unmarshal(v, &msg); err != nil {
					return fmt.Errorf("unmarshal record %q: %w", it.Item().Key(), err)
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch recent messages: %w", err)
	}

	return messages, nil
}

// Close releases the underlying Badger database.
func (s *MessageStore) Close() error {
	return s.db.Close()
}
