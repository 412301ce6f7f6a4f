// Package server implements the core of the NightOwl relay: the connection
// registry, the broadcast/persistence relay, and the per-connection WebSocket
// session handlers.
//
// The implementation is organized into specialized files for configuration,
// registry, relay, clients, routing, and HTTP handlers to keep the codebase
// maintainable and testable as the project grows.
package server
