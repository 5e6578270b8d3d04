// Package server implements the HTTP and WebSocket surface of the relay.
//
// The implementation is organized into specialized files for configuration,
// origin checks, rate limiting, connections, hub lifecycle, routing and HTTP
// handlers. Server wires them to the identity store and session directory.
package server
