// Package api implements the HTTP and WebSocket servers for the traffic relay.
//
// This package provides:
//   - The light UI at "/" (served by the panel package)
//   - JSON endpoints under /api/v1: health, metrics, state, history, ui-config
//   - A push-only WebSocket Hub on its own listener
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # WebSocket frames
//
// Every frame is plain text "<light1>,<light2>". The hub is the relay's
// Broadcaster: the relay calls Broadcast after each update and after each
// broker (re)connect, and the hub calls back into the relay (SetOnConnect)
// when a browser connects, so the new client sees the current state at once.
// Inbound messages are read and discarded.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// The HTTP and WebSocket listeners keep serving while the broker is down.
package api
