package relay

import "errors"

// Domain-specific errors for the relay.
var (
	// ErrNoStore is returned by New when no store is supplied.
	ErrNoStore = errors.New("relay: store is required")

	// ErrNoBroker is returned by New when no broker is supplied.
	ErrNoBroker = errors.New("relay: broker is required")

	// ErrNoBroadcaster is returned by New when no broadcaster is supplied.
	ErrNoBroadcaster = errors.New("relay: broadcaster is required")

	// ErrInvalidTopics is returned by New when a light topic is missing or
	// both lights share a topic.
	ErrInvalidTopics = errors.New("relay: light topics must be non-empty and distinct")

	// ErrAlreadyRunning is returned when Run is called twice concurrently.
	ErrAlreadyRunning = errors.New("relay: already running")

	// ErrNotSubscribed is returned by HealthCheck when the current session
	// lacks a light topic.
	ErrNotSubscribed = errors.New("relay: light topic not subscribed")
)
