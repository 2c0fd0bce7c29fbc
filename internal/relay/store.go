package relay

import "sync"

// Light identifies one of the two light slots.
type Light string

const (
	Light1 Light = "light1"
	Light2 Light = "light2"
)

// Valid reports whether l names a known slot.
func (l Light) Valid() bool {
	return l == Light1 || l == Light2
}

// Snapshot is a point-in-time copy of both light values.
type Snapshot struct {
	Light1 string `json:"light1"`
	Light2 string `json:"light2"`
}

// Frame renders the snapshot in the wire format pushed to browsers:
// light1, a comma, light2. Values are not escaped.
func (s Snapshot) Frame() string {
	return s.Light1 + "," + s.Light2
}

// Store holds the latest value of each light.
//
// Values are free-form strings and are stored verbatim, including empty
// or malformed payloads. The store is in-memory only and starts from the
// defaults given to NewStore.
//
// Thread Safety: all methods are safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	light1 string
	light2 string
}

// NewStore creates a store seeded with the given boot values.
func NewStore(light1, light2 string) *Store {
	return &Store{light1: light1, light2: light2}
}

// Snapshot returns both current values.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Light1: s.light1, Light2: s.light2}
}

// Set overwrites the value bound to light. It returns false, leaving the
// store untouched, when light is not a known slot.
func (s *Store) Set(light Light, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch light {
	case Light1:
		s.light1 = value
	case Light2:
		s.light2 = value
	default:
		return false
	}
	return true
}
