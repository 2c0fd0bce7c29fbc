package history

import "time"

// Entry is one recorded light transition.
type Entry struct {
	// ID is the auto-incremented primary key.
	ID int64 `json:"id"`

	// Light is the slot that changed (light1 or light2).
	Light string `json:"light"`

	// Value is the payload stored for Light.
	Value string `json:"value"`

	// Light1 and Light2 are the full snapshot after the change.
	Light1 string `json:"light1"`
	Light2 string `json:"light2"`

	// CreatedAt is when the relay accepted the change (UTC).
	CreatedAt time.Time `json:"created_at"`
}
