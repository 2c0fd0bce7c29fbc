package history

import "errors"

var (
	// ErrDisabled is reported by the API when history is switched off.
	ErrDisabled = errors.New("history: disabled")

	// ErrInvalidLight is returned when a query names a slot other than
	// light1 or light2.
	ErrInvalidLight = errors.New("history: invalid light")
)
