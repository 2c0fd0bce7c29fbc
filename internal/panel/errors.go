package panel

import "errors"

// ErrStaticRoot is returned when the configured static directory cannot
// be served.
var ErrStaticRoot = errors.New("panel: static root unavailable")
