package placement

import "errors"

var (
	// ErrNoSurfaceFound is the expected, recoverable outcome when no anchor
	// can be resolved for a trigger. Callers simply try again next trigger.
	ErrNoSurfaceFound = errors.New("no surface found")
	ErrUnknownMode    = errors.New("unknown placement mode")
	ErrInvalidConfig  = errors.New("invalid placement configuration")
)
