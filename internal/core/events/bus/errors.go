package bus

import "errors"

var (
	ErrNilHandler   = errors.New("event handler is nil")
	ErrInvalidEvent = errors.New("event has no type")
)
