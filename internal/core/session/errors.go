package session

import "errors"

var (
	// ErrGestureInProgress is returned when a trigger arrives during a
	// two-finger gesture. The trigger is ignored.
	ErrGestureInProgress = errors.New("gesture in progress")
	// ErrLoadInFlight is returned when a trigger arrives while the asset is
	// still loading. No second load is started.
	ErrLoadInFlight    = errors.New("asset load already in flight")
	ErrAssetLoadFailed = errors.New("asset load failed")
	ErrNotPlaced       = errors.New("object is not placed")
	ErrInvalidConfig   = errors.New("invalid session configuration")
)
