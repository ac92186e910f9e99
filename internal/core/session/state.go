package session

import "fmt"

// PlacementState is what the host shows the user (e.g. whether to draw a
// reticle or a spinner).
type PlacementState uint8

const (
	NotPlaced PlacementState = iota
	Loading
	Placed
)

func (s PlacementState) String() string {
	switch s {
	case NotPlaced:
		return "not_placed"
	case Loading:
		return "loading"
	case Placed:
		return "placed"
	default:
		return fmt.Sprintf("placement_state(%d)", uint8(s))
	}
}

func (s PlacementState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
