package gesture

import "fmt"

// State is the interpreter's gesture state.
type State uint8

const (
	StateIdle State = iota
	StateDragging
	StateScalingRotating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateScalingRotating:
		return "scaling_rotating"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// stateFor maps a contact count to the state it selects.
func stateFor(contacts int) State {
	switch contacts {
	case 1:
		return StateDragging
	case 2:
		return StateScalingRotating
	default:
		return StateIdle
	}
}
