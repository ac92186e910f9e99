// Package gesture turns raw touch-contact streams into incremental edits of a
// placed object's transform: one finger drags it across the anchor plane, two
// fingers scale and rotate it.
//
// Baselines are re-captured on every contact-count change and after every
// move, so deltas are always frame-to-frame and a finger being added or lifted
// never makes the object jump.
package gesture

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/xrplace/internal/core/spatial"
)

// CameraSource reports the current viewer pose. Only camera-relative drags
// use it.
type CameraSource interface {
	CameraPose() spatial.CameraPose
}

// Target exposes the transform the interpreter mutates. ObjectTransform
// returns nil while nothing is placed.
type Target interface {
	ObjectTransform() *spatial.Transform
}

// Delta is one frame's worth of transform change.
type Delta struct {
	Translation mgl64.Vec3
	ScaleRatio  float64
	Yaw         float64
}

// NoDelta changes nothing.
var NoDelta = Delta{ScaleRatio: 1}

// IsZero reports whether d is within tol of NoDelta.
func (d Delta) IsZero(tol float64) bool {
	return d.Translation.Len() <= tol && math.Abs(d.ScaleRatio-1) <= tol && math.Abs(d.Yaw) <= tol
}

type Interpreter struct {
	cfg    Config
	camera CameraSource
	target Target

	state State
	ids   [2]int64

	// Dragging baseline
	last spatial.Vec2

	// ScalingRotating baseline
	span  float64
	angle float64
}

func NewInterpreter(cfg Config, camera CameraSource, target Target) (*Interpreter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Interpreter{cfg: cfg, camera: camera, target: target}, nil
}

func (in *Interpreter) State() State { return in.state }

// InProgress reports whether a two-finger gesture is active. Placement
// triggers are ignored while it is.
func (in *Interpreter) InProgress() bool { return in.state == StateScalingRotating }

// Reset returns to Idle and drops all baselines.
func (in *Interpreter) Reset() {
	in.state = StateIdle
	in.ids = [2]int64{}
	in.last = spatial.Vec2{}
	in.span = 0
	in.angle = 0
}

// OnContactsChanged is called whenever a contact begins or ends. It selects
// the state for the new contact count and captures fresh baselines.
func (in *Interpreter) OnContactsChanged(set TouchSet) {
	in.Reset()
	in.state = stateFor(set.Len())
	switch in.state {
	case StateDragging:
		in.ids[0] = set[0].ID
		in.last = set[0].Point()
	case StateScalingRotating:
		a, b := set.pair()
		in.ids = [2]int64{a.ID, b.ID}
		in.span, in.angle = set.Span()
	}
}

// OnContactsMoved applies the movement since the previous call to the target
// and returns the delta. A set that does not match the current state (count
// or identities) is treated as a contact change and yields NoDelta.
func (in *Interpreter) OnContactsMoved(set TouchSet) Delta {
	if !in.matches(set) {
		in.OnContactsChanged(set)
		return NoDelta
	}

	var delta Delta
	switch in.state {
	case StateDragging:
		delta = in.drag(set[0].Point())
	case StateScalingRotating:
		delta = in.scaleRotate(set)
	default:
		return NoDelta
	}

	if in.target == nil {
		return delta
	}
	if t := in.target.ObjectTransform(); t != nil {
		t.Translate(delta.Translation)
		t.ScaleBy(delta.ScaleRatio, in.cfg.MinScale, in.cfg.MaxScale)
		t.Rotate(delta.Yaw)
	}
	return delta
}

func (in *Interpreter) matches(set TouchSet) bool {
	if stateFor(set.Len()) != in.state {
		return false
	}
	switch in.state {
	case StateDragging:
		return set[0].ID == in.ids[0]
	case StateScalingRotating:
		return set[0].ID == in.ids[0] && set[1].ID == in.ids[1]
	}
	return true
}

func (in *Interpreter) drag(p spatial.Vec2) Delta {
	d := p.Sub(in.last)
	in.last = p

	s := in.cfg.DragSensitivity
	if in.cfg.InvertDrag {
		s = -s
	}
	right, back := in.dragAxes()
	return Delta{
		Translation: right.Mul(d.X * s).Add(back.Mul(d.Y * s)),
		ScaleRatio:  1,
	}
}

// dragAxes returns the horizontal world directions that screen +x and
// screen +y (downwards) move the object along. Dragging up moves it away
// from the viewer.
func (in *Interpreter) dragAxes() (right, back mgl64.Vec3) {
	if in.cfg.DragAxes != DragAxesCamera || in.camera == nil {
		return spatial.Right, spatial.Forward.Mul(-1)
	}
	forward, r, up := in.camera.CameraPose().Basis()
	fwd, ok := spatial.Horizontal(forward)
	if !ok {
		// looking straight down: screen-up is the camera's up vector
		fwd, ok = spatial.Horizontal(up)
	}
	rh, rok := spatial.Horizontal(r)
	if !ok || !rok {
		return spatial.Right, spatial.Forward.Mul(-1)
	}
	return rh, fwd.Mul(-1)
}

func (in *Interpreter) scaleRotate(set TouchSet) Delta {
	span, angle := set.Span()

	// the angle of two coincident points is meaningless
	if in.span <= in.cfg.MinSpan || span <= in.cfg.MinSpan {
		in.span, in.angle = span, angle
		return NoDelta
	}
	ratio := span / in.span
	yaw := spatial.NormalizeAngle(angle-in.angle) * in.cfg.RotateSensitivity

	in.span, in.angle = span, angle
	return Delta{ScaleRatio: ratio, Yaw: yaw}
}
