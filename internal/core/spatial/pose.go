package spatial

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

var ErrInvalidMatrix = errors.New("pose matrix must have 16 elements")

// Pose is a position plus orientation, e.g. a surface hit reported by the
// platform.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// PoseAt returns a pose at p with identity orientation.
func PoseAt(p mgl64.Vec3) Pose {
	return Pose{Position: p, Orientation: mgl64.QuatIdent()}
}

// PoseFromMatrix decodes a 4x4 column-major transform, the layout WebXR uses
// for XRRigidTransform.matrix.
func PoseFromMatrix(m []float64) (Pose, error) {
	if len(m) != 16 {
		return Pose{}, ErrInvalidMatrix
	}
	var mat mgl64.Mat4
	copy(mat[:], m)
	return Pose{
		Position:    mat.Col(3).Vec3(),
		Orientation: mgl64.Mat4ToQuat(mat).Normalize(),
	}, nil
}

// Matrix encodes the pose back into column-major order.
func (p Pose) Matrix() mgl64.Mat4 {
	return mgl64.Translate3D(p.Position.X(), p.Position.Y(), p.Position.Z()).Mul4(p.Orientation.Mat4())
}

// CameraPose is the viewer pose the host reports every frame. Up may be left
// zero; a default is derived from Forward.
type CameraPose struct {
	Position mgl64.Vec3
	Forward  mgl64.Vec3
	Up       mgl64.Vec3
}

// Basis returns unit forward, right and up vectors for the camera. A camera
// looking straight up or down gets -Z (or +Z) as its up vector so the basis is
// never degenerate.
func (c CameraPose) Basis() (forward, right, up mgl64.Vec3) {
	forward = Forward
	if c.Forward.Len() > Epsilon {
		forward = c.Forward.Normalize()
	}
	up = Up
	if c.Up.Len() > Epsilon {
		up = c.Up.Normalize()
	}
	if forward.Cross(up).Len() < Epsilon {
		up = Forward
		if forward.Y() > 0 {
			up = Forward.Mul(-1)
		}
	}
	right = forward.Cross(up).Normalize()
	up = right.Cross(forward).Normalize()
	return forward, right, up
}

// View returns the world-to-camera matrix.
func (c CameraPose) View() mgl64.Mat4 {
	forward, _, up := c.Basis()
	return mgl64.LookAtV(c.Position, c.Position.Add(forward), up)
}
