package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is the placed object's pose. Rotation is a single yaw about +Y.
type Transform struct {
	Position mgl64.Vec3
	Yaw      float64
	Scale    float64
}

func NewTransform(position mgl64.Vec3, scale float64) Transform {
	return Transform{Position: position, Scale: scale}
}

// Translate moves the transform by delta.
func (t *Transform) Translate(delta mgl64.Vec3) {
	t.Position = t.Position.Add(delta)
}

// Rotate adds delta radians of yaw and keeps the result in (-pi, pi].
func (t *Transform) Rotate(delta float64) {
	t.Yaw = NormalizeAngle(t.Yaw + delta)
}

// ScaleBy multiplies the scale by ratio and clamps it to [lo, hi]. Non-finite
// or non-positive ratios leave the scale untouched.
func (t *Transform) ScaleBy(ratio, lo, hi float64) {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio <= 0 {
		t.Scale = Clamp(t.Scale, lo, hi)
		return
	}
	t.Scale = Clamp(t.Scale*ratio, lo, hi)
}

// Rotation returns the yaw as a quaternion.
func (t Transform) Rotation() mgl64.Quat {
	return mgl64.QuatRotate(t.Yaw, Up)
}

// Matrix returns the object-to-world matrix, M = T * R * S.
func (t Transform) Matrix() mgl64.Mat4 {
	translate := mgl64.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := mgl64.HomogRotate3DY(t.Yaw)
	scale := mgl64.Scale3D(t.Scale, t.Scale, t.Scale)
	return translate.Mul4(rotate).Mul4(scale)
}

// ApproxEqual compares two transforms component-wise within tol.
func (t Transform) ApproxEqual(o Transform, tol float64) bool {
	return t.Position.ApproxEqualThreshold(o.Position, tol) &&
		math.Abs(NormalizeAngle(t.Yaw-o.Yaw)) <= tol &&
		math.Abs(t.Scale-o.Scale) <= tol
}
