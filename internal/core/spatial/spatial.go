// Package spatial holds the small amount of 3D math shared by placement and
// gesture handling: a yaw-only rigid transform with uniform scale, surface
// and camera poses, rays and horizontal planes.
//
// World convention follows WebXR: +Y is up and a camera with identity
// orientation looks down -Z.
package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the tolerance used for parallel and degenerate checks.
const Epsilon = 1e-9

var (
	Up      = mgl64.Vec3{0, 1, 0}
	Forward = mgl64.Vec3{0, 0, -1}
	Right   = mgl64.Vec3{1, 0, 0}
)

// Vec2 is a screen-space point in pixels, origin top-left.
type Vec2 struct{ X, Y float64 }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }

// Distance computes Euclidean distance between two screen points.
func Distance(a, b Vec2) float64 { return math.Hypot(b.X-a.X, b.Y-a.Y) }

// Angle returns atan2(dy, dx) of the segment a->b in radians.
func Angle(a, b Vec2) float64 { return math.Atan2(b.Y-a.Y, b.X-a.X) }

// NormalizeAngle wraps a to (-pi, pi].
func NormalizeAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Horizontal drops the vertical component of v and normalizes the rest.
// ok is false when v is (nearly) vertical.
func Horizontal(v mgl64.Vec3) (mgl64.Vec3, bool) {
	h := mgl64.Vec3{v.X(), 0, v.Z()}
	if h.Len() < Epsilon {
		return mgl64.Vec3{}, false
	}
	return h.Normalize(), true
}

// Finite reports whether every component of v is a finite number.
func Finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
