package spatial

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrParallel       = errors.New("ray is parallel to plane")
	ErrEmptyViewport  = errors.New("viewport has no area")
	ErrSingularCamera = errors.New("camera matrices are not invertible")
)

// Projection describes a perspective projection. FovY is in degrees.
type Projection struct {
	FovY float64 `yaml:"fov_y" env:"FOV_Y"`
	Near float64 `yaml:"near" env:"NEAR"`
	Far  float64 `yaml:"far" env:"FAR"`
}

// Viewport is the screen size in pixels.
type Viewport struct {
	Width  int `yaml:"width" env:"WIDTH"`
	Height int `yaml:"height" env:"HEIGHT"`
}

func (v Viewport) Center() Vec2 {
	return Vec2{X: float64(v.Width) / 2, Y: float64(v.Height) / 2}
}

func (v Viewport) Aspect() float64 {
	if v.Height == 0 {
		return 1
	}
	return float64(v.Width) / float64(v.Height)
}

// Matrix returns the projection matrix for the viewport aspect ratio.
func (p Projection) Matrix(v Viewport) mgl64.Mat4 {
	return mgl64.Perspective(mgl64.DegToRad(p.FovY), v.Aspect(), p.Near, p.Far)
}

// Ray is a half-line from Origin along the unit vector Direction.
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// ScreenRay builds the ray from the camera through screen point p (pixels,
// origin top-left) by unprojecting it onto the near and far planes.
func ScreenRay(cam CameraPose, proj Projection, vp Viewport, p Vec2) (Ray, error) {
	if vp.Width <= 0 || vp.Height <= 0 {
		return Ray{}, ErrEmptyViewport
	}
	view := cam.View()
	projection := proj.Matrix(vp)
	// window coordinates have their origin at the bottom-left
	winY := float64(vp.Height) - p.Y
	near, err := mgl64.UnProject(mgl64.Vec3{p.X, winY, 0}, view, projection, 0, 0, vp.Width, vp.Height)
	if err != nil {
		return Ray{}, ErrSingularCamera
	}
	far, err := mgl64.UnProject(mgl64.Vec3{p.X, winY, 1}, view, projection, 0, 0, vp.Width, vp.Height)
	if err != nil {
		return Ray{}, ErrSingularCamera
	}
	dir := far.Sub(near)
	if dir.Len() < Epsilon || !Finite(dir) {
		return Ray{}, ErrSingularCamera
	}
	return Ray{Origin: cam.Position, Direction: dir.Normalize()}, nil
}

// IntersectHorizontal intersects the ray's supporting line with the plane
// y = height. Only a ray parallel to the plane fails.
func (r Ray) IntersectHorizontal(height float64) (mgl64.Vec3, error) {
	dy := r.Direction.Y()
	if math.Abs(dy) < Epsilon {
		return mgl64.Vec3{}, ErrParallel
	}
	t := (height - r.Origin.Y()) / dy
	hit := r.At(t)
	// the plane is exact; avoid float noise on the pinned axis
	hit[1] = height
	return hit, nil
}
