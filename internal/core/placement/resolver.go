package placement

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/xrplace/internal/core/observability/log"
	"github.com/zeusync/xrplace/internal/core/spatial"
)

// Config holds the placement policy.
type Config struct {
	Mode Mode `yaml:"mode" env:"MODE"`

	// GroundHeight is the y of the plane used by ModeScreenRaycast.
	GroundHeight float64 `yaml:"ground_height" env:"GROUND_HEIGHT"`

	// Distance is how far in front of the camera ModeFixedOffset anchors.
	Distance float64 `yaml:"distance" env:"DISTANCE"`
	// PinHeight snapshots the camera height at the first fixed-offset
	// placement and anchors at that height plus HeightOffset from then on,
	// so tilting the device does not move the object vertically.
	PinHeight    bool    `yaml:"pin_height" env:"PIN_HEIGHT"`
	HeightOffset float64 `yaml:"height_offset" env:"HEIGHT_OFFSET"`

	Projection spatial.Projection `yaml:"projection" envPrefix:"PROJECTION_"`
	Viewport   spatial.Viewport   `yaml:"viewport" envPrefix:"VIEWPORT_"`
}

func DefaultConfig() Config {
	return Config{
		Mode:         ModeSurfaceHitTest,
		GroundHeight: 0,
		Distance:     1.5,
		PinHeight:    true,
		HeightOffset: 0,
		Projection:   spatial.Projection{FovY: 70, Near: 0.01, Far: 20},
		Viewport:     spatial.Viewport{Width: 1080, Height: 1920},
	}
}

func (c Config) Validate() error {
	if _, ok := modeNames[c.Mode]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownMode, uint8(c.Mode))
	}
	if c.Mode == ModeFixedOffset && c.Distance <= 0 {
		return fmt.Errorf("%w: distance must be positive", ErrInvalidConfig)
	}
	if c.Projection.FovY <= 0 || c.Projection.FovY >= 180 {
		return fmt.Errorf("%w: fov_y must be in (0, 180)", ErrInvalidConfig)
	}
	if c.Projection.Near <= 0 || c.Projection.Far <= c.Projection.Near {
		return fmt.Errorf("%w: need 0 < near < far", ErrInvalidConfig)
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return fmt.Errorf("%w: viewport must have positive size", ErrInvalidConfig)
	}
	return nil
}

// CameraSource reports the current viewer pose.
type CameraSource interface {
	CameraPose() spatial.CameraPose
}

// SurfaceSource reports the latest surface hit, if the platform has one.
type SurfaceSource interface {
	LatestSurfaceHitPose() (spatial.Pose, bool)
}

// Trigger is a select/tap request. Point is optional; without it the
// viewport center is used.
type Trigger struct {
	Point    spatial.Vec2
	HasPoint bool
}

// TriggerAt is a trigger carrying an explicit screen point.
func TriggerAt(x, y float64) Trigger {
	return Trigger{Point: spatial.Vec2{X: x, Y: y}, HasPoint: true}
}

// Resolver turns triggers into world anchor positions according to Mode.
type Resolver struct {
	cfg      Config
	camera   CameraSource
	surfaces SurfaceSource
	logger   log.Log

	pinnedHeight float64
	pinned       bool
}

func NewResolver(cfg Config, camera CameraSource, surfaces SurfaceSource, logger log.Log) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if camera == nil {
		return nil, fmt.Errorf("%w: camera source is required", ErrInvalidConfig)
	}
	if cfg.Mode == ModeSurfaceHitTest && surfaces == nil {
		return nil, fmt.Errorf("%w: surface hit-test mode needs a surface source", ErrInvalidConfig)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Resolver{
		cfg:      cfg,
		camera:   camera,
		surfaces: surfaces,
		logger:   logger.With(log.String("component", "placement"), log.Stringer("mode", cfg.Mode)),
	}, nil
}

func (r *Resolver) Mode() Mode { return r.cfg.Mode }

func (r *Resolver) Viewport() spatial.Viewport { return r.cfg.Viewport }

// SetViewport records a resize of the host's screen.
func (r *Resolver) SetViewport(vp spatial.Viewport) {
	if vp.Width <= 0 || vp.Height <= 0 {
		return
	}
	r.cfg.Viewport = vp
}

// ResetPinnedHeight forgets the snapshotted camera height.
func (r *Resolver) ResetPinnedHeight() {
	r.pinned = false
	r.pinnedHeight = 0
}

// Surface returns the latest surface pose in hit-test mode.
func (r *Resolver) Surface() (spatial.Pose, bool) {
	if r.cfg.Mode != ModeSurfaceHitTest || r.surfaces == nil {
		return spatial.Pose{}, false
	}
	return r.surfaces.LatestSurfaceHitPose()
}

// Resolve computes the anchor for trigger. It returns ErrNoSurfaceFound when
// nothing can be resolved right now.
func (r *Resolver) Resolve(trigger Trigger) (mgl64.Vec3, error) {
	var (
		pos mgl64.Vec3
		err error
	)
	switch r.cfg.Mode {
	case ModeSurfaceHitTest:
		pos, err = r.resolveSurface()
	case ModeScreenRaycast:
		pos, err = r.resolveRaycast(trigger)
	case ModeFixedOffset:
		pos = r.resolveFixedOffset()
	default:
		return mgl64.Vec3{}, fmt.Errorf("%w: %d", ErrUnknownMode, uint8(r.cfg.Mode))
	}
	if err != nil {
		return mgl64.Vec3{}, err
	}
	if !spatial.Finite(pos) {
		return mgl64.Vec3{}, ErrNoSurfaceFound
	}
	return pos, nil
}

func (r *Resolver) resolveSurface() (mgl64.Vec3, error) {
	pose, ok := r.surfaces.LatestSurfaceHitPose()
	if !ok {
		return mgl64.Vec3{}, ErrNoSurfaceFound
	}
	return pose.Position, nil
}

func (r *Resolver) resolveRaycast(trigger Trigger) (mgl64.Vec3, error) {
	point := r.cfg.Viewport.Center()
	if trigger.HasPoint {
		point = trigger.Point
	}
	ray, err := spatial.ScreenRay(r.camera.CameraPose(), r.cfg.Projection, r.cfg.Viewport, point)
	if err != nil {
		r.logger.Debug("Screen ray unavailable", log.Error(err))
		return mgl64.Vec3{}, fmt.Errorf("%w: %w", ErrNoSurfaceFound, err)
	}
	hit, err := ray.IntersectHorizontal(r.cfg.GroundHeight)
	if errors.Is(err, spatial.ErrParallel) {
		return mgl64.Vec3{}, fmt.Errorf("%w: %w", ErrNoSurfaceFound, err)
	}
	return hit, err
}

func (r *Resolver) resolveFixedOffset() mgl64.Vec3 {
	cam := r.camera.CameraPose()
	forward, _, _ := cam.Basis()
	pos := cam.Position.Add(forward.Mul(r.cfg.Distance))
	if r.cfg.PinHeight {
		if !r.pinned {
			r.pinnedHeight = cam.Position.Y()
			r.pinned = true
		}
		pos[1] = r.pinnedHeight + r.cfg.HeightOffset
	}
	return pos
}
