package session

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/xrplace/internal/core/spatial"
)

// Event types published on the session's bus.
const (
	EventPlacementState = "placement.state"
	EventTransform      = "object.transform"
	EventReticle        = "surface.reticle"
	EventLoadRequested  = "asset.load_requested"
	EventLoadFailed     = "asset.load_failed"
)

type PlacementStateChanged struct {
	SessionID string
	State     PlacementState
	Previous  PlacementState
}

type TransformChanged struct {
	SessionID string
	Handle    AssetHandle
	Transform spatial.Transform
}

type ReticleChanged struct {
	SessionID string
	Visible   bool
	Pose      spatial.Pose
}

type LoadRequested struct {
	SessionID string
	Path      string
	Anchor    mgl64.Vec3
}

type LoadFailed struct {
	SessionID string
	Path      string
	Err       error
}
