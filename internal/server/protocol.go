package server

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/xrplace/internal/core/gesture"
	"github.com/zeusync/xrplace/internal/core/spatial"
)

// Message types sent by the client.
const (
	TypeFrame       = "frame"
	TypeSelect      = "select"
	TypeTouchStart  = "touch_start"
	TypeTouchMove   = "touch_move"
	TypeTouchEnd    = "touch_end"
	TypeAssetLoaded = "asset_loaded"
	TypeAssetFailed = "asset_failed"
	TypeSurfaceLost = "surface_lost"
	TypeRemove      = "remove"
)

// Message types sent by the server.
const (
	TypeHello          = "hello"
	TypeLoadAsset      = "load_asset"
	TypeTransform      = "transform"
	TypePlacementState = "placement_state"
	TypeReticle        = "reticle"
	TypeError          = "error"
)

// Message is the single JSON envelope used in both directions. Only the
// fields relevant to Type are set.
type Message struct {
	Type string `json:"type"`

	// frame
	Camera   *CameraMessage   `json:"camera,omitempty"`
	Hit      *HitMessage      `json:"hit,omitempty"`
	Viewport *ViewportMessage `json:"viewport,omitempty"`

	// select
	Point *PointMessage `json:"point,omitempty"`

	// touch_*
	Contacts []gesture.Contact `json:"contacts,omitempty"`

	// asset_loaded, asset_failed, load_asset
	RequestID string `json:"request_id,omitempty"`
	Handle    string `json:"handle,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Path      string `json:"path,omitempty"`

	// hello
	SessionID string `json:"session_id,omitempty"`
	Mode      string `json:"mode,omitempty"`

	// placement_state
	State string `json:"state,omitempty"`

	// transform
	Transform *TransformMessage `json:"transform,omitempty"`

	// reticle
	Visible  *bool      `json:"visible,omitempty"`
	Position mgl64.Vec3 `json:"position,omitzero"`

	// error
	Error string `json:"error,omitempty"`
}

type CameraMessage struct {
	Position mgl64.Vec3 `json:"position"`
	Forward  mgl64.Vec3 `json:"forward"`
	Up       mgl64.Vec3 `json:"up"`
}

func (c CameraMessage) Pose() spatial.CameraPose {
	return spatial.CameraPose{Position: c.Position, Forward: c.Forward, Up: c.Up}
}

// HitMessage carries a surface pose either as a WebXR column-major matrix
// or as a bare position.
type HitMessage struct {
	Matrix   []float64   `json:"matrix,omitempty"`
	Position *mgl64.Vec3 `json:"position,omitempty"`
}

func (h HitMessage) Pose() (spatial.Pose, error) {
	if len(h.Matrix) > 0 {
		return spatial.PoseFromMatrix(h.Matrix)
	}
	if h.Position != nil {
		return spatial.PoseAt(*h.Position), nil
	}
	return spatial.Pose{}, fmt.Errorf("%w: hit needs matrix or position", ErrInvalidMessage)
}

type ViewportMessage struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type PointMessage struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TransformMessage carries the object transform both as components and as
// a column-major matrix a WebXR host can copy straight into its scene graph.
// Rotation is the yaw quaternion as x, y, z, w.
type TransformMessage struct {
	Position mgl64.Vec3 `json:"position"`
	Yaw      float64    `json:"yaw"`
	Scale    float64    `json:"scale"`
	Rotation [4]float64 `json:"rotation"`
	Matrix   []float64  `json:"matrix"`
}

func transformMessage(t spatial.Transform) *TransformMessage {
	q := t.Rotation()
	m := t.Matrix()
	return &TransformMessage{
		Position: t.Position,
		Yaw:      t.Yaw,
		Scale:    t.Scale,
		Rotation: [4]float64{q.V.X(), q.V.Y(), q.V.Z(), q.W},
		Matrix:   m[:],
	}
}

func decodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}
	return msg, nil
}
