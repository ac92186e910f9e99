package session

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/xrplace/internal/core/events/bus"
	"github.com/zeusync/xrplace/internal/core/gesture"
	"github.com/zeusync/xrplace/internal/core/placement"
	"github.com/zeusync/xrplace/internal/core/spatial"
)

type loadRequest struct {
	path      string
	onSuccess func(AssetHandle)
	onFailure func(error)
}

// fakeHost records loads and leaves completion to the test.
type fakeHost struct {
	camera  spatial.CameraPose
	hit     spatial.Pose
	hasHit  bool
	loads   []loadRequest
	applied []spatial.Transform
}

func (h *fakeHost) CameraPose() spatial.CameraPose { return h.camera }

func (h *fakeHost) LatestSurfaceHitPose() (spatial.Pose, bool) { return h.hit, h.hasHit }

func (h *fakeHost) LoadAsset(path string, onSuccess func(AssetHandle), onFailure func(error)) {
	h.loads = append(h.loads, loadRequest{path: path, onSuccess: onSuccess, onFailure: onFailure})
}

func (h *fakeHost) SetObjectTransform(_ AssetHandle, t spatial.Transform) {
	h.applied = append(h.applied, t)
}

func (h *fakeHost) completeLast(handle AssetHandle) {
	h.loads[len(h.loads)-1].onSuccess(handle)
}

func newSession(t *testing.T, mode placement.Mode, host *fakeHost) *Session {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Placement.Mode = mode
	s, err := New(cfg, host, nil, nil)
	require.NoError(t, err)
	return s
}

func fixedCamera() *fakeHost {
	return &fakeHost{camera: spatial.CameraPose{Position: mgl64.Vec3{0, 1.5, 0}, Forward: mgl64.Vec3{0, 0, -1}}}
}

func TestSession_FixedOffsetPlacement(t *testing.T) {
	host := fixedCamera()
	s := newSession(t, placement.ModeFixedOffset, host)
	require.Equal(t, NotPlaced, s.State())

	require.NoError(t, s.Select(placement.Trigger{}))
	require.Equal(t, Loading, s.State())
	require.True(t, s.Loading())
	require.Len(t, host.loads, 1)
	require.Equal(t, "/elefante.glb", host.loads[0].path)

	t.Run("Repeated trigger while loading does not reload", func(t *testing.T) {
		require.ErrorIs(t, s.Select(placement.Trigger{}), ErrLoadInFlight)
		require.Len(t, host.loads, 1)
	})

	host.completeLast("elephant")
	require.Equal(t, Placed, s.State())
	require.False(t, s.Loading())
	require.Equal(t, AssetHandle("elephant"), s.Handle())

	first, ok := s.Transform()
	require.True(t, ok)
	require.Equal(t, 0.5, first.Scale)
	require.True(t, first.Position.ApproxEqualThreshold(mgl64.Vec3{0, 1.5, -1.5}, 1e-12))

	t.Run("Second trigger repositions identically without loading", func(t *testing.T) {
		require.NoError(t, s.Select(placement.Trigger{}))
		second, ok := s.Transform()
		require.True(t, ok)
		require.Equal(t, first.Position, second.Position)
		require.Len(t, host.loads, 1)
	})
}

func TestSession_SurfaceHitTest(t *testing.T) {
	host := &fakeHost{}
	s := newSession(t, placement.ModeSurfaceHitTest, host)

	t.Run("No surface fails silently", func(t *testing.T) {
		err := s.Select(placement.Trigger{})
		require.ErrorIs(t, err, placement.ErrNoSurfaceFound)
		require.True(t, IsRecoverable(err))
		require.Empty(t, host.loads)
		require.Equal(t, NotPlaced, s.State())
	})

	host.hit, host.hasHit = spatial.PoseAt(mgl64.Vec3{0.1, 0, -0.8}), true
	require.NoError(t, s.Select(placement.Trigger{}))
	host.completeLast("h")

	tr, ok := s.Transform()
	require.True(t, ok)
	require.Equal(t, mgl64.Vec3{0.1, 0, -0.8}, tr.Position)

	t.Run("Second trigger re-anchors and keeps yaw and scale", func(t *testing.T) {
		s.ObjectTransform().Yaw = 1
		s.ObjectTransform().Scale = 2
		host.hit = spatial.PoseAt(mgl64.Vec3{0.5, 0, -1.2})

		require.NoError(t, s.Select(placement.Trigger{}))
		tr, _ := s.Transform()
		require.Equal(t, mgl64.Vec3{0.5, 0, -1.2}, tr.Position)
		require.Equal(t, 1.0, tr.Yaw)
		require.Equal(t, 2.0, tr.Scale)
		require.Len(t, host.loads, 1)
	})

	t.Run("Surface lost", func(t *testing.T) {
		host.hasHit = false
		before, _ := s.Transform()
		require.ErrorIs(t, s.Select(placement.Trigger{}), placement.ErrNoSurfaceFound)
		after, _ := s.Transform()
		require.Equal(t, before, after)
	})
}

func TestSession_GestureGating(t *testing.T) {
	host := fixedCamera()
	s := newSession(t, placement.ModeFixedOffset, host)
	require.NoError(t, s.Select(placement.Trigger{}))
	host.completeLast("h")

	pinch := gesture.NewTouchSet(gesture.Contact{ID: 1, X: 0, Y: 0}, gesture.Contact{ID: 2, X: 100, Y: 0})
	s.ContactsChanged(pinch)
	require.Equal(t, gesture.StateScalingRotating, s.GestureState())

	host.camera.Position = mgl64.Vec3{3, 1.5, 3}
	before, _ := s.Transform()
	require.ErrorIs(t, s.Select(placement.Trigger{}), ErrGestureInProgress)
	after, _ := s.Transform()
	require.Equal(t, before, after)

	s.ContactsChanged(nil)
	require.NoError(t, s.Select(placement.Trigger{}))
	moved, _ := s.Transform()
	require.NotEqual(t, before.Position, moved.Position)
}

func TestSession_GesturesMutateTransform(t *testing.T) {
	host := fixedCamera()
	s := newSession(t, placement.ModeFixedOffset, host)

	t.Run("Before placement nothing moves", func(t *testing.T) {
		s.ContactsChanged(gesture.NewTouchSet(gesture.Contact{ID: 1}))
		s.ContactsMoved(gesture.NewTouchSet(gesture.Contact{ID: 1, X: 50}))
		_, ok := s.Transform()
		require.False(t, ok)
	})

	s.ContactsChanged(nil)
	require.NoError(t, s.Select(placement.Trigger{}))
	host.completeLast("h")

	s.ContactsChanged(gesture.NewTouchSet(gesture.Contact{ID: 1, X: 0, Y: 0}, gesture.Contact{ID: 2, X: 100, Y: 0}))
	s.ContactsMoved(gesture.NewTouchSet(gesture.Contact{ID: 1, X: 0, Y: 0}, gesture.Contact{ID: 2, X: 150, Y: 0}))
	tr, _ := s.Transform()
	require.InDelta(t, 0.75, tr.Scale, 1e-12)
}

func TestSession_PlacementResetsGestureBaseline(t *testing.T) {
	host := fixedCamera()
	s := newSession(t, placement.ModeFixedOffset, host)
	require.NoError(t, s.Select(placement.Trigger{}))
	host.completeLast("h")

	s.ContactsChanged(gesture.NewTouchSet(gesture.Contact{ID: 1, X: 10, Y: 10}))
	require.Equal(t, gesture.StateDragging, s.GestureState())

	require.NoError(t, s.Select(placement.Trigger{}))
	require.Equal(t, gesture.StateIdle, s.GestureState())

	anchored, _ := s.Transform()
	// a stale drag baseline would turn this into a translation
	s.ContactsMoved(gesture.NewTouchSet(gesture.Contact{ID: 1, X: 400, Y: 400}))
	after, _ := s.Transform()
	require.Equal(t, anchored, after)
}

func TestSession_AssetLoadFailure(t *testing.T) {
	host := fixedCamera()
	events := bus.New()
	var failures []LoadFailed
	_, err := events.Subscribe(EventLoadFailed, func(e bus.Event) error {
		failures = append(failures, e.Data().(LoadFailed))
		return nil
	})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Placement.Mode = placement.ModeFixedOffset
	s, err := New(cfg, host, events, nil)
	require.NoError(t, err)

	require.NoError(t, s.Select(placement.Trigger{}))
	reason := errors.New("404")
	host.loads[0].onFailure(reason)

	require.Equal(t, NotPlaced, s.State())
	require.False(t, s.Loading())
	_, ok := s.Transform()
	require.False(t, ok)
	require.Len(t, failures, 1)
	require.ErrorIs(t, failures[0].Err, ErrAssetLoadFailed)
	require.ErrorIs(t, failures[0].Err, reason)

	t.Run("Retry loads again", func(t *testing.T) {
		require.NoError(t, s.Select(placement.Trigger{}))
		require.Len(t, host.loads, 2)
		host.completeLast("h")
		require.Equal(t, Placed, s.State())
	})

	t.Run("Late callbacks are ignored", func(t *testing.T) {
		host.loads[0].onSuccess("ghost")
		require.Equal(t, AssetHandle("h"), s.Handle())
	})
}

func TestSession_LoadFailureReleasesPinnedHeight(t *testing.T) {
	host := fixedCamera()
	s := newSession(t, placement.ModeFixedOffset, host)

	require.NoError(t, s.Select(placement.Trigger{}))
	host.loads[0].onFailure(errors.New("timeout"))
	require.Equal(t, NotPlaced, s.State())

	// the user sat down before retrying
	host.camera.Position = mgl64.Vec3{0, 1.1, 0}
	require.NoError(t, s.Select(placement.Trigger{}))
	host.completeLast("elephant")

	tr, ok := s.Transform()
	require.True(t, ok)
	require.InDelta(t, 1.1, tr.Position.Y(), 1e-12)
}

func TestSession_LoadInFlightUpdatesAnchor(t *testing.T) {
	host := fixedCamera()
	cfg := DefaultConfig()
	cfg.Placement.Mode = placement.ModeFixedOffset
	cfg.Placement.PinHeight = false
	s, err := New(cfg, host, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.Select(placement.Trigger{}))
	host.camera.Position = mgl64.Vec3{2, 1, 0}
	require.ErrorIs(t, s.Select(placement.Trigger{}), ErrLoadInFlight)
	host.completeLast("h")

	tr, _ := s.Transform()
	require.True(t, tr.Position.ApproxEqualThreshold(mgl64.Vec3{2, 1, -1.5}, 1e-12))
}

func TestSession_SynchronousLoad(t *testing.T) {
	host := &syncHost{fakeHost: fixedCamera()}
	cfg := DefaultConfig()
	cfg.Placement.Mode = placement.ModeFixedOffset
	s, err := New(cfg, host, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.Select(placement.Trigger{}))
	require.Equal(t, Placed, s.State())
}

type syncHost struct{ *fakeHost }

func (h *syncHost) LoadAsset(_ string, onSuccess func(AssetHandle), _ func(error)) {
	onSuccess("instant")
}

func TestSession_RemoveObject(t *testing.T) {
	host := fixedCamera()
	s := newSession(t, placement.ModeFixedOffset, host)
	require.ErrorIs(t, s.RemoveObject(), ErrNotPlaced)

	t.Run("Abandons load in flight", func(t *testing.T) {
		require.NoError(t, s.Select(placement.Trigger{}))
		require.NoError(t, s.RemoveObject())
		host.completeLast("late")
		require.Equal(t, NotPlaced, s.State())
		_, ok := s.Transform()
		require.False(t, ok)
	})

	t.Run("Removes placed object", func(t *testing.T) {
		require.NoError(t, s.Select(placement.Trigger{}))
		host.completeLast("h")
		require.NoError(t, s.RemoveObject())
		require.Equal(t, NotPlaced, s.State())
		require.Equal(t, AssetHandle(""), s.Handle())
	})
}

func TestSession_TickAndEvents(t *testing.T) {
	host := &fakeHost{}
	events := bus.New()
	var (
		states     []PlacementState
		transforms int
		reticles   []bool
	)
	_, _ = events.Subscribe(EventPlacementState, func(e bus.Event) error {
		states = append(states, e.Data().(PlacementStateChanged).State)
		return nil
	})
	_, _ = events.Subscribe(EventTransform, func(bus.Event) error { transforms++; return nil })
	_, _ = events.Subscribe(EventReticle, func(e bus.Event) error {
		reticles = append(reticles, e.Data().(ReticleChanged).Visible)
		return nil
	})

	s, err := New(DefaultConfig(), host, events, nil)
	require.NoError(t, err)

	s.Tick()
	require.Empty(t, reticles)

	host.hit, host.hasHit = spatial.PoseAt(mgl64.Vec3{0, 0, -1}), true
	s.Tick()
	s.Tick()
	require.Equal(t, []bool{true}, reticles)
	pose, ok := s.Reticle()
	require.True(t, ok)
	require.Equal(t, mgl64.Vec3{0, 0, -1}, pose.Position)

	require.NoError(t, s.Select(placement.Trigger{}))
	host.completeLast("h")
	require.Equal(t, []PlacementState{Loading, Placed}, states)

	s.Tick()
	s.Tick()
	require.Len(t, host.applied, 2)
	require.Equal(t, 1, transforms)

	s.ObjectTransform().Yaw = 0.25
	s.Tick()
	require.Equal(t, 2, transforms)
	require.Equal(t, 0.25, host.applied[2].Yaw)

	host.hasHit = false
	s.Tick()
	require.Equal(t, []bool{true, false}, reticles)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(DefaultConfig(), nil, nil, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg := DefaultConfig()
	cfg.Asset.Path = ""
	_, err = New(cfg, &fakeHost{}, nil, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Gesture.MaxScale = 0.01
	_, err = New(cfg, &fakeHost{}, nil, nil)
	require.ErrorIs(t, err, gesture.ErrInvalidConfig)
}
