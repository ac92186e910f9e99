// Package session is the controller that ties placement and gestures to one
// placed object. It owns the object's Transform, the placement state and the
// gating flags, and it talks to the Scene Host.
//
// A Session is not safe for concurrent use. All of its methods, and the asset
// load callbacks it hands to the host, must run on one logical thread; the
// caller serializes input events, triggers and render ticks in arrival order.
package session

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/zeusync/xrplace/internal/core/events/bus"
	"github.com/zeusync/xrplace/internal/core/gesture"
	"github.com/zeusync/xrplace/internal/core/observability/log"
	"github.com/zeusync/xrplace/internal/core/placement"
	"github.com/zeusync/xrplace/internal/core/spatial"
)

const eventSource = "session"

type Session struct {
	id     string
	cfg    Config
	host   Host
	events bus.EventBus
	logger log.Log

	resolver *placement.Resolver
	gestures *gesture.Interpreter

	state   PlacementState
	loading bool
	// generation invalidates callbacks of loads abandoned by RemoveObject.
	generation uint64
	anchor     mgl64.Vec3

	handle AssetHandle
	object *spatial.Transform

	lastSent       spatial.Transform
	sent           bool
	reticleVisible bool
}

// New creates a session for host. A nil bus gets a private one; a nil logger
// discards output.
func New(cfg Config, host Host, events bus.EventBus, logger log.Log) (*Session, error) {
	if host == nil {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if events == nil {
		events = bus.New()
	}
	if logger == nil {
		logger = log.NewNop()
	}

	id := uuid.NewString()
	s := &Session{
		id:     id,
		cfg:    cfg,
		host:   host,
		events: events,
		logger: logger.With(log.String("component", "session"), log.String("session_id", id)),
	}

	resolver, err := placement.NewResolver(cfg.Placement, host, host, logger)
	if err != nil {
		return nil, err
	}
	gestures, err := gesture.NewInterpreter(cfg.Gesture, host, s)
	if err != nil {
		return nil, err
	}
	s.resolver = resolver
	s.gestures = gestures

	s.logger.Debug("Session created",
		log.Stringer("mode", cfg.Placement.Mode),
		log.String("asset", cfg.Asset.Path))
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Mode() placement.Mode { return s.resolver.Mode() }

func (s *Session) State() PlacementState { return s.state }

func (s *Session) Loading() bool { return s.loading }

func (s *Session) Handle() AssetHandle { return s.handle }

func (s *Session) GestureState() gesture.State { return s.gestures.State() }

// Transform returns a copy of the object's transform; ok is false while
// nothing is placed.
func (s *Session) Transform() (t spatial.Transform, ok bool) {
	if s.object == nil {
		return spatial.Transform{}, false
	}
	return *s.object, true
}

// ObjectTransform exposes the live transform to the gesture interpreter.
func (s *Session) ObjectTransform() *spatial.Transform { return s.object }

// Reticle reports the surface pose to highlight in hit-test mode.
func (s *Session) Reticle() (spatial.Pose, bool) { return s.resolver.Surface() }

// SetViewport forwards a host resize to the resolver.
func (s *Session) SetViewport(vp spatial.Viewport) { s.resolver.SetViewport(vp) }

// Select handles a placement trigger. The first successful resolution starts
// the asset load; later ones re-anchor the existing object. Expected,
// recoverable outcomes are reported as errors without side effects:
// placement.ErrNoSurfaceFound, ErrGestureInProgress, and ErrLoadInFlight (the
// pending anchor is updated, but no second load starts).
func (s *Session) Select(trigger placement.Trigger) error {
	if s.gestures.InProgress() {
		s.logger.Debug("Trigger ignored during gesture")
		return ErrGestureInProgress
	}

	pos, err := s.resolver.Resolve(trigger)
	if err != nil {
		s.logger.Debug("Placement unresolved", log.Error(err))
		return err
	}

	switch {
	case s.object != nil:
		s.object.Position = pos
		s.gestures.Reset()
		s.logger.Debug("Object re-anchored", log.Any("position", pos))
		return nil
	case s.loading:
		s.anchor = pos
		return ErrLoadInFlight
	default:
		s.startLoad(pos)
		return nil
	}
}

func (s *Session) startLoad(anchor mgl64.Vec3) {
	s.loading = true
	s.generation++
	generation := s.generation
	s.anchor = anchor
	s.setState(Loading)

	path := s.cfg.Asset.Path
	s.logger.Info("Loading asset", log.String("path", path))
	s.publish(EventLoadRequested, LoadRequested{SessionID: s.id, Path: path, Anchor: anchor})

	s.host.LoadAsset(path,
		func(handle AssetHandle) { s.onLoaded(generation, handle) },
		func(reason error) { s.onLoadFailed(generation, reason) },
	)
}

func (s *Session) onLoaded(generation uint64, handle AssetHandle) {
	if !s.current(generation) {
		s.logger.Debug("Stale asset load ignored", log.String("handle", string(handle)))
		return
	}
	s.loading = false

	scale := spatial.Clamp(s.cfg.Asset.InitialScale, s.cfg.Gesture.MinScale, s.cfg.Gesture.MaxScale)
	t := spatial.NewTransform(s.anchor, scale)
	s.object = &t
	s.handle = handle
	s.sent = false
	s.gestures.Reset()

	s.logger.Info("Object placed",
		log.String("handle", string(handle)),
		log.Any("position", t.Position))
	s.setState(Placed)
}

func (s *Session) onLoadFailed(generation uint64, reason error) {
	if !s.current(generation) {
		s.logger.Debug("Stale asset failure ignored", log.Error(reason))
		return
	}
	s.loading = false
	s.resolver.ResetPinnedHeight()

	err := ErrAssetLoadFailed
	if reason != nil {
		err = fmt.Errorf("%w: %w", ErrAssetLoadFailed, reason)
	}
	s.logger.Error("Asset load failed", log.String("path", s.cfg.Asset.Path), log.Error(err))
	s.publish(EventLoadFailed, LoadFailed{SessionID: s.id, Path: s.cfg.Asset.Path, Err: err})
	s.setState(NotPlaced)
}

func (s *Session) current(generation uint64) bool {
	return s.loading && generation == s.generation
}

// ContactsChanged forwards a touch begin/end. Baselines are tracked even
// before placement so that a two-finger touch always gates triggers.
func (s *Session) ContactsChanged(set gesture.TouchSet) {
	s.gestures.OnContactsChanged(set)
}

// ContactsMoved forwards a touch move and returns the applied delta.
func (s *Session) ContactsMoved(set gesture.TouchSet) gesture.Delta {
	return s.gestures.OnContactsMoved(set)
}

// Tick runs once per render frame: it refreshes the reticle and pushes the
// object's transform to the host before draw.
func (s *Session) Tick() {
	if s.resolver.Mode() == placement.ModeSurfaceHitTest {
		pose, visible := s.resolver.Surface()
		if visible != s.reticleVisible {
			s.reticleVisible = visible
			s.publish(EventReticle, ReticleChanged{SessionID: s.id, Visible: visible, Pose: pose})
		}
	}

	if s.object == nil {
		return
	}
	t := *s.object
	s.host.SetObjectTransform(s.handle, t)
	if !s.sent || t != s.lastSent {
		s.lastSent, s.sent = t, true
		s.publish(EventTransform, TransformChanged{SessionID: s.id, Handle: s.handle, Transform: t})
	}
}

// RemoveObject drops the placed object, or abandons a load in flight.
func (s *Session) RemoveObject() error {
	if s.object == nil && !s.loading {
		return ErrNotPlaced
	}
	s.generation++
	s.loading = false
	s.object = nil
	s.handle = ""
	s.sent = false
	s.gestures.Reset()
	s.resolver.ResetPinnedHeight()
	s.logger.Info("Object removed")
	s.setState(NotPlaced)
	return nil
}

func (s *Session) setState(state PlacementState) {
	if state == s.state {
		return
	}
	prev := s.state
	s.state = state
	s.publish(EventPlacementState, PlacementStateChanged{SessionID: s.id, State: state, Previous: prev})
}

func (s *Session) publish(eventType string, data any) {
	if err := s.events.Publish(bus.NewEvent(eventType, eventSource, data)); err != nil {
		s.logger.Warn("Event handler failed", log.String("event", eventType), log.Error(err))
	}
}

// IsRecoverable reports whether err is one of the expected outcomes of Select
// that the host should simply ignore.
func IsRecoverable(err error) bool {
	return errors.Is(err, placement.ErrNoSurfaceFound) ||
		errors.Is(err, ErrGestureInProgress) ||
		errors.Is(err, ErrLoadInFlight)
}
