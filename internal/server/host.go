package server

import (
	"errors"

	"github.com/google/uuid"

	"github.com/zeusync/xrplace/internal/core/session"
	"github.com/zeusync/xrplace/internal/core/spatial"
)

type assetCallbacks struct {
	onSuccess func(session.AssetHandle)
	onFailure func(error)
}

// remoteHost is the Scene Host as seen through a websocket: the client
// reports poses, the server answers with load requests and transforms. It is
// only touched from the connection's read goroutine.
type remoteHost struct {
	send func(Message) error

	camera spatial.CameraPose
	hit    spatial.Pose
	hasHit bool

	pending map[string]assetCallbacks

	lastHandle    session.AssetHandle
	lastTransform spatial.Transform
	sent          bool
}

var _ session.Host = (*remoteHost)(nil)

func newRemoteHost(send func(Message) error) *remoteHost {
	return &remoteHost{
		send:    send,
		camera:  spatial.CameraPose{Forward: spatial.Forward, Up: spatial.Up},
		pending: make(map[string]assetCallbacks),
	}
}

func (h *remoteHost) CameraPose() spatial.CameraPose { return h.camera }

func (h *remoteHost) LatestSurfaceHitPose() (spatial.Pose, bool) { return h.hit, h.hasHit }

func (h *remoteHost) LoadAsset(path string, onSuccess func(session.AssetHandle), onFailure func(error)) {
	id := uuid.NewString()
	h.pending[id] = assetCallbacks{onSuccess: onSuccess, onFailure: onFailure}
	if err := h.send(Message{Type: TypeLoadAsset, RequestID: id, Path: path}); err != nil {
		delete(h.pending, id)
		onFailure(err)
	}
}

// SetObjectTransform forwards the transform only when it differs from the
// last one sent.
func (h *remoteHost) SetObjectTransform(handle session.AssetHandle, t spatial.Transform) {
	if h.sent && handle == h.lastHandle && t.ApproxEqual(h.lastTransform, spatial.Epsilon) {
		return
	}
	err := h.send(Message{Type: TypeTransform, Handle: string(handle), Transform: transformMessage(t)})
	if err != nil {
		return
	}
	h.lastHandle, h.lastTransform, h.sent = handle, t, true
}

func (h *remoteHost) updateFrame(msg Message) error {
	if msg.Camera != nil {
		h.camera = msg.Camera.Pose()
	}
	if msg.Hit == nil {
		h.clearSurface()
		return nil
	}
	pose, err := msg.Hit.Pose()
	if err != nil {
		h.clearSurface()
		return err
	}
	h.hit, h.hasHit = pose, true
	return nil
}

func (h *remoteHost) clearSurface() {
	h.hit, h.hasHit = spatial.Pose{}, false
}

// forget drops the dedupe state, so the next transform is always sent.
func (h *remoteHost) forget() {
	h.sent = false
}

func (h *remoteHost) complete(requestID, handle string) error {
	cb, ok := h.pending[requestID]
	if !ok {
		return ErrUnknownRequest
	}
	delete(h.pending, requestID)
	if handle == "" {
		handle = requestID
	}
	h.forget()
	cb.onSuccess(session.AssetHandle(handle))
	return nil
}

func (h *remoteHost) fail(requestID, reason string) error {
	cb, ok := h.pending[requestID]
	if !ok {
		return ErrUnknownRequest
	}
	delete(h.pending, requestID)
	if reason == "" {
		reason = "unspecified"
	}
	cb.onFailure(errors.New(reason))
	return nil
}
