package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/xrplace/internal/config"
	"github.com/zeusync/xrplace/internal/core/gesture"
	"github.com/zeusync/xrplace/internal/core/placement"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())
	srv := New(cfg, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg Message) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func expect(t *testing.T, conn *websocket.Conn, msgType string) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, msgType, msg.Type, "unexpected message %+v", msg)
	return msg
}

func hitAt(x, y, z float64) *HitMessage {
	m := mgl64.Translate3D(x, y, z)
	return &HitMessage{Matrix: m[:]}
}

func frame(hit *HitMessage) Message {
	return Message{
		Type:   TypeFrame,
		Camera: &CameraMessage{Position: mgl64.Vec3{0, 1.6, 0}, Forward: mgl64.Vec3{0, -0.5, -1}},
		Hit:    hit,
	}
}

func TestWebSocketSession(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	conn := dial(t, ts)

	hello := expect(t, conn, TypeHello)
	require.NotEmpty(t, hello.SessionID)
	require.Equal(t, "surface_hit_test", hello.Mode)

	// no surface yet: silently ignored
	send(t, conn, Message{Type: TypeSelect})

	send(t, conn, frame(hitAt(0.2, 0, -1)))
	reticle := expect(t, conn, TypeReticle)
	require.NotNil(t, reticle.Visible)
	require.True(t, *reticle.Visible)
	require.True(t, reticle.Position.ApproxEqualThreshold(mgl64.Vec3{0.2, 0, -1}, 1e-9))

	send(t, conn, Message{Type: TypeSelect})
	require.Equal(t, "loading", expect(t, conn, TypePlacementState).State)
	load := expect(t, conn, TypeLoadAsset)
	require.Equal(t, "/elefante.glb", load.Path)
	require.NotEmpty(t, load.RequestID)

	// a second trigger while loading must not request another load
	send(t, conn, Message{Type: TypeSelect})

	send(t, conn, Message{Type: TypeAssetLoaded, RequestID: load.RequestID, Handle: "elephant"})
	require.Equal(t, "placed", expect(t, conn, TypePlacementState).State)

	send(t, conn, frame(hitAt(0.2, 0, -1)))
	tr := expect(t, conn, TypeTransform)
	require.Equal(t, "elephant", tr.Handle)
	require.NotNil(t, tr.Transform)
	require.True(t, tr.Transform.Position.ApproxEqualThreshold(mgl64.Vec3{0.2, 0, -1}, 1e-9))
	require.Equal(t, 0.5, tr.Transform.Scale)

	t.Run("Pinch scales and gates triggers", func(t *testing.T) {
		send(t, conn, Message{Type: TypeTouchStart, Contacts: []gesture.Contact{{ID: 1, X: 100, Y: 500}, {ID: 2, X: 200, Y: 500}}})
		send(t, conn, frame(hitAt(1, 0, -3)))
		send(t, conn, Message{Type: TypeSelect})
		send(t, conn, Message{Type: TypeTouchMove, Contacts: []gesture.Contact{{ID: 1, X: 100, Y: 500}, {ID: 2, X: 300, Y: 500}}})
		send(t, conn, frame(hitAt(1, 0, -3)))

		tr := expect(t, conn, TypeTransform)
		require.InDelta(t, 1.0, tr.Transform.Scale, 1e-12)
		// the gated trigger did not move the object
		require.True(t, tr.Transform.Position.ApproxEqualThreshold(mgl64.Vec3{0.2, 0, -1}, 1e-9))
	})

	t.Run("Trigger after gesture re-anchors", func(t *testing.T) {
		send(t, conn, Message{Type: TypeTouchEnd})
		send(t, conn, Message{Type: TypeSelect})
		send(t, conn, frame(hitAt(1, 0, -3)))

		tr := expect(t, conn, TypeTransform)
		require.True(t, tr.Transform.Position.ApproxEqualThreshold(mgl64.Vec3{1, 0, -3}, 1e-9))
		require.InDelta(t, 1.0, tr.Transform.Scale, 1e-12)
	})

	t.Run("Invalid messages are reported", func(t *testing.T) {
		send(t, conn, Message{Type: "dance"})
		require.Contains(t, expect(t, conn, TypeError).Error, "unknown type")

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
		require.Contains(t, expect(t, conn, TypeError).Error, ErrInvalidMessage.Error())

		send(t, conn, Message{Type: TypeAssetLoaded, RequestID: "nope"})
		require.Contains(t, expect(t, conn, TypeError).Error, ErrUnknownRequest.Error())
	})

	t.Run("Surface lost hides the reticle", func(t *testing.T) {
		send(t, conn, Message{Type: TypeSurfaceLost})
		reticle := expect(t, conn, TypeReticle)
		require.False(t, *reticle.Visible)
	})

	t.Run("Remove", func(t *testing.T) {
		send(t, conn, Message{Type: TypeRemove})
		require.Equal(t, "not_placed", expect(t, conn, TypePlacementState).State)
	})

	require.Equal(t, 1, srv.Sessions())
}

func TestWebSocketAssetFailure(t *testing.T) {
	_, ts := newTestServer(t, nil)
	conn := dial(t, ts)
	expect(t, conn, TypeHello)

	send(t, conn, frame(&HitMessage{Position: &mgl64.Vec3{0, 0, -1}}))
	expect(t, conn, TypeReticle)

	send(t, conn, Message{Type: TypeSelect})
	expect(t, conn, TypePlacementState)
	load := expect(t, conn, TypeLoadAsset)

	send(t, conn, Message{Type: TypeAssetFailed, RequestID: load.RequestID, Reason: "404 not found"})
	require.Contains(t, expect(t, conn, TypeError).Error, "404 not found")
	require.Equal(t, "not_placed", expect(t, conn, TypePlacementState).State)

	// retry starts a fresh load
	send(t, conn, Message{Type: TypeSelect})
	require.Equal(t, "loading", expect(t, conn, TypePlacementState).State)
	retry := expect(t, conn, TypeLoadAsset)
	require.NotEqual(t, load.RequestID, retry.RequestID)
}

func TestWebSocketFixedOffsetWithViewport(t *testing.T) {
	_, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Session.Placement.Mode = placement.ModeFixedOffset
	})
	conn := dial(t, ts)
	require.Equal(t, "fixed_offset", expect(t, conn, TypeHello).Mode)

	msg := frame(nil)
	msg.Viewport = &ViewportMessage{Width: 640, Height: 480}
	send(t, conn, msg)

	send(t, conn, Message{Type: TypeSelect, Point: &PointMessage{X: 10, Y: 10}})
	expect(t, conn, TypePlacementState)
	load := expect(t, conn, TypeLoadAsset)
	send(t, conn, Message{Type: TypeAssetLoaded, RequestID: load.RequestID})
	expect(t, conn, TypePlacementState)

	send(t, conn, frame(nil))
	tr := expect(t, conn, TypeTransform)
	// handle defaults to the request id
	require.Equal(t, load.RequestID, tr.Handle)
	require.InDelta(t, 1.6, tr.Transform.Position.Y(), 1e-9)
}

func TestMaxClients(t *testing.T) {
	_, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.MaxClients = 1
	})
	first := dial(t, ts)
	expect(t, first, TypeHello)

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestOriginCheck(t *testing.T) {
	_, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.AllowedOrigins = []string{"https://allowed.test"}
	})
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	_, _, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"https://evil.test"}})
	require.Error(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"https://allowed.test"}})
	require.NoError(t, err)
	defer conn.Close()
	expect(t, conn, TypeHello)
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, nil)
	conn := dial(t, ts)
	expect(t, conn, TypeHello)

	send(t, conn, frame(hitAt(0, 0, -1)))
	expect(t, conn, TypeReticle)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, 1, body.Sessions)
	// the reticle event was published on the session bus
	require.GreaterOrEqual(t, body.Events.Published, uint64(1))
	require.Zero(t, body.Events.Errors)
}

func TestStartStop(t *testing.T) {
	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	srv := New(cfg, nil)

	require.NoError(t, srv.Start(t.Context()))
	require.ErrorIs(t, srv.Start(t.Context()), ErrServerAlreadyRunning)
	require.NotNil(t, srv.Addr())

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	expect(t, conn, TypeHello)

	require.NoError(t, srv.Close())
	require.ErrorIs(t, srv.Start(t.Context()), ErrServerClosed)
	require.ErrorIs(t, srv.Stop(t.Context()), ErrServerNotRunning)

	// the session is torn down with the server
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
}

func TestStopPreventsRestart(t *testing.T) {
	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	srv := New(cfg, nil)

	require.NoError(t, srv.Start(t.Context()))
	require.NoError(t, srv.Stop(t.Context()))
	require.ErrorIs(t, srv.Start(t.Context()), ErrServerClosed)
	require.NoError(t, srv.Close())

	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "closed", body.Status)
}
