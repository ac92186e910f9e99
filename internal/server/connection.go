package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/xrplace/internal/config"
	"github.com/zeusync/xrplace/internal/core/events/bus"
	"github.com/zeusync/xrplace/internal/core/gesture"
	"github.com/zeusync/xrplace/internal/core/observability/log"
	"github.com/zeusync/xrplace/internal/core/placement"
	"github.com/zeusync/xrplace/internal/core/session"
	"github.com/zeusync/xrplace/internal/core/spatial"
)

// connection drives one Session. The read goroutine is the session's only
// thread: every inbound message, asset callback and render tick runs there in
// arrival order. A second goroutine drains the outbox to the socket.
type connection struct {
	ws      *websocket.Conn
	cfg     config.ServerConfig
	logger  log.Log
	host    *remoteHost
	session *session.Session
	events  bus.EventBus

	subs     []bus.Subscription
	observer bus.EventBusObserver

	outbox    chan Message
	closeOnce sync.Once
}

// newConnection builds the session for ws. A non-nil observer is attached to
// the session's bus until release.
func newConnection(ws *websocket.Conn, cfg config.ServerConfig, sessionCfg session.Config, logger log.Log, observer bus.EventBusObserver) (*connection, error) {
	c := &connection{
		ws:       ws,
		cfg:      cfg,
		events:   bus.New(),
		observer: observer,
		outbox:   make(chan Message, cfg.OutboxSize),
	}
	c.host = newRemoteHost(c.enqueue)

	sess, err := session.New(sessionCfg, c.host, c.events, logger)
	if err != nil {
		return nil, err
	}
	c.session = sess
	c.logger = logger.With(
		log.String("component", "connection"),
		log.String("session_id", sess.ID()),
		log.String("remote_addr", ws.RemoteAddr().String()))

	if err := c.subscribe(); err != nil {
		c.release()
		return nil, err
	}
	if observer != nil {
		c.events.AddObserver(observer)
	}
	return c, nil
}

func (c *connection) ID() string { return c.session.ID() }

func (c *connection) subscribe() error {
	handlers := map[string]bus.EventHandler{
		session.EventPlacementState: func(e bus.Event) error {
			changed := e.Data().(session.PlacementStateChanged)
			return c.enqueue(Message{Type: TypePlacementState, State: changed.State.String()})
		},
		session.EventReticle: func(e bus.Event) error {
			changed := e.Data().(session.ReticleChanged)
			visible := changed.Visible
			return c.enqueue(Message{Type: TypeReticle, Visible: &visible, Position: changed.Pose.Position})
		},
		session.EventLoadFailed: func(e bus.Event) error {
			failed := e.Data().(session.LoadFailed)
			return c.enqueue(Message{Type: TypeError, Error: failed.Err.Error()})
		},
		bus.Wildcard: c.logEvent,
	}
	for eventType, handler := range handlers {
		sub, err := c.events.Subscribe(eventType, handler)
		if err != nil {
			return err
		}
		c.subs = append(c.subs, sub)
	}
	return nil
}

func (c *connection) logEvent(e bus.Event) error {
	fields := []log.Field{log.String("event", e.Type())}
	switch data := e.Data().(type) {
	case session.LoadRequested:
		fields = append(fields, log.String("path", data.Path),
			log.Float64("x", data.Anchor.X()), log.Float64("y", data.Anchor.Y()), log.Float64("z", data.Anchor.Z()))
	case session.TransformChanged:
		fields = append(fields, log.String("handle", string(data.Handle)),
			log.Float64("yaw", data.Transform.Yaw), log.Float64("scale", data.Transform.Scale))
	case session.PlacementStateChanged:
		fields = append(fields, log.Stringer("state", data.State), log.Stringer("previous", data.Previous))
	}
	c.logger.Debug("Session event", fields...)
	return nil
}

// release detaches every subscription and the observer from the session bus.
func (c *connection) release() {
	for _, sub := range c.subs {
		_ = c.events.Unsubscribe(sub)
	}
	c.subs = nil
	if c.observer == nil {
		return
	}
	m := c.events.GetMetrics()
	c.events.RemoveObserver(c.observer)
	c.logger.Debug("Session bus released",
		log.Uint64("published", m.Published),
		log.Uint64("delivered", m.DeliveredHandlers),
		log.Uint64("errors", m.Errors))
}

// enqueue queues msg for the writer. A full outbox means the client stopped
// reading; the connection is closed rather than blocking the session thread.
func (c *connection) enqueue(msg Message) error {
	select {
	case c.outbox <- msg:
		return nil
	default:
		c.logger.Warn("Outbox full, closing connection", log.String("type", msg.Type))
		c.close()
		return ErrOutboxFull
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() { _ = c.ws.Close() })
}

func (c *connection) run(ctx context.Context) error {
	defer c.release()
	defer c.close()

	if err := c.enqueue(Message{
		Type:      TypeHello,
		SessionID: c.session.ID(),
		Mode:      c.session.Mode().String(),
	}); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := c.readLoop()
		c.close()
		return err
	})
	g.Go(func() error { return c.writeLoop(gctx) })

	err := g.Wait()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *connection) readLoop() error {
	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
		if kind != websocket.TextMessage {
			continue
		}

		msg, err := decodeMessage(data)
		if err == nil {
			err = c.dispatch(msg)
		}
		if errors.Is(err, ErrOutboxFull) {
			return err
		}
		if err != nil {
			c.logger.Debug("Rejected message", log.String("type", msg.Type), log.Error(err))
			if err := c.enqueue(Message{Type: TypeError, Error: err.Error()}); err != nil {
				return err
			}
		}
	}
}

func (c *connection) dispatch(msg Message) error {
	switch msg.Type {
	case TypeFrame:
		if msg.Viewport != nil {
			c.session.SetViewport(spatial.Viewport{Width: msg.Viewport.Width, Height: msg.Viewport.Height})
		}
		err := c.host.updateFrame(msg)
		c.session.Tick()
		return err

	case TypeSelect:
		trigger := placement.Trigger{}
		if msg.Point != nil {
			trigger = placement.TriggerAt(msg.Point.X, msg.Point.Y)
		}
		if err := c.session.Select(trigger); err != nil && !session.IsRecoverable(err) {
			return err
		}
		return nil

	case TypeTouchStart, TypeTouchEnd:
		c.session.ContactsChanged(gesture.NewTouchSet(msg.Contacts...))
		return nil

	case TypeTouchMove:
		c.session.ContactsMoved(gesture.NewTouchSet(msg.Contacts...))
		return nil

	case TypeAssetLoaded:
		return c.host.complete(msg.RequestID, msg.Handle)

	case TypeAssetFailed:
		return c.host.fail(msg.RequestID, msg.Reason)

	case TypeSurfaceLost:
		c.host.clearSurface()
		c.session.Tick()
		return nil

	case TypeRemove:
		if err := c.session.RemoveObject(); err != nil {
			return err
		}
		c.host.forget()
		return nil

	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, msg.Type)
	}
}

func (c *connection) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PongTimeout * 9 / 10)
	defer ticker.Stop()
	// unblocks the reader when writing fails or the server shuts down
	defer c.close()

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
			return ctx.Err()

		case msg := <-c.outbox:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteJSON(msg); err != nil {
				return err
			}

		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return err
			}
		}
	}
}
