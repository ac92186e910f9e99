// Package client is a Go Scene Host for the xrplace bridge. It streams camera
// frames, touches and triggers to the server and answers asset load requests.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/xrplace/internal/core/gesture"
	"github.com/zeusync/xrplace/internal/core/observability/log"
	"github.com/zeusync/xrplace/internal/core/spatial"
	"github.com/zeusync/xrplace/internal/server"
)

// Client represents one placement session held by a remote Scene Host.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	// Session identity from the hello message
	sessionID string
	mode      string

	// Event handlers
	messageHandlers map[string][]MessageHandler
	eventHandlers   map[EventType][]EventHandler
	handlerMutex    sync.RWMutex

	// Lifecycle
	connecting int32 // atomic bool, held while dialing and greeting
	connected  int32 // atomic bool, set once conn is usable
	closed     int32 // atomic bool
	done       chan struct{}

	config Config
	logger log.Log

	workerGroup sync.WaitGroup
}

// AssetLoader resolves an asset path to a host handle. When configured the
// client answers load_asset requests itself.
type AssetLoader func(path string) (handle string, err error)

// Config holds configuration for the client
type Config struct {
	ServerURL      string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration

	// Optional automatic answer to load_asset
	Loader AssetLoader
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		ServerURL:      "ws://127.0.0.1:8080/ws",
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   5 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("%w: server url is required", ErrInvalidConfig)
	}
	if c.ConnectTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	return nil
}

// MessageHandler handles one server message of a registered type
type MessageHandler func(msg server.Message) error

// EventHandler defines a function type for handling client events
type EventHandler func(event Event) error

// EventType represents different types of client events
type EventType string

const (
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"
)

// Event represents a client event
type Event struct {
	Type      EventType
	Timestamp time.Time
	Error     error
}

// NewClient creates a client. The logger may be nil.
func NewClient(config Config, logger log.Log) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		messageHandlers: make(map[string][]MessageHandler),
		eventHandlers:   make(map[EventType][]EventHandler),
		done:            make(chan struct{}),
		config:          config,
		logger:          logger.With(log.String("component", "client")),
	}, nil
}

// Connect dials the server and waits for the session greeting.
func (c *Client) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if atomic.LoadInt32(&c.connected) == 1 || !atomic.CompareAndSwapInt32(&c.connecting, 0, 1) {
		return ErrAlreadyConnected
	}
	defer atomic.StoreInt32(&c.connecting, 0)

	c.logger.Info("Connecting to server", log.String("url", c.config.ServerURL))

	connectCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(connectCtx, c.config.ServerURL, nil)
	if err != nil {
		c.logger.Error("Failed to connect to server", log.String("url", c.config.ServerURL), log.Error(err))
		return err
	}

	if deadline, ok := connectCtx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	var hello server.Message
	if err = conn.ReadJSON(&hello); err == nil && hello.Type != server.TypeHello {
		err = fmt.Errorf("got %q", hello.Type)
	}
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	c.writeMu.Lock()
	c.conn = conn
	c.sessionID, c.mode = hello.SessionID, hello.Mode
	atomic.StoreInt32(&c.connected, 1)
	c.writeMu.Unlock()

	c.logger.Info("Connected to server",
		log.String("session_id", c.sessionID),
		log.String("mode", c.mode))

	c.workerGroup.Add(1)
	go c.messageReceiver(conn)

	c.emitEvent(Event{Type: EventTypeConnected, Timestamp: time.Now()})
	return nil
}

// Disconnect closes the connection to the server
func (c *Client) Disconnect() error {
	if !atomic.CompareAndSwapInt32(&c.connected, 1, 0) {
		return ErrNotConnected
	}

	c.logger.Info("Disconnecting from server")

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.config.WriteTimeout))
	c.writeMu.Unlock()
	_ = c.conn.Close()

	c.workerGroup.Wait()
	return nil
}

// Close closes the client and releases all resources
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if atomic.LoadInt32(&c.connected) == 1 {
		_ = c.Disconnect()
	}
	close(c.done)
	c.logger.Info("Client closed")
	return nil
}

// Done is closed once Close has been called.
func (c *Client) Done() <-chan struct{} { return c.done }

// SendMessage sends a raw message to the server
func (c *Client) SendMessage(msg server.Message) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if atomic.LoadInt32(&c.connected) == 0 {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(msg)
}

// Frame reports the current camera, and the surface hit if any.
func (c *Client) Frame(camera spatial.CameraPose, hit *spatial.Pose) error {
	msg := server.Message{
		Type:   server.TypeFrame,
		Camera: &server.CameraMessage{Position: camera.Position, Forward: camera.Forward, Up: camera.Up},
	}
	if hit != nil {
		m := hit.Matrix()
		msg.Hit = &server.HitMessage{Matrix: m[:]}
	}
	return c.SendMessage(msg)
}

// Resize reports a new viewport together with the camera.
func (c *Client) Resize(camera spatial.CameraPose, viewport spatial.Viewport) error {
	return c.SendMessage(server.Message{
		Type:     server.TypeFrame,
		Camera:   &server.CameraMessage{Position: camera.Position, Forward: camera.Forward, Up: camera.Up},
		Viewport: &server.ViewportMessage{Width: viewport.Width, Height: viewport.Height},
	})
}

// Select sends a placement trigger. A nil point means the screen center.
func (c *Client) Select(point *spatial.Vec2) error {
	msg := server.Message{Type: server.TypeSelect}
	if point != nil {
		msg.Point = &server.PointMessage{X: point.X, Y: point.Y}
	}
	return c.SendMessage(msg)
}

func (c *Client) TouchStart(contacts ...gesture.Contact) error {
	return c.SendMessage(server.Message{Type: server.TypeTouchStart, Contacts: contacts})
}

func (c *Client) TouchMove(contacts ...gesture.Contact) error {
	return c.SendMessage(server.Message{Type: server.TypeTouchMove, Contacts: contacts})
}

// TouchEnd reports the contacts still down after a finger lifts.
func (c *Client) TouchEnd(remaining ...gesture.Contact) error {
	return c.SendMessage(server.Message{Type: server.TypeTouchEnd, Contacts: remaining})
}

func (c *Client) AssetLoaded(requestID, handle string) error {
	return c.SendMessage(server.Message{Type: server.TypeAssetLoaded, RequestID: requestID, Handle: handle})
}

func (c *Client) AssetFailed(requestID string, reason error) error {
	return c.SendMessage(server.Message{Type: server.TypeAssetFailed, RequestID: requestID, Reason: reason.Error()})
}

func (c *Client) SurfaceLost() error {
	return c.SendMessage(server.Message{Type: server.TypeSurfaceLost})
}

func (c *Client) Remove() error {
	return c.SendMessage(server.Message{Type: server.TypeRemove})
}

// OnMessage registers a message handler for a specific message type
func (c *Client) OnMessage(msgType string, handler MessageHandler) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()
	c.messageHandlers[msgType] = append(c.messageHandlers[msgType], handler)
}

// OnEvent registers an event handler for a specific event type
func (c *Client) OnEvent(eventType EventType, handler EventHandler) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()
	c.eventHandlers[eventType] = append(c.eventHandlers[eventType], handler)
}

func (c *Client) SessionID() string { return c.sessionID }

// Mode is the server's placement mode name.
func (c *Client) Mode() string { return c.mode }

// IsConnected returns true if the client is connected
func (c *Client) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// IsClosed returns true if the client is closed
func (c *Client) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// messageReceiver handles incoming messages until the connection drops.
func (c *Client) messageReceiver(conn *websocket.Conn) {
	defer c.workerGroup.Done()

	for {
		var msg server.Message
		if err := conn.ReadJSON(&msg); err != nil {
			_ = conn.Close()
			wasConnected := atomic.CompareAndSwapInt32(&c.connected, 1, 0)
			if wasConnected && !errors.Is(err, websocket.ErrCloseSent) &&
				!websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.emitEvent(Event{Type: EventTypeError, Timestamp: time.Now(), Error: err})
			}
			c.emitEvent(Event{Type: EventTypeDisconnected, Timestamp: time.Now()})
			return
		}
		c.handleMessage(msg)
	}
}

// handleMessage processes an incoming message
func (c *Client) handleMessage(msg server.Message) {
	if msg.Type == server.TypeLoadAsset && c.config.Loader != nil {
		c.answerLoad(msg)
	}

	c.handlerMutex.RLock()
	handlers := c.messageHandlers[msg.Type]
	c.handlerMutex.RUnlock()

	for _, handler := range handlers {
		if err := handler(msg); err != nil {
			c.logger.Error("Message handler failed", log.String("type", msg.Type), log.Error(err))
		}
	}
}

func (c *Client) answerLoad(msg server.Message) {
	handle, err := c.config.Loader(msg.Path)
	if err != nil {
		c.logger.Warn("Asset load failed", log.String("path", msg.Path), log.Error(err))
		err = c.AssetFailed(msg.RequestID, err)
	} else {
		err = c.AssetLoaded(msg.RequestID, handle)
	}
	if err != nil {
		c.logger.Error("Failed to answer asset request", log.String("request_id", msg.RequestID), log.Error(err))
	}
}

// emitEvent emits an event to registered handlers
func (c *Client) emitEvent(event Event) {
	c.handlerMutex.RLock()
	handlers := c.eventHandlers[event.Type]
	c.handlerMutex.RUnlock()

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			c.logger.Error("Event handler failed", log.String("event", string(event.Type)), log.Error(err))
		}
	}
}
