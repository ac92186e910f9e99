// Package server exposes sessions to remote Scene Hosts over WebSocket. Each
// connection gets its own Session; the client streams frames, touches and
// triggers and receives load requests, transforms and state changes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"slices"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/zeusync/xrplace/internal/config"
	"github.com/zeusync/xrplace/internal/core/observability/log"
	"github.com/zeusync/xrplace/internal/core/session"
)

// Server represents an xrplace bridge server
type Server struct {
	config     config.ServerConfig
	sessionCfg session.Config
	logger     log.Log

	upgrader websocket.Upgrader
	registry *registry
	stats    *eventStats

	httpServer *http.Server
	listener   net.Listener

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool

	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a new server. A nil logger falls back to the process default.
func New(cfg config.Config, logger log.Log) *Server {
	if logger == nil {
		logger = log.Provide()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:     cfg.Server,
		sessionCfg: cfg.Session,
		logger:     logger.With(log.String("component", "server")),
		registry:   newRegistry(cfg.Server.Shards),
		stats:      &eventStats{},
		baseCtx:    ctx,
		cancel:     cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.Server.ReadBufferSize,
		WriteBufferSize: cfg.Server.WriteBufferSize,
		CheckOrigin:     s.checkOrigin,
	}

	s.logger.Info("Server created",
		log.String("listen_addr", cfg.Server.ListenAddr),
		log.Int("max_clients", cfg.Server.MaxClients),
		log.Stringer("placement_mode", cfg.Session.Placement.Mode))
	return s
}

// Handler returns the HTTP routes: /ws for sessions and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return err
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return s.baseCtx },
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", log.Error(err))
		}
	}()

	s.logger.Info("Server listening", log.String("addr", listener.Addr().String()))
	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the HTTP server down and closes every session. Sessions share
// a base context that Stop cancels, so a stopped server cannot be restarted.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}
	atomic.StoreInt32(&s.closed, 1)
	s.logger.Info("Stopping server", log.Int("sessions", s.registry.len()))

	// hijacked websocket connections are not tracked by http.Server
	s.cancel()
	err := s.httpServer.Shutdown(ctx)
	s.registry.each(func(c *connection) bool {
		c.close()
		return true
	})

	s.logger.Info("Server stopped")
	return err
}

// Close stops the server if needed and prevents restarts.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	if atomic.LoadInt32(&s.running) == 1 {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.Stop(ctx); err != nil {
			return err
		}
	}
	s.cancel()
	return nil
}

// Sessions reports the number of live sessions.
func (s *Server) Sessions() int { return s.registry.len() }

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.config.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.config.AllowedOrigins, r.Header.Get("Origin"))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.registry.len() >= s.config.MaxClients {
		s.logger.Warn("Maximum clients reached, rejecting connection", log.String("remote_addr", r.RemoteAddr))
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied with an HTTP error
		s.logger.Debug("Upgrade failed", log.String("remote_addr", r.RemoteAddr), log.Error(err))
		return
	}

	conn, err := newConnection(ws, s.config, s.sessionCfg, s.logger, s.stats)
	if err != nil {
		s.logger.Error("Failed to create session", log.Error(err))
		_ = ws.WriteJSON(Message{Type: TypeError, Error: err.Error()})
		_ = ws.Close()
		return
	}
	if err := s.registry.add(conn, s.config.MaxClients); err != nil {
		_ = ws.WriteJSON(Message{Type: TypeError, Error: err.Error()})
		_ = ws.Close()
		return
	}
	defer s.registry.remove(conn.ID())

	s.logger.Info("Client connected",
		log.String("session_id", conn.ID()),
		log.String("remote_addr", r.RemoteAddr),
		log.Int("total_clients", s.registry.len()))

	if err := conn.run(s.baseCtx); err != nil {
		s.logger.Warn("Session ended with error", log.String("session_id", conn.ID()), log.Error(err))
	}

	s.logger.Info("Client disconnected",
		log.String("session_id", conn.ID()),
		log.Int("total_clients", s.registry.len()-1))
}

type healthResponse struct {
	Status   string             `json:"status"`
	Sessions int                `json:"sessions"`
	Events   eventStatsSnapshot `json:"events"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if atomic.LoadInt32(&s.closed) == 1 {
		status = "closed"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{Status: status, Sessions: s.registry.len(), Events: s.stats.snapshot()})
}
