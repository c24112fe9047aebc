// Package server binds browsers to the editor controller.
//
// The PreviewServer serves the editor page and a small JSON API, and runs
// a websocket hub that fans controller events out to every connected
// page. Browsers send edits and tab switches over the same socket; all of
// them share the single controller state.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/livepen/internal/config"
	"github.com/conneroisu/livepen/internal/editor"
	"github.com/conneroisu/livepen/internal/errors"
	"github.com/conneroisu/livepen/internal/logging"
	"github.com/conneroisu/livepen/internal/validation"
)

// Message types sent to the browser in addition to editor.EventType values.
const (
	MessageState = "state"
	MessageError = "error"
)

// Client represents a WebSocket client
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *PreviewServer
}

type unicast struct {
	conn *websocket.Conn
	data []byte
}

// PreviewServer serves the editor page and pushes controller state to
// connected browsers.
type PreviewServer struct {
	config     *config.Config
	controller *editor.Controller
	logger     logging.Logger
	errs       *errors.ErrorHandler

	httpServer  *http.Server
	port        int
	serverMutex sync.RWMutex

	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex
	broadcast    chan []byte
	register     chan *Client
	unregister   chan *websocket.Conn
	direct       chan unicast

	startOnce    sync.Once
	shutdownOnce sync.Once
	done         chan struct{}
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string        `json:"type"`
	State     *editor.State `json:"state,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// New creates a preview server for controller.
func New(cfg *config.Config, controller *editor.Controller, logger logging.Logger) (*PreviewServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	logger = logger.WithComponent("server")
	return &PreviewServer{
		config:     cfg,
		controller: controller,
		logger:     logger,
		errs:       errors.NewErrorHandler(logger),
		port:       cfg.Server.Port,
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn),
		direct:     make(chan unicast, 16),
		done:       make(chan struct{}),
	}, nil
}

// Start listens on the configured address and serves until Shutdown.
func (s *PreviewServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until Shutdown.
func (s *PreviewServer) Serve(ctx context.Context, ln net.Listener) error {
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		s.serverMutex.Lock()
		s.port = tcp.Port
		s.serverMutex.Unlock()
	}

	handler := s.Handler()
	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.startBackground(ctx)

	url := "http://" + ln.Addr().String()
	s.logger.Info(ctx, "Editor available", "url", url)
	if s.config.Server.Open {
		go s.openBrowser(ctx, url)
	}

	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Handler returns the routed handler with middleware applied.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/preview", s.handlePreview)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/edit", s.handleEdit)
	mux.HandleFunc("/api/tab", s.handleTab)
	mux.HandleFunc("/api/hints", s.handleHints)

	return s.addMiddleware(mux)
}

// startBackground starts the hub and the controller event pump once.
func (s *PreviewServer) startBackground(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.runWebSocketHub()
		go s.forwardEvents(ctx)
		go func() {
			select {
			case <-ctx.Done():
			case <-s.done:
				return
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn(shutdownCtx, err, "Server shutdown incomplete")
			}
		}()
	})
}

func (s *PreviewServer) listenPort() int {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	return s.port
}

// forwardEvents relays controller events to the hub.
func (s *PreviewServer) forwardEvents(ctx context.Context) {
	events, cancel := s.controller.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			state := ev.State
			s.broadcastMessage(ctx, UpdateMessage{
				Type:      string(ev.Type),
				State:     &state,
				Timestamp: time.Now(),
			})
		}
	}
}

func (s *PreviewServer) broadcastMessage(ctx context.Context, msg UpdateMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to marshal message", "type", msg.Type)
		return
	}

	select {
	case s.broadcast <- data:
	case <-ctx.Done():
	case <-s.done:
	}
}

// sendTo queues a message for a single client through the hub.
func (s *PreviewServer) sendTo(ctx context.Context, conn *websocket.Conn, msg UpdateMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to marshal message", "type", msg.Type)
		return
	}

	select {
	case s.direct <- unicast{conn: conn, data: data}:
	case <-ctx.Done():
	case <-s.done:
	}
}

func (s *PreviewServer) stateMessage() ([]byte, error) {
	state := s.controller.Snapshot()
	return json.Marshal(UpdateMessage{
		Type:      MessageState,
		State:     &state,
		Timestamp: time.Now(),
	})
}

// ClientCount reports connected websocket clients.
func (s *PreviewServer) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}

func (s *PreviewServer) isShutdown() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *PreviewServer) openBrowser(ctx context.Context, url string) {
	time.Sleep(100 * time.Millisecond)

	if err := validation.ValidateURL(url); err != nil {
		s.logger.Warn(ctx, err, "Browser open failed due to invalid URL")
		return
	}

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}

	if err != nil {
		s.logger.Warn(ctx, err, "Failed to open browser", "url", url)
	}
}

func (s *PreviewServer) addMiddleware(handler http.Handler) http.Handler {
	secured := SecurityMiddleware(SecurityConfigFromAppConfig(s.config, s.listenPort(), s.logger))(handler)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		secured.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

// Shutdown closes every websocket client and stops the HTTP server.
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")
		close(s.done)

		// Closing the send queues makes each write pump close its
		// connection.
		s.clientsMutex.Lock()
		for _, client := range s.clients {
			close(client.send)
		}
		s.clients = make(map[*websocket.Conn]*Client)
		s.clientsMutex.Unlock()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}
