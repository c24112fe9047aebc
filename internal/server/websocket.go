package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/livepen/internal/editor"
	"github.com/conneroisu/livepen/internal/errors"
	"github.com/conneroisu/livepen/internal/validation"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer: a full buffer plus envelope.
	maxMessageSize = 1<<20 + 4096

	// Outbound messages queued per client before it is dropped.
	clientBuffer = 256
)

// Inbound message types.
const (
	inboundEdit = "edit"
	inboundTab  = "tab"
	inboundPing = "ping"
)

// inboundMessage is a browser request. Edits carry the tab they were made
// in so a tab switch racing an edit cannot misroute the value.
type inboundMessage struct {
	Type  string `json:"type"`
	Tab   string `json:"tab,omitempty"`
	Value string `json:"value"`
}

func (s *PreviewServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.isShutdown() {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}

	if !s.checkOrigin(r) {
		s.logger.Warn(r.Context(), errors.ErrInvalidOrigin(r.Header.Get("Origin")),
			"Rejected websocket", "ip", getClientIP(r))
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade error")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, clientBuffer),
		server: s,
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	go client.writePump(ctx)
	go client.readPump(ctx, cancel)
}

// checkOrigin validates the request origin for security
func (s *PreviewServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	return validation.ValidateOrigin(origin, allowedOrigins(s.config, s.listenPort())) == nil
}

// originPatterns lists allowed origin hosts for the websocket handshake.
func (s *PreviewServer) originPatterns() []string {
	allowed := allowedOrigins(s.config, s.listenPort())
	patterns := make([]string, 0, len(allowed))
	for _, a := range allowed {
		if u, err := url.Parse(a); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, a)
	}
	return patterns
}

func (s *PreviewServer) runWebSocketHub() {
	for {
		select {
		case <-s.done:
			return

		case client := <-s.register:
			s.clientsMutex.Lock()
			s.clients[client.conn] = client
			clientCount := len(s.clients)
			s.clientsMutex.Unlock()
			s.logger.Debug(context.Background(), "Client connected", "clients", clientCount)

			// The snapshot is taken after registration so no event is lost
			// between the two.
			data, err := s.stateMessage()
			if err != nil {
				s.logger.Error(context.Background(), err, "Failed to marshal state")
				continue
			}
			s.deliver(client.conn, data)

		case conn := <-s.unregister:
			s.removeClient(conn)

		case msg := <-s.direct:
			s.deliver(msg.conn, msg.data)

		case message := <-s.broadcast:
			s.clientsMutex.RLock()
			var failedClients []*websocket.Conn
			for conn, client := range s.clients {
				select {
				case client.send <- message:
				default:
					failedClients = append(failedClients, conn)
				}
			}
			s.clientsMutex.RUnlock()

			for _, conn := range failedClients {
				s.logger.Warn(context.Background(), nil, "Dropping slow websocket client")
				s.removeClient(conn)
			}
		}
	}
}

func (s *PreviewServer) deliver(conn *websocket.Conn, data []byte) {
	s.clientsMutex.RLock()
	client, ok := s.clients[conn]
	full := false
	if ok {
		select {
		case client.send <- data:
		default:
			full = true
		}
	}
	s.clientsMutex.RUnlock()

	if full {
		s.removeClient(conn)
	}
}

// removeClient forgets conn and closes its send queue; the write pump
// then closes the connection.
func (s *PreviewServer) removeClient(conn *websocket.Conn) {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()

	if client, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		close(client.send)
		s.logger.Debug(context.Background(), "Client disconnected", "clients", len(s.clients))
	}
}

// applyInbound performs a browser request against the controller.
func (s *PreviewServer) applyInbound(ctx context.Context, msg inboundMessage) error {
	switch msg.Type {
	case inboundEdit:
		if msg.Tab == "" {
			return s.controller.Edit(ctx, msg.Value)
		}
		tab, err := editor.ParseTab(msg.Tab)
		if err != nil {
			return err
		}
		if tab == editor.TabStyleConfig {
			return s.controller.SetStyleConfig(ctx, msg.Value)
		}
		return s.controller.SetMarkup(ctx, msg.Value)

	case inboundTab:
		tab, err := editor.ParseTab(msg.Tab)
		if err != nil {
			return err
		}
		return s.controller.SetTab(ctx, tab)

	case inboundPing:
		return nil

	default:
		return errors.NewValidationError(errors.ErrCodeInvalidMessage, "unknown message type "+msg.Type)
	}
}

// readPump pumps messages from the websocket connection
func (c *Client) readPump(ctx context.Context, cancel context.CancelFunc) {
	defer func() {
		cancel()
		select {
		case c.server.unregister <- c.conn:
		case <-c.server.done:
		}
	}()

	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				c.server.logger.Debug(ctx, "WebSocket read ended", "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			err = errors.NewValidationError(errors.ErrCodeInvalidMessage, "malformed message: "+err.Error())
			c.reject(ctx, err)
			continue
		}
		if err := c.server.applyInbound(ctx, msg); err != nil {
			if err == editor.ErrClosed {
				return
			}
			c.reject(ctx, err)
		}
	}
}

func (c *Client) reject(ctx context.Context, err error) {
	c.server.errs.Handle(ctx, err)
	c.server.sendTo(ctx, c.conn, UpdateMessage{
		Type:      MessageError,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
}

// writePump pumps messages to the websocket connection
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.server.logger.Debug(ctx, "WebSocket write error", "error", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
