package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/signage-core/internal/auth"
	"github.com/nerrad567/signage-core/internal/infrastructure/config"
	"github.com/nerrad567/signage-core/internal/infrastructure/logging"
	"github.com/nerrad567/signage-core/internal/signage"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// WSMessage is a message sent to or from a display.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub tracks connected displays and pushes change notifications to them.
// It implements signage.EventSink.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *logging.Logger
	presence *auth.Presence
	clients  map[*WSClient]struct{}
	mu       sync.RWMutex
}

// WSClient is one websocket connection opened by a display.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	displayID     string
	subscriptions map[string]struct{}
	mu            sync.RWMutex
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Displays authenticate with a session token, not cookies.
		return true
	},
}

// NewHub creates a hub. presence may be nil.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, presence *auth.Presence) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger.Component("websocket"),
		presence: presence,
		clients:  make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	if h.presence != nil && client.displayID != "" {
		h.presence.Connected(client.displayID)
	}
	h.logger.Debug("websocket client connected", "display_id", client.displayID, "clients", h.ClientCount())
}

// Unregister removes a client from the hub. Only the caller that removes
// the client from the map closes its send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if !existed {
		return
	}
	close(client.send)
	if h.presence != nil && client.displayID != "" {
		h.presence.Disconnected(client.displayID)
	}
	h.logger.Debug("websocket client disconnected", "display_id", client.displayID, "clients", h.ClientCount())
}

// Publish delivers an event to connected clients. views.changed goes only
// to connections of the display named in the payload; other kinds go to
// every client subscribed to the kind.
func (h *Hub) Publish(_ context.Context, kind signage.EventKind, payload any) error {
	msg := WSMessage{
		Type:      WSTypeEvent,
		EventType: string(kind),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	target := ""
	if kind == signage.EventViewsChanged {
		target = displayIDOf(payload)
		if target == "" {
			return errors.New("views.changed payload does not name a display")
		}
	}

	sent := 0
	for _, client := range h.snapshot() {
		if target != "" && client.displayID != target {
			continue
		}
		if client.isSubscribed(string(kind)) {
			client.trySend(data)
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("event pushed", "kind", kind, "recipients", sent)
	}
	return nil
}

func displayIDOf(payload any) string {
	switch d := payload.(type) {
	case signage.Display:
		return d.ID
	case *signage.Display:
		if d != nil {
			return d.ID
		}
	}
	return ""
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DisconnectDisplay closes every connection held by displayID. The read
// pumps notice the closed connection and unregister.
func (h *Hub) DisconnectDisplay(displayID string) int {
	closed := 0
	for _, client := range h.snapshot() {
		if client.displayID == displayID && client.conn != nil {
			client.conn.Close()
			closed++
		}
	}
	return closed
}

// snapshot copies the client list so sends happen without the hub lock.
func (h *Hub) snapshot() []*WSClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for client := range clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		if h.presence != nil && client.displayID != "" {
			h.presence.Disconnected(client.displayID)
		}
	}
}

// sessionToken reads the token from the query string or a bearer header.
func sessionToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// handleWebSocket authenticates a display by session token and upgrades
// the connection. The client starts subscribed to views.changed for its
// own display.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	if token == "" {
		writeUnauthorized(w, "token query parameter is required")
		return
	}

	d, err := s.authenticateDisplay(r, token)
	switch {
	case errors.Is(err, auth.ErrDisplayInactive):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "display is inactive")
		return
	case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, signage.ErrNotFound):
		writeUnauthorized(w, "invalid or expired token")
		return
	case err != nil:
		s.writeServiceError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "display_id", d.ID, "error", err)
		return
	}

	client := &WSClient{
		hub:       s.hub,
		conn:      conn,
		send:      make(chan []byte, wsSendBufferSize),
		displayID: d.ID,
		subscriptions: map[string]struct{}{
			string(signage.EventViewsChanged): {},
		},
	}

	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // best-effort deadline
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "display_id", c.displayID, "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "display_id", c.displayID, "error", err)
			}
			return
		}
		//nolint:errcheck // best-effort deadline
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.handleSubscription(msg, true)
	case WSTypeUnsubscribe:
		c.handleSubscription(msg, false)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handleSubscription adds or removes channels. Every channel must be a
// known event kind.
func (c *WSClient) handleSubscription(msg WSMessage, subscribe bool) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, "invalid payload")
		return
	}
	var sub WSSubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil || len(sub.Channels) == 0 {
		c.sendError(msg.ID, "payload must list channels")
		return
	}
	for _, ch := range sub.Channels {
		if !knownChannel(ch) {
			c.sendError(msg.ID, "unknown channel: "+ch)
			return
		}
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if subscribe {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if subscribe {
		key = "subscribed"
	}
	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{key: sub.Channels})
}

func knownChannel(ch string) bool {
	for _, kind := range signage.EventKinds {
		if string(kind) == ch {
			return true
		}
	}
	return false
}

// trySend queues data for the client. Closed channels and full buffers
// drop the message.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on a channel closed by Unregister
	}()

	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("websocket send buffer full, dropping message", "display_id", c.displayID)
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	msg := WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
