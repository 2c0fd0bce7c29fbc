package api

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/traffic-relay/internal/infrastructure/config"
	"github.com/nerrad567/traffic-relay/internal/infrastructure/logging"
)

// WebSocket defaults used when the config leaves a value at zero.
const (
	defaultSendBuffer     = 64
	defaultMaxMessageSize = 4096
	defaultPingInterval   = 30 * time.Second
	defaultPongTimeout    = 10 * time.Second
)

// Hub manages browser WebSocket connections and pushes light frames to
// them. The channel is push-only: inbound messages are read and discarded.
//
// Thread Safety: all methods are safe for concurrent use.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *logging.Logger
	upgrader websocket.Upgrader

	clients map[*WSClient]struct{}
	closed  bool
	mu      sync.RWMutex

	onConnect  func()
	callbackMu sync.RWMutex

	framesSent    atomic.Uint64
	framesDropped atomic.Uint64
}

// WSClient is one connected browser.
type WSClient struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// HubStats holds hub counters for the metrics endpoint.
type HubStats struct {
	ConnectedClients int    `json:"connected_clients"`
	FramesSent       uint64 `json:"frames_sent"`
	FramesDropped    uint64 `json:"frames_dropped"`
}

// NewHub creates a hub. Mount it with ServeHTTP.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	h := &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// SetOnConnect sets a callback run after each new client is registered.
// The relay uses it to announce the current state.
func (h *Hub) SetOnConnect(fn func()) {
	h.callbackMu.Lock()
	defer h.callbackMu.Unlock()
	h.onConnect = fn
}

// Broadcast queues frame for every connected client. A client whose
// buffer is full misses this frame; nobody else is affected. Frames are
// queued per client in call order.
func (h *Hub) Broadcast(frame string) {
	data := []byte(frame)

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if client.trySend(data) {
			h.framesSent.Add(1)
		} else {
			h.framesDropped.Add(1)
		}
	}
	if len(clients) > 0 {
		h.logger.Debug("frame broadcast", "frame", frame, "recipients", len(clients))
	}
}

// ServeHTTP upgrades the request and registers the new client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "shutting down")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	client := &WSClient{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.sendBuffer()),
	}

	if !h.Register(client) {
		conn.Close() //nolint:errcheck // Hub closed during upgrade
		return
	}

	go client.writePump()
	go client.readPump()

	h.callbackMu.RLock()
	onConnect := h.onConnect
	h.callbackMu.RUnlock()
	if onConnect != nil {
		onConnect()
	}
}

// Register adds a client to the hub. It returns false after Close.
func (h *Hub) Register(client *WSClient) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("websocket client connected", "client_id", client.id, "clients", count)
	return true
}

// Unregister removes a client from the hub.
// Only the goroutine that removes the client from the map closes the send
// channel, so shutdown and disconnect never double-close.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	count := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(client.send)
		h.logger.Info("websocket client disconnected", "client_id", client.id, "clients", count)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns hub counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		ConnectedClients: h.ClientCount(),
		FramesSent:       h.framesSent.Load(),
		FramesDropped:    h.framesDropped.Load(),
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close() //nolint:errcheck // Best-effort close during shutdown
		}
		delete(h.clients, client)
	}
}

// checkOrigin allows requests without an Origin header and, when
// allowed_origins is set, only the listed browser origins.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	h.logger.Warn("websocket origin rejected", "origin", origin)
	return false
}

func (h *Hub) sendBuffer() int {
	if h.cfg.SendBuffer > 0 {
		return h.cfg.SendBuffer
	}
	return defaultSendBuffer
}

func (h *Hub) timings() (pingInterval, pongWait time.Duration) {
	pingInterval = time.Duration(h.cfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	pongWait = time.Duration(h.cfg.PongTimeout) * time.Second
	if pongWait <= 0 {
		pongWait = defaultPongTimeout
	}
	return pingInterval, pongWait
}

// readPump drains inbound frames so control frames are handled and
// closure is noticed. Message contents are ignored.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close() //nolint:errcheck // Connection is finished either way
	}()

	limit := int64(c.hub.cfg.MaxMessageSize)
	if limit <= 0 {
		limit = defaultMaxMessageSize
	}
	c.conn.SetReadLimit(limit)

	pingInterval, pongWait := c.hub.timings()
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error", "client_id", c.id, "error", err)
			}
			return
		}
		// Any client message also counts as liveness.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	}
}

// writePump writes queued frames and keepalive pings.
func (c *WSClient) writePump() {
	pingInterval, pongWait := c.hub.timings()
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck // Connection is finished either way
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues data without blocking. It reports false when the buffer
// is full or the client has already gone.
func (c *WSClient) trySend(data []byte) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false // send on closed channel
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}
