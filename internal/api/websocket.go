package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
)

// WebSocket constants.
const (
	WSTypePing     = "ping"
	WSTypePong     = "pong"
	WSTypeRefresh  = "refresh"
	WSTypeEvent    = "event"
	WSTypeResponse = "response"
	WSTypeError    = "error"

	// EventDevicesSnapshot is sent once to every client after it connects.
	EventDevicesSnapshot = "devices.snapshot"
	// EventDevicesChanged is broadcast after a poll cycle changed devices.
	EventDevicesChanged = "devices.changed"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	EventType string          `json:"event_type,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// outboundMessage is WSMessage with an arbitrary payload for encoding.
type outboundMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSRefreshPayload is the payload of a client "refresh" message.
type WSRefreshPayload struct {
	DeviceID string `json:"device_id"`
}

// DevicesChangedPayload is the payload of a devices.changed event.
type DevicesChangedPayload struct {
	Changed []device.EnrichedDevice `json:"changed"`
	Devices []device.EnrichedDevice `json:"devices"`
}

// Hub manages WebSocket connections and broadcasts device events.
//
// Every connected client holds one polling reference on the device
// service: polling runs while at least one dashboard is open.
//
// Lock ordering: the device service may call BroadcastDevices while holding
// its own locks, so the hub never calls into the device service while
// holding h.mu.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	devices DeviceService
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
	now     func() time.Time
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub backed by the given device service.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, devices DeviceService) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		devices: devices,
		clients: make(map[*WSClient]struct{}),
		now:     time.Now,
	}
}

// Run starts the hub's main loop. It blocks until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client, takes a polling reference and queues the
// current device list as a devices.snapshot event.
//
// The client is visible to broadcasts before the snapshot is read, so a
// snapshot always reflects at least every change broadcast before it.
func (h *Hub) Register(ctx context.Context, client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.devices.ClientConnected()
	h.logger.Debug("websocket client connected", "clients", count)

	client.sendEvent(EventDevicesSnapshot, h.devices.GetAllDevices(ctx))
}

// Unregister removes a client from the hub and releases its polling
// reference. Only the goroutine that removes the client from the map
// closes the send channel, so shutdown and disconnect never double-close.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	count := len(h.clients)
	h.mu.Unlock()

	if !existed {
		return
	}
	close(client.send)
	h.devices.ClientDisconnected()
	h.logger.Debug("websocket client disconnected", "clients", count)
}

// BroadcastDevices sends a devices.changed event to every client.
// Its signature matches the orchestrator change callback.
func (h *Hub) BroadcastDevices(changed, all []device.EnrichedDevice) {
	h.broadcast(EventDevicesChanged, DevicesChangedPayload{Changed: changed, Devices: all})
}

func (h *Hub) broadcast(eventType string, payload any) {
	data, err := h.encode(outboundMessage{Type: WSTypeEvent, EventType: eventType, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	// Snapshot client list under hub lock, then release before sending
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.trySend(data)
	}
	if len(clients) > 0 {
		h.logger.Debug("broadcast sent", "event", eventType, "recipients", len(clients))
	}
}

func (h *Hub) encode(msg outboundMessage) ([]byte, error) {
	msg.Timestamp = h.now().UTC().Format(time.RFC3339)
	return json.Marshal(msg)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and releases their polling references.
func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		h.devices.ClientDisconnected()
	}
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}

	// The request context ends with the handler; the snapshot read must not.
	s.hub.Register(context.WithoutCancel(r.Context()), client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline (keeps connection alive
		// even if browser doesn't respond to protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	case WSTypeRefresh:
		c.handleRefresh(msg)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handleRefresh asks the device service to poll a device's vendor now.
func (c *WSClient) handleRefresh(msg WSMessage) {
	var req WSRefreshPayload
	if len(msg.Payload) == 0 || json.Unmarshal(msg.Payload, &req) != nil || req.DeviceID == "" {
		c.sendError(msg.ID, "refresh requires a device_id")
		return
	}

	c.hub.devices.TriggerImmediateRefresh(req.DeviceID)
	c.sendResponse(msg.ID, WSTypeResponse, map[string]string{"refreshing": req.DeviceID})
}

// trySend attempts to send data to the client's send channel.
// Closed channels (client disconnected during broadcast) are ignored. A full
// buffer (slow client) drops the message; the next broadcast carries the
// full device list again.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		c.hub.logger.Debug("websocket client buffer full, message dropped", "buffer", cap(c.send))
	}
}

func (c *WSClient) sendEvent(eventType string, payload any) {
	data, err := c.hub.encode(outboundMessage{Type: WSTypeEvent, EventType: eventType, Payload: payload})
	if err != nil {
		return
	}
	c.trySend(data)
}

// sendResponse sends a response message to the client.
// Routes through trySend to safely handle closed channels during shutdown.
func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := c.hub.encode(outboundMessage{Type: msgType, ID: id, Payload: payload})
	if err != nil {
		return
	}
	c.trySend(data)
}

// sendError sends an error message to the client.
func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
