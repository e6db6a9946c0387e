package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// Message types on the WebSocket.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Broadcast channels.
const (
	// ChannelEvent carries acquired, lost, reacquired and cleared events.
	ChannelEvent = "presence.event"
	// ChannelSnapshot carries the full snapshot, on subscribe and then
	// periodically.
	ChannelSnapshot = "presence.snapshot"
	// ChannelSighting carries every accepted advertisement. High volume.
	ChannelSighting = "presence.sighting"
)

// clientQueueSize bounds each client's outbound queue. A client that falls
// this far behind loses messages rather than stalling broadcasts.
const clientQueueSize = 256

var channels = []string{ChannelEvent, ChannelSnapshot, ChannelSighting}

// WSMessage is the envelope for every message in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is an inbound WSMessage with its payload left undecoded.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// HubStats reports WebSocket fan-out counters.
type HubStats struct {
	Clients int    `json:"connected_clients"`
	Dropped uint64 `json:"dropped_messages"`
}

// Hub fans presence messages out to WebSocket clients by channel.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	dropped atomic.Uint64

	// snapshot renders the current snapshot for new presence.snapshot
	// subscribers. Nil disables the initial push.
	snapshot func() any
}

// wsClient is one connection. Its queue is closed exactly once, by shutdown.
type wsClient struct {
	hub    *Hub
	conn   *websocket.Conn
	remote string

	mu       sync.Mutex
	queue    chan []byte
	channels map[string]bool
	closed   bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are policed by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.shutdown()
		c.conn.Close()
		delete(h.clients, c)
	}
}

// HandleEvent relays a presence event to subscribed clients. Sightings go
// to presence.sighting; everything else to presence.event. It satisfies
// presence.Handler.
func (h *Hub) HandleEvent(_ context.Context, e presence.Event) {
	channel := ChannelEvent
	if e.Kind == presence.EventSighting {
		channel = ChannelSighting
	}
	h.Broadcast(channel, renderEvent(e))
}

// Broadcast queues payload for every client subscribed to channel.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encodeEvent(channel, payload)
	if err != nil {
		h.logger.Error("encoding websocket broadcast", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var sent, dropped int
	for _, c := range targets {
		if !c.subscribed(channel) {
			continue
		}
		if c.enqueue(data) {
			sent++
		} else {
			dropped++
		}
	}

	if dropped > 0 {
		h.dropped.Add(uint64(dropped))
		h.logger.Debug("websocket clients lagging", "channel", channel, "dropped", dropped)
	}
	if sent > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", sent)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the hub counters.
func (h *Hub) Stats() HubStats {
	return HubStats{Clients: h.ClientCount(), Dropped: h.dropped.Load()}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "remote", c.remote, "clients", n)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.shutdown()
	h.logger.Debug("websocket client disconnected", "remote", c.remote, "clients", n)
}

func encodeEvent(channel string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
}

// handleWebSocket upgrades the connection. Clients start with no
// subscriptions and opt in with a subscribe request.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &wsClient{
		hub:      s.hub,
		conn:     conn,
		remote:   r.RemoteAddr,
		queue:    make(chan []byte, clientQueueSize),
		channels: make(map[string]bool),
	}
	s.hub.add(c)

	go c.writeLoop(s.wsCfg)
	go c.readLoop(s.wsCfg)
}

func (c *wsClient) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	// Any inbound frame, pong or message, keeps the connection alive.
	window := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(window)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	_ = extend() //nolint:errcheck // A failed deadline surfaces as a read error
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "remote", c.remote, "error", err)
			}
			return
		}
		_ = extend() //nolint:errcheck // A failed deadline surfaces as a read error
		c.handle(data)
	}
}

func (c *wsClient) writeLoop(cfg config.WebSocketConfig) {
	ping := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	write := func(kind int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // Caught by the write
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.queue:
			if !ok {
				_ = write(websocket.CloseMessage, nil) //nolint:errcheck // Connection is going away
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorBody("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypeSubscribe:
		c.changeSubscriptions(req, true)
	case WSTypeUnsubscribe:
		c.changeSubscriptions(req, false)
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.reply(req.ID, WSTypeError, errorBody("unknown message type: "+req.Type))
	}
}

func (c *wsClient) changeSubscriptions(req wsRequest, on bool) {
	var sub WSSubscribePayload
	if err := json.Unmarshal(req.Payload, &sub); err != nil || len(sub.Channels) == 0 {
		c.reply(req.ID, WSTypeError, errorBody("payload must list channels"))
		return
	}
	for _, ch := range sub.Channels {
		if !slices.Contains(channels, ch) {
			c.reply(req.ID, WSTypeError, errorBody("unknown channel: "+ch))
			return
		}
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if on {
			c.channels[ch] = true
		} else {
			delete(c.channels, ch)
		}
	}
	c.mu.Unlock()

	if !on {
		c.reply(req.ID, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
		return
	}

	c.hub.logger.Debug("websocket client subscribed", "remote", c.remote, "channels", sub.Channels)
	c.reply(req.ID, WSTypeResponse, map[string]any{"subscribed": sub.Channels})

	if c.hub.snapshot != nil && slices.Contains(sub.Channels, ChannelSnapshot) {
		if data, err := encodeEvent(ChannelSnapshot, c.hub.snapshot()); err == nil {
			c.enqueue(data)
		}
	}
}

func (c *wsClient) subscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[channel]
}

// enqueue reports false when the client is gone or its queue is full.
func (c *wsClient) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.queue <- data:
		return true
	default:
		return false
	}
}

func (c *wsClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}

func (c *wsClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"message": msg}
}
