package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// PublishResult is returned by Publish: an opaque event id plus a
// monotonic cursor, which is also sent in the event envelope. The hub
// keeps no event history, so it offers no way to fetch events after a
// cursor.
type PublishResult struct {
	ID     string
	Cursor int64
}

// WebSocketHub manages WebSocket connections and channel subscriptions.
// It is a single process-wide instance with internals callers treat as
// opaque: a subscriber map per Channel and a Publish entrypoint.
type WebSocketHub struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	channels  map[string]map[string]bool // channel key -> connection ids
	channelMu sync.RWMutex

	writeTimeout time.Duration
	idFunc       func() string
	cursor       int64
}

// Connection represents a single WebSocket client.
//
// subscriptions is accessed without its own lock: all reads and writes
// happen on the single goroutine that owns the connection (HandleConnection's
// read loop and its deferred cleanup).
type Connection struct {
	ID            string
	Conn          *websocket.Conn
	subscriptions map[string]Channel
	ctx           context.Context
	cancel        context.CancelFunc
	writeMu       sync.Mutex
}

// NewWebSocketHub creates a hub. idFunc generates connection and event
// ids (typically ids.New).
func NewWebSocketHub(writeTimeout time.Duration, idFunc func() string) *WebSocketHub {
	return &WebSocketHub{
		connections:  make(map[string]*Connection),
		channels:     make(map[string]map[string]bool),
		writeTimeout: writeTimeout,
		idFunc:       idFunc,
	}
}

// HandleConnection manages the lifecycle of a single WebSocket
// connection. Blocks until the connection closes.
func (h *WebSocketHub) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	connID := h.idFunc()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &Connection{
		ID:            connID,
		Conn:          conn,
		subscriptions: make(map[string]Channel),
		ctx:           ctx,
		cancel:        cancel,
	}

	h.registerConnection(c)
	defer h.unregisterConnection(c)

	h.sendJSON(c, map[string]string{
		"type":         "connection.established",
		"connectionId": connID,
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid websocket message", "connection_id", connID, "error", err)
			continue
		}

		h.handleClientMessage(c, &msg)
	}
}

// Publish sends an event to every connection subscribed to channel,
// returning an opaque id and a monotonic cursor.
func (h *WebSocketHub) Publish(channel Channel, eventType string, payload map[string]interface{}, metadata map[string]interface{}) (PublishResult, error) {
	id := h.idFunc()
	cursor := atomic.AddInt64(&h.cursor, 1)

	envelope := map[string]interface{}{
		"id":       id,
		"cursor":   cursor,
		"type":     eventType,
		"payload":  payload,
		"metadata": metadata,
		"channel":  string(channel.Kind),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return PublishResult{}, err
	}

	h.broadcast(channel, data)
	return PublishResult{ID: id, Cursor: cursor}, nil
}

// broadcast sends raw bytes to every connection subscribed to channel.
func (h *WebSocketHub) broadcast(channel Channel, data []byte) {
	key := channel.key()

	h.channelMu.RLock()
	connIDs, exists := h.channels[key]
	if !exists {
		h.channelMu.RUnlock()
		return
	}
	ids := make([]string, 0, len(connIDs))
	for id := range connIDs {
		ids = append(ids, id)
	}
	h.channelMu.RUnlock()

	// Snapshot connection pointers under the lock, then release before
	// sending, so slow writers cannot stall register/unregister.
	h.mu.RLock()
	conns := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if conn, ok := h.connections[id]; ok {
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := h.sendRaw(conn, data); err != nil {
			slog.Warn("failed to send to websocket client", "connection_id", conn.ID, "error", err)
		}
	}
}

// ActiveConnections returns the count of active WebSocket connections.
func (h *WebSocketHub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// subscriberCount returns the number of subscribers for a channel
// (test helper).
func (h *WebSocketHub) subscriberCount(channel Channel) int {
	h.channelMu.RLock()
	defer h.channelMu.RUnlock()
	return len(h.channels[channel.key()])
}

func (h *WebSocketHub) handleClientMessage(c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case "subscribe":
		ch := msg.Channel()
		h.subscribe(c, ch)
		h.sendJSON(c, map[string]interface{}{
			"type":        "subscription.confirmed",
			"channelKind": ch.Kind,
		})
	case "unsubscribe":
		h.unsubscribe(c, msg.Channel())
	case "ping":
		h.sendJSON(c, map[string]string{"type": "pong"})
	}
}

// subscribe registers a connection for a channel.
func (h *WebSocketHub) subscribe(c *Connection, channel Channel) {
	key := channel.key()

	h.channelMu.Lock()
	if _, exists := h.channels[key]; !exists {
		h.channels[key] = make(map[string]bool)
	}
	h.channels[key][c.ID] = true
	h.channelMu.Unlock()

	c.subscriptions[key] = channel
}

// unsubscribe removes a connection from a channel.
func (h *WebSocketHub) unsubscribe(c *Connection, channel Channel) {
	key := channel.key()

	h.channelMu.Lock()
	if subs, exists := h.channels[key]; exists {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(h.channels, key)
		}
	}
	h.channelMu.Unlock()

	delete(c.subscriptions, key)
}

func (h *WebSocketHub) registerConnection(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c.ID] = c
}

func (h *WebSocketHub) unregisterConnection(c *Connection) {
	for _, ch := range c.subscriptions {
		h.unsubscribe(c, ch)
	}

	h.mu.Lock()
	delete(h.connections, c.ID)
	h.mu.Unlock()

	c.cancel()
	_ = c.Conn.Close()
}

func (h *WebSocketHub) sendJSON(c *Connection, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("failed to marshal websocket message", "connection_id", c.ID, "error", err)
		return
	}
	if err := h.sendRaw(c, data); err != nil {
		slog.Warn("failed to send websocket message", "connection_id", c.ID, "error", err)
	}
}

// sendRaw sends raw bytes to a single connection. gorilla/websocket
// connections are not safe for concurrent writers, so each connection
// serializes its own writes with writeMu; writeTimeout bounds how long
// a slow client can hold it.
func (h *WebSocketHub) sendRaw(c *Connection, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.Conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}
