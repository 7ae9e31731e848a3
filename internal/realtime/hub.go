// Package realtime pushes transaction and fraud alert updates to WebSocket
// clients.
//
// Clients receive every message by default. They can narrow the stream by
// sending a subscribe message with event types and user ids, and may send
// {"type":"ping"} at any time to get a {"type":"pong"} reply.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/events"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/metrics"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
)

// normalCloseCodes are WebSocket close codes that indicate an expected disconnect.
var normalCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser clients
		}
		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// MessageType identifies a pushed message.
type MessageType string

const (
	MessageConnected          MessageType = "connected"
	MessageNewTransaction     MessageType = "new_transaction"
	MessageFraudAlert         MessageType = "fraud_alert"
	MessageTransactionUpdated MessageType = "transaction_updated"
	MessagePong               MessageType = "pong"
	MessageSubscribed         MessageType = "subscribed"
)

// Message is the envelope written to clients.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`

	userID string
}

// Subscription filters for a client. Empty lists match everything.
type Subscription struct {
	EventTypes []MessageType `json:"event_types"`
	UserIDs    []string      `json:"user_ids"`
}

type clientMessage struct {
	Type string `json:"type"`
	Subscription
}

// Client represents a WebSocket connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	mu   sync.RWMutex
	sub  Subscription
}

// MaxClients is the maximum number of concurrent WebSocket connections.
const MaxClients = 10000

// Hub manages all WebSocket connections
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *zap.Logger
	done       chan struct{} // closed when Run exits
	maxClients int
	now        func() time.Time

	totalMessages atomic.Int64
	totalClients  atomic.Int64
}

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		done:       make(chan struct{}),
		maxClients: MaxClients,
		now:        time.Now,
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled, after
// closing every client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("realtime hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send) // writePump sends CloseMessage on closed channel
				delete(h.clients, client)
			}
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(0)
			h.logger.Info("realtime hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.totalClients.Add(1)
			metrics.ActiveWebSocketClients.Set(float64(n))
			h.logger.Debug("client connected", zap.Int("total", n))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(float64(n))
			h.logger.Debug("client disconnected", zap.Int("total", n))

		case msg := <-h.broadcast:
			h.totalMessages.Add(1)
			payload, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("failed to encode realtime message", zap.Error(err))
				continue
			}
			h.mu.RLock()
			var slow []*Client
			for client := range h.clients {
				if !client.wants(msg) {
					continue
				}
				select {
				case client.send <- payload:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			if len(slow) > 0 {
				h.mu.Lock()
				for _, client := range slow {
					if _, ok := h.clients[client]; ok {
						close(client.send)
						delete(h.clients, client)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

func (c *Client) wants(msg *Message) bool {
	c.mu.RLock()
	sub := c.sub
	c.mu.RUnlock()

	if len(sub.EventTypes) > 0 && !containsType(sub.EventTypes, msg.Type) {
		return false
	}
	if len(sub.UserIDs) > 0 && !containsString(sub.UserIDs, msg.userID) {
		return false
	}
	return true
}

func containsType(types []MessageType, t MessageType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// Broadcast queues msg for every matching client, dropping it when the hub
// is backed up.
func (h *Hub) Broadcast(msg *Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast channel full, dropping message", zap.String("type", string(msg.Type)))
	}
}

func (h *Hub) broadcastTransaction(t MessageType, txn models.Transaction) {
	h.Broadcast(&Message{
		Type:      t,
		Timestamp: h.now().UTC(),
		Data:      txn,
		userID:    txn.UserID,
	})
}

// BroadcastTransaction announces a newly scored transaction.
func (h *Hub) BroadcastTransaction(txn models.Transaction) {
	h.broadcastTransaction(MessageNewTransaction, txn)
}

// BroadcastFraudAlert announces a suspicious or fraudulent transaction.
// Safe transactions are ignored.
func (h *Hub) BroadcastFraudAlert(txn models.Transaction) {
	if txn.FraudStatus == nil || txn.FraudStatus.Classification == models.ClassificationSafe {
		return
	}
	h.broadcastTransaction(MessageFraudAlert, txn)
}

// BroadcastTransactionUpdated announces an admin status change.
func (h *Hub) BroadcastTransactionUpdated(txn models.Transaction) {
	h.broadcastTransaction(MessageTransactionUpdated, txn)
}

// EventHandler bridges domain events to WebSocket messages. The enabled
// func is consulted per event so the feature can be toggled at runtime.
func EventHandler(h *Hub, enabled func() bool) events.Handler {
	return func(ctx context.Context, e events.Event) error {
		if enabled != nil && !enabled() {
			return nil
		}
		switch data := e.Data.(type) {
		case events.TransactionScoredData:
			h.BroadcastTransaction(data.Transaction)
		case events.FraudAlertData:
			h.BroadcastFraudAlert(data.Transaction)
		case events.TransactionOverriddenData:
			h.BroadcastTransactionUpdated(data.Transaction)
		}
		return nil
	}
}

// Stats is a snapshot of hub activity.
type Stats struct {
	ConnectedClients int   `json:"connected_clients"`
	TotalMessages    int64 `json:"total_messages"`
	TotalClients     int64 `json:"total_clients"`
}

// Stats returns hub statistics
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return Stats{
		ConnectedClients: len(h.clients),
		TotalMessages:    h.totalMessages.Load(),
		TotalClients:     h.totalClients.Load(),
	}
}

// HandleWebSocket upgrades HTTP to WebSocket
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n >= h.maxClients {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if payload, err := json.Marshal(&Message{
		Type:      MessageConnected,
		Timestamp: h.now().UTC(),
		Message:   "WebSocket connected successfully",
	}); err == nil {
		client.send <- payload
	}

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// reply queues a message for this client only. It is a no-op once the hub
// has dropped the client.
func (c *Client) reply(msg *Message) {
	msg.Timestamp = c.hub.now().UTC()
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// readPump reads client messages (pings and subscription updates).
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, normalCloseCodes...) {
				c.hub.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.hub.logger.Debug("ignoring malformed websocket message", zap.Error(err))
			continue
		}
		switch msg.Type {
		case "ping":
			c.reply(&Message{Type: MessagePong})
		case "subscribe":
			c.mu.Lock()
			c.sub = msg.Subscription
			c.mu.Unlock()
			c.reply(&Message{Type: MessageSubscribed, Data: msg.Subscription})
		}
	}
}

// writePump writes messages to WebSocket
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("websocket write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.logger.Debug("websocket ping failed", zap.Error(err))
				return
			}
		}
	}
}
