/**
 * @description
 * WebSocket feed for market events.
 * Bridges the Redis event channel to connected WebSocket clients. Runs as a
 * plain net/http handler inside the worker process so it can serve long-lived
 * sockets independently of the API server. Clients subscribe to individual
 * market IDs or "*" for the full firehose.
 *
 * @dependencies
 * - github.com/gorilla/websocket
 * - github.com/redis/go-redis/v9
 */

package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/vjbhandari61/prediction-market/internal/logger"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds incoming subscription frames.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// client is a single WebSocket connection and its market subscriptions.
type client struct {
	hub  *FeedHub
	conn *websocket.Conn
	send chan []byte

	mu      sync.RWMutex
	markets map[string]bool // market IDs; "*" subscribes to everything
}

// subscribeMsg is the JSON frame a client sends to manage its subscriptions.
type subscribeMsg struct {
	Action  string   `json:"action"` // "subscribe" or "unsubscribe"
	Markets []string `json:"markets"`
}

// FeedHub fans the Redis event channel out to WebSocket clients.
type FeedHub struct {
	redis   *redis.Client
	channel string

	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex

	startedAt time.Time
}

// NewFeedHub creates a hub reading events from the given Redis channel.
func NewFeedHub(rdb *redis.Client, channel string) *FeedHub {
	return &FeedHub{
		redis:      rdb,
		channel:    channel,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		startedAt:  time.Now().UTC(),
	}
}

// Run starts the hub loop and the Redis subscription. Blocks until ctx is
// cancelled.
func (h *FeedHub) Run(ctx context.Context) error {
	go h.consume(ctx)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			logger.Info("Feed client connected (total %d)", total)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logger.Info("Feed client disconnected (total %d)", total)

		case payload := <-h.broadcast:
			marketID := marketIDOf(payload)
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(marketID) {
					continue
				}
				select {
				case c.send <- payload:
				default:
					// Send buffer full; drop the message for this client.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// consume forwards Redis pub/sub payloads into the broadcast loop,
// reconnecting with a small delay if the subscription drops.
func (h *FeedHub) consume(ctx context.Context) {
	for {
		pubsub := h.redis.Subscribe(ctx, h.channel)
		ch := pubsub.Channel()

		for msg := range ch {
			select {
			case h.broadcast <- []byte(msg.Payload):
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			}
		}

		_ = pubsub.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// marketIDOf pulls market_id out of an event envelope.
func marketIDOf(payload []byte) string {
	var probe struct {
		MarketID string `json:"market_id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.MarketID
}

// ClientCount returns the number of connected clients.
func (h *FeedHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades an HTTP request and registers the client. New clients
// start subscribed to everything.
// GET /ws
func (h *FeedHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Feed upgrade failed: %v", err)
		return
	}

	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		markets: map[string]bool{"*": true},
	}

	h.register <- c
	c.sendWelcome()

	go c.writePump()
	go c.readPump()
}

// wants reports whether the client subscribed to the given market.
func (c *client) wants(marketID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.markets["*"] {
		return true
	}
	return marketID != "" && c.markets[marketID]
}

// readPump consumes subscription frames until the connection drops.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Error("Feed unexpected close: %v", err)
			}
			return
		}

		var sub subscribeMsg
		if err := json.Unmarshal(message, &sub); err != nil {
			continue
		}
		c.handleSubscription(sub)
	}
}

func (c *client) handleSubscription(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Action {
	case "subscribe":
		// An explicit subscription replaces the initial firehose default.
		delete(c.markets, "*")
		for _, id := range msg.Markets {
			c.markets[id] = true
		}
	case "unsubscribe":
		for _, id := range msg.Markets {
			delete(c.markets, id)
		}
	}
}

// sendWelcome pushes a status envelope so clients can mark the connection
// healthy before any market event flows.
func (c *client) sendWelcome() {
	uptime := int64(time.Since(c.hub.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}

	msg, err := json.Marshal(map[string]any{
		"type":           "feed_status",
		"connected":      true,
		"uptime_seconds": uptime,
	})
	if err != nil {
		return
	}

	select {
	case c.send <- msg:
	default:
	}
}

// writePump pushes event frames and keepalive pings to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
