package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/uhyunpark/matchbook/pkg/events"
	"github.com/uhyunpark/matchbook/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 256
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins (CORS handled by main server)
		return true
	},
}

type HubConfig struct {
	// Known reports whether a symbol may be subscribed to
	Known   func(symbol string) bool
	Logger  *zap.SugaredLogger
	Metrics *metrics.Metrics
}

// Hub maintains active WebSocket connections and fans market data out to
// the clients subscribed to each channel. It implements events.Sink.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// Mutex for thread-safe access
	mu sync.RWMutex

	known   func(string) bool
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

// NewHub creates a new WebSocket hub
func NewHub(cfg HubConfig) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		known:      cfg.Known,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
	}
	if h.known == nil {
		h.known = func(string) bool { return true }
	}
	if h.log == nil {
		h.log = zap.NewNop().Sugar()
	}
	return h
}

// Run starts the hub's main loop and disconnects every client once ctx is
// canceled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.metrics.WSClients(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.WSClients(n)
			h.log.Infow("ws_client_connected", "client", client.id, "total", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.WSClients(n)
			h.log.Infow("ws_client_disconnected", "client", client.id, "total", n)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends an event to every client subscribed to its channel.
func (h *Hub) Publish(e events.Event) {
	message, err := events.Marshal(e)
	if err != nil {
		h.log.Warnw("ws_marshal_failed", "kind", e.EventKind(), "err", err)
		return
	}
	h.broadcast(events.Channel(e.EventKind(), e.EventSymbol()), message)
}

func (h *Hub) broadcast(channel string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.IsSubscribed(channel) {
			select {
			case client.send <- message:
			default:
				// Buffer full, skip this client
				h.metrics.EventDropped("websocket")
			}
		}
	}
}

// ServeWS upgrades the request and registers the connection as a client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("ws_upgrade_failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	client := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		id:            uuid.NewString(),
		subscriptions: make(map[string]bool),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Start read and write pumps in separate goroutines
	go client.writePump()
	go client.readPump()
}

// Client represents a WebSocket connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	// closed is set once send is closed; guarded by hub.mu
	closed bool

	// Subscribed channels
	subscriptions map[string]bool
	subsMu        sync.RWMutex
}

// close must be called with hub.mu held for writing.
func (c *Client) close() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// IsSubscribed checks if client is subscribed to a channel
func (c *Client) IsSubscribed(channel string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return c.subscriptions[channel]
}

// subscribe validates a channel and its symbol before adding it
func (c *Client) subscribe(channel string) error {
	_, symbol, err := events.ParseChannel(channel)
	if err != nil {
		return err
	}
	if !c.hub.known(symbol) {
		return fmt.Errorf("unknown symbol %q", symbol)
	}
	c.subsMu.Lock()
	c.subscriptions[channel] = true
	c.subsMu.Unlock()
	c.hub.log.Debugw("ws_subscribed", "client", c.id, "channel", channel)
	return nil
}

func (c *Client) unsubscribe(channel string) {
	c.subsMu.Lock()
	delete(c.subscriptions, channel)
	c.subsMu.Unlock()
	c.hub.log.Debugw("ws_unsubscribed", "client", c.id, "channel", channel)
}

// reply queues a control message for this client only. The hub may already
// have closed send, so it is guarded by the hub lock.
func (c *Client) reply(msg WSControlMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) handle(req WSSubscribeRequest) {
	switch req.Op {
	case "subscribe":
		for _, channel := range req.Channels {
			if err := c.subscribe(channel); err != nil {
				c.reply(WSControlMessage{Event: "error", Channel: channel, Message: err.Error()})
				continue
			}
			c.reply(WSControlMessage{Event: "subscribed", Channel: channel})
		}
	case "unsubscribe":
		for _, channel := range req.Channels {
			c.unsubscribe(channel)
			c.reply(WSControlMessage{Event: "unsubscribed", Channel: channel})
		}
	default:
		c.reply(WSControlMessage{Event: "error", Message: fmt.Sprintf("unknown op %q", req.Op)})
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debugw("ws_read_failed", "client", c.id, "err", err)
			}
			break
		}

		var req WSSubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.reply(WSControlMessage{Event: "error", Message: "invalid message"})
			continue
		}
		c.handle(req)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
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
				// Hub closed the channel
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
