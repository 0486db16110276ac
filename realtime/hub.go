package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"coursehub/logger"
)

const (
	sendBuffer        = 64
	writeTimeout      = 10 * time.Second
	keepAliveInterval = 25 * time.Second
)

// Client message types.
const (
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
)

// Server message types.
const (
	MsgSubscribed = "subscribed"
	MsgChange     = "change"
	MsgError      = "error"
)

// ClientMessage is what a websocket client sends.
type ClientMessage struct {
	Type   string `json:"type"`
	Ref    string `json:"ref"`
	Table  string `json:"table,omitempty"`
	Event  string `json:"event,omitempty"`
	Filter string `json:"filter,omitempty"`
}

// ServerMessage is what the hub pushes to a websocket client.
type ServerMessage struct {
	Type   string  `json:"type"`
	Ref    string  `json:"ref,omitempty"`
	Change *Change `json:"change,omitempty"`
	Error  string  `json:"error,omitempty"`
}

type Client struct {
	ID     string
	UserID uint
	Conn   *websocket.Conn
	Send   chan ServerMessage

	mu   sync.RWMutex
	subs map[string]Subscription

	ctx    context.Context
	cancel context.CancelFunc
}

// Subscribe registers sub under ref, replacing any previous subscription with the same ref.
func (c *Client) Subscribe(ref string, sub Subscription) {
	c.mu.Lock()
	c.subs[ref] = sub
	c.mu.Unlock()
}

func (c *Client) Unsubscribe(ref string) {
	c.mu.Lock()
	delete(c.subs, ref)
	c.mu.Unlock()
}

// matching returns the refs of every subscription that wants ch.
func (c *Client) matching(ch Change) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var refs []string
	for ref, sub := range c.subs {
		if sub.Matches(ch) {
			refs = append(refs, ref)
		}
	}
	return refs
}

// push queues msg without blocking. It reports false when the buffer is full.
func (c *Client) push(msg ServerMessage) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.Send:
			writeCtx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			_ = wsjson.Write(writeCtx, c.Conn, msg)
			cancel()
		}
	}
}

func (c *Client) keepAliveLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
			_ = c.Conn.Ping(pingCtx)
			cancel()
		}
	}
}

// Authorizer decides whether userID may open sub. A non-nil error rejects it
// and is sent back to the client.
type Authorizer func(userID uint, sub Subscription) error

// Hub tracks connected websocket clients and fans changes out to their subscriptions.
type Hub struct {
	log       *logger.Logger
	keepAlive time.Duration
	authorize Authorizer

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		log:       log.With("service", "RealtimeHub"),
		keepAlive: keepAliveInterval,
		clients:   map[string]*Client{},
	}
}

// SetKeepAlive changes the ping interval for clients added afterwards. Non-positive values are ignored.
func (h *Hub) SetKeepAlive(d time.Duration) {
	if d > 0 {
		h.keepAlive = d
	}
}

// SetAuthorizer installs the subscription check. Without one every subscription is accepted.
func (h *Hub) SetAuthorizer(fn Authorizer) {
	h.authorize = fn
}

// AddClient registers conn and starts its write and keep-alive loops.
func (h *Hub) AddClient(userID uint, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan ServerMessage, sendBuffer),
		subs:   map[string]Subscription{},
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	if conn != nil {
		go c.writeLoop()
		go c.keepAliveLoop(h.keepAlive)
	}
	h.log.Debug("realtime client connected", "client_id", c.ID, "user_id", userID)
	return c
}

func (h *Hub) RemoveClient(c *Client) {
	c.cancel()

	h.mu.Lock()
	delete(h.clients, c.ID)
	h.mu.Unlock()

	if c.Conn != nil {
		_ = c.Conn.Close(websocket.StatusNormalClosure, "bye")
	}
	h.log.Debug("realtime client disconnected", "client_id", c.ID, "user_id", c.UserID)
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers ch to every matching subscription. Messages for clients
// whose buffer is full are dropped; those clients catch up by polling.
func (h *Hub) Broadcast(ch Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		for _, ref := range c.matching(ch) {
			change := ch
			if !c.push(ServerMessage{Type: MsgChange, Ref: ref, Change: &change}) {
				h.log.Warn("realtime message dropped", "client_id", c.ID, "table", ch.Table, "type", ch.Type)
			}
		}
	}
}

// handle applies one client message and queues the reply.
func (h *Hub) handle(c *Client, msg ClientMessage) {
	switch msg.Type {
	case MsgSubscribe:
		sub, err := NewSubscription(msg.Table, msg.Event, msg.Filter)
		if err != nil {
			c.push(ServerMessage{Type: MsgError, Ref: msg.Ref, Error: err.Error()})
			return
		}
		if h.authorize != nil {
			if err := h.authorize(c.UserID, sub); err != nil {
				h.log.Warn("realtime subscription rejected", "client_id", c.ID, "user_id", c.UserID, "table", sub.Table, "filter", sub.Filter, "error", err)
				c.push(ServerMessage{Type: MsgError, Ref: msg.Ref, Error: err.Error()})
				return
			}
		}
		c.Subscribe(msg.Ref, sub)
		c.push(ServerMessage{Type: MsgSubscribed, Ref: msg.Ref})
	case MsgUnsubscribe:
		c.Unsubscribe(msg.Ref)
	default:
		c.push(ServerMessage{Type: MsgError, Ref: msg.Ref, Error: "unknown message type " + msg.Type})
	}
}
