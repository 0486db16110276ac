package syncclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"coursehub/logger"
	"coursehub/realtime"
)

var ErrClosed = errors.New("syncclient: connection closed")

const subscriptionBuffer = 32

// Conn is a websocket connection to the realtime endpoint. Each subscription
// gets its own channel; changes for a full channel are dropped.
type Conn struct {
	ws  *websocket.Conn
	log *logger.Logger

	mu     sync.Mutex
	subs   map[string]chan realtime.Change
	closed bool
	done   chan struct{}
}

// Dial connects to rawURL (ws:// or wss://) authenticating with token.
func Dial(ctx context.Context, rawURL, token string, log *logger.Logger) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("syncclient: parse url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("syncclient: dial: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Conn{
		ws:   ws,
		log:  log.With("service", "RealtimeConn"),
		subs: map[string]chan realtime.Change{},
		done: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	defer c.shutdown()
	for {
		var msg realtime.ServerMessage
		if err := wsjson.Read(context.Background(), c.ws, &msg); err != nil {
			return
		}
		switch msg.Type {
		case realtime.MsgChange:
			if msg.Change == nil {
				continue
			}
			c.mu.Lock()
			ch, ok := c.subs[msg.Ref]
			if ok {
				select {
				case ch <- *msg.Change:
				default:
					c.log.Warn("change dropped", "ref", msg.Ref, "table", msg.Change.Table)
				}
			}
			c.mu.Unlock()
		case realtime.MsgError:
			c.log.Warn("subscription rejected", "ref", msg.Ref, "error", msg.Error)
		}
	}
}

func (c *Conn) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for ref, ch := range c.subs {
		close(ch)
		delete(c.subs, ref)
	}
	close(c.done)
}

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Subscribe starts receiving changes for table and event ("*" for all),
// optionally narrowed by a "column=eq.value" filter. Rejections by the server
// are only logged; polling covers for them.
func (c *Conn) Subscribe(ctx context.Context, table, event, filter string) (<-chan realtime.Change, func(), error) {
	ref := uuid.NewString()
	ch := make(chan realtime.Change, subscriptionBuffer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, nil, ErrClosed
	}
	c.subs[ref] = ch
	c.mu.Unlock()

	msg := realtime.ClientMessage{Type: realtime.MsgSubscribe, Ref: ref, Table: table, Event: event, Filter: filter}
	if err := wsjson.Write(ctx, c.ws, msg); err != nil {
		c.drop(ref)
		return nil, nil, fmt.Errorf("syncclient: subscribe: %w", err)
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			if c.drop(ref) {
				_ = wsjson.Write(context.Background(), c.ws, realtime.ClientMessage{Type: realtime.MsgUnsubscribe, Ref: ref})
			}
		})
	}
	return ch, unsubscribe, nil
}

func (c *Conn) drop(ref string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.subs[ref]
	if !ok {
		return false
	}
	close(ch)
	delete(c.subs, ref)
	return true
}

func (c *Conn) Close() error {
	err := c.ws.Close(websocket.StatusNormalClosure, "")
	c.shutdown()
	return err
}
