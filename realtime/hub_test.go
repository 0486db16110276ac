package realtime

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestHubRoutesToMatchingRefs(t *testing.T) {
	hub := NewHub(nil)
	c := hub.AddClient(1, nil)
	defer hub.RemoveClient(c)

	hub.handle(c, ClientMessage{Type: MsgSubscribe, Ref: "a", Table: TableMessages, Event: "INSERT", Filter: "conversation_id=eq.5"})
	hub.handle(c, ClientMessage{Type: MsgSubscribe, Ref: "b", Table: TableMessages, Event: "DELETE"})
	require.Equal(t, MsgSubscribed, (<-c.Send).Type)
	require.Equal(t, MsgSubscribed, (<-c.Send).Type)

	hub.Broadcast(Change{Table: TableMessages, Type: Insert, Record: map[string]interface{}{"id": float64(1), "conversation_id": float64(5)}})
	hub.Broadcast(Change{Table: TableMessages, Type: Insert, Record: map[string]interface{}{"id": float64(2), "conversation_id": float64(6)}})
	hub.Broadcast(Change{Table: TableMessages, Type: Delete, OldRecord: map[string]interface{}{"id": float64(1)}})

	got := <-c.Send
	assert.Equal(t, "a", got.Ref)
	assert.Equal(t, Insert, got.Change.Type)
	got = <-c.Send
	assert.Equal(t, "b", got.Ref)
	assert.Equal(t, Delete, got.Change.Type)
	assert.Empty(t, c.Send)

	hub.handle(c, ClientMessage{Type: MsgUnsubscribe, Ref: "a"})
	hub.Broadcast(Change{Table: TableMessages, Type: Insert, Record: map[string]interface{}{"conversation_id": float64(5)}})
	assert.Empty(t, c.Send)
}

func TestHubRejectsBadSubscription(t *testing.T) {
	hub := NewHub(nil)
	c := hub.AddClient(1, nil)
	defer hub.RemoveClient(c)

	hub.handle(c, ClientMessage{Type: MsgSubscribe, Ref: "x", Table: TableComments, Filter: "lesson_id>3"})
	msg := <-c.Send
	assert.Equal(t, MsgError, msg.Type)
	assert.Equal(t, "x", msg.Ref)
}

func TestHubAuthorizerRejectsSubscription(t *testing.T) {
	hub := NewHub(nil)
	hub.SetAuthorizer(func(userID uint, sub Subscription) error {
		if sub.Table == TableMessages && sub.Filter == "" {
			return errors.New("messages need a conversation filter")
		}
		return nil
	})
	c := hub.AddClient(3, nil)
	defer hub.RemoveClient(c)

	hub.handle(c, ClientMessage{Type: MsgSubscribe, Ref: "all", Table: TableMessages, Event: AnyEvent})
	msg := <-c.Send
	assert.Equal(t, MsgError, msg.Type)
	assert.Equal(t, "all", msg.Ref)
	assert.Contains(t, msg.Error, "conversation filter")

	hub.handle(c, ClientMessage{Type: MsgSubscribe, Ref: "own", Table: TableMessages, Event: AnyEvent, Filter: "conversation_id=eq.9"})
	assert.Equal(t, MsgSubscribed, (<-c.Send).Type)

	hub.Broadcast(Change{Table: TableMessages, Type: Insert, Record: map[string]interface{}{"id": float64(1), "conversation_id": float64(1)}})
	assert.Empty(t, c.Send)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil)
	c := hub.AddClient(1, nil)
	defer hub.RemoveClient(c)
	c.Subscribe("all", Subscription{Table: TableComments, Event: AnyEvent})

	for i := 0; i < sendBuffer+10; i++ {
		hub.Broadcast(Change{Table: TableComments, Type: Update})
	}
	assert.Len(t, c.Send, sendBuffer)
}

func TestHubRemoveClient(t *testing.T) {
	hub := NewHub(nil)
	c := hub.AddClient(1, nil)
	assert.Equal(t, 1, hub.Count())
	hub.RemoveClient(c)
	assert.Equal(t, 0, hub.Count())
	assert.False(t, c.push(ServerMessage{Type: MsgChange}))
}

func TestPublisherEmitDeleteCarriesOnlyID(t *testing.T) {
	hub := NewHub(nil)
	c := hub.AddClient(1, nil)
	defer hub.RemoveClient(c)
	c.Subscribe("del", Subscription{Table: TableComments, Event: AnyEvent})

	pub := NewPublisher(hub, NewMemoryBus(), nil)
	require.NoError(t, pub.Start(context.Background()))
	pub.Emit(TableComments, Delete, map[string]interface{}{"id": 4, "lesson_id": 12, "body": "x"})

	msg := <-c.Send
	require.NotNil(t, msg.Change)
	assert.Nil(t, msg.Change.Record)
	assert.Equal(t, map[string]interface{}{"id": float64(4)}, msg.Change.OldRecord)
	assert.False(t, msg.Change.CommitTimestamp.IsZero())
}

func TestEmitWithoutDefaultIsNoop(t *testing.T) {
	prev := Default
	Default = nil
	defer func() { Default = prev }()
	Emit(TableComments, Insert, map[string]interface{}{"id": 1})
}

func TestHandlerSubscribeAndReceive(t *testing.T) {
	hub := NewHub(nil)
	pub := NewPublisher(hub, NewMemoryBus(), nil)
	require.NoError(t, pub.Start(context.Background()))

	srv := httptest.NewServer(&Handler{
		Hub: hub,
		Authenticate: func(token string) (uint, error) {
			if token != "good" {
				return 0, errors.New("bad token")
			}
			return 7, nil
		},
	})
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := websocket.Dial(ctx, wsURL+"?token=nope", nil)
	require.Error(t, err)

	conn, _, err := websocket.Dial(ctx, wsURL+"?token=good", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: MsgSubscribe, Ref: "c1", Table: TableComments, Event: "*", Filter: "lesson_id=eq.12"}))
	var ack ServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &ack))
	assert.Equal(t, ServerMessage{Type: MsgSubscribed, Ref: "c1"}, ack)

	pub.Emit(TableComments, Insert, map[string]interface{}{"id": 1, "lesson_id": 12})

	var got ServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, MsgChange, got.Type)
	assert.Equal(t, "c1", got.Ref)
	require.NotNil(t, got.Change)
	assert.Equal(t, Insert, got.Change.Type)
	assert.Equal(t, float64(12), got.Change.Record["lesson_id"])
}
