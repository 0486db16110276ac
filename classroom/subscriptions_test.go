package classroom

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"coursehub/middleware"
	"coursehub/models"
	"coursehub/realtime"
	"coursehub/testutil"
)

func TestSubscriptionPolicy(t *testing.T) {
	db := testutil.DB(t)
	portal := testutil.SeedPortal(t, db, "policy")
	module := testutil.SeedModule(t, db, portal.ID, nil, "Week 1", 0)
	lesson := testutil.SeedLesson(t, db, module, "Intro", 0, true)

	owner := testutil.SeedUser(t, db, models.RoleStudent)
	other := testutil.SeedUser(t, db, models.RoleStudent)
	outsider := testutil.SeedUser(t, db, models.RoleStudent)
	staff := testutil.SeedUser(t, db, models.RoleStaff)
	testutil.SeedEnrollment(t, db, owner.ID, portal.ID, true)
	testutil.SeedEnrollment(t, db, other.ID, portal.ID, true)

	conv := models.Conversation{PortalID: portal.ID, StudentID: owner.ID, Status: models.ConversationOpen}
	require.NoError(t, db.Create(&conv).Error)

	authorize := SubscriptionPolicy(db)
	sub := func(table, event, filter string) realtime.Subscription {
		s, err := realtime.NewSubscription(table, event, filter)
		require.NoError(t, err)
		return s
	}
	ownConv := fmt.Sprintf("conversation_id=eq.%d", conv.ID)
	onLesson := fmt.Sprintf("lesson_id=eq.%d", lesson.ID)

	cases := []struct {
		name  string
		user  models.User
		sub   realtime.Subscription
		allow bool
	}{
		{"owner reads own thread", owner, sub(realtime.TableMessages, "*", ownConv), true},
		{"other student reads foreign thread", other, sub(realtime.TableMessages, "*", ownConv), false},
		{"student reads every message", other, sub(realtime.TableMessages, "*", ""), false},
		{"student reads message deletes", other, sub(realtime.TableMessages, "DELETE", ""), true},
		{"student watches own conversations", other, sub(realtime.TableConversations, "*", fmt.Sprintf("student_id=eq.%d", other.ID)), true},
		{"student watches foreign conversations", other, sub(realtime.TableConversations, "*", fmt.Sprintf("student_id=eq.%d", owner.ID)), false},
		{"student watches the whole inbox", other, sub(realtime.TableConversations, "*", ""), false},
		{"enrolled student reads lesson comments", other, sub(realtime.TableComments, "INSERT", onLesson), true},
		{"outsider reads lesson comments", outsider, sub(realtime.TableComments, "INSERT", onLesson), false},
		{"student reads every comment", other, sub(realtime.TableComments, "UPDATE", ""), false},
		{"student reads likes", outsider, sub(realtime.TableCommentLikes, "*", ""), true},
		{"student reads module changes", other, sub(realtime.TableModules, "*", ""), false},
		{"non numeric filter", owner, sub(realtime.TableMessages, "*", "conversation_id=eq.abc"), false},
		{"staff reads everything", staff, sub(realtime.TableMessages, "*", ""), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := authorize(tc.user.ID, tc.sub)
			if tc.allow {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrSubscriptionDenied)
			}
		})
	}

	assert.ErrorIs(t, authorize(9999, sub(realtime.TableCommentLikes, "*", "")), ErrSubscriptionDenied)
}

func TestForeignThreadIsNotStreamed(t *testing.T) {
	db := testutil.DB(t)
	portal := testutil.SeedPortal(t, db, "private-chat")
	owner := testutil.SeedUser(t, db, models.RoleStudent)
	outsider := testutil.SeedUser(t, db, models.RoleStudent)
	testutil.SeedEnrollment(t, db, owner.ID, portal.ID, true)
	conv := models.Conversation{PortalID: portal.ID, StudentID: owner.ID, Status: models.ConversationOpen}
	require.NoError(t, db.Create(&conv).Error)

	hub := realtime.NewHub(nil)
	hub.SetAuthorizer(SubscriptionPolicy(db))
	srv := httptest.NewServer(&realtime.Handler{Hub: hub, Authenticate: middleware.ParseUserID})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + testutil.Token(t, outsider)
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, conn, realtime.ClientMessage{Type: realtime.MsgSubscribe, Ref: "all", Table: realtime.TableMessages, Event: "*"}))
	var reply realtime.ServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, realtime.MsgError, reply.Type)
	assert.Equal(t, "all", reply.Ref)

	require.NoError(t, wsjson.Write(ctx, conn, realtime.ClientMessage{
		Type: realtime.MsgSubscribe, Ref: "theirs", Table: realtime.TableMessages, Event: "*",
		Filter: fmt.Sprintf("conversation_id=eq.%d", conv.ID),
	}))
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, realtime.MsgError, reply.Type)
	assert.Equal(t, "theirs", reply.Ref)

	hub.Broadcast(realtime.Change{Table: realtime.TableMessages, Type: realtime.Insert, Record: map[string]interface{}{
		"id": float64(1), "conversation_id": float64(conv.ID), "content": map[string]interface{}{"text": "my private question"},
	}})
	quiet, stop := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer stop()
	assert.Error(t, wsjson.Read(quiet, conn, &reply), "no change may reach a rejected subscriber")
}
