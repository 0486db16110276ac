package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/permissions"
	"coursehub/realtime"
	"coursehub/reorder"
)

// fakeAPI answers with the {status, message, data} envelope and records request bodies.
type fakeAPI struct {
	mu      sync.Mutex
	routes  map[string]func(body []byte) (int, interface{})
	queries map[string]func(q url.Values) (int, interface{})
	bodies  map[string][]byte
}

func newFakeAPI(t *testing.T) (*fakeAPI, *Client) {
	t.Helper()
	f := &fakeAPI{
		routes:  map[string]func([]byte) (int, interface{}){},
		queries: map[string]func(url.Values) (int, interface{}){},
		bodies:  map[string][]byte{},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.bodies[key] = body
		handler, ok := f.routes[key]
		if byQuery, found := f.queries[key]; found {
			query := r.URL.Query()
			handler, ok = func([]byte) (int, interface{}) { return byQuery(query) }, true
		}
		f.mu.Unlock()

		status, data := http.StatusNotFound, interface{}(nil)
		message := "Not found!"
		if ok {
			status, data = handler(body)
			message = "ok"
			if status >= 400 {
				message = "Rejected!"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": status < 400, "message": message, "data": data})
	}))
	t.Cleanup(srv.Close)
	return f, New(srv.URL, "token", nil)
}

func (f *fakeAPI) handle(key string, fn func(body []byte) (int, interface{})) {
	f.mu.Lock()
	f.routes[key] = fn
	f.mu.Unlock()
}

// handleQuery registers a route whose answer depends on the query string.
func (f *fakeAPI) handleQuery(key string, fn func(q url.Values) (int, interface{})) {
	f.mu.Lock()
	f.queries[key] = fn
	f.mu.Unlock()
}

func (f *fakeAPI) body(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[key]
}

func TestAPIErrorCarriesValidationErrors(t *testing.T) {
	api, c := newFakeAPI(t)
	api.handle("PUT /comments/3", func([]byte) (int, interface{}) {
		return http.StatusUnprocessableEntity, map[string]string{"body": "body is required!"}
	})

	_, err := c.EditComment(context.Background(), 3, "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "body is required!", apiErr.Errors["body"])

	err = c.DeleteComment(context.Background(), 99)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Not found!", apiErr.Message)
}

func TestCommentFeedPostIsOptimistic(t *testing.T) {
	api, c := newFakeAPI(t)
	var mu sync.Mutex
	stored := []Comment{{ID: 1, LessonID: 7, Body: "first"}}
	release := make(chan struct{})

	api.handle("GET /lessons/7/comments", func([]byte) (int, interface{}) {
		mu.Lock()
		defer mu.Unlock()
		return http.StatusOK, map[string]interface{}{"comments": stored}
	})
	api.handle("POST /lessons/7/comments", func(body []byte) (int, interface{}) {
		<-release
		var req struct {
			Body string `json:"body"`
		}
		_ = json.Unmarshal(body, &req)
		cm := Comment{ID: 2, LessonID: 7, Body: req.Body, Author: Profile{ID: 5, Name: "Ann"}}
		mu.Lock()
		stored = append(stored, cm)
		mu.Unlock()
		return http.StatusCreated, cm
	})

	feed, err := c.CommentFeed(7, Profile{ID: 5, Name: "Ann"}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, feed.Refresh(context.Background()))

	done := make(chan error, 1)
	go func() {
		_, err := feed.Post(context.Background(), "second", nil)
		done <- err
	}()

	require.Eventually(t, func() bool { return len(feed.Snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	pending := feed.Snapshot()[1]
	assert.True(t, pending.Pending())
	assert.Equal(t, "Ann", pending.Item.Author.Name)

	close(release)
	require.NoError(t, <-done)

	snap := feed.Snapshot()
	require.Len(t, snap, 2)
	assert.False(t, snap[1].Pending())
	assert.Equal(t, uint(2), snap[1].ID)
}

func TestCommentFeedPostFailureRemovesPending(t *testing.T) {
	api, c := newFakeAPI(t)
	api.handle("GET /lessons/7/comments", func([]byte) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{"comments": []Comment{}}
	})
	api.handle("POST /lessons/7/comments", func([]byte) (int, interface{}) {
		return http.StatusForbidden, nil
	})

	feed, err := c.CommentFeed(7, Profile{ID: 5}, time.Hour)
	require.NoError(t, err)

	_, err = feed.Post(context.Background(), "hello", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Empty(t, feed.Snapshot())
}

func TestModuleCoordinatorSavesPlan(t *testing.T) {
	api, c := newFakeAPI(t)
	api.handle("GET /admin/portal/4/modules", func([]byte) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{"modules": []map[string]interface{}{
			{"id": 1, "parent_id": nil, "order_index": 0},
			{"id": 2, "parent_id": nil, "order_index": 1},
			{"id": 3, "parent_id": nil, "order_index": 2},
		}}
	})
	api.handle("PUT /admin/portal/4/modules/order", func([]byte) (int, interface{}) {
		return http.StatusOK, nil
	})

	coord, err := c.ModuleCoordinator(context.Background(), 4, 3)
	require.NoError(t, err)

	_, err = coord.Drop(context.Background(), reorder.Drop{ActiveID: 1, OverID: 3})
	require.NoError(t, err)

	var sent reorder.Plan
	require.NoError(t, json.Unmarshal(api.body("PUT /admin/portal/4/modules/order"), &sent))
	assert.Nil(t, sent.Reparent)
	assert.ElementsMatch(t, []reorder.Position{{ID: 2, Ordinal: 0}, {ID: 3, Ordinal: 1}, {ID: 1, Ordinal: 2}}, sent.Positions)

	var order []uint
	for _, it := range coord.List(reorder.Root) {
		order = append(order, it.ID)
	}
	assert.Equal(t, []uint{2, 3, 1}, order)
}

func TestLessonStoreLoadsFromTree(t *testing.T) {
	api, c := newFakeAPI(t)
	api.handle("GET /admin/portal/4/tree", func([]byte) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{"tree": []map[string]interface{}{{
			"id": 1,
			"value": map[string]interface{}{"lessons": []map[string]interface{}{
				{"id": 10, "module_id": 1, "order_index": 0},
			}},
			"children": []map[string]interface{}{{
				"id":       2,
				"value":    map[string]interface{}{"lessons": []map[string]interface{}{{"id": 20, "module_id": 2, "order_index": 0}}},
				"children": []interface{}{},
			}},
		}}}
	})

	items, err := c.LessonStore(4).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []reorder.Item{{ID: 10, Parent: 1, Ordinal: 0}, {ID: 20, Parent: 2, Ordinal: 0}}, items)
}

func TestEnrollmentEditorSavesWholeState(t *testing.T) {
	api, c := newFakeAPI(t)
	api.handle("GET /admin/users/9/enrollments", func([]byte) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{"user_id": 9, "portals": []PortalAccess{
			{PortalID: 1, PortalName: "Go", Enabled: true, FullAccess: true, ModuleIDs: []uint{}},
			{PortalID: 2, PortalName: "Rust", ModuleIDs: []uint{}},
		}}
	})
	api.handle("GET /admin/portal/2/modules", func([]byte) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{"modules": []map[string]interface{}{
			{"id": 5, "parent_id": nil, "order_index": 0},
			{"id": 6, "parent_id": 5, "order_index": 0},
			{"id": 7, "parent_id": nil, "order_index": 1},
		}}
	})
	api.handle("PUT /admin/users/9/enrollments", func([]byte) (int, interface{}) {
		return http.StatusOK, nil
	})

	editor, err := c.EnrollmentEditor(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "Rust", editor.PortalName(2))

	editor.Dispatch(permissions.Action{Kind: permissions.TogglePortal, PortalID: 1})
	state, err := editor.ToggleSubtree(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.True(t, state[2].Enabled)
	assert.Equal(t, []uint{5, 6}, state[2].Modules())

	require.NoError(t, editor.Save(context.Background()))

	var sent struct {
		Portals []PortalAccess `json:"portals"`
	}
	require.NoError(t, json.Unmarshal(api.body("PUT /admin/users/9/enrollments"), &sent))
	assert.Equal(t, []PortalAccess{
		{PortalID: 1, Enabled: false, FullAccess: false, ModuleIDs: []uint{}},
		{PortalID: 2, Enabled: true, FullAccess: false, ModuleIDs: []uint{5, 6}},
	}, sent.Portals)
}

func TestUnreadCountersUseViewerSide(t *testing.T) {
	api, c := newFakeAPI(t)
	api.handle("GET /chat/conversations", func([]byte) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{"conversations": []Conversation{
			{ID: 1, UnreadStudent: 2, UnreadStaff: 0},
			{ID: 2, UnreadStudent: 1, UnreadStaff: 4},
		}}
	})

	student, err := c.UnreadCounters(Profile{ID: 5, Role: "STUDENT"}, ConversationFilter{}, time.Hour)
	require.NoError(t, err)

	var seen []int
	unsubscribe := student.Subscribe(func(u Unread) { seen = append(seen, u.Total) })
	require.NoError(t, student.Refresh(context.Background()))
	unsubscribe()
	require.NoError(t, student.Refresh(context.Background()))

	assert.Equal(t, []int{0, 3}, seen)
	assert.Equal(t, 2, student.Current().ByConversation[1])

	staff, err := c.UnreadCounters(Profile{ID: 1, Role: "STAFF"}, ConversationFilter{}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, staff.Refresh(context.Background()))
	assert.Equal(t, 4, staff.Current().Total)
}

func TestUnreadCountersCountEveryPage(t *testing.T) {
	api, c := newFakeAPI(t)
	var inbox []Conversation
	for i := 1; i <= 45; i++ {
		inbox = append(inbox, Conversation{ID: uint(i), UnreadStaff: 1})
	}
	var (
		mu    sync.Mutex
		pages []string
	)
	api.handleQuery("GET /chat/conversations", func(q url.Values) (int, interface{}) {
		mu.Lock()
		pages = append(pages, q.Get("page")+"/"+q.Get("limit"))
		mu.Unlock()
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		if page < 1 {
			page = 1
		}
		if limit < 1 {
			limit = 20
		}
		from, to := (page-1)*limit, page*limit
		if from > len(inbox) {
			from = len(inbox)
		}
		if to > len(inbox) {
			to = len(inbox)
		}
		return http.StatusOK, map[string]interface{}{"conversations": inbox[from:to]}
	})

	staff, err := c.UnreadCounters(Profile{ID: 1, Role: "STAFF"}, ConversationFilter{Limit: 20}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, staff.Refresh(context.Background()))

	assert.Equal(t, 45, staff.Current().Total)
	assert.Len(t, staff.Current().ByConversation, 45)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1/20", "2/20", "3/20"}, pages)
}

type fakeSubscriber struct {
	mu     sync.Mutex
	topics []string
	chans  map[string]chan realtime.Change
}

func (s *fakeSubscriber) Subscribe(_ context.Context, table, event, filter string) (<-chan realtime.Change, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := table + "/" + event + "/" + filter
	ch := make(chan realtime.Change, 4)
	s.topics = append(s.topics, key)
	s.chans[key] = ch
	return ch, func() {}, nil
}

func (s *fakeSubscriber) push(key string, ch realtime.Change) {
	s.mu.Lock()
	c := s.chans[key]
	s.mu.Unlock()
	c <- ch
}

func TestWatchTurnsRelatedChangesIntoUpdates(t *testing.T) {
	sub := &fakeSubscriber{chans: map[string]chan realtime.Change{}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, stop, err := watch(ctx, sub,
		topic{table: realtime.TableComments, event: "DELETE"},
		topic{table: realtime.TableCommentLikes, event: "*", related: true},
	)
	require.NoError(t, err)
	defer stop()
	assert.Equal(t, []string{"comments/DELETE/", "comment_likes/*/"}, sub.topics)

	sub.push("comment_likes/*/", realtime.Change{Table: realtime.TableCommentLikes, Type: realtime.Delete, OldRecord: map[string]interface{}{"id": float64(1)}})
	got := <-out
	assert.Equal(t, realtime.Update, got.Type)
	_, hasID := got.ID()
	assert.False(t, hasID)

	sub.push("comments/DELETE/", realtime.Change{Table: realtime.TableComments, Type: realtime.Delete, OldRecord: map[string]interface{}{"id": float64(1)}})
	got = <-out
	assert.Equal(t, realtime.Delete, got.Type)
}
