package syncclient

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/realtime"
)

type comment struct {
	ID     uint
	Body   string
	Author string
	Likes  int
}

type fakeServer struct {
	mu      sync.Mutex
	rows    []comment
	fetches int
}

func (s *fakeServer) fetch(context.Context) ([]comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	out := make([]comment, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

func (s *fakeServer) insert(c comment) {
	s.mu.Lock()
	s.rows = append(s.rows, c)
	s.mu.Unlock()
}

func newList(t *testing.T, srv *fakeServer) *LiveList[comment] {
	t.Helper()
	l, err := NewLiveList(Options[comment]{
		Fetch: srv.fetch,
		ID:    func(c comment) uint { return c.ID },
	})
	require.NoError(t, err)
	require.NoError(t, l.Refresh(context.Background()))
	return l
}

func bodies(l *LiveList[comment]) []string {
	var out []string
	for _, c := range l.Items() {
		out = append(out, c.Body)
	}
	return out
}

func TestNewLiveListRequiresFetchAndID(t *testing.T) {
	_, err := NewLiveList(Options[comment]{})
	assert.Error(t, err)
}

func TestInsertTriggersRefetchWithJoinedFields(t *testing.T) {
	srv := &fakeServer{rows: []comment{{ID: 1, Body: "a", Author: "Ann"}}}
	l := newList(t, srv)

	srv.insert(comment{ID: 2, Body: "b", Author: "Bob", Likes: 3})
	require.NoError(t, l.Apply(context.Background(), realtime.Change{
		Table: realtime.TableComments, Type: realtime.Insert,
		Record: map[string]interface{}{"id": float64(2), "body": "b"},
	}))

	items := l.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Bob", items[1].Author)
	assert.Equal(t, 3, items[1].Likes)
	assert.Equal(t, 2, srv.fetches)
}

func TestDeleteIsIdempotentAndDoesNotRefetch(t *testing.T) {
	srv := &fakeServer{rows: []comment{{ID: 1, Body: "a"}, {ID: 2, Body: "b"}}}
	l := newList(t, srv)

	del := realtime.Change{Table: realtime.TableComments, Type: realtime.Delete, OldRecord: map[string]interface{}{"id": float64(1)}}
	require.NoError(t, l.Apply(context.Background(), del))
	require.NoError(t, l.Apply(context.Background(), del))

	assert.Equal(t, []string{"b"}, bodies(l))
	assert.Equal(t, 1, srv.fetches)
}

func TestSendSwapsProvisionalInPlace(t *testing.T) {
	srv := &fakeServer{rows: []comment{{ID: 1, Body: "a"}}}
	l := newList(t, srv)

	var during []Entry[comment]
	got, err := l.Send(context.Background(), comment{Body: "hello"}, func(context.Context) (comment, error) {
		during = l.Snapshot()
		return comment{ID: 5, Body: "hello", Author: "Me"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint(5), got.ID)

	require.Len(t, during, 2)
	assert.True(t, during[1].Pending())
	assert.True(t, strings.HasPrefix(during[1].TempID, "temp-"))

	snap := l.Snapshot()
	require.Len(t, snap, 2)
	assert.False(t, snap[1].Pending())
	assert.Equal(t, uint(5), snap[1].ID)
	assert.Equal(t, "Me", snap[1].Item.Author)
}

func TestSendFailureRemovesProvisional(t *testing.T) {
	srv := &fakeServer{rows: []comment{{ID: 1, Body: "a"}}}
	l := newList(t, srv)

	boom := errors.New("rejected")
	_, err := l.Send(context.Background(), comment{Body: "x"}, func(context.Context) (comment, error) {
		return comment{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, bodies(l))
}

func TestSendDropsProvisionalWhenRefreshAlreadyDeliveredIt(t *testing.T) {
	srv := &fakeServer{rows: []comment{{ID: 1, Body: "a"}}}
	l := newList(t, srv)

	_, err := l.Send(context.Background(), comment{Body: "hello"}, func(ctx context.Context) (comment, error) {
		srv.insert(comment{ID: 5, Body: "hello"})
		require.NoError(t, l.Refresh(ctx))
		// confirmed row and provisional row both visible until the send resolves
		assert.Len(t, l.Snapshot(), 3)
		return comment{ID: 5, Body: "hello"}, nil
	})
	require.NoError(t, err)

	snap := l.Snapshot()
	require.Len(t, snap, 2)
	for _, e := range snap {
		assert.False(t, e.Pending())
	}
}

func TestPendingSurvivesRefresh(t *testing.T) {
	srv := &fakeServer{rows: []comment{{ID: 1, Body: "a"}}}
	l := newList(t, srv)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = l.Send(context.Background(), comment{Body: "slow"}, func(context.Context) (comment, error) {
			close(started)
			<-release
			return comment{ID: 9, Body: "slow"}, nil
		})
	}()
	<-started

	srv.insert(comment{ID: 2, Body: "b"})
	require.NoError(t, l.Refresh(context.Background()))
	assert.Equal(t, []string{"a", "b", "slow"}, bodies(l))
	assert.True(t, l.Snapshot()[2].Pending())

	close(release)
	<-done
	assert.False(t, l.Snapshot()[2].Pending())
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	srv := &fakeServer{rows: []comment{{ID: 1, Body: "a"}}}
	l := newList(t, srv)

	var calls int
	unsubscribe := l.Subscribe(func(snap []Entry[comment]) { calls++ })
	require.NoError(t, l.Refresh(context.Background()))
	assert.Equal(t, 1, calls)

	unsubscribe()
	unsubscribe()
	require.NoError(t, l.Refresh(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestRunAppliesChangesAndPolls(t *testing.T) {
	srv := &fakeServer{rows: []comment{{ID: 1, Body: "a"}, {ID: 2, Body: "b"}}}
	l, err := NewLiveList(Options[comment]{
		Fetch:        srv.fetch,
		ID:           func(c comment) uint { return c.ID },
		PollInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan realtime.Change, 1)
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, changes) }()

	require.Eventually(t, func() bool { return len(l.Items()) == 2 }, time.Second, 5*time.Millisecond)

	srv.mu.Lock()
	srv.rows = []comment{{ID: 2, Body: "b"}}
	srv.mu.Unlock()
	changes <- realtime.Change{Type: realtime.Delete, OldRecord: map[string]interface{}{"id": float64(1)}}
	require.Eventually(t, func() bool {
		items := l.Items()
		return len(items) == 1 && items[0].ID == 2
	}, time.Second, 5*time.Millisecond)

	// missed event, picked up by polling
	srv.mu.Lock()
	srv.rows = []comment{{ID: 2, Body: "b"}, {ID: 3, Body: "c"}}
	srv.mu.Unlock()
	require.Eventually(t, func() bool { return len(l.Items()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
