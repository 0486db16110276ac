package client

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commentIDs(feed *CommentFeed) []uint {
	var ids []uint
	for _, cm := range feed.Items() {
		ids = append(ids, cm.ID)
	}
	return ids
}

func threadFixture(t *testing.T, status int) (*CommentFeed, chan struct{}) {
	t.Helper()
	api, c := newFakeAPI(t)
	parent := uint(1)
	api.handle("GET /lessons/7/comments", func([]byte) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{"comments": []Comment{
			{ID: 1, LessonID: 7, Body: "question"},
			{ID: 2, LessonID: 7, ParentID: &parent, Body: "answer"},
			{ID: 3, LessonID: 7, Body: "another"},
		}}
	})
	release := make(chan struct{})
	api.handle("DELETE /comments/1", func([]byte) (int, interface{}) {
		<-release
		return status, nil
	})

	feed, err := c.CommentFeed(7, Profile{ID: 5}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, feed.Refresh(context.Background()))
	return feed, release
}

func TestCommentFeedDeleteIsOptimistic(t *testing.T) {
	feed, release := threadFixture(t, http.StatusOK)

	done := make(chan error, 1)
	go func() { done <- feed.Delete(context.Background(), 1) }()

	require.Eventually(t, func() bool { return len(feed.Items()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []uint{3}, commentIDs(feed))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []uint{3}, commentIDs(feed))
}

func TestCommentFeedDeleteFailureReloads(t *testing.T) {
	feed, release := threadFixture(t, http.StatusForbidden)

	done := make(chan error, 1)
	go func() { done <- feed.Delete(context.Background(), 1) }()

	require.Eventually(t, func() bool { return len(feed.Items()) == 1 }, time.Second, 5*time.Millisecond)

	close(release)
	err := <-done
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, []uint{1, 2, 3}, commentIDs(feed))
}
