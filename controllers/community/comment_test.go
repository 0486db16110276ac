package controllers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	controllers "coursehub/controllers/community"
	"coursehub/models"
	"coursehub/models/course"
	"coursehub/realtime"
	"coursehub/routers/communityRoutes"
	"coursehub/testutil"
)

type fixture struct {
	db      *gorm.DB
	app     *fiber.App
	lesson  course.Lesson
	student models.User
	token   string
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testutil.DB(t)
	portal := testutil.SeedPortal(t, db, "community")
	module := testutil.SeedModule(t, db, portal.ID, nil, "Module", 0)
	lesson := testutil.SeedLesson(t, db, module, "Lesson", 0, true)
	student := testutil.SeedUser(t, db, models.RoleStudent)
	testutil.SeedEnrollment(t, db, student.ID, portal.ID, true)
	return fixture{
		db:      db,
		app:     testutil.App(communityRoutes.SetupCommentRoutes),
		lesson:  lesson,
		student: student,
		token:   testutil.Token(t, student),
	}
}

func (f fixture) post(t *testing.T, token, body string, parent *uint) controllers.CommentView {
	t.Helper()
	req := map[string]interface{}{"body": body}
	if parent != nil {
		req["parent_id"] = *parent
	}
	resp := testutil.Call(t, f.app, http.MethodPost, fmt.Sprintf("/lessons/%d/comments", f.lesson.ID), token, req)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)
	var out controllers.CommentView
	resp.Decode(t, &out)
	return out
}

func TestCommentsRequireLessonAccess(t *testing.T) {
	f := setup(t)
	outsider := testutil.SeedUser(t, f.db, models.RoleStudent)

	resp := testutil.Call(t, f.app, http.MethodGet, fmt.Sprintf("/lessons/%d/comments", f.lesson.ID), testutil.Token(t, outsider), nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = testutil.Call(t, f.app, http.MethodPost, fmt.Sprintf("/lessons/%d/comments", f.lesson.ID), f.token, map[string]string{"body": "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestCommentActionsRequireLessonAccess(t *testing.T) {
	f := setup(t)
	cm := f.post(t, f.token, "before losing access", nil)
	require.NoError(t, f.db.Where("user_id = ?", f.student.ID).Delete(&course.Enrollment{}).Error)

	resp := testutil.Call(t, f.app, http.MethodPost, fmt.Sprintf("/comments/%d/like", cm.ID), f.token, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)
	resp = testutil.Call(t, f.app, http.MethodPut, fmt.Sprintf("/comments/%d", cm.ID), f.token, map[string]string{"body": "edited"})
	assert.Equal(t, http.StatusForbidden, resp.Code)
	resp = testutil.Call(t, f.app, http.MethodDelete, fmt.Sprintf("/comments/%d", cm.ID), f.token, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	var likes int64
	f.db.Model(&course.CommentLike{}).Count(&likes)
	assert.Zero(t, likes)
	var stored course.Comment
	require.NoError(t, f.db.First(&stored, cm.ID).Error)
	assert.Equal(t, "before losing access", stored.Body)
}

func TestReplyToReplyAttachesToTopLevel(t *testing.T) {
	f := setup(t)
	changes := testutil.RecordChanges(t)

	top := f.post(t, f.token, "top", nil)
	reply := f.post(t, f.token, "reply", &top.ID)
	nested := f.post(t, f.token, "nested", &reply.ID)

	require.NotNil(t, nested.ParentID)
	assert.Equal(t, top.ID, *nested.ParentID)
	assert.Equal(t, f.student.ID, nested.Author.ID)

	inserts := changes.Of(realtime.TableComments)
	require.Len(t, inserts, 3)
	assert.Equal(t, realtime.Insert, inserts[0].Type)
	assert.EqualValues(t, f.lesson.ID, inserts[0].Record["lesson_id"])
}

func TestEditKeepsHistoryAndIsAuthorOnly(t *testing.T) {
	f := setup(t)
	other := testutil.SeedUser(t, f.db, models.RoleStudent)
	testutil.SeedEnrollment(t, f.db, other.ID, f.lesson.PortalID, true)
	cm := f.post(t, f.token, "first draft", nil)

	path := fmt.Sprintf("/comments/%d", cm.ID)
	resp := testutil.Call(t, f.app, http.MethodPut, path, testutil.Token(t, other), map[string]string{"body": "hijack"})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = testutil.Call(t, f.app, http.MethodPut, path, f.token, map[string]string{"body": "final"})
	require.Equal(t, http.StatusOK, resp.Code)

	var stored course.Comment
	require.NoError(t, f.db.First(&stored, cm.ID).Error)
	assert.Equal(t, "final", stored.Body)
	require.Len(t, stored.EditHistory, 1)
	assert.Equal(t, "first draft", stored.EditHistory[0].Body)
}

func TestLikeToggleAndListing(t *testing.T) {
	f := setup(t)
	changes := testutil.RecordChanges(t)
	cm := f.post(t, f.token, "like me", nil)

	like := func() map[string]interface{} {
		resp := testutil.Call(t, f.app, http.MethodPost, fmt.Sprintf("/comments/%d/like", cm.ID), f.token, nil)
		require.Equal(t, http.StatusOK, resp.Code)
		var out map[string]interface{}
		resp.Decode(t, &out)
		return out
	}

	state := like()
	assert.Equal(t, true, state["liked"])
	assert.EqualValues(t, 1, state["like_count"])

	resp := testutil.Call(t, f.app, http.MethodGet, fmt.Sprintf("/lessons/%d/comments", f.lesson.ID), f.token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var list struct {
		Comments []controllers.CommentView `json:"comments"`
	}
	resp.Decode(t, &list)
	require.Len(t, list.Comments, 1)
	assert.EqualValues(t, 1, list.Comments[0].LikeCount)
	assert.True(t, list.Comments[0].LikedByMe)

	state = like()
	assert.Equal(t, false, state["liked"])
	assert.EqualValues(t, 0, state["like_count"])

	likes := changes.Of(realtime.TableCommentLikes)
	require.Len(t, likes, 2)
	assert.Equal(t, realtime.Insert, likes[0].Type)
	assert.Equal(t, realtime.Delete, likes[1].Type)
}

func TestDeleteCascadesRepliesAndLikes(t *testing.T) {
	f := setup(t)
	staff := testutil.SeedUser(t, f.db, models.RoleStaff)
	other := testutil.SeedUser(t, f.db, models.RoleStudent)
	testutil.SeedEnrollment(t, f.db, other.ID, f.lesson.PortalID, true)

	top := f.post(t, f.token, "top", nil)
	f.post(t, testutil.Token(t, other), "reply", &top.ID)
	resp := testutil.Call(t, f.app, http.MethodPost, fmt.Sprintf("/comments/%d/like", top.ID), f.token, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = testutil.Call(t, f.app, http.MethodDelete, fmt.Sprintf("/comments/%d", top.ID), testutil.Token(t, other), nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	changes := testutil.RecordChanges(t)
	resp = testutil.Call(t, f.app, http.MethodDelete, fmt.Sprintf("/comments/%d", top.ID), testutil.Token(t, staff), nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var count int64
	f.db.Model(&course.Comment{}).Count(&count)
	assert.Zero(t, count)
	f.db.Model(&course.CommentLike{}).Count(&count)
	assert.Zero(t, count)

	deletes := changes.Of(realtime.TableComments)
	require.Len(t, deletes, 2)
	for _, ch := range deletes {
		assert.Equal(t, realtime.Delete, ch.Type)
		assert.Nil(t, ch.Record)
	}

	resp = testutil.Call(t, f.app, http.MethodDelete, fmt.Sprintf("/comments/%d", top.ID), testutil.Token(t, staff), nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
