package controllers

import (
	"errors"
	"time"

	"coursehub/classroom"
	"coursehub/database"
	"coursehub/middleware"
	"coursehub/models"
	"coursehub/models/course"
	"coursehub/realtime"
	validators "coursehub/validators/community"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// CommentView is a comment with the fields joined for display.
type CommentView struct {
	course.Comment
	Author    models.Profile `json:"author"`
	LikeCount int64          `json:"like_count"`
	LikedByMe bool           `json:"liked_by_me"`
}

// lessonForMember loads lessonID and checks the current user may open it.
// Every comment handler goes through it, including those addressed by comment id.
func lessonForMember(c *fiber.Ctx, lessonID uint) (course.Lesson, bool, error) {
	db := database.Database.Db
	user, _ := middleware.CurrentUser(c)

	var lesson course.Lesson
	if err := db.Where("id = ? AND is_deleted = ?", lessonID, false).First(&lesson).Error; err != nil {
		return lesson, false, middleware.JsonResponse(c, fiber.StatusNotFound, false, "Lesson not found!", nil)
	}
	viewer, err := classroom.LoadViewer(db, user, lesson.PortalID)
	if err == nil {
		err = classroom.LessonAccess(db, viewer, lesson, time.Now())
	}
	if err != nil {
		if errors.Is(err, classroom.ErrNotEnrolled) || errors.Is(err, classroom.ErrLessonHidden) {
			return lesson, false, middleware.JsonResponse(c, fiber.StatusForbidden, false, "This lesson is not available to you!", nil)
		}
		return lesson, false, middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to check lesson access!", nil)
	}
	return lesson, true, nil
}

func commentOr404(c *fiber.Ctx) (course.Comment, bool, error) {
	commentID := c.Locals("comment_id").(uint)
	var comment course.Comment
	if err := database.Database.Db.Where("id = ?", commentID).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return comment, false, middleware.JsonResponse(c, fiber.StatusNotFound, false, "Comment not found!", nil)
		}
		return comment, false, middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch comment!", nil)
	}
	return comment, true, nil
}

func commentViews(db *gorm.DB, comments []course.Comment, viewerID uint) ([]CommentView, error) {
	views := make([]CommentView, len(comments))
	if len(comments) == 0 {
		return views, nil
	}

	commentIDs := make([]uint, len(comments))
	userIDs := make([]uint, 0, len(comments))
	for i, cm := range comments {
		commentIDs[i] = cm.ID
		userIDs = append(userIDs, cm.UserID)
	}

	var users []models.User
	if err := db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	profiles := make(map[uint]models.Profile, len(users))
	for _, u := range users {
		profiles[u.ID] = u.Profile()
	}

	var counts []struct {
		CommentID uint
		Total     int64
	}
	if err := db.Model(&course.CommentLike{}).
		Select("comment_id, COUNT(*) AS total").
		Where("comment_id IN ?", commentIDs).
		Group("comment_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	likeCount := make(map[uint]int64, len(counts))
	for _, row := range counts {
		likeCount[row.CommentID] = row.Total
	}

	var mine []uint
	if err := db.Model(&course.CommentLike{}).
		Where("comment_id IN ? AND user_id = ?", commentIDs, viewerID).
		Pluck("comment_id", &mine).Error; err != nil {
		return nil, err
	}
	liked := make(map[uint]bool, len(mine))
	for _, id := range mine {
		liked[id] = true
	}

	for i, cm := range comments {
		views[i] = CommentView{
			Comment:   cm,
			Author:    profiles[cm.UserID],
			LikeCount: likeCount[cm.ID],
			LikedByMe: liked[cm.ID],
		}
	}
	return views, nil
}

// ListComments returns every comment of a lesson, oldest first, with author and likes
func ListComments(c *fiber.Ctx) error {
	lesson, ok, err := lessonForMember(c, c.Locals("lesson_id").(uint))
	if !ok {
		return err
	}
	user, _ := middleware.CurrentUser(c)
	db := database.Database.Db

	var comments []course.Comment
	if err := db.Where("lesson_id = ?", lesson.ID).Order("created_at asc, id asc").Find(&comments).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch comments!", nil)
	}

	views, err := commentViews(db, comments, user.ID)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch comments!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Comments fetched successfully!", fiber.Map{
		"comments": views,
	})
}

// CreateComment posts a comment or a reply. A reply to a reply attaches to the top-level comment.
func CreateComment(c *fiber.Ctx) error {
	lesson, ok, err := lessonForMember(c, c.Locals("lesson_id").(uint))
	if !ok {
		return err
	}
	user, _ := middleware.CurrentUser(c)
	reqData := c.Locals("validatedComment").(*validators.CreateCommentRequest)
	db := database.Database.Db

	comment := course.Comment{
		LessonID:    lesson.ID,
		UserID:      user.ID,
		Body:        reqData.Body,
		EditHistory: []course.CommentEdit{},
	}

	if reqData.ParentID != nil {
		var parent course.Comment
		if err := db.Where("id = ? AND lesson_id = ?", *reqData.ParentID, lesson.ID).First(&parent).Error; err != nil {
			return middleware.ValidationErrorResponse(c, map[string]string{"parent_id": "Parent comment not found on this lesson!"})
		}
		topLevel := parent.ID
		if parent.ParentID != nil {
			topLevel = *parent.ParentID
		}
		comment.ParentID = &topLevel
	}

	if err := db.Create(&comment).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to post comment!", nil)
	}
	realtime.Emit(realtime.TableComments, realtime.Insert, comment)

	views, err := commentViews(db, []course.Comment{comment}, user.ID)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusCreated, true, "Comment posted successfully!", comment)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Comment posted successfully!", views[0])
}

// EditComment replaces the body of the author's own comment and records the previous body
func EditComment(c *fiber.Ctx) error {
	comment, ok, err := commentOr404(c)
	if !ok {
		return err
	}
	if _, ok, err := lessonForMember(c, comment.LessonID); !ok {
		return err
	}
	user, _ := middleware.CurrentUser(c)
	if comment.UserID != user.ID {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "You can only edit your own comments!", nil)
	}
	reqData := c.Locals("validatedCommentEdit").(*validators.EditCommentRequest)

	if reqData.Body != comment.Body {
		comment.EditHistory = append(comment.EditHistory, course.CommentEdit{Body: comment.Body, EditedAt: time.Now().UTC()})
		comment.Body = reqData.Body
		if err := database.Database.Db.Save(&comment).Error; err != nil {
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to edit comment!", nil)
		}
		realtime.Emit(realtime.TableComments, realtime.Update, comment)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Comment updated successfully!", comment)
}

// DeleteComment removes a comment with its replies and likes. Authors and staff may delete.
func DeleteComment(c *fiber.Ctx) error {
	comment, ok, err := commentOr404(c)
	if !ok {
		return err
	}
	if _, ok, err := lessonForMember(c, comment.LessonID); !ok {
		return err
	}
	user, _ := middleware.CurrentUser(c)
	if comment.UserID != user.ID && !user.IsStaff() {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "You can only delete your own comments!", nil)
	}

	ids := []uint{comment.ID}
	err = database.Database.Db.Transaction(func(tx *gorm.DB) error {
		var replies []uint
		if err := tx.Model(&course.Comment{}).Where("parent_id = ?", comment.ID).Pluck("id", &replies).Error; err != nil {
			return err
		}
		ids = append(ids, replies...)
		if err := tx.Where("comment_id IN ?", ids).Delete(&course.CommentLike{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&course.Comment{}).Error
	})
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to delete comment!", nil)
	}

	for _, id := range ids {
		realtime.Emit(realtime.TableComments, realtime.Delete, map[string]interface{}{"id": id})
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Comment deleted successfully!", fiber.Map{
		"deleted_ids": ids,
	})
}

// ToggleLike likes a comment, or removes the like when the user already liked it
func ToggleLike(c *fiber.Ctx) error {
	comment, ok, err := commentOr404(c)
	if !ok {
		return err
	}
	if _, ok, err := lessonForMember(c, comment.LessonID); !ok {
		return err
	}
	user, _ := middleware.CurrentUser(c)
	db := database.Database.Db

	var like course.CommentLike
	err = db.Where("comment_id = ? AND user_id = ?", comment.ID, user.ID).First(&like).Error
	liked := false
	switch {
	case err == nil:
		if err := db.Delete(&like).Error; err != nil {
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update like!", nil)
		}
		realtime.Emit(realtime.TableCommentLikes, realtime.Delete, like)
	case errors.Is(err, gorm.ErrRecordNotFound):
		like = course.CommentLike{CommentID: comment.ID, UserID: user.ID}
		if err := db.Create(&like).Error; err != nil {
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update like!", nil)
		}
		liked = true
		realtime.Emit(realtime.TableCommentLikes, realtime.Insert, like)
	default:
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update like!", nil)
	}

	var count int64
	db.Model(&course.CommentLike{}).Where("comment_id = ?", comment.ID).Count(&count)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Like updated successfully!", fiber.Map{
		"comment_id": comment.ID,
		"liked":      liked,
		"like_count": count,
	})
}
