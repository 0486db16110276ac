package classroom

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"coursehub/models"
	"coursehub/models/course"
	"coursehub/realtime"

	"gorm.io/gorm"
)

var ErrSubscriptionDenied = errors.New("classroom: subscription not allowed")

func denied(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrSubscriptionDenied, fmt.Sprintf(format, args...))
}

// SubscriptionPolicy checks realtime subscriptions the way the REST handlers
// check reads. Staff may subscribe to anything. Everyone else needs a filter
// that pins the subscription to rows they may read:
//
//	messages       conversation_id=eq.<own conversation>
//	conversations  student_id=eq.<self>
//	comments       lesson_id=eq.<lesson they can open>
//	comment_likes  any filter
//
// DELETE-only subscriptions are always allowed since deletes carry nothing but the id.
func SubscriptionPolicy(db *gorm.DB) realtime.Authorizer {
	return func(userID uint, sub realtime.Subscription) error {
		var user models.User
		if err := db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return denied("user not found")
			}
			return err
		}
		if user.IsStaff() || sub.Event == string(realtime.Delete) {
			return nil
		}

		f, err := realtime.ParseFilter(sub.Filter)
		if err != nil {
			return err
		}
		var id uint64
		if f.Column != "" {
			if id, err = strconv.ParseUint(f.Value, 10, 64); err != nil {
				return denied("filter value must be an id")
			}
		}

		switch sub.Table {
		case realtime.TableMessages:
			if f.Column != "conversation_id" {
				return denied("messages require a conversation_id filter")
			}
			var n int64
			if err := db.Model(&models.Conversation{}).Where("id = ? AND student_id = ?", id, user.ID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return denied("conversation %d not found", id)
			}
		case realtime.TableConversations:
			if f.Column != "student_id" || uint(id) != user.ID {
				return denied("conversations require a student_id filter on your own id")
			}
		case realtime.TableComments:
			if f.Column != "lesson_id" {
				return denied("comments require a lesson_id filter")
			}
			return lessonReadable(db, user, uint(id))
		case realtime.TableCommentLikes:
		default:
			return denied("table %s is staff only", sub.Table)
		}
		return nil
	}
}

func lessonReadable(db *gorm.DB, user models.User, lessonID uint) error {
	var lesson course.Lesson
	if err := db.Where("id = ? AND is_deleted = ?", lessonID, false).First(&lesson).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return denied("lesson %d not found", lessonID)
		}
		return err
	}
	v, err := LoadViewer(db, user, lesson.PortalID)
	if err == nil {
		err = LessonAccess(db, v, lesson, time.Now())
	}
	if errors.Is(err, ErrNotEnrolled) || errors.Is(err, ErrLessonHidden) {
		return denied("lesson %d is not available to you", lessonID)
	}
	return err
}
