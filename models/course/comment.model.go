package course

import (
	"time"

	"coursehub/models"

	"gorm.io/datatypes"
)

type CommentEdit struct {
	Body     string    `json:"body"`
	EditedAt time.Time `json:"edited_at"`
}

// Comment on a lesson. Replies are one level deep: ParentID always points at a top-level comment.
type Comment struct {
	models.Model
	LessonID    uint                             `json:"lesson_id" gorm:"index;not null"`
	UserID      uint                             `json:"user_id" gorm:"index;not null"`
	ParentID    *uint                            `json:"parent_id" gorm:"index"`
	Body        string                           `json:"body" gorm:"type:text;not null"`
	EditHistory datatypes.JSONSlice[CommentEdit] `json:"edit_history"`
}

type CommentLike struct {
	models.Model
	CommentID uint `json:"comment_id" gorm:"uniqueIndex:idx_comment_like;not null"`
	UserID    uint `json:"user_id" gorm:"uniqueIndex:idx_comment_like;not null"`
}
