package communityValidator

import (
	"strings"

	"coursehub/validators"

	"github.com/gofiber/fiber/v2"
)

type CreateCommentRequest struct {
	Body     string `json:"body" validate:"required,max=5000"`
	ParentID *uint  `json:"parent_id" validate:"omitempty,gt=0"`
}

type EditCommentRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

func trimBody(body *string) {
	*body = strings.TrimSpace(*body)
}

func CreateComment() fiber.Handler {
	return validators.Body("validatedComment", func(r *CreateCommentRequest) map[string]string {
		trimBody(&r.Body)
		return nil
	})
}

func EditComment() fiber.Handler {
	return validators.Body("validatedCommentEdit", func(r *EditCommentRequest) map[string]string {
		trimBody(&r.Body)
		return nil
	})
}

// LessonID validates the :lesson_id route parameter.
func LessonID() fiber.Handler {
	return validators.IDParams("lesson_id")
}

// CommentID validates the :comment_id route parameter.
func CommentID() fiber.Handler {
	return validators.IDParams("comment_id")
}
