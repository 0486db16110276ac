package courseValidator

import (
	"strings"

	"coursehub/validators"

	"github.com/gofiber/fiber/v2"
)

type CreateLessonRequest struct {
	Title         string                 `json:"title" validate:"required,min=3,max=200"`
	MediaURL      string                 `json:"media_url" validate:"omitempty,url"`
	ContentType   string                 `json:"content_type" validate:"required,oneof=video text quiz file pdf external"`
	OrderIndex    *int                   `json:"order_index" validate:"omitempty,gte=0"`
	IsFreePreview bool                   `json:"is_free_preview"`
	IsPublished   bool                   `json:"is_published"`
	Settings      map[string]interface{} `json:"settings"`
}

// UpdateLessonRequest is partial. Settings keys are merged into the stored
// settings; a null value removes the key.
type UpdateLessonRequest struct {
	Title         *string                `json:"title" validate:"omitempty,min=3,max=200"`
	MediaURL      *string                `json:"media_url" validate:"omitempty,url"`
	ContentType   *string                `json:"content_type" validate:"omitempty,oneof=video text quiz file pdf external"`
	IsFreePreview *bool                  `json:"is_free_preview"`
	Settings      map[string]interface{} `json:"settings"`
}

type PublishLessonRequest struct {
	IsPublished bool `json:"is_published"`
}

func CreateLesson() fiber.Handler {
	return validators.Body("validatedLesson", func(r *CreateLessonRequest) map[string]string {
		r.Title = strings.TrimSpace(r.Title)
		r.ContentType = strings.ToLower(strings.TrimSpace(r.ContentType))
		errors := make(map[string]string)
		if r.ContentType != "" && r.ContentType != "text" && r.ContentType != "quiz" && r.MediaURL == "" {
			errors["media_url"] = "media_url is required for " + r.ContentType + " lessons!"
		}
		return errors
	})
}

func UpdateLesson() fiber.Handler {
	return validators.Body("validatedLessonUpdate", func(r *UpdateLessonRequest) map[string]string {
		if r.Title != nil {
			*r.Title = strings.TrimSpace(*r.Title)
		}
		if r.ContentType != nil {
			*r.ContentType = strings.ToLower(strings.TrimSpace(*r.ContentType))
		}
		return nil
	})
}

func PublishLesson() fiber.Handler {
	return validators.Body[PublishLessonRequest]("validatedLessonPublish")
}

// LessonParams validates :portal_id and :lesson_id.
func LessonParams() fiber.Handler {
	return validators.IDParams("portal_id", "lesson_id")
}
