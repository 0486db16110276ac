package courseValidator

import (
	"strings"
	"time"

	"coursehub/validators"

	"github.com/gofiber/fiber/v2"
)

type CreateModuleRequest struct {
	Title            string     `json:"title" validate:"required,min=3,max=200"`
	Description      string     `json:"description" validate:"max=5000"`
	ParentID         *uint      `json:"parent_id" validate:"omitempty,gt=0"`
	OrderIndex       *int       `json:"order_index" validate:"omitempty,gte=0"`
	IsActive         *bool      `json:"is_active"`
	ReleaseAt        *time.Time `json:"release_at"`
	ReleaseAfterDays int        `json:"release_after_days" validate:"gte=0,max=3650"`
}

// UpdateModuleRequest is partial. ParentID moves the module under another
// module; MoveToRoot moves it to the top level. ClearReleaseAt removes a release date.
type UpdateModuleRequest struct {
	Title            *string    `json:"title" validate:"omitempty,min=3,max=200"`
	Description      *string    `json:"description" validate:"omitempty,max=5000"`
	ParentID         *uint      `json:"parent_id" validate:"omitempty,gt=0"`
	MoveToRoot       bool       `json:"move_to_root"`
	IsActive         *bool      `json:"is_active"`
	ReleaseAt        *time.Time `json:"release_at"`
	ClearReleaseAt   bool       `json:"clear_release_at"`
	ReleaseAfterDays *int       `json:"release_after_days" validate:"omitempty,gte=0,max=3650"`
}

func CreateModule() fiber.Handler {
	return validators.Body("validatedModule", func(r *CreateModuleRequest) map[string]string {
		r.Title = strings.TrimSpace(r.Title)
		r.Description = strings.TrimSpace(r.Description)
		return nil
	})
}

func UpdateModule() fiber.Handler {
	return validators.Body("validatedModuleUpdate", func(r *UpdateModuleRequest) map[string]string {
		errors := make(map[string]string)
		if r.Title != nil {
			*r.Title = strings.TrimSpace(*r.Title)
		}
		if r.MoveToRoot && r.ParentID != nil {
			errors["parent_id"] = "parent_id cannot be combined with move_to_root!"
		}
		if r.ClearReleaseAt && r.ReleaseAt != nil {
			errors["release_at"] = "release_at cannot be combined with clear_release_at!"
		}
		return errors
	})
}

// ModuleParams validates :portal_id and :module_id.
func ModuleParams() fiber.Handler {
	return validators.IDParams("portal_id", "module_id")
}
