package courseValidator

import (
	"strings"

	"coursehub/validators"

	"github.com/gofiber/fiber/v2"
)

type CreatePortalRequest struct {
	Name        string                 `json:"name" validate:"required,min=3,max=100,nohtml"`
	Slug        string                 `json:"slug" validate:"required,min=2,max=60,slug"`
	Description string                 `json:"description" validate:"max=2000"`
	Theme       map[string]interface{} `json:"theme"`
	IsActive    *bool                  `json:"is_active"`
}

type UpdatePortalRequest struct {
	Name        *string                `json:"name" validate:"omitempty,min=3,max=100,nohtml"`
	Slug        *string                `json:"slug" validate:"omitempty,min=2,max=60,slug"`
	Description *string                `json:"description" validate:"omitempty,max=2000"`
	Theme       map[string]interface{} `json:"theme"`
	IsActive    *bool                  `json:"is_active"`
}

func CreatePortal() fiber.Handler {
	return validators.Body("validatedPortal", func(r *CreatePortalRequest) map[string]string {
		r.Name = strings.TrimSpace(r.Name)
		r.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
		r.Description = strings.TrimSpace(r.Description)
		return nil
	})
}

func UpdatePortal() fiber.Handler {
	return validators.Body("validatedPortalUpdate", func(r *UpdatePortalRequest) map[string]string {
		if r.Name != nil {
			*r.Name = strings.TrimSpace(*r.Name)
		}
		if r.Slug != nil {
			*r.Slug = strings.ToLower(strings.TrimSpace(*r.Slug))
		}
		return nil
	})
}

// PortalID validates the :portal_id route parameter.
func PortalID() fiber.Handler {
	return validators.IDParams("portal_id")
}
