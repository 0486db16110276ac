package courseValidator

import (
	"coursehub/permissions"
	"coursehub/validators"

	"github.com/gofiber/fiber/v2"
)

// PortalAccessRequest is one portal row of the enrollment editor.
type PortalAccessRequest struct {
	PortalID   uint   `json:"portal_id" validate:"required"`
	Enabled    bool   `json:"enabled"`
	FullAccess bool   `json:"full_access"`
	ModuleIDs  []uint `json:"module_ids"`
}

type SaveEnrollmentsRequest struct {
	Portals []PortalAccessRequest `json:"portals" validate:"required,dive"`
}

// State converts the request into reducer state. Full access drops explicit modules.
func (r SaveEnrollmentsRequest) State() permissions.State {
	s := make(permissions.State, len(r.Portals))
	for _, p := range r.Portals {
		a := permissions.PortalAccess{Enabled: p.Enabled, FullAccess: p.Enabled && p.FullAccess, ModuleIDs: map[uint]struct{}{}}
		if p.Enabled && !p.FullAccess {
			for _, id := range p.ModuleIDs {
				a.ModuleIDs[id] = struct{}{}
			}
		}
		s[p.PortalID] = a
	}
	return s
}

func SaveEnrollments() fiber.Handler {
	return validators.Body("validatedEnrollments", func(r *SaveEnrollmentsRequest) map[string]string {
		errors := make(map[string]string)
		seen := map[uint]bool{}
		for _, p := range r.Portals {
			if seen[p.PortalID] {
				errors["portals"] = "portals contain a duplicate portal_id!"
				break
			}
			seen[p.PortalID] = true
		}
		return errors
	})
}

// UserID validates the :user_id route parameter.
func UserID() fiber.Handler {
	return validators.IDParams("user_id")
}
