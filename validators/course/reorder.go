package courseValidator

import (
	"coursehub/reorder"
	"coursehub/validators"

	"github.com/gofiber/fiber/v2"
)

type MoveRequest struct {
	ActiveID        uint `json:"active_id" validate:"required"`
	OverID          uint `json:"over_id"`
	OverIsContainer bool `json:"over_is_container"`
}

type OrderRequest struct {
	Reparent  *reorder.Reparent  `json:"reparent"`
	Positions []reorder.Position `json:"positions" validate:"dive"`
}

func Move() fiber.Handler {
	return validators.Body("validatedMove", func(r *MoveRequest) map[string]string {
		errors := make(map[string]string)
		// over_id 0 is the root container; it is only meaningful as a container
		if r.OverID == 0 && !r.OverIsContainer {
			errors["over_id"] = "over_id is required!"
		}
		return errors
	})
}

func Order() fiber.Handler {
	return validators.Body("validatedOrder", func(r *OrderRequest) map[string]string {
		errors := make(map[string]string)
		if r.Reparent == nil && len(r.Positions) == 0 {
			errors["positions"] = "positions or reparent is required!"
		}
		seen := map[uint]bool{}
		for _, p := range r.Positions {
			if p.ID == 0 {
				errors["positions"] = "every position needs an id!"
				break
			}
			if p.Ordinal < 0 {
				errors["positions"] = "order_index must be 0 or greater!"
				break
			}
			if seen[p.ID] {
				errors["positions"] = "positions contain a duplicate id!"
				break
			}
			seen[p.ID] = true
		}
		if r.Reparent != nil && r.Reparent.ID == 0 {
			errors["reparent"] = "reparent needs an id!"
		}
		return errors
	})
}
