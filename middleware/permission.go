package middleware

import (
	"errors"

	"coursehub/database"
	"coursehub/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// RequireRole loads the authenticated user and rejects roles outside allowed.
// With no roles every active user passes. The user is stored in c.Locals("user").
func RequireRole(allowed ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("userId").(uint)
		if !ok {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
		}

		var user models.User
		err := database.Database.Db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
			}
			return JsonResponse(c, fiber.StatusInternalServerError, false, "Server error while checking permissions!", nil)
		}

		if len(allowed) > 0 {
			permitted := false
			for _, role := range allowed {
				if user.Role == role {
					permitted = true
					break
				}
			}
			if !permitted {
				return JsonResponse(c, fiber.StatusForbidden, false, "You do not have permission to access this resource!", nil)
			}
		}

		c.Locals("user", user)
		return c.Next()
	}
}

// CurrentUser returns the user stored by RequireRole.
func CurrentUser(c *fiber.Ctx) (models.User, bool) {
	user, ok := c.Locals("user").(models.User)
	return user, ok
}
