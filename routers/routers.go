package routers

import (
	"coursehub/routers/communityRoutes"
	"coursehub/routers/courseRoutes"
	"coursehub/routers/supportRoutes"

	"github.com/gofiber/fiber/v2"
)

// SetupRoutes mounts every REST route on app.
func SetupRoutes(app *fiber.App) {
	courseRoutes.SetupAdminCourseRoutes(app)
	courseRoutes.SetupCourseRoutes(app)
	communityRoutes.SetupCommentRoutes(app)
	supportRoutes.SetupChatRoutes(app)
}
