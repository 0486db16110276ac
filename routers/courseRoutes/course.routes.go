package courseRoutes

import (
	controllers "coursehub/controllers/course"
	"coursehub/middleware"
	communityValidator "coursehub/validators/community"

	"github.com/gofiber/fiber/v2"
)

// SetupCourseRoutes sets up the member-facing classroom routes
func SetupCourseRoutes(app *fiber.App) {
	portalGroup := app.Group("/portal", middleware.JWTMiddleware, middleware.RequireRole())

	portalGroup.Get("/:slug/classroom", controllers.GetClassroom)
	portalGroup.Get("/:slug/lessons/:lesson_id", communityValidator.LessonID(), controllers.GetLesson)
}
