package courseRoutes

import (
	controllers "coursehub/controllers/course"
	"coursehub/middleware"
	"coursehub/models"
	validators "coursehub/validators/course"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminCourseRoutes sets up portal authoring, ordering and enrollment routes
func SetupAdminCourseRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.JWTMiddleware, middleware.RequireRole(models.RoleAdmin))

	// Portal CRUD
	adminGroup.Post("/portal", validators.CreatePortal(), controllers.AdminCreatePortal)
	adminGroup.Get("/portal/list", controllers.AdminListPortals)
	adminGroup.Get("/portal/:portal_id", validators.PortalID(), controllers.AdminGetPortal)
	adminGroup.Put("/portal/:portal_id", validators.PortalID(), validators.UpdatePortal(), controllers.AdminUpdatePortal)
	adminGroup.Delete("/portal/:portal_id", validators.PortalID(), controllers.AdminDeletePortal)

	// Module Management
	adminGroup.Post("/portal/:portal_id/module", validators.PortalID(), validators.CreateModule(), controllers.AdminCreateModule)
	adminGroup.Get("/portal/:portal_id/modules", validators.PortalID(), controllers.AdminListModules)
	adminGroup.Get("/portal/:portal_id/tree", validators.PortalID(), controllers.AdminModuleTree)
	adminGroup.Put("/portal/:portal_id/modules/move", validators.PortalID(), validators.Move(), controllers.AdminMoveModule)
	adminGroup.Put("/portal/:portal_id/modules/order", validators.PortalID(), validators.Order(), controllers.AdminOrderModules)
	adminGroup.Put("/portal/:portal_id/module/:module_id", validators.ModuleParams(), validators.UpdateModule(), controllers.AdminUpdateModule)
	adminGroup.Delete("/portal/:portal_id/module/:module_id", validators.ModuleParams(), controllers.AdminDeleteModule)

	// Lesson Management
	adminGroup.Post("/portal/:portal_id/module/:module_id/lesson", validators.ModuleParams(), validators.CreateLesson(), controllers.AdminCreateLesson)
	adminGroup.Get("/portal/:portal_id/module/:module_id/lessons", validators.ModuleParams(), controllers.AdminListLessons)
	adminGroup.Put("/portal/:portal_id/lessons/move", validators.PortalID(), validators.Move(), controllers.AdminMoveLesson)
	adminGroup.Put("/portal/:portal_id/lessons/order", validators.PortalID(), validators.Order(), controllers.AdminOrderLessons)
	adminGroup.Put("/portal/:portal_id/lesson/:lesson_id", validators.LessonParams(), validators.UpdateLesson(), controllers.AdminUpdateLesson)
	adminGroup.Delete("/portal/:portal_id/lesson/:lesson_id", validators.LessonParams(), controllers.AdminDeleteLesson)
	adminGroup.Post("/portal/:portal_id/lesson/:lesson_id/publish", validators.LessonParams(), validators.PublishLesson(), controllers.AdminPublishLesson)

	// Enrollment editor
	adminGroup.Get("/users/:user_id/enrollments", validators.UserID(), controllers.AdminGetEnrollments)
	adminGroup.Put("/users/:user_id/enrollments", validators.UserID(), validators.SaveEnrollments(), controllers.AdminSaveEnrollments)
}
