package communityRoutes

import (
	controller "coursehub/controllers/community"
	"coursehub/middleware"
	validator "coursehub/validators/community"

	"github.com/gofiber/fiber/v2"
)

func SetupCommentRoutes(app *fiber.App) {
	lessons := app.Group("/lessons", middleware.JWTMiddleware, middleware.RequireRole())
	lessons.Get("/:lesson_id/comments", validator.LessonID(), controller.ListComments)
	lessons.Post("/:lesson_id/comments", validator.LessonID(), validator.CreateComment(), controller.CreateComment)

	comments := app.Group("/comments", middleware.JWTMiddleware, middleware.RequireRole())
	comments.Put("/:comment_id", validator.CommentID(), validator.EditComment(), controller.EditComment)
	comments.Delete("/:comment_id", validator.CommentID(), controller.DeleteComment)
	comments.Post("/:comment_id/like", validator.CommentID(), controller.ToggleLike)
}
