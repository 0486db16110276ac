package supportRoutes

import (
	controller "coursehub/controllers/support"
	"coursehub/middleware"
	validator "coursehub/validators/support"

	"github.com/gofiber/fiber/v2"
)

func SetupChatRoutes(app *fiber.App) {
	chat := app.Group("/chat", middleware.JWTMiddleware, middleware.RequireRole())

	chat.Post("/conversations", validator.OpenConversation(), controller.OpenConversation)
	chat.Get("/conversations", validator.ConversationList(), controller.ListConversations)
	chat.Get("/conversations/:conversation_id/messages", validator.ConversationID(), controller.ListMessages)
	chat.Post("/conversations/:conversation_id/messages", validator.ConversationID(), validator.SendMessage(), controller.SendMessage)
	chat.Post("/conversations/:conversation_id/read", validator.ConversationID(), controller.MarkRead)
	chat.Post("/conversations/:conversation_id/close", validator.ConversationID(), controller.CloseConversation)
}
