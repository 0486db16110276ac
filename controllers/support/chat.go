package supportControllers

import (
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"coursehub/classroom"
	"coursehub/database"
	"coursehub/middleware"
	"coursehub/models"
	"coursehub/realtime"
	validators "coursehub/validators/support"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const previewLength = 100

// preview is the inbox line for a message.
func preview(msgType string, content []byte) string {
	if msgType != models.MessageText {
		return "[" + msgType + "]"
	}
	var text models.TextContent
	if err := json.Unmarshal(content, &text); err != nil {
		return ""
	}
	if utf8.RuneCountInString(text.Text) <= previewLength {
		return text.Text
	}
	return string([]rune(text.Text)[:previewLength]) + "..."
}

func senderRole(user models.User) string {
	if user.IsStaff() {
		return models.SenderStaff
	}
	return models.SenderStudent
}

// conversationOr404 loads :conversation_id. Students only reach their own conversations.
func conversationOr404(c *fiber.Ctx, user models.User) (models.Conversation, bool, error) {
	id := c.Locals("conversation_id").(uint)
	var conv models.Conversation
	if err := database.Database.Db.Where("id = ?", id).First(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conv, false, middleware.JsonResponse(c, fiber.StatusNotFound, false, "Conversation not found!", nil)
		}
		return conv, false, middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch conversation!", nil)
	}
	if !user.IsStaff() && conv.StudentID != user.ID {
		return conv, false, middleware.JsonResponse(c, fiber.StatusNotFound, false, "Conversation not found!", nil)
	}
	return conv, true, nil
}

// OpenConversation returns the student's open conversation for a portal, creating it when missing
func OpenConversation(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	if user.IsStaff() {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Only students can open conversations!", nil)
	}
	reqData := c.Locals("validatedOpenConversation").(*validators.OpenConversationRequest)
	db := database.Database.Db

	if _, err := classroom.LoadViewer(db, user, reqData.PortalID); err != nil {
		if errors.Is(err, classroom.ErrNotEnrolled) {
			return middleware.JsonResponse(c, fiber.StatusForbidden, false, "You are not enrolled in this portal!", nil)
		}
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to check enrollment!", nil)
	}

	var conv models.Conversation
	created := false
	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("portal_id = ? AND student_id = ? AND status = ?", reqData.PortalID, user.ID, models.ConversationOpen).
			First(&conv).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		conv = models.Conversation{PortalID: reqData.PortalID, StudentID: user.ID, Status: models.ConversationOpen}
		// a concurrent open may have won the unique index; fall back to its row
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&conv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			created = true
			return nil
		}
		return tx.Where("portal_id = ? AND student_id = ? AND status = ?", reqData.PortalID, user.ID, models.ConversationOpen).
			First(&conv).Error
	})
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to open conversation!", nil)
	}

	if created {
		realtime.Emit(realtime.TableConversations, realtime.Insert, conv)
		return middleware.JsonResponse(c, fiber.StatusCreated, true, "Conversation opened successfully!", conv)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Conversation fetched successfully!", conv)
}

// ListConversations is the staff inbox, or the student's own conversations
func ListConversations(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	reqData := c.Locals("validatedConversationList").(*validators.ConversationListRequest)

	db := database.Database.Db.Model(&models.Conversation{})
	if !user.IsStaff() {
		db = db.Where("student_id = ?", user.ID)
	}
	if reqData.PortalID != 0 {
		db = db.Where("portal_id = ?", reqData.PortalID)
	}
	if reqData.Status != "" {
		db = db.Where("status = ?", reqData.Status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch conversations!", nil)
	}

	var conversations []models.Conversation
	offset := (reqData.Page - 1) * reqData.Limit
	if err := db.Order("updated_at DESC, id DESC").Offset(offset).Limit(reqData.Limit).Find(&conversations).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch conversations!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Conversations fetched successfully!", fiber.Map{
		"conversations": conversations,
		"pagination": fiber.Map{
			"total": total,
			"page":  reqData.Page,
			"limit": reqData.Limit,
		},
	})
}

// ListMessages returns the whole thread, oldest first
func ListMessages(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	conv, ok, err := conversationOr404(c, user)
	if !ok {
		return err
	}

	var messages []models.Message
	if err := database.Database.Db.Where("conversation_id = ?", conv.ID).Order("created_at asc, id asc").Find(&messages).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch messages!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Messages fetched successfully!", fiber.Map{
		"conversation": conv,
		"messages":     messages,
	})
}

// SendMessage appends a message and bumps the other side's unread counter
func SendMessage(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	conv, ok, err := conversationOr404(c, user)
	if !ok {
		return err
	}
	if conv.Status == models.ConversationClosed {
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "Conversation is closed!", nil)
	}
	reqData := c.Locals("validatedMessage").(*validators.SendMessageRequest)

	msg := models.Message{
		ConversationID: conv.ID,
		SenderID:       user.ID,
		SenderRole:     senderRole(user),
		Type:           reqData.Type,
		Content:        datatypes.JSON(reqData.Content),
		Metadata:       datatypes.JSONMap(reqData.Metadata),
		ClientRef:      reqData.ClientRef,
	}
	if msg.Metadata == nil {
		msg.Metadata = datatypes.JSONMap{}
	}

	err = database.Database.Db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", conv.ID).First(&conv).Error; err != nil {
			return err
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		conv.LastMessageAt = &now
		conv.LastMessagePreview = preview(msg.Type, msg.Content)
		if msg.SenderRole == models.SenderStaff {
			conv.UnreadStudent++
		} else {
			conv.UnreadStaff++
		}
		return tx.Save(&conv).Error
	})
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to send message!", nil)
	}

	realtime.Emit(realtime.TableMessages, realtime.Insert, msg)
	realtime.Emit(realtime.TableConversations, realtime.Update, conv)

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Message sent successfully!", msg)
}

// MarkRead clears the caller's side of the unread counters
func MarkRead(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	conv, ok, err := conversationOr404(c, user)
	if !ok {
		return err
	}

	column := "unread_student"
	if user.IsStaff() {
		column = "unread_staff"
	}
	// reading does not reorder the inbox, so updated_at stays put
	if err := database.Database.Db.Model(&conv).UpdateColumn(column, 0).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to mark conversation as read!", nil)
	}
	if user.IsStaff() {
		conv.UnreadStaff = 0
	} else {
		conv.UnreadStudent = 0
	}
	realtime.Emit(realtime.TableConversations, realtime.Update, conv)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Conversation marked as read!", conv)
}

// CloseConversation is staff only. The student can open a new one afterwards.
func CloseConversation(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	conv, ok, err := conversationOr404(c, user)
	if !ok {
		return err
	}
	if !user.IsStaff() {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Only staff can close conversations!", nil)
	}
	if conv.Status == models.ConversationClosed {
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Conversation already closed!", conv)
	}

	if err := database.Database.Db.Model(&conv).Update("status", models.ConversationClosed).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to close conversation!", nil)
	}
	conv.Status = models.ConversationClosed
	realtime.Emit(realtime.TableConversations, realtime.Update, conv)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Conversation closed successfully!", conv)
}
