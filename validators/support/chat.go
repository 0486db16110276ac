package supportValidators

import (
	"bytes"
	"encoding/json"
	"strings"

	"coursehub/middleware"
	"coursehub/models"
	"coursehub/validators"

	"github.com/gofiber/fiber/v2"
)

type OpenConversationRequest struct {
	PortalID uint `json:"portal_id" validate:"required"`
}

type SendMessageRequest struct {
	Type      string                 `json:"type" validate:"required,oneof=text image video file"`
	Content   json.RawMessage        `json:"content" validate:"required"`
	Metadata  map[string]interface{} `json:"metadata"`
	ClientRef string                 `json:"client_ref" validate:"max=64"`
}

type ConversationListRequest struct {
	PortalID uint   `query:"portal_id"`
	Status   string `query:"status" validate:"omitempty,oneof=open closed"`
	Page     int    `query:"page" validate:"gte=0"`
	Limit    int    `query:"limit" validate:"gte=0,max=100"`
}

func OpenConversation() fiber.Handler {
	return validators.Body[OpenConversationRequest]("validatedOpenConversation")
}

func SendMessage() fiber.Handler {
	return validators.Body("validatedMessage", func(r *SendMessageRequest) map[string]string {
		r.Type = strings.ToLower(strings.TrimSpace(r.Type))
		errors := make(map[string]string)
		if len(r.Content) == 0 {
			return errors
		}
		content, errs := ParseContent(r.Type, r.Content)
		if len(errs) > 0 {
			return errs
		}
		r.Content = content
		return errors
	})
}

// ParseContent checks content against the shape of messageType and returns
// it re-encoded without unknown keys.
func ParseContent(messageType string, raw json.RawMessage) (json.RawMessage, map[string]string) {
	var target interface{}
	switch messageType {
	case models.MessageText:
		target = &models.TextContent{}
	case models.MessageImage:
		target = &models.ImageContent{}
	case models.MessageVideo:
		target = &models.VideoContent{}
	case models.MessageFile:
		target = &models.FileContent{}
	default:
		return nil, map[string]string{"type": "type must be one of: text, image, video, file!"}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(target); err != nil {
		return nil, map[string]string{"content": "content does not match type " + messageType + "!"}
	}
	if t, ok := target.(*models.TextContent); ok {
		t.Text = strings.TrimSpace(t.Text)
	}
	errs := validators.Struct(target)
	if len(errs) > 0 {
		out := make(map[string]string, len(errs))
		for k, v := range errs {
			out["content."+k] = v
		}
		return nil, out
	}
	clean, err := json.Marshal(target)
	if err != nil {
		return nil, map[string]string{"content": "content is invalid!"}
	}
	return clean, nil
}

func ConversationList() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(ConversationListRequest)
		if err := c.QueryParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid query parameters!", nil)
		}
		if errs := validators.Struct(reqData); len(errs) > 0 {
			return middleware.ValidationErrorResponse(c, errs)
		}
		if reqData.Page < 1 {
			reqData.Page = 1
		}
		if reqData.Limit < 1 {
			reqData.Limit = 20
		}
		c.Locals("validatedConversationList", reqData)
		return c.Next()
	}
}

// ConversationID validates the :conversation_id route parameter.
func ConversationID() fiber.Handler {
	return validators.IDParams("conversation_id")
}
