package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ConversationOpen   = "open"
	ConversationClosed = "closed"

	SenderStudent = "student"
	SenderStaff   = "staff"

	MessageText  = "text"
	MessageImage = "image"
	MessageVideo = "video"
	MessageFile  = "file"
)

// Conversation is a support thread between one student and the staff of a portal.
// A student has at most one open conversation per portal, enforced by a partial unique index.
type Conversation struct {
	Model
	PortalID           uint       `json:"portal_id" gorm:"index;uniqueIndex:idx_open_conversation,where:status = 'open';not null"`
	StudentID          uint       `json:"student_id" gorm:"index;uniqueIndex:idx_open_conversation,where:status = 'open';not null"`
	Status             string     `json:"status" gorm:"default:'open'"`
	UnreadStudent      int        `json:"unread_student" gorm:"default:0"`
	UnreadStaff        int        `json:"unread_staff" gorm:"default:0"`
	LastMessageAt      *time.Time `json:"last_message_at"`
	LastMessagePreview string     `json:"last_message_preview" gorm:"default:''"`
}

// Message content is discriminated by Type:
//
//	text:  {"text": string}
//	image: {"url": string, "width"?: int, "height"?: int}
//	video: {"url": string, "duration_seconds"?: number}
//	file:  {"url": string, "name": string, "size_bytes"?: int}
type Message struct {
	Model
	ConversationID uint              `json:"conversation_id" gorm:"index;not null"`
	SenderID       uint              `json:"sender_id" gorm:"index;not null"`
	SenderRole     string            `json:"sender_role" gorm:"not null"`
	Type           string            `json:"type" gorm:"default:'text'"`
	Content        datatypes.JSON    `json:"content"`
	Metadata       datatypes.JSONMap `json:"metadata"`
	ClientRef      string            `json:"client_ref" gorm:"default:''"`
}

type TextContent struct {
	Text string `json:"text" validate:"required"`
}

type ImageContent struct {
	URL    string `json:"url" validate:"required,url"`
	Width  int    `json:"width,omitempty" validate:"gte=0"`
	Height int    `json:"height,omitempty" validate:"gte=0"`
}

type VideoContent struct {
	URL             string  `json:"url" validate:"required,url"`
	DurationSeconds float64 `json:"duration_seconds,omitempty" validate:"gte=0"`
}

type FileContent struct {
	URL       string `json:"url" validate:"required,url"`
	Name      string `json:"name" validate:"required"`
	SizeBytes int64  `json:"size_bytes,omitempty" validate:"gte=0"`
}
