package course

import (
	"coursehub/models"

	"gorm.io/datatypes"
)

var LessonContentTypes = map[string]bool{
	"video":    true,
	"text":     true,
	"quiz":     true,
	"file":     true,
	"pdf":      true,
	"external": true,
}

// Lesson belongs to one module. Settings holds free-form presentation data
// such as description, cover_image and attachments.
type Lesson struct {
	models.Model
	PortalID      uint              `json:"portal_id" gorm:"index;not null"`
	ModuleID      uint              `json:"module_id" gorm:"index;not null"`
	Title         string            `json:"title"`
	MediaURL      string            `json:"media_url"`
	ContentType   string            `json:"content_type" gorm:"default:'video'"`
	OrderIndex    int               `json:"order_index" gorm:"default:0"`
	IsFreePreview bool              `json:"is_free_preview" gorm:"default:false"`
	IsPublished   bool              `json:"is_published" gorm:"default:false"`
	Settings      datatypes.JSONMap `json:"settings"`
	IsDeleted     bool              `json:"is_deleted" gorm:"default:false"`
}
