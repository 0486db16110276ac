package course

import (
	"coursehub/models"

	"gorm.io/datatypes"
)

// Portal is one tenant course site.
type Portal struct {
	models.Model
	Name        string            `json:"name" gorm:"not null"`
	Slug        string            `json:"slug" gorm:"uniqueIndex;not null"`
	Description string            `json:"description"`
	OwnerID     uint              `json:"owner_id" gorm:"index"`
	Theme       datatypes.JSONMap `json:"theme"`
	IsActive    bool              `json:"is_active" gorm:"default:false"`
	IsDeleted   bool              `json:"is_deleted" gorm:"default:false"`
}
