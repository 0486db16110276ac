package course

import (
	"time"

	"coursehub/models"
)

// Module is a node of a portal's outline. ParentID nil means a root module.
type Module struct {
	models.Model
	PortalID         uint       `json:"portal_id" gorm:"index;not null"`
	ParentID         *uint      `json:"parent_id" gorm:"index"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	OrderIndex       int        `json:"order_index" gorm:"default:0"`
	IsActive         bool       `json:"is_active" gorm:"default:false"`
	ReleaseAt        *time.Time `json:"release_at"`
	ReleaseAfterDays int        `json:"release_after_days" gorm:"default:0"` // days after enrollment
	IsDeleted        bool       `json:"is_deleted" gorm:"default:false"`
}

// Released reports whether the module is visible at t for an enrollment created at enrolledAt.
func (m Module) Released(t, enrolledAt time.Time) bool {
	if m.ReleaseAt != nil && t.Before(*m.ReleaseAt) {
		return false
	}
	if m.ReleaseAfterDays > 0 && t.Before(DripDay(enrolledAt, m.ReleaseAfterDays)) {
		return false
	}
	return true
}
