package course

import (
	"coursehub/models"

	"gorm.io/datatypes"
)

// Enrollment grants a user access to a portal, either fully or to an explicit
// module allow-list. FullAccess never comes with module ids.
type Enrollment struct {
	models.Model
	UserID     uint                      `json:"user_id" gorm:"uniqueIndex:idx_enrollment_user_portal;not null"`
	PortalID   uint                      `json:"portal_id" gorm:"uniqueIndex:idx_enrollment_user_portal;not null"`
	FullAccess bool                      `json:"full_access" gorm:"default:false"`
	ModuleIDs  datatypes.JSONSlice[uint] `json:"module_ids"`
}

// Allows reports whether the enrollment grants moduleID.
func (e Enrollment) Allows(moduleID uint) bool {
	if e.FullAccess {
		return true
	}
	for _, id := range e.ModuleIDs {
		if id == moduleID {
			return true
		}
	}
	return false
}
