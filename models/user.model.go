package models

const (
	RoleAdmin   = "ADMIN"
	RoleStaff   = "STAFF"
	RoleStudent = "STUDENT"
)

// User is provisioned by the identity provider. The API only reads it.
type User struct {
	Model
	Name      string `json:"name" gorm:"default:''"`
	Email     string `json:"email" gorm:"unique;not null"`
	AvatarURL string `json:"avatar_url" gorm:"default:''"`
	Role      string `json:"role" gorm:"default:'STUDENT'"` // ADMIN, STAFF, STUDENT
	IsDeleted bool   `json:"is_deleted" gorm:"default:false"`
}

// IsStaff reports whether the user may moderate comments and answer chats.
func (u User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleStaff
}

// Profile is the public part of a user joined onto comments and messages.
type Profile struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Role      string `json:"role"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL, Role: u.Role}
}
