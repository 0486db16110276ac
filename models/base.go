package models

import "time"

// Model replaces gorm.Model for rows that are published as change events:
// json keys match column names and removal is explicit (IsDeleted or a hard delete).
type Model struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
