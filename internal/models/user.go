package models

import (
	"gorm.io/gorm"
)

// User represents a user in the system
type User struct {
	ID       string `json:"id" gorm:"primaryKey"`
	Username string `json:"username" gorm:"unique;not null"`
	Password string `json:"-" gorm:"not null"`
	Role     string `json:"role" gorm:"not null;default:'viewer'"`
	gorm.Model
}

// TableName specifies the table name for User Model
func (User) TableName() string {
	return "users"
}

// ParsedRole returns the user's role as a Role, falling back to viewer for
// rows carrying an unknown role name.
func (u *User) ParsedRole() Role {
	if r, ok := ParseRole(u.Role); ok {
		return r
	}
	return RoleViewer
}
