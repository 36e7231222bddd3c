package models

import (
	"gorm.io/gorm"
)

// RoomPolicy is the persisted access policy for a named room. Rows are
// managed by the admin panel; this service only reads them at startup.
// A room without a row is open: anyone may join, no subscriber ceiling.
type RoomPolicy struct {
	Room string `json:"room" gorm:"primaryKey"`
	// MinRole is the name of the minimum role required to subscribe.
	// Empty means the room is open to anonymous connections.
	MinRole string `json:"minRole" gorm:"column:min_role"`
	// MaxConnections caps simultaneous subscribers. Zero means unbounded.
	MaxConnections int `json:"maxConnections" gorm:"column:max_connections"`
	gorm.Model
}

// TableName specifies the table name for RoomPolicy Model
func (RoomPolicy) TableName() string {
	return "room_policies"
}
