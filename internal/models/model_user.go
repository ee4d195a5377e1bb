package models

import "time"

// User is read-only context for the admin services: existence and
// active-state checks only. Account management lives elsewhere.
type User struct {
	ID    string `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Email string `gorm:"column:email;type:varchar(255);not null;uniqueIndex" json:"email"`
	// No default tag here: gorm skips zero-valued fields that carry one
	// on Create, which would turn a persisted false into true.
	IsActive  bool      `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}
