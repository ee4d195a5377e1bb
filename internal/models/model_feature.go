package models

import "time"

// Feature is immutable reference data describing a toggleable capability.
type Feature struct {
	ID          string    `gorm:"column:id;primary_key;type:uuid" json:"id"`
	FeatureKey  string    `gorm:"column:feature_key;type:varchar(128);not null;uniqueIndex" json:"feature_key"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Feature) TableName() string {
	return "feature"
}
