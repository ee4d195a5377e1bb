package models

import "time"

// UserFeatureOverride is a per-user exception to plan-default feature
// access, optionally time-limited. At most one row exists per
// (user_id, feature_id) pair; writes go through the entitlement service
// which upserts against the unique index.
type UserFeatureOverride struct {
	ID        string `gorm:"column:id;primary_key;type:uuid" json:"id"`
	UserID    string `gorm:"column:user_id;type:uuid;not null;uniqueIndex:unique_user_id_feature_id,priority:1" json:"user_id"`
	FeatureID string `gorm:"column:feature_id;type:uuid;not null;uniqueIndex:unique_user_id_feature_id,priority:2" json:"feature_id"`
	HasAccess bool   `gorm:"column:has_access;not null" json:"has_access"`
	// ExpiresAt nil means the override never expires. A past ExpiresAt makes
	// the row inert at read time; it is not deleted by any sweep.
	ExpiresAt *time.Time `gorm:"column:expires_at;default:null" json:"expires_at"`
	Notes     string     `gorm:"column:notes;type:text;not null" json:"notes"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (UserFeatureOverride) TableName() string {
	return "user_feature_override"
}

// Expired reports whether the override is inert at the given time.
func (o *UserFeatureOverride) Expired(at time.Time) bool {
	if o == nil || o.ExpiresAt == nil {
		return false
	}
	return !o.ExpiresAt.After(at)
}
