package models

import "time"

// Plan is a subscription tier granting a default feature set.
type Plan struct {
	ID            string    `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Name          string    `gorm:"column:name;type:varchar(128);not null" json:"name"`
	StripePriceID string    `gorm:"column:stripe_price_id;type:varchar(128)" json:"stripe_price_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Plan) TableName() string {
	return "plan"
}

// PlanFeature joins plans to the features they grant by default.
type PlanFeature struct {
	PlanID    string `gorm:"column:plan_id;type:uuid;not null;uniqueIndex:unique_plan_id_feature_id,priority:1" json:"plan_id"`
	FeatureID string `gorm:"column:feature_id;type:uuid;not null;uniqueIndex:unique_plan_id_feature_id,priority:2" json:"feature_id"`
}

func (PlanFeature) TableName() string {
	return "plan_feature"
}
