package models

import (
	"time"

	"github.com/fatflowers/entitlements/pkg/types"
)

// Subscription is read-only Stripe-sourced input identifying which plan,
// if any, currently applies to a user.
type Subscription struct {
	ID        string                   `gorm:"column:id;primary_key;type:uuid" json:"id"`
	UserID    string                   `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	PlanID    string                   `gorm:"column:plan_id;type:uuid;not null" json:"plan_id"`
	Status    types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}
