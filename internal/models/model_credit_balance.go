package models

import "time"

// CreditBalance is the per-user running balance decomposed into funding
// buckets. All amounts are integer cents. Invariant: TotalBalance equals
// the sum of the four bucket columns after every committed mutation.
// Rows are created lazily on first adjustment and only ever updated
// inside the same transaction that appends a CreditTransaction.
type CreditBalance struct {
	UserID              string    `gorm:"column:user_id;primary_key;type:uuid" json:"user_id"`
	TotalBalance        int64     `gorm:"column:total_balance;type:bigint;not null;default:0" json:"total_balance"`
	TrialCredits        int64     `gorm:"column:trial_credits;type:bigint;not null;default:0" json:"trial_credits"`
	SubscriptionCredits int64     `gorm:"column:subscription_credits;type:bigint;not null;default:0" json:"subscription_credits"`
	CreditPackCredits   int64     `gorm:"column:credit_pack_credits;type:bigint;not null;default:0" json:"credit_pack_credits"`
	AdjustmentCredits   int64     `gorm:"column:adjustment_credits;type:bigint;not null;default:0" json:"adjustment_credits"`
	LastUpdated         time.Time `gorm:"column:last_updated" json:"last_updated"`
}

func (CreditBalance) TableName() string {
	return "credit_balance"
}

// BucketSum returns the sum of the four bucket columns.
func (b *CreditBalance) BucketSum() int64 {
	return b.TrialCredits + b.SubscriptionCredits + b.CreditPackCredits + b.AdjustmentCredits
}
