package types

import "github.com/samber/lo"

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
)

// CountsAsActive reports whether a subscription status selects the plan's
// feature set during entitlement resolution. Anything else yields an empty
// default feature set.
func (s SubscriptionStatus) CountsAsActive() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// ActiveSubscriptionStatuses lists the statuses CountsAsActive accepts,
// for IN queries. Derived from the method so the two cannot drift.
func ActiveSubscriptionStatuses() []SubscriptionStatus {
	all := []SubscriptionStatus{
		SubscriptionStatusActive,
		SubscriptionStatusTrialing,
		SubscriptionStatusCanceled,
		SubscriptionStatusPastDue,
	}
	return lo.Filter(all, func(s SubscriptionStatus, _ int) bool { return s.CountsAsActive() })
}
