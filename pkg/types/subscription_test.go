package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionStatus_CountsAsActive(t *testing.T) {
	assert.True(t, SubscriptionStatusActive.CountsAsActive())
	assert.True(t, SubscriptionStatusTrialing.CountsAsActive())
	assert.False(t, SubscriptionStatusCanceled.CountsAsActive())
	assert.False(t, SubscriptionStatusPastDue.CountsAsActive())
}

func TestActiveSubscriptionStatuses_MatchesMethod(t *testing.T) {
	statuses := ActiveSubscriptionStatuses()
	assert.ElementsMatch(t,
		[]SubscriptionStatus{SubscriptionStatusActive, SubscriptionStatusTrialing},
		statuses)
	for _, s := range statuses {
		assert.True(t, s.CountsAsActive())
	}
}
