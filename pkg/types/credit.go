package types

type TransactionType string

const (
	TransactionTypeGrantTrial        TransactionType = "grant_trial"
	TransactionTypeGrantSubscription TransactionType = "grant_subscription"
	TransactionTypeGrantCreditPack   TransactionType = "grant_credit_pack"
	TransactionTypeDeductUsage       TransactionType = "deduct_usage"
	TransactionTypeAdjustment        TransactionType = "adjustment"
	TransactionTypeRefund            TransactionType = "refund"
)

var transactionTypes = map[TransactionType]struct{}{
	TransactionTypeGrantTrial:        {},
	TransactionTypeGrantSubscription: {},
	TransactionTypeGrantCreditPack:   {},
	TransactionTypeDeductUsage:       {},
	TransactionTypeAdjustment:        {},
	TransactionTypeRefund:            {},
}

func (t TransactionType) Valid() bool {
	_, ok := transactionTypes[t]
	return ok
}

// CreditBucket names the four sub-balances that must always sum to the
// total balance.
type CreditBucket string

const (
	CreditBucketTrial        CreditBucket = "trial_credits"
	CreditBucketSubscription CreditBucket = "subscription_credits"
	CreditBucketCreditPack   CreditBucket = "credit_pack_credits"
	CreditBucketAdjustment   CreditBucket = "adjustment_credits"
)

// Bucket maps a transaction type to the sub-balance it posts to.
// deduct_usage posts to the adjustment bucket; there is no dedicated
// usage bucket in this schema.
func (t TransactionType) Bucket() CreditBucket {
	switch t {
	case TransactionTypeGrantTrial:
		return CreditBucketTrial
	case TransactionTypeGrantSubscription:
		return CreditBucketSubscription
	case TransactionTypeGrantCreditPack:
		return CreditBucketCreditPack
	default:
		return CreditBucketAdjustment
	}
}
