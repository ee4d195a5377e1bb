package models

import (
	"time"

	"github.com/fatflowers/entitlements/pkg/audit"
	"github.com/fatflowers/entitlements/pkg/types"

	"gorm.io/datatypes"
)

// CreditTransaction is an append-only ledger row. Rows are never updated
// or deleted; corrections are compensating transactions.
type CreditTransaction struct {
	ID              string                `gorm:"column:id;primary_key;type:uuid;index:idx_user_id_id,priority:2,sort:desc" json:"id"`
	UserID          string                `gorm:"column:user_id;type:uuid;not null;index:idx_user_id_id,priority:1" json:"user_id"`
	TransactionType types.TransactionType `gorm:"column:transaction_type;type:varchar(32);not null;index" json:"transaction_type"`
	// Amount is signed integer cents; grants positive, deductions negative.
	Amount int64 `gorm:"column:amount;type:bigint;not null" json:"amount"`
	// BalanceAfter snapshots total_balance immediately after this transaction.
	BalanceAfter int64  `gorm:"column:balance_after;type:bigint;not null" json:"balance_after"`
	Description  string `gorm:"column:description;type:text" json:"description"`
	// Metadata carries the structured audit payload built by pkg/audit.
	Metadata  datatypes.JSONType[*audit.TransactionMetadata] `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt time.Time                                      `json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transaction"
}
