package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog is a dedicated append-only record of admin mutations. The
// stamped notes on overrides and the metadata payload on transactions
// remain for inline readability, but this table is the queryable record.
type AuditLog struct {
	ID         string            `gorm:"column:id;primary_key;type:uuid" json:"id"`
	ActorID    string            `gorm:"column:actor_id;type:varchar(128);not null;index" json:"actor_id"`
	Action     string            `gorm:"column:action;type:varchar(64);not null;index" json:"action"`
	TargetType string            `gorm:"column:target_type;type:varchar(64);not null" json:"target_type"`
	TargetID   string            `gorm:"column:target_id;type:varchar(128);index" json:"target_id"`
	Metadata   datatypes.JSONMap `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}
