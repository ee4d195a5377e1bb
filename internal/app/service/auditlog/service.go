package auditlog

import (
	"context"
	"time"

	models "github.com/fatflowers/entitlements/internal/models"
	"github.com/fatflowers/entitlements/pkg/apperr"
	"github.com/fatflowers/entitlements/pkg/tool"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actions recorded by the admin services.
const (
	ActionOverrideSet    = "feature_override.set"
	ActionOverrideDelete = "feature_override.delete"
	ActionCreditAdjust   = "credit.adjust"
)

// Target types recorded by the admin services.
const (
	TargetFeatureOverride   = "user_feature_override"
	TargetCreditTransaction = "credit_transaction"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Service struct {
	log *zap.SugaredLogger
	db  *gorm.DB
}

func NewService(log *zap.SugaredLogger, db *gorm.DB) *Service {
	return &Service{log: log, db: db}
}

// Entry is one audit record to append.
type Entry struct {
	Actor      string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

// Record appends an audit row using the caller's transaction handle so the
// record commits or rolls back together with the mutation it describes.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, entry *Entry) error {
	if entry == nil {
		return apperr.Validationf("nil audit entry")
	}
	row := &models.AuditLog{
		ID:         tool.GenerateUUIDV7(),
		ActorID:    entry.Actor,
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		Metadata:   datatypes.JSONMap(entry.Metadata),
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		return apperr.Persistencef("insert audit log: %v", err)
	}
	return nil
}

type ListRequest struct {
	Actor      string     `json:"actor"`
	Action     string     `json:"action"`
	TargetType string     `json:"target_type"`
	TargetID   string     `json:"target_id"`
	StartAt    *time.Time `json:"start_at"`
	EndAt      *time.Time `json:"end_at"`
	Limit      int        `json:"limit"`
	Offset     int        `json:"offset"`
}

// List returns audit rows newest first.
func (s *Service) List(ctx context.Context, req *ListRequest) ([]*models.AuditLog, error) {
	if req == nil {
		req = &ListRequest{}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	q := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if req.Actor != "" {
		q = q.Where("actor_id = ?", req.Actor)
	}
	if req.Action != "" {
		q = q.Where("action = ?", req.Action)
	}
	if req.TargetType != "" {
		q = q.Where("target_type = ?", req.TargetType)
	}
	if req.TargetID != "" {
		q = q.Where("target_id = ?", req.TargetID)
	}
	if req.StartAt != nil {
		q = q.Where("created_at >= ?", *req.StartAt)
	}
	if req.EndAt != nil {
		q = q.Where("created_at < ?", *req.EndAt)
	}

	var rows []*models.AuditLog
	if err := q.Order("created_at desc").Limit(limit).Offset(req.Offset).Find(&rows).Error; err != nil {
		return nil, apperr.Persistencef("list audit logs: %v", err)
	}
	return rows, nil
}
