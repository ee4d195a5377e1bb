package entitlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	auditlog "github.com/fatflowers/entitlements/internal/app/service/auditlog"
	models "github.com/fatflowers/entitlements/internal/models"
	"github.com/fatflowers/entitlements/pkg/apperr"
	"github.com/fatflowers/entitlements/pkg/audit"
	"github.com/fatflowers/entitlements/pkg/config"
	"github.com/fatflowers/entitlements/pkg/logctx"
	"github.com/fatflowers/entitlements/pkg/tool"
	types "github.com/fatflowers/entitlements/pkg/types"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MinNotesLength is the hard floor on override notes and deletion reasons.
// It is enforced here, not in the UI, so direct callers cannot skip it.
const MinNotesLength = 10

type Service struct {
	cfg   *config.Config
	log   *zap.SugaredLogger
	db    *gorm.DB
	audit *auditlog.Service
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, db *gorm.DB, audit *auditlog.Service) *Service {
	return &Service{cfg: cfg, log: log, db: db, audit: audit}
}

// FeatureEntitlement is the per-feature slice of a resolution result.
type FeatureEntitlement struct {
	FeatureKey  string `json:"feature_key"`
	Description string `json:"description"`
	// PlanDefault is the access the user's plan grants on its own.
	PlanDefault bool `json:"plan_default"`
	// Override is nil when no effective (non-expired) override exists.
	Override          *bool      `json:"override"`
	OverrideExpiresAt *time.Time `json:"override_expires_at,omitempty"`
	// HasAccess is the final decision: override wins when present,
	// otherwise the plan default applies.
	HasAccess bool `json:"has_access"`
}

// EntitlementView is the computed access picture for one user across every
// feature in the system.
type EntitlementView struct {
	UserID   string                `json:"user_id"`
	PlanID   string                `json:"plan_id,omitempty"`
	PlanName string                `json:"plan_name,omitempty"`
	Features []*FeatureEntitlement `json:"features"`
}

// Resolve computes effective access for every feature. Pure read.
func (s *Service) Resolve(ctx context.Context, userID string) (*EntitlementView, error) {
	db := s.db.WithContext(ctx)

	if _, err := s.getUser(db, userID); err != nil {
		return nil, err
	}

	var features []*models.Feature
	if err := db.Order("feature_key asc").Find(&features).Error; err != nil {
		return nil, apperr.Persistencef("load features: %v", err)
	}

	view := &EntitlementView{UserID: userID}

	planFeatureIDs := map[string]struct{}{}
	var sub models.Subscription
	err := db.Where("user_id = ? AND status IN ?", userID, types.ActiveSubscriptionStatuses()).
		Order("created_at desc").First(&sub).Error
	switch {
	case err == nil:
		var plan models.Plan
		if err := db.Where("id = ?", sub.PlanID).First(&plan).Error; err == nil {
			view.PlanID = plan.ID
			view.PlanName = plan.Name
		}
		var joins []*models.PlanFeature
		if err := db.Where("plan_id = ?", sub.PlanID).Find(&joins).Error; err != nil {
			return nil, apperr.Persistencef("load plan features: %v", err)
		}
		for _, j := range joins {
			planFeatureIDs[j.FeatureID] = struct{}{}
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// no active subscription: empty default feature set
	default:
		return nil, apperr.Persistencef("load subscription: %v", err)
	}

	var overrides []*models.UserFeatureOverride
	if err := db.Where("user_id = ?", userID).Find(&overrides).Error; err != nil {
		return nil, apperr.Persistencef("load overrides: %v", err)
	}
	overrideByFeature := lo.KeyBy(overrides, func(o *models.UserFeatureOverride) string { return o.FeatureID })

	now := time.Now()
	view.Features = lo.Map(features, func(f *models.Feature, _ int) *FeatureEntitlement {
		_, planDefault := planFeatureIDs[f.ID]
		fe := &FeatureEntitlement{
			FeatureKey:  f.FeatureKey,
			Description: f.Description,
			PlanDefault: planDefault,
			HasAccess:   planDefault,
		}
		if o, ok := overrideByFeature[f.ID]; ok && !o.Expired(now) {
			v := o.HasAccess
			fe.Override = &v
			fe.OverrideExpiresAt = o.ExpiresAt
			fe.HasAccess = v
		}
		return fe
	})

	return view, nil
}

type SetOverrideRequest struct {
	UserID     string     `json:"user_id"`
	FeatureKey string     `json:"feature_key"`
	HasAccess  bool       `json:"has_access"`
	ExpiresAt  *time.Time `json:"expires_at"`
	Notes      string     `json:"notes"`
	Actor      string     `json:"actor"`
}

// SetOverride creates or updates the single override row for the
// (user, feature) pair. The raw notes are stamped with the actor and
// timestamp before persistence.
func (s *Service) SetOverride(ctx context.Context, req *SetOverrideRequest) (*models.UserFeatureOverride, error) {
	if req == nil {
		return nil, apperr.Validationf("nil request")
	}
	if req.Actor == "" {
		return nil, apperr.Validationf("actor is required")
	}
	if len(strings.TrimSpace(req.Notes)) < MinNotesLength {
		return nil, apperr.Validationf("notes must be at least %d characters", MinNotesLength)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return nil, apperr.Validationf("expires_at must be in the future")
	}

	var result *models.UserFeatureOverride
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.getUser(tx, req.UserID)
		if err != nil {
			return err
		}
		if !user.IsActive {
			return apperr.Validationf("user %s is inactive", req.UserID)
		}

		feature, err := s.getFeatureByKey(tx, req.FeatureKey)
		if err != nil {
			return err
		}

		stamped := audit.StampNote(strings.TrimSpace(req.Notes), req.Actor)

		var existing models.UserFeatureOverride
		err = tx.Where("user_id = ? AND feature_id = ?", req.UserID, feature.ID).First(&existing).Error
		switch {
		case err == nil:
			existing.HasAccess = req.HasAccess
			existing.ExpiresAt = req.ExpiresAt
			existing.Notes = stamped
			// Select forces zero values through, so a has_access=false
			// overwrite is not silently dropped.
			if err := tx.Model(&existing).
				Select("has_access", "expires_at", "notes", "updated_at").
				Updates(&existing).Error; err != nil {
				return apperr.Persistencef("update override: %v", err)
			}
			result = &existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := &models.UserFeatureOverride{
				ID:        tool.GenerateUUIDV7(),
				UserID:    req.UserID,
				FeatureID: feature.ID,
				HasAccess: req.HasAccess,
				ExpiresAt: req.ExpiresAt,
				Notes:     stamped,
			}
			if err := tx.Create(row).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return apperr.Conflictf("override for user %s feature %s already exists", req.UserID, req.FeatureKey)
				}
				return apperr.Persistencef("create override: %v", err)
			}
			result = row
		default:
			return apperr.Persistencef("load override: %v", err)
		}

		return s.audit.Record(ctx, tx, &auditlog.Entry{
			Actor:      req.Actor,
			Action:     auditlog.ActionOverrideSet,
			TargetType: auditlog.TargetFeatureOverride,
			TargetID:   fmt.Sprintf("%s:%s", req.UserID, req.FeatureKey),
			Metadata: map[string]any{
				"has_access": req.HasAccess,
				"expires_at": req.ExpiresAt,
				"notes":      stamped,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("feature override set",
		"user_id", req.UserID, "feature_key", req.FeatureKey,
		"has_access", req.HasAccess, "actor", req.Actor)
	return result, nil
}

// DeleteOverride removes the override row, reverting the user to plan
// defaults for the feature. Deleting a missing override succeeds; the end
// state is already satisfied. The audit entry still records the attempt.
func (s *Service) DeleteOverride(ctx context.Context, userID, featureKey, actor, reason string) error {
	if actor == "" {
		return apperr.Validationf("actor is required")
	}
	if len(strings.TrimSpace(reason)) < MinNotesLength {
		return apperr.Validationf("reason must be at least %d characters", MinNotesLength)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.getUser(tx, userID); err != nil {
			return err
		}
		feature, err := s.getFeatureByKey(tx, featureKey)
		if err != nil {
			return err
		}

		var existing models.UserFeatureOverride
		priorState := "none"
		err = tx.Where("user_id = ? AND feature_id = ?", userID, feature.ID).First(&existing).Error
		switch {
		case err == nil:
			priorState = fmt.Sprintf("has_access=%t", existing.HasAccess)
			if err := tx.Delete(&models.UserFeatureOverride{}, "user_id = ? AND feature_id = ?", userID, feature.ID).Error; err != nil {
				return apperr.Persistencef("delete override: %v", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// idempotent: nothing to delete
		default:
			return apperr.Persistencef("load override: %v", err)
		}

		// A failed audit insert must not fail the deletion itself. The
		// nested transaction puts a savepoint around the insert; without
		// it Postgres aborts the whole transaction on the failed
		// statement and the commit turns into a rollback.
		if aerr := tx.Transaction(func(stx *gorm.DB) error {
			return s.audit.Record(ctx, stx, &auditlog.Entry{
				Actor:      actor,
				Action:     auditlog.ActionOverrideDelete,
				TargetType: auditlog.TargetFeatureOverride,
				TargetID:   fmt.Sprintf("%s:%s", userID, featureKey),
				Metadata: map[string]any{
					"reason":      audit.StampNote(strings.TrimSpace(reason), actor),
					"prior_state": priorState,
				},
			})
		}); aerr != nil {
			logctx.FromCtx(ctx, s.log).Warnw("audit record for override deletion failed",
				"user_id", userID, "feature_key", featureKey, "err", aerr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logctx.FromCtx(ctx, s.log).Infow("feature override deleted",
		"user_id", userID, "feature_key", featureKey, "actor", actor)
	return nil
}

// ListOverrides returns every current override row for the user, newest
// first. The stamped notes field carries the inline audit trail.
func (s *Service) ListOverrides(ctx context.Context, userID string) ([]*models.UserFeatureOverride, error) {
	if _, err := s.getUser(s.db.WithContext(ctx), userID); err != nil {
		return nil, err
	}
	var rows []*models.UserFeatureOverride
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at desc").Find(&rows).Error; err != nil {
		return nil, apperr.Persistencef("list overrides: %v", err)
	}
	return rows, nil
}

func (s *Service) getUser(tx *gorm.DB, userID string) (*models.User, error) {
	if userID == "" {
		return nil, apperr.Validationf("user_id is required")
	}
	var user models.User
	if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("user %s not found", userID)
		}
		return nil, apperr.Persistencef("load user: %v", err)
	}
	return &user, nil
}

func (s *Service) getFeatureByKey(tx *gorm.DB, featureKey string) (*models.Feature, error) {
	if featureKey == "" {
		return nil, apperr.Validationf("feature_key is required")
	}
	var feature models.Feature
	if err := tx.Where("feature_key = ?", featureKey).First(&feature).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("feature %s not found", featureKey)
		}
		return nil, apperr.Persistencef("load feature: %v", err)
	}
	return &feature, nil
}
