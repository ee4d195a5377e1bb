package entitlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	auditlog "github.com/fatflowers/entitlements/internal/app/service/auditlog"
	models "github.com/fatflowers/entitlements/internal/models"
	"github.com/fatflowers/entitlements/pkg/apperr"
	"github.com/fatflowers/entitlements/pkg/config"
	"github.com/fatflowers/entitlements/pkg/tool"
	types "github.com/fatflowers/entitlements/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Feature{},
		&models.Plan{},
		&models.PlanFeature{},
		&models.Subscription{},
		&models.UserFeatureOverride{},
		&models.AuditLog{},
	))
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	log := zap.NewNop().Sugar()
	return NewService(&config.Config{}, log, db, auditlog.NewService(log, db)), db
}

type fixture struct {
	userID   string
	planID   string
	features map[string]string // feature_key -> feature id
}

// seedPlanUser creates a user on a plan that grants planFeatures out of
// allFeatures by default.
func seedPlanUser(t *testing.T, db *gorm.DB, allFeatures, planFeatures []string, active bool) *fixture {
	t.Helper()
	f := &fixture{
		userID:   tool.GenerateUUIDV7(),
		planID:   tool.GenerateUUIDV7(),
		features: map[string]string{},
	}
	require.NoError(t, db.Create(&models.User{ID: f.userID, Email: f.userID + "@example.com", IsActive: active}).Error)
	require.NoError(t, db.Create(&models.Plan{ID: f.planID, Name: "pro"}).Error)
	for _, key := range allFeatures {
		id := tool.GenerateUUIDV7()
		f.features[key] = id
		require.NoError(t, db.Create(&models.Feature{ID: id, FeatureKey: key}).Error)
	}
	for _, key := range planFeatures {
		require.NoError(t, db.Create(&models.PlanFeature{PlanID: f.planID, FeatureID: f.features[key]}).Error)
	}
	require.NoError(t, db.Create(&models.Subscription{
		ID: tool.GenerateUUIDV7(), UserID: f.userID, PlanID: f.planID,
		Status: types.SubscriptionStatusActive,
	}).Error)
	return f
}

func findFeature(t *testing.T, view *EntitlementView, key string) *FeatureEntitlement {
	t.Helper()
	for _, fe := range view.Features {
		if fe.FeatureKey == key {
			return fe
		}
	}
	t.Fatalf("feature %s not in view", key)
	return nil
}

func TestResolve_Precedence(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	fx := seedPlanUser(t, db, []string{"call_forwarding", "voicemail", "sms"}, []string{"call_forwarding", "voicemail"}, true)

	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	// deny override on a plan-granted feature
	require.NoError(t, db.Create(&models.UserFeatureOverride{
		ID: tool.GenerateUUIDV7(), UserID: fx.userID, FeatureID: fx.features["call_forwarding"],
		HasAccess: false, Notes: "stamped already",
	}).Error)
	// grant override on a feature the plan lacks, not yet expired
	require.NoError(t, db.Create(&models.UserFeatureOverride{
		ID: tool.GenerateUUIDV7(), UserID: fx.userID, FeatureID: fx.features["sms"],
		HasAccess: true, ExpiresAt: &future, Notes: "stamped already",
	}).Error)

	view, err := svc.Resolve(ctx, fx.userID)
	require.NoError(t, err)
	require.Len(t, view.Features, 3)

	cf := findFeature(t, view, "call_forwarding")
	assert.True(t, cf.PlanDefault)
	require.NotNil(t, cf.Override)
	assert.False(t, *cf.Override)
	assert.False(t, cf.HasAccess, "deny override beats plan grant")

	sms := findFeature(t, view, "sms")
	assert.False(t, sms.PlanDefault)
	require.NotNil(t, sms.Override)
	assert.True(t, sms.HasAccess, "grant override beats plan denial")

	vm := findFeature(t, view, "voicemail")
	assert.Nil(t, vm.Override)
	assert.True(t, vm.HasAccess, "plan default applies without override")

	// expired override is inert: flip sms to expired
	require.NoError(t, db.Model(&models.UserFeatureOverride{}).
		Where("user_id = ? AND feature_id = ?", fx.userID, fx.features["sms"]).
		Update("expires_at", past).Error)
	view, err = svc.Resolve(ctx, fx.userID)
	require.NoError(t, err)
	sms = findFeature(t, view, "sms")
	assert.Nil(t, sms.Override)
	assert.False(t, sms.HasAccess, "expired override reverts to plan default")
}

func TestResolve_NoActiveSubscription(t *testing.T) {
	svc, db := newTestService(t)
	fx := seedPlanUser(t, db, []string{"voicemail"}, []string{"voicemail"}, true)
	require.NoError(t, db.Model(&models.Subscription{}).
		Where("user_id = ?", fx.userID).
		Update("status", types.SubscriptionStatusCanceled).Error)

	view, err := svc.Resolve(context.Background(), fx.userID)
	require.NoError(t, err)
	vm := findFeature(t, view, "voicemail")
	assert.False(t, vm.PlanDefault)
	assert.False(t, vm.HasAccess)
	assert.Empty(t, view.PlanID)
}

func TestResolve_UserNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Resolve(context.Background(), tool.GenerateUUIDV7())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestSetOverride_Validation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	fx := seedPlanUser(t, db, []string{"voicemail"}, nil, true)
	past := time.Now().Add(-time.Minute)

	tests := []struct {
		name string
		req  *SetOverrideRequest
		kind error
	}{
		{"short notes", &SetOverrideRequest{UserID: fx.userID, FeatureKey: "voicemail", Notes: "too short", Actor: "alice"}, apperr.ErrValidation},
		{"nine chars after trim", &SetOverrideRequest{UserID: fx.userID, FeatureKey: "voicemail", Notes: "  123456789  ", Actor: "alice"}, apperr.ErrValidation},
		{"missing actor", &SetOverrideRequest{UserID: fx.userID, FeatureKey: "voicemail", Notes: "a perfectly fine note"}, apperr.ErrValidation},
		{"past expiry", &SetOverrideRequest{UserID: fx.userID, FeatureKey: "voicemail", Notes: "a perfectly fine note", ExpiresAt: &past, Actor: "alice"}, apperr.ErrValidation},
		{"unknown feature", &SetOverrideRequest{UserID: fx.userID, FeatureKey: "nope", Notes: "a perfectly fine note", Actor: "alice"}, apperr.ErrNotFound},
		{"unknown user", &SetOverrideRequest{UserID: tool.GenerateUUIDV7(), FeatureKey: "voicemail", Notes: "a perfectly fine note", Actor: "alice"}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetOverride(ctx, tt.req)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}

	// exactly ten characters passes the floor
	_, err := svc.SetOverride(ctx, &SetOverrideRequest{
		UserID: fx.userID, FeatureKey: "voicemail", HasAccess: true,
		Notes: "1234567890", Actor: "alice",
	})
	assert.NoError(t, err)
}

func TestSetOverride_RejectsInactiveUser(t *testing.T) {
	svc, db := newTestService(t)
	fx := seedPlanUser(t, db, []string{"voicemail"}, nil, false)

	// the inactive flag must round-trip as false; a gorm default tag on
	// the column would coerce the zero value back to true on insert
	var u models.User
	require.NoError(t, db.Where("id = ?", fx.userID).First(&u).Error)
	require.False(t, u.IsActive)

	_, err := svc.SetOverride(context.Background(), &SetOverrideRequest{
		UserID: fx.userID, FeatureKey: "voicemail", HasAccess: true,
		Notes: "a perfectly fine note", Actor: "alice",
	})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestSetOverride_UpsertIdempotence(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	fx := seedPlanUser(t, db, []string{"voicemail"}, nil, true)

	first, err := svc.SetOverride(ctx, &SetOverrideRequest{
		UserID: fx.userID, FeatureKey: "voicemail", HasAccess: true,
		Notes: "initial grant for beta test", Actor: "alice",
	})
	require.NoError(t, err)

	second, err := svc.SetOverride(ctx, &SetOverrideRequest{
		UserID: fx.userID, FeatureKey: "voicemail", HasAccess: false,
		Notes: "revoked after beta wrap-up", Actor: "bob",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var rows []*models.UserFeatureOverride
	require.NoError(t, db.Where("user_id = ?", fx.userID).Find(&rows).Error)
	require.Len(t, rows, 1, "second call must update, never insert")
	assert.False(t, rows[0].HasAccess)
	assert.True(t, strings.HasPrefix(rows[0].Notes, "[ADMIN: bob @ "), "notes are stamped: %s", rows[0].Notes)
	assert.Contains(t, rows[0].Notes, "revoked after beta wrap-up")
}

func TestSetOverride_WritesAuditLog(t *testing.T) {
	svc, db := newTestService(t)
	fx := seedPlanUser(t, db, []string{"voicemail"}, nil, true)

	_, err := svc.SetOverride(context.Background(), &SetOverrideRequest{
		UserID: fx.userID, FeatureKey: "voicemail", HasAccess: true,
		Notes: "initial grant for beta test", Actor: "alice",
	})
	require.NoError(t, err)

	var logs []*models.AuditLog
	require.NoError(t, db.Where("action = ?", auditlog.ActionOverrideSet).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "alice", logs[0].ActorID)
	assert.Equal(t, fx.userID+":voicemail", logs[0].TargetID)
}

func TestDeleteOverride_Idempotent(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	fx := seedPlanUser(t, db, []string{"voicemail"}, nil, true)

	// deleting a nonexistent override succeeds
	err := svc.DeleteOverride(ctx, fx.userID, "voicemail", "alice", "cleanup of stale override")
	require.NoError(t, err)

	// and still records the attempt with prior state none
	var logs []*models.AuditLog
	require.NoError(t, db.Where("action = ?", auditlog.ActionOverrideDelete).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "none", logs[0].Metadata["prior_state"])

	// now with a real override present
	_, err = svc.SetOverride(ctx, &SetOverrideRequest{
		UserID: fx.userID, FeatureKey: "voicemail", HasAccess: true,
		Notes: "initial grant for beta test", Actor: "alice",
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteOverride(ctx, fx.userID, "voicemail", "alice", "beta test has concluded"))

	var count int64
	require.NoError(t, db.Model(&models.UserFeatureOverride{}).Where("user_id = ?", fx.userID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeleteOverride_SucceedsWhenAuditUnavailable(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	fx := seedPlanUser(t, db, []string{"voicemail"}, nil, true)

	_, err := svc.SetOverride(ctx, &SetOverrideRequest{
		UserID: fx.userID, FeatureKey: "voicemail", HasAccess: true,
		Notes: "initial grant for beta test", Actor: "alice",
	})
	require.NoError(t, err)

	// break the audit insert; the savepoint around it must absorb the
	// failure so the delete itself still commits
	require.NoError(t, db.Migrator().DropTable(&models.AuditLog{}))

	require.NoError(t, svc.DeleteOverride(ctx, fx.userID, "voicemail", "alice", "beta test has concluded"))

	var count int64
	require.NoError(t, db.Model(&models.UserFeatureOverride{}).Where("user_id = ?", fx.userID).Count(&count).Error)
	assert.Zero(t, count, "delete committed despite the audit failure")
}

func TestDeleteOverride_ReasonFloor(t *testing.T) {
	svc, db := newTestService(t)
	fx := seedPlanUser(t, db, []string{"voicemail"}, nil, true)

	err := svc.DeleteOverride(context.Background(), fx.userID, "voicemail", "alice", "short")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestGrantThenExpire(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	fx := seedPlanUser(t, db, []string{"sms"}, nil, true)

	expiry := time.Now().Add(60 * time.Millisecond)
	_, err := svc.SetOverride(ctx, &SetOverrideRequest{
		UserID: fx.userID, FeatureKey: "sms", HasAccess: true,
		ExpiresAt: &expiry, Notes: "one-minute emergency unlock", Actor: "alice",
	})
	require.NoError(t, err)

	view, err := svc.Resolve(ctx, fx.userID)
	require.NoError(t, err)
	assert.True(t, findFeature(t, view, "sms").HasAccess)

	time.Sleep(120 * time.Millisecond)

	view, err = svc.Resolve(ctx, fx.userID)
	require.NoError(t, err)
	sms := findFeature(t, view, "sms")
	assert.False(t, sms.HasAccess, "expired override reverts to plan default")
	assert.Nil(t, sms.Override)

	// the row itself is still there, only inert
	rows, err := svc.ListOverrides(ctx, fx.userID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
