package auditlog

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	models "github.com/fatflowers/entitlements/internal/models"

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
	require.NoError(t, db.AutoMigrate(&models.AuditLog{}))
	return db
}

func TestRecordAndList(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(zap.NewNop().Sugar(), db)
	ctx := context.Background()

	entries := []*Entry{
		{Actor: "alice", Action: ActionOverrideSet, TargetType: TargetFeatureOverride, TargetID: "u1:sms", Metadata: map[string]any{"has_access": true}},
		{Actor: "alice", Action: ActionCreditAdjust, TargetType: TargetCreditTransaction, TargetID: "tx1", Metadata: map[string]any{"amount": 100}},
		{Actor: "bob", Action: ActionOverrideDelete, TargetType: TargetFeatureOverride, TargetID: "u1:sms", Metadata: map[string]any{"prior_state": "none"}},
	}
	for _, e := range entries {
		require.NoError(t, svc.Record(ctx, db, e))
	}

	rows, err := svc.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = svc.List(ctx, &ListRequest{Actor: "alice"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = svc.List(ctx, &ListRequest{Action: ActionOverrideDelete})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "bob", rows[0].ActorID)
	assert.Equal(t, "none", rows[0].Metadata["prior_state"])

	rows, err = svc.List(ctx, &ListRequest{TargetType: TargetFeatureOverride, TargetID: "u1:sms"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestList_TimeWindowAndLimit(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(zap.NewNop().Sugar(), db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Record(ctx, db, &Entry{
			Actor: "alice", Action: ActionCreditAdjust,
			TargetType: TargetCreditTransaction, TargetID: fmt.Sprintf("tx%d", i),
		}))
	}

	rows, err := svc.List(ctx, &ListRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	future := time.Now().Add(time.Hour)
	rows, err = svc.List(ctx, &ListRequest{StartAt: &future})
	require.NoError(t, err)
	assert.Empty(t, rows)

	past := time.Now().Add(-time.Hour)
	rows, err = svc.List(ctx, &ListRequest{StartAt: &past, EndAt: &future})
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestRecord_NilEntry(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(zap.NewNop().Sugar(), db)
	assert.Error(t, svc.Record(context.Background(), db, nil))
}

func TestRecord_RollsBackWithCallerTransaction(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(zap.NewNop().Sugar(), db)
	ctx := context.Background()

	sentinel := fmt.Errorf("abort")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Record(ctx, tx, &Entry{Actor: "alice", Action: ActionOverrideSet, TargetType: TargetFeatureOverride, TargetID: "u1:sms"}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count, "audit record commits or rolls back with the mutation")
}
