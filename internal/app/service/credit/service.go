package credit

import (
	"context"
	"errors"
	"time"

	auditlog "github.com/fatflowers/entitlements/internal/app/service/auditlog"
	models "github.com/fatflowers/entitlements/internal/models"
	"github.com/fatflowers/entitlements/pkg/apperr"
	"github.com/fatflowers/entitlements/pkg/audit"
	"github.com/fatflowers/entitlements/pkg/config"
	"github.com/fatflowers/entitlements/pkg/logctx"
	"github.com/fatflowers/entitlements/pkg/tool"
	types "github.com/fatflowers/entitlements/pkg/types"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// defaultMaxAdjustmentAmount is 10,000 currency units in cents,
	// overridable via credit.max_adjustment_amount.
	defaultMaxAdjustmentAmount int64 = 1_000_000

	defaultTransactionLimit = 20
	maxTransactionLimit     = 100
)

type Service struct {
	cfg   *config.Config
	log   *zap.SugaredLogger
	db    *gorm.DB
	audit *auditlog.Service
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, db *gorm.DB, audit *auditlog.Service) *Service {
	return &Service{cfg: cfg, log: log, db: db, audit: audit}
}

// GetBalance returns the user's balance row, or a zero-valued balance if
// none exists yet. The zero balance is not persisted until the first
// adjustment.
func (s *Service) GetBalance(ctx context.Context, userID string) (*models.CreditBalance, error) {
	if err := s.checkUserExists(ctx, userID); err != nil {
		return nil, err
	}
	var balance models.CreditBalance
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&balance).Error
	switch {
	case err == nil:
		return &balance, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &models.CreditBalance{UserID: userID}, nil
	default:
		return nil, apperr.Persistencef("load balance: %v", err)
	}
}

type ListTransactionsRequest struct {
	UserID string                `json:"user_id"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
	Type   types.TransactionType `json:"type"`
}

type ListTransactionsResponse struct {
	Items []*models.CreditTransaction `json:"items"`
	Total int64                       `json:"total"`
}

// ListTransactions returns a user's ledger newest first. The limit is
// capped to keep result sets bounded.
func (s *Service) ListTransactions(ctx context.Context, req *ListTransactionsRequest) (*ListTransactionsResponse, error) {
	if req == nil {
		return nil, apperr.Validationf("nil request")
	}
	if err := s.checkUserExists(ctx, req.UserID); err != nil {
		return nil, err
	}
	if req.Type != "" && !req.Type.Valid() {
		return nil, apperr.Validationf("unknown transaction type %q", req.Type)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	if limit > maxTransactionLimit {
		limit = maxTransactionLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	q := s.db.WithContext(ctx).Model(&models.CreditTransaction{}).Where("user_id = ?", req.UserID)
	if req.Type != "" {
		q = q.Where("transaction_type = ?", req.Type)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, apperr.Persistencef("count transactions: %v", err)
	}

	var rows []*models.CreditTransaction
	if err := q.Order("created_at desc, id desc").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, apperr.Persistencef("list transactions: %v", err)
	}
	return &ListTransactionsResponse{Items: rows, Total: total}, nil
}

type ScanTransactionsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanTransactionsResponse struct {
	Items []*models.CreditTransaction `json:"items"`
	Total int64                       `json:"total"`
}

// filtersAnd combines multiple CommonFilter into one clause.Expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// ScanTransactions is the cross-user admin listing with arbitrary filters,
// used by the transaction browsing pages.
func (s *Service) ScanTransactions(ctx context.Context, req *ScanTransactionsRequest) (*ScanTransactionsResponse, error) {
	if req == nil {
		return nil, apperr.Validationf("nil request")
	}
	if req.Size <= 0 {
		req.Size = defaultTransactionLimit
	}
	if req.Size > maxTransactionLimit {
		req.Size = maxTransactionLimit
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.CreditTransaction{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, apperr.Persistencef("count transactions: %v", err)
	}

	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if req.SortBy == "" {
		req.SortBy = "created_at"
	}
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})

	var rows []*models.CreditTransaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperr.Persistencef("list transactions: %v", err)
	}
	return &ScanTransactionsResponse{Items: rows, Total: total}, nil
}

// AdjustmentPreview shows what a balance would become without mutating it.
type AdjustmentPreview struct {
	UserID           string `json:"user_id"`
	CurrentBalance   int64  `json:"current_balance"`
	AdjustmentAmount int64  `json:"adjustment_amount"`
	ProjectedBalance int64  `json:"projected_balance"`
	// WouldGoNegative flags a projected debt state for the confirmation
	// step; the ledger itself does not block negative totals.
	WouldGoNegative bool `json:"would_go_negative"`
}

// PreviewAdjustment computes the projected balance. Pure read.
func (s *Service) PreviewAdjustment(ctx context.Context, userID string, amount int64) (*AdjustmentPreview, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	projected := balance.TotalBalance + amount
	return &AdjustmentPreview{
		UserID:           userID,
		CurrentBalance:   balance.TotalBalance,
		AdjustmentAmount: amount,
		ProjectedBalance: projected,
		WouldGoNegative:  projected < 0,
	}, nil
}

type AdjustRequest struct {
	UserID          string                `json:"user_id"`
	Amount          int64                 `json:"amount"`
	TransactionType types.TransactionType `json:"transaction_type"`
	Reason          string                `json:"reason"`
	Actor           string                `json:"actor"`
	// Extra is merged into the transaction's audit metadata payload.
	Extra map[string]any `json:"extra,omitempty"`
}

// Adjust appends a signed transaction and updates the balance in one
// database transaction. The balance row is created lazily on first use;
// its primary key on user_id keeps concurrent first adjustments from
// racing into duplicate rows. Negative resulting totals are permitted.
func (s *Service) Adjust(ctx context.Context, req *AdjustRequest) (*models.CreditTransaction, error) {
	if req == nil {
		return nil, apperr.Validationf("nil request")
	}
	if req.Actor == "" {
		return nil, apperr.Validationf("actor is required")
	}
	if !req.TransactionType.Valid() {
		return nil, apperr.Validationf("unknown transaction type %q", req.TransactionType)
	}
	if err := s.ValidateAdjustment(req.Amount, req.Reason); err != nil {
		return nil, err
	}
	if err := s.checkUserExists(ctx, req.UserID); err != nil {
		return nil, err
	}

	var txn *models.CreditTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := s.fetchOrCreateBalance(tx, req.UserID)
		if err != nil {
			return err
		}

		newTotal := balance.TotalBalance + req.Amount
		bucket := req.TransactionType.Bucket()
		now := time.Now()

		updates := map[string]any{
			"total_balance": newTotal,
			"last_updated":  now,
			string(bucket):  bucketValue(balance, bucket) + req.Amount,
		}
		// The total_balance guard turns a concurrent adjustment into a
		// conflict instead of silently losing one of the writes.
		res := tx.Model(&models.CreditBalance{}).
			Where("user_id = ? AND total_balance = ?", req.UserID, balance.TotalBalance).
			Updates(updates)
		if res.Error != nil {
			return apperr.Persistencef("update balance: %v", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Conflictf("balance for user %s changed concurrently", req.UserID)
		}

		meta := audit.BuildTransactionMetadata(req.Actor, req.Reason, string(req.TransactionType), req.Extra)
		txn = &models.CreditTransaction{
			ID:              tool.GenerateUUIDV7(),
			UserID:          req.UserID,
			TransactionType: req.TransactionType,
			Amount:          req.Amount,
			BalanceAfter:    newTotal,
			Description:     req.Reason,
			Metadata:        datatypes.NewJSONType(meta),
		}
		if err := tx.Create(txn).Error; err != nil {
			return apperr.Persistencef("insert transaction: %v", err)
		}

		return s.audit.Record(ctx, tx, &auditlog.Entry{
			Actor:      req.Actor,
			Action:     auditlog.ActionCreditAdjust,
			TargetType: auditlog.TargetCreditTransaction,
			TargetID:   txn.ID,
			Metadata: map[string]any{
				"user_id":          req.UserID,
				"amount":           req.Amount,
				"transaction_type": string(req.TransactionType),
				"balance_after":    newTotal,
				"reason":           req.Reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("credit adjusted",
		"user_id", req.UserID, "amount", req.Amount,
		"transaction_type", req.TransactionType,
		"balance_after", txn.BalanceAfter, "actor", req.Actor)
	return txn, nil
}

// fetchOrCreateBalance loads the balance row inside the caller's
// transaction, creating the zero row on first use. A duplicate-key error
// from a concurrent first adjustment surfaces as a retryable conflict.
func (s *Service) fetchOrCreateBalance(tx *gorm.DB, userID string) (*models.CreditBalance, error) {
	var balance models.CreditBalance
	err := tx.Where("user_id = ?", userID).First(&balance).Error
	switch {
	case err == nil:
		return &balance, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		balance = models.CreditBalance{UserID: userID, LastUpdated: time.Now()}
		if cerr := tx.Create(&balance).Error; cerr != nil {
			if errors.Is(cerr, gorm.ErrDuplicatedKey) {
				return nil, apperr.Conflictf("balance for user %s created concurrently", userID)
			}
			return nil, apperr.Persistencef("create balance: %v", cerr)
		}
		return &balance, nil
	default:
		return nil, apperr.Persistencef("load balance: %v", err)
	}
}

func bucketValue(b *models.CreditBalance, bucket types.CreditBucket) int64 {
	switch bucket {
	case types.CreditBucketTrial:
		return b.TrialCredits
	case types.CreditBucketSubscription:
		return b.SubscriptionCredits
	case types.CreditBucketCreditPack:
		return b.CreditPackCredits
	default:
		return b.AdjustmentCredits
	}
}

func (s *Service) checkUserExists(ctx context.Context, userID string) error {
	if userID == "" {
		return apperr.Validationf("user_id is required")
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return apperr.Persistencef("load user: %v", err)
	}
	if count == 0 {
		return apperr.NotFoundf("user %s not found", userID)
	}
	return nil
}
