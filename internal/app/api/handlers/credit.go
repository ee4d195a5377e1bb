package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fatflowers/entitlements/internal/app/service/credit"
	models "github.com/fatflowers/entitlements/internal/models"
	"github.com/fatflowers/entitlements/pkg/apperr"
	"github.com/fatflowers/entitlements/pkg/metrics"
	"github.com/fatflowers/entitlements/pkg/response"
	types "github.com/fatflowers/entitlements/pkg/types"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type AdjustBody struct {
	Amount          int64                 `json:"amount"`
	TransactionType types.TransactionType `json:"transaction_type"`
	Reason          string                `json:"reason"`
	Extra           map[string]any        `json:"extra"`
}

type PreviewBody struct {
	Amount int64 `json:"amount"`
}

type TransactionItem struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	TransactionType types.TransactionType `json:"transaction_type"`
	Amount          int64                 `json:"amount"`
	BalanceAfter    int64                 `json:"balance_after"`
	Description     string                `json:"description"`
	Metadata        any                   `json:"metadata"`
	CreatedAt       time.Time             `json:"created_at"`
}

func toTransactionItem(m *models.CreditTransaction) *TransactionItem {
	return &TransactionItem{
		ID:              m.ID,
		UserID:          m.UserID,
		TransactionType: m.TransactionType,
		Amount:          m.Amount,
		BalanceAfter:    m.BalanceAfter,
		Description:     m.Description,
		Metadata:        m.Metadata.Data(),
		CreatedAt:       m.CreatedAt,
	}
}

type ListTransactionsResult struct {
	Items []*TransactionItem `json:"items"`
	Total int64              `json:"total"`
}

// @Summary      Get Credit Balance (Admin)
// @Description  Returns the user's balance decomposed into funding buckets; zero if never adjusted.
// @Tags         Admin
// @Produce      json
// @Param        user_id  path  string  true  "User ID"
// @Success      200  {object}  response.APIResponse[models.CreditBalance]
// @Router       /admin/users/{user_id}/credit/balance [get]
func ApiGetBalance(svc *credit.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		balance, err := svc.GetBalance(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(balance))
	}
}

// @Summary      List Credit Transactions (Admin)
// @Description  Returns a user's ledger newest first with optional type filter.
// @Tags         Admin
// @Produce      json
// @Param        user_id  path   string  true   "User ID"
// @Param        limit    query  int     false  "Page size (max 100)"
// @Param        offset   query  int     false  "Offset"
// @Param        type     query  string  false  "Transaction type filter"
// @Success      200  {object}  response.APIResponse[ListTransactionsResult]
// @Router       /admin/users/{user_id}/credit/transactions [get]
func ApiListTransactions(svc *credit.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(c, apperr.Validationf("invalid limit"))
				return
			}
			limit = n
		}
		offset := 0
		if v := c.Query("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(c, apperr.Validationf("invalid offset"))
				return
			}
			offset = n
		}

		res, err := svc.ListTransactions(c.Request.Context(), &credit.ListTransactionsRequest{
			UserID: c.Param("user_id"),
			Limit:  limit,
			Offset: offset,
			Type:   types.TransactionType(c.Query("type")),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListTransactionsResult{
			Items: lo.Map(res.Items, func(m *models.CreditTransaction, _ int) *TransactionItem { return toTransactionItem(m) }),
			Total: res.Total,
		}))
	}
}

// @Summary      Scan Credit Transactions (Admin)
// @Description  Cross-user paginated and filterable transaction listing.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        body  body  credit.ScanTransactionsRequest  true  "Filters and pagination"
// @Success      200  {object}  response.APIResponse[ListTransactionsResult]
// @Router       /admin/credit/transactions/scan [post]
func ApiScanTransactions(svc *credit.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credit.ScanTransactionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, apperr.Validationf("invalid request body: %v", err))
			return
		}
		res, err := svc.ScanTransactions(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListTransactionsResult{
			Items: lo.Map(res.Items, func(m *models.CreditTransaction, _ int) *TransactionItem { return toTransactionItem(m) }),
			Total: res.Total,
		}))
	}
}

// @Summary      Preview Credit Adjustment (Admin)
// @Description  Computes the projected balance for a confirmation step. No mutation.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        user_id  path  string       true  "User ID"
// @Param        body     body  PreviewBody  true  "Adjustment amount in cents"
// @Success      200  {object}  response.APIResponse[credit.AdjustmentPreview]
// @Router       /admin/users/{user_id}/credit/preview [post]
func ApiPreviewAdjustment(svc *credit.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body PreviewBody
		if err := c.ShouldBindJSON(&body); err != nil {
			writeError(c, apperr.Validationf("invalid request body: %v", err))
			return
		}
		preview, err := svc.PreviewAdjustment(c.Request.Context(), c.Param("user_id"), body.Amount)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(preview))
	}
}

// @Summary      Adjust Credit Balance (Admin)
// @Description  Atomically appends a ledger transaction and updates the balance.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        user_id  path  string      true  "User ID"
// @Param        body     body  AdjustBody  true  "Adjustment parameters"
// @Success      200  {object}  response.APIResponse[TransactionItem]
// @Router       /admin/users/{user_id}/credit/adjust [post]
func ApiAdjust(svc *credit.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body AdjustBody
		if err := c.ShouldBindJSON(&body); err != nil {
			writeError(c, apperr.Validationf("invalid request body: %v", err))
			return
		}
		txn, err := svc.Adjust(c.Request.Context(), &credit.AdjustRequest{
			UserID:          c.Param("user_id"),
			Amount:          body.Amount,
			TransactionType: body.TransactionType,
			Reason:          body.Reason,
			Actor:           actorFrom(c),
			Extra:           body.Extra,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		metrics.ObserveAdjustment(string(txn.TransactionType))
		c.JSON(http.StatusOK, response.OKT(toTransactionItem(txn)))
	}
}

func RegisterCreditRoutes(r gin.IRouter, svc *credit.Service) {
	r.GET("/users/:user_id/credit/balance", ApiGetBalance(svc))
	r.GET("/users/:user_id/credit/transactions", ApiListTransactions(svc))
	r.POST("/users/:user_id/credit/preview", ApiPreviewAdjustment(svc))
	r.POST("/users/:user_id/credit/adjust", ApiAdjust(svc))
	r.POST("/credit/transactions/scan", ApiScanTransactions(svc))
}
