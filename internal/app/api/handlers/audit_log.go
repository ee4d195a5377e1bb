package handlers

import (
	"net/http"
	"strconv"
	"time"

	auditlog "github.com/fatflowers/entitlements/internal/app/service/auditlog"
	"github.com/fatflowers/entitlements/pkg/apperr"
	"github.com/fatflowers/entitlements/pkg/response"

	"github.com/gin-gonic/gin"
)

// @Summary      List Audit Logs (Admin)
// @Description  Returns audit records newest first, filterable by actor, action and target.
// @Tags         Admin
// @Produce      json
// @Param        actor        query  string  false  "Actor ID"
// @Param        action       query  string  false  "Action"
// @Param        target_type  query  string  false  "Target type"
// @Param        target_id    query  string  false  "Target ID"
// @Param        start_at     query  string  false  "RFC3339 lower bound (inclusive)"
// @Param        end_at       query  string  false  "RFC3339 upper bound (exclusive)"
// @Param        limit        query  int     false  "Page size (max 200)"
// @Param        offset       query  int     false  "Offset"
// @Success      200  {object}  response.APIResponse[[]models.AuditLog]
// @Router       /admin/audit-logs [get]
func ApiListAuditLogs(svc *auditlog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := &auditlog.ListRequest{
			Actor:      c.Query("actor"),
			Action:     c.Query("action"),
			TargetType: c.Query("target_type"),
			TargetID:   c.Query("target_id"),
		}
		for _, q := range []struct {
			key string
			dst **time.Time
		}{{"start_at", &req.StartAt}, {"end_at", &req.EndAt}} {
			if v := c.Query(q.key); v != "" {
				t, err := time.Parse(time.RFC3339, v)
				if err != nil {
					writeError(c, apperr.Validationf("invalid %s", q.key))
					return
				}
				*q.dst = &t
			}
		}
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(c, apperr.Validationf("invalid limit"))
				return
			}
			req.Limit = n
		}
		if v := c.Query("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(c, apperr.Validationf("invalid offset"))
				return
			}
			req.Offset = n
		}

		rows, err := svc.List(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

func RegisterAuditLogRoutes(r gin.IRouter, svc *auditlog.Service) {
	r.GET("/audit-logs", ApiListAuditLogs(svc))
}
