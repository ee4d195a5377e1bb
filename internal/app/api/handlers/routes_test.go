package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fatflowers/entitlements/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAdminRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/v1/admin")
	RegisterEntitlementRoutes(g, nil)
	RegisterCreditRoutes(g, nil)
	RegisterAuditLogRoutes(g, nil)

	routes := r.Routes()
	contains := func(target string) bool {
		for _, rt := range routes {
			if rt.Method+" "+rt.Path == target {
				return true
			}
		}
		return false
	}

	require.True(t, contains("GET /api/v1/admin/users/:user_id/entitlements"))
	require.True(t, contains("GET /api/v1/admin/users/:user_id/entitlements/overrides"))
	require.True(t, contains("PUT /api/v1/admin/users/:user_id/entitlements/:feature_key"))
	require.True(t, contains("DELETE /api/v1/admin/users/:user_id/entitlements/:feature_key"))
	require.True(t, contains("GET /api/v1/admin/users/:user_id/credit/balance"))
	require.True(t, contains("GET /api/v1/admin/users/:user_id/credit/transactions"))
	require.True(t, contains("POST /api/v1/admin/users/:user_id/credit/preview"))
	require.True(t, contains("POST /api/v1/admin/users/:user_id/credit/adjust"))
	require.True(t, contains("POST /api/v1/admin/credit/transactions/scan"))
	require.True(t, contains("GET /api/v1/admin/audit-logs"))
}

func TestWriteError_Mapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"validation", apperr.Validationf("notes too short"), `"code":40000`},
		{"not found", apperr.NotFoundf("user u1 not found"), `"code":40400`},
		{"conflict", apperr.Conflictf("balance changed"), `"code":40900`},
		{"persistence", apperr.Persistencef("db down"), `"code":50000`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			writeError(c, tt.err)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantCode)
		})
	}
}

func TestWriteError_DoesNotLeakStorageDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	writeError(c, apperr.Persistencef("pq: connection refused at 10.0.0.5"))

	assert.NotContains(t, w.Body.String(), "10.0.0.5")
	assert.Contains(t, w.Body.String(), "internal error")
}
