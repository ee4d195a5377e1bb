package handlers

import (
	"net/http"
	"time"

	"github.com/fatflowers/entitlements/internal/app/service/entitlement"
	models "github.com/fatflowers/entitlements/internal/models"
	"github.com/fatflowers/entitlements/pkg/apperr"
	"github.com/fatflowers/entitlements/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type SetOverrideBody struct {
	HasAccess bool       `json:"has_access"`
	ExpiresAt *time.Time `json:"expires_at"`
	Notes     string     `json:"notes"`
}

type DeleteOverrideBody struct {
	Reason string `json:"reason"`
}

type OverrideItem struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	FeatureID string     `json:"feature_id"`
	HasAccess bool       `json:"has_access"`
	ExpiresAt *time.Time `json:"expires_at"`
	Notes     string     `json:"notes"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toOverrideItem(o *models.UserFeatureOverride) *OverrideItem {
	return &OverrideItem{
		ID:        o.ID,
		UserID:    o.UserID,
		FeatureID: o.FeatureID,
		HasAccess: o.HasAccess,
		ExpiresAt: o.ExpiresAt,
		Notes:     o.Notes,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

// @Summary      Resolve Entitlements (Admin)
// @Description  Computes effective feature access for a user from plan defaults and overrides.
// @Tags         Admin
// @Produce      json
// @Param        user_id  path  string  true  "User ID"
// @Success      200  {object}  response.APIResponse[entitlement.EntitlementView]
// @Router       /admin/users/{user_id}/entitlements [get]
func ApiResolveEntitlements(svc *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := svc.Resolve(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(view))
	}
}

// @Summary      Set Feature Override (Admin)
// @Description  Creates or updates the single override row for a (user, feature) pair.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        user_id      path  string           true  "User ID"
// @Param        feature_key  path  string           true  "Feature key"
// @Param        body         body  SetOverrideBody  true  "Override parameters"
// @Success      200  {object}  response.APIResponse[OverrideItem]
// @Router       /admin/users/{user_id}/entitlements/{feature_key} [put]
func ApiSetOverride(svc *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body SetOverrideBody
		if err := c.ShouldBindJSON(&body); err != nil {
			writeError(c, apperr.Validationf("invalid request body: %v", err))
			return
		}
		row, err := svc.SetOverride(c.Request.Context(), &entitlement.SetOverrideRequest{
			UserID:     c.Param("user_id"),
			FeatureKey: c.Param("feature_key"),
			HasAccess:  body.HasAccess,
			ExpiresAt:  body.ExpiresAt,
			Notes:      body.Notes,
			Actor:      actorFrom(c),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(toOverrideItem(row)))
	}
}

// @Summary      Delete Feature Override (Admin)
// @Description  Removes an override, reverting the user to plan defaults. Idempotent.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        user_id      path  string              true  "User ID"
// @Param        feature_key  path  string              true  "Feature key"
// @Param        body         body  DeleteOverrideBody  true  "Deletion reason"
// @Success      200  {object}  response.APIResponse[any]
// @Router       /admin/users/{user_id}/entitlements/{feature_key} [delete]
func ApiDeleteOverride(svc *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body DeleteOverrideBody
		if err := c.ShouldBindJSON(&body); err != nil {
			writeError(c, apperr.Validationf("invalid request body: %v", err))
			return
		}
		err := svc.DeleteOverride(c.Request.Context(), c.Param("user_id"), c.Param("feature_key"), actorFrom(c), body.Reason)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      List Feature Overrides (Admin)
// @Description  Returns all current overrides for a user with their stamped notes.
// @Tags         Admin
// @Produce      json
// @Param        user_id  path  string  true  "User ID"
// @Success      200  {object}  response.APIResponse[[]OverrideItem]
// @Router       /admin/users/{user_id}/entitlements/overrides [get]
func ApiListOverrides(svc *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.ListOverrides(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(lo.Map(rows, func(o *models.UserFeatureOverride, _ int) *OverrideItem {
			return toOverrideItem(o)
		})))
	}
}

func RegisterEntitlementRoutes(r gin.IRouter, svc *entitlement.Service) {
	r.GET("/users/:user_id/entitlements", ApiResolveEntitlements(svc))
	r.GET("/users/:user_id/entitlements/overrides", ApiListOverrides(svc))
	r.PUT("/users/:user_id/entitlements/:feature_key", ApiSetOverride(svc))
	r.DELETE("/users/:user_id/entitlements/:feature_key", ApiDeleteOverride(svc))
}
