package handlers

import (
	"errors"
	"net/http"

	"github.com/fatflowers/entitlements/pkg/apperr"
	"github.com/fatflowers/entitlements/pkg/response"

	"github.com/gin-gonic/gin"
)

// actorHeader carries the authenticated admin identity, set by the
// fronting auth proxy. The service records it, it does not authenticate.
const actorHeader = "X-Admin-User"

func actorFrom(c *gin.Context) string {
	return c.GetHeader(actorHeader)
}

// writeError maps the service error taxonomy onto envelope codes.
// Storage details never leak to the client; the message is the wrapped
// error text which identifies the failed constraint only.
func writeError(c *gin.Context, err error) {
	code := response.APIResponseCodeError
	msg := "internal error"
	switch {
	case errors.Is(err, apperr.ErrValidation):
		code = response.APIResponseCodeBadRequest
		msg = err.Error()
	case errors.Is(err, apperr.ErrNotFound):
		code = response.APIResponseCodeNotFound
		msg = err.Error()
	case errors.Is(err, apperr.ErrConflict):
		code = response.APIResponseCodeConflict
		msg = "concurrent update, retry the request"
	}
	c.JSON(http.StatusOK, response.ErrorT[any](code, msg))
}
