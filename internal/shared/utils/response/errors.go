package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/apperror"
)

// StatusFor maps a service error to the HTTP status the client should see.
// Anything outside the domain taxonomy is an internal error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrNotOwned):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrInvalidState),
		errors.Is(err, apperror.ErrSeatAlreadyHeld):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrExpired):
		return http.StatusGone
	case errors.Is(err, apperror.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, apperror.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err in the standard envelope. Infrastructure errors are
// reported without their details.
func RespondError(c *gin.Context, message string, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		RespondJSON(c, "error", code, message, nil, nil)
		return
	}
	RespondJSON(c, "error", code, message, nil, err.Error())
}
