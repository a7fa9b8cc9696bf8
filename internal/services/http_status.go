package services

import (
	"errors"
	"net/http"

	"github.com/trustbank/backend/internal/models"
)

// StatusForError maps ledger sentinel errors onto HTTP status codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidOTP),
		errors.Is(err, ErrSameAccount):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrDailyLimitExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrAccountInactive):
		return http.StatusForbidden
	case errors.Is(err, models.ErrCurrencyUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrStoreContention):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
