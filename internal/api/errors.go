package api

import (
	"errors"
	"net/http"

	"github.com/kioku-srs/kioku/internal/domain"
	"github.com/kioku-srs/kioku/internal/service/review"
)

// MapErrorToStatusCode maps service errors to HTTP status codes. Unknown
// errors map to 500.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, review.ErrCardNotFound):
		return http.StatusNotFound
	case errors.Is(err, review.ErrCardExists):
		return http.StatusConflict
	case errors.Is(err, review.ErrNotDue):
		return http.StatusConflict
	case errors.Is(err, review.ErrConflictRetriesExhausted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for the error. Internal
// details stay in the logs.
func GetSafeErrorMessage(err error) string {
	switch {
	case errors.Is(err, review.ErrCardNotFound):
		return "Card not found"
	case errors.Is(err, review.ErrCardExists):
		return "Card already exists for this item"
	case errors.Is(err, review.ErrNotDue):
		return "Card is not due for review yet"
	case errors.Is(err, review.ErrConflictRetriesExhausted):
		return "Card was modified concurrently, please retry"
	case errors.Is(err, domain.ErrInvalidRating):
		return "Rating must be one of: again, hard, good, easy"
	case errors.Is(err, domain.ErrValidation):
		return "Invalid request"
	default:
		return "An internal error occurred"
	}
}
