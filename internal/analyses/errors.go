package analyses

import (
	"errors"
	"net/http"

	"github.com/ledgergate/ledgergate/internal/extractions"
)

// Domain errors for analysis operations.
var (
	ErrNotFound         = errors.New("analysis not found")
	ErrDuplicate        = errors.New("analysis already exists")
	ErrComparisonTooFew = errors.New("comparison requires at least two documents")
)

// MapHTTPStatus maps analysis domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) || errors.Is(err, extractions.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrComparisonTooFew) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
