package approvals

import (
	"errors"
	"net/http"
)

// Domain errors for approval operations.
var (
	ErrNotFound        = errors.New("approval not found")
	ErrAlreadyPending  = errors.New("document already has a pending approval")
	ErrAlreadyResolved = errors.New("approval already resolved")
	ErrNoReviewer      = errors.New("decision requires a reviewer")
)

// MapHTTPStatus maps approval domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrAlreadyPending) || errors.Is(err, ErrAlreadyResolved) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrNoReviewer) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
