package extractions

import (
	"errors"
	"net/http"
)

// Domain errors for extraction operations.
var (
	ErrNotFound      = errors.New("extraction not found")
	ErrDuplicate     = errors.New("extraction already exists")
	ErrUnreadable    = errors.New("document content is unreadable")
	ErrUnsupported   = errors.New("unsupported document type")
	ErrModelResponse = errors.New("model returned an unusable response")
)

// MapHTTPStatus maps extraction domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrUnreadable) || errors.Is(err, ErrUnsupported) {
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, ErrModelResponse) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
