package pipeline

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors for pipeline operations.
var (
	ErrNotFound         = errors.New("pipeline state not found")
	ErrAlreadySubmitted = errors.New("document already submitted")
	ErrTerminal         = errors.New("document is in a terminal stage")
	ErrCancelled        = errors.New("processing cancelled")
)

// InvalidTransitionError reports an attempted move the stage graph forbids.
type InvalidTransitionError struct {
	From Stage
	To   Stage
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid stage transition %s -> %s", e.From, e.To)
}

// MapHTTPStatus maps pipeline domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrAlreadySubmitted) || errors.Is(err, ErrTerminal) {
		return http.StatusConflict
	}
	var invalid InvalidTransitionError
	if errors.As(err, &invalid) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
