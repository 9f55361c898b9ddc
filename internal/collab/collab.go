// Package collab classifies collaborator failures so the pipeline can decide
// between retrying and failing a document outright.
package collab

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgergate/ledgergate/pkg/resilience"
)

// Sentinel causes wrapped into collaborator errors.
var (
	// ErrTransient marks failures worth retrying, such as timeouts or
	// temporary collaborator outages.
	ErrTransient = errors.New("transient collaborator failure")
	// ErrPermanent marks failures that will not succeed on retry, such as
	// malformed documents or rejected requests.
	ErrPermanent = errors.New("permanent collaborator failure")
)

// Transient wraps err as a retryable collaborator failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Permanent wraps err as a non-retryable collaborator failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsTransient reports whether err should be retried. Unclassified errors are
// treated as permanent; context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrTransient)
}

// Classify is the resilience classifier for collaborator calls: transient
// failures retry and count against the circuit breaker, permanent failures
// do neither.
func Classify(err error) resilience.Classification {
	transient := IsTransient(err)
	return resilience.Classification{
		Retryable:     transient,
		RecordFailure: transient,
	}
}
