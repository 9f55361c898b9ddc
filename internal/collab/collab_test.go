package collab_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ledgergate/ledgergate/internal/collab"
)

func TestIsTransient(t *testing.T) {
	base := errors.New("connection refused")

	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"transient wrap", collab.Transient(base), true},
		{"permanent wrap", collab.Permanent(base), false},
		{"unclassified", base, false},
		{"nested transient", fmt.Errorf("call failed: %w", collab.Transient(base)), true},
		{"context canceled", collab.Transient(context.Canceled), false},
		{"deadline exceeded", collab.Transient(context.DeadlineExceeded), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := collab.IsTransient(tt.err); got != tt.transient {
				t.Errorf("got %v, want %v", got, tt.transient)
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if collab.Transient(nil) != nil {
		t.Error("Transient(nil) should be nil")
	}
	if collab.Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("model returned garbage")
	err := collab.Permanent(cause)

	if !errors.Is(err, collab.ErrPermanent) {
		t.Error("expected ErrPermanent in chain")
	}
	if !errors.Is(err, cause) {
		t.Error("expected original cause in chain")
	}
}

func TestClassify(t *testing.T) {
	base := errors.New("timeout")

	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"transient retries and records", collab.Transient(base), true},
		{"permanent does neither", collab.Permanent(base), false},
		{"unclassified does neither", base, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := collab.Classify(tt.err)
			if c.Retryable != tt.retryable {
				t.Errorf("retryable: got %v, want %v", c.Retryable, tt.retryable)
			}
			if c.RecordFailure != tt.retryable {
				t.Errorf("record failure: got %v, want %v", c.RecordFailure, tt.retryable)
			}
		})
	}
}
