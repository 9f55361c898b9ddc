package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// State is the durable pipeline record for one document. It is the recovery
// source after a restart: non-terminal documents resume from their stored
// stage, suspended documents stay suspended until their approval resolves.
type State struct {
	DocumentID uuid.UUID `json:"document_id"`
	Stage      Stage     `json:"stage"`

	// LastError and FailedStage are set when the document fails; the
	// failed stage records where processing stopped.
	LastError   *string `json:"last_error,omitempty"`
	FailedStage *Stage  `json:"failed_stage,omitempty"`

	// PendingApprovalID links a suspended document to its approval.
	PendingApprovalID *uuid.UUID `json:"pending_approval_id,omitempty"`

	StageEnteredAt time.Time `json:"stage_entered_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Terminal reports whether the document has finished processing.
func (s *State) Terminal() bool {
	return s.Stage.Terminal()
}

// Store persists pipeline state. Implementations must make Put atomic per
// document so concurrent transitions cannot interleave partial writes.
type Store interface {
	// Get returns the state for a document, or ErrNotFound.
	Get(ctx context.Context, documentID uuid.UUID) (*State, error)

	// Create inserts the initial state record. Returns ErrAlreadySubmitted
	// when a record for the document already exists, without touching it.
	Create(ctx context.Context, state State) error

	// Put upserts the state record.
	Put(ctx context.Context, state State) error

	// List returns all states, optionally filtered to one stage.
	List(ctx context.Context, stage *Stage) ([]State, error)

	// Delete removes a document's state record.
	Delete(ctx context.Context, documentID uuid.UUID) error
}
