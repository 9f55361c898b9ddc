package approvals

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/pkg/pagination"
)

// System defines the public contract for approval domain operations.
type System interface {
	Handler() *Handler

	// Request raises an approval request for a document. Returns
	// ErrAlreadyPending when the document already has a pending request;
	// the existing request is left untouched.
	Request(ctx context.Context, cmd CreateCommand) (*Approval, error)

	// Resolve applies a decision to a pending approval exactly once and
	// notifies registered listeners. Returns ErrAlreadyResolved when the
	// approval is no longer pending.
	Resolve(ctx context.Context, id uuid.UUID, decision Decision) (*Approval, error)

	// Withdraw voids a document's pending approval without notifying
	// listeners. A document with no pending approval is a no-op.
	Withdraw(ctx context.Context, documentID uuid.UUID) error

	Find(ctx context.Context, id uuid.UUID) (*Approval, error)

	// FindPending returns the document's pending approval.
	FindPending(ctx context.Context, documentID uuid.UUID) (*Approval, error)

	// ListPending returns pending approvals ordered oldest first.
	ListPending(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[Approval], error)

	// ListByDocument returns every approval raised for a document, newest first.
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]Approval, error)

	// OnResolution registers a listener invoked for every approved or
	// rejected resolution. Listeners run on their own goroutine.
	OnResolution(fn Listener)
}
