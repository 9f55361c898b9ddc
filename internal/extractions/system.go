package extractions

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/pkg/pagination"
)

// System defines the public contract for extraction domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Result], error)

	Find(ctx context.Context, id uuid.UUID) (*Result, error)

	// FindByDocument returns the current (non-superseded) extraction for a
	// document.
	FindByDocument(ctx context.Context, documentID uuid.UUID) (*Result, error)

	// Extract runs the LLM extractor against the document's stored content
	// and persists the result, superseding any prior extraction.
	Extract(ctx context.Context, documentID uuid.UUID) (*Result, error)

	// Recent returns the current extractions most recently produced before
	// the given document's, for cross-document analysis.
	Recent(ctx context.Context, exclude uuid.UUID, limit int) ([]Result, error)

	Delete(ctx context.Context, id uuid.UUID) error
}
