package analyses

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/internal/anomaly"
	"github.com/ledgergate/ledgergate/pkg/pagination"
)

// System defines the public contract for analysis domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Analysis], error)

	Find(ctx context.Context, id uuid.UUID) (*Analysis, error)

	// FindByDocument returns the latest analysis for a document.
	FindByDocument(ctx context.Context, documentID uuid.UUID) (*Analysis, error)

	// Analyze runs the detection engine over the document's current
	// extraction compared against recent history and persists the result.
	Analyze(ctx context.Context, documentID uuid.UUID) (*Analysis, error)

	// Trends reports spending and vendor trends over recent extractions.
	Trends(ctx context.Context) (*anomaly.TrendReport, error)

	// Compare builds a side-by-side comparison of the named documents.
	// At least two document ids are required.
	Compare(ctx context.Context, documentIDs []uuid.UUID) (*anomaly.Comparison, error)

	Delete(ctx context.Context, id uuid.UUID) error
}
