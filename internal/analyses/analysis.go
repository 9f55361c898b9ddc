// Package analyses implements the anomaly analysis domain for Ledgergate.
// It runs the detection engine over a document's current extraction plus
// recent history and persists the findings for review and reporting.
package analyses

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/internal/anomaly"
)

// Analysis is one stored analysis run.
type Analysis struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`

	Findings    []anomaly.Finding `json:"findings"`
	Metrics     anomaly.Metrics   `json:"metrics"`
	MaxSeverity anomaly.Severity  `json:"max_severity"`

	// HistoryCount is the number of recent extractions the run compared
	// against.
	HistoryCount int       `json:"history_count"`
	CreatedAt    time.Time `json:"created_at"`
}
