package analyses

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/internal/anomaly"
	"github.com/ledgergate/ledgergate/pkg/query"
	"github.com/ledgergate/ledgergate/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "analyses", "a").
	Project("id", "ID").
	Project("document_id", "DocumentID").
	Project("findings", "Findings").
	Project("document_count", "DocumentCount").
	Project("total_value", "TotalValue").
	Project("average_value", "AverageValue").
	Project("max_severity", "MaxSeverity").
	Project("history_count", "HistoryCount").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for analysis queries.
// Nil fields are ignored; all use exact matching.
type Filters struct {
	DocumentID  *uuid.UUID `json:"document_id,omitempty"`
	MaxSeverity *string    `json:"max_severity,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("DocumentID", f.DocumentID).
		WhereEquals("MaxSeverity", f.MaxSeverity)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if d := values.Get("document_id"); d != "" {
		if id, err := uuid.Parse(d); err == nil {
			f.DocumentID = &id
		}
	}

	if s := values.Get("max_severity"); s != "" {
		f.MaxSeverity = &s
	}

	return f
}

func scanAnalysis(s repository.Scanner) (Analysis, error) {
	var a Analysis
	var findingsRaw []byte

	err := s.Scan(
		&a.ID,
		&a.DocumentID,
		&findingsRaw,
		&a.Metrics.DocumentCount,
		&a.Metrics.TotalValue,
		&a.Metrics.AverageValue,
		&a.MaxSeverity,
		&a.HistoryCount,
		&a.CreatedAt,
	)
	if err != nil {
		return a, err
	}

	if len(findingsRaw) > 0 {
		if err := json.Unmarshal(findingsRaw, &a.Findings); err != nil {
			return a, fmt.Errorf("unmarshal findings: %w", err)
		}
	}
	if a.Findings == nil {
		a.Findings = []anomaly.Finding{}
	}

	return a, nil
}
