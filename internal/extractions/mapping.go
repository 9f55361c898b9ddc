package extractions

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/internal/documents"
	"github.com/ledgergate/ledgergate/pkg/query"
	"github.com/ledgergate/ledgergate/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "extractions", "e").
	Project("id", "ID").
	Project("document_id", "DocumentID").
	Project("doc_type", "Type").
	Project("fields", "Fields").
	Project("confidence", "Confidence").
	Project("level", "Level").
	Project("warnings", "Warnings").
	Project("model_name", "ModelName").
	Project("provider_name", "ProviderName").
	Project("extracted_at", "ExtractedAt").
	Project("superseded", "Superseded")

var defaultSort = query.SortField{
	Field:      "ExtractedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for extraction queries.
// Nil fields are ignored; all use exact matching. Superseded defaults to
// current results only when unset.
type Filters struct {
	DocumentID *uuid.UUID `json:"document_id,omitempty"`
	Type       *string    `json:"type,omitempty"`
	Level      *string    `json:"level,omitempty"`
	Superseded *bool      `json:"superseded,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("DocumentID", f.DocumentID).
		WhereEquals("Type", f.Type).
		WhereEquals("Level", f.Level).
		WhereEquals("Superseded", f.Superseded)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if d := values.Get("document_id"); d != "" {
		if id, err := uuid.Parse(d); err == nil {
			f.DocumentID = &id
		}
	}

	if t := values.Get("type"); t != "" {
		f.Type = &t
	}

	if l := values.Get("level"); l != "" {
		f.Level = &l
	}

	if s := values.Get("superseded"); s == "true" || s == "false" {
		v := s == "true"
		f.Superseded = &v
	}

	return f
}

func scanResult(s repository.Scanner) (Result, error) {
	var r Result
	var fieldsRaw, warningsRaw []byte

	err := s.Scan(
		&r.ID,
		&r.DocumentID,
		&r.Type,
		&fieldsRaw,
		&r.Confidence,
		&r.Level,
		&warningsRaw,
		&r.ModelName,
		&r.ProviderName,
		&r.ExtractedAt,
		&r.Superseded,
	)
	if err != nil {
		return r, err
	}

	if err := unmarshalFields(&r, fieldsRaw); err != nil {
		return r, err
	}

	if len(warningsRaw) > 0 {
		if err := json.Unmarshal(warningsRaw, &r.Warnings); err != nil {
			return r, fmt.Errorf("unmarshal warnings: %w", err)
		}
	}
	if r.Warnings == nil {
		r.Warnings = []string{}
	}

	return r, nil
}

func unmarshalFields(r *Result, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}

	switch r.Type {
	case documents.TypeInvoice:
		r.Invoice = &InvoiceFields{}
		return json.Unmarshal(raw, r.Invoice)
	case documents.TypeContract:
		r.Contract = &ContractFields{}
		return json.Unmarshal(raw, r.Contract)
	case documents.TypeTicket:
		r.Ticket = &TicketFields{}
		return json.Unmarshal(raw, r.Ticket)
	default:
		return nil
	}
}

func marshalFields(r *Result) ([]byte, error) {
	switch {
	case r.Invoice != nil:
		return json.Marshal(r.Invoice)
	case r.Contract != nil:
		return json.Marshal(r.Contract)
	case r.Ticket != nil:
		return json.Marshal(r.Ticket)
	default:
		return []byte("{}"), nil
	}
}
