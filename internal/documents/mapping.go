package documents

import (
	"net/url"

	"github.com/ledgergate/ledgergate/pkg/query"
	"github.com/ledgergate/ledgergate/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "documents", "d").
	Project("id", "ID").
	Project("filename", "Filename").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("storage_key", "StorageKey").
	Project("doc_type", "Type").
	Project("type_confidence", "TypeConfidence").
	Project("uploaded_at", "UploadedAt").
	Project("updated_at", "UpdatedAt").
	Join("public", "pipeline_states", "p", "LEFT JOIN", "d.id = p.document_id").
	Project("stage", "Stage").
	Project("stage_entered_at", "StageEnteredAt")

var defaultSort = query.SortField{
	Field:      "UploadedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for document queries.
// Nil fields are ignored. Type, ContentType, and Stage use exact matching.
// Filename and StorageKey use case-insensitive contains matching.
type Filters struct {
	Type        *string `json:"type,omitempty"`
	Filename    *string `json:"filename,omitempty"`
	ContentType *string `json:"content_type,omitempty"`
	StorageKey  *string `json:"storage_key,omitempty"`
	Stage       *string `json:"stage,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Type", f.Type).
		WhereContains("Filename", f.Filename).
		WhereEquals("ContentType", f.ContentType).
		WhereContains("StorageKey", f.StorageKey).
		WhereEquals("Stage", f.Stage)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if t := values.Get("type"); t != "" {
		f.Type = &t
	}

	if fn := values.Get("filename"); fn != "" {
		f.Filename = &fn
	}

	if ct := values.Get("content_type"); ct != "" {
		f.ContentType = &ct
	}

	if sk := values.Get("storage_key"); sk != "" {
		f.StorageKey = &sk
	}

	if st := values.Get("stage"); st != "" {
		f.Stage = &st
	}

	return f
}

func scanDocument(s repository.Scanner) (Document, error) {
	var d Document
	err := s.Scan(
		&d.ID,
		&d.Filename,
		&d.ContentType,
		&d.SizeBytes,
		&d.PageCount,
		&d.StorageKey,
		&d.Type,
		&d.TypeConfidence,
		&d.UploadedAt,
		&d.UpdatedAt,
		&d.Stage,
		&d.StageEnteredAt,
	)
	return d, err
}
