// Package documents implements the document domain for Ledgergate.
// It provides types, data access, and business logic for document upload,
// type classification, metadata management, and blob storage integration.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Type is the business category of a document. It selects the extraction
// schema and the downstream action.
type Type string

// Document types. Unknown documents still flow through the pipeline but
// extract with the generic schema.
const (
	TypeInvoice  Type = "invoice"
	TypeContract Type = "contract"
	TypeTicket   Type = "ticket"
	TypeUnknown  Type = "unknown"
)

// ParseType maps a string to a Type, returning TypeUnknown for
// unrecognized input.
func ParseType(s string) Type {
	switch Type(s) {
	case TypeInvoice, TypeContract, TypeTicket:
		return Type(s)
	default:
		return TypeUnknown
	}
}

// Document represents a registered document with its metadata, blob storage
// reference, and current pipeline position.
type Document struct {
	ID             uuid.UUID `json:"id"`
	Filename       string    `json:"filename"`
	ContentType    string    `json:"content_type"`
	SizeBytes      int64     `json:"size_bytes"`
	PageCount      *int      `json:"page_count"`
	StorageKey     string    `json:"storage_key"`
	Type           Type      `json:"type"`
	TypeConfidence float64   `json:"type_confidence"`
	UploadedAt     time.Time `json:"uploaded_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Pipeline position, joined from the pipeline state record.
	// Nil until the document is submitted to the pipeline.
	Stage          *string    `json:"stage,omitempty"`
	StageEnteredAt *time.Time `json:"stage_entered_at,omitempty"`
}

// CreateCommand carries the data needed to upload and register a new document.
// Data holds the raw file bytes. Type overrides classification when set;
// otherwise the keyword classifier assigns it. PageCount is optional and may
// be extracted by the caller via pdfcpu; nil values are stored as NULL.
type CreateCommand struct {
	Data        []byte
	Filename    string
	ContentType string
	Type        Type
	PageCount   *int
}
