// Package approvals implements the human approval domain for Ledgergate.
// A document has at most one pending approval at a time; resolving it is a
// one-shot operation that notifies registered listeners so the pipeline can
// resume the suspended document.
package approvals

import (
	"time"

	"github.com/google/uuid"
)

// Status of an approval request.
type Status string

// Approval statuses. Withdrawn marks requests voided by cancellation;
// withdrawal does not notify resolution listeners.
const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
)

// RequestType identifies the pipeline checkpoint that raised the request.
type RequestType string

// Request types.
const (
	// TypeExtraction is raised at the confidence gate directly after
	// extraction, before any analysis has run.
	TypeExtraction RequestType = "extraction_approval"
	// TypeProcessing is raised at the gate after analysis, with anomaly
	// findings available.
	TypeProcessing RequestType = "processing_approval"
	// TypeAction is raised before executing the document's final action.
	TypeAction RequestType = "action_approval"
)

// Approval is one approval request with its decision state.
type Approval struct {
	ID          uuid.UUID   `json:"id"`
	DocumentID  uuid.UUID   `json:"document_id"`
	RequestType RequestType `json:"request_type"`

	// Reason is the gate reason that triggered the request.
	Reason string `json:"reason"`
	// Context snapshots the signals the reviewer needs: confidence,
	// transaction value, finding counts. It is immutable once created.
	Context map[string]any `json:"context"`

	Status      Status     `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	Reviewer    *string    `json:"reviewer"`
	Note        *string    `json:"note"`
}

// CreateCommand carries the data needed to raise an approval request.
type CreateCommand struct {
	DocumentID  uuid.UUID      `json:"document_id"`
	RequestType RequestType    `json:"request_type"`
	Reason      string         `json:"reason"`
	Context     map[string]any `json:"context"`
}

// Decision resolves a pending approval.
type Decision struct {
	Approved bool   `json:"approved"`
	Reviewer string `json:"reviewer"`
	Note     string `json:"note"`
}

// Listener receives resolved approvals. Withdrawn requests are not delivered.
type Listener func(Approval)
