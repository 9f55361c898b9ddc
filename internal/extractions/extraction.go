// Package extractions implements the structured data extraction domain for
// Ledgergate. It provides types, data access, and the LLM-backed extractor
// that turns stored document blobs into typed field sets with a confidence
// score. Results are immutable; re-extraction supersedes the prior result
// rather than editing it.
package extractions

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/internal/anomaly"
	"github.com/ledgergate/ledgergate/internal/documents"
)

// ConfidenceLevel buckets a confidence score for reporting.
type ConfidenceLevel string

// Confidence levels.
const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// LevelFor buckets a score: at least 0.9 is high, at least 0.7 is medium,
// anything lower is low.
func LevelFor(score float64) ConfidenceLevel {
	switch {
	case score >= 0.9:
		return ConfidenceHigh
	case score >= 0.7:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// LineItem is one billed line on an invoice.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// InvoiceFields is the extraction schema for invoices. Monetary fields are
// nil when the model could not locate them.
type InvoiceFields struct {
	Vendor        string     `json:"vendor"`
	InvoiceNumber string     `json:"invoice_number"`
	InvoiceDate   string     `json:"invoice_date"`
	DueDate       string     `json:"due_date"`
	Subtotal      *float64   `json:"subtotal"`
	Tax           *float64   `json:"tax"`
	Total         *float64   `json:"total"`
	Currency      string     `json:"currency"`
	LineItems     []LineItem `json:"line_items"`
}

// ContractFields is the extraction schema for contracts.
type ContractFields struct {
	Parties        []string `json:"parties"`
	EffectiveDate  string   `json:"effective_date"`
	ExpirationDate string   `json:"expiration_date"`
	ContractValue  *float64 `json:"contract_value"`
	PaymentTerms   string   `json:"payment_terms"`
	AutoRenewal    *bool    `json:"auto_renewal"`
}

// TicketFields is the extraction schema for support tickets.
type TicketFields struct {
	Customer        string `json:"customer"`
	IssueCategory   string `json:"issue_category"`
	Priority        string `json:"priority"`
	Summary         string `json:"summary"`
	RequestedAction string `json:"requested_action"`
}

// Result is one stored extraction. Exactly one of Invoice, Contract, or
// Ticket is non-nil, matching the document type at extraction time.
type Result struct {
	ID         uuid.UUID      `json:"id"`
	DocumentID uuid.UUID      `json:"document_id"`
	Type       documents.Type `json:"type"`

	Invoice  *InvoiceFields  `json:"invoice,omitempty"`
	Contract *ContractFields `json:"contract,omitempty"`
	Ticket   *TicketFields   `json:"ticket,omitempty"`

	Confidence float64         `json:"confidence"`
	Level      ConfidenceLevel `json:"level"`
	Warnings   []string        `json:"warnings"`

	ModelName    string    `json:"model_name"`
	ProviderName string    `json:"provider_name"`
	ExtractedAt  time.Time `json:"extracted_at"`
	Superseded   bool      `json:"superseded"`
}

// TransactionValue returns the monetary value the approval gate evaluates:
// the invoice total or the contract value. Tickets have none.
func (r *Result) TransactionValue() *float64 {
	switch {
	case r.Invoice != nil:
		return r.Invoice.Total
	case r.Contract != nil:
		return r.Contract.ContractValue
	default:
		return nil
	}
}

// Vendor returns the counterparty name, or empty when none was extracted.
func (r *Result) Vendor() string {
	switch {
	case r.Invoice != nil:
		return r.Invoice.Vendor
	case r.Contract != nil && len(r.Contract.Parties) > 0:
		return r.Contract.Parties[0]
	case r.Ticket != nil:
		return r.Ticket.Customer
	default:
		return ""
	}
}

// AnomalyRecord converts the result to the detector input shape.
func (r *Result) AnomalyRecord() anomaly.Record {
	rec := anomaly.Record{
		DocumentID: r.DocumentID,
		Vendor:     r.Vendor(),
	}

	if r.Invoice != nil {
		rec.IsInvoice = true
		rec.InvoiceDate = r.Invoice.InvoiceDate
		rec.Subtotal = r.Invoice.Subtotal
		rec.Tax = r.Invoice.Tax
		rec.Total = r.Invoice.Total
		rec.LineItemCount = len(r.Invoice.LineItems)
	}

	return rec
}
