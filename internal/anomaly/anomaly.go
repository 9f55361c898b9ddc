// Package anomaly implements cross-document anomaly detection over extracted
// invoice data. The engine is pure: identical inputs always produce an
// identical result, with findings in a stable order.
package anomaly

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Type identifies the detector that produced a finding.
type Type string

// Finding types, in detector execution order.
const (
	TypePriceSpike      Type = "price_spike"
	TypeDuplicateCharge Type = "duplicate_charge"
	TypeTaxAnomaly      Type = "tax_anomaly"
	TypeUnusualPattern  Type = "unusual_pattern"
)

// Severity grades a finding. The zero value means no severity.
type Severity string

// Severity levels ordered from least to most severe.
const (
	SeverityNone     Severity = ""
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordering of a severity; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// ParseSeverity maps a string to a Severity, returning SeverityNone for
// unrecognized input.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityInfo:
		return SeverityInfo
	case SeverityWarning:
		return SeverityWarning
	case SeverityCritical:
		return SeverityCritical
	default:
		return SeverityNone
	}
}

// Finding is one detected anomaly with its evidence.
type Finding struct {
	Type           Type               `json:"type"`
	Severity       Severity           `json:"severity"`
	DocumentIDs    []uuid.UUID        `json:"document_ids"`
	Details        map[string]float64 `json:"details"`
	Description    string             `json:"description"`
	Recommendation string             `json:"recommendation"`
}

// Metrics aggregates the current document set of one analysis run.
type Metrics struct {
	DocumentCount int     `json:"document_count"`
	TotalValue    float64 `json:"total_value"`
	AverageValue  float64 `json:"average_value"`
}

// Result is the outcome of one analysis run.
type Result struct {
	Findings []Finding `json:"findings"`
	Metrics  Metrics   `json:"metrics"`
}

// MaxSeverity returns the highest severity among the findings,
// or SeverityNone when there are none.
func (r Result) MaxSeverity() Severity {
	max := SeverityNone
	for _, f := range r.Findings {
		if f.Severity.Rank() > max.Rank() {
			max = f.Severity
		}
	}
	return max
}

// Record is the distilled view of one extraction the detectors operate on.
// Monetary fields are nil when the extraction did not expose them.
type Record struct {
	DocumentID    uuid.UUID
	IsInvoice     bool
	Vendor        string
	InvoiceDate   string
	Subtotal      *float64
	Tax           *float64
	Total         *float64
	LineItemCount int
}

// NormalizeVendor produces the matching key used by the price-spike and
// duplicate-charge detectors: lower-cased, internal whitespace collapsed,
// surrounding punctuation trimmed.
func NormalizeVendor(name string) string {
	name = strings.TrimFunc(name, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
