package extractions_test

import (
	"slices"
	"testing"

	"github.com/ledgergate/ledgergate/internal/extractions"
)

func value(v float64) *float64 { return &v }

func TestLevelFor(t *testing.T) {
	tests := []struct {
		score float64
		level extractions.ConfidenceLevel
	}{
		{1.0, extractions.ConfidenceHigh},
		{0.9, extractions.ConfidenceHigh},
		{0.89, extractions.ConfidenceMedium},
		{0.7, extractions.ConfidenceMedium},
		{0.69, extractions.ConfidenceLow},
		{0, extractions.ConfidenceLow},
	}

	for _, tt := range tests {
		if got := extractions.LevelFor(tt.score); got != tt.level {
			t.Errorf("LevelFor(%v): got %q, want %q", tt.score, got, tt.level)
		}
	}
}

func TestScoreInvoice(t *testing.T) {
	t.Run("complete invoice", func(t *testing.T) {
		r := extractions.Result{Invoice: &extractions.InvoiceFields{
			Vendor:        "Acme Corp",
			InvoiceNumber: "INV-4411",
			InvoiceDate:   "2026-08-01",
			DueDate:       "2026-08-31",
			Subtotal:      value(100),
			Tax:           value(8),
			Total:         value(108),
			Currency:      "USD",
		}}

		score, warnings := r.Score()
		if score != 1.0 {
			t.Errorf("score: got %v, want 1.0", score)
		}
		if len(warnings) != 0 {
			t.Errorf("warnings: got %v, want none", warnings)
		}
	})

	t.Run("partial invoice warns per missing field", func(t *testing.T) {
		r := extractions.Result{Invoice: &extractions.InvoiceFields{
			Vendor:      "Acme Corp",
			InvoiceDate: "2026-08-01",
			Total:       value(108),
			Currency:    "USD",
		}}

		score, warnings := r.Score()
		if score != 0.5 {
			t.Errorf("score: got %v, want 0.5", score)
		}
		for _, missing := range []string{
			"missing field: invoice_number",
			"missing field: due_date",
			"missing field: subtotal",
			"missing field: tax",
		} {
			if !slices.Contains(warnings, missing) {
				t.Errorf("warnings missing %q: %v", missing, warnings)
			}
		}
	})
}

func TestScoreContract(t *testing.T) {
	r := extractions.Result{Contract: &extractions.ContractFields{
		Parties:       []string{"Acme Corp", "Globex"},
		EffectiveDate: "2026-01-01",
		ContractValue: value(50000),
		PaymentTerms:  "net 30",
	}}

	score, warnings := r.Score()
	if score != 0.8 {
		t.Errorf("score: got %v, want 0.8", score)
	}
	if !slices.Contains(warnings, "missing field: expiration_date") {
		t.Errorf("warnings: got %v, want expiration_date warning", warnings)
	}
}

func TestScoreTicket(t *testing.T) {
	r := extractions.Result{Ticket: &extractions.TicketFields{
		Customer: "Globex",
		Summary:  "printer on fire",
	}}

	score, warnings := r.Score()
	if score != 0.4 {
		t.Errorf("score: got %v, want 0.4", score)
	}
	if len(warnings) != 3 {
		t.Errorf("warnings: got %d, want 3: %v", len(warnings), warnings)
	}
}

func TestScoreNoFields(t *testing.T) {
	r := extractions.Result{}
	score, warnings := r.Score()
	if score != 0 {
		t.Errorf("score: got %v, want 0", score)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings: got %v, want a single warning", warnings)
	}
}
