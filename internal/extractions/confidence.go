package extractions

import "fmt"

// Score computes the extraction confidence as the filled fraction of the
// schema's fields, and returns a warning per missing field. Line items and
// optional flags do not count toward the score.
func (r *Result) Score() (float64, []string) {
	switch {
	case r.Invoice != nil:
		return scoreFields([]field{
			{"vendor", r.Invoice.Vendor != ""},
			{"invoice_number", r.Invoice.InvoiceNumber != ""},
			{"invoice_date", r.Invoice.InvoiceDate != ""},
			{"due_date", r.Invoice.DueDate != ""},
			{"subtotal", r.Invoice.Subtotal != nil},
			{"tax", r.Invoice.Tax != nil},
			{"total", r.Invoice.Total != nil},
			{"currency", r.Invoice.Currency != ""},
		})
	case r.Contract != nil:
		return scoreFields([]field{
			{"parties", len(r.Contract.Parties) > 0},
			{"effective_date", r.Contract.EffectiveDate != ""},
			{"expiration_date", r.Contract.ExpirationDate != ""},
			{"contract_value", r.Contract.ContractValue != nil},
			{"payment_terms", r.Contract.PaymentTerms != ""},
		})
	case r.Ticket != nil:
		return scoreFields([]field{
			{"customer", r.Ticket.Customer != ""},
			{"issue_category", r.Ticket.IssueCategory != ""},
			{"priority", r.Ticket.Priority != ""},
			{"summary", r.Ticket.Summary != ""},
			{"requested_action", r.Ticket.RequestedAction != ""},
		})
	default:
		return 0, []string{"no fields extracted"}
	}
}

type field struct {
	name   string
	filled bool
}

func scoreFields(fields []field) (float64, []string) {
	filled := 0
	var warnings []string
	for _, f := range fields {
		if f.filled {
			filled++
			continue
		}
		warnings = append(warnings, fmt.Sprintf("missing field: %s", f.name))
	}
	return float64(filled) / float64(len(fields)), warnings
}
