package documents_test

import (
	"testing"

	"github.com/ledgergate/ledgergate/internal/documents"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		text       string
		docType    documents.Type
		confidence float64
	}{
		{
			"invoice from filename",
			"acme-invoice-march.pdf", "",
			documents.TypeInvoice, 0.2,
		},
		{
			"invoice from content",
			"scan001.pdf", "INVOICE #4411 amount due by payment due date, see remittance slip",
			documents.TypeInvoice, 0.8,
		},
		{
			"contract from content",
			"doc.pdf", "This agreement between each party takes effect on the effective date",
			documents.TypeContract, 0.6,
		},
		{
			"ticket from content",
			"export.txt", "support ticket: incident resolved, see resolution notes for the issue",
			documents.TypeTicket, 1.0,
		},
		{
			"nothing matches",
			"vacation-photos.zip", "beach sunset",
			documents.TypeUnknown, 0,
		},
		{
			"most hits wins",
			"contract.pdf", "invoice bill amount due",
			documents.TypeInvoice, 0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docType, confidence := documents.Classify(tt.filename, tt.text)
			if docType != tt.docType {
				t.Errorf("type: got %q, want %q", docType, tt.docType)
			}
			if confidence != tt.confidence {
				t.Errorf("confidence: got %v, want %v", confidence, tt.confidence)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input string
		want  documents.Type
	}{
		{"invoice", documents.TypeInvoice},
		{"contract", documents.TypeContract},
		{"ticket", documents.TypeTicket},
		{"unknown", documents.TypeUnknown},
		{"receipt", documents.TypeUnknown},
		{"", documents.TypeUnknown},
	}

	for _, tt := range tests {
		t.Run("input "+tt.input, func(t *testing.T) {
			if got := documents.ParseType(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
