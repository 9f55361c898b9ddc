package anomaly_test

import (
	"math"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/internal/anomaly"
)

func value(v float64) *float64 { return &v }

func invoice(id uuid.UUID, vendor string, total float64) anomaly.Record {
	return anomaly.Record{
		DocumentID:    id,
		IsInvoice:     true,
		Vendor:        vendor,
		InvoiceDate:   "2026-08-01",
		Total:         value(total),
		LineItemCount: 3,
	}
}

func TestDetectPriceSpike(t *testing.T) {
	engine := anomaly.NewEngine(anomaly.DefaultConfig())
	docID := uuid.New()

	history := []anomaly.Record{
		invoice(uuid.New(), "Acme Corp", 3500),
		invoice(uuid.New(), "Acme Corp", 3640),
	}

	t.Run("within threshold passes", func(t *testing.T) {
		result := engine.Analyze([]anomaly.Record{invoice(docID, "Acme Corp", 5000)}, history)
		for _, f := range result.Findings {
			if f.Type == anomaly.TypePriceSpike {
				t.Fatalf("unexpected price spike finding: %+v", f)
			}
		}
	})

	t.Run("above threshold flags", func(t *testing.T) {
		result := engine.Analyze([]anomaly.Record{invoice(docID, "Acme Corp", 6000)}, history)

		var spike *anomaly.Finding
		for i, f := range result.Findings {
			if f.Type == anomaly.TypePriceSpike {
				spike = &result.Findings[i]
			}
		}
		if spike == nil {
			t.Fatal("expected a price spike finding")
		}
		if spike.Severity != anomaly.SeverityWarning {
			t.Errorf("severity: got %q, want %q", spike.Severity, anomaly.SeverityWarning)
		}
		if got := spike.Details["previous_total"]; got != 3570 {
			t.Errorf("previous_total: got %v, want 3570", got)
		}
		if got := spike.Details["increase_percent"]; math.Abs(got-68.07) > 0.01 {
			t.Errorf("increase_percent: got %v, want ~68.07", got)
		}
		if len(spike.DocumentIDs) != 1 || spike.DocumentIDs[0] != docID {
			t.Errorf("document ids: got %v, want [%s]", spike.DocumentIDs, docID)
		}
	})

	t.Run("no history skips vendor", func(t *testing.T) {
		result := engine.Analyze([]anomaly.Record{invoice(docID, "Newcomer LLC", 100000)}, history)
		for _, f := range result.Findings {
			if f.Type == anomaly.TypePriceSpike {
				t.Fatalf("unexpected price spike for vendor without history: %+v", f)
			}
		}
	})
}

func TestDetectDuplicateCharges(t *testing.T) {
	engine := anomaly.NewEngine(anomaly.DefaultConfig())

	currentID := uuid.New()
	historyID := uuid.New()

	current := []anomaly.Record{invoice(currentID, "Acme Corp", 1200)}
	history := []anomaly.Record{
		invoice(historyID, "ACME  corp.", 1200),
		invoice(uuid.New(), "Acme Corp", 900),
	}

	result := engine.Analyze(current, history)

	var dup *anomaly.Finding
	for i, f := range result.Findings {
		if f.Type == anomaly.TypeDuplicateCharge {
			dup = &result.Findings[i]
		}
	}
	if dup == nil {
		t.Fatal("expected a duplicate charge finding across current and history")
	}
	if dup.Severity != anomaly.SeverityCritical {
		t.Errorf("severity: got %q, want %q", dup.Severity, anomaly.SeverityCritical)
	}
	if len(dup.DocumentIDs) != 2 {
		t.Fatalf("document ids: got %d, want 2", len(dup.DocumentIDs))
	}
	for i := 1; i < len(dup.DocumentIDs); i++ {
		if dup.DocumentIDs[i-1].String() > dup.DocumentIDs[i].String() {
			t.Errorf("document ids not sorted: %v", dup.DocumentIDs)
		}
	}

	t.Run("totals beyond cent precision differ", func(t *testing.T) {
		close := []anomaly.Record{
			invoice(uuid.New(), "Acme Corp", 100.004),
			invoice(uuid.New(), "Acme Corp", 100.001),
		}
		result := engine.Analyze(close, nil)
		for _, f := range result.Findings {
			if f.Type == anomaly.TypeDuplicateCharge {
				t.Fatalf("unexpected duplicate for unequal totals: %+v", f)
			}
		}
	})

	t.Run("different dates pass", func(t *testing.T) {
		later := invoice(uuid.New(), "Acme Corp", 1200)
		later.InvoiceDate = "2026-08-15"
		result := engine.Analyze([]anomaly.Record{later}, history)
		for _, f := range result.Findings {
			if f.Type == anomaly.TypeDuplicateCharge {
				t.Fatalf("unexpected duplicate for different date: %+v", f)
			}
		}
	})
}

func TestDetectTaxAnomalies(t *testing.T) {
	engine := anomaly.NewEngine(anomaly.DefaultConfig())
	docID := uuid.New()

	tests := []struct {
		name     string
		subtotal float64
		tax      float64
		total    float64
		flagged  bool
	}{
		{"consistent", 100, 8, 108, false},
		{"within tolerance", 100, 8, 108.005, false},
		{"inconsistent", 100, 8, 110, true},
		{"undercharged", 100, 8, 105, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := invoice(docID, "Acme Corp", tt.total)
			rec.Subtotal = value(tt.subtotal)
			rec.Tax = value(tt.tax)

			result := engine.Analyze([]anomaly.Record{rec}, nil)

			found := false
			for _, f := range result.Findings {
				if f.Type == anomaly.TypeTaxAnomaly {
					found = true
					if f.Severity != anomaly.SeverityWarning {
						t.Errorf("severity: got %q, want %q", f.Severity, anomaly.SeverityWarning)
					}
				}
			}
			if found != tt.flagged {
				t.Errorf("flagged: got %v, want %v", found, tt.flagged)
			}
		})
	}
}

func TestDetectUnusualPatterns(t *testing.T) {
	cfg := anomaly.DefaultConfig()
	cfg.SuspiciousVendors = []string{"Shady Holdings"}
	engine := anomaly.NewEngine(cfg)

	tests := []struct {
		name    string
		mutate  func(*anomaly.Record)
		flagged bool
	}{
		{"missing vendor", func(r *anomaly.Record) { r.Vendor = "" }, true},
		{"numeric vendor", func(r *anomaly.Record) { r.Vendor = "12345" }, true},
		{"suspicious vendor", func(r *anomaly.Record) { r.Vendor = "shady holdings" }, true},
		{"no line items", func(r *anomaly.Record) { r.LineItemCount = 0 }, true},
		{"ordinary invoice", func(r *anomaly.Record) {}, false},
		{"contract ignored", func(r *anomaly.Record) { r.IsInvoice = false; r.Vendor = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := invoice(uuid.New(), "Acme Corp", 500)
			tt.mutate(&rec)

			result := engine.Analyze([]anomaly.Record{rec}, nil)

			found := false
			for _, f := range result.Findings {
				if f.Type == anomaly.TypeUnusualPattern {
					found = true
					if f.Severity != anomaly.SeverityInfo {
						t.Errorf("severity: got %q, want %q", f.Severity, anomaly.SeverityInfo)
					}
				}
			}
			if found != tt.flagged {
				t.Errorf("flagged: got %v, want %v", found, tt.flagged)
			}
		})
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	engine := anomaly.NewEngine(anomaly.DefaultConfig())

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	current := []anomaly.Record{
		invoice(ids[0], "Acme Corp", 1200),
		invoice(ids[1], "Acme Corp", 1200),
		invoice(ids[2], "Globex", 9000),
	}
	history := []anomaly.Record{
		invoice(uuid.New(), "Globex", 4000),
		invoice(uuid.New(), "Globex", 4100),
	}

	first := engine.Analyze(current, history)
	for i := 0; i < 5; i++ {
		if got := engine.Analyze(current, history); !reflect.DeepEqual(got, first) {
			t.Fatalf("analysis changed between runs:\ngot  %+v\nwant %+v", got, first)
		}
	}
}

func TestComputeMetrics(t *testing.T) {
	engine := anomaly.NewEngine(anomaly.DefaultConfig())

	t.Run("empty set", func(t *testing.T) {
		result := engine.Analyze(nil, nil)
		if result.Metrics.DocumentCount != 0 || result.Metrics.TotalValue != 0 || result.Metrics.AverageValue != 0 {
			t.Errorf("expected zero metrics, got %+v", result.Metrics)
		}
		if len(result.Findings) != 0 {
			t.Errorf("expected no findings, got %v", result.Findings)
		}
	})

	t.Run("averages over valued records only", func(t *testing.T) {
		unvalued := anomaly.Record{DocumentID: uuid.New(), IsInvoice: true, Vendor: "Acme Corp", LineItemCount: 1}
		current := []anomaly.Record{
			invoice(uuid.New(), "Acme Corp", 100),
			invoice(uuid.New(), "Acme Corp", 300),
			unvalued,
		}

		result := engine.Analyze(current, nil)
		if result.Metrics.DocumentCount != 3 {
			t.Errorf("document count: got %d, want 3", result.Metrics.DocumentCount)
		}
		if result.Metrics.TotalValue != 400 {
			t.Errorf("total value: got %v, want 400", result.Metrics.TotalValue)
		}
		if result.Metrics.AverageValue != 200 {
			t.Errorf("average value: got %v, want 200", result.Metrics.AverageValue)
		}
	})
}

func TestMaxSeverity(t *testing.T) {
	result := anomaly.Result{
		Findings: []anomaly.Finding{
			{Type: anomaly.TypeUnusualPattern, Severity: anomaly.SeverityInfo},
			{Type: anomaly.TypeDuplicateCharge, Severity: anomaly.SeverityCritical},
			{Type: anomaly.TypePriceSpike, Severity: anomaly.SeverityWarning},
		},
	}
	if got := result.MaxSeverity(); got != anomaly.SeverityCritical {
		t.Errorf("max severity: got %q, want %q", got, anomaly.SeverityCritical)
	}

	empty := anomaly.Result{}
	if got := empty.MaxSeverity(); got != anomaly.SeverityNone {
		t.Errorf("empty max severity: got %q, want %q", got, anomaly.SeverityNone)
	}
}

func TestNormalizeVendor(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Acme Corp", "acme corp"},
		{"trims edge punctuation", ".Acme Corp.", "acme corp"},
		{"keeps interior punctuation", "ACME, Corp.", "acme, corp"},
		{"collapses whitespace", "  Acme   Corp  ", "acme corp"},
		{"empty", "", ""},
		{"punctuation only", "...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := anomaly.NormalizeVendor(tt.input); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}
