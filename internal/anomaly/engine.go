package anomaly

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Engine runs the detectors over a current document set plus recent history.
type Engine struct {
	cfg        Config
	suspicious map[string]struct{}
}

// NewEngine creates an Engine. Invalid thresholds fall back to defaults
// via Validate at configuration time; NewEngine trusts its input.
func NewEngine(cfg Config) *Engine {
	suspicious := make(map[string]struct{}, len(cfg.SuspiciousVendors))
	for _, v := range cfg.SuspiciousVendors {
		suspicious[NormalizeVendor(v)] = struct{}{}
	}
	return &Engine{cfg: cfg, suspicious: suspicious}
}

// Analyze runs every detector over current against history and returns the
// combined findings and aggregate metrics. The result is deterministic for
// identical inputs. Analysis never mutates its inputs and never fails; an
// empty document set yields an empty result.
func (e *Engine) Analyze(current, history []Record) Result {
	var findings []Finding
	findings = append(findings, sortByDocument(e.detectPriceSpikes(current, history))...)
	findings = append(findings, sortByDocument(e.detectDuplicateCharges(current, history))...)
	findings = append(findings, sortByDocument(e.detectTaxAnomalies(current))...)
	findings = append(findings, sortByDocument(e.detectUnusualPatterns(current))...)

	return Result{
		Findings: findings,
		Metrics:  computeMetrics(current),
	}
}

// detectPriceSpikes flags current invoices whose total exceeds the vendor's
// historical average by more than the configured ratio. Vendors without
// history are skipped.
func (e *Engine) detectPriceSpikes(current, history []Record) []Finding {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range history {
		if !r.IsInvoice || r.Total == nil {
			continue
		}
		key := NormalizeVendor(r.Vendor)
		if key == "" {
			continue
		}
		sums[key] += *r.Total
		counts[key]++
	}

	var findings []Finding
	for _, r := range current {
		if !r.IsInvoice || r.Total == nil {
			continue
		}
		key := NormalizeVendor(r.Vendor)
		n := counts[key]
		if n == 0 {
			continue
		}

		avg := sums[key] / float64(n)
		threshold := avg * (1 + e.cfg.SpikeRatio)
		if *r.Total <= threshold {
			continue
		}

		increase := (*r.Total/avg - 1) * 100
		findings = append(findings, Finding{
			Type:        TypePriceSpike,
			Severity:    SeverityWarning,
			DocumentIDs: []uuid.UUID{r.DocumentID},
			Details: map[string]float64{
				"current_total":    *r.Total,
				"previous_total":   avg,
				"increase_percent": increase,
				"history_count":    float64(n),
			},
			Description: fmt.Sprintf(
				"total %.2f from %q is %.1f%% above the historical average %.2f",
				*r.Total, r.Vendor, increase, avg,
			),
			Recommendation: "verify the charge against the vendor agreement before payment",
		})
	}
	return findings
}

// detectDuplicateCharges groups current and historical invoices by
// (normalized vendor, total, invoice date); any group larger than one is a
// likely duplicate charge.
func (e *Engine) detectDuplicateCharges(current, history []Record) []Finding {
	type group struct {
		vendor string
		total  float64
		ids    []uuid.UUID
	}
	groups := make(map[string]*group)

	collect := func(records []Record) {
		for _, r := range records {
			if !r.IsInvoice || r.Total == nil {
				continue
			}
			vendor := NormalizeVendor(r.Vendor)
			if vendor == "" || r.InvoiceDate == "" {
				continue
			}
			// The total participates at full precision; rounding the key
			// would merge charges that merely agree to the cent.
			key := fmt.Sprintf("%s|%s|%s",
				vendor, strconv.FormatFloat(*r.Total, 'g', -1, 64), r.InvoiceDate)
			g, ok := groups[key]
			if !ok {
				g = &group{vendor: r.Vendor, total: *r.Total}
				groups[key] = g
			}
			g.ids = append(g.ids, r.DocumentID)
		}
	}
	collect(current)
	collect(history)

	keys := make([]string, 0, len(groups))
	for key, g := range groups {
		if len(g.ids) > 1 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var findings []Finding
	for _, key := range keys {
		g := groups[key]
		ids := append([]uuid.UUID(nil), g.ids...)
		sort.Slice(ids, func(i, j int) bool {
			return strings.Compare(ids[i].String(), ids[j].String()) < 0
		})
		findings = append(findings, Finding{
			Type:        TypeDuplicateCharge,
			Severity:    SeverityCritical,
			DocumentIDs: ids,
			Details: map[string]float64{
				"amount":   g.total,
				"invoices": float64(len(ids)),
			},
			Description: fmt.Sprintf(
				"%d invoices from %q share the amount %.2f on the same date",
				len(ids), g.vendor, g.total,
			),
			Recommendation: "confirm only one of these invoices should be paid",
		})
	}
	return findings
}

// detectTaxAnomalies flags invoices whose subtotal, tax, and total are
// mutually inconsistent beyond the configured tolerance.
func (e *Engine) detectTaxAnomalies(current []Record) []Finding {
	var findings []Finding
	for _, r := range current {
		if !r.IsInvoice || r.Subtotal == nil || r.Tax == nil || r.Total == nil {
			continue
		}

		expected := *r.Subtotal + *r.Tax
		diff := math.Abs(expected - *r.Total)
		if diff <= e.cfg.TaxTolerance {
			continue
		}

		findings = append(findings, Finding{
			Type:        TypeTaxAnomaly,
			Severity:    SeverityWarning,
			DocumentIDs: []uuid.UUID{r.DocumentID},
			Details: map[string]float64{
				"subtotal":       *r.Subtotal,
				"tax":            *r.Tax,
				"stated_total":   *r.Total,
				"expected_total": expected,
				"difference":     diff,
			},
			Description: fmt.Sprintf(
				"stated total %.2f differs from subtotal %.2f + tax %.2f by %.2f",
				*r.Total, *r.Subtotal, *r.Tax, diff,
			),
			Recommendation: "recompute the tax line and request a corrected invoice if needed",
		})
	}
	return findings
}

// detectUnusualPatterns flags structural oddities: missing or numeric-only
// vendor names, vendors on the configured suspicious list, and invoices
// without line items.
func (e *Engine) detectUnusualPatterns(current []Record) []Finding {
	var findings []Finding
	for _, r := range current {
		if !r.IsInvoice {
			continue
		}

		key := NormalizeVendor(r.Vendor)
		var reason string
		switch {
		case key == "":
			reason = "missing vendor name"
		case numericOnly(key):
			reason = "vendor name is numeric only"
		case e.isSuspicious(key):
			reason = fmt.Sprintf("vendor %q is on the review list", r.Vendor)
		case r.LineItemCount == 0:
			reason = "invoice has no line items"
		default:
			continue
		}

		findings = append(findings, Finding{
			Type:           TypeUnusualPattern,
			Severity:       SeverityInfo,
			DocumentIDs:    []uuid.UUID{r.DocumentID},
			Details:        map[string]float64{"line_items": float64(r.LineItemCount)},
			Description:    reason,
			Recommendation: "review the document manually",
		})
	}
	return findings
}

func (e *Engine) isSuspicious(vendorKey string) bool {
	_, ok := e.suspicious[vendorKey]
	return ok
}

// sortByDocument orders a detector's findings by their first implicated
// document id so output is stable regardless of input order.
func sortByDocument(findings []Finding) []Finding {
	sort.SliceStable(findings, func(i, j int) bool {
		return strings.Compare(
			findings[i].DocumentIDs[0].String(),
			findings[j].DocumentIDs[0].String(),
		) < 0
	})
	return findings
}

func numericOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != ' ' {
			return false
		}
	}
	return true
}

func computeMetrics(current []Record) Metrics {
	m := Metrics{DocumentCount: len(current)}
	valued := 0
	for _, r := range current {
		if r.Total != nil {
			m.TotalValue += *r.Total
			valued++
		}
	}
	if valued > 0 {
		m.AverageValue = m.TotalValue / float64(valued)
	}
	return m
}
