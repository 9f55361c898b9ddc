package anomaly

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// Comparison is the side-by-side view of a document set: which vendors
// recur, the date span, and how far totals spread from their average.
type Comparison struct {
	DocumentIDs          []uuid.UUID `json:"document_ids"`
	SharedVendors        []string    `json:"shared_vendors"`
	VendorCount          int         `json:"vendor_count"`
	DateRange            string      `json:"date_range"`
	InvoiceCount         int         `json:"invoice_count"`
	TotalValue           float64     `json:"total_value"`
	AverageValue         float64     `json:"average_value"`
	PriceVariancePercent *float64    `json:"price_variance_percent,omitempty"`
}

// CompareInvoices compares a record set. Vendors match on their normalized
// name; a vendor appearing on more than one record is shared. Price
// variance is the largest deviation of any total from the set average, as
// a percentage, and is absent when fewer than two records carry totals.
func CompareInvoices(records []Record) Comparison {
	cmp := Comparison{
		DocumentIDs:   make([]uuid.UUID, 0, len(records)),
		SharedVendors: []string{},
		DateRange:     "N/A",
	}

	vendorCounts := map[string]int{}
	vendorNames := map[string]string{}
	var totals []float64
	var minDate, maxDate string

	for _, r := range records {
		cmp.DocumentIDs = append(cmp.DocumentIDs, r.DocumentID)

		if key := NormalizeVendor(r.Vendor); key != "" {
			vendorCounts[key]++
			if _, ok := vendorNames[key]; !ok {
				vendorNames[key] = r.Vendor
			}
		}
		if r.Total != nil {
			totals = append(totals, *r.Total)
			cmp.TotalValue += *r.Total
		}
		if r.InvoiceDate != "" {
			if minDate == "" || r.InvoiceDate < minDate {
				minDate = r.InvoiceDate
			}
			if r.InvoiceDate > maxDate {
				maxDate = r.InvoiceDate
			}
		}
	}

	cmp.InvoiceCount = len(records)
	cmp.VendorCount = len(vendorCounts)

	shared := make([]string, 0, len(vendorCounts))
	for key, n := range vendorCounts {
		if n > 1 {
			shared = append(shared, key)
		}
	}
	sort.Strings(shared)
	for _, key := range shared {
		cmp.SharedVendors = append(cmp.SharedVendors, vendorNames[key])
	}

	if minDate != "" {
		cmp.DateRange = fmt.Sprintf("%s to %s", minDate, maxDate)
	}

	if len(totals) > 0 {
		cmp.AverageValue = cmp.TotalValue / float64(len(totals))
	}
	if len(totals) > 1 {
		variance := 0.0
		if cmp.AverageValue > 0 {
			maxDiff := 0.0
			for _, t := range totals {
				if d := math.Abs(t - cmp.AverageValue); d > maxDiff {
					maxDiff = d
				}
			}
			variance = maxDiff / cmp.AverageValue * 100
		}
		cmp.PriceVariancePercent = &variance
	}

	return cmp
}
