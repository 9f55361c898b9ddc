package anomaly

import "sort"

// TrendReport summarizes spending over the dated invoices in a record set.
// Months are keyed YYYY-MM; period bounds are the earliest and latest
// invoice dates seen.
type TrendReport struct {
	PeriodStart          string                 `json:"period_start"`
	PeriodEnd            string                 `json:"period_end"`
	DataPoints           int                    `json:"data_points"`
	MonthlyTotals        map[string]float64     `json:"monthly_totals"`
	TotalSpent           float64                `json:"total_spent"`
	AverageMonthly       float64                `json:"average_monthly"`
	OverallChangePercent float64                `json:"overall_change_percent"`
	VendorTrends         map[string]VendorTrend `json:"vendor_trends"`
	TotalVendors         int                    `json:"total_vendors"`
}

// VendorTrend tracks one vendor's invoices over the report period. Only
// vendors with at least two dated invoices get a trend.
type VendorTrend struct {
	InvoiceCount      int     `json:"invoice_count"`
	TotalSpent        float64 `json:"total_spent"`
	AverageInvoice    float64 `json:"average_invoice"`
	FirstInvoiceTotal float64 `json:"first_invoice_total"`
	LastInvoiceTotal  float64 `json:"last_invoice_total"`
	ChangePercent     float64 `json:"change_percent"`
	Direction         string  `json:"direction"`
}

// Trend directions. A vendor is stable within a five percent swing between
// its first and last invoice.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

const trendStableBand = 5.0

// SpendingTrends builds a TrendReport from a record set. Records that are
// not invoices, carry no total, or carry no invoice date are skipped.
// The result is deterministic for identical inputs.
func SpendingTrends(records []Record) TrendReport {
	type dated struct {
		date   string
		total  float64
		vendor string
	}

	var invoices []dated
	for _, r := range records {
		if !r.IsInvoice || r.Total == nil || r.InvoiceDate == "" {
			continue
		}
		invoices = append(invoices, dated{
			date:   r.InvoiceDate,
			total:  *r.Total,
			vendor: r.Vendor,
		})
	}

	report := TrendReport{
		MonthlyTotals: map[string]float64{},
		VendorTrends:  map[string]VendorTrend{},
	}
	if len(invoices) == 0 {
		return report
	}

	// ISO dates order lexicographically.
	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].date < invoices[j].date
	})

	report.PeriodStart = invoices[0].date
	report.PeriodEnd = invoices[len(invoices)-1].date
	report.DataPoints = len(invoices)

	for _, inv := range invoices {
		report.MonthlyTotals[monthKey(inv.date)] += inv.total
		report.TotalSpent += inv.total
	}
	report.AverageMonthly = report.TotalSpent / float64(len(report.MonthlyTotals))

	months := make([]string, 0, len(report.MonthlyTotals))
	for m := range report.MonthlyTotals {
		months = append(months, m)
	}
	sort.Strings(months)
	if len(months) >= 2 {
		first := report.MonthlyTotals[months[0]]
		last := report.MonthlyTotals[months[len(months)-1]]
		report.OverallChangePercent = changePercent(first, last)
	}

	vendors := map[string][]dated{}
	names := map[string]string{}
	for _, inv := range invoices {
		key := NormalizeVendor(inv.vendor)
		if key == "" {
			continue
		}
		vendors[key] = append(vendors[key], inv)
		if _, ok := names[key]; !ok {
			names[key] = inv.vendor
		}
	}
	report.TotalVendors = len(vendors)

	for key, invs := range vendors {
		if len(invs) < 2 {
			continue
		}

		var total float64
		for _, inv := range invs {
			total += inv.total
		}
		change := changePercent(invs[0].total, invs[len(invs)-1].total)

		report.VendorTrends[names[key]] = VendorTrend{
			InvoiceCount:      len(invs),
			TotalSpent:        total,
			AverageInvoice:    total / float64(len(invs)),
			FirstInvoiceTotal: invs[0].total,
			LastInvoiceTotal:  invs[len(invs)-1].total,
			ChangePercent:     change,
			Direction:         direction(change),
		}
	}

	return report
}

func monthKey(date string) string {
	if len(date) > 7 {
		return date[:7]
	}
	return date
}

func changePercent(first, last float64) float64 {
	if first <= 0 {
		return 0
	}
	return (last - first) / first * 100
}

func direction(changePct float64) string {
	switch {
	case changePct > trendStableBand:
		return TrendIncreasing
	case changePct < -trendStableBand:
		return TrendDecreasing
	default:
		return TrendStable
	}
}
