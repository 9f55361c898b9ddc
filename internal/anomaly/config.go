package anomaly

import "fmt"

// Config tunes the detectors.
type Config struct {
	// SpikeRatio is the fractional increase over a vendor's historical
	// average that flags a price spike. 0.5 means 50% above average.
	SpikeRatio float64 `toml:"spike_ratio"`
	// TaxTolerance is the maximum allowed |subtotal + tax - total|.
	TaxTolerance float64 `toml:"tax_tolerance"`
	// SuspiciousVendors lists vendor keys (see NormalizeVendor) that the
	// unusual-pattern detector always flags.
	SuspiciousVendors []string `toml:"suspicious_vendors"`
}

// DefaultConfig returns the standard detector thresholds.
func DefaultConfig() Config {
	return Config{
		SpikeRatio:   0.5,
		TaxTolerance: 0.01,
	}
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.SpikeRatio != 0 {
		c.SpikeRatio = overlay.SpikeRatio
	}
	if overlay.TaxTolerance != 0 {
		c.TaxTolerance = overlay.TaxTolerance
	}
	if len(overlay.SuspiciousVendors) > 0 {
		c.SuspiciousVendors = overlay.SuspiciousVendors
	}
}

// Validate reports whether the thresholds are usable.
func (c *Config) Validate() error {
	if c.SpikeRatio <= 0 {
		return fmt.Errorf("anomaly: spike_ratio must be positive, got %v", c.SpikeRatio)
	}
	if c.TaxTolerance < 0 {
		return fmt.Errorf("anomaly: tax_tolerance must be non-negative, got %v", c.TaxTolerance)
	}
	return nil
}
