package config

import (
	"os"
	"strconv"

	"github.com/ledgergate/ledgergate/internal/anomaly"
	"github.com/ledgergate/ledgergate/internal/gate"
)

const (
	EnvGateConfidenceThreshold = "LEDGERGATE_GATE_CONFIDENCE_THRESHOLD"
	EnvGateValueThreshold      = "LEDGERGATE_GATE_VALUE_THRESHOLD"
	EnvGateEscalationSeverity  = "LEDGERGATE_GATE_ESCALATION_SEVERITY"

	EnvAnomalySpikeRatio   = "LEDGERGATE_ANOMALY_SPIKE_RATIO"
	EnvAnomalyTaxTolerance = "LEDGERGATE_ANOMALY_TAX_TOLERANCE"
)

// FinalizeGate applies defaults, environment variable overrides, and
// validation to the gate thresholds.
func FinalizeGate(c *gate.Config) error {
	defaults := gate.DefaultConfig()
	defaults.Merge(c)
	*c = defaults

	if v, ok := envFloat(EnvGateConfidenceThreshold); ok {
		c.ConfidenceThreshold = v
	}
	if v, ok := envFloat(EnvGateValueThreshold); ok {
		c.ValueThreshold = v
	}
	if v := os.Getenv(EnvGateEscalationSeverity); v != "" {
		c.EscalationSeverity = v
	}

	return c.Validate()
}

// FinalizeAnomaly applies defaults, environment variable overrides, and
// validation to the anomaly detector thresholds.
func FinalizeAnomaly(c *anomaly.Config) error {
	defaults := anomaly.DefaultConfig()
	defaults.Merge(c)
	*c = defaults

	if v, ok := envFloat(EnvAnomalySpikeRatio); ok {
		c.SpikeRatio = v
	}
	if v, ok := envFloat(EnvAnomalyTaxTolerance); ok {
		c.TaxTolerance = v
	}

	return c.Validate()
}

func envFloat(name string) (float64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
