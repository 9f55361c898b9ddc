// Package gate decides whether a document needs human approval before the
// pipeline may continue. Decide is pure and consults no external state.
package gate

import (
	"fmt"
	"math"

	"github.com/ledgergate/ledgergate/internal/anomaly"
)

// Reason explains why approval is required. Empty means no approval needed.
type Reason string

// Escalation reasons, in rule evaluation order.
const (
	ReasonNone            Reason = ""
	ReasonLowConfidence   Reason = "low_confidence"
	ReasonAnomalyDetected Reason = "anomaly_detected"
	ReasonHighValue       Reason = "high_value"
)

// Input carries the signals the gate evaluates. MaxSeverity is
// anomaly.SeverityNone and TransactionValue nil when the corresponding
// signal is not available at the current stage.
type Input struct {
	ExtractionConfidence float64
	MaxSeverity          anomaly.Severity
	TransactionValue     *float64
}

// Decision is the gate's verdict for one document.
type Decision struct {
	ApprovalRequired bool
	Reason           Reason
}

// ErrInvalidConfig reports unusable gate thresholds.
type ErrInvalidConfig struct {
	Field string
	Value float64
}

func (e ErrInvalidConfig) Error() string {
	return fmt.Sprintf("gate: invalid %s threshold %v", e.Field, e.Value)
}

// Config holds the escalation thresholds.
type Config struct {
	// ConfidenceThreshold is the minimum extraction confidence that passes
	// without review.
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	// ValueThreshold is the transaction value at or above which review is
	// required.
	ValueThreshold float64 `toml:"value_threshold"`
	// EscalationSeverity is the minimum anomaly severity that forces
	// review. Findings below it pass the gate.
	EscalationSeverity string `toml:"escalation_severity"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.7,
		ValueThreshold:      1000.0,
		EscalationSeverity:  string(anomaly.SeverityCritical),
	}
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.ConfidenceThreshold != 0 {
		c.ConfidenceThreshold = overlay.ConfidenceThreshold
	}
	if overlay.ValueThreshold != 0 {
		c.ValueThreshold = overlay.ValueThreshold
	}
	if overlay.EscalationSeverity != "" {
		c.EscalationSeverity = overlay.EscalationSeverity
	}
}

// Validate rejects thresholds that cannot classify any input.
func (c *Config) Validate() error {
	if math.IsNaN(c.ConfidenceThreshold) || math.IsInf(c.ConfidenceThreshold, 0) ||
		c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return ErrInvalidConfig{Field: "confidence", Value: c.ConfidenceThreshold}
	}
	if math.IsNaN(c.ValueThreshold) || math.IsInf(c.ValueThreshold, 0) || c.ValueThreshold < 0 {
		return ErrInvalidConfig{Field: "value", Value: c.ValueThreshold}
	}
	if anomaly.ParseSeverity(c.EscalationSeverity) == anomaly.SeverityNone {
		return ErrInvalidConfig{Field: "escalation_severity", Value: 0}
	}
	return nil
}

// Evaluator applies the escalation rules to gate inputs.
type Evaluator struct {
	cfg        Config
	escalateAt anomaly.Severity
}

// NewEvaluator creates an Evaluator from validated configuration.
func NewEvaluator(cfg Config) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{
		cfg:        cfg,
		escalateAt: anomaly.ParseSeverity(cfg.EscalationSeverity),
	}, nil
}

// Decide applies the rules in fixed order and returns the first match:
//
//  1. confidence below the confidence threshold
//  2. anomaly severity at or above the escalation severity
//  3. transaction value at or above the value threshold
//
// When no rule matches, the document passes without approval.
func (e *Evaluator) Decide(in Input) Decision {
	if in.ExtractionConfidence < e.cfg.ConfidenceThreshold {
		return Decision{ApprovalRequired: true, Reason: ReasonLowConfidence}
	}
	if in.MaxSeverity.Rank() >= e.escalateAt.Rank() && in.MaxSeverity != anomaly.SeverityNone {
		return Decision{ApprovalRequired: true, Reason: ReasonAnomalyDetected}
	}
	if in.TransactionValue != nil && *in.TransactionValue >= e.cfg.ValueThreshold {
		return Decision{ApprovalRequired: true, Reason: ReasonHighValue}
	}
	return Decision{}
}
