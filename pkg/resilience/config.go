package resilience

import "time"

// Config holds retry and circuit breaker parameters for collaborator calls.
type Config struct {
	RetryMaxAttempts    int     `toml:"retry_max_attempts"`
	RetryInitialBackoff string  `toml:"retry_initial_backoff"`
	RetryMaxBackoff     string  `toml:"retry_max_backoff"`
	RetryMultiplier     float64 `toml:"retry_multiplier"`

	BreakerEnabled          bool    `toml:"breaker_enabled"`
	BreakerMinRequests      uint32  `toml:"breaker_min_requests"`
	BreakerFailureRatio     float64 `toml:"breaker_failure_ratio"`
	BreakerOpenTimeout      string  `toml:"breaker_open_timeout"`
	BreakerHalfOpenMaxCalls uint32  `toml:"breaker_half_open_max_calls"`
}

// DefaultConfig returns the default retry and breaker parameters:
// three attempts with exponential backoff, breaker disabled until enabled by config.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: "100ms",
		RetryMaxBackoff:     "2s",
		RetryMultiplier:     2.0,

		BreakerEnabled:          false,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      "30s",
		BreakerHalfOpenMaxCalls: 2,
	}
}

// Merge overwrites non-zero fields from overlay. BreakerEnabled always applies.
func (c *Config) Merge(overlay *Config) {
	if overlay.RetryMaxAttempts != 0 {
		c.RetryMaxAttempts = overlay.RetryMaxAttempts
	}
	if overlay.RetryInitialBackoff != "" {
		c.RetryInitialBackoff = overlay.RetryInitialBackoff
	}
	if overlay.RetryMaxBackoff != "" {
		c.RetryMaxBackoff = overlay.RetryMaxBackoff
	}
	if overlay.RetryMultiplier != 0 {
		c.RetryMultiplier = overlay.RetryMultiplier
	}
	c.BreakerEnabled = overlay.BreakerEnabled
	if overlay.BreakerMinRequests != 0 {
		c.BreakerMinRequests = overlay.BreakerMinRequests
	}
	if overlay.BreakerFailureRatio != 0 {
		c.BreakerFailureRatio = overlay.BreakerFailureRatio
	}
	if overlay.BreakerOpenTimeout != "" {
		c.BreakerOpenTimeout = overlay.BreakerOpenTimeout
	}
	if overlay.BreakerHalfOpenMaxCalls != 0 {
		c.BreakerHalfOpenMaxCalls = overlay.BreakerHalfOpenMaxCalls
	}
}

// RetryInitialBackoffDuration returns RetryInitialBackoff as a time.Duration.
func (c *Config) RetryInitialBackoffDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryInitialBackoff)
	return d
}

// RetryMaxBackoffDuration returns RetryMaxBackoff as a time.Duration.
func (c *Config) RetryMaxBackoffDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryMaxBackoff)
	return d
}

// BreakerOpenTimeoutDuration returns BreakerOpenTimeout as a time.Duration.
func (c *Config) BreakerOpenTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.BreakerOpenTimeout)
	return d
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoffDuration() <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoffDuration() <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoffDuration() < out.RetryInitialBackoffDuration() {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeoutDuration() <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}
