package pipeline

// Config tunes orchestrator behavior.
type Config struct {
	// MaxConcurrency bounds how many documents a batch submission
	// processes in parallel.
	MaxConcurrency int `toml:"max_concurrency"`
	// RequireActionApproval raises an action approval checkpoint before
	// the final action even when the gate passes the document.
	RequireActionApproval bool `toml:"require_action_approval"`
}

// DefaultConfig returns the standard orchestrator parameters.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:        4,
		RequireActionApproval: false,
	}
}

// Merge overwrites non-zero fields from overlay. RequireActionApproval
// always applies.
func (c *Config) Merge(overlay *Config) {
	if overlay.MaxConcurrency != 0 {
		c.MaxConcurrency = overlay.MaxConcurrency
	}
	c.RequireActionApproval = overlay.RequireActionApproval
}
