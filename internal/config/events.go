package config

import (
	"fmt"
	"os"

	"github.com/nats-io/nats.go"
)

const (
	EnvEventsEnabled = "LEDGERGATE_EVENTS_ENABLED"
	EnvEventsURL     = "LEDGERGATE_EVENTS_URL"
	EnvEventsSubject = "LEDGERGATE_EVENTS_SUBJECT"
)

// EventsConfig holds the NATS status event sink settings. When disabled,
// status events are delivered to in-process subscribers only.
type EventsConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *EventsConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. Enabled always applies.
func (c *EventsConfig) Merge(overlay *EventsConfig) {
	c.Enabled = overlay.Enabled
	if overlay.URL != "" {
		c.URL = overlay.URL
	}
	if overlay.Subject != "" {
		c.Subject = overlay.Subject
	}
}

func (c *EventsConfig) loadDefaults() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Subject == "" {
		c.Subject = "ledgergate.pipeline"
	}
}

func (c *EventsConfig) loadEnv() {
	if v := os.Getenv(EnvEventsEnabled); v != "" {
		c.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv(EnvEventsURL); v != "" {
		c.URL = v
	}
	if v := os.Getenv(EnvEventsSubject); v != "" {
		c.Subject = v
	}
}

func (c *EventsConfig) validate() error {
	if c.Enabled && c.URL == "" {
		return fmt.Errorf("events enabled without url")
	}
	return nil
}
