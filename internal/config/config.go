package config

import (
	"fmt"
	"os"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"github.com/pelletier/go-toml/v2"

	"github.com/ledgergate/ledgergate/internal/anomaly"
	"github.com/ledgergate/ledgergate/internal/gate"
	"github.com/ledgergate/ledgergate/internal/pipeline"
	"github.com/ledgergate/ledgergate/pkg/database"
	"github.com/ledgergate/ledgergate/pkg/resilience"
	"github.com/ledgergate/ledgergate/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvLedgergateEnv             = "LEDGERGATE_ENV"
	EnvLedgergateShutdownTimeout = "LEDGERGATE_SHUTDOWN_TIMEOUT"
	EnvLedgergateVersion         = "LEDGERGATE_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "LEDGERGATE_DB_HOST",
	Port:            "LEDGERGATE_DB_PORT",
	Name:            "LEDGERGATE_DB_NAME",
	User:            "LEDGERGATE_DB_USER",
	Password:        "LEDGERGATE_DB_PASSWORD",
	SSLMode:         "LEDGERGATE_DB_SSL_MODE",
	MaxOpenConns:    "LEDGERGATE_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "LEDGERGATE_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "LEDGERGATE_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "LEDGERGATE_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "LEDGERGATE_STORAGE_CONTAINER_NAME",
	ConnectionString: "LEDGERGATE_STORAGE_CONNECTION_STRING",
}

// Config is the root configuration for the Ledgergate service.
type Config struct {
	Server     ServerConfig         `toml:"server"`
	Database   database.Config      `toml:"database"`
	Storage    storage.Config       `toml:"storage"`
	Agent      gaconfig.AgentConfig `toml:"agent"`
	API        APIConfig            `toml:"api"`
	Gate       gate.Config          `toml:"gate"`
	Anomaly    anomaly.Config       `toml:"anomaly"`
	Pipeline   pipeline.Config      `toml:"pipeline"`
	Resilience resilience.Config    `toml:"resilience"`
	Events     EventsConfig         `toml:"events"`

	ShutdownTimeout string `toml:"shutdown_timeout"`
	Version         string `toml:"version"`
}

// Env returns the LEDGERGATE_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvLedgergateEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Agent.Merge(&overlay.Agent)
	c.API.Merge(&overlay.API)
	c.Gate.Merge(&overlay.Gate)
	c.Anomaly.Merge(&overlay.Anomaly)
	c.Pipeline.Merge(&overlay.Pipeline)
	c.Resilience.Merge(&overlay.Resilience)
	c.Events.Merge(&overlay.Events)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := FinalizeAgent(&c.Agent); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := FinalizeGate(&c.Gate); err != nil {
		return fmt.Errorf("gate: %w", err)
	}
	if err := FinalizeAnomaly(&c.Anomaly); err != nil {
		return fmt.Errorf("anomaly: %w", err)
	}
	if err := c.Events.Finalize(); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}

	pipelineDefaults := pipeline.DefaultConfig()
	pipelineDefaults.Merge(&c.Pipeline)
	c.Pipeline = pipelineDefaults

	resilienceDefaults := resilience.DefaultConfig()
	resilienceDefaults.Merge(&c.Resilience)
	c.Resilience = resilienceDefaults
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvLedgergateShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvLedgergateVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvLedgergateEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
