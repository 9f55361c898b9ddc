// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, storage, events, metrics,
// resilience) that domain systems require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/ledgergate/ledgergate/internal/config"
	"github.com/ledgergate/ledgergate/internal/metrics"
	"github.com/ledgergate/ledgergate/pkg/database"
	"github.com/ledgergate/ledgergate/pkg/events"
	"github.com/ledgergate/ledgergate/pkg/lifecycle"
	"github.com/ledgergate/ledgergate/pkg/resilience"
	"github.com/ledgergate/ledgergate/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// It provides a single point of initialization for lifecycle coordination,
// logging, database access, blob storage, status events, metrics, and the
// resilience executor guarding collaborator calls.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Agent     gaconfig.AgentConfig
	Broker    *events.Broker
	Metrics   *metrics.Metrics
	Executor  *resilience.Executor

	natsSink *events.NATSSink
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	var sinks []events.Sink
	var natsSink *events.NATSSink
	if cfg.Events.Enabled {
		natsSink, err = events.NewNATSSink(cfg.Events.URL, cfg.Events.Subject, logger)
		if err != nil {
			return nil, fmt.Errorf("events init failed: %w", err)
		}
		sinks = append(sinks, natsSink)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Agent:     cfg.Agent,
		Broker:    events.NewBroker(logger, sinks...),
		Metrics:   metrics.New(),
		Executor:  resilience.NewExecutor(cfg.Resilience, logger),
		natsSink:  natsSink,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
// Database and storage hooks are registered for startup and shutdown
// coordination; the NATS sink, when configured, drains on shutdown.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}

	if i.natsSink != nil {
		i.Lifecycle.OnShutdown(func() {
			i.natsSink.Close()
		})
	}
	return nil
}
