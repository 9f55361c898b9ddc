// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/ledgergate/ledgergate/internal/config"
	"github.com/ledgergate/ledgergate/internal/infrastructure"
	"github.com/ledgergate/ledgergate/internal/pipeline"
	"github.com/ledgergate/ledgergate/pkg/middleware"
	"github.com/ledgergate/ledgergate/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// The returned orchestrator must be registered with the lifecycle
// coordinator so mid-flight documents resume on startup.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, *pipeline.Orchestrator, error) {
	runtime := NewRuntime(cfg, infra)

	domain, err := NewDomain(cfg, runtime)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	registerRoutes(mux, domain, cfg, runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Infrastructure.Logger))

	return m, domain.Pipeline, nil
}
