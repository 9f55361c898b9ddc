package api

import (
	"net/http"

	"github.com/ledgergate/ledgergate/internal/config"
	"github.com/ledgergate/ledgergate/internal/pipeline"
	"github.com/ledgergate/ledgergate/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) {
	routes.Register(
		mux,
		domain.Documents.Handler(cfg.API.MaxUploadSizeBytes()).Routes(),
		domain.Extractions.Handler().Routes(),
		domain.Analyses.Handler().Routes(),
		domain.Approvals.Handler().Routes(),
		pipeline.NewHandler(domain.Pipeline, runtime.Logger).Routes(),
	)
}
