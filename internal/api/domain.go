package api

import (
	"github.com/ledgergate/ledgergate/internal/actions"
	"github.com/ledgergate/ledgergate/internal/analyses"
	"github.com/ledgergate/ledgergate/internal/anomaly"
	"github.com/ledgergate/ledgergate/internal/approvals"
	"github.com/ledgergate/ledgergate/internal/config"
	"github.com/ledgergate/ledgergate/internal/documents"
	"github.com/ledgergate/ledgergate/internal/extractions"
	"github.com/ledgergate/ledgergate/internal/gate"
	"github.com/ledgergate/ledgergate/internal/pipeline"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Documents   documents.System
	Extractions extractions.System
	Analyses    analyses.System
	Approvals   approvals.System
	Pipeline    *pipeline.Orchestrator
}

// NewDomain creates all domain systems from the API runtime. The gate
// evaluator is built from validated configuration, so construction fails
// only on programmer error upstream of config finalization.
func NewDomain(cfg *config.Config, runtime *Runtime) (*Domain, error) {
	db := runtime.Database.Connection()

	docsSystem := documents.New(
		db,
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	extractionsSystem := extractions.New(
		db,
		runtime.Agent,
		runtime.Logger,
		runtime.Pagination,
		docsSystem,
	)

	analysesSystem := analyses.New(
		db,
		anomaly.NewEngine(cfg.Anomaly),
		extractionsSystem,
		runtime.Logger,
		runtime.Pagination,
	)

	approvalsSystem := approvals.New(
		db,
		runtime.Logger,
		runtime.Pagination,
	)

	evaluator, err := gate.NewEvaluator(cfg.Gate)
	if err != nil {
		return nil, err
	}

	orchestrator := pipeline.New(cfg.Pipeline, pipeline.Dependencies{
		Store:     pipeline.NewStore(db),
		Extractor: extractionsSystem,
		Analyzer:  analysesSystem,
		Actor: actions.NewReportActor(
			docsSystem,
			extractionsSystem,
			runtime.Storage,
			runtime.Logger,
		),
		Approvals: approvalsSystem,
		Gate:      evaluator,
		Executor:  runtime.Executor,
		Broker:    runtime.Broker,
		Metrics:   runtime.Metrics,
		Logger:    runtime.Logger,
	})

	return &Domain{
		Documents:   docsSystem,
		Extractions: extractionsSystem,
		Analyses:    analysesSystem,
		Approvals:   approvalsSystem,
		Pipeline:    orchestrator,
	}, nil
}
