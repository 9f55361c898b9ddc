// Package actions implements the final pipeline action: assembling a
// processing report for an approved document and writing it to blob storage.
package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/internal/analyses"
	"github.com/ledgergate/ledgergate/internal/anomaly"
	"github.com/ledgergate/ledgergate/internal/collab"
	"github.com/ledgergate/ledgergate/internal/documents"
	"github.com/ledgergate/ledgergate/internal/extractions"
	"github.com/ledgergate/ledgergate/pkg/storage"
)

// Report is the final artifact written for a processed document.
type Report struct {
	DocumentID uuid.UUID      `json:"document_id"`
	Filename   string         `json:"filename"`
	Type       documents.Type `json:"type"`

	Extraction *extractions.Result `json:"extraction,omitempty"`

	// Analysis is absent when the document was approved straight from the
	// extraction checkpoint.
	Findings    []anomaly.Finding `json:"findings,omitempty"`
	Metrics     *anomaly.Metrics  `json:"metrics,omitempty"`
	MaxSeverity anomaly.Severity  `json:"max_severity,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// ReportActor writes the processing report to blob storage under
// reports/<document_id>/report.json.
type ReportActor struct {
	docs    documents.System
	ext     extractions.System
	storage storage.System
	logger  *slog.Logger
}

// NewReportActor creates a ReportActor.
func NewReportActor(
	docs documents.System,
	ext extractions.System,
	store storage.System,
	logger *slog.Logger,
) *ReportActor {
	return &ReportActor{
		docs:    docs,
		ext:     ext,
		storage: store,
		logger:  logger.With("system", "actions"),
	}
}

// Act assembles and stores the report. Storage failures are transient;
// missing source records are permanent.
func (a *ReportActor) Act(ctx context.Context, documentID uuid.UUID, analysis *analyses.Analysis) error {
	doc, err := a.docs.Find(ctx, documentID)
	if err != nil {
		return collab.Permanent(fmt.Errorf("load document: %w", err))
	}

	ext, err := a.ext.FindByDocument(ctx, documentID)
	if err != nil {
		return collab.Permanent(fmt.Errorf("load extraction: %w", err))
	}

	report := Report{
		DocumentID:  documentID,
		Filename:    doc.Filename,
		Type:        doc.Type,
		Extraction:  ext,
		GeneratedAt: time.Now().UTC(),
	}

	if analysis != nil {
		report.Findings = analysis.Findings
		report.Metrics = &analysis.Metrics
		report.MaxSeverity = analysis.MaxSeverity
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return collab.Permanent(fmt.Errorf("marshal report: %w", err))
	}

	key := fmt.Sprintf("reports/%s/report.json", documentID)
	if err := a.storage.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return collab.Transient(fmt.Errorf("upload report: %w", err))
	}

	a.logger.Info("report written",
		"document_id", documentID,
		"key", key,
		"findings", len(report.Findings),
	)
	return nil
}
