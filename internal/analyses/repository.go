package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/internal/anomaly"
	"github.com/ledgergate/ledgergate/internal/extractions"
	"github.com/ledgergate/ledgergate/pkg/pagination"
	"github.com/ledgergate/ledgergate/pkg/query"
	"github.com/ledgergate/ledgergate/pkg/repository"
)

// HistoryLimit caps how many recent extractions an analysis run compares
// against.
const HistoryLimit = 50

// TrendLimit caps how many recent extractions feed a trend report.
const TrendLimit = 200

type repo struct {
	db         *sql.DB
	engine     *anomaly.Engine
	ext        extractions.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an analysis repository implementing the System interface.
func New(
	db *sql.DB,
	engine *anomaly.Engine,
	ext extractions.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		engine:     engine,
		ext:        ext,
		logger:     logger.With("system", "analyses"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Analysis], error) {
	page.Normalize(r.pagination)

	qb := query.NewBuilder(projection, defaultSort)
	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count analyses: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanAnalysis)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	a, err := repository.QueryOne(ctx, r.db, q, args, scanAnalysis)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &a, nil
}

func (r *repo) FindByDocument(ctx context.Context, documentID uuid.UUID) (*Analysis, error) {
	q, args := query.NewBuilder(projection, defaultSort).
		WhereEquals("DocumentID", &documentID).
		BuildSingleOrNull()

	a, err := repository.QueryOne(ctx, r.db, q, args, scanAnalysis)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &a, nil
}

func (r *repo) Analyze(ctx context.Context, documentID uuid.UUID) (*Analysis, error) {
	current, err := r.ext.FindByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load current extraction: %w", err)
	}

	history, err := r.ext.Recent(ctx, documentID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load extraction history: %w", err)
	}

	records := []anomaly.Record{current.AnomalyRecord()}
	historyRecords := make([]anomaly.Record, 0, len(history))
	for i := range history {
		historyRecords = append(historyRecords, history[i].AnomalyRecord())
	}

	result := r.engine.Analyze(records, historyRecords)

	findingsJSON, err := json.Marshal(result.Findings)
	if err != nil {
		return nil, fmt.Errorf("marshal findings: %w", err)
	}

	insertQ := `
		INSERT INTO analyses(
			document_id, findings, document_count, total_value,
			average_value, max_severity, history_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, document_id, findings, document_count, total_value,
				  average_value, max_severity, history_count, created_at`

	insertArgs := []any{
		documentID,
		findingsJSON,
		result.Metrics.DocumentCount,
		result.Metrics.TotalValue,
		result.Metrics.AverageValue,
		result.MaxSeverity(),
		len(historyRecords),
	}

	a, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Analysis, error) {
		return repository.QueryOne(ctx, tx, insertQ, insertArgs, scanAnalysis)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("document analyzed",
		"id", a.ID,
		"document_id", documentID,
		"findings", len(a.Findings),
		"max_severity", a.MaxSeverity,
	)
	return &a, nil
}

func (r *repo) Trends(ctx context.Context) (*anomaly.TrendReport, error) {
	recent, err := r.ext.Recent(ctx, uuid.Nil, TrendLimit)
	if err != nil {
		return nil, fmt.Errorf("load recent extractions: %w", err)
	}

	records := make([]anomaly.Record, 0, len(recent))
	for i := range recent {
		records = append(records, recent[i].AnomalyRecord())
	}

	report := anomaly.SpendingTrends(records)

	r.logger.Info("trend report built",
		"data_points", report.DataPoints,
		"vendors", report.TotalVendors,
	)
	return &report, nil
}

func (r *repo) Compare(ctx context.Context, documentIDs []uuid.UUID) (*anomaly.Comparison, error) {
	if len(documentIDs) < 2 {
		return nil, ErrComparisonTooFew
	}

	records := make([]anomaly.Record, 0, len(documentIDs))
	for _, id := range documentIDs {
		ext, err := r.ext.FindByDocument(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load extraction for %s: %w", id, err)
		}
		records = append(records, ext.AnomalyRecord())
	}

	cmp := anomaly.CompareInvoices(records)
	return &cmp, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM analyses WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("analysis deleted", "id", id)
	return nil
}
