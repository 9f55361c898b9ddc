package extractions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/ledgergate/ledgergate/internal/documents"
	"github.com/ledgergate/ledgergate/pkg/pagination"
	"github.com/ledgergate/ledgergate/pkg/query"
	"github.com/ledgergate/ledgergate/pkg/repository"
)

type repo struct {
	db         *sql.DB
	extractor  *Extractor
	docs       documents.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an extraction repository implementing the System interface.
// It internally constructs the LLM extractor from the agent configuration.
func New(
	db *sql.DB,
	agentCfg gaconfig.AgentConfig,
	logger *slog.Logger,
	pagination pagination.Config,
	docs documents.System,
) System {
	return &repo{
		db:         db,
		extractor:  NewExtractor(agentCfg, docs, logger),
		docs:       docs,
		logger:     logger.With("system", "extractions"),
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
) (*pagination.PageResult[Result], error) {
	page.Normalize(r.pagination)

	qb := query.NewBuilder(projection, defaultSort)
	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count extractions: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanResult)
	if err != nil {
		return nil, fmt.Errorf("query extractions: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Result, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	res, err := repository.QueryOne(ctx, r.db, q, args, scanResult)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &res, nil
}

func (r *repo) FindByDocument(ctx context.Context, documentID uuid.UUID) (*Result, error) {
	current := false
	q, args := query.NewBuilder(projection).
		WhereEquals("DocumentID", &documentID).
		WhereEquals("Superseded", &current).
		BuildSingleOrNull()

	res, err := repository.QueryOne(ctx, r.db, q, args, scanResult)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &res, nil
}

const selectColumns = `id, document_id, doc_type, fields, confidence, level,
		warnings, model_name, provider_name, extracted_at, superseded`

func (r *repo) Recent(ctx context.Context, exclude uuid.UUID, limit int) ([]Result, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM extractions
		WHERE NOT superseded AND document_id <> $1
		ORDER BY extracted_at DESC
		LIMIT $2`, selectColumns)

	items, err := repository.QueryMany(ctx, r.db, q, []any{exclude, limit}, scanResult)
	if err != nil {
		return nil, fmt.Errorf("query recent extractions: %w", err)
	}
	return items, nil
}

func (r *repo) Extract(ctx context.Context, documentID uuid.UUID) (*Result, error) {
	doc, err := r.docs.Find(ctx, documentID)
	if err != nil {
		return nil, err
	}

	result, err := r.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}

	fieldsJSON, err := marshalFields(result)
	if err != nil {
		return nil, fmt.Errorf("marshal extraction fields: %w", err)
	}

	warningsJSON, err := json.Marshal(result.Warnings)
	if err != nil {
		return nil, fmt.Errorf("marshal extraction warnings: %w", err)
	}

	insertQ := fmt.Sprintf(`
		INSERT INTO extractions(
			document_id, doc_type, fields, confidence, level,
			warnings, model_name, provider_name
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING %s`, selectColumns)

	insertArgs := []any{
		documentID,
		result.Type,
		fieldsJSON,
		result.Confidence,
		result.Level,
		warningsJSON,
		result.ModelName,
		result.ProviderName,
	}

	stored, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Result, error) {
		if _, err := tx.ExecContext(
			ctx,
			"UPDATE extractions SET superseded = TRUE WHERE document_id = $1 AND NOT superseded",
			documentID,
		); err != nil {
			return Result{}, fmt.Errorf("supersede prior extractions: %w", err)
		}

		return repository.QueryOne(ctx, tx, insertQ, insertArgs, scanResult)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("extraction stored",
		"id", stored.ID,
		"document_id", documentID,
		"confidence", stored.Confidence,
	)
	return &stored, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM extractions WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("extraction deleted", "id", id)
	return nil
}
