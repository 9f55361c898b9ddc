package approvals

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/pkg/pagination"
	"github.com/ledgergate/ledgergate/pkg/query"
	"github.com/ledgergate/ledgergate/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
	notifier   notifier
}

// New creates an approval repository implementing the System interface.
// The one-pending-per-document invariant is enforced by a partial unique
// index on (document_id) WHERE status = 'pending'.
func New(
	db *sql.DB,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "approvals"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) OnResolution(fn Listener) {
	r.notifier.register(fn)
}

const selectColumns = `id, document_id, request_type, reason, context,
		status, requested_at, resolved_at, reviewer, note`

func (r *repo) Request(ctx context.Context, cmd CreateCommand) (*Approval, error) {
	contextJSON, err := json.Marshal(cmd.Context)
	if err != nil {
		return nil, fmt.Errorf("marshal approval context: %w", err)
	}

	insertQ := fmt.Sprintf(`
		INSERT INTO approvals(document_id, request_type, reason, context)
		VALUES ($1, $2, $3, $4)
		RETURNING %s`, selectColumns)

	insertArgs := []any{cmd.DocumentID, cmd.RequestType, cmd.Reason, contextJSON}

	a, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Approval, error) {
		return repository.QueryOne(ctx, tx, insertQ, insertArgs, scanApproval)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrAlreadyPending)
	}

	r.logger.Info("approval requested",
		"id", a.ID,
		"document_id", a.DocumentID,
		"request_type", a.RequestType,
		"reason", a.Reason,
	)
	return &a, nil
}

func (r *repo) Resolve(ctx context.Context, id uuid.UUID, decision Decision) (*Approval, error) {
	if strings.TrimSpace(decision.Reviewer) == "" {
		return nil, ErrNoReviewer
	}

	status := StatusRejected
	if decision.Approved {
		status = StatusApproved
	}

	resolveQ := fmt.Sprintf(`
		UPDATE approvals
		SET status = $1, reviewer = $2, note = NULLIF($3, ''), resolved_at = NOW()
		WHERE id = $4 AND status = 'pending'
		RETURNING %s`, selectColumns)

	resolveArgs := []any{status, decision.Reviewer, decision.Note, id}

	a, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Approval, error) {
		return repository.QueryOne(ctx, tx, resolveQ, resolveArgs, scanApproval)
	})

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a missing approval from a second resolution.
			if _, findErr := r.Find(ctx, id); findErr == nil {
				return nil, ErrAlreadyResolved
			}
			return nil, ErrNotFound
		}
		return nil, err
	}

	r.logger.Info("approval resolved",
		"id", a.ID,
		"document_id", a.DocumentID,
		"status", a.Status,
		"reviewer", decision.Reviewer,
	)

	r.notifier.notify(a)
	return &a, nil
}

func (r *repo) Withdraw(ctx context.Context, documentID uuid.UUID) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE approvals
		 SET status = 'withdrawn', resolved_at = NOW()
		 WHERE document_id = $1 AND status = 'pending'`,
		documentID,
	)
	if err != nil {
		return fmt.Errorf("withdraw approval: %w", err)
	}

	r.logger.Info("pending approval withdrawn", "document_id", documentID)
	return nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Approval, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	a, err := repository.QueryOne(ctx, r.db, q, args, scanApproval)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrAlreadyPending)
	}
	return &a, nil
}

func (r *repo) FindPending(ctx context.Context, documentID uuid.UUID) (*Approval, error) {
	pending := string(StatusPending)
	q, args := query.NewBuilder(projection).
		WhereEquals("DocumentID", &documentID).
		WhereEquals("Status", &pending).
		BuildSingleOrNull()

	a, err := repository.QueryOne(ctx, r.db, q, args, scanApproval)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrAlreadyPending)
	}
	return &a, nil
}

func (r *repo) ListPending(
	ctx context.Context,
	page pagination.PageRequest,
) (*pagination.PageResult[Approval], error) {
	page.Normalize(r.pagination)

	pending := string(StatusPending)
	qb := query.NewBuilder(projection, pendingSort).
		WhereEquals("Status", &pending)

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count pending approvals: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanApproval)
	if err != nil {
		return nil, fmt.Errorf("query pending approvals: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]Approval, error) {
	q, args := query.NewBuilder(projection, defaultSort).
		WhereEquals("DocumentID", &documentID).
		Build()

	items, err := repository.QueryMany(ctx, r.db, q, args, scanApproval)
	if err != nil {
		return nil, fmt.Errorf("query document approvals: %w", err)
	}
	return items, nil
}
