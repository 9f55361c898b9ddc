package approvals_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ledgergate/ledgergate/internal/approvals"
	"github.com/ledgergate/ledgergate/pkg/pagination"
)

var approvalColumns = []string{
	"id", "document_id", "request_type", "reason", "context",
	"status", "requested_at", "resolved_at", "reviewer", "note",
}

func newRepo(t *testing.T) (approvals.System, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return approvals.New(db, testLogger(), pagination.Config{DefaultPageSize: 10, MaxPageSize: 100}), mock
}

func pendingRow(id, documentID uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows(approvalColumns).AddRow(
		id.String(), documentID.String(), "extraction_approval", "low_confidence", []byte(`{"confidence":0.5}`),
		"pending", time.Now().UTC(), nil, nil, nil,
	)
}

func TestRepoRequest(t *testing.T) {
	repo, mock := newRepo(t)

	id := uuid.New()
	docID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO approvals`).
		WithArgs(docID, approvals.TypeExtraction, "low_confidence", []byte(`{"confidence":0.5}`)).
		WillReturnRows(pendingRow(id, docID))
	mock.ExpectCommit()

	a, err := repo.Request(context.Background(), approvals.CreateCommand{
		DocumentID:  docID,
		RequestType: approvals.TypeExtraction,
		Reason:      "low_confidence",
		Context:     map[string]any{"confidence": 0.5},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if a.ID != id || a.Status != approvals.StatusPending {
		t.Errorf("got %+v, want id %s status pending", a, id)
	}
	if a.Context["confidence"] != 0.5 {
		t.Errorf("context: got %v, want confidence 0.5", a.Context)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepoRequestDuplicateMapsToAlreadyPending(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO approvals`).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := repo.Request(context.Background(), approvals.CreateCommand{
		DocumentID:  uuid.New(),
		RequestType: approvals.TypeExtraction,
		Reason:      "low_confidence",
	})
	if !errors.Is(err, approvals.ErrAlreadyPending) {
		t.Errorf("got %v, want ErrAlreadyPending", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepoResolve(t *testing.T) {
	repo, mock := newRepo(t)

	id := uuid.New()
	docID := uuid.New()
	now := time.Now().UTC()
	reviewer := "reviewer@ledgergate.dev"

	rows := sqlmock.NewRows(approvalColumns).AddRow(
		id.String(), docID.String(), "extraction_approval", "low_confidence", []byte(`{}`),
		"approved", now, now, reviewer, nil,
	)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE approvals`).
		WithArgs(approvals.StatusApproved, reviewer, "", id).
		WillReturnRows(rows)
	mock.ExpectCommit()

	a, err := repo.Resolve(context.Background(), id, approvals.Decision{
		Approved: true,
		Reviewer: reviewer,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if a.Status != approvals.StatusApproved {
		t.Errorf("status: got %q, want approved", a.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepoResolveAlreadyResolved(t *testing.T) {
	repo, mock := newRepo(t)

	id := uuid.New()
	docID := uuid.New()
	now := time.Now().UTC()

	// No pending row matches the UPDATE, but the approval exists.
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE approvals`).
		WillReturnRows(sqlmock.NewRows(approvalColumns))
	mock.ExpectRollback()
	mock.ExpectQuery(`FROM public\.approvals`).
		WillReturnRows(sqlmock.NewRows(approvalColumns).AddRow(
			id.String(), docID.String(), "extraction_approval", "low_confidence", []byte(`{}`),
			"approved", now, now, "reviewer@ledgergate.dev", nil,
		))

	_, err := repo.Resolve(context.Background(), id, approvals.Decision{
		Approved: false,
		Reviewer: "reviewer@ledgergate.dev",
	})
	if !errors.Is(err, approvals.ErrAlreadyResolved) {
		t.Errorf("got %v, want ErrAlreadyResolved", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepoResolveNotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE approvals`).
		WillReturnRows(sqlmock.NewRows(approvalColumns))
	mock.ExpectRollback()
	mock.ExpectQuery(`FROM public\.approvals`).
		WillReturnRows(sqlmock.NewRows(approvalColumns))

	_, err := repo.Resolve(context.Background(), uuid.New(), approvals.Decision{
		Approved: true,
		Reviewer: "reviewer@ledgergate.dev",
	})
	if !errors.Is(err, approvals.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepoWithdraw(t *testing.T) {
	repo, mock := newRepo(t)

	docID := uuid.New()
	mock.ExpectExec(`UPDATE approvals`).
		WithArgs(docID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Withdraw(context.Background(), docID); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
