package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/pkg/repository"
)

// postgresStore persists pipeline state in the pipeline_states table.
type postgresStore struct {
	db *sql.DB
}

// NewStore creates a PostgreSQL-backed Store.
func NewStore(db *sql.DB) Store {
	return &postgresStore{db: db}
}

const stateColumns = `document_id, stage, last_error, failed_stage,
		pending_approval_id, stage_entered_at, updated_at`

func scanState(s repository.Scanner) (State, error) {
	var st State
	err := s.Scan(
		&st.DocumentID,
		&st.Stage,
		&st.LastError,
		&st.FailedStage,
		&st.PendingApprovalID,
		&st.StageEnteredAt,
		&st.UpdatedAt,
	)
	return st, err
}

func (p *postgresStore) Get(ctx context.Context, documentID uuid.UUID) (*State, error) {
	q := fmt.Sprintf(
		"SELECT %s FROM pipeline_states WHERE document_id = $1",
		stateColumns,
	)

	st, err := repository.QueryOne(ctx, p.db, q, []any{documentID}, scanState)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query pipeline state: %w", err)
	}
	return &st, nil
}

func (p *postgresStore) Create(ctx context.Context, state State) error {
	q := `
		INSERT INTO pipeline_states(
			document_id, stage, last_error, failed_stage,
			pending_approval_id, stage_entered_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (document_id) DO NOTHING`

	res, err := p.db.ExecContext(
		ctx, q,
		state.DocumentID,
		state.Stage,
		state.LastError,
		state.FailedStage,
		state.PendingApprovalID,
		state.StageEnteredAt,
	)
	if err != nil {
		return fmt.Errorf("create pipeline state: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create pipeline state: %w", err)
	}
	if rows == 0 {
		return ErrAlreadySubmitted
	}
	return nil
}

func (p *postgresStore) Put(ctx context.Context, state State) error {
	q := `
		INSERT INTO pipeline_states(
			document_id, stage, last_error, failed_stage,
			pending_approval_id, stage_entered_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (document_id) DO UPDATE SET
			stage = EXCLUDED.stage,
			last_error = EXCLUDED.last_error,
			failed_stage = EXCLUDED.failed_stage,
			pending_approval_id = EXCLUDED.pending_approval_id,
			stage_entered_at = EXCLUDED.stage_entered_at,
			updated_at = NOW()`

	_, err := p.db.ExecContext(
		ctx, q,
		state.DocumentID,
		state.Stage,
		state.LastError,
		state.FailedStage,
		state.PendingApprovalID,
		state.StageEnteredAt,
	)
	if err != nil {
		return fmt.Errorf("put pipeline state: %w", err)
	}
	return nil
}

func (p *postgresStore) List(ctx context.Context, stage *Stage) ([]State, error) {
	q := fmt.Sprintf("SELECT %s FROM pipeline_states", stateColumns)
	var args []any
	if stage != nil {
		q += " WHERE stage = $1"
		args = append(args, *stage)
	}
	q += " ORDER BY updated_at DESC"

	states, err := repository.QueryMany(ctx, p.db, q, args, scanState)
	if err != nil {
		return nil, fmt.Errorf("list pipeline states: %w", err)
	}
	return states, nil
}

func (p *postgresStore) Delete(ctx context.Context, documentID uuid.UUID) error {
	if err := repository.ExecExpectOne(
		ctx, p.db,
		"DELETE FROM pipeline_states WHERE document_id = $1",
		documentID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("delete pipeline state: %w", err)
	}
	return nil
}

// memoryStore is an in-memory Store for tests and database-free runs.
type memoryStore struct {
	mu     sync.RWMutex
	states map[uuid.UUID]State
}

// NewMemoryStore creates an in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{states: make(map[uuid.UUID]State)}
}

func (m *memoryStore) Get(_ context.Context, documentID uuid.UUID) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.states[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	return &st, nil
}

func (m *memoryStore) Create(_ context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.states[state.DocumentID]; ok {
		return ErrAlreadySubmitted
	}

	state.UpdatedAt = time.Now().UTC()
	m.states[state.DocumentID] = state
	return nil
}

func (m *memoryStore) Put(_ context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state.UpdatedAt = time.Now().UTC()
	m.states[state.DocumentID] = state
	return nil
}

func (m *memoryStore) List(_ context.Context, stage *Stage) ([]State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make([]State, 0, len(m.states))
	for _, st := range m.states {
		if stage == nil || st.Stage == *stage {
			states = append(states, st)
		}
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].UpdatedAt.After(states[j].UpdatedAt)
	})
	return states, nil
}

func (m *memoryStore) Delete(_ context.Context, documentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.states[documentID]; !ok {
		return ErrNotFound
	}
	delete(m.states, documentID)
	return nil
}
