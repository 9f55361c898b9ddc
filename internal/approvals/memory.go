package approvals

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/pkg/pagination"
)

// memory is an in-memory System used by tests and single-process
// deployments without a database. The mutex makes Request atomic so the
// one-pending-per-document invariant holds under concurrent callers.
type memory struct {
	logger     *slog.Logger
	pagination pagination.Config
	notifier   notifier

	mu        sync.Mutex
	approvals map[uuid.UUID]*Approval
	order     []uuid.UUID
}

// NewMemory creates an in-memory approval System.
func NewMemory(logger *slog.Logger, pagination pagination.Config) System {
	return &memory{
		logger:     logger.With("system", "approvals"),
		pagination: pagination,
		approvals:  make(map[uuid.UUID]*Approval),
	}
}

func (m *memory) Handler() *Handler {
	return NewHandler(m, m.logger, m.pagination)
}

func (m *memory) OnResolution(fn Listener) {
	m.notifier.register(fn)
}

func (m *memory) Request(_ context.Context, cmd CreateCommand) (*Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.approvals {
		if a.DocumentID == cmd.DocumentID && a.Status == StatusPending {
			return nil, ErrAlreadyPending
		}
	}

	a := &Approval{
		ID:          uuid.New(),
		DocumentID:  cmd.DocumentID,
		RequestType: cmd.RequestType,
		Reason:      cmd.Reason,
		Context:     cmd.Context,
		Status:      StatusPending,
		RequestedAt: time.Now().UTC(),
	}
	m.approvals[a.ID] = a
	m.order = append(m.order, a.ID)

	m.logger.Info("approval requested",
		"id", a.ID,
		"document_id", a.DocumentID,
		"request_type", a.RequestType,
		"reason", a.Reason,
	)

	copied := *a
	return &copied, nil
}

func (m *memory) Resolve(_ context.Context, id uuid.UUID, decision Decision) (*Approval, error) {
	if strings.TrimSpace(decision.Reviewer) == "" {
		return nil, ErrNoReviewer
	}

	m.mu.Lock()
	a, ok := m.approvals[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	if a.Status != StatusPending {
		m.mu.Unlock()
		return nil, ErrAlreadyResolved
	}

	a.Status = StatusRejected
	if decision.Approved {
		a.Status = StatusApproved
	}
	now := time.Now().UTC()
	a.ResolvedAt = &now
	a.Reviewer = &decision.Reviewer
	if decision.Note != "" {
		a.Note = &decision.Note
	}

	copied := *a
	m.mu.Unlock()

	m.logger.Info("approval resolved",
		"id", copied.ID,
		"document_id", copied.DocumentID,
		"status", copied.Status,
		"reviewer", decision.Reviewer,
	)

	m.notifier.notify(copied)
	return &copied, nil
}

func (m *memory) Withdraw(_ context.Context, documentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.approvals {
		if a.DocumentID == documentID && a.Status == StatusPending {
			a.Status = StatusWithdrawn
			now := time.Now().UTC()
			a.ResolvedAt = &now
			m.logger.Info("pending approval withdrawn", "document_id", documentID)
		}
	}
	return nil
}

func (m *memory) Find(_ context.Context, id uuid.UUID) (*Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.approvals[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *memory) FindPending(_ context.Context, documentID uuid.UUID) (*Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		a := m.approvals[id]
		if a.DocumentID == documentID && a.Status == StatusPending {
			copied := *a
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memory) ListPending(
	_ context.Context,
	page pagination.PageRequest,
) (*pagination.PageResult[Approval], error) {
	page.Normalize(m.pagination)

	m.mu.Lock()
	pending := make([]Approval, 0)
	for _, id := range m.order {
		a := m.approvals[id]
		if a.Status == StatusPending {
			pending = append(pending, *a)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].RequestedAt.Before(pending[j].RequestedAt)
	})

	total := len(pending)
	start := min(page.Offset(), total)
	end := min(start+page.PageSize, total)

	result := pagination.NewPageResult(pending[start:end], total, page.Page, page.PageSize)
	return &result, nil
}

func (m *memory) ListByDocument(_ context.Context, documentID uuid.UUID) ([]Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]Approval, 0)
	for i := len(m.order) - 1; i >= 0; i-- {
		a := m.approvals[m.order[i]]
		if a.DocumentID == documentID {
			items = append(items, *a)
		}
	}
	return items, nil
}
