package approvals

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/pkg/query"
	"github.com/ledgergate/ledgergate/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "approvals", "ap").
	Project("id", "ID").
	Project("document_id", "DocumentID").
	Project("request_type", "RequestType").
	Project("reason", "Reason").
	Project("context", "Context").
	Project("status", "Status").
	Project("requested_at", "RequestedAt").
	Project("resolved_at", "ResolvedAt").
	Project("reviewer", "Reviewer").
	Project("note", "Note")

// Pending approvals surface oldest first so reviewers work the queue in
// arrival order.
var pendingSort = query.SortField{
	Field:      "RequestedAt",
	Descending: false,
}

var defaultSort = query.SortField{
	Field:      "RequestedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for approval queries.
type Filters struct {
	DocumentID  *uuid.UUID `json:"document_id,omitempty"`
	RequestType *string    `json:"request_type,omitempty"`
	Status      *string    `json:"status,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("DocumentID", f.DocumentID).
		WhereEquals("RequestType", f.RequestType).
		WhereEquals("Status", f.Status)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if d := values.Get("document_id"); d != "" {
		if id, err := uuid.Parse(d); err == nil {
			f.DocumentID = &id
		}
	}

	if t := values.Get("request_type"); t != "" {
		f.RequestType = &t
	}

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	return f
}

func scanApproval(s repository.Scanner) (Approval, error) {
	var a Approval
	var contextRaw []byte

	err := s.Scan(
		&a.ID,
		&a.DocumentID,
		&a.RequestType,
		&a.Reason,
		&contextRaw,
		&a.Status,
		&a.RequestedAt,
		&a.ResolvedAt,
		&a.Reviewer,
		&a.Note,
	)
	if err != nil {
		return a, err
	}

	if len(contextRaw) > 0 {
		if err := json.Unmarshal(contextRaw, &a.Context); err != nil {
			return a, fmt.Errorf("unmarshal approval context: %w", err)
		}
	}

	return a, nil
}

// notifier fans resolved approvals out to registered listeners.
type notifier struct {
	mu        sync.Mutex
	listeners []Listener
}

func (n *notifier) register(fn Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, fn)
}

func (n *notifier) notify(a Approval) {
	n.mu.Lock()
	listeners := append([]Listener(nil), n.listeners...)
	n.mu.Unlock()

	for _, fn := range listeners {
		go fn(a)
	}
}
