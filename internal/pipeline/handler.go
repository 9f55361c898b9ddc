package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/pkg/handlers"
	"github.com/ledgergate/ledgergate/pkg/routes"
)

// Handler provides HTTP endpoints for pipeline operations.
type Handler struct {
	orch   *Orchestrator
	logger *slog.Logger
}

// SubmitRequest carries a batch submission body.
type SubmitRequest struct {
	DocumentIDs []uuid.UUID `json:"document_ids"`
}

// NewHandler creates a Handler for the given orchestrator.
func NewHandler(orch *Orchestrator, logger *slog.Logger) *Handler {
	return &Handler{
		orch:   orch,
		logger: logger.With("handler", "pipeline"),
	}
}

// Routes returns the route group definition for pipeline endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/pipeline",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/states", Handler: h.States},
			{Method: "GET", Pattern: "/states/{documentId}", Handler: h.State},
			{Method: "GET", Pattern: "/events/{documentId}", Handler: h.Events},
			{Method: "POST", Pattern: "/submit", Handler: h.SubmitBatch},
			{Method: "POST", Pattern: "/submit/{documentId}", Handler: h.Submit},
			{Method: "POST", Pattern: "/cancel/{documentId}", Handler: h.Cancel},
		},
	}
}

// Submit starts processing a document identified by the documentId path parameter.
// Returns 202; progress is reported through the state and events endpoints.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuid.Parse(r.PathValue("documentId"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return
	}

	if err := h.orch.Submit(r.Context(), documentID); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, map[string]string{
		"document_id": documentID.String(),
		"stage":       string(StageIngested),
	})
}

// SubmitBatch starts processing a batch of documents from a JSON body.
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if err := h.orch.SubmitAll(r.Context(), req.DocumentIDs); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, map[string]int{
		"submitted": len(req.DocumentIDs),
	})
}

// State returns the pipeline state for a document UUID path parameter.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuid.Parse(r.PathValue("documentId"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return
	}

	st, err := h.orch.GetState(r.Context(), documentID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, st)
}

// States lists pipeline states with an optional stage query parameter.
func (h *Handler) States(w http.ResponseWriter, r *http.Request) {
	var stage *Stage
	if s := r.URL.Query().Get("stage"); s != "" {
		parsed, ok := ParseStage(s)
		if !ok {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("unknown stage %q", s))
			return
		}
		stage = &parsed
	}

	states, err := h.orch.States(r.Context(), stage)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, states)
}

// Cancel stops processing a document identified by the documentId path parameter.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuid.Parse(r.PathValue("documentId"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return
	}

	if err := h.orch.Cancel(r.Context(), documentID); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	st, err := h.orch.GetState(r.Context(), documentID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, st)
}

// Events streams a document's status events as server-sent events until the
// document reaches a terminal stage or the client disconnects.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuid.Parse(r.PathValue("documentId"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError,
			fmt.Errorf("streaming unsupported"))
		return
	}

	ch, cancel := h.orch.Subscribe(documentID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Warn("marshal status event failed", "error", err)
				continue
			}

			fmt.Fprintf(w, "event: transition\ndata: %s\n\n", data)
			flusher.Flush()

			if ev.Terminal {
				return
			}
		}
	}
}
