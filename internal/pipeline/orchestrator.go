package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ledgergate/ledgergate/internal/analyses"
	"github.com/ledgergate/ledgergate/internal/approvals"
	"github.com/ledgergate/ledgergate/internal/collab"
	"github.com/ledgergate/ledgergate/internal/extractions"
	"github.com/ledgergate/ledgergate/internal/gate"
	"github.com/ledgergate/ledgergate/internal/metrics"
	"github.com/ledgergate/ledgergate/pkg/events"
	"github.com/ledgergate/ledgergate/pkg/lifecycle"
	"github.com/ledgergate/ledgergate/pkg/resilience"
)

// Extractor is the extraction collaborator the orchestrator drives.
// Satisfied by extractions.System.
type Extractor interface {
	Extract(ctx context.Context, documentID uuid.UUID) (*extractions.Result, error)
	FindByDocument(ctx context.Context, documentID uuid.UUID) (*extractions.Result, error)
}

// Analyzer is the analysis collaborator the orchestrator drives.
// Satisfied by analyses.System.
type Analyzer interface {
	Analyze(ctx context.Context, documentID uuid.UUID) (*analyses.Analysis, error)
	FindByDocument(ctx context.Context, documentID uuid.UUID) (*analyses.Analysis, error)
}

// Actor executes the final action for a completed document. Analysis is nil
// when the document was approved before analysis ran.
type Actor interface {
	Act(ctx context.Context, documentID uuid.UUID, analysis *analyses.Analysis) error
}

// Dependencies wires the orchestrator's collaborators.
type Dependencies struct {
	Store     Store
	Extractor Extractor
	Analyzer  Analyzer
	Actor     Actor
	Approvals approvals.System
	Gate      *gate.Evaluator
	Executor  *resilience.Executor
	Broker    *events.Broker
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Orchestrator routes documents through the stage graph. Each document is
// processed under its own lock so stage transitions are serialized per
// document while distinct documents proceed in parallel.
type Orchestrator struct {
	cfg    Config
	deps   Dependencies
	logger *slog.Logger

	// ctx outlives individual requests so fire-and-forget continuations
	// survive the submitting request. Set by Start.
	ctx context.Context

	mu      sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
}

// New creates an Orchestrator and registers its approval resolution listener.
func New(cfg Config, deps Dependencies) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		deps:    deps,
		logger:  deps.Logger.With("system", "pipeline"),
		ctx:     context.Background(),
		locks:   make(map[uuid.UUID]*sync.Mutex),
		cancels: make(map[uuid.UUID]context.CancelFunc),
	}

	deps.Approvals.OnResolution(o.handleResolution)
	return o
}

// Start binds the orchestrator to the service lifecycle and resumes
// documents that were mid-flight when the process last stopped. Suspended
// documents stay suspended until their approval resolves.
func (o *Orchestrator) Start(lc *lifecycle.Coordinator) error {
	o.ctx = lc.Context()

	lc.OnStartup(func() {
		states, err := o.deps.Store.List(o.ctx, nil)
		if err != nil {
			o.logger.Error("pipeline recovery scan failed", "error", err)
			return
		}

		resumed, suspended := 0, 0
		for _, st := range states {
			switch {
			case st.Terminal():
			case st.Stage == StageAwaitingApproval:
				suspended++
				o.deps.Metrics.PendingApprovals.Inc()
			default:
				resumed++
				go o.run(st.DocumentID)
			}
		}

		o.logger.Info("pipeline recovery complete",
			"resumed", resumed,
			"suspended", suspended,
		)
	})

	return nil
}

// Submit registers a document and starts processing it asynchronously.
// Returns ErrAlreadySubmitted when the document is already in flight and
// ErrTerminal when it already finished.
func (o *Orchestrator) Submit(ctx context.Context, documentID uuid.UUID) error {
	now := time.Now().UTC()
	st := State{
		DocumentID:     documentID,
		Stage:          StageIngested,
		StageEnteredAt: now,
	}

	// Create is atomic: of any number of concurrent submits exactly one
	// inserts the record, so a losing submit can never overwrite the stage
	// of a document already in flight.
	if err := o.deps.Store.Create(ctx, st); err != nil {
		if !errors.Is(err, ErrAlreadySubmitted) {
			return err
		}
		existing, getErr := o.deps.Store.Get(ctx, documentID)
		if getErr != nil {
			return getErr
		}
		if existing.Terminal() {
			return ErrTerminal
		}
		return ErrAlreadySubmitted
	}

	o.deps.Metrics.Transitions.WithLabelValues("", string(StageIngested)).Inc()
	o.deps.Broker.Publish(o.ctx, events.StatusEvent{
		DocumentID: documentID,
		To:         string(StageIngested),
		Timestamp:  now,
	})

	o.logger.Info("document submitted", "document_id", documentID)
	go o.run(documentID)
	return nil
}

// SubmitAll submits a batch of documents with bounded concurrency. The first
// submission error cancels the remainder.
func (o *Orchestrator) SubmitAll(ctx context.Context, documentIDs []uuid.UUID) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrency)

	for _, id := range documentIDs {
		g.Go(func() error {
			if err := o.Submit(gctx, id); err != nil {
				return fmt.Errorf("submit %s: %w", id, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// GetState returns the durable pipeline state for a document.
func (o *Orchestrator) GetState(ctx context.Context, documentID uuid.UUID) (*State, error) {
	return o.deps.Store.Get(ctx, documentID)
}

// States lists pipeline states, optionally filtered to one stage.
func (o *Orchestrator) States(ctx context.Context, stage *Stage) ([]State, error) {
	return o.deps.Store.List(ctx, stage)
}

// Subscribe returns the document's status event stream.
func (o *Orchestrator) Subscribe(documentID uuid.UUID) (<-chan events.StatusEvent, func()) {
	return o.deps.Broker.Subscribe(documentID)
}

// Cancel stops processing a non-terminal document. A pending approval is
// withdrawn without notifying listeners, so cancellation never resumes the
// pipeline. The document lands in Failed with a cancellation error.
func (o *Orchestrator) Cancel(ctx context.Context, documentID uuid.UUID) error {
	st, err := o.deps.Store.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if st.Terminal() {
		return ErrTerminal
	}

	o.stopRun(documentID)

	lock := o.docLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	st, err = o.deps.Store.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if st.Terminal() {
		return ErrTerminal
	}

	// Withdrawing under the document lock: a suspend that was mid-flight
	// when cancellation started has finished recording its approval by the
	// time the lock is held, so the request cannot survive as an orphan.
	if err := o.deps.Approvals.Withdraw(ctx, documentID); err != nil {
		o.logger.Warn("withdraw during cancel failed", "document_id", documentID, "error", err)
	}

	if st.Stage == StageAwaitingApproval {
		o.deps.Metrics.PendingApprovals.Dec()
	}

	msg := ErrCancelled.Error()
	failed := st.Stage
	st.LastError = &msg
	st.FailedStage = &failed

	return o.transition(ctx, st, StageFailed, map[string]any{
		"error":        msg,
		"failed_stage": string(failed),
	})
}

// run drives a document forward until it suspends, fails, or completes.
func (o *Orchestrator) run(documentID uuid.UUID) {
	lock := o.docLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	ctx, release := o.trackRun(documentID)
	defer release()

	o.deps.Metrics.InFlight.Inc()
	defer o.deps.Metrics.InFlight.Dec()

	for {
		st, err := o.deps.Store.Get(ctx, documentID)
		if err != nil {
			if ctx.Err() == nil {
				o.logger.Error("load pipeline state failed", "document_id", documentID, "error", err)
			}
			return
		}

		if st.Terminal() || st.Stage == StageAwaitingApproval {
			return
		}

		if err := o.step(ctx, st); err != nil {
			if ctx.Err() != nil {
				// Cancellation marks the document failed on its own path.
				return
			}
			o.fail(st, err)
			return
		}
	}
}

// step advances the document one stage.
func (o *Orchestrator) step(ctx context.Context, st *State) error {
	id := st.DocumentID

	switch st.Stage {
	case StageIngested:
		return o.transition(ctx, st, StageExtracting, nil)

	case StageExtracting:
		var result *extractions.Result
		err := o.deps.Executor.Execute(ctx, "extract", func(ctx context.Context) error {
			o.deps.Metrics.RetryAttempts.WithLabelValues("extract").Inc()
			r, err := o.deps.Extractor.Extract(ctx, id)
			result = r
			return err
		}, collab.Classify)
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}

		return o.transition(ctx, st, StageExtracted, map[string]any{
			"confidence": result.Confidence,
			"level":      string(result.Level),
		})

	case StageExtracted:
		ext, err := o.deps.Extractor.FindByDocument(ctx, id)
		if err != nil {
			return fmt.Errorf("load extraction: %w", err)
		}

		decision := o.deps.Gate.Decide(gate.Input{
			ExtractionConfidence: ext.Confidence,
		})
		if decision.ApprovalRequired {
			return o.suspend(ctx, st, approvals.TypeExtraction, string(decision.Reason), map[string]any{
				"confidence": ext.Confidence,
				"level":      string(ext.Level),
				"warnings":   ext.Warnings,
			})
		}

		return o.transition(ctx, st, StageAnalyzing, nil)

	case StageAnalyzing:
		var analysis *analyses.Analysis
		err := o.deps.Executor.Execute(ctx, "analyze", func(ctx context.Context) error {
			o.deps.Metrics.RetryAttempts.WithLabelValues("analyze").Inc()
			a, err := o.deps.Analyzer.Analyze(ctx, id)
			analysis = a
			return err
		}, collab.Classify)
		if err != nil {
			return fmt.Errorf("analyze: %w", err)
		}

		return o.transition(ctx, st, StageAnalyzed, map[string]any{
			"findings":     len(analysis.Findings),
			"max_severity": string(analysis.MaxSeverity),
		})

	case StageAnalyzed:
		ext, err := o.deps.Extractor.FindByDocument(ctx, id)
		if err != nil {
			return fmt.Errorf("load extraction: %w", err)
		}
		analysis, err := o.deps.Analyzer.FindByDocument(ctx, id)
		if err != nil {
			return fmt.Errorf("load analysis: %w", err)
		}

		decision := o.deps.Gate.Decide(gate.Input{
			ExtractionConfidence: ext.Confidence,
			MaxSeverity:          analysis.MaxSeverity,
			TransactionValue:     ext.TransactionValue(),
		})
		if decision.ApprovalRequired {
			return o.suspend(ctx, st, approvals.TypeProcessing, string(decision.Reason), map[string]any{
				"confidence":   ext.Confidence,
				"max_severity": string(analysis.MaxSeverity),
				"findings":     len(analysis.Findings),
				"value":        deref(ext.TransactionValue()),
			})
		}

		if o.cfg.RequireActionApproval {
			return o.suspend(ctx, st, approvals.TypeAction, "action_policy", map[string]any{
				"confidence": ext.Confidence,
				"value":      deref(ext.TransactionValue()),
			})
		}

		return o.transition(ctx, st, StageActing, nil)

	case StageApproved:
		return o.transition(ctx, st, StageActing, nil)

	case StageActing:
		// Analysis is absent when approval was granted straight from the
		// extraction checkpoint.
		analysis, err := o.deps.Analyzer.FindByDocument(ctx, id)
		if err != nil && !errors.Is(err, analyses.ErrNotFound) {
			return fmt.Errorf("load analysis: %w", err)
		}

		err = o.deps.Executor.Execute(ctx, "act", func(ctx context.Context) error {
			o.deps.Metrics.RetryAttempts.WithLabelValues("act").Inc()
			return o.deps.Actor.Act(ctx, id, analysis)
		}, collab.Classify)
		if err != nil {
			return fmt.Errorf("act: %w", err)
		}

		return o.transition(ctx, st, StageCompleted, nil)

	default:
		return InvalidTransitionError{From: st.Stage, To: st.Stage}
	}
}

// suspend raises an approval request and parks the document in
// AwaitingApproval. An existing pending request is reused.
func (o *Orchestrator) suspend(
	ctx context.Context,
	st *State,
	requestType approvals.RequestType,
	reason string,
	snapshot map[string]any,
) error {
	a, err := o.deps.Approvals.Request(ctx, approvals.CreateCommand{
		DocumentID:  st.DocumentID,
		RequestType: requestType,
		Reason:      reason,
		Context:     snapshot,
	})
	if errors.Is(err, approvals.ErrAlreadyPending) {
		a, err = o.deps.Approvals.FindPending(ctx, st.DocumentID)
	}
	if err != nil {
		return fmt.Errorf("raise approval: %w", err)
	}

	st.PendingApprovalID = &a.ID
	o.deps.Metrics.PendingApprovals.Inc()

	return o.transition(ctx, st, StageAwaitingApproval, map[string]any{
		"approval_id":  a.ID.String(),
		"request_type": string(requestType),
		"reason":       reason,
	})
}

// handleResolution resumes or terminates a suspended document when its
// approval resolves. Stale resolutions (wrong approval, wrong stage) are
// ignored.
func (o *Orchestrator) handleResolution(a approvals.Approval) {
	lock := o.docLock(a.DocumentID)
	lock.Lock()

	st, err := o.deps.Store.Get(o.ctx, a.DocumentID)
	if err != nil ||
		st.Stage != StageAwaitingApproval ||
		st.PendingApprovalID == nil ||
		*st.PendingApprovalID != a.ID {
		lock.Unlock()
		return
	}

	o.deps.Metrics.PendingApprovals.Dec()

	payload := map[string]any{
		"approval_id": a.ID.String(),
		"reviewer":    deref(a.Reviewer),
	}

	if a.Status != approvals.StatusApproved {
		if err := o.transition(o.ctx, st, StageRejected, payload); err != nil {
			o.logger.Error("record rejection failed", "document_id", a.DocumentID, "error", err)
		}
		lock.Unlock()
		return
	}

	if err := o.transition(o.ctx, st, StageApproved, payload); err != nil {
		o.logger.Error("record approval failed", "document_id", a.DocumentID, "error", err)
		lock.Unlock()
		return
	}
	lock.Unlock()

	go o.run(a.DocumentID)
}

// fail moves the document to Failed, recording the cause and the stage
// where processing stopped. Persistence runs on the orchestrator context so
// a dead request context cannot lose the failure record.
func (o *Orchestrator) fail(st *State, cause error) {
	msg := cause.Error()
	failed := st.Stage
	st.LastError = &msg
	st.FailedStage = &failed

	o.logger.Error("document processing failed",
		"document_id", st.DocumentID,
		"stage", failed,
		"error", cause,
	)

	if err := o.transition(o.ctx, st, StageFailed, map[string]any{
		"error":        msg,
		"failed_stage": string(failed),
	}); err != nil {
		o.logger.Error("record failure failed", "document_id", st.DocumentID, "error", err)
	}
}

// transition validates the move against the stage graph, persists it, and
// publishes the status event.
func (o *Orchestrator) transition(ctx context.Context, st *State, next Stage, payload map[string]any) error {
	if !st.Stage.CanTransition(next) {
		return InvalidTransitionError{From: st.Stage, To: next}
	}

	from := st.Stage
	o.deps.Metrics.StageDuration.
		WithLabelValues(string(from)).
		Observe(time.Since(st.StageEnteredAt).Seconds())

	now := time.Now().UTC()
	st.Stage = next
	st.StageEnteredAt = now
	if next != StageAwaitingApproval {
		st.PendingApprovalID = nil
	}

	if err := o.deps.Store.Put(ctx, *st); err != nil {
		return fmt.Errorf("persist transition %s -> %s: %w", from, next, err)
	}

	o.deps.Metrics.Transitions.WithLabelValues(string(from), string(next)).Inc()
	o.deps.Broker.Publish(o.ctx, events.StatusEvent{
		DocumentID: st.DocumentID,
		From:       string(from),
		To:         string(next),
		Terminal:   next.Terminal(),
		Payload:    payload,
		Timestamp:  now,
	})

	o.logger.Info("stage transition",
		"document_id", st.DocumentID,
		"from", from,
		"to", next,
	)
	return nil
}

func (o *Orchestrator) docLock(documentID uuid.UUID) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	lock, ok := o.locks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[documentID] = lock
	}
	return lock
}

// trackRun derives a cancellable context for one processing run and
// registers its cancel function so Cancel can stop it.
func (o *Orchestrator) trackRun(documentID uuid.UUID) (context.Context, func()) {
	ctx, cancel := context.WithCancel(o.ctx)

	o.mu.Lock()
	o.cancels[documentID] = cancel
	o.mu.Unlock()

	return ctx, func() {
		o.mu.Lock()
		if o.cancels[documentID] != nil {
			delete(o.cancels, documentID)
		}
		o.mu.Unlock()
		cancel()
	}
}

func (o *Orchestrator) stopRun(documentID uuid.UUID) {
	o.mu.Lock()
	cancel := o.cancels[documentID]
	delete(o.cancels, documentID)
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
