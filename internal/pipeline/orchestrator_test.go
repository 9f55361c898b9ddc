package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/internal/analyses"
	"github.com/ledgergate/ledgergate/internal/anomaly"
	"github.com/ledgergate/ledgergate/internal/approvals"
	"github.com/ledgergate/ledgergate/internal/collab"
	"github.com/ledgergate/ledgergate/internal/extractions"
	"github.com/ledgergate/ledgergate/internal/gate"
	"github.com/ledgergate/ledgergate/internal/metrics"
	"github.com/ledgergate/ledgergate/internal/pipeline"
	"github.com/ledgergate/ledgergate/pkg/events"
	"github.com/ledgergate/ledgergate/pkg/lifecycle"
	"github.com/ledgergate/ledgergate/pkg/pagination"
	"github.com/ledgergate/ledgergate/pkg/resilience"
)

type stubExtractor struct {
	mu      sync.Mutex
	calls   int
	result  *extractions.Result
	extract func(call int) (*extractions.Result, error)
}

func (s *stubExtractor) Extract(ctx context.Context, documentID uuid.UUID) (*extractions.Result, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if s.extract != nil {
		return s.extract(n)
	}
	return s.result, nil
}

func (s *stubExtractor) FindByDocument(ctx context.Context, documentID uuid.UUID) (*extractions.Result, error) {
	if s.result == nil {
		return nil, extractions.ErrNotFound
	}
	return s.result, nil
}

func (s *stubExtractor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubAnalyzer struct {
	mu       sync.Mutex
	calls    int
	analysis *analyses.Analysis
	err      error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, documentID uuid.UUID) (*analyses.Analysis, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return s.analysis, nil
}

func (s *stubAnalyzer) FindByDocument(ctx context.Context, documentID uuid.UUID) (*analyses.Analysis, error) {
	if s.analysis == nil {
		return nil, analyses.ErrNotFound
	}
	return s.analysis, nil
}

func (s *stubAnalyzer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubActor struct {
	mu       sync.Mutex
	calls    int
	analyses []*analyses.Analysis
	err      error
}

func (s *stubActor) Act(ctx context.Context, documentID uuid.UUID, analysis *analyses.Analysis) error {
	s.mu.Lock()
	s.calls++
	s.analyses = append(s.analyses, analysis)
	s.mu.Unlock()
	return s.err
}

func (s *stubActor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func value(v float64) *float64 { return &v }

func extractionResult(confidence float64, total *float64) *extractions.Result {
	return &extractions.Result{
		ID:         uuid.New(),
		Type:       "invoice",
		Invoice:    &extractions.InvoiceFields{Vendor: "Acme Corp", Total: total},
		Confidence: confidence,
		Level:      extractions.LevelFor(confidence),
	}
}

func cleanAnalysis() *analyses.Analysis {
	return &analyses.Analysis{
		ID:          uuid.New(),
		MaxSeverity: anomaly.SeverityNone,
	}
}

type harness struct {
	orchestrator *pipeline.Orchestrator
	store        pipeline.Store
	approvals    approvals.System
}

func newHarness(t *testing.T, cfg pipeline.Config, ext *stubExtractor, an *stubAnalyzer, actor *stubActor) *harness {
	t.Helper()
	return newHarnessWith(t, cfg, ext, an, actor, nil)
}

func newHarnessWith(
	t *testing.T,
	cfg pipeline.Config,
	ext *stubExtractor,
	an *stubAnalyzer,
	actor *stubActor,
	wrapApprovals func(approvals.System) approvals.System,
) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	evaluator, err := gate.NewEvaluator(gate.DefaultConfig())
	if err != nil {
		t.Fatalf("evaluator init failed: %v", err)
	}

	store := pipeline.NewMemoryStore()
	var approvalSystem approvals.System = approvals.NewMemory(logger, pagination.Config{DefaultPageSize: 10, MaxPageSize: 100})
	if wrapApprovals != nil {
		approvalSystem = wrapApprovals(approvalSystem)
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: "1ms",
		RetryMaxBackoff:     "5ms",
		RetryMultiplier:     2.0,
	}, logger)

	orchestrator := pipeline.New(cfg, pipeline.Dependencies{
		Store:     store,
		Extractor: ext,
		Analyzer:  an,
		Actor:     actor,
		Approvals: approvalSystem,
		Gate:      evaluator,
		Executor:  executor,
		Broker:    events.NewBroker(logger),
		Metrics:   metrics.New(),
		Logger:    logger,
	})

	return &harness{
		orchestrator: orchestrator,
		store:        store,
		approvals:    approvalSystem,
	}
}

func (h *harness) waitForStage(t *testing.T, documentID uuid.UUID, want pipeline.Stage) *pipeline.State {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, err := h.store.Get(context.Background(), documentID)
		if err == nil && st.Stage == want {
			return st
		}
		time.Sleep(2 * time.Millisecond)
	}

	st, err := h.store.Get(context.Background(), documentID)
	if err != nil {
		t.Fatalf("timed out waiting for %s; state load failed: %v", want, err)
	}
	t.Fatalf("timed out waiting for %s; document is at %s", want, st.Stage)
	return nil
}

func TestCompletesCleanDocument(t *testing.T) {
	ext := &stubExtractor{result: extractionResult(0.95, value(200))}
	an := &stubAnalyzer{analysis: cleanAnalysis()}
	actor := &stubActor{}
	h := newHarness(t, pipeline.DefaultConfig(), ext, an, actor)

	docID := uuid.New()
	if err := h.orchestrator.Submit(context.Background(), docID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	h.waitForStage(t, docID, pipeline.StageCompleted)

	if got := ext.callCount(); got != 1 {
		t.Errorf("extract calls: got %d, want 1", got)
	}
	if got := an.callCount(); got != 1 {
		t.Errorf("analyze calls: got %d, want 1", got)
	}
	if got := actor.callCount(); got != 1 {
		t.Errorf("act calls: got %d, want 1", got)
	}
}

func TestSuspendsOnLowConfidence(t *testing.T) {
	ext := &stubExtractor{result: extractionResult(0.5, value(200))}
	an := &stubAnalyzer{}
	actor := &stubActor{}
	h := newHarness(t, pipeline.DefaultConfig(), ext, an, actor)

	docID := uuid.New()
	if err := h.orchestrator.Submit(context.Background(), docID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	st := h.waitForStage(t, docID, pipeline.StageAwaitingApproval)
	if st.PendingApprovalID == nil {
		t.Fatal("expected a pending approval id on the suspended state")
	}

	pending, err := h.approvals.FindPending(context.Background(), docID)
	if err != nil {
		t.Fatalf("find pending failed: %v", err)
	}
	if pending.RequestType != approvals.TypeExtraction {
		t.Errorf("request type: got %q, want %q", pending.RequestType, approvals.TypeExtraction)
	}
	if pending.Reason != string(gate.ReasonLowConfidence) {
		t.Errorf("reason: got %q, want %q", pending.Reason, gate.ReasonLowConfidence)
	}

	if _, err := h.approvals.Resolve(context.Background(), pending.ID, approvals.Decision{
		Approved: true,
		Reviewer: "reviewer@ledgergate.dev",
	}); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	h.waitForStage(t, docID, pipeline.StageCompleted)

	// Approval at the extraction checkpoint goes straight to acting.
	if got := an.callCount(); got != 0 {
		t.Errorf("analyze calls: got %d, want 0", got)
	}
	actor.mu.Lock()
	defer actor.mu.Unlock()
	if len(actor.analyses) != 1 || actor.analyses[0] != nil {
		t.Errorf("expected one act call with nil analysis, got %v", actor.analyses)
	}
}

func TestSuspendsOnHighValue(t *testing.T) {
	ext := &stubExtractor{result: extractionResult(0.95, value(1500))}
	an := &stubAnalyzer{analysis: cleanAnalysis()}
	actor := &stubActor{}
	h := newHarness(t, pipeline.DefaultConfig(), ext, an, actor)

	docID := uuid.New()
	if err := h.orchestrator.Submit(context.Background(), docID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	h.waitForStage(t, docID, pipeline.StageAwaitingApproval)

	pending, err := h.approvals.FindPending(context.Background(), docID)
	if err != nil {
		t.Fatalf("find pending failed: %v", err)
	}
	if pending.RequestType != approvals.TypeProcessing {
		t.Errorf("request type: got %q, want %q", pending.RequestType, approvals.TypeProcessing)
	}
	if pending.Reason != string(gate.ReasonHighValue) {
		t.Errorf("reason: got %q, want %q", pending.Reason, gate.ReasonHighValue)
	}

	if _, err := h.approvals.Resolve(context.Background(), pending.ID, approvals.Decision{
		Approved: true,
		Reviewer: "reviewer@ledgergate.dev",
	}); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	h.waitForStage(t, docID, pipeline.StageCompleted)

	actor.mu.Lock()
	defer actor.mu.Unlock()
	if len(actor.analyses) != 1 || actor.analyses[0] == nil {
		t.Error("expected one act call with the stored analysis")
	}
}

func TestRejectionIsTerminal(t *testing.T) {
	ext := &stubExtractor{result: extractionResult(0.5, value(200))}
	an := &stubAnalyzer{}
	actor := &stubActor{}
	h := newHarness(t, pipeline.DefaultConfig(), ext, an, actor)

	docID := uuid.New()
	if err := h.orchestrator.Submit(context.Background(), docID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	h.waitForStage(t, docID, pipeline.StageAwaitingApproval)

	pending, err := h.approvals.FindPending(context.Background(), docID)
	if err != nil {
		t.Fatalf("find pending failed: %v", err)
	}
	if _, err := h.approvals.Resolve(context.Background(), pending.ID, approvals.Decision{
		Approved: false,
		Reviewer: "reviewer@ledgergate.dev",
		Note:     "vendor mismatch",
	}); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	h.waitForStage(t, docID, pipeline.StageRejected)

	if got := actor.callCount(); got != 0 {
		t.Errorf("act calls after rejection: got %d, want 0", got)
	}
	if err := h.orchestrator.Submit(context.Background(), docID); !errors.Is(err, pipeline.ErrTerminal) {
		t.Errorf("resubmit after rejection: got %v, want ErrTerminal", err)
	}
}

func TestRetriesTransientFailures(t *testing.T) {
	result := extractionResult(0.95, value(200))
	ext := &stubExtractor{
		result: result,
		extract: func(call int) (*extractions.Result, error) {
			if call < 3 {
				return nil, collab.Transient(errors.New("model timeout"))
			}
			return result, nil
		},
	}
	an := &stubAnalyzer{analysis: cleanAnalysis()}
	actor := &stubActor{}
	h := newHarness(t, pipeline.DefaultConfig(), ext, an, actor)

	docID := uuid.New()
	if err := h.orchestrator.Submit(context.Background(), docID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	h.waitForStage(t, docID, pipeline.StageCompleted)

	if got := ext.callCount(); got != 3 {
		t.Errorf("extract calls: got %d, want 3", got)
	}
}

func TestTransientFailureExhaustsRetries(t *testing.T) {
	ext := &stubExtractor{
		extract: func(call int) (*extractions.Result, error) {
			return nil, collab.Transient(errors.New("model timeout"))
		},
	}
	h := newHarness(t, pipeline.DefaultConfig(), ext, &stubAnalyzer{}, &stubActor{})

	docID := uuid.New()
	if err := h.orchestrator.Submit(context.Background(), docID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	st := h.waitForStage(t, docID, pipeline.StageFailed)

	if got := ext.callCount(); got != 3 {
		t.Errorf("extract calls: got %d, want 3", got)
	}
	if st.FailedStage == nil || *st.FailedStage != pipeline.StageExtracting {
		t.Errorf("failed stage: got %v, want extracting", st.FailedStage)
	}
	if st.LastError == nil {
		t.Error("expected last error to be recorded")
	}
}

func TestPermanentFailureFailsImmediately(t *testing.T) {
	ext := &stubExtractor{
		extract: func(call int) (*extractions.Result, error) {
			return nil, collab.Permanent(errors.New("document is unreadable"))
		},
	}
	h := newHarness(t, pipeline.DefaultConfig(), ext, &stubAnalyzer{}, &stubActor{})

	docID := uuid.New()
	if err := h.orchestrator.Submit(context.Background(), docID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	h.waitForStage(t, docID, pipeline.StageFailed)

	if got := ext.callCount(); got != 1 {
		t.Errorf("extract calls: got %d, want 1", got)
	}
}

func TestSubmitRejectsInFlightAndTerminal(t *testing.T) {
	release := make(chan struct{})
	result := extractionResult(0.95, value(200))
	ext := &stubExtractor{
		result: result,
		extract: func(call int) (*extractions.Result, error) {
			<-release
			return result, nil
		},
	}
	an := &stubAnalyzer{analysis: cleanAnalysis()}
	h := newHarness(t, pipeline.DefaultConfig(), ext, an, &stubActor{})

	docID := uuid.New()
	if err := h.orchestrator.Submit(context.Background(), docID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if err := h.orchestrator.Submit(context.Background(), docID); !errors.Is(err, pipeline.ErrAlreadySubmitted) {
		t.Errorf("second submit: got %v, want ErrAlreadySubmitted", err)
	}

	close(release)
	h.waitForStage(t, docID, pipeline.StageCompleted)

	if err := h.orchestrator.Submit(context.Background(), docID); !errors.Is(err, pipeline.ErrTerminal) {
		t.Errorf("submit after completion: got %v, want ErrTerminal", err)
	}
}

func TestConcurrentSubmitsAdmitExactlyOne(t *testing.T) {
	release := make(chan struct{})
	result := extractionResult(0.95, value(200))
	ext := &stubExtractor{
		result: result,
		extract: func(call int) (*extractions.Result, error) {
			<-release
			return result, nil
		},
	}
	an := &stubAnalyzer{analysis: cleanAnalysis()}
	h := newHarness(t, pipeline.DefaultConfig(), ext, an, &stubActor{})

	docID := uuid.New()

	const submitters = 8
	start := make(chan struct{})
	errs := make([]error, submitters)
	var wg sync.WaitGroup
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = h.orchestrator.Submit(context.Background(), docID)
		}(i)
	}
	close(start)
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, pipeline.ErrAlreadySubmitted):
		default:
			t.Fatalf("unexpected submit error: %v", err)
		}
	}
	if admitted != 1 {
		t.Fatalf("admitted submits: got %d, want 1", admitted)
	}

	// The losing submits must not have reset the winner's progress.
	h.waitForStage(t, docID, pipeline.StageExtracting)
	time.Sleep(20 * time.Millisecond)
	st, err := h.store.Get(context.Background(), docID)
	if err != nil {
		t.Fatalf("state load failed: %v", err)
	}
	if st.Stage != pipeline.StageExtracting {
		t.Fatalf("stage after concurrent submits: got %s, want extracting", st.Stage)
	}

	close(release)
	h.waitForStage(t, docID, pipeline.StageCompleted)

	if got := ext.callCount(); got != 1 {
		t.Errorf("extract calls: got %d, want 1", got)
	}
}

// gatedApprovals delays Request until released, so a test can interleave a
// cancellation with an in-flight suspension.
type gatedApprovals struct {
	approvals.System
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedApprovals) Request(ctx context.Context, cmd approvals.CreateCommand) (*approvals.Approval, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.System.Request(ctx, cmd)
}

func TestCancelDuringSuspensionLeavesNoPendingApproval(t *testing.T) {
	ext := &stubExtractor{result: extractionResult(0.5, value(200))}
	gated := &gatedApprovals{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	h := newHarnessWith(t, pipeline.DefaultConfig(), ext, &stubAnalyzer{}, &stubActor{},
		func(sys approvals.System) approvals.System {
			gated.System = sys
			return gated
		})

	docID := uuid.New()
	if err := h.orchestrator.Submit(context.Background(), docID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// The low-confidence document is now suspending and has reached the
	// approval manager, but its request is not yet recorded.
	<-gated.entered

	done := make(chan error, 1)
	go func() {
		done <- h.orchestrator.Cancel(context.Background(), docID)
	}()

	// Let the cancellation reach the document lock, then allow the
	// suspension to finish recording its approval request.
	time.Sleep(20 * time.Millisecond)
	close(gated.release)

	if err := <-done; err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	st := h.waitForStage(t, docID, pipeline.StageFailed)
	if st.LastError == nil {
		t.Error("expected cancellation to record an error")
	}

	// The approval recorded by the late suspension must be withdrawn, not
	// left pending against a terminal document.
	if _, err := h.approvals.FindPending(context.Background(), docID); !errors.Is(err, approvals.ErrNotFound) {
		t.Errorf("pending approval after cancel: got %v, want ErrNotFound", err)
	}
}

func TestCancelWithdrawsApprovalWithoutResuming(t *testing.T) {
	ext := &stubExtractor{result: extractionResult(0.5, value(200))}
	actor := &stubActor{}
	h := newHarness(t, pipeline.DefaultConfig(), ext, &stubAnalyzer{}, actor)

	docID := uuid.New()
	if err := h.orchestrator.Submit(context.Background(), docID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	h.waitForStage(t, docID, pipeline.StageAwaitingApproval)

	pending, err := h.approvals.FindPending(context.Background(), docID)
	if err != nil {
		t.Fatalf("find pending failed: %v", err)
	}

	if err := h.orchestrator.Cancel(context.Background(), docID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	st := h.waitForStage(t, docID, pipeline.StageFailed)
	if st.LastError == nil {
		t.Error("expected cancellation to record an error")
	}

	if _, err := h.approvals.FindPending(context.Background(), docID); !errors.Is(err, approvals.ErrNotFound) {
		t.Errorf("pending approval after cancel: got %v, want ErrNotFound", err)
	}

	// Resolving the withdrawn approval must not restart the document.
	if _, err := h.approvals.Resolve(context.Background(), pending.ID, approvals.Decision{
		Approved: true,
		Reviewer: "reviewer@ledgergate.dev",
	}); !errors.Is(err, approvals.ErrAlreadyResolved) {
		t.Errorf("resolve withdrawn approval: got %v, want ErrAlreadyResolved", err)
	}

	time.Sleep(20 * time.Millisecond)
	final, err := h.store.Get(context.Background(), docID)
	if err != nil {
		t.Fatalf("state load failed: %v", err)
	}
	if final.Stage != pipeline.StageFailed {
		t.Errorf("stage after stale resolution: got %s, want failed", final.Stage)
	}
	if got := actor.callCount(); got != 0 {
		t.Errorf("act calls after cancel: got %d, want 0", got)
	}
}

func TestCancelTerminalDocument(t *testing.T) {
	ext := &stubExtractor{result: extractionResult(0.95, value(200))}
	an := &stubAnalyzer{analysis: cleanAnalysis()}
	h := newHarness(t, pipeline.DefaultConfig(), ext, an, &stubActor{})

	docID := uuid.New()
	if err := h.orchestrator.Submit(context.Background(), docID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	h.waitForStage(t, docID, pipeline.StageCompleted)

	if err := h.orchestrator.Cancel(context.Background(), docID); !errors.Is(err, pipeline.ErrTerminal) {
		t.Errorf("cancel completed document: got %v, want ErrTerminal", err)
	}
}

func TestRequireActionApproval(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	cfg.RequireActionApproval = true

	ext := &stubExtractor{result: extractionResult(0.95, value(200))}
	an := &stubAnalyzer{analysis: cleanAnalysis()}
	h := newHarness(t, cfg, ext, an, &stubActor{})

	docID := uuid.New()
	if err := h.orchestrator.Submit(context.Background(), docID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	h.waitForStage(t, docID, pipeline.StageAwaitingApproval)

	pending, err := h.approvals.FindPending(context.Background(), docID)
	if err != nil {
		t.Fatalf("find pending failed: %v", err)
	}
	if pending.RequestType != approvals.TypeAction {
		t.Errorf("request type: got %q, want %q", pending.RequestType, approvals.TypeAction)
	}
}

func TestRecoveryResumesInterruptedDocuments(t *testing.T) {
	ext := &stubExtractor{result: extractionResult(0.95, value(200))}
	an := &stubAnalyzer{analysis: cleanAnalysis()}
	actor := &stubActor{}
	h := newHarness(t, pipeline.DefaultConfig(), ext, an, actor)

	interrupted := uuid.New()
	suspended := uuid.New()
	finished := uuid.New()
	approvalID := uuid.New()

	now := time.Now().UTC()
	seed := []pipeline.State{
		{DocumentID: interrupted, Stage: pipeline.StageAnalyzing, StageEnteredAt: now, UpdatedAt: now},
		{DocumentID: suspended, Stage: pipeline.StageAwaitingApproval, PendingApprovalID: &approvalID, StageEnteredAt: now, UpdatedAt: now},
		{DocumentID: finished, Stage: pipeline.StageCompleted, StageEnteredAt: now, UpdatedAt: now},
	}
	for _, st := range seed {
		if err := h.store.Put(context.Background(), st); err != nil {
			t.Fatalf("seed state failed: %v", err)
		}
	}

	lc := lifecycle.New()
	if err := h.orchestrator.Start(lc); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	lc.WaitForStartup()

	h.waitForStage(t, interrupted, pipeline.StageCompleted)

	// Suspended documents stay parked until their approval resolves.
	st, err := h.store.Get(context.Background(), suspended)
	if err != nil {
		t.Fatalf("state load failed: %v", err)
	}
	if st.Stage != pipeline.StageAwaitingApproval {
		t.Errorf("suspended document moved to %s during recovery", st.Stage)
	}

	if got := ext.callCount(); got != 0 {
		t.Errorf("extract calls during recovery: got %d, want 0", got)
	}
}
