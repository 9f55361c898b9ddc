// Package pipeline implements the document processing orchestrator for
// Ledgergate. Documents move through a fixed stage graph with durable state,
// suspend when a gate raises an approval request, and resume when the
// approval is resolved. Stage history is strictly monotonic: terminal stages
// never transition again.
package pipeline

// Stage is a document's position in the pipeline.
type Stage string

// Pipeline stages in processing order.
const (
	StageIngested         Stage = "ingested"
	StageExtracting       Stage = "extracting"
	StageExtracted        Stage = "extracted"
	StageAnalyzing        Stage = "analyzing"
	StageAnalyzed         Stage = "analyzed"
	StageAwaitingApproval Stage = "awaiting_approval"
	StageApproved         Stage = "approved"
	StageRejected         Stage = "rejected"
	StageActing           Stage = "acting"
	StageCompleted        Stage = "completed"
	StageFailed           Stage = "failed"
)

// transitions is the legal stage graph. Any stage absent from a source's
// list is unreachable from it; terminal stages have no outgoing edges.
var transitions = map[Stage][]Stage{
	StageIngested:         {StageExtracting, StageFailed},
	StageExtracting:       {StageExtracted, StageFailed},
	StageExtracted:        {StageAnalyzing, StageAwaitingApproval, StageFailed},
	StageAnalyzing:        {StageAnalyzed, StageFailed},
	StageAnalyzed:         {StageActing, StageAwaitingApproval, StageFailed},
	StageAwaitingApproval: {StageApproved, StageRejected, StageFailed},
	StageApproved:         {StageActing, StageFailed},
	StageActing:           {StageCompleted, StageFailed},
	StageRejected:         {},
	StageCompleted:        {},
	StageFailed:           {},
}

// Terminal reports whether the stage ends processing for the document.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed || s == StageRejected
}

// CanTransition reports whether the stage graph permits moving to next.
func (s Stage) CanTransition(next Stage) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// ParseStage maps a string to a Stage, returning false for unknown input.
func ParseStage(s string) (Stage, bool) {
	stage := Stage(s)
	if _, ok := transitions[stage]; !ok {
		return "", false
	}
	return stage, true
}
