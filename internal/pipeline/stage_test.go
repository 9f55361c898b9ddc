package pipeline_test

import (
	"testing"

	"github.com/ledgergate/ledgergate/internal/pipeline"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    pipeline.Stage
		to      pipeline.Stage
		allowed bool
	}{
		{"ingested to extracting", pipeline.StageIngested, pipeline.StageExtracting, true},
		{"extracted to analyzing", pipeline.StageExtracted, pipeline.StageAnalyzing, true},
		{"extracted suspends", pipeline.StageExtracted, pipeline.StageAwaitingApproval, true},
		{"analyzed to acting", pipeline.StageAnalyzed, pipeline.StageActing, true},
		{"analyzed suspends", pipeline.StageAnalyzed, pipeline.StageAwaitingApproval, true},
		{"awaiting to approved", pipeline.StageAwaitingApproval, pipeline.StageApproved, true},
		{"awaiting to rejected", pipeline.StageAwaitingApproval, pipeline.StageRejected, true},
		{"approved to acting", pipeline.StageApproved, pipeline.StageActing, true},
		{"acting to completed", pipeline.StageActing, pipeline.StageCompleted, true},
		{"any stage may fail", pipeline.StageAnalyzing, pipeline.StageFailed, true},
		{"no stage skipping", pipeline.StageIngested, pipeline.StageAnalyzing, false},
		{"no backwards movement", pipeline.StageAnalyzed, pipeline.StageExtracting, false},
		{"completed is terminal", pipeline.StageCompleted, pipeline.StageIngested, false},
		{"rejected is terminal", pipeline.StageRejected, pipeline.StageApproved, false},
		{"failed is terminal", pipeline.StageFailed, pipeline.StageIngested, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.allowed {
				t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	terminal := []pipeline.Stage{pipeline.StageCompleted, pipeline.StageFailed, pipeline.StageRejected}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	active := []pipeline.Stage{
		pipeline.StageIngested, pipeline.StageExtracting, pipeline.StageExtracted,
		pipeline.StageAnalyzing, pipeline.StageAnalyzed, pipeline.StageAwaitingApproval,
		pipeline.StageApproved, pipeline.StageActing,
	}
	for _, s := range active {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestParseStage(t *testing.T) {
	if stage, ok := pipeline.ParseStage("awaiting_approval"); !ok || stage != pipeline.StageAwaitingApproval {
		t.Errorf("got (%q, %v), want (awaiting_approval, true)", stage, ok)
	}
	if _, ok := pipeline.ParseStage("shipped"); ok {
		t.Error("unknown stage should not parse")
	}
	if _, ok := pipeline.ParseStage(""); ok {
		t.Error("empty stage should not parse")
	}
}
