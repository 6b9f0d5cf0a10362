package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name string
		idea string
		want string
	}{
		{"five words", "The lost city of Atlantis rediscovered", "the_lost_city_of_atlantis"},
		{"short idea", "Octopus intelligence", "octopus_intelligence"},
		{"punctuation stripped", "Why do cats purr?", "why_do_cats_purr"},
		{"mixed case and digits", "Apollo 11 at 60 years", "apollo_11_at_60_years"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateSlug(tt.idea); got != tt.want {
				t.Errorf("GenerateSlug(%q) = %q, want %q", tt.idea, got, tt.want)
			}
		})
	}
}

func TestGenerateSlugStable(t *testing.T) {
	idea := "Deep sea vents and the origin of life"
	if GenerateSlug(idea) != GenerateSlug(idea) {
		t.Error("same idea must always produce the same slug")
	}
}

func TestArticleTypeWordRange(t *testing.T) {
	low, high := ArticleTypeShortForm.WordRange()
	if low != 400 || high != 700 {
		t.Errorf("short form range = %d-%d, want 400-700", low, high)
	}
	low, high = ArticleTypeLongForm.WordRange()
	if low != 1500 || high != 2000 {
		t.Errorf("long form range = %d-%d, want 1500-2000", low, high)
	}
}

func TestDraftPackageFinalBody(t *testing.T) {
	draft := &DraftPackage{Body: "initial"}
	if draft.FinalBody() != "initial" {
		t.Error("no revisions should return the initial body")
	}

	draft.Revisions = []RevisionRecord{
		{Pass: RevisionPassFact, Revised: true, Body: "after fact"},
		{Pass: RevisionPassStyle, Revised: false},
	}
	if got := draft.FinalBody(); got != "after fact" {
		t.Errorf("FinalBody() = %q, want the fact-revised body", got)
	}

	draft.Revisions = append(draft.Revisions[:1], RevisionRecord{
		Pass: RevisionPassStyle, Revised: true, Body: "after style",
	})
	if got := draft.FinalBody(); got != "after style" {
		t.Errorf("FinalBody() = %q, want the style-revised body", got)
	}
}

func TestCountWords(t *testing.T) {
	if got := CountWords("one two  three\nfour"); got != 4 {
		t.Errorf("CountWords = %d, want 4", got)
	}
	if got := CountWords(""); got != 0 {
		t.Errorf("CountWords of empty = %d, want 0", got)
	}
}

func TestStageOrder(t *testing.T) {
	if len(StageOrder) != 6 {
		t.Fatalf("expected 6 stages, got %d", len(StageOrder))
	}
	if StageOrder[0] != StageAssignmentEditor || StageOrder[5] != StageEditorInChief {
		t.Error("stage order must start at assignment_editor and end at editor_in_chief")
	}
	if StageIndex(StageReporter) != 2 {
		t.Errorf("StageIndex(reporter) = %d, want 2", StageIndex(StageReporter))
	}
	if StageIndex("no_such_stage") != -1 {
		t.Error("unknown stage must index to -1")
	}
}

func TestPipelineRunLifecycle(t *testing.T) {
	run := NewPipelineRun("some_slug", "some idea")
	if run.Status != RunStatusRunning {
		t.Errorf("new run status = %s, want running", run.Status)
	}
	if run.RequestID == "" {
		t.Error("new run must get a request id")
	}
	for _, stage := range StageOrder {
		if run.Stages[stage] != StageStatusPending {
			t.Errorf("stage %s = %s, want pending", stage, run.Stages[stage])
		}
	}

	run.MarkStage(StageReporter, StageStatusSucceeded)
	if run.Stages[StageReporter] != StageStatusSucceeded {
		t.Error("MarkStage did not update")
	}

	run.MarkAborted(errors.New("boom"))
	if run.Status != RunStatusAborted || run.Error != "boom" || run.EndTime == nil {
		t.Error("MarkAborted must set status, error and end time")
	}
}

func TestPipelineErrorKinds(t *testing.T) {
	tests := []struct {
		err   error
		check func(error) bool
		name  string
	}{
		{NewMissingInputError(StageReporter, StageResearchAssistant), IsMissingInput, "missing input"},
		{NewTransientError("X", "x"), IsTransient, "transient"},
		{NewTimeoutError("X", "x"), IsTransient, "timeout is transient"},
		{NewFatalError("X", "x"), IsFatal, "fatal"},
		{NewSchemaViolationError("X", "x"), IsSchemaViolation, "schema violation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("%v did not classify as %s", tt.err, tt.name)
			}
		})
	}
}

func TestPipelineErrorWrapping(t *testing.T) {
	cause := errors.New("socket closed")
	perr := NewTransientError("NET", "call failed").WithCause(cause)

	if !errors.Is(perr, cause) {
		t.Error("cause must be reachable through errors.Is")
	}

	wrapped := fmt.Errorf("stage reporter: %w", perr)
	if !IsTransient(wrapped) {
		t.Error("kind helpers must see through fmt.Errorf wrapping")
	}

	// An already-classified error passes through WrapExternalError unchanged.
	fatal := NewFatalError("AUTH", "rejected")
	if got := WrapExternalError("OUTER", fmt.Errorf("call: %w", fatal)); !IsFatal(got) {
		t.Error("WrapExternalError must preserve an existing classification")
	}
}

func TestMissingInputErrorMetadata(t *testing.T) {
	err := NewMissingInputError(StageReporter, StageResearchAssistant)
	if err.Metadata["required"] != string(StageResearchAssistant) {
		t.Errorf("metadata required = %v", err.Metadata["required"])
	}
}
