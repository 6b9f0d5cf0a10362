package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type StageName string

const (
	StageAssignmentEditor  StageName = "assignment_editor"
	StageResearchAssistant StageName = "research_assistant"
	StageReporter          StageName = "reporter"
	StageCopyEditor        StageName = "copy_editor"
	StageGraphicDesk       StageName = "graphic_desk"
	StageEditorInChief     StageName = "editor_in_chief"
)

// StageOrder is the fixed linear order of the editorial pipeline.
var StageOrder = []StageName{
	StageAssignmentEditor,
	StageResearchAssistant,
	StageReporter,
	StageCopyEditor,
	StageGraphicDesk,
	StageEditorInChief,
}

func StageIndex(name StageName) int {
	for i, stage := range StageOrder {
		if stage == name {
			return i
		}
	}
	return -1
}

type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusSucceeded StageStatus = "succeeded"
	StageStatusFailed    StageStatus = "failed"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
)

type StageResult struct {
	Stage    StageName     `json:"stage"`
	Status   StageStatus   `json:"status"`
	Artifact any           `json:"artifact,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

func SucceededResult(stage StageName, artifact any, duration time.Duration) *StageResult {
	return &StageResult{Stage: stage, Status: StageStatusSucceeded, Artifact: artifact, Duration: duration}
}

func FailedResult(stage StageName, err error, duration time.Duration) *StageResult {
	return &StageResult{Stage: stage, Status: StageStatusFailed, Err: err, Duration: duration}
}

// PipelineRun tracks per-stage status for one slug. The orchestrator owns it
// exclusively; stages only ever see finalized artifacts from the store.
// Mutation is serialized through the mutex because status readers (the HTTP
// surface) poll while the run goroutine is still writing; such readers must
// go through Snapshot, never the live struct.
type PipelineRun struct {
	mu sync.RWMutex

	Slug      string                    `json:"slug"`
	RequestID string                    `json:"request_id"`
	Idea      string                    `json:"idea,omitempty"`
	Status    RunStatus                 `json:"status"`
	Stages    map[StageName]StageStatus `json:"stages"`
	StartTime time.Time                 `json:"start_time"`
	EndTime   *time.Time                `json:"end_time,omitempty"`
	Error     string                    `json:"error,omitempty"`
}

func NewPipelineRun(slug, idea string) *PipelineRun {
	stages := make(map[StageName]StageStatus, len(StageOrder))
	for _, stage := range StageOrder {
		stages[stage] = StageStatusPending
	}
	return &PipelineRun{
		Slug:      slug,
		RequestID: uuid.New().String(),
		Idea:      idea,
		Status:    RunStatusRunning,
		Stages:    stages,
		StartTime: time.Now(),
	}
}

func (r *PipelineRun) MarkStage(stage StageName, status StageStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stages[stage] = status
}

func (r *PipelineRun) MarkCompleted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunStatusCompleted
	now := time.Now()
	r.EndTime = &now
}

func (r *PipelineRun) MarkAborted(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunStatusAborted
	if err != nil {
		r.Error = err.Error()
	}
	now := time.Now()
	r.EndTime = &now
}

func (r *PipelineRun) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	return time.Since(r.StartTime)
}

// Snapshot returns a deep copy safe to marshal or mutate while the run is
// still being driven.
func (r *PipelineRun) Snapshot() *PipelineRun {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stages := make(map[StageName]StageStatus, len(r.Stages))
	for stage, status := range r.Stages {
		stages[stage] = status
	}
	clone := &PipelineRun{
		Slug:      r.Slug,
		RequestID: r.RequestID,
		Idea:      r.Idea,
		Status:    r.Status,
		Stages:    stages,
		StartTime: r.StartTime,
		Error:     r.Error,
	}
	if r.EndTime != nil {
		end := *r.EndTime
		clone.EndTime = &end
	}
	return clone
}
