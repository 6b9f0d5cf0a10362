package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"newsroom-pipeline/internal/capability"
	"newsroom-pipeline/internal/models"
	"newsroom-pipeline/internal/pkg/logger"
	"newsroom-pipeline/internal/store"
)

// Orchestrator owns the pipeline run: it drives the six stages in their
// fixed order, fails the run on the first stage failure, and checks for
// cancellation only between stages, so a stage that has started always
// finishes and persists its artifact.
type Orchestrator struct {
	stages map[models.StageName]Stage
	store  *store.Store
	events EventSink
	logger *logger.Logger

	activeRuns sync.Map
	background sync.WaitGroup
}

func NewOrchestrator(stages []Stage, artifactStore *store.Store, events EventSink, log *logger.Logger) (*Orchestrator, error) {
	byName := make(map[models.StageName]Stage, len(stages))
	for _, stage := range stages {
		byName[stage.Name()] = stage
	}
	for _, name := range models.StageOrder {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("orchestrator missing stage %s", name)
		}
	}
	return &Orchestrator{
		stages: byName,
		store:  artifactStore,
		events: events,
		logger: log,
	}, nil
}

// RunPipeline runs all six stages for a fresh idea. The slug is derived from
// the idea text up front so every artifact of the run shares one key.
func (o *Orchestrator) RunPipeline(ctx context.Context, idea string, tier capability.Tier) (*models.PipelineRun, error) {
	slug := models.GenerateSlug(idea)
	if slug == "" {
		return nil, models.NewFatalError("EMPTY_IDEA", "cannot derive a slug from an empty idea")
	}
	return o.runFrom(ctx, slug, idea, models.StageOrder[0], tier)
}

// ResumePipeline re-enters an existing run at the given stage, relying on
// persisted artifacts for everything upstream. Upstream stages are not
// re-invoked; a missing upstream artifact fails the resumed stage before any
// capability call. The idea is carried so resuming at the assignment editor
// regenerates the brief instead of failing on an empty input.
func (o *Orchestrator) ResumePipeline(ctx context.Context, slug, idea string, from models.StageName, tier capability.Tier) (*models.PipelineRun, error) {
	if models.StageIndex(from) < 0 {
		return nil, models.NewFatalError("UNKNOWN_STAGE", fmt.Sprintf("unknown stage %q", from))
	}
	return o.runFrom(ctx, slug, idea, from, tier)
}

// StartRunAsync launches a full pipeline run in the background and returns
// its slug immediately. Used by the HTTP surface.
func (o *Orchestrator) StartRunAsync(idea string) (string, error) {
	slug := models.GenerateSlug(idea)
	if slug == "" {
		return "", models.NewFatalError("EMPTY_IDEA", "cannot derive a slug from an empty idea")
	}
	if _, running := o.activeRuns.Load(slug); running {
		return slug, nil
	}

	o.background.Add(1)
	go func() {
		defer o.background.Done()
		if _, err := o.runFrom(context.Background(), slug, idea, models.StageOrder[0], capability.TierSmart); err != nil {
			o.logger.WithError(err).Error("background run failed", "slug", slug)
		}
	}()
	return slug, nil
}

func (o *Orchestrator) runFrom(ctx context.Context, slug, idea string, from models.StageName, tier capability.Tier) (*models.PipelineRun, error) {
	run := models.NewPipelineRun(slug, idea)
	startIdx := models.StageIndex(from)
	for _, name := range models.StageOrder[:startIdx] {
		if o.store.Exists(slug, name) {
			run.MarkStage(name, models.StageStatusSucceeded)
		}
	}

	o.activeRuns.Store(slug, run)
	defer o.activeRuns.Delete(slug)

	o.logger.LogRun(slug, run.RequestID, "started", 0, nil)
	o.events.RunUpdated(ctx, run)

	job := &StageJob{Slug: slug, Idea: idea, Tier: tier}
	for _, name := range models.StageOrder[startIdx:] {
		if err := ctx.Err(); err != nil {
			run.MarkAborted(err)
			o.events.RunUpdated(ctx, run)
			o.logger.LogRun(slug, run.RequestID, "aborted", run.Duration(), err)
			return run, err
		}

		result := o.executeStage(ctx, o.stages[name], run, job)
		if result.Status != models.StageStatusSucceeded {
			run.MarkAborted(result.Err)
			o.events.RunUpdated(ctx, run)
			o.logger.LogRun(slug, run.RequestID, "failed", run.Duration(), result.Err)
			return run, result.Err
		}
	}

	run.MarkCompleted()
	o.events.RunUpdated(ctx, run)
	o.logger.LogRun(slug, run.RequestID, "completed", run.Duration(), nil)
	return run, nil
}

// RunSingleStage runs exactly one stage. The assignment editor takes an idea
// and derives the slug; every other stage takes an existing slug.
func (o *Orchestrator) RunSingleStage(ctx context.Context, name models.StageName, slugOrIdea string, tier capability.Tier) (*models.StageResult, error) {
	stage, ok := o.stages[name]
	if !ok {
		return nil, models.NewFatalError("UNKNOWN_STAGE", fmt.Sprintf("unknown stage %q", name))
	}

	job := &StageJob{Tier: tier}
	if name == models.StageAssignmentEditor {
		job.Idea = slugOrIdea
		job.Slug = models.GenerateSlug(slugOrIdea)
	} else {
		job.Slug = slugOrIdea
	}
	if job.Slug == "" {
		return nil, models.NewFatalError("EMPTY_INPUT", "stage needs a slug or idea")
	}

	run := models.NewPipelineRun(job.Slug, job.Idea)
	result := o.executeStage(ctx, stage, run, job)
	if result.Status != models.StageStatusSucceeded {
		return result, result.Err
	}
	return result, nil
}

// executeStage verifies the stage's required upstream artifacts exist before
// invoking it, so a misordered call fails without spending a capability call.
func (o *Orchestrator) executeStage(ctx context.Context, stage Stage, run *models.PipelineRun, job *StageJob) *models.StageResult {
	name := stage.Name()

	for _, required := range stage.Requires() {
		if !o.store.Exists(job.Slug, required) {
			err := models.NewMissingInputError(name, required)
			o.logger.LogStage(job.Slug, string(name), "rejected", 0, map[string]any{"missing": string(required)}, err)
			run.MarkStage(name, models.StageStatusFailed)
			o.events.StageEvent(ctx, job.Slug, name, models.StageStatusFailed, err.Error())
			return models.FailedResult(name, err, 0)
		}
	}

	run.MarkStage(name, models.StageStatusRunning)
	o.events.StageEvent(ctx, job.Slug, name, models.StageStatusRunning, "")
	startTime := time.Now()

	result := stage.Run(ctx, job)

	run.MarkStage(name, result.Status)
	detail := ""
	if result.Err != nil {
		detail = result.Err.Error()
	}
	o.events.StageEvent(ctx, job.Slug, name, result.Status, detail)
	o.logger.Debug("stage finished",
		"slug", job.Slug, "stage", string(name),
		"status", string(result.Status),
		"duration", time.Since(startTime).String())
	return result
}

// GetRun reports the state of a run: a snapshot of the live state for an
// in-flight run, otherwise a view reconstructed from the persisted
// artifacts. Never the live struct; the run goroutine is still writing it.
func (o *Orchestrator) GetRun(slug string) (*models.PipelineRun, error) {
	if v, ok := o.activeRuns.Load(slug); ok {
		return v.(*models.PipelineRun).Snapshot(), nil
	}

	run := models.NewPipelineRun(slug, "")
	found := 0
	for _, name := range models.StageOrder {
		if o.store.Exists(slug, name) {
			run.MarkStage(name, models.StageStatusSucceeded)
			found++
		}
	}
	if found == 0 {
		return nil, fmt.Errorf("run %s: %w", slug, store.ErrNotFound)
	}
	if found == len(models.StageOrder) {
		run.MarkCompleted()
	} else {
		run.MarkAborted(nil)
	}
	return run, nil
}

// Close waits for background runs launched via StartRunAsync to finish.
func (o *Orchestrator) Close() error {
	o.background.Wait()
	return o.events.Close()
}
