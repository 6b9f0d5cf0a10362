package services

import (
	"context"
	"fmt"
	"time"

	"newsroom-pipeline/internal/capability"
	"newsroom-pipeline/internal/models"
	"newsroom-pipeline/internal/pkg/logger"
	"newsroom-pipeline/internal/store"
)

// AssignmentEditor turns a raw story idea into a StoryBrief: topic, angle,
// category, target format and the research questions the rest of the
// pipeline works from.
type AssignmentEditor struct {
	gateway CapabilityGateway
	store   *store.Store
	logger  *logger.Logger
}

func NewAssignmentEditor(gateway CapabilityGateway, artifactStore *store.Store, log *logger.Logger) *AssignmentEditor {
	return &AssignmentEditor{gateway: gateway, store: artifactStore, logger: log}
}

func (s *AssignmentEditor) Name() models.StageName {
	return models.StageAssignmentEditor
}

func (s *AssignmentEditor) Requires() []models.StageName {
	return nil
}

// briefDraft is the model-facing shape. Slug is assigned by the pipeline,
// not the model, so it is absent here.
type briefDraft struct {
	Topic             string             `json:"topic" validate:"required"`
	Angle             string             `json:"angle" validate:"required"`
	Category          models.Category    `json:"category" validate:"required,oneof=Science History 'Planet Earth' Mystery"`
	ArticleType       models.ArticleType `json:"article_type" validate:"required,oneof=short_form long_form"`
	ResearchQuestions []string           `json:"research_questions" validate:"required,min=3,dive,required"`
	PeopleInGraphics  string             `json:"people_in_graphics"`
}

func (s *AssignmentEditor) Run(ctx context.Context, job *StageJob) *models.StageResult {
	startTime := time.Now()

	if job.Idea == "" {
		err := models.NewFatalError("EMPTY_IDEA", "assignment editor needs a story idea")
		s.logger.LogStage(job.Slug, string(s.Name()), "failed", time.Since(startTime), nil, err)
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	var draft briefDraft
	err := s.gateway.GenerateStructured(ctx, &capability.TextRequest{
		SystemRole: fmt.Sprintf("You are the assignment editor of %s.\n\n%s", magazineName, houseVoice),
		Prompt: fmt.Sprintf(`Develop the following story idea into an assignment brief.

Story idea: %q

Decide:
- "topic": a focused, publishable topic statement (one sentence).
- "angle": the specific editorial angle that makes this story ours.
- "category": one of %s.
- "article_type": "short_form" for a Web Daily (%s) or "long_form" for a Standard Feature (%s).
- "research_questions": 3 to 6 concrete questions a researcher must answer before the piece can be written.
- "people_in_graphics": names of public figures that may appear in artwork, or an empty string if none.

Respond with ONLY a JSON object containing exactly those keys.`,
			job.Idea,
			categoryList,
			models.ArticleTypeShortForm.Description(),
			models.ArticleTypeLongForm.Description()),
		Tier: job.Tier,
	}, &draft)
	if err != nil {
		s.logger.LogStage(job.Slug, string(s.Name()), "failed", time.Since(startTime), nil, err)
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	brief := &models.StoryBrief{
		Topic:             draft.Topic,
		Angle:             draft.Angle,
		Category:          draft.Category,
		ArticleType:       draft.ArticleType,
		ResearchQuestions: draft.ResearchQuestions,
		Slug:              job.Slug,
		PeopleInGraphics:  draft.PeopleInGraphics,
	}

	if err := s.store.Put(job.Slug, s.Name(), brief); err != nil {
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	s.logger.LogStage(job.Slug, string(s.Name()), "completed", time.Since(startTime), map[string]any{
		"topic":        brief.Topic,
		"category":     string(brief.Category),
		"article_type": string(brief.ArticleType),
		"questions":    len(brief.ResearchQuestions),
	}, nil)
	return models.SucceededResult(s.Name(), brief, time.Since(startTime))
}
