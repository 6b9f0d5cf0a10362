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

// CopyEditor polishes the reporter's final draft into the publishable
// article: headline, subtitle and clean body. A word count outside the
// article type's target range is flagged on the artifact, not failed, since
// the editor-in-chief makes the publication call.
type CopyEditor struct {
	gateway CapabilityGateway
	store   *store.Store
	logger  *logger.Logger
}

func NewCopyEditor(gateway CapabilityGateway, artifactStore *store.Store, log *logger.Logger) *CopyEditor {
	return &CopyEditor{gateway: gateway, store: artifactStore, logger: log}
}

func (s *CopyEditor) Name() models.StageName {
	return models.StageCopyEditor
}

func (s *CopyEditor) Requires() []models.StageName {
	return []models.StageName{models.StageAssignmentEditor, models.StageReporter}
}

type polishedArticle struct {
	Headline string `json:"headline" validate:"required"`
	Subtitle string `json:"subtitle"`
	Body     string `json:"body" validate:"required"`
}

func (s *CopyEditor) Run(ctx context.Context, job *StageJob) *models.StageResult {
	startTime := time.Now()

	var brief models.StoryBrief
	if err := s.store.Get(job.Slug, models.StageAssignmentEditor, &brief); err != nil {
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}
	var draft models.DraftPackage
	if err := s.store.Get(job.Slug, models.StageReporter, &draft); err != nil {
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	low, high := brief.ArticleType.WordRange()

	var polished polishedArticle
	err := s.gateway.GenerateStructured(ctx, &capability.TextRequest{
		SystemRole: fmt.Sprintf("You are the copy editor of %s.\n\n%s", magazineName, houseVoice),
		Prompt: fmt.Sprintf(`Prepare this reviewed draft for publication.

Topic: %s
Angle: %s
Target length: %d-%d words.

Draft:
---
%s
---

Tasks:
- Write a headline that delivers exactly what the body delivers.
- Write a one-sentence subtitle (dek).
- Copyedit the body: grammar, flow, paragraphing. Do not add or remove facts. Keep it within the target length.

Respond with ONLY a JSON object with keys "headline", "subtitle" and "body" (the full copyedited article in markdown).`,
			brief.Topic, brief.Angle, low, high, draft.FinalBody()),
		Tier: job.Tier,
	}, &polished)
	if err != nil {
		s.logger.LogStage(job.Slug, string(s.Name()), "failed", time.Since(startTime), nil, err)
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	article := &models.FinalArticle{
		Headline:      polished.Headline,
		Subtitle:      polished.Subtitle,
		Body:          polished.Body,
		WordCount:     models.CountWords(polished.Body),
		PublishedDate: models.Today(),
	}

	if article.WordCount < low || article.WordCount > high {
		article.WordCountNote = fmt.Sprintf("word count %d outside target range %d-%d for %s", article.WordCount, low, high, brief.ArticleType.Description())
		s.logger.Warn("word count outside target range",
			"slug", job.Slug, "words", article.WordCount, "target_low", low, "target_high", high)
	}

	if err := s.store.Put(job.Slug, s.Name(), article); err != nil {
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	s.logger.LogStage(job.Slug, string(s.Name()), "completed", time.Since(startTime), map[string]any{
		"headline": article.Headline,
		"words":    article.WordCount,
	}, nil)
	return models.SucceededResult(s.Name(), article, time.Since(startTime))
}
