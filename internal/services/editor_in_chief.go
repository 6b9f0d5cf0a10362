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

// EditorInChief makes the publication decision: one call judging the
// finished article against the house guardrails. A RevisionRequested verdict
// is still a successful stage run; the verdict itself is the artifact and
// the pipeline ends either way.
type EditorInChief struct {
	gateway CapabilityGateway
	store   *store.Store
	logger  *logger.Logger
}

func NewEditorInChief(gateway CapabilityGateway, artifactStore *store.Store, log *logger.Logger) *EditorInChief {
	return &EditorInChief{gateway: gateway, store: artifactStore, logger: log}
}

func (s *EditorInChief) Name() models.StageName {
	return models.StageEditorInChief
}

func (s *EditorInChief) Requires() []models.StageName {
	return []models.StageName{models.StageAssignmentEditor, models.StageCopyEditor}
}

func (s *EditorInChief) Run(ctx context.Context, job *StageJob) *models.StageResult {
	startTime := time.Now()

	var brief models.StoryBrief
	if err := s.store.Get(job.Slug, models.StageAssignmentEditor, &brief); err != nil {
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}
	var article models.FinalArticle
	if err := s.store.Get(job.Slug, models.StageCopyEditor, &article); err != nil {
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	var approval models.PublicationApproval
	err := s.gateway.GenerateStructured(ctx, &capability.TextRequest{
		SystemRole: fmt.Sprintf("You are the editor-in-chief of %s. You sign off on publication and you are accountable for every guardrail.", magazineName),
		Prompt: fmt.Sprintf(`Decide whether this article may be published.

%s

Assignment: %s (%s)
Headline: %s
Subtitle: %s
Word count: %d%s

Body:
---
%s
---

Respond with ONLY a JSON object:
- "decision": "approved" or "revision_requested".
- "guardrail_findings": every guardrail concern found, or an empty array.
- "rationale": your editorial reasoning in a short paragraph.`,
			guardrailCriteria,
			brief.Topic, brief.Category,
			article.Headline, article.Subtitle,
			article.WordCount, wordCountSuffix(&article),
			article.Body),
		Tier: job.Tier,
	}, &approval)
	if err != nil {
		s.logger.LogStage(job.Slug, string(s.Name()), "failed", time.Since(startTime), nil, err)
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	if err := s.store.Put(job.Slug, s.Name(), &approval); err != nil {
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	s.logger.LogStage(job.Slug, string(s.Name()), "completed", time.Since(startTime), map[string]any{
		"decision": string(approval.Decision),
		"findings": len(approval.GuardrailFindings),
	}, nil)
	return models.SucceededResult(s.Name(), &approval, time.Since(startTime))
}

func wordCountSuffix(article *models.FinalArticle) string {
	if article.WordCountNote == "" {
		return ""
	}
	return fmt.Sprintf(" (note: %s)", article.WordCountNote)
}
