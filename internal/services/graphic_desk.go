package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"newsroom-pipeline/internal/capability"
	"newsroom-pipeline/internal/models"
	"newsroom-pipeline/internal/pkg/logger"
	"newsroom-pipeline/internal/store"
)

const graphicsSubdir = "graphics"

// GraphicDesk produces the hero image: one prompt-engineering call over the
// finished article, then one image-generation call. Both the prompt text and
// the binary land under graphics/; the artifact only references them.
type GraphicDesk struct {
	gateway   CapabilityGateway
	store     *store.Store
	imageSize string
	logger    *logger.Logger
}

func NewGraphicDesk(gateway CapabilityGateway, artifactStore *store.Store, imageSize string, log *logger.Logger) *GraphicDesk {
	return &GraphicDesk{gateway: gateway, store: artifactStore, imageSize: imageSize, logger: log}
}

func (s *GraphicDesk) Name() models.StageName {
	return models.StageGraphicDesk
}

func (s *GraphicDesk) Requires() []models.StageName {
	return []models.StageName{models.StageAssignmentEditor, models.StageCopyEditor}
}

func (s *GraphicDesk) Run(ctx context.Context, job *StageJob) *models.StageResult {
	startTime := time.Now()

	var brief models.StoryBrief
	if err := s.store.Get(job.Slug, models.StageAssignmentEditor, &brief); err != nil {
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}
	var article models.FinalArticle
	if err := s.store.Get(job.Slug, models.StageCopyEditor, &article); err != nil {
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	peopleRule := "Do not depict any identifiable real person."
	if brief.PeopleInGraphics != "" {
		peopleRule = fmt.Sprintf("The only real people who may appear are: %s.", brief.PeopleInGraphics)
	}

	resp, err := s.gateway.GenerateText(ctx, &capability.TextRequest{
		SystemRole: fmt.Sprintf("You are the art director of %s. You write prompts for a photorealistic image model.", magazineName),
		Prompt: fmt.Sprintf(`Write one image-generation prompt for the hero illustration of this article.

Headline: %s
Subtitle: %s
Category: %s

Article opening:
%s

Constraints:
- Editorial magazine cover quality, photorealistic or painterly, no text or typography in the image.
- %s

Respond with ONLY the prompt text.`,
			article.Headline, article.Subtitle, brief.Category, excerpt(article.Body, 800), peopleRule),
		Tier: job.Tier,
	})
	if err != nil {
		s.logger.LogStage(job.Slug, string(s.Name()), "failed", time.Since(startTime), nil, err)
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	prompt := strings.TrimSpace(resp.Content)
	if prompt == "" {
		err := models.NewTransientError("EMPTY_IMAGE_PROMPT", "art direction call returned no prompt")
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}
	if _, err := s.store.PutRaw(job.Slug, graphicsSubdir, "hero_prompt.txt", []byte(prompt)); err != nil {
		s.logger.WithError(err).Warn("failed to persist hero prompt", "slug", job.Slug)
	}

	image, err := s.gateway.GenerateImage(ctx, &capability.ImageRequest{Prompt: prompt, Size: s.imageSize})
	if err != nil {
		s.logger.LogStage(job.Slug, string(s.Name()), "failed", time.Since(startTime), nil, err)
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	assetPath, err := s.store.PutRaw(job.Slug, graphicsSubdir, "hero_image"+extensionFor(image.ContentType), image.Data)
	if err != nil {
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	ref := &models.HeroImageRef{
		Prompt:      prompt,
		AssetPath:   filepath.ToSlash(assetPath),
		ContentType: image.ContentType,
	}
	if err := s.store.Put(job.Slug, s.Name(), ref); err != nil {
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	s.logger.LogStage(job.Slug, string(s.Name()), "completed", time.Since(startTime), map[string]any{
		"asset":        ref.AssetPath,
		"content_type": ref.ContentType,
		"bytes":        len(image.Data),
	}, nil)
	return models.SucceededResult(s.Name(), ref, time.Since(startTime))
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func excerpt(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
