package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"newsroom-pipeline/internal/config"
	"newsroom-pipeline/internal/models"
	"newsroom-pipeline/internal/pkg/logger"
)

// GeminiClient implements TextGenerator and ImageGenerator against the
// Gemini API. Tier selects between the smart and mini text models.
type GeminiClient struct {
	client   *genai.Client
	cfg      config.GeminiConfig
	imageCfg config.ImageConfig
	logger   *logger.Logger
}

func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig, imageCfg config.ImageConfig, log *logger.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, models.NewFatalError("GEMINI_NO_CREDENTIALS", "Gemini API key required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	log.Info("Gemini client initialized",
		"smart_model", cfg.SmartModel,
		"mini_model", cfg.MiniModel,
		"image_model", imageCfg.Model)

	return &GeminiClient{client: client, cfg: cfg, imageCfg: imageCfg, logger: log}, nil
}

func (c *GeminiClient) modelFor(tier Tier) string {
	if tier == TierMini {
		return c.cfg.MiniModel
	}
	return c.cfg.SmartModel
}

func (c *GeminiClient) Generate(ctx context.Context, req *TextRequest) (*TextResponse, error) {
	startTime := time.Now()

	genCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	genCfg := &genai.GenerateContentConfig{}

	if req.SystemRole != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.SystemRole, genai.RoleUser)
	}

	if req.Temperature != nil {
		genCfg.Temperature = req.Temperature
	} else {
		temp := float32(c.cfg.Temperature)
		genCfg.Temperature = &temp
	}

	if req.MaxTokens != 0 {
		genCfg.MaxOutputTokens = req.MaxTokens
	} else {
		genCfg.MaxOutputTokens = int32(c.cfg.MaxTokens)
	}

	if req.JSONResponse {
		genCfg.ResponseMIMEType = "application/json"
	}

	var content []*genai.Content
	if req.Context != "" {
		parts := []*genai.Part{
			genai.NewPartFromText(fmt.Sprintf("Context: %s\n\n", req.Context)),
			genai.NewPartFromText(req.Prompt),
		}
		content = []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	} else {
		content = genai.Text(req.Prompt)
	}

	result, err := c.client.Models.GenerateContent(genCtx, c.modelFor(req.Tier), content, genCfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewTimeoutError("GEMINI_TIMEOUT", "content generation timed out").WithCause(err)
		}
		return nil, models.WrapExternalError("GEMINI_GENERATE_FAILED", err)
	}

	if len(result.Candidates) == 0 {
		return nil, models.NewTransientError("GEMINI_NO_CANDIDATES", "no response candidates generated")
	}

	candidate := result.Candidates[0]
	text := ""
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			text += part.Text
		}
	}

	return &TextResponse{
		Content:        text,
		TokensUsed:     len(req.Prompt)/4 + len(text)/4,
		FinishReason:   string(candidate.FinishReason),
		ProcessingTime: time.Since(startTime),
	}, nil
}

func (c *GeminiClient) GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResponse, error) {
	genCtx, cancel := context.WithTimeout(ctx, c.imageCfg.Timeout)
	defer cancel()

	imgCfg := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	}
	if req.Size != "" {
		imgCfg.AspectRatio = req.Size
	}

	result, err := c.client.Models.GenerateImages(genCtx, c.imageCfg.Model, req.Prompt, imgCfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewTimeoutError("IMAGE_TIMEOUT", "image generation timed out").WithCause(err)
		}
		return nil, models.WrapExternalError("IMAGE_GENERATE_FAILED", err)
	}

	if len(result.GeneratedImages) == 0 || result.GeneratedImages[0].Image == nil {
		return nil, models.NewTransientError("IMAGE_EMPTY_RESPONSE", "no image returned")
	}

	image := result.GeneratedImages[0].Image
	contentType := image.MIMEType
	if contentType == "" {
		contentType = "image/png"
	}

	return &ImageResponse{Data: image.ImageBytes, ContentType: contentType}, nil
}

// HealthCheck issues a minimal generation request with a short deadline.
func (c *GeminiClient) HealthCheck(ctx context.Context) error {
	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var temperature float32
	resp, err := c.Generate(testCtx, &TextRequest{
		Prompt:      "Respond with 'OK' if you can process this request",
		Temperature: &temperature,
		MaxTokens:   10,
		Tier:        TierMini,
	})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.Content == "" {
		return errors.New("empty response received")
	}
	return nil
}
