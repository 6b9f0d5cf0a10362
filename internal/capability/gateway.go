package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"

	"newsroom-pipeline/internal/config"
	"newsroom-pipeline/internal/models"
	"newsroom-pipeline/internal/pkg/logger"
)

// Gateway fronts the three capability kinds with a uniform policy: per-call
// timeout, exponential retry for transient failures, a circuit breaker per
// kind, and schema validation with repair re-prompting for structured text
// output.
type Gateway struct {
	text   TextGenerator
	search WebSearcher
	image  ImageGenerator

	cfg      config.PipelineConfig
	logger   *logger.Logger
	validate *validator.Validate

	textBreaker   *gobreaker.CircuitBreaker
	searchBreaker *gobreaker.CircuitBreaker
	imageBreaker  *gobreaker.CircuitBreaker
}

func NewGateway(text TextGenerator, search WebSearcher, image ImageGenerator, cfg config.PipelineConfig, log *logger.Logger) *Gateway {
	breaker := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
		})
	}

	return &Gateway{
		text:          text,
		search:        search,
		image:         image,
		cfg:           cfg,
		logger:        log,
		validate:      validator.New(),
		textBreaker:   breaker(string(KindText)),
		searchBreaker: breaker(string(KindSearch)),
		imageBreaker:  breaker(string(KindImage)),
	}
}

// classify maps an arbitrary provider error onto the pipeline taxonomy.
// Timeouts count as transient; anything already classified passes through.
// A cancelled context is the caller aborting, not a provider fault, so it
// stays unclassified and is never retried.
func classify(kind Kind, err error) error {
	var perr *models.PipelineError
	if errors.As(err, &perr) {
		return perr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewTimeoutError(strings.ToUpper(string(kind))+"_TIMEOUT", "capability call timed out").WithCause(err)
	}
	return models.WrapExternalError(strings.ToUpper(string(kind))+"_CALL_FAILED", err)
}

// invoke runs op through the kind's breaker with timeout, retrying transient
// failures with exponential backoff up to the configured attempt count.
func (g *Gateway) invoke(ctx context.Context, kind Kind, breaker *gobreaker.CircuitBreaker, op func(context.Context) (any, error)) (any, error) {
	attempt := 0
	operation := func() (any, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		defer cancel()

		result, err := breaker.Execute(func() (any, error) {
			return op(callCtx)
		})
		if err == nil {
			return result, nil
		}

		classified := classify(kind, err)
		if models.IsTransient(classified) {
			g.logger.WithError(classified).Warn("transient capability failure",
				"kind", string(kind), "attempt", attempt, "max_attempts", g.cfg.RetryAttempts)
			return nil, classified
		}
		return nil, backoff.Permanent(classified)
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = g.cfg.RetryBackoffBase

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(g.cfg.RetryAttempts)),
	)
	if err != nil {
		return nil, classify(kind, err)
	}
	return result, nil
}

// GenerateText runs a plain text-generation call under the gateway policy.
func (g *Gateway) GenerateText(ctx context.Context, req *TextRequest) (*TextResponse, error) {
	start := time.Now()
	result, err := g.invoke(ctx, KindText, g.textBreaker, func(callCtx context.Context) (any, error) {
		return g.text.Generate(callCtx, req)
	})
	if err != nil {
		g.logger.LogService("gateway", "generate_text", time.Since(start), map[string]any{
			"prompt_length": len(req.Prompt),
			"tier":          string(req.Tier),
		}, err)
		return nil, err
	}
	resp := result.(*TextResponse)
	g.logger.LogService("gateway", "generate_text", time.Since(start), map[string]any{
		"prompt_length":   len(req.Prompt),
		"response_length": len(resp.Content),
		"tier":            string(req.Tier),
	}, nil)
	return resp, nil
}

// GenerateStructured runs text generation and parses the response into out,
// validating it against out's declared schema. A validation failure is
// repaired by re-prompting with the error appended, up to the configured
// repair budget; exhausting it reports a schema violation.
func (g *Gateway) GenerateStructured(ctx context.Context, req *TextRequest, out any) error {
	prompt := req.Prompt
	var lastErr error

	for attempt := 0; attempt <= g.cfg.SchemaRepairRetries; attempt++ {
		attemptReq := *req
		attemptReq.Prompt = prompt
		attemptReq.JSONResponse = true

		resp, err := g.GenerateText(ctx, &attemptReq)
		if err != nil {
			return err
		}

		content := StripCodeFences(resp.Content)
		if err := json.Unmarshal([]byte(content), out); err != nil {
			lastErr = fmt.Errorf("response is not valid JSON: %w", err)
		} else if err := g.validate.Struct(out); err != nil {
			lastErr = fmt.Errorf("response failed schema validation: %w", err)
		} else {
			return nil
		}

		g.logger.WithError(lastErr).Warn("structured output rejected, re-prompting",
			"attempt", attempt+1, "repair_budget", g.cfg.SchemaRepairRetries)
		prompt = fmt.Sprintf("%s\n\nYour previous response was rejected: %v\nRespond again with ONLY a valid JSON object matching the required schema.", req.Prompt, lastErr)
	}

	return models.NewSchemaViolationError("SCHEMA_VIOLATION", "structured output failed validation after repair retries").WithCause(lastErr)
}

// Search runs a web-search call under the gateway policy.
func (g *Gateway) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	start := time.Now()
	result, err := g.invoke(ctx, KindSearch, g.searchBreaker, func(callCtx context.Context) (any, error) {
		return g.search.Search(callCtx, query, maxResults)
	})
	if err != nil {
		g.logger.LogService("gateway", "search", time.Since(start), map[string]any{"query": query}, err)
		return nil, err
	}
	results := result.([]SearchResult)
	g.logger.LogService("gateway", "search", time.Since(start), map[string]any{
		"query":         query,
		"results_count": len(results),
	}, nil)
	return results, nil
}

// GenerateImage runs an image-generation call under the gateway policy.
func (g *Gateway) GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResponse, error) {
	start := time.Now()
	result, err := g.invoke(ctx, KindImage, g.imageBreaker, func(callCtx context.Context) (any, error) {
		return g.image.GenerateImage(callCtx, req)
	})
	if err != nil {
		g.logger.LogService("gateway", "generate_image", time.Since(start), map[string]any{
			"prompt_length": len(req.Prompt),
		}, err)
		return nil, err
	}
	resp := result.(*ImageResponse)
	g.logger.LogService("gateway", "generate_image", time.Since(start), map[string]any{
		"bytes":        len(resp.Data),
		"content_type": resp.ContentType,
	}, nil)
	return resp, nil
}

// StripCodeFences removes markdown code fences a model may wrap around JSON.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
