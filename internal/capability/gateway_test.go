package capability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"newsroom-pipeline/internal/config"
	"newsroom-pipeline/internal/models"
	"newsroom-pipeline/internal/pkg/logger"
)

type scriptedText struct {
	calls     int
	responses []func() (*TextResponse, error)
}

func (s *scriptedText) Generate(ctx context.Context, req *TextRequest) (*TextResponse, error) {
	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx]()
}

func ok(content string) func() (*TextResponse, error) {
	return func() (*TextResponse, error) {
		return &TextResponse{Content: content}, nil
	}
}

func fail(err error) func() (*TextResponse, error) {
	return func() (*TextResponse, error) { return nil, err }
}

func testPipelineConfig(attempts int) config.PipelineConfig {
	return config.PipelineConfig{
		MaxResearchTurns:    3,
		SearchWorkers:       2,
		SchemaRepairRetries: 2,
		RetryAttempts:       attempts,
		RetryBackoffBase:    time.Millisecond,
		CallTimeout:         5 * time.Second,
	}
}

func newTextGateway(text TextGenerator, cfg config.PipelineConfig) *Gateway {
	return NewGateway(text, nil, nil, cfg, logger.NewNop())
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 3
	text := &scriptedText{responses: []func() (*TextResponse, error){
		fail(models.NewTransientError("X", "flaky")),
		fail(models.NewTransientError("X", "flaky")),
		ok("recovered"),
	}}
	g := newTextGateway(text, testPipelineConfig(attempts))

	resp, err := g.GenerateText(context.Background(), &TextRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("expected success after N-1 transient failures, got %v", err)
	}
	if resp.Content != "recovered" {
		t.Errorf("content = %q", resp.Content)
	}
	if text.calls != attempts {
		t.Errorf("provider called %d times, want %d", text.calls, attempts)
	}
}

func TestRetryExhaustionEscalatesTransient(t *testing.T) {
	attempts := 3
	text := &scriptedText{responses: []func() (*TextResponse, error){
		fail(models.NewTransientError("X", "still down")),
	}}
	g := newTextGateway(text, testPipelineConfig(attempts))

	_, err := g.GenerateText(context.Background(), &TextRequest{Prompt: "p"})
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if !models.IsTransient(err) {
		t.Errorf("escalated error must stay transient, got %v", err)
	}
	if text.calls != attempts {
		t.Errorf("provider called %d times, want exactly %d", text.calls, attempts)
	}
}

func TestFatalErrorIsNotRetried(t *testing.T) {
	text := &scriptedText{responses: []func() (*TextResponse, error){
		fail(models.NewFatalError("AUTH", "key rejected")),
	}}
	g := newTextGateway(text, testPipelineConfig(3))

	_, err := g.GenerateText(context.Background(), &TextRequest{Prompt: "p"})
	if !models.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if text.calls != 1 {
		t.Errorf("fatal failure must not be retried, provider called %d times", text.calls)
	}
}

func TestUnclassifiedErrorTreatedAsTransient(t *testing.T) {
	text := &scriptedText{responses: []func() (*TextResponse, error){
		fail(fmt.Errorf("connection reset")),
		ok("fine"),
	}}
	g := newTextGateway(text, testPipelineConfig(3))

	if _, err := g.GenerateText(context.Background(), &TextRequest{Prompt: "p"}); err != nil {
		t.Fatalf("unknown provider errors should be retried: %v", err)
	}
	if text.calls != 2 {
		t.Errorf("provider called %d times, want 2", text.calls)
	}
}

func TestCanceledContextIsNotReportedTransient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	text := &scriptedText{responses: []func() (*TextResponse, error){
		func() (*TextResponse, error) {
			cancel()
			return nil, context.Canceled
		},
	}}
	g := newTextGateway(text, testPipelineConfig(3))

	_, err := g.GenerateText(ctx, &TextRequest{Prompt: "p"})
	if err == nil {
		t.Fatal("expected error from cancelled call")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancellation must surface as context.Canceled, got %v", err)
	}
	if models.IsTransient(err) {
		t.Errorf("caller abort must not be classified as a provider fault: %v", err)
	}
	if text.calls != 1 {
		t.Errorf("cancelled call must not be retried, provider called %d times", text.calls)
	}
}

type structuredOut struct {
	Name  string `json:"name" validate:"required"`
	Score int    `json:"score" validate:"min=1,max=4"`
}

func TestGenerateStructuredParsesAndValidates(t *testing.T) {
	text := &scriptedText{responses: []func() (*TextResponse, error){
		ok("```json\n{\"name\": \"ok\", \"score\": 3}\n```"),
	}}
	g := newTextGateway(text, testPipelineConfig(3))

	var out structuredOut
	if err := g.GenerateStructured(context.Background(), &TextRequest{Prompt: "p"}, &out); err != nil {
		t.Fatalf("GenerateStructured: %v", err)
	}
	if out.Name != "ok" || out.Score != 3 {
		t.Errorf("parsed %+v", out)
	}
}

func TestGenerateStructuredRepairsInvalidOutput(t *testing.T) {
	text := &scriptedText{responses: []func() (*TextResponse, error){
		ok("this is not json"),
		ok(`{"name": "", "score": 9}`),
		ok(`{"name": "fixed", "score": 2}`),
	}}
	g := newTextGateway(text, testPipelineConfig(3))

	var out structuredOut
	if err := g.GenerateStructured(context.Background(), &TextRequest{Prompt: "p"}, &out); err != nil {
		t.Fatalf("expected repair loop to recover: %v", err)
	}
	if out.Name != "fixed" {
		t.Errorf("parsed %+v", out)
	}
	if text.calls != 3 {
		t.Errorf("provider called %d times, want 3", text.calls)
	}
}

func TestGenerateStructuredReportsSchemaViolation(t *testing.T) {
	cfg := testPipelineConfig(3)
	text := &scriptedText{responses: []func() (*TextResponse, error){
		ok("still not json"),
	}}
	g := newTextGateway(text, cfg)

	var out structuredOut
	err := g.GenerateStructured(context.Background(), &TextRequest{Prompt: "p"}, &out)
	if !models.IsSchemaViolation(err) {
		t.Fatalf("expected schema violation, got %v", err)
	}
	// Initial attempt plus the configured repair budget.
	if want := cfg.SchemaRepairRetries + 1; text.calls != want {
		t.Errorf("provider called %d times, want %d", text.calls, want)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := StripCodeFences(tt.in); got != tt.want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
