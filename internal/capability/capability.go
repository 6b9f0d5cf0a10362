// Package capability provides the uniform gateway to the three external
// capability kinds the pipeline depends on: text generation with a validated
// output contract, web search, and image generation. All provider calls go
// through one retry/backoff/timeout policy with transient-vs-fatal
// classification.
package capability

import (
	"context"
	"time"
)

type Kind string

const (
	KindText   Kind = "text"
	KindSearch Kind = "search"
	KindImage  Kind = "image"
)

// Tier selects between the full-capability and the reduced-capability model.
type Tier string

const (
	TierSmart Tier = "smart"
	TierMini  Tier = "mini"
)

type TextRequest struct {
	Prompt       string
	SystemRole   string
	Context      string
	MaxTokens    int32
	Temperature  *float32
	JSONResponse bool
	Tier         Tier
}

type TextResponse struct {
	Content        string
	TokensUsed     int
	FinishReason   string
	ProcessingTime time.Duration
}

type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

type ImageRequest struct {
	Prompt string
	Size   string
}

type ImageResponse struct {
	Data        []byte
	ContentType string
}

// TextGenerator is the text-generation capability contract.
type TextGenerator interface {
	Generate(ctx context.Context, req *TextRequest) (*TextResponse, error)
}

// WebSearcher is the web-search capability contract. An empty result list is
// a valid response, not an error.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// ImageGenerator is the image-generation capability contract.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResponse, error)
}
