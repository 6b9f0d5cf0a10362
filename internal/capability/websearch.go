package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"newsroom-pipeline/internal/config"
	"newsroom-pipeline/internal/models"
	"newsroom-pipeline/internal/pkg/logger"
)

// HTTPSearchClient implements WebSearcher against a Tavily-compatible search
// API. Rate limits and server errors are transient; rejected credentials and
// malformed requests are fatal.
type HTTPSearchClient struct {
	cfg    config.SearchConfig
	client *http.Client
	logger *logger.Logger
}

func NewHTTPSearchClient(cfg config.SearchConfig, log *logger.Logger) *HTTPSearchClient {
	return &HTTPSearchClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log,
	}
}

type searchAPIRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type searchAPIResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func (c *HTTPSearchClient) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if maxResults <= 0 {
		maxResults = c.cfg.MaxResults
	}

	startTime := time.Now()

	body, err := json.Marshal(searchAPIRequest{
		APIKey:      c.cfg.APIKey,
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: "basic",
	})
	if err != nil {
		return nil, models.NewInternalError("SEARCH_ENCODE_FAILED", "failed to encode search request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, models.NewInternalError("SEARCH_REQUEST_FAILED", "failed to build search request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, models.NewTransientError("SEARCH_UNREACHABLE", "search API unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := fmt.Sprintf("search API returned %d: %s", resp.StatusCode, string(snippet))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, models.NewTransientError("SEARCH_UNAVAILABLE", msg)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, models.NewFatalError("SEARCH_AUTH_REJECTED", msg)
		default:
			return nil, models.NewFatalError("SEARCH_BAD_REQUEST", msg)
		}
	}

	var parsed searchAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, models.NewTransientError("SEARCH_DECODE_FAILED", "failed to decode search response").WithCause(err)
	}

	results := make([]SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, SearchResult{
			Title:   r.Title,
			Snippet: r.Content,
			URL:     r.URL,
		})
	}

	c.logger.Debug("search completed",
		"query", query,
		"results", len(results),
		"duration", time.Since(startTime).String())

	// Zero results is a valid outcome for a narrow query.
	return results, nil
}
