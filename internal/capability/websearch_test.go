package capability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newsroom-pipeline/internal/config"
	"newsroom-pipeline/internal/models"
	"newsroom-pipeline/internal/pkg/logger"
)

func newSearchClient(baseURL string) *HTTPSearchClient {
	return NewHTTPSearchClient(config.SearchConfig{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		MaxResults: 3,
		Timeout:    5 * time.Second,
	}, logger.NewNop())
}

func TestSearchParsesResults(t *testing.T) {
	var gotReq searchAPIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "Vents", "url": "https://example.org/vents", "content": "Deep sea vents host life.", "score": 0.9},
			},
		})
	}))
	defer srv.Close()

	results, err := newSearchClient(srv.URL).Search(context.Background(), "deep sea vents", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Vents" || results[0].Snippet == "" {
		t.Errorf("results = %+v", results)
	}
	if gotReq.Query != "deep sea vents" || gotReq.MaxResults != 5 || gotReq.APIKey != "test-key" {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestSearchEmptyResultsIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	results, err := newSearchClient(srv.URL).Search(context.Background(), "nothing here", 0)
	if err != nil {
		t.Fatalf("empty result set must not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestSearchStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"rate limit is transient", http.StatusTooManyRequests, models.IsTransient},
		{"server error is transient", http.StatusBadGateway, models.IsTransient},
		{"bad credentials are fatal", http.StatusUnauthorized, models.IsFatal},
		{"bad request is fatal", http.StatusBadRequest, models.IsFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newSearchClient(srv.URL).Search(context.Background(), "q", 0)
			if err == nil || !tt.check(err) {
				t.Errorf("status %d classified wrong: %v", tt.status, err)
			}
		})
	}
}

func TestSearchUnreachableIsTransient(t *testing.T) {
	_, err := newSearchClient("http://127.0.0.1:1").Search(context.Background(), "q", 0)
	if !models.IsTransient(err) {
		t.Errorf("unreachable host must be transient, got %v", err)
	}
}
