package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "test-gemini-key")
	t.Setenv("SEARCH_API_KEY", "test-search-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Gemini.SmartModel != "gemini-2.5-pro" {
		t.Errorf("smart model = %q", cfg.Gemini.SmartModel)
	}
	if cfg.Gemini.MiniModel != "gemini-2.5-flash" {
		t.Errorf("mini model = %q", cfg.Gemini.MiniModel)
	}
	if cfg.Pipeline.MaxResearchTurns != 3 {
		t.Errorf("max research turns = %d, want 3", cfg.Pipeline.MaxResearchTurns)
	}
	if cfg.Pipeline.RetryAttempts != 3 {
		t.Errorf("retry attempts = %d, want 3", cfg.Pipeline.RetryAttempts)
	}
	if cfg.Pipeline.RetryBackoffBase != 500*time.Millisecond {
		t.Errorf("backoff base = %s", cfg.Pipeline.RetryBackoffBase)
	}
	if cfg.Store.RootDir != "artifacts" {
		t.Errorf("artifacts dir = %q", cfg.Store.RootDir)
	}
	if cfg.Redis.Enabled {
		t.Error("redis must default to disabled")
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("port = %d", cfg.HTTP.Port)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_RESEARCH_TURNS", "5")
	t.Setenv("RETRY_BACKOFF_BASE", "2s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GEMINI_SMART_MODEL", "gemini-exp")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.MaxResearchTurns != 5 {
		t.Errorf("max research turns = %d", cfg.Pipeline.MaxResearchTurns)
	}
	if cfg.Pipeline.RetryBackoffBase != 2*time.Second {
		t.Errorf("backoff base = %s", cfg.Pipeline.RetryBackoffBase)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Gemini.SmartModel != "gemini-exp" {
		t.Errorf("smart model = %q", cfg.Gemini.SmartModel)
	}
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SEARCH_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load must fail without capability credentials")
	}
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LOG_LEVEL", "loud")

	if _, err := Load(); err == nil {
		t.Fatal("Load must reject an unknown log level")
	}
}

func TestMalformedNumbersFallBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_RESEARCH_TURNS", "lots")
	t.Setenv("RETRY_BACKOFF_BASE", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.MaxResearchTurns != 3 {
		t.Errorf("malformed int must fall back to default, got %d", cfg.Pipeline.MaxResearchTurns)
	}
	if cfg.Pipeline.RetryBackoffBase != 500*time.Millisecond {
		t.Errorf("malformed duration must fall back to default, got %s", cfg.Pipeline.RetryBackoffBase)
	}
}
