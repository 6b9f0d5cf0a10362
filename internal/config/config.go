package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type GeminiConfig struct {
	APIKey      string        `validate:"required"`
	SmartModel  string        `validate:"required"`
	MiniModel   string        `validate:"required"`
	MaxTokens   int           `validate:"min=1"`
	Temperature float64       `validate:"min=0,max=2"`
	Timeout     time.Duration `validate:"min=1s"`
}

type SearchConfig struct {
	APIKey     string `validate:"required"`
	BaseURL    string `validate:"required,url"`
	MaxResults int    `validate:"min=1,max=20"`
	Timeout    time.Duration
}

type ImageConfig struct {
	Model   string `validate:"required"`
	Size    string
	Timeout time.Duration
}

type RedisConfig struct {
	Enabled      bool
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type StoreConfig struct {
	RootDir string `validate:"required"`
}

// PipelineConfig holds the loop ceilings and the uniform retry policy
// applied around every capability call.
type PipelineConfig struct {
	MaxResearchTurns    int           `validate:"min=1"`
	SearchWorkers       int           `validate:"min=1,max=16"`
	SchemaRepairRetries int           `validate:"min=0"`
	RetryAttempts       int           `validate:"min=1"`
	RetryBackoffBase    time.Duration `validate:"min=10ms"`
	CallTimeout         time.Duration `validate:"min=1s"`
	ExtractContent      bool
}

type LogConfig struct {
	Level      string `validate:"required,oneof=debug info warn error"`
	Format     string `validate:"oneof=json text"`
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type HTTPConfig struct {
	Port         int `validate:"min=1,max=65535"`
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type Config struct {
	Environment string
	Gemini      GeminiConfig
	Search      SearchConfig
	Image       ImageConfig
	Redis       RedisConfig
	Store       StoreConfig
	Pipeline    PipelineConfig
	Log         LogConfig
	HTTP        HTTPConfig
}

// Load builds the configuration once at process start. A .env file is picked
// up when present; explicit environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Gemini: GeminiConfig{
			APIKey:      os.Getenv("GEMINI_API_KEY"),
			SmartModel:  getEnv("GEMINI_SMART_MODEL", "gemini-2.5-pro"),
			MiniModel:   getEnv("GEMINI_MINI_MODEL", "gemini-2.5-flash"),
			MaxTokens:   getEnvInt("GEMINI_MAX_TOKENS", 8192),
			Temperature: getEnvFloat("GEMINI_TEMPERATURE", 0.7),
			Timeout:     getEnvDuration("GEMINI_TIMEOUT", 90*time.Second),
		},
		Search: SearchConfig{
			APIKey:     os.Getenv("SEARCH_API_KEY"),
			BaseURL:    getEnv("SEARCH_BASE_URL", "https://api.tavily.com"),
			MaxResults: getEnvInt("SEARCH_MAX_RESULTS", 3),
			Timeout:    getEnvDuration("SEARCH_TIMEOUT", 30*time.Second),
		},
		Image: ImageConfig{
			Model:   getEnv("IMAGE_MODEL", "imagen-4.0-generate-001"),
			Size:    getEnv("IMAGE_SIZE", "16:9"),
			Timeout: getEnvDuration("IMAGE_TIMEOUT", 120*time.Second),
		},
		Redis: RedisConfig{
			Enabled:      getEnvBool("REDIS_ENABLED", false),
			URL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Store: StoreConfig{
			RootDir: getEnv("ARTIFACTS_DIR", "artifacts"),
		},
		Pipeline: PipelineConfig{
			MaxResearchTurns:    getEnvInt("MAX_RESEARCH_TURNS", 3),
			SearchWorkers:       getEnvInt("SEARCH_WORKERS", 4),
			SchemaRepairRetries: getEnvInt("SCHEMA_REPAIR_RETRIES", 2),
			RetryAttempts:       getEnvInt("RETRY_ATTEMPTS", 3),
			RetryBackoffBase:    getEnvDuration("RETRY_BACKOFF_BASE", 500*time.Millisecond),
			CallTimeout:         getEnvDuration("CALL_TIMEOUT", 120*time.Second),
			ExtractContent:      getEnvBool("EXTRACT_CONTENT", false),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		},
		HTTP: HTTPConfig{
			Port:         getEnvInt("PORT", 8080),
			ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
