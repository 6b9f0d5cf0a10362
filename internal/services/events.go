package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"newsroom-pipeline/internal/config"
	"newsroom-pipeline/internal/models"
	"newsroom-pipeline/internal/pkg/logger"
)

// EventSink receives run and stage lifecycle events. The pipeline treats it
// as best-effort telemetry; a sink failure never fails a run.
type EventSink interface {
	RunUpdated(ctx context.Context, run *models.PipelineRun)
	StageEvent(ctx context.Context, slug string, stage models.StageName, status models.StageStatus, detail string)
	Close() error
}

// NopEventSink is used when Redis is disabled and in tests.
type NopEventSink struct{}

func (NopEventSink) RunUpdated(context.Context, *models.PipelineRun) {}
func (NopEventSink) StageEvent(context.Context, string, models.StageName, models.StageStatus, string) {
}
func (NopEventSink) Close() error { return nil }

const (
	runKeyPrefix       = "newsroom:run:"
	stageUpdatesStream = "newsroom:stage_updates"
)

// RedisEventSink mirrors run state into Redis and appends stage transitions
// to a stream, so external dashboards can follow a run without touching the
// artifact directory.
type RedisEventSink struct {
	client *redis.Client
	logger *logger.Logger
}

func NewRedisEventSink(cfg config.RedisConfig, log *logger.Logger) (*RedisEventSink, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Info("Redis event sink connected", "pool_size", opts.PoolSize)
	return &RedisEventSink{client: client, logger: log}, nil
}

func (s *RedisEventSink) RunUpdated(ctx context.Context, run *models.PipelineRun) {
	data, err := json.Marshal(run.Snapshot())
	if err != nil {
		s.logger.WithError(err).Warn("failed to serialize run state", "slug", run.Slug)
		return
	}
	if err := s.client.Set(ctx, runKeyPrefix+run.Slug, data, 24*time.Hour).Err(); err != nil {
		s.logger.WithError(err).Warn("failed to mirror run state", "slug", run.Slug)
	}
}

func (s *RedisEventSink) StageEvent(ctx context.Context, slug string, stage models.StageName, status models.StageStatus, detail string) {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stageUpdatesStream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]any{
			"slug":      slug,
			"stage":     string(stage),
			"status":    string(status),
			"detail":    detail,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		s.logger.WithError(err).Warn("failed to append stage event", "slug", slug, "stage", string(stage))
	}
}

func (s *RedisEventSink) Close() error {
	return s.client.Close()
}
