// Package services implements the editorial pipeline: the six desk stages,
// the orchestrator that runs them in order, and the supporting loop driver,
// page extractor and event sink.
package services

import (
	"context"

	"newsroom-pipeline/internal/capability"
	"newsroom-pipeline/internal/models"
)

// CapabilityGateway is the slice of the capability layer the stages use.
// Declared here so stage tests can script responses without a live gateway.
type CapabilityGateway interface {
	GenerateText(ctx context.Context, req *capability.TextRequest) (*capability.TextResponse, error)
	GenerateStructured(ctx context.Context, req *capability.TextRequest, out any) error
	Search(ctx context.Context, query string, maxResults int) ([]capability.SearchResult, error)
	GenerateImage(ctx context.Context, req *capability.ImageRequest) (*capability.ImageResponse, error)
}

// StageJob carries the per-run inputs a stage needs beyond stored artifacts.
type StageJob struct {
	Slug string
	Idea string
	Tier capability.Tier
}

// Stage is one desk in the pipeline. Requires lists the upstream artifacts
// that must exist before Run is attempted; the orchestrator verifies them
// against the store before any capability call is made.
type Stage interface {
	Name() models.StageName
	Requires() []models.StageName
	Run(ctx context.Context, job *StageJob) *models.StageResult
}
