package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"newsroom-pipeline/internal/capability"
	"newsroom-pipeline/internal/config"
	"newsroom-pipeline/internal/handlers"
	"newsroom-pipeline/internal/models"
	"newsroom-pipeline/internal/pkg/logger"
	"newsroom-pipeline/internal/services"
	"newsroom-pipeline/internal/store"
)

const usage = `newsroom-pipeline - editorial pipeline from idea to published article

Usage:
  newsroom-pipeline run [--from <stage>] [--mini] "<story idea>"
  newsroom-pipeline stage [--mini] <stage> <slug|idea>
  newsroom-pipeline serve

Stages: assignment_editor, research_assistant, reporter, copy_editor,
        graphic_desk, editor_in_chief

The stage command takes a slug for every stage except assignment_editor,
which takes the story idea itself. --from resumes the run whose slug the
idea derives to; passing the slug itself works too. --mini selects the
reduced-capability model tier.`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, artifactStore, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("failed to initialize pipeline")
		os.Exit(1)
	}
	defer orch.Close()

	switch os.Args[1] {
	case "run":
		runCommand(ctx, orch, artifactStore, os.Args[2:])
	case "stage":
		stageCommand(ctx, orch, os.Args[2:])
	case "serve":
		serveCommand(ctx, orch, cfg, log)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func buildPipeline(ctx context.Context, cfg *config.Config, log *logger.Logger) (*services.Orchestrator, *store.Store, error) {
	artifactStore, err := store.New(cfg.Store, log)
	if err != nil {
		return nil, nil, err
	}

	gemini, err := capability.NewGeminiClient(ctx, cfg.Gemini, cfg.Image, log)
	if err != nil {
		return nil, nil, err
	}
	search := capability.NewHTTPSearchClient(cfg.Search, log)
	gateway := capability.NewGateway(gemini, search, gemini, cfg.Pipeline, log)

	var extractor services.PageExtractor
	if cfg.Pipeline.ExtractContent {
		extractor = services.NewContentExtractor(cfg.Search.Timeout, log)
	}

	var events services.EventSink = services.NopEventSink{}
	if cfg.Redis.Enabled {
		sink, err := services.NewRedisEventSink(cfg.Redis, log)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, continuing without event sink")
		} else {
			events = sink
		}
	}

	stages := []services.Stage{
		services.NewAssignmentEditor(gateway, artifactStore, log),
		services.NewResearchAssistant(gateway, artifactStore, extractor, cfg.Pipeline, log),
		services.NewReporter(gateway, artifactStore, log),
		services.NewCopyEditor(gateway, artifactStore, log),
		services.NewGraphicDesk(gateway, artifactStore, cfg.Image.Size, log),
		services.NewEditorInChief(gateway, artifactStore, log),
	}

	orch, err := services.NewOrchestrator(stages, artifactStore, events, log)
	if err != nil {
		return nil, nil, err
	}
	return orch, artifactStore, nil
}

func runCommand(ctx context.Context, orch *services.Orchestrator, artifactStore *store.Store, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	from := fs.String("from", "", "resume from this stage, reusing upstream artifacts")
	mini := fs.Bool("mini", false, "use the reduced-capability model tier")
	fs.Parse(args)

	idea := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if idea == "" {
		fmt.Fprintln(os.Stderr, "run: a story idea is required")
		os.Exit(2)
	}

	var (
		run *models.PipelineRun
		err error
	)
	tier := tierFor(*mini)
	if *from != "" {
		slug := models.GenerateSlug(idea)
		run, err = orch.ResumePipeline(ctx, slug, idea, models.StageName(*from), tier)
	} else {
		run, err = orch.RunPipeline(ctx, idea, tier)
	}

	if run != nil {
		printRunSummary(run, artifactStore)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "\npipeline failed: %v\n", err)
		os.Exit(1)
	}
}

func stageCommand(ctx context.Context, orch *services.Orchestrator, args []string) {
	fs := flag.NewFlagSet("stage", flag.ExitOnError)
	mini := fs.Bool("mini", false, "use the reduced-capability model tier")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "stage: usage: stage [--mini] <stage> <slug|idea>")
		os.Exit(2)
	}
	name := models.StageName(fs.Arg(0))
	input := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))

	result, err := orch.RunSingleStage(ctx, name, input, tierFor(*mini))
	if err != nil {
		fmt.Fprintf(os.Stderr, "stage %s failed: %v\n", name, err)
		os.Exit(1)
	}
	fmt.Printf("stage %s: %s (%.1fs)\n", result.Stage, result.Status, result.Duration.Seconds())
}

func serveCommand(ctx context.Context, orch *services.Orchestrator, cfg *config.Config, log *logger.Logger) {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := handlers.New(orch, log)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handlers.Router(handler, log),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("http server listening", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown failed")
	}
}

func tierFor(mini bool) capability.Tier {
	if mini {
		return capability.TierMini
	}
	return capability.TierSmart
}

func printRunSummary(run *models.PipelineRun, artifactStore *store.Store) {
	fmt.Printf("\n=== Pipeline run: %s ===\n", run.Slug)
	fmt.Printf("Status: %s  Duration: %.1fs\n\n", run.Status, run.Duration().Seconds())
	for _, name := range models.StageOrder {
		fmt.Printf("  %-20s %s\n", name, run.Stages[name])
	}

	if run.Status != models.RunStatusCompleted {
		if run.Error != "" {
			fmt.Printf("\nError: %s\n", run.Error)
		}
		return
	}

	var article models.FinalArticle
	if err := artifactStore.Get(run.Slug, models.StageCopyEditor, &article); err == nil {
		fmt.Printf("\nHeadline:   %s\n", article.Headline)
		fmt.Printf("Word count: %d\n", article.WordCount)
		if article.WordCountNote != "" {
			fmt.Printf("Note:       %s\n", article.WordCountNote)
		}
	}
	var approval models.PublicationApproval
	if err := artifactStore.Get(run.Slug, models.StageEditorInChief, &approval); err == nil {
		fmt.Printf("Decision:   %s\n", approval.Decision)
		for _, finding := range approval.GuardrailFindings {
			fmt.Printf("  - %s\n", finding)
		}
	}
	fmt.Printf("\nArtifacts:  %s\n", artifactStore.RunDir(run.Slug))
}
