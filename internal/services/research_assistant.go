package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"newsroom-pipeline/internal/capability"
	"newsroom-pipeline/internal/config"
	"newsroom-pipeline/internal/models"
	"newsroom-pipeline/internal/pkg/logger"
	"newsroom-pipeline/internal/store"
)

const researchSubdir = "research"

// PageExtractor pulls readable text from a result URL so the evaluation call
// sees more than the search snippet. Optional; a nil extractor means
// snippet-only research.
type PageExtractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// ResearchAssistant answers the brief's research questions through a bounded
// search-and-evaluate loop. Each turn fans its queries out over a small
// worker pool, then asks the model to curate findings and either stop or
// propose follow-up queries. Hitting the turn ceiling is partial success,
// not failure: the package ships with what was gathered.
type ResearchAssistant struct {
	gateway   CapabilityGateway
	store     *store.Store
	extractor PageExtractor
	cfg       config.PipelineConfig
	logger    *logger.Logger
}

func NewResearchAssistant(gateway CapabilityGateway, artifactStore *store.Store, extractor PageExtractor, cfg config.PipelineConfig, log *logger.Logger) *ResearchAssistant {
	return &ResearchAssistant{gateway: gateway, store: artifactStore, extractor: extractor, cfg: cfg, logger: log}
}

func (s *ResearchAssistant) Name() models.StageName {
	return models.StageResearchAssistant
}

func (s *ResearchAssistant) Requires() []models.StageName {
	return []models.StageName{models.StageAssignmentEditor}
}

type turnAssessment struct {
	Findings        []models.Finding `json:"findings" validate:"dive"`
	Sufficient      bool             `json:"sufficient"`
	FollowupQueries []string         `json:"followup_queries"`
	Summary         string           `json:"summary" validate:"required"`
}

func (s *ResearchAssistant) Run(ctx context.Context, job *StageJob) *models.StageResult {
	startTime := time.Now()

	var brief models.StoryBrief
	if err := s.store.Get(job.Slug, models.StageAssignmentEditor, &brief); err != nil {
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	var (
		turns   []models.SearchTurn
		queries = brief.ResearchQuestions
		summary string
	)

	exhausted, err := RunBoundedLoop(ctx, s.cfg.MaxResearchTurns, func(ctx context.Context, turn int) (bool, error) {
		if len(queries) == 0 {
			return true, nil
		}

		results, err := s.searchAll(ctx, queries)
		if err != nil {
			return false, err
		}

		assessment, err := s.assess(ctx, job, &brief, turns, queries, results, turn)
		if err != nil {
			return false, err
		}

		record := models.SearchTurn{
			Number:   turn,
			Queries:  queries,
			Results:  results,
			Findings: assessment.Findings,
		}
		turns = append(turns, record)
		summary = assessment.Summary

		if err := s.store.PutIntermediate(job.Slug, researchSubdir, fmt.Sprintf("turn_%d.json", turn), record); err != nil {
			s.logger.WithError(err).Warn("failed to persist research turn", "slug", job.Slug, "turn", turn)
		}

		s.logger.Debug("research turn complete",
			"slug", job.Slug, "turn", turn,
			"findings", len(assessment.Findings),
			"sufficient", assessment.Sufficient)

		if assessment.Sufficient || len(assessment.FollowupQueries) == 0 {
			return true, nil
		}
		queries = assessment.FollowupQueries
		return false, nil
	})
	if err != nil {
		s.logger.LogStage(job.Slug, string(s.Name()), "failed", time.Since(startTime), nil, err)
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	pkg := &models.ResearchPackage{Turns: turns, Summary: summary, Exhausted: exhausted}
	if err := s.store.Put(job.Slug, s.Name(), pkg); err != nil {
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	s.logger.LogStage(job.Slug, string(s.Name()), "completed", time.Since(startTime), map[string]any{
		"turns":     len(turns),
		"findings":  len(pkg.AllFindings()),
		"exhausted": exhausted,
	}, nil)
	return models.SucceededResult(s.Name(), pkg, time.Since(startTime))
}

// searchAll fans queries out over a bounded worker pool and gathers every
// result. A query that fails is logged and skipped; the turn only fails when
// nothing at all came back and at least one query errored.
func (s *ResearchAssistant) searchAll(ctx context.Context, queries []string) ([]models.SearchResultItem, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		results  []models.SearchResultItem
		firstErr error
	)

	jobs := make(chan string)
	workers := s.cfg.SearchWorkers
	if workers > len(queries) {
		workers = len(queries)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for query := range jobs {
				found, err := s.gateway.Search(ctx, query, 0)
				if err != nil {
					s.logger.WithError(err).Warn("search query failed", "query", query)
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				items := make([]models.SearchResultItem, 0, len(found))
				for _, r := range found {
					items = append(items, models.SearchResultItem{
						Title:   r.Title,
						Snippet: s.enrich(ctx, r),
						URL:     r.URL,
					})
				}
				mu.Lock()
				results = append(results, items...)
				mu.Unlock()
			}
		}()
	}

	for _, query := range queries {
		jobs <- query
	}
	close(jobs)
	wg.Wait()

	if len(results) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// enrich swaps the search snippet for extracted page text when an extractor
// is configured and the page yields anything usable.
func (s *ResearchAssistant) enrich(ctx context.Context, result capability.SearchResult) string {
	if s.extractor == nil || !s.cfg.ExtractContent {
		return result.Snippet
	}
	content, err := s.extractor.Extract(ctx, result.URL)
	if err != nil || content == "" {
		return result.Snippet
	}
	return content
}

func (s *ResearchAssistant) assess(ctx context.Context, job *StageJob, brief *models.StoryBrief, prior []models.SearchTurn, queries []string, results []models.SearchResultItem, turn int) (*turnAssessment, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Story topic: %s\nAngle: %s\n\nResearch questions:\n", brief.Topic, brief.Angle)
	for _, q := range brief.ResearchQuestions {
		fmt.Fprintf(&sb, "- %s\n", q)
	}

	if len(prior) > 0 {
		sb.WriteString("\nFindings already gathered in earlier turns:\n")
		for _, t := range prior {
			for _, f := range t.Findings {
				fmt.Fprintf(&sb, "- [%s] %s\n", f.Source, f.Content)
			}
		}
	}

	fmt.Fprintf(&sb, "\nThis turn (%d of %d) searched for:\n", turn, s.cfg.MaxResearchTurns)
	for _, q := range queries {
		fmt.Fprintf(&sb, "- %s\n", q)
	}
	sb.WriteString("\nRaw results:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s (%s)\n%s\n\n", i+1, r.Title, r.URL, r.Snippet)
	}

	sb.WriteString(`Curate the raw results into research findings and judge whether the questions are now sufficiently answered to write the article.

Respond with ONLY a JSON object:
- "findings": array of {"source": URL or publication, "content": the relevant fact or passage, "relevance": why it matters to the story, "query": the search query it answers}. Only include material that genuinely helps the story.
- "sufficient": true if every research question has a usable answer.
- "followup_queries": if not sufficient, 1-4 sharper queries for the next turn; otherwise an empty array.
- "summary": a running synthesis of everything learned so far, usable as a research memo.`)

	var assessment turnAssessment
	err := s.gateway.GenerateStructured(ctx, &capability.TextRequest{
		SystemRole: fmt.Sprintf("You are a research assistant at %s. You curate web research for journalists and never invent sources.", magazineName),
		Prompt:     sb.String(),
		Tier:       job.Tier,
	}, &assessment)
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}
