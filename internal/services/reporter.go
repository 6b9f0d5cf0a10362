package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"newsroom-pipeline/internal/capability"
	"newsroom-pipeline/internal/models"
	"newsroom-pipeline/internal/pkg/logger"
	"newsroom-pipeline/internal/store"
)

const draftsSubdir = "reporter"

// revisionPhases is the fixed review order: substance before polish. Each
// phase reviews the current draft and rewrites it at most once. This is a
// deliberately different shape from the research loop, which iterates until
// sufficiency; here the phase count and order never vary.
var revisionPhases = []models.RevisionPass{
	models.RevisionPassFact,
	models.RevisionPassStyle,
}

// Reporter writes the draft from the research package, then runs it through
// the two-phase review cycle. Every body the draft passes through is
// snapshotted under drafts/ for the editors to diff.
type Reporter struct {
	gateway CapabilityGateway
	store   *store.Store
	logger  *logger.Logger
}

func NewReporter(gateway CapabilityGateway, artifactStore *store.Store, log *logger.Logger) *Reporter {
	return &Reporter{gateway: gateway, store: artifactStore, logger: log}
}

func (s *Reporter) Name() models.StageName {
	return models.StageReporter
}

func (s *Reporter) Requires() []models.StageName {
	return []models.StageName{models.StageAssignmentEditor, models.StageResearchAssistant}
}

type reviewOutcome struct {
	Rubric           models.ReviewRubric `json:"rubric" validate:"required"`
	Issues           []string            `json:"issues"`
	RevisionRequired bool                `json:"revision_required"`
}

func (s *Reporter) Run(ctx context.Context, job *StageJob) *models.StageResult {
	startTime := time.Now()

	var brief models.StoryBrief
	if err := s.store.Get(job.Slug, models.StageAssignmentEditor, &brief); err != nil {
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}
	var research models.ResearchPackage
	if err := s.store.Get(job.Slug, models.StageResearchAssistant, &research); err != nil {
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	body, err := s.writeInitialDraft(ctx, job, &brief, &research)
	if err != nil {
		s.logger.LogStage(job.Slug, string(s.Name()), "failed", time.Since(startTime), nil, err)
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}
	s.snapshot(job.Slug, "01_initial_draft.md", body)

	sources := collectSources(&research)
	draft := &models.DraftPackage{
		Body:           body,
		Sources:        sources,
		SourcesSection: formatSourcesSection(sources),
	}

	current := body
	snapshotSeq := 2
	for _, phase := range revisionPhases {
		outcome, err := s.review(ctx, job, &brief, &research, current, phase)
		if err != nil {
			s.logger.LogStage(job.Slug, string(s.Name()), "failed", time.Since(startTime), map[string]any{"phase": string(phase)}, err)
			return models.FailedResult(s.Name(), err, time.Since(startTime))
		}

		record := models.RevisionRecord{
			Pass:     phase,
			Feedback: outcome.Issues,
			Rubric:   outcome.Rubric,
		}
		if err := s.store.PutIntermediate(job.Slug, draftsSubdir, fmt.Sprintf("%02d_%s_review.json", snapshotSeq, phase), outcome); err != nil {
			s.logger.WithError(err).Warn("failed to persist review record", "slug", job.Slug, "phase", string(phase))
		}
		snapshotSeq++

		if outcome.RevisionRequired && len(outcome.Issues) > 0 {
			revised, err := s.revise(ctx, job, &brief, current, phase, outcome.Issues)
			if err != nil {
				s.logger.LogStage(job.Slug, string(s.Name()), "failed", time.Since(startTime), map[string]any{"phase": string(phase)}, err)
				return models.FailedResult(s.Name(), err, time.Since(startTime))
			}
			record.Revised = true
			record.Body = revised
			current = revised
			s.snapshot(job.Slug, fmt.Sprintf("%02d_%s_revision.md", snapshotSeq, phase), revised)
		}
		snapshotSeq++
		draft.Revisions = append(draft.Revisions, record)
	}

	if err := s.store.Put(job.Slug, s.Name(), draft); err != nil {
		return models.FailedResult(s.Name(), err, time.Since(startTime))
	}

	revisedCount := 0
	for _, r := range draft.Revisions {
		if r.Revised {
			revisedCount++
		}
	}
	s.logger.LogStage(job.Slug, string(s.Name()), "completed", time.Since(startTime), map[string]any{
		"words":     models.CountWords(draft.FinalBody()),
		"sources":   len(draft.Sources),
		"revisions": revisedCount,
	}, nil)
	return models.SucceededResult(s.Name(), draft, time.Since(startTime))
}

func (s *Reporter) writeInitialDraft(ctx context.Context, job *StageJob, brief *models.StoryBrief, research *models.ResearchPackage) (string, error) {
	low, high := brief.ArticleType.WordRange()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Write the article draft for this assignment.\n\nTopic: %s\nAngle: %s\nCategory: %s\nTarget length: %d-%d words (%s)\n\n",
		brief.Topic, brief.Angle, brief.Category, low, high, brief.ArticleType.Description())
	sb.WriteString("Research findings (your only source material; do not introduce facts beyond it):\n\n")
	for _, f := range research.AllFindings() {
		fmt.Fprintf(&sb, "- [%s] %s\n", f.Source, f.Content)
	}
	if research.Summary != "" {
		fmt.Fprintf(&sb, "\nResearch memo:\n%s\n", research.Summary)
	}
	sb.WriteString("\nWrite the full article body in markdown. No headline, no byline, no sources list. Attribute every claim of fact to its source in the prose.")

	resp, err := s.gateway.GenerateText(ctx, &capability.TextRequest{
		SystemRole: fmt.Sprintf("You are a staff reporter at %s.\n\n%s", magazineName, houseVoice),
		Prompt:     sb.String(),
		Tier:       job.Tier,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", models.NewTransientError("EMPTY_DRAFT", "reporter returned an empty draft")
	}
	return strings.TrimSpace(resp.Content), nil
}

func (s *Reporter) review(ctx context.Context, job *StageJob, brief *models.StoryBrief, research *models.ResearchPackage, body string, phase models.RevisionPass) (*reviewOutcome, error) {
	var focus string
	switch phase {
	case models.RevisionPassFact:
		var findings strings.Builder
		for _, f := range research.AllFindings() {
			fmt.Fprintf(&findings, "- [%s] %s\n", f.Source, f.Content)
		}
		focus = fmt.Sprintf(`Review this draft for FACTUAL soundness only. Check every claim against the research findings below. Flag anything unsupported, misattributed or overstated. Ignore style.

Research findings:
%s`, findings.String())
	case models.RevisionPassStyle:
		focus = fmt.Sprintf(`Review this draft for STYLE and house voice only. Assume the facts have already been verified; do not re-litigate them.

House voice:
%s`, houseVoice)
	}

	prompt := fmt.Sprintf(`%s

Draft:
---
%s
---

Respond with ONLY a JSON object:
- "rubric": integer scores 1 (poor) to 4 (excellent) for "accuracy", "attribution", "completeness", "compliance", "structure", "voice".
- "issues": concrete, actionable problems found, or an empty array.
- "revision_required": true only when the issues are serious enough that the draft must be rewritten before it can move on.`, focus, body)

	var outcome reviewOutcome
	err := s.gateway.GenerateStructured(ctx, &capability.TextRequest{
		SystemRole: fmt.Sprintf("You are a reviewing editor at %s. You are rigorous and specific; vague feedback is useless to the reporter.", magazineName),
		Prompt:     prompt,
		Tier:       job.Tier,
	}, &outcome)
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (s *Reporter) revise(ctx context.Context, job *StageJob, brief *models.StoryBrief, body string, phase models.RevisionPass, issues []string) (string, error) {
	low, high := brief.ArticleType.WordRange()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Revise your draft to resolve the %s-review feedback below. Keep the target length of %d-%d words. Change only what the feedback requires.\n\nFeedback:\n", phase, low, high)
	for _, issue := range issues {
		fmt.Fprintf(&sb, "- %s\n", issue)
	}
	fmt.Fprintf(&sb, "\nCurrent draft:\n---\n%s\n---\n\nRespond with ONLY the full revised article body in markdown.", body)

	resp, err := s.gateway.GenerateText(ctx, &capability.TextRequest{
		SystemRole: fmt.Sprintf("You are a staff reporter at %s revising your own draft.\n\n%s", magazineName, houseVoice),
		Prompt:     sb.String(),
		Tier:       job.Tier,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", models.NewTransientError("EMPTY_REVISION", "reviser returned an empty body")
	}
	return strings.TrimSpace(resp.Content), nil
}

func (s *Reporter) snapshot(slug, name, body string) {
	if _, err := s.store.PutRaw(slug, draftsSubdir, name, []byte(body)); err != nil {
		s.logger.WithError(err).Warn("failed to snapshot draft", "slug", slug, "name", name)
	}
}

func collectSources(research *models.ResearchPackage) []string {
	seen := make(map[string]struct{})
	var sources []string
	for _, f := range research.AllFindings() {
		if _, ok := seen[f.Source]; ok {
			continue
		}
		seen[f.Source] = struct{}{}
		sources = append(sources, f.Source)
	}
	sort.Strings(sources)
	return sources
}

func formatSourcesSection(sources []string) string {
	var sb strings.Builder
	sb.WriteString("## Sources\n\n")
	for _, s := range sources {
		fmt.Fprintf(&sb, "- %s\n", s)
	}
	return sb.String()
}
