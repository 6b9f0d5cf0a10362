package models

import (
	"fmt"
	"strings"
	"time"
)

type ArticleType string

const (
	ArticleTypeShortForm ArticleType = "short_form"
	ArticleTypeLongForm  ArticleType = "long_form"
)

// WordRange returns the target word-count range for the article type.
func (t ArticleType) WordRange() (int, int) {
	switch t {
	case ArticleTypeLongForm:
		return 1500, 2000
	default:
		return 400, 700
	}
}

func (t ArticleType) Description() string {
	low, high := t.WordRange()
	switch t {
	case ArticleTypeLongForm:
		return fmt.Sprintf("Standard Feature (%d-%d words)", low, high)
	default:
		return fmt.Sprintf("Web Daily (%d-%d words)", low, high)
	}
}

type Category string

const (
	CategoryScience     Category = "Science"
	CategoryHistory     Category = "History"
	CategoryPlanetEarth Category = "Planet Earth"
	CategoryMystery     Category = "Mystery"
)

// StoryBrief is the Assignment Editor's output: the editorial direction the
// rest of the pipeline works from.
type StoryBrief struct {
	Topic             string      `json:"topic" validate:"required"`
	Angle             string      `json:"angle" validate:"required"`
	Category          Category    `json:"category" validate:"required,oneof=Science History 'Planet Earth' Mystery"`
	ArticleType       ArticleType `json:"article_type" validate:"required,oneof=short_form long_form"`
	ResearchQuestions []string    `json:"research_questions" validate:"required,min=1,dive,required"`
	Slug              string      `json:"slug" validate:"required"`
	PeopleInGraphics  string      `json:"people_in_graphics"`
}

func (b *StoryBrief) ToMarkdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Story Brief: %s\n\n", b.Topic)
	fmt.Fprintf(&sb, "**Angle:** %s\n\n", b.Angle)
	fmt.Fprintf(&sb, "**Category:** %s\n\n", b.Category)
	fmt.Fprintf(&sb, "**Article Type:** %s\n\n", b.ArticleType.Description())
	sb.WriteString("## Research Questions\n\n")
	for i, q := range b.ResearchQuestions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
	}
	fmt.Fprintf(&sb, "\n**Slug:** %s\n", b.Slug)
	if b.PeopleInGraphics != "" {
		fmt.Fprintf(&sb, "\n**People in Graphics:** %s\n", b.PeopleInGraphics)
	}
	return sb.String()
}

// Finding is one curated piece of research material, traceable to the query
// that produced it.
type Finding struct {
	Source    string `json:"source" validate:"required"`
	Content   string `json:"content" validate:"required"`
	Relevance string `json:"relevance"`
	Query     string `json:"query" validate:"required"`
}

type SearchResultItem struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// SearchTurn records one pass of the research loop: the queries issued, the
// raw results that came back, and the findings extracted from them.
type SearchTurn struct {
	Number   int                `json:"number"`
	Queries  []string           `json:"queries"`
	Results  []SearchResultItem `json:"results"`
	Findings []Finding          `json:"findings"`
}

type ResearchPackage struct {
	Turns     []SearchTurn `json:"turns"`
	Summary   string       `json:"summary"`
	Exhausted bool         `json:"exhausted,omitempty"`
}

func (p *ResearchPackage) AllFindings() []Finding {
	var findings []Finding
	for _, turn := range p.Turns {
		findings = append(findings, turn.Findings...)
	}
	return findings
}

func (p *ResearchPackage) ToMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# Research Package\n\n")
	findings := p.AllFindings()
	fmt.Fprintf(&sb, "**Turns:** %d\n\n**Total Items:** %d\n\n", len(p.Turns), len(findings))
	if p.Exhausted {
		sb.WriteString("*Note: turn ceiling reached before research was judged sufficient; package holds the best partial result.*\n\n")
	}
	for i, item := range findings {
		fmt.Fprintf(&sb, "### %d. %s\n", i+1, item.Source)
		fmt.Fprintf(&sb, "**Relevance:** %s\n\n", item.Relevance)
		fmt.Fprintf(&sb, "```text\n%s\n```\n\n---\n\n", item.Content)
	}
	if p.Summary != "" {
		fmt.Fprintf(&sb, "## Synthesized Findings\n\n%s\n", p.Summary)
	}
	return sb.String()
}

type RevisionPass string

const (
	RevisionPassFact  RevisionPass = "fact"
	RevisionPassStyle RevisionPass = "style"
)

// ReviewRubric scores a draft 1-4 across the magazine's quality dimensions.
type ReviewRubric struct {
	Accuracy     int `json:"accuracy" validate:"min=1,max=4"`
	Attribution  int `json:"attribution" validate:"min=1,max=4"`
	Completeness int `json:"completeness" validate:"min=1,max=4"`
	Compliance   int `json:"compliance" validate:"min=1,max=4"`
	Structure    int `json:"structure" validate:"min=1,max=4"`
	Voice        int `json:"voice" validate:"min=1,max=4"`
}

func (r ReviewRubric) ToMarkdown() string {
	labels := map[int]string{1: "POOR", 2: "FAIR", 3: "GOOD", 4: "EXCELLENT"}
	rows := []struct {
		name  string
		score int
	}{
		{"accuracy", r.Accuracy},
		{"attribution", r.Attribution},
		{"completeness", r.Completeness},
		{"compliance", r.Compliance},
		{"structure", r.Structure},
		{"voice", r.Voice},
	}
	var sb strings.Builder
	sb.WriteString("| Dimension | Score |\n|-----------|-------|\n")
	for _, row := range rows {
		fmt.Fprintf(&sb, "| %s | %s (%d) |\n", row.name, labels[row.score], row.score)
	}
	return sb.String()
}

// RevisionRecord captures one review pass over the draft: the feedback the
// reviewer returned and, when a revision happened, the resulting body.
type RevisionRecord struct {
	Pass     RevisionPass `json:"pass"`
	Feedback []string     `json:"feedback"`
	Rubric   ReviewRubric `json:"rubric"`
	Revised  bool         `json:"revised"`
	Body     string       `json:"body,omitempty"`
}

type DraftPackage struct {
	Body           string           `json:"body" validate:"required"`
	Sources        []string         `json:"sources"`
	SourcesSection string           `json:"sources_section"`
	Revisions      []RevisionRecord `json:"revisions"`
}

// FinalBody returns the body after the last revision that actually rewrote
// the draft, or the initial body when no pass revised it.
func (d *DraftPackage) FinalBody() string {
	for i := len(d.Revisions) - 1; i >= 0; i-- {
		if d.Revisions[i].Revised && d.Revisions[i].Body != "" {
			return d.Revisions[i].Body
		}
	}
	return d.Body
}

func (d *DraftPackage) ToMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# Draft Package\n\n## Full Draft\n\n")
	sb.WriteString(d.FinalBody())
	sb.WriteString("\n\n## Sources\n\n")
	sb.WriteString(d.SourcesSection)
	sb.WriteString("\n")
	for _, s := range d.Sources {
		fmt.Fprintf(&sb, "- %s\n", s)
	}
	if len(d.Revisions) > 0 {
		sb.WriteString("\n## Revision History\n\n")
		for _, rec := range d.Revisions {
			fmt.Fprintf(&sb, "### %s review\n\n", rec.Pass)
			if len(rec.Feedback) == 0 {
				sb.WriteString("*No issues found*\n\n")
				continue
			}
			for _, issue := range rec.Feedback {
				fmt.Fprintf(&sb, "- %s\n", issue)
			}
			fmt.Fprintf(&sb, "\nRevised: %v\n\n", rec.Revised)
		}
	}
	return sb.String()
}

type FinalArticle struct {
	Headline      string `json:"headline" validate:"required"`
	Subtitle      string `json:"subtitle"`
	Body          string `json:"body" validate:"required"`
	WordCount     int    `json:"word_count"`
	WordCountNote string `json:"word_count_note,omitempty"`
	PublishedDate string `json:"published_date,omitempty"`
}

func (a *FinalArticle) ToMarkdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", a.Headline)
	if a.PublishedDate != "" {
		fmt.Fprintf(&sb, "*Published: %s*\n\n", a.PublishedDate)
	}
	if a.Subtitle != "" {
		fmt.Fprintf(&sb, "*%s*\n\n", a.Subtitle)
	}
	sb.WriteString(a.Body)
	sb.WriteString("\n")
	return sb.String()
}

type HeroImageRef struct {
	Prompt      string `json:"prompt" validate:"required"`
	AssetPath   string `json:"asset_path" validate:"required"`
	ContentType string `json:"content_type"`
}

func (h *HeroImageRef) ToMarkdown() string {
	return fmt.Sprintf("# Hero Image\n\n**Prompt:** %s\n\n**Asset:** %s\n", h.Prompt, h.AssetPath)
}

type Decision string

const (
	DecisionApproved          Decision = "approved"
	DecisionRevisionRequested Decision = "revision_requested"
)

type PublicationApproval struct {
	Decision          Decision `json:"decision" validate:"required,oneof=approved revision_requested"`
	GuardrailFindings []string `json:"guardrail_findings"`
	Rationale         string   `json:"rationale" validate:"required"`
}

func (a *PublicationApproval) ToMarkdown() string {
	var sb strings.Builder
	status := "APPROVED"
	if a.Decision != DecisionApproved {
		status = "REVISION REQUESTED"
	}
	fmt.Fprintf(&sb, "# Publication Decision\n\n**Status:** %s\n\n", status)
	if len(a.GuardrailFindings) > 0 {
		sb.WriteString("## Guardrail Findings\n\n")
		for _, f := range a.GuardrailFindings {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "## Rationale\n\n%s\n", a.Rationale)
	return sb.String()
}

// CountWords counts whitespace-separated words in an article body.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

func Today() string {
	return time.Now().Format("January 2, 2006")
}
