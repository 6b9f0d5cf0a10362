package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"newsroom-pipeline/internal/config"
	"newsroom-pipeline/internal/models"
	"newsroom-pipeline/internal/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(config.StoreConfig{RootDir: t.TempDir()}, logger.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	brief := &models.StoryBrief{
		Topic:             "Bioluminescent bays",
		Angle:             "Why they are vanishing",
		Category:          models.CategoryPlanetEarth,
		ArticleType:       models.ArticleTypeShortForm,
		ResearchQuestions: []string{"What causes the glow?"},
		Slug:              "bioluminescent_bays",
	}
	if err := s.Put("bioluminescent_bays", models.StageAssignmentEditor, brief); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var got models.StoryBrief
	if err := s.Get("bioluminescent_bays", models.StageAssignmentEditor, &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Topic != brief.Topic || got.Category != brief.Category {
		t.Errorf("round trip mismatch: got %+v", got)
	}
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	s := newTestStore(t)

	var out models.StoryBrief
	err := s.Get("nope", models.StageAssignmentEditor, &out)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExists(t *testing.T) {
	s := newTestStore(t)
	slug := "a_run"

	if s.Exists(slug, models.StageReporter) {
		t.Error("Exists before Put must be false")
	}
	if err := s.Put(slug, models.StageReporter, &models.DraftPackage{Body: "text"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !s.Exists(slug, models.StageReporter) {
		t.Error("Exists after Put must be true")
	}
	if s.Exists(slug, models.StageCopyEditor) {
		t.Error("Exists must be per stage, not per run")
	}
}

func TestPutOverwrites(t *testing.T) {
	s := newTestStore(t)
	slug := "rerun"

	if err := s.Put(slug, models.StageCopyEditor, &models.FinalArticle{Headline: "First", Body: "a"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(slug, models.StageCopyEditor, &models.FinalArticle{Headline: "Second", Body: "b"}); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	var got models.FinalArticle
	if err := s.Get(slug, models.StageCopyEditor, &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Headline != "Second" {
		t.Errorf("re-running a stage must replace its artifact, got %q", got.Headline)
	}

	// Downstream artifacts are untouched by an upstream re-run.
	if err := s.Put(slug, models.StageEditorInChief, &models.PublicationApproval{Decision: models.DecisionApproved, Rationale: "fine"}); err != nil {
		t.Fatalf("Put downstream: %v", err)
	}
	if err := s.Put(slug, models.StageCopyEditor, &models.FinalArticle{Headline: "Third", Body: "c"}); err != nil {
		t.Fatalf("third Put: %v", err)
	}
	if !s.Exists(slug, models.StageEditorInChief) {
		t.Error("upstream overwrite must not cascade to downstream artifacts")
	}
}

func TestMarkdownRendition(t *testing.T) {
	s := newTestStore(t)
	slug := "with_markdown"

	article := &models.FinalArticle{Headline: "The Glow Below", Body: "Body text.", WordCount: 2}
	if err := s.Put(slug, models.StageCopyEditor, article); err != nil {
		t.Fatalf("Put: %v", err)
	}

	mdPath := filepath.Join(s.RunDir(slug), string(models.StageCopyEditor)+".md")
	data, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("markdown rendition missing: %v", err)
	}
	if len(data) == 0 {
		t.Error("markdown rendition is empty")
	}
}

func TestPutRawAndIntermediate(t *testing.T) {
	s := newTestStore(t)
	slug := "intermediates"

	path, err := s.PutRaw(slug, "graphics", "hero_image.png", []byte{0x89, 0x50})
	if err != nil {
		t.Fatalf("PutRaw: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("raw blob not on disk: %v", err)
	}

	turn := models.SearchTurn{Number: 1, Queries: []string{"q"}}
	if err := s.PutIntermediate(slug, "research", "turn_1.json", turn); err != nil {
		t.Fatalf("PutIntermediate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.RunDir(slug), "research", "turn_1.json")); err != nil {
		t.Errorf("intermediate not on disk: %v", err)
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	slug := "clean_dir"

	if err := s.Put(slug, models.StageAssignmentEditor, &models.StoryBrief{
		Topic: "t", Angle: "a", Category: models.CategoryScience,
		ArticleType: models.ArticleTypeShortForm, ResearchQuestions: []string{"q"}, Slug: slug,
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries, err := os.ReadDir(s.RunDir(slug))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" && filepath.Ext(e.Name()) != ".md" {
			t.Errorf("unexpected leftover file %q", e.Name())
		}
	}
}
