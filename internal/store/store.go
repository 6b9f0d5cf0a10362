package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"newsroom-pipeline/internal/config"
	"newsroom-pipeline/internal/models"
	"newsroom-pipeline/internal/pkg/logger"
)

// ErrNotFound signals an absent artifact. It is a recoverable condition the
// caller checks before running a stage, not a failure to propagate blindly.
var ErrNotFound = errors.New("artifact not found")

// Markdowner is implemented by artifacts that also persist a human-readable
// rendition next to their JSON record.
type Markdowner interface {
	ToMarkdown() string
}

// Store persists one JSON artifact per (slug, stage) key under a run
// directory, plus subdirectories for multi-file stage intermediates and
// binary assets. Writes replace atomically via temp file + rename, so a
// resumed run never sees a partial artifact.
type Store struct {
	root   string
	logger *logger.Logger
}

func New(cfg config.StoreConfig, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.RootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts root: %w", err)
	}
	return &Store{root: cfg.RootDir, logger: log}, nil
}

func (s *Store) RunDir(slug string) string {
	return filepath.Join(s.root, slug)
}

func (s *Store) artifactPath(slug string, stage models.StageName) string {
	return filepath.Join(s.RunDir(slug), string(stage)+".json")
}

// Put writes the artifact for (slug, stage), replacing any prior record.
func (s *Store) Put(slug string, stage models.StageName, artifact any) error {
	dir := s.RunDir(slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return models.NewInternalError("SERIALIZATION_FAILED", "failed to serialize artifact").WithCause(err)
	}

	if err := atomicWrite(s.artifactPath(slug, stage), data); err != nil {
		return fmt.Errorf("write artifact %s/%s: %w", slug, stage, err)
	}

	if md, ok := artifact.(Markdowner); ok {
		mdPath := filepath.Join(dir, string(stage)+".md")
		if err := atomicWrite(mdPath, []byte(md.ToMarkdown())); err != nil {
			s.logger.WithError(err).Warn("failed to write markdown rendition", "slug", slug, "stage", stage)
		}
	}

	s.logger.Debug("artifact stored", "slug", slug, "stage", string(stage), "bytes", len(data))
	return nil
}

// Get reads the artifact for (slug, stage) into out.
func (s *Store) Get(slug string, stage models.StageName, out any) error {
	data, err := os.ReadFile(s.artifactPath(slug, stage))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s/%s: %w", slug, stage, ErrNotFound)
		}
		return fmt.Errorf("read artifact %s/%s: %w", slug, stage, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return models.NewInternalError("DESERIALIZATION_FAILED", "failed to deserialize artifact").WithCause(err)
	}
	return nil
}

func (s *Store) Exists(slug string, stage models.StageName) bool {
	_, err := os.Stat(s.artifactPath(slug, stage))
	return err == nil
}

// PutIntermediate writes a JSON record below a stage's subdirectory,
// e.g. research/turn_1.json.
func (s *Store) PutIntermediate(slug, subdir, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return models.NewInternalError("SERIALIZATION_FAILED", "failed to serialize intermediate").WithCause(err)
	}
	_, err = s.PutRaw(slug, subdir, name, data)
	return err
}

// PutRaw writes arbitrary bytes below a stage's subdirectory and returns the
// path, relative to the artifacts root. Used for binary blobs and snapshots.
func (s *Store) PutRaw(slug, subdir, name string, data []byte) (string, error) {
	dir := filepath.Join(s.RunDir(slug), subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s dir: %w", subdir, err)
	}
	path := filepath.Join(dir, name)
	if err := atomicWrite(path, data); err != nil {
		return "", fmt.Errorf("write %s/%s/%s: %w", slug, subdir, name, err)
	}
	return path, nil
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
