package forecast

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gold-trader/models"
)

// ArtifactStore persists trained model artifacts keyed by timeframe.
type ArtifactStore interface {
	Load(tf models.Timeframe) (*Model, error)
	Save(model *Model) error
}

// FileStore keeps one JSON artifact per timeframe in a directory, the same
// shape the training pipeline writes.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore, creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create model dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(tf models.Timeframe) string {
	return filepath.Join(s.dir, string(tf)+".json")
}

// Load reads the artifact for a timeframe. A missing file is
// ErrModelUnavailable; a malformed or inconsistent file is ErrModelIntegrity.
func (s *FileStore) Load(tf models.Timeframe) (*Model, error) {
	data, err := os.ReadFile(s.path(tf))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, tf)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact for %s: %w", tf, err)
	}

	var model Model
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("%w: malformed artifact for %s: %v", ErrModelIntegrity, tf, err)
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return &model, nil
}

// Save writes the artifact atomically via a temp file rename so a crashed
// write never leaves a truncated artifact behind.
func (s *FileStore) Save(model *Model) error {
	if err := model.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model artifact: %w", err)
	}

	tmp := s.path(model.Timeframe) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model artifact: %w", err)
	}
	if err := os.Rename(tmp, s.path(model.Timeframe)); err != nil {
		return fmt.Errorf("failed to publish model artifact: %w", err)
	}
	return nil
}
