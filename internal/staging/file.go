package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps one JSON file per stage under a local directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the staging directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("staging: create dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(stage string) string {
	return filepath.Join(s.dir, stage+".json")
}

// Write replaces the staged batch for stage. The write goes through a
// temp file and rename so a crash never leaves a half-written batch.
func (s *FileStore) Write(ctx context.Context, stage string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("staging: marshal %s: %w", stage, err)
	}

	tmp := s.path(stage) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("staging: write %s: %w", stage, err)
	}
	if err := os.Rename(tmp, s.path(stage)); err != nil {
		return fmt.Errorf("staging: commit %s: %w", stage, err)
	}
	return nil
}

func (s *FileStore) Read(ctx context.Context, stage string, out any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	data, err := os.ReadFile(s.path(stage))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("staging: read %s: %w", stage, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("staging: unmarshal %s: %w", stage, err)
	}
	return true, nil
}

func (s *FileStore) Clear(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(s.path(stage))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
