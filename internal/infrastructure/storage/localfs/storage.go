package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const defaultBasePath = "./data/documents"

// Storage keeps source documents on the local filesystem under one directory.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = defaultBasePath
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir %s: %w", basePath, err)
	}
	return &Storage{basePath: basePath}, nil
}

// Save stages the upload in a temp file and renames it into place, so a
// crash mid-write never leaves a truncated document under the final key.
func (s *Storage) Save(_ context.Context, key string, data io.Reader) error {
	tmp, err := os.CreateTemp(s.basePath, ".upload-*")
	if err != nil {
		return fmt.Errorf("stage upload: %w", err)
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, data)
	closeErr := tmp.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("stage upload: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("stage upload: %w", closeErr)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.basePath, key)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("publish upload %s: %w", key, err)
	}
	return nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.basePath, key))
	if err != nil {
		return nil, fmt.Errorf("open document %s: %w", key, err)
	}
	return f, nil
}
