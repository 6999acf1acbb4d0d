package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shelflife/internal/models"

	"go.uber.org/zap"
)

var (
	// ErrEmptyKey indicates an empty artifact key was provided.
	ErrEmptyKey = errors.New("artifact key must not be empty")
	// ErrInvalidKey indicates the key contains a path traversal segment.
	ErrInvalidKey = errors.New("artifact key contains invalid path segment")
)

// Store reads and writes artifact blobs by key.
type Store interface {
	// Read returns the blob stored at key, or models.ErrArtifactNotFound.
	Read(ctx context.Context, key string) ([]byte, error)
	// Write replaces the blob stored at key.
	Write(ctx context.Context, key string, data []byte) error
}

// FileStore keeps artifacts as files below a root directory.
type FileStore struct {
	root   string
	logger *zap.Logger
}

// NewFileStore creates a store rooted at dir, creating the directory if needed.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{root: dir, logger: logger}, nil
}

func (s *FileStore) Read(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.root, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrArtifactNotFound, key)
		}
		return nil, fmt.Errorf("failed to read artifact %s: %w", key, err)
	}
	return data, nil
}

// Write stores data atomically: it is written to a temporary file in the same
// directory and renamed over the target.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(s.root, key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".artifact-*")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to commit artifact %s: %w", key, err)
	}

	s.logger.Debug("Artifact written", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
