package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/custodia/guardian-recovery-backend/interfaces"
)

// FileStore implements a storage backend using the local file system.
// Records are stored in a directory structure organized by content kind.
type FileStore struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileStore creates a file storage backend rooted at the specified base
// directory, creating the per-kind subdirectories if they don't exist.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	for _, kind := range []interfaces.ContentKind{interfaces.SessionKind, interfaces.ShareKind, interfaces.ConfigKind} {
		if err := os.MkdirAll(filepath.Join(baseDir, kind.String()), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", kind, err)
		}
	}

	return &FileStore{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Get retrieves data from the file system by namespace and key.
// Returns ErrKeyNotFound if the file doesn't exist.
func (s *FileStore) Get(ctx context.Context, kind interfaces.ContentKind, key string) ([]byte, error) {
	filePath := s.getFilePath(kind, key)

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, interfaces.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	s.log.Debug("Fetched record from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return data, nil
}

// Put saves data to the file system, overwriting any previous value.
func (s *FileStore) Put(ctx context.Context, kind interfaces.ContentKind, key string, data []byte) error {
	filePath := s.getFilePath(kind, key)

	// Share keys nest one level below the kind directory.
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	s.log.Debug("Stored record in file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return nil
}

// Available checks if the file backend is accessible by verifying the base
// directory exists.
func (s *FileStore) Available(ctx context.Context) bool {
	_, err := os.Stat(s.baseDir)
	if err != nil {
		s.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (s *FileStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(s.baseDir))
}

// LocationURI returns the URI that identifies this storage backend.
func (s *FileStore) LocationURI() string {
	return s.locationURI
}

func (s *FileStore) getFilePath(kind interfaces.ContentKind, key string) string {
	return filepath.Join(s.baseDir, kind.String(), filepath.FromSlash(key))
}
