package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia/guardian-recovery-backend/interfaces"
	shell "github.com/ipfs/go-ipfs-api"
)

// IPFSStore implements a storage backend using an IPFS node's mutable files
// API. Records live under a stable MFS directory so they stay addressable by
// key rather than by content hash.
type IPFSStore struct {
	shell       *shell.Shell
	host        string
	port        string
	rootPath    string
	log         *slog.Logger
	locationURI string
}

// NewIPFSStore creates an IPFS storage backend connected to the node at the
// specified host and port. Records are written under rootPath in MFS.
func NewIPFSStore(host, port, rootPath string, log *slog.Logger) (*IPFSStore, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)

	rootPath = "/" + strings.Trim(rootPath, "/")

	return &IPFSStore{
		shell:       shell.NewShell(apiURL),
		host:        host,
		port:        port,
		rootPath:    rootPath,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s%s", apiURL, rootPath),
	}, nil
}

// Get retrieves data from the node's MFS by namespace and key.
// Returns ErrKeyNotFound if the file doesn't exist or ErrBackendUnavailable
// if the IPFS node is not accessible.
func (s *IPFSStore) Get(ctx context.Context, kind interfaces.ContentKind, key string) ([]byte, error) {
	start := time.Now()
	path := s.filePath(kind, key)

	if !s.shell.IsUp() {
		s.log.Warn("IPFS node unavailable",
			slog.String("host", s.host),
			slog.String("port", s.port))
		return nil, interfaces.ErrBackendUnavailable
	}

	reader, err := s.shell.FilesRead(ctx, path)
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			s.log.Debug("Record not found in IPFS",
				slog.String("path", path),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrKeyNotFound
		}

		s.log.Error("Failed to read file from IPFS",
			slog.String("path", path),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to read file from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		s.log.Error("Failed to read data from IPFS",
			slog.String("path", path),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}

	s.log.Debug("Fetched record from IPFS",
		slog.String("path", path),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Put writes data to the node's MFS under the namespace and key, creating
// parent directories and truncating any previous value.
func (s *IPFSStore) Put(ctx context.Context, kind interfaces.ContentKind, key string, data []byte) error {
	path := s.filePath(kind, key)

	if !s.shell.IsUp() {
		return interfaces.ErrBackendUnavailable
	}

	err := s.shell.FilesWrite(ctx, path, bytes.NewReader(data),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true),
	)
	if err != nil {
		return fmt.Errorf("failed to write file to IPFS: %w", err)
	}

	s.log.Debug("Stored record in IPFS",
		slog.String("path", path),
		slog.Int("size", len(data)))

	return nil
}

// Available checks if the IPFS node is accessible.
func (s *IPFSStore) Available(ctx context.Context) bool {
	return s.shell.IsUp()
}

// Name returns a unique identifier for this storage backend.
func (s *IPFSStore) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", s.host, s.port)
}

// LocationURI returns the URI that identifies this storage backend.
func (s *IPFSStore) LocationURI() string {
	return s.locationURI
}

func (s *IPFSStore) filePath(kind interfaces.ContentKind, key string) string {
	return fmt.Sprintf("%s/%s/%s", s.rootPath, kind.String(), key)
}
