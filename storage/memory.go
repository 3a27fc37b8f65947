package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/custodia/guardian-recovery-backend/interfaces"
)

// MemoryStore is an in-process key-value store. It backs tests and
// single-node deployments where persistence across restarts is not needed.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	log  *slog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(log *slog.Logger) *MemoryStore {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryStore{
		data: make(map[string][]byte),
		log:  log,
	}
}

func (s *MemoryStore) key(kind interfaces.ContentKind, key string) string {
	return kind.String() + "/" + key
}

// Get retrieves data by namespace and key.
func (s *MemoryStore) Get(ctx context.Context, kind interfaces.ContentKind, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[s.key(kind, key)]
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Put saves data under the namespace and key.
func (s *MemoryStore) Put(ctx context.Context, kind interfaces.ContentKind, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.data[s.key(kind, key)] = stored
	return nil
}

// Available always reports true for the in-memory store.
func (s *MemoryStore) Available(ctx context.Context) bool {
	return true
}

// Name returns a unique identifier for this storage backend.
func (s *MemoryStore) Name() string {
	return "memory"
}

// LocationURI returns the URI that identifies this storage backend.
func (s *MemoryStore) LocationURI() string {
	return "memory://"
}
