package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/custodia/guardian-recovery-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(testLogger())

	_, err := store.Get(ctx, interfaces.SessionKind, "missing")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound, "Missing key should report not found")

	require.NoError(t, store.Put(ctx, interfaces.SessionKind, "abc", []byte("v1")), "Put should succeed")
	data, err := store.Get(ctx, interfaces.SessionKind, "abc")
	require.NoError(t, err, "Get should succeed after Put")
	assert.Equal(t, []byte("v1"), data, "Get should return the stored value")

	// Same key in a different namespace is a different record.
	_, err = store.Get(ctx, interfaces.ConfigKind, "abc")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound, "Namespaces should not collide")

	require.NoError(t, store.Put(ctx, interfaces.SessionKind, "abc", []byte("v2")), "Overwrite should succeed")
	data, err = store.Get(ctx, interfaces.SessionKind, "abc")
	require.NoError(t, err, "Get should succeed after overwrite")
	assert.Equal(t, []byte("v2"), data, "Put should overwrite the previous value")

	assert.True(t, store.Available(ctx), "Memory store is always available")
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	baseDir := t.TempDir()

	store, err := NewFileStore(baseDir, testLogger())
	require.NoError(t, err, "Failed to create file store")

	_, err = store.Get(ctx, interfaces.ShareKind, "missing")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound, "Missing key should report not found")

	// Share keys nest below the kind directory.
	key := "session-1/0101010101010101010101010101010101010101"
	require.NoError(t, store.Put(ctx, interfaces.ShareKind, key, []byte("wrapped")), "Put should succeed")

	data, err := store.Get(ctx, interfaces.ShareKind, key)
	require.NoError(t, err, "Get should succeed after Put")
	assert.Equal(t, []byte("wrapped"), data, "Get should return the stored value")

	_, err = os.Stat(filepath.Join(baseDir, "shares", "session-1"))
	assert.NoError(t, err, "Nested key should create a subdirectory")

	assert.True(t, store.Available(ctx), "File store should be available")
}

// unavailableStore is always down.
type unavailableStore struct{}

func (unavailableStore) Get(ctx context.Context, kind interfaces.ContentKind, key string) ([]byte, error) {
	return nil, interfaces.ErrBackendUnavailable
}

func (unavailableStore) Put(ctx context.Context, kind interfaces.ContentKind, key string, data []byte) error {
	return interfaces.ErrBackendUnavailable
}

func (unavailableStore) Available(ctx context.Context) bool { return false }
func (unavailableStore) Name() string                       { return "unavailable" }
func (unavailableStore) LocationURI() string                { return "test://unavailable" }

// brokenStore is up but every operation fails.
type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, kind interfaces.ContentKind, key string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (brokenStore) Put(ctx context.Context, kind interfaces.ContentKind, key string, data []byte) error {
	return errors.New("disk on fire")
}

func (brokenStore) Available(ctx context.Context) bool { return true }
func (brokenStore) Name() string                       { return "broken" }
func (brokenStore) LocationURI() string                { return "test://broken" }

func TestMultiStoreFallback(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()
	healthy := NewMemoryStore(logger)

	multi := NewMultiStore([]interfaces.KeyValueStore{unavailableStore{}, brokenStore{}, healthy}, logger)

	require.NoError(t, multi.Put(ctx, interfaces.SessionKind, "s1", []byte("record")), "Put should succeed while one backend is healthy")

	data, err := multi.Get(ctx, interfaces.SessionKind, "s1")
	require.NoError(t, err, "Get should fall through to the healthy backend")
	assert.Equal(t, []byte("record"), data, "Get should return the stored value")

	assert.True(t, multi.Available(ctx), "MultiStore is available while any backend is")
}

func TestMultiStoreNotFound(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()
	multi := NewMultiStore([]interfaces.KeyValueStore{NewMemoryStore(logger), NewMemoryStore(logger)}, logger)

	_, err := multi.Get(ctx, interfaces.SessionKind, "never-stored")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound, "A key absent everywhere reports not found, not a backend failure")
}

func TestMultiStoreAllBackendsDown(t *testing.T) {
	ctx := context.Background()
	multi := NewMultiStore([]interfaces.KeyValueStore{unavailableStore{}, brokenStore{}}, testLogger())

	err := multi.Put(ctx, interfaces.SessionKind, "s1", []byte("record"))
	assert.Error(t, err, "Put should fail when every backend is down")

	_, err = multi.Get(ctx, interfaces.SessionKind, "s1")
	assert.Error(t, err, "Get should fail when every backend is down")

	assert.False(t, multi.Available(ctx), "MultiStore is unavailable when every backend is")
}

func TestStoreFactory(t *testing.T) {
	factory := NewStoreFactory(testLogger())

	store, err := factory.StoreFor("memory://")
	require.NoError(t, err, "memory:// should be supported")
	assert.Equal(t, "memory", store.Name(), "Should create a memory store")

	fileStore, err := factory.StoreFor(interfaces.StoreLocation("file://" + t.TempDir()))
	require.NoError(t, err, "file:// should be supported")
	assert.True(t, fileStore.Available(context.Background()), "File store should be available")

	_, err = factory.StoreFor("gopher://example.com")
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI, "Unsupported schemes should be rejected")

	_, err = factory.StoreFor("vault://vault.example.com:8200/secret/recovery")
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI, "Vault URIs require a token parameter")

	multi, err := factory.CreateMultiStore([]interfaces.StoreLocation{"memory://", "gopher://bad"})
	require.NoError(t, err, "CreateMultiStore should skip invalid URIs")
	assert.True(t, multi.Available(context.Background()), "MultiStore should aggregate the valid backend")

	_, err = factory.CreateMultiStore([]interfaces.StoreLocation{"gopher://bad"})
	assert.Error(t, err, "CreateMultiStore should fail when no backend is valid")
}
