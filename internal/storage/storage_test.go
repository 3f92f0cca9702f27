// internal/storage/storage_test.go
package storage_test

import (
	"testing"
	"time"

	"github.com/rigtwin/twin/internal/config"
	"github.com/rigtwin/twin/internal/storage"
	gormstorage "github.com/rigtwin/twin/internal/storage/gorm"
	"github.com/rigtwin/twin/internal/storage/memory"
	"github.com/rigtwin/twin/internal/storage/postgres"
	sqlitestorage "github.com/rigtwin/twin/internal/storage/sqlite"
	"github.com/rigtwin/twin/internal/storage/storagetest"
	"github.com/rigtwin/twin/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks
var (
	_ storage.Backend     = (*memory.Backend)(nil)
	_ storage.Backend     = (*gormstorage.Backend)(nil)
	_ storage.Backend     = (*sqlitestorage.Backend)(nil)
	_ storage.Backend     = (*postgres.Backend)(nil)
	_ storage.RegionStore = (*memory.Backend)(nil)
	_ storage.RegionStore = (*gormstorage.Backend)(nil)
)

var t0 = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// countingBackend counts loads that reach the wrapped backend.
type countingBackend struct {
	storage.Backend
	loads int
}

func (c *countingBackend) LoadPath(id string) (*core.ReferencePath, error) {
	c.loads++
	return c.Backend.LoadPath(id)
}

func newCached(t *testing.T) (storage.Backend, *countingBackend) {
	t.Helper()
	inner := &countingBackend{Backend: memory.New(config.MemoryConfig{}, nil)}
	require.NoError(t, inner.Init())
	return storage.NewCached(inner, 4, time.Minute), inner
}

func TestCached_Contract(t *testing.T) {
	b, _ := newCached(t)
	storagetest.Run(t, b)
}

func TestCached_ServesRepeatedLoads(t *testing.T) {
	b, inner := newCached(t)
	require.NoError(t, inner.SavePath(storagetest.Path("a", t0)))

	for i := 0; i < 3; i++ {
		_, err := b.LoadPath("a")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, inner.loads)
}

func TestCached_DeleteInvalidates(t *testing.T) {
	b, inner := newCached(t)
	require.NoError(t, b.SavePath(storagetest.Path("a", t0)))
	_, err := b.LoadPath("a")
	require.NoError(t, err)
	assert.Zero(t, inner.loads, "save populates the cache")

	require.NoError(t, b.DeletePath("a"))
	_, err = b.LoadPath("a")
	assert.ErrorIs(t, err, core.ErrPathNotFound)
	assert.True(t, storage.IsNotFound(err))
}

func TestNewCached_Disabled(t *testing.T) {
	inner := memory.New(config.MemoryConfig{}, nil)
	assert.Same(t, storage.Backend(inner), storage.NewCached(inner, 0, time.Minute))
}

func TestRegions_UnwrapsCache(t *testing.T) {
	inner := memory.New(config.MemoryConfig{}, nil)
	require.NoError(t, inner.Init())
	b := storage.NewCached(inner, 4, time.Minute)

	rs, ok := storage.Regions(b)
	require.True(t, ok)
	require.NoError(t, rs.SaveRegions(storagetest.Regions()))
	got, err := inner.LoadRegions()
	require.NoError(t, err)
	assert.Equal(t, storagetest.Regions(), got)
}

func TestUnwrap(t *testing.T) {
	inner := memory.New(config.MemoryConfig{}, nil)
	cached := storage.NewCached(inner, 4, time.Minute)
	assert.Same(t, storage.Backend(inner), storage.Unwrap(cached))
	assert.Same(t, storage.Backend(inner), storage.Unwrap(inner))
}

func TestNewBackend(t *testing.T) {
	b, err := storage.NewBackend(config.StorageConfig{Type: "memory", CacheSize: 2, CacheTTL: time.Minute}, config.DBConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &storage.Cached{}, b)

	b, err = storage.NewBackend(config.StorageConfig{Type: "postgres"}, config.DBConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &postgres.Backend{}, b)

	_, err = storage.NewBackend(config.StorageConfig{Type: "mongo"}, config.DBConfig{}, nil)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}
