package postgres

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rigtwin/twin/internal/model"
	"github.com/rigtwin/twin/internal/storage/storagetest"
	"github.com/rigtwin/twin/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// newTestBackend runs the queue and writer against a file SQLite database.
func newTestBackend(t *testing.T, interval time.Duration) *Backend {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "pg.db")), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	b := New(Dependencies{DB: db, FlushInterval: interval})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBackend(t *testing.T) {
	storagetest.Run(t, newTestBackend(t, time.Hour))
}

func TestSavePath_Queues(t *testing.T) {
	b := newTestBackend(t, time.Hour)

	require.NoError(t, b.SavePath(storagetest.Path("a", t0)))
	require.NoError(t, b.SavePath(storagetest.Path("a", t0)))
	assert.Equal(t, 2, b.Pending())

	var count int64
	require.NoError(t, b.DB().Model(&model.Path{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, b.Flush())
	assert.Zero(t, b.Pending())
	require.NoError(t, b.DB().Model(&model.Path{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSavePath_RejectsInvalid(t *testing.T) {
	b := newTestBackend(t, time.Hour)
	p := storagetest.Path("a", t0)
	p.RearAxle = nil

	assert.ErrorIs(t, b.SavePath(p), core.ErrDataIntegrity)
	assert.Zero(t, b.Pending())
}

func TestWriter_DrainsInBackground(t *testing.T) {
	b := newTestBackend(t, 10*time.Millisecond)
	require.NoError(t, b.SavePath(storagetest.Path("a", t0)))

	assert.Eventually(t, func() bool { return b.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestFlush_RequeuesOnFailure(t *testing.T) {
	b := newTestBackend(t, time.Hour)
	require.NoError(t, b.DB().Migrator().DropTable(&model.Path{}))

	require.NoError(t, b.SavePath(storagetest.Path("a", t0)))
	assert.Error(t, b.Flush())
	assert.Equal(t, 1, b.Pending())

	require.NoError(t, b.DB().AutoMigrate(&model.Path{}))
	require.NoError(t, b.Flush())
	assert.Zero(t, b.Pending())
}

func TestClose_Flushes(t *testing.T) {
	b := newTestBackend(t, time.Hour)
	require.NoError(t, b.SavePath(storagetest.Path("a", t0)))
	require.NoError(t, b.Close())

	var count int64
	require.NoError(t, b.DB().Model(&model.Path{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInit_ConnectFailure(t *testing.T) {
	b := New(Dependencies{DSN: "host=127.0.0.1 port=1 user=u password=p dbname=d sslmode=disable"})
	assert.Error(t, b.Init())
}

func TestInit_FallsBackToSQLite(t *testing.T) {
	b := New(Dependencies{
		DSN:          "host=127.0.0.1 port=1 user=u password=p dbname=d sslmode=disable",
		FallbackPath: filepath.Join(t.TempDir(), "fallback.db"),
	})
	require.NoError(t, b.Init())
	assert.True(t, b.Local())

	require.NoError(t, b.SavePath(storagetest.Path("offline", t0)))
	p, err := b.LoadPath("offline")
	require.NoError(t, err)
	assert.Equal(t, "offline", p.ID)
	assert.NoError(t, b.Close())
}
