package gormstorage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rigtwin/twin/internal/database"
	"github.com/rigtwin/twin/internal/model"
	"github.com/rigtwin/twin/internal/storage/storagetest"
	"github.com/rigtwin/twin/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "paths.db"))
	require.NoError(t, err)
	b := New(Dependencies{DB: db})
	require.NoError(t, b.Init())
	return b
}

func TestBackend(t *testing.T) {
	storagetest.Run(t, newTestBackend(t))
}

func TestInit_NoDB(t *testing.T) {
	assert.ErrorIs(t, New(Dependencies{}).Init(), core.ErrConfiguration)
}

func TestRegions(t *testing.T) {
	b := newTestBackend(t)

	got, err := b.LoadRegions()
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, b.SaveRegions(storagetest.Regions()))
	got, err = b.LoadRegions()
	require.NoError(t, err)
	assert.Equal(t, storagetest.Regions(), got)

	// replacing keeps only the new set, in the new order
	second := storagetest.Regions()
	second[0], second[1] = second[1], second[0]
	require.NoError(t, b.SaveRegions(second[:1]))
	got, err = b.LoadRegions()
	require.NoError(t, err)
	assert.Equal(t, second[:1], got)
}

func TestSaveRegions_RejectsInvalid(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.SaveRegions(storagetest.Regions()))

	err := b.SaveRegions([]core.Region{{Name: "line", Vertices: []core.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}}})
	assert.ErrorIs(t, err, core.ErrConfiguration)

	got, err := b.LoadRegions()
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLoadPath_CorruptDocument(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.DB().Create(&model.Path{ID: "broken", Document: datatypes.JSON(`{"id":"broken","time":[0]}`)}).Error)

	_, err := b.LoadPath("broken")
	assert.ErrorIs(t, err, core.ErrDataIntegrity)
}

func TestUpsertPaths_Empty(t *testing.T) {
	assert.NoError(t, UpsertPaths(nil, nil))
}

func TestListPaths_ExcludesCorruptDocuments(t *testing.T) {
	b := newTestBackend(t)
	t0 := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	require.NoError(t, b.SavePath(storagetest.Path("a", t0)))
	require.NoError(t, b.DB().Create(&model.Path{
		ID:         "bad",
		RecordedAt: t0.Add(time.Minute),
		Samples:    3,
		Document:   datatypes.JSON(`{"id":"bad","time":[0,0.1,0.2],"psi":[]}`),
	}).Error)

	infos, err := b.ListPaths()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, storagetest.Path("a", t0).Info(), infos[0])
}
