package sqlitestorage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rigtwin/twin/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func memName(t *testing.T) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
}

func TestBackend(t *testing.T) {
	b, err := New(Config{Name: memName(t)}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	storagetest.Run(t, b)
}

func TestBackend_DumpAndRestore(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "paths.db")

	first, err := New(Config{Name: memName(t) + "_1", DumpPath: dump}, nil)
	require.NoError(t, err)
	require.NoError(t, first.Init())
	want := storagetest.Path("a", t0)
	require.NoError(t, first.SavePath(want))
	require.NoError(t, first.SaveRegions(storagetest.Regions()))
	require.NoError(t, first.Close())

	_, err = os.Stat(dump)
	require.NoError(t, err, "close should leave a dump behind")

	second, err := New(Config{Name: memName(t) + "_2", DumpPath: dump}, nil)
	require.NoError(t, err)
	require.NoError(t, second.Init())
	t.Cleanup(func() { _ = second.Close() })

	got, err := second.LoadPath("a")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	regions, err := second.LoadRegions()
	require.NoError(t, err)
	assert.Equal(t, storagetest.Regions(), regions)
}

func TestBackend_DumpLoop(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "paths.db")
	b, err := New(Config{Name: memName(t), DumpPath: dump, DumpInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	require.NoError(t, b.SavePath(storagetest.Path("a", t0)))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(dump)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}
