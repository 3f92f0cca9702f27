// Package storagetest holds fixtures and a behaviour suite shared by the
// path store tests.
package storagetest

import (
	"testing"
	"time"

	"github.com/rigtwin/twin/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Path builds a small valid path recorded at the given time.
func Path(id string, at time.Time) *core.ReferencePath {
	return &core.ReferencePath{
		ID:             id,
		Name:           "loop",
		VehicleID:      "rig",
		RecordedAt:     at.UTC(),
		FrontAxle:      []core.Point{{X: 5, Y: 0}, {X: 5.5, Y: 0.01}, {X: 6, Y: 0.04}},
		RearAxle:       []core.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0}, {X: 1, Y: 0.01}},
		FifthWheel:     []core.Point{{X: 0.5, Y: 0}, {X: 1, Y: 0.001}, {X: 1.5, Y: 0.012}},
		TrailerAxle:    []core.Point{{X: -7.5, Y: 0}, {X: -7, Y: 0}, {X: -6.5, Y: 0.0001}},
		Psi:            [][2]float64{{0, 0}, {0.01, 0.0006}, {0.02, 0.0019}},
		Time:           []float64{0, 0.1, 0.2},
		SteerEvents:    []core.InputEvent{{Time: 0, Value: 0}, {Time: 0.1, Value: 0.1}},
		VelocityEvents: []core.InputEvent{{Time: 0, Value: 5}},
		StartPose:      core.RigPose{},
		EndPose:        core.RigPose{X1: 1.5, Y1: 0.02, Psi1: 0.03, Psi2: 0.004},
		Summary:        core.InputSummary{Velocity: 5, MaxTime: 0.2},
	}
}

// Regions returns two valid regions.
func Regions() []core.Region {
	return []core.Region{
		{Name: "dock", Vertices: []core.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}},
		{Name: "gate", Vertices: []core.Point{{X: 20, Y: 0}, {X: 25, Y: 0}, {X: 25, Y: 5}}},
	}
}

// Store is the subset of storage.Backend exercised by the suite.
type Store interface {
	SavePath(p *core.ReferencePath) error
	LoadPath(id string) (*core.ReferencePath, error)
	ListPaths() ([]core.PathInfo, error)
	DeletePath(id string) error
}

// Run checks the save, load, list and delete contract of an initialised
// store that starts empty.
func Run(t *testing.T, s Store) {
	t.Helper()
	t0 := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	t.Run("LoadMissing", func(t *testing.T) {
		_, err := s.LoadPath("nope")
		assert.ErrorIs(t, err, core.ErrPathNotFound)
	})

	t.Run("SaveLoad", func(t *testing.T) {
		p := Path("a", t0)
		require.NoError(t, s.SavePath(p))

		got, err := s.LoadPath("a")
		require.NoError(t, err)
		assert.Equal(t, p, got)
	})

	t.Run("SaveRejectsInvalid", func(t *testing.T) {
		p := Path("bad", t0)
		p.Psi = p.Psi[:1]
		assert.ErrorIs(t, s.SavePath(p), core.ErrDataIntegrity)

		_, err := s.LoadPath("bad")
		assert.ErrorIs(t, err, core.ErrPathNotFound)
	})

	t.Run("ListOrdered", func(t *testing.T) {
		require.NoError(t, s.SavePath(Path("c", t0.Add(2*time.Minute))))
		require.NoError(t, s.SavePath(Path("b", t0.Add(time.Minute))))

		infos, err := s.ListPaths()
		require.NoError(t, err)
		require.Len(t, infos, 3)
		assert.Equal(t, "a", infos[0].ID)
		assert.Equal(t, "b", infos[1].ID)
		assert.Equal(t, "c", infos[2].ID)
		assert.Equal(t, 3, infos[0].Samples)
		assert.Equal(t, 0.2, infos[0].MaxTime)
		assert.Equal(t, "rig", infos[0].VehicleID)
	})

	t.Run("Replace", func(t *testing.T) {
		p := Path("a", t0)
		p.Name = "renamed"
		require.NoError(t, s.SavePath(p))

		got, err := s.LoadPath("a")
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)

		infos, err := s.ListPaths()
		require.NoError(t, err)
		assert.Len(t, infos, 3)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.DeletePath("b"))
		_, err := s.LoadPath("b")
		assert.ErrorIs(t, err, core.ErrPathNotFound)
		assert.ErrorIs(t, s.DeletePath("b"), core.ErrPathNotFound)

		infos, err := s.ListPaths()
		require.NoError(t, err)
		assert.Len(t, infos, 2)
	})
}
