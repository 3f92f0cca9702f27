package registry

import (
	"testing"

	"github.com/rigtwin/twin/internal/sensor"
	"github.com/rigtwin/twin/internal/vehicle"
	"github.com/rigtwin/twin/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVehicle(t *testing.T, id string) *vehicle.Vehicle {
	t.Helper()
	v, err := vehicle.New(vehicle.Config{
		ID:       id,
		Geometry: core.RawGeometry{L1: 5, L1C: 0.5, L2: 8, TractorWidth: 2, TrailerWidth: 2},
	})
	require.NoError(t, err)
	return v
}

func TestVehicles(t *testing.T) {
	r := New()
	a, b := newVehicle(t, "a"), newVehicle(t, "b")

	require.NoError(t, r.AddVehicle(b))
	require.NoError(t, r.AddVehicle(a))
	assert.ErrorIs(t, r.AddVehicle(newVehicle(t, "a")), core.ErrConfiguration)
	assert.ErrorIs(t, r.AddVehicle(nil), core.ErrConfiguration)

	assert.Equal(t, []*vehicle.Vehicle{b, a}, r.Vehicles())

	got, err := r.Vehicle("a")
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = r.Vehicle("zzz")
	assert.ErrorIs(t, err, core.ErrUnknownVehicle)
}

func TestObstacles(t *testing.T) {
	r := New()

	require.NoError(t, r.PutObstacle(sensor.Body{ID: "cone", Center: core.Point{X: 1}, Radius: 0.5}))
	require.NoError(t, r.PutObstacle(sensor.Body{
		ID:      "crate",
		Center:  core.Point{X: 1, Y: 1},
		Polygon: []core.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}},
	}))
	assert.ErrorIs(t, r.PutObstacle(sensor.Body{Radius: 1}), core.ErrConfiguration)
	assert.ErrorIs(t, r.PutObstacle(sensor.Body{ID: "x"}), core.ErrConfiguration)
	assert.ErrorIs(t, r.PutObstacle(sensor.Body{ID: "y", Polygon: []core.Point{{}, {}}}), core.ErrConfiguration)
	assert.Len(t, r.Obstacles(), 2)

	require.NoError(t, r.MoveObstacle("crate", core.Point{X: 11, Y: 1}))
	assert.ErrorIs(t, r.MoveObstacle("nope", core.Point{}), core.ErrInvalidOperation)
	for _, b := range r.Obstacles() {
		if b.ID == "crate" {
			assert.Equal(t, core.Point{X: 10, Y: 0}, b.Polygon[0])
			assert.Equal(t, "crate", b.Name)
		}
	}

	r.RemoveObstacle("cone")
	assert.Len(t, r.Obstacles(), 1)
}

func TestMoveObstacle_PolygonFromCentroid(t *testing.T) {
	r := New()
	require.NoError(t, r.PutObstacle(sensor.Body{
		ID:      "bay",
		Polygon: []core.Point{{X: 10, Y: 10}, {X: 14, Y: 10}, {X: 14, Y: 12}, {X: 10, Y: 12}},
	}))
	require.NoError(t, r.MoveObstacle("bay", core.Point{X: 0, Y: 0}))

	obs := r.Obstacles()
	require.Len(t, obs, 1)
	assert.Equal(t, core.Point{X: 0, Y: 0}, obs[0].Center)
	want := []core.Point{{X: -2, Y: -1}, {X: 2, Y: -1}, {X: 2, Y: 1}, {X: -2, Y: 1}}
	require.Len(t, obs[0].Polygon, len(want))
	for i, p := range want {
		assert.InDelta(t, p.X, obs[0].Polygon[i].X, 1e-9)
		assert.InDelta(t, p.Y, obs[0].Polygon[i].Y, 1e-9)
	}

	err := r.PutObstacle(sensor.Body{ID: "flat", Polygon: []core.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}})
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestBodies(t *testing.T) {
	r := New()
	require.NoError(t, r.AddVehicle(newVehicle(t, "rig")))
	require.NoError(t, r.PutObstacle(sensor.Body{ID: "cone", Radius: 1}))

	bodies := r.Bodies()
	require.Len(t, bodies, 3)
	ids := []string{bodies[0].ID, bodies[1].ID, bodies[2].ID}
	assert.ElementsMatch(t, []string{"cone", "rig/tractor", "rig/trailer"}, ids)
	assert.Len(t, bodies[1].Polygon, 4)
}
