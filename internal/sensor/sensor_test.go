package sensor

import (
	"math"
	"strings"
	"testing"

	"github.com/rigtwin/twin/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost sits with its fifth wheel at the origin, facing along heading.
type fakeHost struct {
	heading float64
}

func (h fakeHost) State() core.VehicleState {
	return core.VehicleState{Psi1: h.heading}
}

func (h fakeHost) OwnsBody(id string) bool { return strings.HasPrefix(id, "self/") }

func newSensor(t *testing.T, model Model) *Sensor {
	t.Helper()
	s, err := New(Config{Model: model, Rays: 360, Range: 20, Radius: 20, BrakingThreshold: 5})
	require.NoError(t, err)
	return s
}

func TestBrakingOnNearObstacle(t *testing.T) {
	for _, model := range []Model{ModelVolume, ModelSweep} {
		t.Run(string(model), func(t *testing.T) {
			s := newSensor(t, model)
			host := fakeHost{}
			cone := Body{ID: "cone", Name: "Cone", Center: core.Point{X: 3.5}, Radius: 0.5}

			assert.True(t, s.Update(host, []Body{cone}))
			recs := s.Records()
			require.Len(t, recs, 1)
			assert.InDelta(t, 3.0, recs[0].Distance, 1e-9)
			assert.InDelta(t, 0.0, recs[0].Bearing, 1e-9)

			cone.Center = core.Point{X: 100}
			assert.False(t, s.Update(host, []Body{cone}))
			assert.Empty(t, s.Records())
		})
	}
}

func TestFarObstacleDoesNotBrake(t *testing.T) {
	s := newSensor(t, ModelVolume)
	wall := Body{ID: "wall", Polygon: []core.Point{{X: 10, Y: -5}, {X: 12, Y: -5}, {X: 12, Y: 5}, {X: 10, Y: 5}}}

	assert.False(t, s.Update(fakeHost{}, []Body{wall}))
	recs := s.Records()
	require.Len(t, recs, 1)
	assert.InDelta(t, 10.0, recs[0].Distance, 1e-9)
}

func TestSelfExclusion(t *testing.T) {
	for _, model := range []Model{ModelVolume, ModelSweep} {
		s := newSensor(t, model)
		own := Body{ID: "self/trailer", Polygon: []core.Point{{X: -8, Y: -1}, {X: 0.5, Y: -1}, {X: 0.5, Y: 1}, {X: -8, Y: 1}}}

		assert.False(t, s.Update(fakeHost{}, []Body{own}), model)
		assert.Empty(t, s.Records(), model)
	}
}

func TestBearingIsVehicleRelative(t *testing.T) {
	for _, model := range []Model{ModelVolume, ModelSweep} {
		s := newSensor(t, model)
		host := fakeHost{heading: math.Pi / 2}
		// north of the origin, straight ahead of a vehicle facing north
		ahead := Body{ID: "a", Center: core.Point{Y: 10}, Radius: 1}
		// east of the origin, to the right
		right := Body{ID: "b", Center: core.Point{X: 10}, Radius: 1}

		s.Update(host, []Body{ahead, right})
		recs := s.Records()
		require.Len(t, recs, 2)
		byID := map[string]core.ObstacleRecord{recs[0].ID: recs[0], recs[1].ID: recs[1]}
		assert.InDelta(t, 0, byID["a"].Bearing, 1e-9, model)
		assert.InDelta(t, -math.Pi/2, byID["b"].Bearing, 1e-9, model)
	}
}

func TestRecordsUpdatedInPlace(t *testing.T) {
	s := newSensor(t, ModelVolume)
	b := Body{ID: "drum", Center: core.Point{X: 8}, Radius: 1}

	s.Update(fakeHost{}, []Body{b})
	first := s.records["drum"]

	b.Center = core.Point{X: 9}
	s.Update(fakeHost{}, []Body{b})
	assert.Same(t, first, s.records["drum"])
	assert.InDelta(t, 8.0, first.Distance, 1e-9)
}

func TestSweepRange(t *testing.T) {
	s := newSensor(t, ModelSweep)
	far := Body{ID: "far", Center: core.Point{X: 30}, Radius: 1}

	s.Update(fakeHost{}, []Body{far})
	assert.Empty(t, s.Records())
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Config{Model: "lidar"})
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, err = New(Config{BrakingThreshold: -1})
	assert.ErrorIs(t, err, core.ErrConfiguration)

	s, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, ModelVolume, s.Config().Model)
	assert.Equal(t, 360, s.Config().Rays)
}

func TestBodyRayHit(t *testing.T) {
	circle := Body{Center: core.Point{X: 5}, Radius: 1}
	d, ok := circle.RayHit(core.Point{}, 0)
	require.True(t, ok)
	assert.InDelta(t, 4, d, 1e-12)

	_, ok = circle.RayHit(core.Point{}, math.Pi)
	assert.False(t, ok)

	d, ok = circle.RayHit(core.Point{X: 5}, 1)
	require.True(t, ok)
	assert.Zero(t, d)

	box := Body{Polygon: []core.Point{{X: 2, Y: -1}, {X: 4, Y: -1}, {X: 4, Y: 1}, {X: 2, Y: 1}}}
	d, ok = box.RayHit(core.Point{}, 0)
	require.True(t, ok)
	assert.InDelta(t, 2, d, 1e-12)
}

func TestRelativeBearing(t *testing.T) {
	assert.InDelta(t, 0, relativeBearing(7*math.Pi, math.Pi), 1e-9)
	assert.InDelta(t, -math.Pi/2, relativeBearing(0, math.Pi/2+4*math.Pi), 1e-9)
}
