package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/rigtwin/twin/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeomPointRoundTrip(t *testing.T) {
	p := core.Point{X: 3.25, Y: -7}
	g, err := ToGeomPoint(p)
	require.NoError(t, err)
	assert.Equal(t, p, FromGeomPoint(g))

	_, err = ToGeomPoint(core.Point{X: math.NaN()})
	assert.ErrorIs(t, err, core.ErrDataIntegrity)
}

func TestRegionPolygonRoundTrip(t *testing.T) {
	r := core.Region{Name: "yard", Vertices: square}

	poly, err := RegionToPolygon(r)
	require.NoError(t, err)
	assert.Equal(t, 5, poly.ExteriorRing().Coordinates().Length(), "ring is closed")

	back := PolygonToRegion("yard", poly)
	assert.Equal(t, r, back)
}

func TestValidateRegion(t *testing.T) {
	assert.NoError(t, ValidateRegion(core.Region{Name: "yard", Vertices: square}))

	tests := map[string]core.Region{
		"no name": {Vertices: square},
		"too few": {Name: "a", Vertices: square[:2]},
		"bow tie": {Name: "b", Vertices: []core.Point{{X: 0, Y: 0}, {X: 4, Y: 4}, {X: 4, Y: 0}, {X: 0, Y: 4}}},
	}
	for name, r := range tests {
		t.Run(name, func(t *testing.T) {
			err := ValidateRegion(r)
			assert.True(t, errors.Is(err, core.ErrConfiguration), "got %v", err)
		})
	}
}

func TestRegionToPolygon_KeepsInvalidRing(t *testing.T) {
	bowTie := core.Region{Name: "b", Vertices: []core.Point{{X: 0, Y: 0}, {X: 4, Y: 4}, {X: 4, Y: 0}, {X: 0, Y: 4}}}
	poly, err := RegionToPolygon(bowTie)
	require.NoError(t, err)
	assert.Equal(t, bowTie, PolygonToRegion("b", poly))
}

func TestRegionCentroid(t *testing.T) {
	c, ok := RegionCentroid(core.Region{Name: "sq", Vertices: []core.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 2}, {X: 0, Y: 2}}})
	require.True(t, ok)
	assert.InDelta(t, 2, c.X, 1e-9)
	assert.InDelta(t, 1, c.Y, 1e-9)

	_, ok = RegionCentroid(core.Region{Name: "line", Vertices: []core.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}})
	assert.False(t, ok)
	_, ok = RegionCentroid(core.Region{Name: "none"})
	assert.False(t, ok)
}

func TestProjectWGS84(t *testing.T) {
	origin := ProjectWGS84(0, 0)
	assert.InDelta(t, 0, origin.X, 1e-6)
	assert.InDelta(t, 0, origin.Y, 1e-6)

	// one degree of longitude on the equator in web mercator metres
	p := ProjectWGS84(1, 0)
	assert.InDelta(t, 111319.49, p.X, 0.1)
}

func TestParsePolygon(t *testing.T) {
	verts, err := ParsePolygon("[[0,0],[1,0],[1,1]]")
	require.NoError(t, err)
	assert.Equal(t, []core.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}, verts)

	_, err = ParsePolygon("[[0,0],[1,0]]")
	assert.Error(t, err)
	_, err = ParsePolygon("[[0,0],[1],[1,1]]")
	assert.Error(t, err)
	_, err = ParsePolygon("not json")
	assert.Error(t, err)

	projected := ProjectVertices([]core.Point{{X: 0, Y: 0}})
	assert.InDelta(t, 0, projected[0].X, 1e-6)
}
