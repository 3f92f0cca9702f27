package region

import (
	"testing"

	"github.com/rigtwin/twin/internal/geo"
	"github.com/rigtwin/twin/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type box struct {
	id      string
	tractor [4]core.Point
	trailer [4]core.Point
}

func (b *box) ID() string { return b.id }
func (b *box) TractorBox() [4]core.Point { return b.tractor }
func (b *box) TrailerBox() [4]core.Point { return b.trailer }

// place puts a 4x2 tractor and trailer with the tractor front-left corner at p.
func (b *box) place(p core.Point) {
	b.tractor = [4]core.Point{p, {X: p.X, Y: p.Y - 2}, {X: p.X - 4, Y: p.Y - 2}, {X: p.X - 4, Y: p.Y}}
	b.trailer = geo.OrientedBoundingBox(core.Point{X: p.X - 4, Y: p.Y - 1}, core.Point{X: p.X - 12, Y: p.Y - 1}, 1, 0)
}

var yard = core.Region{Name: "yard", Vertices: []core.Point{{X: -10, Y: -10}, {X: 10, Y: -10}, {X: 10, Y: 10}, {X: -10, Y: 10}}}

func TestTracker_EnterExit(t *testing.T) {
	tr, err := NewTracker([]core.Region{yard})
	require.NoError(t, err)

	rig := &box{id: "rig"}
	rig.place(core.Point{X: 50, Y: 50})
	assert.Empty(t, tr.Update([]Occupant{rig}))
	assert.False(t, tr.IsInRegion("rig", "yard"))

	// one corner at the origin
	rig.place(core.Point{X: 0, Y: 0})
	got := tr.Update([]Occupant{rig})
	assert.Equal(t, []core.RegionTransition{{VehicleID: "rig", Region: "yard", Entered: true}}, got)
	assert.True(t, tr.IsInRegion("rig", "yard"))

	// no repeat while inside
	assert.Empty(t, tr.Update([]Occupant{rig}))

	rig.place(core.Point{X: 50, Y: 50})
	got = tr.Update([]Occupant{rig})
	assert.Equal(t, []core.RegionTransition{{VehicleID: "rig", Region: "yard", Entered: false}}, got)
	assert.False(t, tr.IsInRegion("rig", "yard"))
}

func TestTracker_TrailerOnly(t *testing.T) {
	tr, err := NewTracker([]core.Region{yard})
	require.NoError(t, err)

	rig := &box{id: "rig"}
	// tractor clear of the yard, trailer reaching back into it
	rig.place(core.Point{X: 17, Y: 0})
	tr.Update([]Occupant{rig})
	assert.True(t, tr.IsInRegion("rig", "yard"))
}

func TestTracker_Overlapping(t *testing.T) {
	inner := core.Region{Name: "bay", Vertices: []core.Point{{X: -2, Y: -2}, {X: 2, Y: -2}, {X: 2, Y: 2}, {X: -2, Y: 2}}}
	tr, err := NewTracker([]core.Region{yard, inner})
	require.NoError(t, err)

	rig := &box{id: "rig"}
	rig.place(core.Point{X: 1, Y: 1})
	assert.Len(t, tr.Update([]Occupant{rig}), 2)
	assert.Equal(t, []string{"bay", "yard"}, tr.In("rig"))
	assert.Nil(t, tr.In("other"))
}

func TestNewTracker_Invalid(t *testing.T) {
	_, err := NewTracker([]core.Region{yard, yard})
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, err = NewTracker([]core.Region{{Name: "line", Vertices: yard.Vertices[:2]}})
	assert.ErrorIs(t, err, core.ErrConfiguration)
}
