// Package region tracks which configured polygon regions each vehicle
// occupies and reports edge-triggered enter/exit transitions.
package region

import (
	"fmt"
	"sort"

	"github.com/rigtwin/twin/internal/geo"
	"github.com/rigtwin/twin/pkg/core"
)

// Occupant is a vehicle as seen by the tracker.
type Occupant interface {
	ID() string
	TractorBox() [4]core.Point
	TrailerBox() [4]core.Point
}

// Tracker owns the region membership sets. Not safe for concurrent use.
type Tracker struct {
	regions    []core.Region
	membership map[string]map[string]struct{}
}

// NewTracker validates regions. Names must be unique.
func NewTracker(regions []core.Region) (*Tracker, error) {
	seen := make(map[string]struct{}, len(regions))
	for _, r := range regions {
		if err := geo.ValidateRegion(r); err != nil {
			return nil, err
		}
		if _, dup := seen[r.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate region %q", core.ErrConfiguration, r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	return &Tracker{
		regions:    append([]core.Region(nil), regions...),
		membership: make(map[string]map[string]struct{}),
	}, nil
}

// Regions returns the configured regions.
func (t *Tracker) Regions() []core.Region {
	return append([]core.Region(nil), t.regions...)
}

// Update tests every occupant against every region and returns the
// transitions since the previous call.
func (t *Tracker) Update(occupants []Occupant) []core.RegionTransition {
	var out []core.RegionTransition
	for _, o := range occupants {
		id := o.ID()
		tractor, trailer := o.TractorBox(), o.TrailerBox()
		cur := t.membership[id]
		for _, r := range t.regions {
			in := geo.BoundingBoxInPolygon(tractor, r.Vertices) || geo.BoundingBoxInPolygon(trailer, r.Vertices)
			_, was := cur[r.Name]
			switch {
			case in && !was:
				if cur == nil {
					cur = make(map[string]struct{})
					t.membership[id] = cur
				}
				cur[r.Name] = struct{}{}
				out = append(out, core.RegionTransition{VehicleID: id, Region: r.Name, Entered: true})
			case !in && was:
				delete(cur, r.Name)
				out = append(out, core.RegionTransition{VehicleID: id, Region: r.Name, Entered: false})
			}
		}
	}
	return out
}

// IsInRegion reports current membership.
func (t *Tracker) IsInRegion(vehicleID, region string) bool {
	_, ok := t.membership[vehicleID][region]
	return ok
}

// In returns the sorted names of the regions vehicleID occupies.
func (t *Tracker) In(vehicleID string) []string {
	cur := t.membership[vehicleID]
	if len(cur) == 0 {
		return nil
	}
	out := make([]string, 0, len(cur))
	for name := range cur {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
