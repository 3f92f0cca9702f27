// Package registry tracks the live vehicles and static obstacles of a
// simulation. The sensor and region components receive it explicitly.
package registry

import (
	"fmt"
	"sync"

	"github.com/rigtwin/twin/internal/geo"
	"github.com/rigtwin/twin/internal/sensor"
	"github.com/rigtwin/twin/internal/vehicle"
	"github.com/rigtwin/twin/pkg/core"
)

// Registry is safe for concurrent reads; vehicles themselves are only mutated
// by the simulation goroutine.
type Registry struct {
	mu        sync.RWMutex
	vehicles  map[string]*vehicle.Vehicle
	order     []string
	obstacles map[string]sensor.Body
}

func New() *Registry {
	return &Registry{
		vehicles:  make(map[string]*vehicle.Vehicle),
		obstacles: make(map[string]sensor.Body),
	}
}

// AddVehicle registers v. IDs must be unique.
func (r *Registry) AddVehicle(v *vehicle.Vehicle) error {
	if v == nil {
		return fmt.Errorf("%w: nil vehicle", core.ErrConfiguration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vehicles[v.ID()]; ok {
		return fmt.Errorf("%w: duplicate vehicle id %q", core.ErrConfiguration, v.ID())
	}
	r.vehicles[v.ID()] = v
	r.order = append(r.order, v.ID())
	return nil
}

// Vehicle looks up a vehicle by id.
func (r *Registry) Vehicle(id string) (*vehicle.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownVehicle, id)
	}
	return v, nil
}

// Vehicles returns the registered vehicles in registration order.
func (r *Registry) Vehicles() []*vehicle.Vehicle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*vehicle.Vehicle, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.vehicles[id])
	}
	return out
}

// PutObstacle adds or replaces a static obstacle. A polygon's center is
// set to its centroid.
func (r *Registry) PutObstacle(b sensor.Body) error {
	if b.ID == "" {
		return fmt.Errorf("%w: obstacle id is required", core.ErrConfiguration)
	}
	if b.IsCircle() && b.Radius <= 0 {
		return fmt.Errorf("%w: obstacle %q needs a radius or a polygon", core.ErrConfiguration, b.ID)
	}
	if !b.IsCircle() {
		if len(b.Polygon) < 3 {
			return fmt.Errorf("%w: obstacle %q polygon needs at least 3 vertices", core.ErrConfiguration, b.ID)
		}
		// polygons are moved by their centroid
		c, ok := geo.RegionCentroid(core.Region{Name: b.ID, Vertices: b.Polygon})
		if !ok {
			return fmt.Errorf("%w: obstacle %q polygon has no area", core.ErrConfiguration, b.ID)
		}
		b.Center = c
	}
	if b.Name == "" {
		b.Name = b.ID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obstacles[b.ID] = b
	return nil
}

// MoveObstacle recentres a circular obstacle or translates a polygon one.
func (r *Registry) MoveObstacle(id string, to core.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.obstacles[id]
	if !ok {
		return fmt.Errorf("%w: unknown obstacle %q", core.ErrInvalidOperation, id)
	}
	dx, dy := to.X-b.Center.X, to.Y-b.Center.Y
	if !b.IsCircle() {
		moved := make([]core.Point, len(b.Polygon))
		for i, p := range b.Polygon {
			moved[i] = core.Point{X: p.X + dx, Y: p.Y + dy}
		}
		b.Polygon = moved
	}
	b.Center = to
	r.obstacles[id] = b
	return nil
}

// RemoveObstacle deletes an obstacle; unknown ids are ignored.
func (r *Registry) RemoveObstacle(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.obstacles, id)
}

// Obstacles returns the static obstacles.
func (r *Registry) Obstacles() []sensor.Body {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]sensor.Body, 0, len(r.obstacles))
	for _, b := range r.obstacles {
		out = append(out, b)
	}
	return out
}

// Bodies returns every detectable shape: static obstacles plus the tractor
// and trailer footprint of every vehicle.
func (r *Registry) Bodies() []sensor.Body {
	out := r.Obstacles()
	for _, v := range r.Vehicles() {
		tractor, trailer := v.TractorBox(), v.TrailerBox()
		out = append(out,
			sensor.Body{ID: v.TractorBodyID(), Name: v.Name() + " tractor", Polygon: tractor[:]},
			sensor.Body{ID: v.TrailerBodyID(), Name: v.Name() + " trailer", Polygon: trailer[:]},
		)
	}
	return out
}
