// Package sensor detects obstacles around a vehicle and derives its braking
// flag.
package sensor

import (
	"fmt"
	"math"
	"sort"

	"github.com/rigtwin/twin/internal/geo"
	"github.com/rigtwin/twin/pkg/core"
)

// Model selects the detection design.
type Model string

const (
	// ModelVolume tracks bodies overlapping a circle around the fifth wheel.
	ModelVolume Model = "volume"
	// ModelSweep casts a ring of rays from the fifth wheel.
	ModelSweep Model = "sweep"
)

// Config tunes a Sensor.
type Config struct {
	Model            Model   `json:"model" mapstructure:"model"`
	Rays             int     `json:"rays" mapstructure:"rays"`
	Range            float64 `json:"range" mapstructure:"range"`
	Radius           float64 `json:"radius" mapstructure:"radius"`
	BrakingThreshold float64 `json:"brakingThreshold" mapstructure:"brakingThreshold"`
}

// DefaultConfig matches the defaults registered by the config package.
var DefaultConfig = Config{
	Model:            ModelVolume,
	Rays:             360,
	Range:            20,
	Radius:           20,
	BrakingThreshold: 5,
}

// Host is the vehicle a sensor is mounted on.
type Host interface {
	State() core.VehicleState
	OwnsBody(id string) bool
}

// Sensor owns the obstacle record set of one vehicle.
type Sensor struct {
	cfg     Config
	records map[string]*core.ObstacleRecord
}

// New validates cfg. Zero fields take DefaultConfig values.
func New(cfg Config) (*Sensor, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultConfig.Model
	}
	if cfg.Rays == 0 {
		cfg.Rays = DefaultConfig.Rays
	}
	if cfg.Range == 0 {
		cfg.Range = DefaultConfig.Range
	}
	if cfg.Radius == 0 {
		cfg.Radius = DefaultConfig.Radius
	}
	switch {
	case cfg.Model != ModelVolume && cfg.Model != ModelSweep:
		return nil, fmt.Errorf("%w: unknown sensor model %q", core.ErrConfiguration, cfg.Model)
	case cfg.Rays < 0 || cfg.Range < 0 || cfg.Radius < 0 || cfg.BrakingThreshold < 0:
		return nil, fmt.Errorf("%w: negative sensor parameter in %+v", core.ErrConfiguration, cfg)
	}
	return &Sensor{cfg: cfg, records: make(map[string]*core.ObstacleRecord)}, nil
}

// Config returns the effective configuration.
func (s *Sensor) Config() Config { return s.cfg }

// Update runs one detection pass for host against bodies and returns the
// resulting braking flag. Bodies owned by host are ignored.
func (s *Sensor) Update(host Host, bodies []Body) bool {
	state := host.State()
	origin := state.FifthWheel()

	var seen map[string]core.ObstacleRecord
	if s.cfg.Model == ModelSweep {
		seen = s.sweep(host, origin, state.Psi1, bodies)
	} else {
		seen = s.volume(host, origin, state.Psi1, bodies)
	}

	for id := range s.records {
		if _, ok := seen[id]; !ok {
			delete(s.records, id)
		}
	}
	braking := false
	for id, rec := range seen {
		if cur, ok := s.records[id]; ok {
			*cur = rec
		} else {
			r := rec
			s.records[id] = &r
		}
		if rec.Distance < s.cfg.BrakingThreshold {
			braking = true
		}
	}
	return braking
}

func (s *Sensor) volume(host Host, origin core.Point, heading float64, bodies []Body) map[string]core.ObstacleRecord {
	seen := make(map[string]core.ObstacleRecord)
	for _, b := range bodies {
		if host.OwnsBody(b.ID) {
			continue
		}
		c := b.ClosestPoint(origin)
		d := geo.Distance(origin, c)
		if d > s.cfg.Radius {
			continue
		}
		bearing := 0.0
		if d > 0 {
			bearing = relativeBearing(math.Atan2(c.Y-origin.Y, c.X-origin.X), heading)
		}
		seen[b.ID] = core.ObstacleRecord{ID: b.ID, Name: b.Name, Distance: d, Bearing: bearing}
	}
	return seen
}

func (s *Sensor) sweep(host Host, origin core.Point, heading float64, bodies []Body) map[string]core.ObstacleRecord {
	seen := make(map[string]core.ObstacleRecord)
	step := 2 * math.Pi / float64(s.cfg.Rays)
	for i := 0; i < s.cfg.Rays; i++ {
		angle := float64(i) * step
		for _, b := range bodies {
			if host.OwnsBody(b.ID) {
				continue
			}
			d, ok := b.RayHit(origin, angle)
			if !ok || d > s.cfg.Range {
				continue
			}
			// closest hit per body wins
			if prev, dup := seen[b.ID]; dup && prev.Distance <= d {
				continue
			}
			seen[b.ID] = core.ObstacleRecord{ID: b.ID, Name: b.Name, Distance: d, Bearing: relativeBearing(angle, heading)}
		}
	}
	return seen
}

// Records returns a copy of the current set ordered by distance.
func (s *Sensor) Records() []core.ObstacleRecord {
	out := make([]core.ObstacleRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// relativeBearing converts a world bearing to one relative to the tractor
// heading, in [-pi, pi).
func relativeBearing(world, heading float64) float64 {
	b := math.Mod(world-heading+math.Pi, 2*math.Pi)
	if b < 0 {
		b += 2 * math.Pi
	}
	return b - math.Pi
}
