// Package vehicle composes geometry, kinematic state, braking and the active
// actuation strategy of one simulated rig.
package vehicle

import (
	"fmt"
	"math"

	"github.com/rigtwin/twin/internal/actuation"
	"github.com/rigtwin/twin/internal/geo"
	"github.com/rigtwin/twin/internal/kinematics"
	"github.com/rigtwin/twin/pkg/core"
)

// Config describes a vehicle as configured.
type Config struct {
	ID       string                   `json:"id" mapstructure:"id"`
	Name     string                   `json:"name" mapstructure:"name"`
	Scale    float64                  `json:"scale" mapstructure:"scale"`
	Geometry core.RawGeometry         `json:"geometry" mapstructure:"geometry"`
	Start    core.RigPose             `json:"start" mapstructure:"start"`
	Strategy string                   `json:"strategy" mapstructure:"strategy"`
	Source   string                   `json:"source" mapstructure:"source"`
	Keyboard actuation.KeyboardConfig `json:"keyboard" mapstructure:"keyboard"`
}

// Vehicle is one articulated rig. Only the simulation goroutine mutates it.
type Vehicle struct {
	id   string
	name string

	kin        *kinematics.Integrator
	strategies *actuation.Set
	strategy   actuation.Strategy
	braking    bool
}

// New validates cfg and places the vehicle at its start pose.
func New(cfg Config) (*Vehicle, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: vehicle id is required", core.ErrConfiguration)
	}
	scale := cfg.Scale
	if scale == 0 {
		scale = 1
	}
	g, err := core.NewVehicleGeometry(cfg.Geometry, scale)
	if err != nil {
		return nil, fmt.Errorf("vehicle %s: %w", cfg.ID, err)
	}
	source, err := kinematics.ParseSource(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: vehicle %s: %v", core.ErrConfiguration, cfg.ID, err)
	}

	v := &Vehicle{
		id:         cfg.ID,
		name:       cfg.Name,
		kin:        kinematics.NewIntegrator(g, cfg.Start),
		strategies: actuation.NewSet(cfg.Keyboard),
	}
	if v.name == "" {
		v.name = cfg.ID
	}
	v.kin.SetSource(source)

	name := cfg.Strategy
	if name == "" {
		name = actuation.NameController
	}
	if v.strategy, err = v.strategies.Lookup(name); err != nil {
		return nil, fmt.Errorf("vehicle %s: %w", cfg.ID, err)
	}
	return v, nil
}

func (v *Vehicle) ID() string { return v.id }
func (v *Vehicle) Name() string { return v.name }

// TractorBodyID identifies the tractor body in the obstacle scene.
func (v *Vehicle) TractorBodyID() string { return v.id + "/tractor" }

// TrailerBodyID identifies the trailer body in the obstacle scene.
func (v *Vehicle) TrailerBodyID() string { return v.id + "/trailer" }

// OwnsBody reports whether a scene body ID belongs to this vehicle.
func (v *Vehicle) OwnsBody(id string) bool {
	return id == v.TractorBodyID() || id == v.TrailerBodyID()
}

func (v *Vehicle) Geometry() core.VehicleGeometry { return v.kin.Geometry() }
func (v *Vehicle) State() core.VehicleState { return v.kin.State() }
func (v *Vehicle) Pose() core.RigPose { return v.kin.State().Pose() }

// TractorBox returns the current tractor footprint.
func (v *Vehicle) TractorBox() [4]core.Point {
	return geo.TractorBox(v.kin.State(), v.kin.Geometry())
}

// TrailerBox returns the current trailer footprint.
func (v *Vehicle) TrailerBox() [4]core.Point {
	return geo.TrailerBox(v.kin.State(), v.kin.Geometry())
}

// Braking reports whether the obstacle sensor is holding the vehicle.
func (v *Vehicle) Braking() bool { return v.braking }

// SetBraking is written by the obstacle sensor once per tick and read by the
// next integration step.
func (v *Vehicle) SetBraking(b bool) { v.braking = b }

// Strategy returns the active actuation strategy.
func (v *Vehicle) Strategy() actuation.Strategy { return v.strategy }

// SetStrategy swaps the active strategy. Callers must only do this between
// ticks.
func (v *Vehicle) SetStrategy(s actuation.Strategy) error {
	if s == nil {
		return fmt.Errorf("%w: nil strategy for vehicle %s", core.ErrConfiguration, v.id)
	}
	v.strategy = s
	return nil
}

// SelectStrategy activates one of the vehicle's named strategies.
func (v *Vehicle) SelectStrategy(name string) error {
	s, err := v.strategies.Lookup(name)
	if err != nil {
		return err
	}
	v.strategy = s
	return nil
}

// Strategies exposes the selectable strategy instances for input routing.
func (v *Vehicle) Strategies() *actuation.Set { return v.strategies }

func (v *Vehicle) Source() kinematics.Source { return v.kin.Source() }
func (v *Vehicle) SetSource(s kinematics.Source) { v.kin.SetSource(s) }

// SetActuation feeds the controller strategy.
func (v *Vehicle) SetActuation(velocity, steer float64) {
	v.strategies.Controller.Set(velocity, steer)
}

// SetRawPose feeds the motion capture path.
func (v *Vehicle) SetRawPose(tractor, trailer core.CapturePose) {
	v.kin.SetRawPose(tractor, trailer)
}

// Teleport places the rig at pose without integrating.
func (v *Vehicle) Teleport(p core.RigPose) { v.kin.SetPose(p) }

// SetPosition teleports using headings in degrees.
func (v *Vehicle) SetPosition(x, y, psi1Deg, psi2Deg float64) {
	v.kin.SetPose(core.RigPose{X1: x, Y1: y, Psi1: deg2rad(psi1Deg), Psi2: deg2rad(psi2Deg)})
}

// SetTractorAngle rotates the tractor heading by delta degrees at rate deg/s.
func (v *Vehicle) SetTractorAngle(delta, rate float64) {
	v.kin.Slew(kinematics.Tractor, deg2rad(delta), deg2rad(rate))
}

// SetTrailerAngle rotates the trailer heading by delta degrees at rate deg/s.
func (v *Vehicle) SetTrailerAngle(delta, rate float64) {
	v.kin.Slew(kinematics.Trailer, deg2rad(delta), deg2rad(rate))
}

// Input pulls one sample from the given strategy and substitutes zero
// velocity while braking. A nil strategy uses the active one. Under motion
// capture the observed velocity and steering angle are returned instead.
func (v *Vehicle) Input(s actuation.Strategy, dt float64) core.ActuationSample {
	if v.kin.Source() == kinematics.SourceMotionCapture {
		// driven externally: report the motion observed by the capture feed
		st := v.kin.State()
		return core.ActuationSample{Velocity: st.V1, SteerAngle: st.Delta}
	}
	if s == nil {
		s = v.strategy
	}
	in := s.Input(dt)
	if v.braking {
		in.Velocity = 0
	}
	return in
}

// Apply advances the integrator by dt with a sample obtained from Input.
func (v *Vehicle) Apply(in core.ActuationSample, dt float64) {
	v.kin.Step(in, dt)
}

// Snapshot copies the vehicle's state for publication. Recorder, sensor and
// region fields are filled in by their owners.
func (v *Vehicle) Snapshot() core.VehicleSnapshot {
	return core.VehicleSnapshot{
		VehicleID: v.id,
		Name:      v.name,
		State:     v.kin.State(),
		Braking:   v.braking,
		Strategy:  v.strategy.Name(),
		Source:    v.kin.Source().String(),
	}
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
