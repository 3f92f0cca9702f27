package kinematics

import (
	"math"

	"github.com/rigtwin/twin/pkg/core"
)

// Body names one of the two rigid bodies of the rig.
type Body int

const (
	Tractor Body = iota
	Trailer
)

type slew struct {
	body      Body
	remaining float64 // radians, signed
	rate      float64 // radians per second, positive
}

type capture struct {
	tractor core.CapturePose
	trailer core.CapturePose
}

// Integrator owns the kinematic state of one vehicle. It is not safe for
// concurrent use; the simulation goroutine is its only caller.
type Integrator struct {
	geometry core.VehicleGeometry
	state    core.VehicleState
	source   Source
	pending  *capture
	slews    []slew
}

// NewIntegrator places a rig with the given geometry at start.
func NewIntegrator(g core.VehicleGeometry, start core.RigPose) *Integrator {
	k := &Integrator{geometry: g}
	Place(&k.state, g, start)
	return k
}

// Geometry returns the immutable rig geometry.
func (k *Integrator) Geometry() core.VehicleGeometry { return k.geometry }

// State returns a copy of the current state.
func (k *Integrator) State() core.VehicleState { return k.state }

// Source returns the active pose source.
func (k *Integrator) Source() Source { return k.source }

// SetSource switches between integration and motion capture. Pending heading
// slews are dropped when switching to motion capture.
func (k *Integrator) SetSource(s Source) {
	k.source = s
	if s == SourceMotionCapture {
		k.slews = nil
	}
	k.pending = nil
}

// SetRawPose stores the latest captured tractor and trailer poses. They are
// applied on the next Step while the source is SourceMotionCapture.
func (k *Integrator) SetRawPose(tractor, trailer core.CapturePose) {
	k.pending = &capture{tractor: tractor, trailer: trailer}
}

// SetPose teleports the rig, cancelling any in-flight slews.
func (k *Integrator) SetPose(p core.RigPose) {
	k.slews = nil
	Place(&k.state, k.geometry, p)
	k.state.V1, k.state.V2 = 0, 0
	k.state.Psi1Dot, k.state.Psi2Dot = 0, 0
}

// Slew rotates a body's heading by delta radians at rate radians per second
// over successive ticks. A zero rate applies the rotation on the next tick.
func (k *Integrator) Slew(body Body, delta, rate float64) {
	if delta == 0 {
		return
	}
	k.slews = append(k.slews, slew{body: body, remaining: delta, rate: math.Abs(rate)})
}

// Step advances the state by dt using the given sample.
func (k *Integrator) Step(in core.ActuationSample, dt float64) {
	if k.source == SourceMotionCapture {
		if k.pending != nil {
			AssignCapture(&k.state, k.geometry, k.pending.tractor, k.pending.trailer, dt)
			k.pending = nil
		}
		return
	}
	k.applySlews(dt)
	Step(&k.state, k.geometry, in.Velocity, in.SteerAngle, dt)
}

func (k *Integrator) applySlews(dt float64) {
	if len(k.slews) == 0 {
		return
	}
	pose := k.state.Pose()
	kept := k.slews[:0]
	for _, s := range k.slews {
		step := s.remaining
		if limit := s.rate * dt; s.rate > 0 && math.Abs(step) > limit {
			step = math.Copysign(limit, s.remaining)
		}
		switch s.body {
		case Tractor:
			pose.Psi1 += step
		case Trailer:
			pose.Psi2 += step
		}
		s.remaining -= step
		if math.Abs(s.remaining) > 1e-12 {
			kept = append(kept, s)
		}
	}
	k.slews = kept
	Place(&k.state, k.geometry, pose)
}
