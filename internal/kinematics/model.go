// Package kinematics advances the articulated tractor-trailer state.
//
// The model is the kinematic single-track ("bicycle") model of a tractor with
// an off-axle hitch. All angles are radians and are never wrapped into
// [-pi, pi]; long sessions accumulate heading without bound, which is harmless
// for the trigonometry below but slowly loses float precision.
//
// L1 and L2 are divisors. NewVehicleGeometry rejects non-positive values, but
// tan(delta) near +-pi/2 is not guarded and yields unbounded yaw rates.
package kinematics

import (
	"math"

	"github.com/rigtwin/twin/pkg/core"
)

// Step integrates the state over one fixed timestep dt with velocity v and
// steering angle delta.
func Step(s *core.VehicleState, g core.VehicleGeometry, v, delta, dt float64) {
	// 1. snapshot
	s.Prev = core.PrevState{X1: s.X1, Y1: s.Y1, Psi1: s.Psi1, Psi2: s.Psi2}

	// 2. articulation from the previous tick
	gamma := s.Prev.Psi1 - s.Prev.Psi2

	// 3. tractor yaw
	psi1dot := (v / g.L1) * math.Tan(delta)
	s.Psi1 = s.Prev.Psi1 + psi1dot*dt

	// 4. tractor rear axle
	s.X1 = s.Prev.X1 + v*math.Cos(s.Psi1)*dt
	s.Y1 = s.Prev.Y1 + v*math.Sin(s.Psi1)*dt

	// 6. trailer yaw
	psi2dot := (v*math.Sin(gamma) + psi1dot*g.L1C*math.Cos(gamma)) / g.L2
	s.Psi2 = s.Prev.Psi2 + psi2dot*dt

	// 7. trailer velocity
	s.V2 = v*math.Cos(gamma) - psi1dot*g.L1C*math.Sin(gamma)

	s.V1 = v
	s.Delta = delta
	s.Psi1Dot = psi1dot
	s.Psi2Dot = psi2dot

	// 5, 8: derived points
	derive(s, g)
}

// Place teleports the rig to pose, bypassing integration. Derived points and
// the differencing snapshot are reset so the next Step starts clean.
func Place(s *core.VehicleState, g core.VehicleGeometry, p core.RigPose) {
	s.X1, s.Y1 = p.X1, p.Y1
	s.Psi1, s.Psi2 = p.Psi1, p.Psi2
	s.Prev = core.PrevState{X1: p.X1, Y1: p.Y1, Psi1: p.Psi1, Psi2: p.Psi2}
	derive(s, g)
}

// derive recomputes every quantity that is a pure function of the rear axle
// pose and both headings.
func derive(s *core.VehicleState, g core.VehicleGeometry) {
	c1, s1 := math.Cos(s.Psi1), math.Sin(s.Psi1)
	s.X0 = s.X1 + g.L1*c1
	s.Y0 = s.Y1 + g.L1*s1
	s.X1C = s.X1 + g.L1C*c1
	s.Y1C = s.Y1 + g.L1C*s1
	s.X2 = s.X1C - g.L2*math.Cos(s.Psi2)
	s.Y2 = s.Y1C - g.L2*math.Sin(s.Psi2)
	s.Gamma = s.Psi1 - s.Psi2
}

// CaptureToWorld maps a capture-frame pose into the simulation ground plane:
// capture z becomes x, capture -x becomes y, yaw is negated, and positions
// are scaled by the vehicle scale factor.
func CaptureToWorld(p core.CapturePose, scale float64) (core.Point, float64) {
	return core.Point{
		X: p.Position.Z * scale,
		Y: -p.Position.X * scale,
	}, -p.Yaw
}

// AssignCapture sets the state from captured tractor and trailer poses.
// Velocities and yaw rates are obtained by differencing against the previous
// tick; the steering angle is inferred from the yaw rate while moving.
func AssignCapture(s *core.VehicleState, g core.VehicleGeometry, tractor, trailer core.CapturePose, dt float64) {
	s.Prev = core.PrevState{X1: s.X1, Y1: s.Y1, Psi1: s.Psi1, Psi2: s.Psi2}

	pivot, psi1 := CaptureToWorld(tractor, g.Scale)
	axle, psi2 := CaptureToWorld(trailer, g.Scale)

	s.X1, s.Y1, s.Psi1, s.Psi2 = pivot.X, pivot.Y, psi1, psi2
	derive(s, g)
	// the trailer axle is observed, not derived
	s.X2, s.Y2 = axle.X, axle.Y

	if dt <= 0 {
		return
	}
	dx, dy := s.X1-s.Prev.X1, s.Y1-s.Prev.Y1
	s.V1 = (dx*math.Cos(s.Psi1) + dy*math.Sin(s.Psi1)) / dt
	s.Psi1Dot = (s.Psi1 - s.Prev.Psi1) / dt
	s.Psi2Dot = (s.Psi2 - s.Prev.Psi2) / dt

	gamma := s.Prev.Psi1 - s.Prev.Psi2
	s.V2 = s.V1*math.Cos(gamma) - s.Psi1Dot*g.L1C*math.Sin(gamma)
	if math.Abs(s.V1) > 1e-6 {
		s.Delta = math.Atan(s.Psi1Dot * g.L1 / s.V1)
	}
}
