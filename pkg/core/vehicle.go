// pkg/core/vehicle.go
package core

import (
	"fmt"
	"math"
)

// RawGeometry holds unscaled rig dimensions as configured.
type RawGeometry struct {
	L1           float64 `json:"l1" mapstructure:"l1"`                     // rear axle to front axle
	L1C          float64 `json:"l1c" mapstructure:"l1c"`                   // rear axle to fifth wheel
	L2           float64 `json:"l2" mapstructure:"l2"`                     // fifth wheel to trailer axle
	TractorWidth float64 `json:"tractorWidth" mapstructure:"tractorWidth"` // full width
	TrailerWidth float64 `json:"trailerWidth" mapstructure:"trailerWidth"` // full width
}

// VehicleGeometry is the scaled, immutable geometry of one rig.
// Construct it with NewVehicleGeometry; fields must not be changed afterwards.
type VehicleGeometry struct {
	Scale        float64
	L1           float64
	L1C          float64
	L2           float64
	TractorWidth float64
	TrailerWidth float64
}

// NewVehicleGeometry scales raw dimensions. L1 and L2 are divisors in the
// kinematic model so they must be strictly positive.
func NewVehicleGeometry(raw RawGeometry, scale float64) (VehicleGeometry, error) {
	if scale <= 0 || math.IsNaN(scale) {
		return VehicleGeometry{}, fmt.Errorf("%w: scale must be positive, got %v", ErrConfiguration, scale)
	}
	if raw.L1 <= 0 || raw.L2 <= 0 {
		return VehicleGeometry{}, fmt.Errorf("%w: L1 and L2 must be positive (L1=%v, L2=%v)", ErrConfiguration, raw.L1, raw.L2)
	}
	if raw.L1C < 0 || raw.TractorWidth < 0 || raw.TrailerWidth < 0 {
		return VehicleGeometry{}, fmt.Errorf("%w: negative dimension in %+v", ErrConfiguration, raw)
	}
	return VehicleGeometry{
		Scale:        scale,
		L1:           raw.L1 * scale,
		L1C:          raw.L1C * scale,
		L2:           raw.L2 * scale,
		TractorWidth: raw.TractorWidth * scale,
		TrailerWidth: raw.TrailerWidth * scale,
	}, nil
}

// PrevState is the previous-tick snapshot used for numerical differencing.
type PrevState struct {
	X1   float64
	Y1   float64
	Psi1 float64
	Psi2 float64
}

// VehicleState is the kinematic state of a rig. Gamma is always Psi1-Psi2.
type VehicleState struct {
	X0, Y0   float64 // front axle
	X1, Y1   float64 // tractor rear axle (pivot)
	X1C, Y1C float64 // fifth wheel
	X2, Y2   float64 // trailer axle

	Psi1  float64 // tractor yaw, radians, not wrapped
	Psi2  float64 // trailer yaw, radians, not wrapped
	Gamma float64 // articulation angle

	Psi1Dot float64
	Psi2Dot float64

	V1    float64 // tractor velocity
	V2    float64 // trailer velocity
	Delta float64 // steering angle

	Prev PrevState
}

// Pose extracts the rig pose from the state.
func (s VehicleState) Pose() RigPose {
	return RigPose{X1: s.X1, Y1: s.Y1, Psi1: s.Psi1, Psi2: s.Psi2}
}

// FrontAxle returns (X0, Y0).
func (s VehicleState) FrontAxle() Point { return Point{X: s.X0, Y: s.Y0} }

// RearAxle returns (X1, Y1).
func (s VehicleState) RearAxle() Point { return Point{X: s.X1, Y: s.Y1} }

// FifthWheel returns (X1C, Y1C).
func (s VehicleState) FifthWheel() Point { return Point{X: s.X1C, Y: s.Y1C} }

// TrailerAxle returns (X2, Y2).
func (s VehicleState) TrailerAxle() Point { return Point{X: s.X2, Y: s.Y2} }

// VehicleSnapshot is the read-only view published to external readers.
type VehicleSnapshot struct {
	VehicleID string           `json:"vehicleId"`
	Name      string           `json:"name"`
	Tick      uint64           `json:"tick"`
	SimTime   float64          `json:"simTime"`
	State     VehicleState     `json:"state"`
	Braking   bool             `json:"braking"`
	Strategy  string           `json:"strategy"`
	Source    string           `json:"source"`
	Recording bool             `json:"recording"`
	Replaying bool             `json:"replaying"`
	Obstacles []ObstacleRecord `json:"obstacles"`
	Regions   []string         `json:"regions"`
}
