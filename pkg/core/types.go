// pkg/core/types.go
package core

// Point is a position in the ground plane, in metres.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Position3D is a capture-frame coordinate as delivered by motion capture.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// CapturePose is a raw motion-capture body pose: position plus yaw in radians,
// still in the capture frame and unscaled.
type CapturePose struct {
	Position Position3D `json:"position"`
	Yaw      float64    `json:"yaw"`
}

// RigPose fully places the rig: tractor rear axle and both headings (radians).
type RigPose struct {
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	Psi1 float64 `json:"psi1"`
	Psi2 float64 `json:"psi2"`
}

// Array returns the pose as [x1, y1, psi1, psi2].
func (p RigPose) Array() [4]float64 {
	return [4]float64{p.X1, p.Y1, p.Psi1, p.Psi2}
}

// RigPoseFromArray is the inverse of RigPose.Array.
func RigPoseFromArray(a [4]float64) RigPose {
	return RigPose{X1: a[0], Y1: a[1], Psi1: a[2], Psi2: a[3]}
}

// ActuationSample is one tick of control input.
type ActuationSample struct {
	Velocity   float64 `json:"velocity"`   // m/s, negative reverses
	SteerAngle float64 `json:"steerAngle"` // radians, positive turns left
}
