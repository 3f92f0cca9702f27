// pkg/core/path.go
package core

import (
	"fmt"
	"time"
)

// InputEvent is a control value that took effect at Time seconds into a recording.
type InputEvent struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// InputSummary carries the constant summary of a recording.
type InputSummary struct {
	Velocity float64 `json:"velocity"` // final commanded velocity
	MaxTime  float64 `json:"maxTime"`  // last timestamp
}

// ReferencePath is a recorded trajectory plus the sparse input events needed
// to replay it through the integrator.
//
// Every sample list has the same length as Time. Event lists only contain an
// entry when the value changed, and their times are a strictly increasing
// subsequence of Time.
type ReferencePath struct {
	ID         string
	Name       string
	VehicleID  string
	RecordedAt time.Time

	FrontAxle   []Point
	RearAxle    []Point
	FifthWheel  []Point
	TrailerAxle []Point
	Psi         [][2]float64
	Time        []float64

	SteerEvents    []InputEvent
	VelocityEvents []InputEvent

	StartPose RigPose
	EndPose   RigPose
	Summary   InputSummary
}

// PathInfo is the catalogue entry for a stored path.
type PathInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	VehicleID  string    `json:"vehicleId"`
	RecordedAt time.Time `json:"recordedAt"`
	Samples    int       `json:"samples"`
	MaxTime    float64   `json:"maxTime"`
}

// Len returns the number of recorded samples.
func (p *ReferencePath) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Time)
}

// Empty reports whether the path has no samples.
func (p *ReferencePath) Empty() bool {
	return p.Len() == 0
}

// Info builds the catalogue entry for the path.
func (p *ReferencePath) Info() PathInfo {
	return PathInfo{
		ID:         p.ID,
		Name:       p.Name,
		VehicleID:  p.VehicleID,
		RecordedAt: p.RecordedAt,
		Samples:    p.Len(),
		MaxTime:    p.Summary.MaxTime,
	}
}

// PoseAt returns the rig pose stored at sample i.
func (p *ReferencePath) PoseAt(i int) RigPose {
	return RigPose{
		X1:   p.RearAxle[i].X,
		Y1:   p.RearAxle[i].Y,
		Psi1: p.Psi[i][0],
		Psi2: p.Psi[i][1],
	}
}

// Validate checks the structural invariants of a path. Violations wrap
// ErrDataIntegrity.
func (p *ReferencePath) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil path", ErrDataIntegrity)
	}
	n := len(p.Time)
	lists := map[string]int{
		"frontAxle":   len(p.FrontAxle),
		"rearAxle":    len(p.RearAxle),
		"fifthWheel":  len(p.FifthWheel),
		"trailerAxle": len(p.TrailerAxle),
		"psi":         len(p.Psi),
	}
	for name, l := range lists {
		if l != n {
			return fmt.Errorf("%w: %s has %d samples, time has %d", ErrDataIntegrity, name, l, n)
		}
	}
	for i := 1; i < n; i++ {
		if p.Time[i] <= p.Time[i-1] {
			return fmt.Errorf("%w: time not strictly increasing at sample %d", ErrDataIntegrity, i)
		}
	}
	if err := validateEvents("steer", p.SteerEvents, p.Time); err != nil {
		return err
	}
	return validateEvents("velocity", p.VelocityEvents, p.Time)
}

func validateEvents(name string, events []InputEvent, times []float64) error {
	j := 0
	for i, e := range events {
		if i > 0 && e.Time <= events[i-1].Time {
			return fmt.Errorf("%w: %s events not strictly increasing at %d", ErrDataIntegrity, name, i)
		}
		// the initial event at t=0 may predate the first sample
		if i == 0 && e.Time == 0 {
			continue
		}
		for j < len(times) && times[j] < e.Time {
			j++
		}
		if j == len(times) || times[j] != e.Time {
			return fmt.Errorf("%w: %s event at t=%v is not a sample time", ErrDataIntegrity, name, e.Time)
		}
	}
	return nil
}
