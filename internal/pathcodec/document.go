// Package pathcodec converts reference paths to and from their persisted
// document form.
package pathcodec

import (
	"fmt"
	"time"

	"github.com/rigtwin/twin/pkg/core"
)

// Document is the persisted layout of a reference path. Field names are
// stable; positions are [x, y] pairs and poses are [x1, y1, psi1, psi2].
type Document struct {
	ID          string       `json:"id" msgpack:"id"`
	Name        string       `json:"name" msgpack:"name"`
	VehicleID   string       `json:"vehicleId" msgpack:"vehicleId"`
	RecordedAt  time.Time    `json:"recordedAt" msgpack:"recordedAt"`
	FrontAxle   [][2]float64 `json:"frontAxle" msgpack:"frontAxle"`
	RearAxle    [][2]float64 `json:"rearAxle" msgpack:"rearAxle"`
	FifthWheel  [][2]float64 `json:"fifthWheel" msgpack:"fifthWheel"`
	TrailerAxle [][2]float64 `json:"trailerAxle" msgpack:"trailerAxle"`
	Psi         [][2]float64 `json:"psi" msgpack:"psi"`
	Time        []float64    `json:"time" msgpack:"time"`
	StartPose   [4]float64   `json:"startPose" msgpack:"startPose"`
	EndPose     [4]float64   `json:"endPose" msgpack:"endPose"`
	Inputs      Inputs       `json:"inputs" msgpack:"inputs"`
}

// Inputs holds the input events as 2xN matrices: row 0 times, row 1 values.
type Inputs struct {
	SteerInput    [2][]float64 `json:"steerInput" msgpack:"steerInput"`
	VelocityInput [2][]float64 `json:"velocityInput" msgpack:"velocityInput"`
	Velocity      float64      `json:"velocity" msgpack:"velocity"`
	MaxTime       float64      `json:"maxTime" msgpack:"maxTime"`
}

// FromPath builds the document of p.
func FromPath(p *core.ReferencePath) Document {
	return Document{
		ID:          p.ID,
		Name:        p.Name,
		VehicleID:   p.VehicleID,
		RecordedAt:  p.RecordedAt.UTC(),
		FrontAxle:   pointsToPairs(p.FrontAxle),
		RearAxle:    pointsToPairs(p.RearAxle),
		FifthWheel:  pointsToPairs(p.FifthWheel),
		TrailerAxle: pointsToPairs(p.TrailerAxle),
		Psi:         append(make([][2]float64, 0, len(p.Psi)), p.Psi...),
		Time:        append(make([]float64, 0, len(p.Time)), p.Time...),
		StartPose:   p.StartPose.Array(),
		EndPose:     p.EndPose.Array(),
		Inputs: Inputs{
			SteerInput:    eventsToMatrix(p.SteerEvents),
			VelocityInput: eventsToMatrix(p.VelocityEvents),
			Velocity:      p.Summary.Velocity,
			MaxTime:       p.Summary.MaxTime,
		},
	}
}

// ToPath converts the document back and validates it. Malformed documents
// are rejected with core.ErrDataIntegrity rather than truncated.
func (d Document) ToPath() (*core.ReferencePath, error) {
	steer, err := matrixToEvents("steerInput", d.Inputs.SteerInput)
	if err != nil {
		return nil, err
	}
	velocity, err := matrixToEvents("velocityInput", d.Inputs.VelocityInput)
	if err != nil {
		return nil, err
	}
	p := &core.ReferencePath{
		ID:             d.ID,
		Name:           d.Name,
		VehicleID:      d.VehicleID,
		RecordedAt:     d.RecordedAt.UTC(),
		FrontAxle:      pairsToPoints(d.FrontAxle),
		RearAxle:       pairsToPoints(d.RearAxle),
		FifthWheel:     pairsToPoints(d.FifthWheel),
		TrailerAxle:    pairsToPoints(d.TrailerAxle),
		Psi:            append(make([][2]float64, 0, len(d.Psi)), d.Psi...),
		Time:           append(make([]float64, 0, len(d.Time)), d.Time...),
		SteerEvents:    steer,
		VelocityEvents: velocity,
		StartPose:      core.RigPoseFromArray(d.StartPose),
		EndPose:        core.RigPoseFromArray(d.EndPose),
		Summary:        core.InputSummary{Velocity: d.Inputs.Velocity, MaxTime: d.Inputs.MaxTime},
	}
	if d.ID == "" {
		return nil, fmt.Errorf("%w: document has no id", core.ErrDataIntegrity)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func pointsToPairs(pts []core.Point) [][2]float64 {
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64{p.X, p.Y}
	}
	return out
}

func pairsToPoints(pairs [][2]float64) []core.Point {
	out := make([]core.Point, len(pairs))
	for i, p := range pairs {
		out[i] = core.Point{X: p[0], Y: p[1]}
	}
	return out
}

func eventsToMatrix(events []core.InputEvent) [2][]float64 {
	m := [2][]float64{make([]float64, len(events)), make([]float64, len(events))}
	for i, e := range events {
		m[0][i], m[1][i] = e.Time, e.Value
	}
	return m
}

func matrixToEvents(name string, m [2][]float64) ([]core.InputEvent, error) {
	if len(m[0]) != len(m[1]) {
		return nil, fmt.Errorf("%w: %s has %d times and %d values", core.ErrDataIntegrity, name, len(m[0]), len(m[1]))
	}
	out := make([]core.InputEvent, len(m[0]))
	for i := range out {
		out[i] = core.InputEvent{Time: m[0][i], Value: m[1][i]}
	}
	return out, nil
}
