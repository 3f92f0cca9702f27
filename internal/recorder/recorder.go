// Package recorder captures reference paths from a running vehicle and plays
// them back, either through the integrator or as direct pose assignment.
package recorder

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rigtwin/twin/pkg/core"
)

// DefaultSampleInterval is the recording period in seconds.
const DefaultSampleInterval = 0.1

const timeEpsilon = 1e-9

// Subject is the vehicle being recorded.
type Subject interface {
	ID() string
	State() core.VehicleState
}

// Recorder is the Idle -> Recording -> Idle state machine of one vehicle.
// All methods run on the simulation goroutine.
//
// Samples are taken at the start of a tick, before integration: the pose at
// time t and the input about to be applied from t onwards. This is the moment
// at which actuation.Replay applies the same events, so a drive replay with
// the recording tick rate reproduces the recorded trajectory.
type Recorder struct {
	log      *slog.Logger
	interval float64

	subject   Subject
	path      *core.ReferencePath
	startTime float64
	lastSteer float64
	lastVel   float64
}

// NewRecorder returns an idle recorder sampling every interval seconds. A nil
// logger discards output; a non-positive interval uses DefaultSampleInterval.
func NewRecorder(log *slog.Logger, interval float64) *Recorder {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Recorder{log: log, interval: interval}
}

// Recording reports whether a recording is in progress.
func (r *Recorder) Recording() bool { return r.path != nil }

// Samples returns the number of samples captured so far.
func (r *Recorder) Samples() int { return r.path.Len() }

// Start begins a recording of subject at simulation time simTime. The start
// pose is snapshotted and buffers are reset; the first Sample call then
// records the t=0 sample together with the initial input events.
func (r *Recorder) Start(subject Subject, name string, simTime float64, now time.Time) error {
	if subject == nil {
		return fmt.Errorf("%w: cannot record a nil vehicle", core.ErrConfiguration)
	}
	if r.Recording() {
		r.log.Warn("Recording already in progress", "vehicle", subject.ID(), "path", r.path.ID)
		return fmt.Errorf("%w: vehicle %s is already recording", core.ErrInvalidOperation, subject.ID())
	}

	recordedAt := now.UTC()
	if name == "" {
		name = subject.ID()
	}
	r.subject = subject
	r.startTime = simTime
	r.path = &core.ReferencePath{
		ID:             PathID(name, recordedAt),
		Name:           name,
		VehicleID:      subject.ID(),
		RecordedAt:     recordedAt,
		FrontAxle:      make([]core.Point, 0, 64),
		RearAxle:       make([]core.Point, 0, 64),
		FifthWheel:     make([]core.Point, 0, 64),
		TrailerAxle:    make([]core.Point, 0, 64),
		Psi:            make([][2]float64, 0, 64),
		Time:           make([]float64, 0, 64),
		SteerEvents:    make([]core.InputEvent, 0, 8),
		VelocityEvents: make([]core.InputEvent, 0, 8),
		StartPose:      subject.State().Pose(),
	}

	r.log.Info("Recording started", "vehicle", subject.ID(), "path", r.path.ID)
	return nil
}

// Sample is called once per tick before integration with the input about to
// be applied. A sample is appended when the interval has elapsed since the
// previous one; input events are appended only when steer or velocity
// differ from the last recorded value.
func (r *Recorder) Sample(simTime float64, in core.ActuationSample) {
	if !r.Recording() {
		return
	}
	t := simTime - r.startTime
	p := r.path
	if n := len(p.Time); n > 0 {
		last := p.Time[n-1]
		if t-last < r.interval-timeEpsilon || t <= last {
			return
		}
	} else {
		// first sample anchors the recording at t=0
		t = 0
		p.SteerEvents = append(p.SteerEvents, core.InputEvent{Time: 0, Value: in.SteerAngle})
		p.VelocityEvents = append(p.VelocityEvents, core.InputEvent{Time: 0, Value: in.Velocity})
		r.lastSteer, r.lastVel = in.SteerAngle, in.Velocity
	}

	s := r.subject.State()
	p.FrontAxle = append(p.FrontAxle, s.FrontAxle())
	p.RearAxle = append(p.RearAxle, s.RearAxle())
	p.FifthWheel = append(p.FifthWheel, s.FifthWheel())
	p.TrailerAxle = append(p.TrailerAxle, s.TrailerAxle())
	p.Psi = append(p.Psi, [2]float64{s.Psi1, s.Psi2})
	p.Time = append(p.Time, t)

	if in.SteerAngle != r.lastSteer {
		p.SteerEvents = append(p.SteerEvents, core.InputEvent{Time: t, Value: in.SteerAngle})
		r.lastSteer = in.SteerAngle
	}
	if in.Velocity != r.lastVel {
		p.VelocityEvents = append(p.VelocityEvents, core.InputEvent{Time: t, Value: in.Velocity})
		r.lastVel = in.Velocity
	}
}

// Stop ends the recording and returns the finished path. Stopping an idle
// recorder is a no-op returning nil. A recording stopped before its first
// sample gets a single sample of the current state.
func (r *Recorder) Stop() *core.ReferencePath {
	if !r.Recording() {
		return nil
	}
	s := r.subject.State()
	if r.path.Empty() {
		r.Sample(r.startTime, core.ActuationSample{Velocity: s.V1, SteerAngle: s.Delta})
	}

	p := r.path
	p.EndPose = s.Pose()
	p.Summary = core.InputSummary{
		Velocity: r.lastVel,
		MaxTime:  p.Time[len(p.Time)-1],
	}
	r.path, r.subject = nil, nil

	r.log.Info("Recording stopped", "vehicle", p.VehicleID, "path", p.ID, "samples", p.Len(), "maxTime", p.Summary.MaxTime)
	return p
}

// PathID builds a filename-safe identifier from a name and time.
func PathID(name string, at time.Time) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	return fmt.Sprintf("%s_%s", clean, at.UTC().Format("20060102_150405.000"))
}
