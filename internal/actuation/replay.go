package actuation

import (
	"github.com/rigtwin/twin/pkg/core"
)

const timeEpsilon = 1e-9

// Replay drives a vehicle from the sparse input events of a recorded path.
// Each call applies every steer and velocity event whose time has been
// reached, holds the last value otherwise, then advances elapsed by dt.
// Times are compared with a tolerance of timeEpsilon since elapsed is a
// running sum while recorded times are tick differences.
type Replay struct {
	steer    []core.InputEvent
	velocity []core.InputEvent
	maxTime  float64

	si, vi  int
	sample  core.ActuationSample
	elapsed float64
}

// NewReplay binds a replay strategy to a path.
func NewReplay(p *core.ReferencePath) *Replay {
	return &Replay{
		steer:    p.SteerEvents,
		velocity: p.VelocityEvents,
		maxTime:  p.Summary.MaxTime,
	}
}

func (r *Replay) Name() string { return NameReplay }

func (r *Replay) Input(dt float64) core.ActuationSample {
	for r.si < len(r.steer) && r.steer[r.si].Time <= r.elapsed+timeEpsilon {
		r.sample.SteerAngle = r.steer[r.si].Value
		r.si++
	}
	for r.vi < len(r.velocity) && r.velocity[r.vi].Time <= r.elapsed+timeEpsilon {
		r.sample.Velocity = r.velocity[r.vi].Value
		r.vi++
	}
	r.elapsed += dt
	return r.sample
}

// Elapsed returns the replay time consumed so far.
func (r *Replay) Elapsed() float64 { return r.elapsed }

// Done reports whether replay time has reached the last recorded timestamp.
func (r *Replay) Done() bool { return r.elapsed >= r.maxTime-timeEpsilon }
