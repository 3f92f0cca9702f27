package sim

import (
	"fmt"

	"github.com/rigtwin/twin/internal/actuation"
	"github.com/rigtwin/twin/internal/handlers"
	"github.com/rigtwin/twin/internal/kinematics"
	"github.com/rigtwin/twin/internal/recorder"
	"github.com/rigtwin/twin/internal/sensor"
	"github.com/rigtwin/twin/pkg/core"
)

// executor applies queued commands inside a tick.
type executor struct {
	s *Sim
}

var _ handlers.Target = executor{}

func (e executor) unit(id string) (*unit, error) {
	u, ok := e.s.units[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownVehicle, id)
	}
	return u, nil
}

func (e executor) StartRecording(vehicleID, name string) error {
	u, err := e.unit(vehicleID)
	if err != nil {
		return err
	}
	return u.deck.StartRecording(u.v, name, e.s.SimTime(), e.s.deps.Clock())
}

// StopRecording finishes the recording and persists it. Stopping an idle
// recorder does nothing.
func (e executor) StopRecording(vehicleID string) error {
	u, err := e.unit(vehicleID)
	if err != nil {
		return err
	}
	p := u.deck.StopRecording()
	if p == nil {
		return nil
	}
	if e.s.deps.Paths == nil {
		e.s.log.Warn("No path storage configured, recording discarded", "vehicle", vehicleID, "path", p.ID)
		return nil
	}
	if err := e.s.deps.Paths.SavePath(p); err != nil {
		return fmt.Errorf("saving path %s: %w", p.ID, err)
	}
	e.s.log.Info("Path saved", "vehicle", vehicleID, "path", p.ID, "samples", p.Len(), "maxTime", p.Summary.MaxTime)
	if e.s.deps.Publisher != nil {
		if err := e.s.deps.Publisher.PublishPath(p.Info()); err != nil {
			e.s.log.Error("Failed to publish saved path", "path", p.ID, "error", err)
		}
	}
	return nil
}

func (e executor) StartReplay(vehicleID, pathID string, mode recorder.Mode) error {
	u, err := e.unit(vehicleID)
	if err != nil {
		return err
	}
	if mode == recorder.ModeDrive && u.v.Source() == kinematics.SourceMotionCapture {
		return fmt.Errorf("%w: vehicle %s is driven by motion capture", core.ErrInvalidOperation, vehicleID)
	}
	if e.s.deps.Paths == nil {
		return fmt.Errorf("%w: no path storage configured", core.ErrConfiguration)
	}
	p, err := e.s.deps.Paths.LoadPath(pathID)
	if err != nil {
		return err
	}
	return u.deck.StartReplay(u.v, p, mode)
}

func (e executor) StopReplay(vehicleID string) error {
	u, err := e.unit(vehicleID)
	if err != nil {
		return err
	}
	u.deck.StopReplay()
	return nil
}

func (e executor) SetPosition(vehicleID string, x, y, psi1Deg, psi2Deg float64) error {
	u, err := e.unit(vehicleID)
	if err != nil {
		return err
	}
	u.v.SetPosition(x, y, psi1Deg, psi2Deg)
	return nil
}

func (e executor) SetTractorAngle(vehicleID string, delta, rate float64) error {
	u, err := e.unit(vehicleID)
	if err != nil {
		return err
	}
	u.v.SetTractorAngle(delta, rate)
	return nil
}

func (e executor) SetTrailerAngle(vehicleID string, delta, rate float64) error {
	u, err := e.unit(vehicleID)
	if err != nil {
		return err
	}
	u.v.SetTrailerAngle(delta, rate)
	return nil
}

func (e executor) SetSource(vehicleID, name string) error {
	u, err := e.unit(vehicleID)
	if err != nil {
		return err
	}
	src, err := kinematics.ParseSource(name)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfiguration, err)
	}
	if src == kinematics.SourceMotionCapture && u.deck.Replayer.Active() {
		return fmt.Errorf("%w: vehicle %s is replaying", core.ErrInvalidOperation, vehicleID)
	}
	u.v.SetSource(src)
	return nil
}

func (e executor) SetActuation(vehicleID string, velocity, steer float64) error {
	u, err := e.unit(vehicleID)
	if err != nil {
		return err
	}
	u.v.SetActuation(velocity, steer)
	return nil
}

func (e executor) SetRawPose(vehicleID string, tractor, trailer core.CapturePose) error {
	u, err := e.unit(vehicleID)
	if err != nil {
		return err
	}
	u.v.SetRawPose(tractor, trailer)
	return nil
}

func (e executor) SetKeys(vehicleID string, keys actuation.Keys) error {
	u, err := e.unit(vehicleID)
	if err != nil {
		return err
	}
	u.v.Strategies().Keyboard.SetKeys(keys)
	return nil
}

// SetStrategy is refused during a replay, which owns the strategy slot until
// it ends.
func (e executor) SetStrategy(vehicleID, name string) error {
	u, err := e.unit(vehicleID)
	if err != nil {
		return err
	}
	if u.deck.Replayer.Active() {
		return fmt.Errorf("%w: vehicle %s is replaying", core.ErrInvalidOperation, vehicleID)
	}
	return u.v.SelectStrategy(name)
}

func (e executor) PutObstacle(b sensor.Body) error { return e.s.reg.PutObstacle(b) }

func (e executor) MoveObstacle(id string, to core.Point) error { return e.s.reg.MoveObstacle(id, to) }

func (e executor) RemoveObstacle(id string) error {
	e.s.reg.RemoveObstacle(id)
	return nil
}
