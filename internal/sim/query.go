package sim

import (
	"fmt"

	"github.com/brunoga/deep"
	"github.com/rigtwin/twin/internal/handlers"
	"github.com/rigtwin/twin/pkg/core"
)

// The query methods read the copies published at the end of the last tick
// and are safe to call from any goroutine. Callers get their own deep copy.

// Snapshot returns the latest published state of a vehicle.
func (s *Sim) Snapshot(vehicleID string) (core.VehicleSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[vehicleID]
	if !ok {
		return core.VehicleSnapshot{}, fmt.Errorf("%w: %q", core.ErrUnknownVehicle, vehicleID)
	}
	return deep.MustCopy(snap), nil
}

// Snapshots returns every vehicle's latest state in configuration order.
func (s *Sim) Snapshots() []core.VehicleSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.VehicleSnapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.snapshots[id])
	}
	return deep.MustCopy(out)
}

// Obstacles returns the obstacle records of a vehicle, nearest first.
func (s *Sim) Obstacles(vehicleID string) ([]core.ObstacleRecord, error) {
	snap, err := s.Snapshot(vehicleID)
	if err != nil {
		return nil, err
	}
	return snap.Obstacles, nil
}

// IsInRegion reports whether either body of the vehicle overlapped the named
// region at the last tick.
func (s *Sim) IsInRegion(vehicleID, region string) (bool, error) {
	snap, err := s.Snapshot(vehicleID)
	if err != nil {
		return false, err
	}
	for _, r := range snap.Regions {
		if r == region {
			return true, nil
		}
	}
	return false, nil
}

// SetActuation queues a controller sample for the next tick.
func (s *Sim) SetActuation(vehicleID string, velocity, steer float64) error {
	return s.enqueue(vehicleID, handlers.Command{
		Name: handlers.CmdActuation,
		Apply: func(t handlers.Target) error {
			return t.SetActuation(vehicleID, velocity, steer)
		},
	})
}

// SetRawPose queues a motion-capture pose pair for the next tick.
func (s *Sim) SetRawPose(vehicleID string, tractor, trailer core.CapturePose) error {
	return s.enqueue(vehicleID, handlers.Command{
		Name: handlers.CmdPose,
		Apply: func(t handlers.Target) error {
			return t.SetRawPose(vehicleID, tractor, trailer)
		},
	})
}

func (s *Sim) enqueue(vehicleID string, cmd handlers.Command) error {
	if _, err := s.reg.Vehicle(vehicleID); err != nil {
		return err
	}
	if n := s.commands.Push(cmd); n > 0 {
		s.log.Warn("Command queue full, discarded oldest", "discarded", n)
	}
	return nil
}
