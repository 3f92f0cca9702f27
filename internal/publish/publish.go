// Package publish fans simulation output out to external sinks.
package publish

import (
	"log/slog"

	"github.com/rigtwin/twin/pkg/core"
)

// Publisher receives immutable copies of simulation output. Implementations
// must not block the caller for long.
type Publisher interface {
	PublishSnapshots(tick uint64, simTime float64, snaps []core.VehicleSnapshot) error
	PublishTransitions(ts []core.RegionTransition) error
	PublishPath(info core.PathInfo) error
}

// Multi forwards to every publisher, logging failures.
type Multi struct {
	pubs []Publisher
	log  *slog.Logger
}

// NewMulti skips nil publishers.
func NewMulti(log *slog.Logger, pubs ...Publisher) *Multi {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	m := &Multi{log: log}
	for _, p := range pubs {
		if p != nil {
			m.pubs = append(m.pubs, p)
		}
	}
	return m
}

// Len returns the number of attached publishers.
func (m *Multi) Len() int { return len(m.pubs) }

func (m *Multi) PublishSnapshots(tick uint64, simTime float64, snaps []core.VehicleSnapshot) error {
	for _, p := range m.pubs {
		if err := p.PublishSnapshots(tick, simTime, snaps); err != nil {
			m.log.Warn("Publishing snapshots failed", "error", err)
		}
	}
	return nil
}

func (m *Multi) PublishTransitions(ts []core.RegionTransition) error {
	if len(ts) == 0 {
		return nil
	}
	for _, p := range m.pubs {
		if err := p.PublishTransitions(ts); err != nil {
			m.log.Warn("Publishing region transitions failed", "error", err)
		}
	}
	return nil
}

func (m *Multi) PublishPath(info core.PathInfo) error {
	for _, p := range m.pubs {
		if err := p.PublishPath(info); err != nil {
			m.log.Warn("Publishing path failed", "path", info.ID, "error", err)
		}
	}
	return nil
}
