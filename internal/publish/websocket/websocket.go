// Package websocket streams simulation snapshots to a remote server.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rigtwin/twin/pkg/core"
	"github.com/rigtwin/twin/pkg/streaming"
)

// Config holds WebSocket publisher configuration.
type Config struct {
	URL    string
	Secret string
}

// Publisher sends envelopes over a single reconnecting connection.
type Publisher struct {
	link *link
}

// New creates a new WebSocket publisher.
func New(cfg Config, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{link: newLink(cfg.URL, cfg.Secret, log.With("component", "websocket"))}
}

// Init connects to the WebSocket server. On failure the error is returned
// and reconnection continues in the background until Close.
func (p *Publisher) Init() error {
	return p.link.open()
}

// Close disconnects from the WebSocket server.
func (p *Publisher) Close() error {
	return p.link.close()
}

// Connected reports whether the socket is currently up.
func (p *Publisher) Connected() bool {
	return p.link.connected()
}

// Dropped returns how many messages were discarded because the send buffer
// was full or the connection was closed.
func (p *Publisher) Dropped() uint64 {
	return p.link.dropped.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (p *Publisher) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	p.link.send(data)
	return nil
}

// StartSession announces the simulation and waits for the server ack. The
// message is replayed on every reconnect.
func (p *Publisher) StartSession(s streaming.StartSessionPayload) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, s)
	if err != nil {
		return err
	}

	p.link.setSession(data)
	return p.link.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for server ack.
func (p *Publisher) EndSession() error {
	data, err := marshalEnvelope(streaming.TypeEndSession, nil)
	if err != nil {
		return err
	}
	err = p.link.sendAndWait(data, streaming.TypeEndSession, ackTimeout)

	p.link.setSession(nil)
	return err
}

// PublishSnapshots sends the per-tick vehicle snapshots.
func (p *Publisher) PublishSnapshots(tick uint64, simTime float64, snaps []core.VehicleSnapshot) error {
	return p.sendEnvelope(streaming.TypeSnapshot, streaming.SnapshotPayload{
		Tick:      tick,
		SimTime:   simTime,
		Snapshots: snaps,
	})
}

// PublishTransitions sends region enter and exit events, one envelope each.
func (p *Publisher) PublishTransitions(ts []core.RegionTransition) error {
	for _, tr := range ts {
		if err := p.sendEnvelope(streaming.TypeTransition, tr); err != nil {
			return err
		}
	}
	return nil
}

// PublishPath announces a newly stored path.
func (p *Publisher) PublishPath(info core.PathInfo) error {
	return p.sendEnvelope(streaming.TypePathSaved, info)
}
