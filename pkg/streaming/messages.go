package streaming

import (
	"encoding/json"
	"time"

	"github.com/rigtwin/twin/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeSnapshot     = "vehicle_snapshot"
	TypeTransition   = "region_transition"
	TypePathSaved    = "path_saved"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload announces the simulation to the server. It is replayed
// after a reconnect.
type StartSessionPayload struct {
	StartedAt time.Time     `json:"startedAt"`
	TickRate  float64       `json:"tickRate"`
	Vehicles  []string      `json:"vehicles"`
	Regions   []core.Region `json:"regions"`
}

// SnapshotPayload carries the state of every vehicle for one tick.
type SnapshotPayload struct {
	Tick      uint64                 `json:"tick"`
	SimTime   float64                `json:"simTime"`
	Snapshots []core.VehicleSnapshot `json:"snapshots"`
}
