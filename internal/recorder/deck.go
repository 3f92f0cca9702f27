package recorder

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rigtwin/twin/pkg/core"
)

// Mode selects how a path is played back.
type Mode string

const (
	// ModeDrive re-drives the integrator from the recorded input events.
	ModeDrive Mode = "drive"
	// ModePose assigns recorded poses directly for preview.
	ModePose Mode = "pose"
)

// ParseMode defaults to ModeDrive for an empty string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeDrive:
		return ModeDrive, nil
	case ModePose:
		return ModePose, nil
	default:
		return "", fmt.Errorf("%w: unknown replay mode %q", core.ErrConfiguration, s)
	}
}

// Deck bundles the recorder and both players of one vehicle and keeps
// recording and playback mutually exclusive.
type Deck struct {
	Recorder *Recorder
	Replayer *Replayer
	Preview  *PosePlayer
}

// NewDeck builds an idle deck recording every sampleInterval seconds.
func NewDeck(log *slog.Logger, sampleInterval float64) *Deck {
	return &Deck{
		Recorder: NewRecorder(log, sampleInterval),
		Replayer: NewReplayer(log),
		Preview:  NewPosePlayer(log),
	}
}

// Recording reports whether the vehicle is recording.
func (d *Deck) Recording() bool { return d.Recorder.Recording() }

// Replaying reports whether either player is active.
func (d *Deck) Replaying() bool { return d.Replayer.Active() || d.Preview.Active() }

// StartRecording rejects the request while the vehicle is replaying.
func (d *Deck) StartRecording(s Subject, name string, simTime float64, now time.Time) error {
	if d.Replaying() {
		return fmt.Errorf("%w: cannot record while replaying", core.ErrInvalidOperation)
	}
	return d.Recorder.Start(s, name, simTime, now)
}

// StopRecording returns the finished path, or nil when idle.
func (d *Deck) StopRecording() *core.ReferencePath {
	return d.Recorder.Stop()
}

// StartReplay rejects the request while the vehicle is recording.
func (d *Deck) StartReplay(v Driver, p *core.ReferencePath, mode Mode) error {
	if d.Recording() {
		return fmt.Errorf("%w: cannot replay while recording", core.ErrInvalidOperation)
	}
	if d.Replaying() {
		return fmt.Errorf("%w: a replay is already running", core.ErrInvalidOperation)
	}
	if mode == ModePose {
		return d.Preview.Start(v, p)
	}
	return d.Replayer.Start(v, p)
}

// StopReplay stops whichever player is active.
func (d *Deck) StopReplay() {
	d.Replayer.Stop()
	d.Preview.Stop()
}
