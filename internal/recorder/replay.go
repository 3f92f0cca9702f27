package recorder

import (
	"fmt"
	"log/slog"

	"github.com/rigtwin/twin/internal/actuation"
	"github.com/rigtwin/twin/pkg/core"
)

// Driver is a vehicle whose strategy can be swapped and which can be
// teleported.
type Driver interface {
	ID() string
	Teleport(core.RigPose)
	Strategy() actuation.Strategy
	SetStrategy(actuation.Strategy) error
}

// Replayer re-drives a vehicle through the integrator from a path's input
// events. It is the Idle -> Replaying -> Idle state machine of one vehicle.
type Replayer struct {
	log *slog.Logger

	driver   Driver
	path     *core.ReferencePath
	replay   *actuation.Replay
	previous actuation.Strategy
}

func NewReplayer(log *slog.Logger) *Replayer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Replayer{log: log}
}

// Active reports whether a replay is in progress.
func (r *Replayer) Active() bool { return r.replay != nil }

// Path returns the path being replayed, or nil.
func (r *Replayer) Path() *core.ReferencePath { return r.path }

// Start teleports d to the first sample of p and swaps in a replay strategy.
// Nothing is mutated when the arguments are rejected.
func (r *Replayer) Start(d Driver, p *core.ReferencePath) error {
	if d == nil {
		return fmt.Errorf("%w: cannot replay on a nil vehicle", core.ErrConfiguration)
	}
	if p.Empty() {
		return fmt.Errorf("%w: path has no samples", core.ErrInvalidOperation)
	}
	if r.Active() {
		return fmt.Errorf("%w: vehicle %s is already replaying %s", core.ErrInvalidOperation, d.ID(), r.path.ID)
	}

	replay := actuation.NewReplay(p)
	previous := d.Strategy()
	if err := d.SetStrategy(replay); err != nil {
		return err
	}
	d.Teleport(p.PoseAt(0))

	r.driver, r.path, r.replay, r.previous = d, p, replay, previous
	r.log.Info("Replay started", "vehicle", d.ID(), "path", p.ID, "maxTime", p.Summary.MaxTime)
	return nil
}

// Advance is called once per tick after integration. It ends the replay and
// restores the previous strategy when replay time has reached the last
// recorded timestamp, reporting whether that happened.
func (r *Replayer) Advance() bool {
	if !r.Active() || !r.replay.Done() {
		return false
	}
	r.log.Info("Replay finished", "vehicle", r.driver.ID(), "path", r.path.ID)
	r.restore()
	return true
}

// Stop ends the replay early. Stopping an idle replayer is a no-op.
func (r *Replayer) Stop() {
	if !r.Active() {
		return
	}
	r.log.Info("Replay stopped", "vehicle", r.driver.ID(), "path", r.path.ID, "elapsed", r.replay.Elapsed())
	r.restore()
}

func (r *Replayer) restore() {
	if err := r.driver.SetStrategy(r.previous); err != nil {
		r.log.Error("Failed to restore strategy", "vehicle", r.driver.ID(), "error", err)
	}
	r.driver, r.path, r.replay, r.previous = nil, nil, nil, nil
}

// PosePlayer previews a path by assigning recorded poses directly, without
// the integrator. State is (index, elapsed), advanced once per tick.
type PosePlayer struct {
	log *slog.Logger

	target  Driver
	path    *core.ReferencePath
	index   int
	elapsed float64
}

func NewPosePlayer(log *slog.Logger) *PosePlayer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &PosePlayer{log: log}
}

// Active reports whether a preview is in progress.
func (pp *PosePlayer) Active() bool { return pp.path != nil }

// Index is the number of samples assigned so far.
func (pp *PosePlayer) Index() int { return pp.index }

// Start begins a preview of p on target and assigns every sample at t=0.
func (pp *PosePlayer) Start(target Driver, p *core.ReferencePath) error {
	if target == nil {
		return fmt.Errorf("%w: cannot preview on a nil vehicle", core.ErrConfiguration)
	}
	if p.Empty() {
		return fmt.Errorf("%w: path has no samples", core.ErrInvalidOperation)
	}
	if pp.Active() {
		return fmt.Errorf("%w: vehicle %s is already previewing %s", core.ErrInvalidOperation, target.ID(), pp.path.ID)
	}
	pp.target, pp.path, pp.index, pp.elapsed = target, p, 0, 0
	pp.assign()
	pp.log.Info("Pose preview started", "vehicle", target.ID(), "path", p.ID)
	return nil
}

// Advance moves preview time forward by dt and assigns every sample whose
// timestamp has been reached; the last one wins. It reports whether the
// preview finished.
func (pp *PosePlayer) Advance(dt float64) bool {
	if !pp.Active() {
		return false
	}
	pp.elapsed += dt
	pp.assign()
	if pp.index < pp.path.Len() {
		return false
	}
	pp.log.Info("Pose preview finished", "vehicle", pp.target.ID(), "path", pp.path.ID)
	pp.reset()
	return true
}

// Stop ends the preview, leaving the vehicle at the last assigned pose.
func (pp *PosePlayer) Stop() {
	if pp.Active() {
		pp.reset()
	}
}

func (pp *PosePlayer) assign() {
	last := -1
	for pp.index < pp.path.Len() && pp.path.Time[pp.index] <= pp.elapsed {
		last = pp.index
		pp.index++
	}
	if last >= 0 {
		pp.target.Teleport(pp.path.PoseAt(last))
	}
}

func (pp *PosePlayer) reset() {
	pp.target, pp.path, pp.index, pp.elapsed = nil, nil, 0, 0
}
