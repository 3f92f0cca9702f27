// Package sim runs the fixed-timestep simulation loop. One goroutine owns
// every vehicle; other goroutines talk to it through the command queue and
// read published snapshot copies.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rigtwin/twin/internal/handlers"
	"github.com/rigtwin/twin/internal/publish"
	"github.com/rigtwin/twin/internal/queue"
	"github.com/rigtwin/twin/internal/recorder"
	"github.com/rigtwin/twin/internal/region"
	"github.com/rigtwin/twin/internal/registry"
	"github.com/rigtwin/twin/internal/sensor"
	"github.com/rigtwin/twin/internal/vehicle"
	"github.com/rigtwin/twin/pkg/core"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// DefaultCommandLimit bounds the command queue between two ticks.
const DefaultCommandLimit = 4096

// Config describes the simulated world.
type Config struct {
	TickRate       float64 // Hz
	SampleInterval float64 // recorder period, seconds
	PublishEvery   int     // publish snapshots every N ticks
	CommandLimit   int

	Sensor    sensor.Config
	Regions   []core.Region
	Obstacles []sensor.Body
	Vehicles  []vehicle.Config
}

// PathStore persists finished recordings and serves replays.
type PathStore interface {
	SavePath(p *core.ReferencePath) error
	LoadPath(id string) (*core.ReferencePath, error)
}

// Dependencies are the collaborators of a Sim. All are optional.
type Dependencies struct {
	Paths     PathStore
	Publisher publish.Publisher
	Meter     metric.Meter
	Logger    *slog.Logger
	Clock     func() time.Time
}

// unit is one vehicle with its sensor and recorder deck.
type unit struct {
	v      *vehicle.Vehicle
	deck   *recorder.Deck
	sensor *sensor.Sensor
}

// Sim owns the simulation state.
type Sim struct {
	cfg  Config
	deps Dependencies
	log  *slog.Logger
	dt   float64

	reg      *registry.Registry
	tracker  *region.Tracker
	units    map[string]*unit
	commands *queue.Queue[handlers.Command]

	tick    atomic.Uint64
	simTime atomic.Uint64 // float64 bits

	mu        sync.RWMutex
	snapshots map[string]core.VehicleSnapshot
	order     []string

	metrics metrics
}

// New validates cfg and builds the world at its start state.
func New(cfg Config, deps Dependencies) (*Sim, error) {
	if cfg.TickRate <= 0 || math.IsNaN(cfg.TickRate) || math.IsInf(cfg.TickRate, 0) {
		return nil, fmt.Errorf("%w: tick rate must be positive, got %v", core.ErrConfiguration, cfg.TickRate)
	}
	if cfg.PublishEvery <= 0 {
		cfg.PublishEvery = 1
	}
	if cfg.CommandLimit <= 0 {
		cfg.CommandLimit = DefaultCommandLimit
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Meter == nil {
		deps.Meter = noop.Meter{}
	}

	tracker, err := region.NewTracker(cfg.Regions)
	if err != nil {
		return nil, err
	}

	s := &Sim{
		cfg:       cfg,
		deps:      deps,
		log:       deps.Logger.With("component", "sim"),
		dt:        1 / cfg.TickRate,
		reg:       registry.New(),
		tracker:   tracker,
		units:     make(map[string]*unit, len(cfg.Vehicles)),
		commands:  queue.NewBounded[handlers.Command](cfg.CommandLimit),
		snapshots: make(map[string]core.VehicleSnapshot, len(cfg.Vehicles)),
	}
	if s.metrics, err = newMetrics(deps.Meter, s); err != nil {
		return nil, err
	}

	for _, vc := range cfg.Vehicles {
		if err := s.addVehicle(vc); err != nil {
			return nil, err
		}
	}
	for _, b := range cfg.Obstacles {
		if err := s.reg.PutObstacle(b); err != nil {
			return nil, err
		}
	}

	s.publishState(false)
	return s, nil
}

func (s *Sim) addVehicle(cfg vehicle.Config) error {
	v, err := vehicle.New(cfg)
	if err != nil {
		return err
	}
	sn, err := sensor.New(s.cfg.Sensor)
	if err != nil {
		return err
	}
	if err := s.reg.AddVehicle(v); err != nil {
		return err
	}
	s.units[v.ID()] = &unit{
		v:      v,
		deck:   recorder.NewDeck(s.log.With("vehicle", v.ID()), s.cfg.SampleInterval),
		sensor: sn,
	}
	return nil
}

// Dt returns the tick duration in seconds.
func (s *Sim) Dt() float64 { return s.dt }

// Tick returns the number of completed ticks.
func (s *Sim) Tick() uint64 { return s.tick.Load() }

// SimTime returns the simulation time in seconds.
func (s *Sim) SimTime() float64 { return math.Float64frombits(s.simTime.Load()) }

// Commands is the queue drained at the start of every tick.
func (s *Sim) Commands() *queue.Queue[handlers.Command] { return s.commands }

// Regions returns the configured regions.
func (s *Sim) Regions() []core.Region { return s.tracker.Regions() }

// VehicleIDs returns the vehicle ids in configuration order.
func (s *Sim) VehicleIDs() []string {
	ids := make([]string, 0, len(s.units))
	for _, v := range s.reg.Vehicles() {
		ids = append(ids, v.ID())
	}
	return ids
}

// LogAttrs returns the tick and simulation time for log records.
func (s *Sim) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Uint64("tick", s.Tick()),
		slog.Float64("simTime", s.SimTime()),
	}
}

// Run steps the simulation at the configured rate until ctx is cancelled.
// In-flight recordings are stopped and saved on the way out.
func (s *Sim) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(float64(time.Second) * s.dt))
	defer ticker.Stop()

	s.log.Info("Simulation started", "tickRate", s.cfg.TickRate, "vehicles", len(s.units))
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			s.log.Info("Simulation stopped", "tick", s.Tick())
			return nil
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step runs exactly one tick. It must only be called from the goroutine
// that owns the simulation.
func (s *Sim) Step() {
	start := time.Now()
	ctx := context.Background()
	simTime := s.SimTime()

	s.drainCommands(ctx)

	for _, v := range s.reg.Vehicles() {
		u := s.units[v.ID()]
		if u.deck.Preview.Active() {
			continue
		}
		in := v.Input(nil, s.dt)
		u.deck.Recorder.Sample(simTime, in)
		v.Apply(in, s.dt)
	}

	bodies := s.reg.Bodies()
	occupants := make([]region.Occupant, 0, len(s.units))
	for _, v := range s.reg.Vehicles() {
		u := s.units[v.ID()]
		v.SetBraking(u.sensor.Update(v, bodies))
		occupants = append(occupants, v)
	}

	transitions := s.tracker.Update(occupants)

	for _, v := range s.reg.Vehicles() {
		u := s.units[v.ID()]
		u.deck.Replayer.Advance()
		u.deck.Preview.Advance(s.dt)
	}

	tick := s.tick.Add(1)
	s.simTime.Store(math.Float64bits(float64(tick) * s.dt))

	for _, tr := range transitions {
		s.log.Info("Region transition", "vehicle", tr.VehicleID, "region", tr.Region, "entered", tr.Entered)
	}
	if len(transitions) > 0 && s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishTransitions(transitions); err != nil {
			s.log.Error("Failed to publish transitions", "error", err)
		}
	}
	s.publishState(tick%uint64(s.cfg.PublishEvery) == 0)

	s.metrics.ticks.Add(ctx, 1)
	s.metrics.tickDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000)
}

func (s *Sim) drainCommands(ctx context.Context) {
	exec := executor{s}
	for _, cmd := range s.commands.Drain() {
		if err := cmd.Apply(exec); err != nil {
			s.log.Warn("Command failed", "command", cmd.Name, "error", err)
			s.metrics.commandsFailed.Add(ctx, 1, metric.WithAttributes(commandAttr(cmd.Name)))
			continue
		}
		s.metrics.commands.Add(ctx, 1, metric.WithAttributes(commandAttr(cmd.Name)))
	}
}

// publishState refreshes the snapshot copies read by the query API and, when
// send is set, hands them to the publisher.
func (s *Sim) publishState(send bool) {
	tick, simTime := s.Tick(), s.SimTime()
	vehicles := s.reg.Vehicles()
	snaps := make([]core.VehicleSnapshot, 0, len(vehicles))
	for _, v := range vehicles {
		u := s.units[v.ID()]
		snap := v.Snapshot()
		snap.Tick = tick
		snap.SimTime = simTime
		snap.Recording = u.deck.Recording()
		snap.Replaying = u.deck.Replaying()
		snap.Obstacles = u.sensor.Records()
		snap.Regions = s.tracker.In(v.ID())
		snaps = append(snaps, snap)
	}

	s.mu.Lock()
	s.order = s.order[:0]
	for _, snap := range snaps {
		s.snapshots[snap.VehicleID] = snap
		s.order = append(s.order, snap.VehicleID)
	}
	s.mu.Unlock()

	if send && s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishSnapshots(tick, simTime, snaps); err != nil {
			s.log.Error("Failed to publish snapshots", "error", err)
		}
	}
}

// shutdown stops playback and saves in-flight recordings.
func (s *Sim) shutdown() {
	s.drainCommands(context.Background())
	exec := executor{s}
	for id, u := range s.units {
		u.deck.StopReplay()
		if u.deck.Recording() {
			if err := exec.StopRecording(id); err != nil {
				s.log.Error("Failed to save recording on shutdown", "vehicle", id, "error", err)
			}
		}
	}
	s.publishState(false)
}
