// Package handlers turns dispatcher events into simulation commands. Each
// command is parsed on the caller's goroutine and queued; the simulation
// applies it at the start of its next tick.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rigtwin/twin/internal/actuation"
	"github.com/rigtwin/twin/internal/dispatcher"
	"github.com/rigtwin/twin/internal/geo"
	"github.com/rigtwin/twin/internal/queue"
	"github.com/rigtwin/twin/internal/recorder"
	"github.com/rigtwin/twin/internal/sensor"
	"github.com/rigtwin/twin/internal/util"
	"github.com/rigtwin/twin/pkg/core"
)

// Command names.
const (
	CmdRecordStart    = ":RECORD:START:"
	CmdRecordStop     = ":RECORD:STOP:"
	CmdReplayStart    = ":REPLAY:START:"
	CmdReplayStop     = ":REPLAY:STOP:"
	CmdPosition       = ":VEHICLE:POSITION:"
	CmdTractorAngle   = ":VEHICLE:TRACTOR:ANGLE:"
	CmdTrailerAngle   = ":VEHICLE:TRAILER:ANGLE:"
	CmdSource         = ":VEHICLE:SOURCE:"
	CmdActuation      = ":INPUT:ACTUATION:"
	CmdPose           = ":INPUT:POSE:"
	CmdKeys           = ":INPUT:KEYS:"
	CmdStrategy       = ":STRATEGY:SET:"
	CmdObstacleAdd    = ":OBSTACLE:ADD:"
	CmdObstaclePoly   = ":OBSTACLE:POLYGON:"
	CmdObstacleMove   = ":OBSTACLE:MOVE:"
	CmdObstacleRemove = ":OBSTACLE:REMOVE:"
	CmdPathsList      = ":PATHS:LIST:"
	CmdPathsDelete    = ":PATHS:DELETE:"
)

// ErrArguments marks a command with missing or malformed arguments.
var ErrArguments = errors.New("invalid command arguments")

// Target is the simulation as seen from inside a tick.
type Target interface {
	StartRecording(vehicleID, name string) error
	StopRecording(vehicleID string) error
	StartReplay(vehicleID, pathID string, mode recorder.Mode) error
	StopReplay(vehicleID string) error
	SetPosition(vehicleID string, x, y, psi1Deg, psi2Deg float64) error
	SetTractorAngle(vehicleID string, delta, rate float64) error
	SetTrailerAngle(vehicleID string, delta, rate float64) error
	SetSource(vehicleID, source string) error
	SetActuation(vehicleID string, velocity, steer float64) error
	SetRawPose(vehicleID string, tractor, trailer core.CapturePose) error
	SetKeys(vehicleID string, keys actuation.Keys) error
	SetStrategy(vehicleID, name string) error
	PutObstacle(b sensor.Body) error
	MoveObstacle(id string, to core.Point) error
	RemoveObstacle(id string) error
}

// Command is one queued operation.
type Command struct {
	Name  string
	Apply func(Target) error
}

// PathCatalog answers path queries without going through the tick.
type PathCatalog interface {
	ListPaths() ([]core.PathInfo, error)
	DeletePath(id string) error
}

// Service parses events into commands.
type Service struct {
	commands *queue.Queue[Command]
	paths    PathCatalog
	log      *slog.Logger
}

// NewService returns a service pushing into commands. paths may be nil, in
// which case the catalogue commands fail.
func NewService(commands *queue.Queue[Command], paths PathCatalog, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{commands: commands, paths: paths, log: log}
}

// Register binds every command to d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	queued := map[string]func([]string) (Command, error){
		CmdRecordStart:    s.recordStart,
		CmdRecordStop:     vehicleOnly(CmdRecordStop, Target.StopRecording),
		CmdReplayStart:    s.replayStart,
		CmdReplayStop:     vehicleOnly(CmdReplayStop, Target.StopReplay),
		CmdPosition:       s.position,
		CmdTractorAngle:   s.slew(CmdTractorAngle, Target.SetTractorAngle),
		CmdTrailerAngle:   s.slew(CmdTrailerAngle, Target.SetTrailerAngle),
		CmdSource:         vehicleAndName(CmdSource, Target.SetSource),
		CmdActuation:      s.actuation,
		CmdPose:           s.pose,
		CmdKeys:           s.keys,
		CmdStrategy:       vehicleAndName(CmdStrategy, Target.SetStrategy),
		CmdObstacleAdd:    s.obstacleAdd,
		CmdObstaclePoly:   s.obstaclePolygon,
		CmdObstacleMove:   s.obstacleMove,
		CmdObstacleRemove: s.obstacleRemove,
	}
	for name, parse := range queued {
		opts := []dispatcher.Option{dispatcher.Logged()}
		// feed commands arrive every frame, keep them out of the debug log
		if name == CmdActuation || name == CmdPose {
			opts = nil
		}
		d.Register(name, s.enqueue(parse), opts...)
	}
	d.Register(CmdPathsList, s.listPaths, dispatcher.Logged())
	d.Register(CmdPathsDelete, s.deletePath, dispatcher.Logged())
}

func (s *Service) enqueue(parse func([]string) (Command, error)) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		cmd, err := parse(e.Args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Command, err)
		}
		if n := s.commands.Push(cmd); n > 0 {
			s.log.Warn("Command queue full, discarded oldest", "command", e.Command, "discarded", n)
		}
		return dispatcher.Queued, nil
	}
}

func argError(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrArguments, fmt.Sprintf(format, a...))
}

func requireArgs(args []string, min, max int, usage string) error {
	if len(args) < min || len(args) > max {
		return argError("usage: %s", usage)
	}
	return nil
}

func vehicleOnly(name string, op func(Target, string) error) func([]string) (Command, error) {
	return func(args []string) (Command, error) {
		if err := requireArgs(args, 1, 1, "vehicle"); err != nil {
			return Command{}, err
		}
		id := util.TrimQuotes(args[0])
		return Command{Name: name, Apply: func(t Target) error { return op(t, id) }}, nil
	}
}

func vehicleAndName(name string, op func(Target, string, string) error) func([]string) (Command, error) {
	return func(args []string) (Command, error) {
		if err := requireArgs(args, 2, 2, "vehicle name"); err != nil {
			return Command{}, err
		}
		id, value := util.TrimQuotes(args[0]), strings.ToLower(util.TrimQuotes(args[1]))
		return Command{Name: name, Apply: func(t Target) error { return op(t, id, value) }}, nil
	}
}

func (s *Service) recordStart(args []string) (Command, error) {
	if err := requireArgs(args, 1, 2, "vehicle [name]"); err != nil {
		return Command{}, err
	}
	id, pathName := util.TrimQuotes(args[0]), ""
	if len(args) == 2 {
		pathName = util.TrimQuotes(args[1])
	}
	return Command{Name: CmdRecordStart, Apply: func(t Target) error {
		return t.StartRecording(id, pathName)
	}}, nil
}

func (s *Service) replayStart(args []string) (Command, error) {
	if err := requireArgs(args, 2, 3, "vehicle pathID [drive|pose]"); err != nil {
		return Command{}, err
	}
	mode := recorder.ModeDrive
	if len(args) == 3 {
		m, err := recorder.ParseMode(strings.ToLower(args[2]))
		if err != nil {
			return Command{}, argError("%v", err)
		}
		mode = m
	}
	id, pathID := util.TrimQuotes(args[0]), util.TrimQuotes(args[1])
	return Command{Name: CmdReplayStart, Apply: func(t Target) error {
		return t.StartReplay(id, pathID, mode)
	}}, nil
}

func (s *Service) position(args []string) (Command, error) {
	if len(args) != 5 {
		return Command{}, argError("usage: vehicle x y psi1Deg psi2Deg")
	}
	v, err := util.ParseFloats(args[1:], "x", "y", "psi1", "psi2")
	if err != nil {
		return Command{}, argError("%v", err)
	}
	id := util.TrimQuotes(args[0])
	return Command{Name: CmdPosition, Apply: func(t Target) error {
		return t.SetPosition(id, v[0], v[1], v[2], v[3])
	}}, nil
}

func (s *Service) slew(name string, op func(Target, string, float64, float64) error) func([]string) (Command, error) {
	return func(args []string) (Command, error) {
		if len(args) != 3 {
			return Command{}, argError("usage: vehicle deltaDeg rateDegPerSec")
		}
		v, err := util.ParseFloats(args[1:], "delta", "rate")
		if err != nil {
			return Command{}, argError("%v", err)
		}
		id := util.TrimQuotes(args[0])
		return Command{Name: name, Apply: func(t Target) error { return op(t, id, v[0], v[1]) }}, nil
	}
}

func (s *Service) actuation(args []string) (Command, error) {
	if len(args) != 3 {
		return Command{}, argError("usage: vehicle velocity steerRad")
	}
	v, err := util.ParseFloats(args[1:], "velocity", "steer")
	if err != nil {
		return Command{}, argError("%v", err)
	}
	id := util.TrimQuotes(args[0])
	return Command{Name: CmdActuation, Apply: func(t Target) error {
		return t.SetActuation(id, v[0], v[1])
	}}, nil
}

func (s *Service) pose(args []string) (Command, error) {
	if len(args) != 9 {
		return Command{}, argError("usage: vehicle tx ty tz tyaw rx ry rz ryaw")
	}
	v, err := util.ParseFloats(args[1:], "tx", "ty", "tz", "tyaw", "rx", "ry", "rz", "ryaw")
	if err != nil {
		return Command{}, argError("%v", err)
	}
	tractor := core.CapturePose{Position: core.Position3D{X: v[0], Y: v[1], Z: v[2]}, Yaw: v[3]}
	trailer := core.CapturePose{Position: core.Position3D{X: v[4], Y: v[5], Z: v[6]}, Yaw: v[7]}
	id := util.TrimQuotes(args[0])
	return Command{Name: CmdPose, Apply: func(t Target) error {
		return t.SetRawPose(id, tractor, trailer)
	}}, nil
}

func (s *Service) keys(args []string) (Command, error) {
	if err := requireArgs(args, 1, 2, "vehicle [keys]"); err != nil {
		return Command{}, err
	}
	held := ""
	if len(args) == 2 {
		held = util.TrimQuotes(args[1])
	}
	keys, err := actuation.ParseKeys(held)
	if err != nil {
		return Command{}, argError("%v", err)
	}
	id := util.TrimQuotes(args[0])
	return Command{Name: CmdKeys, Apply: func(t Target) error { return t.SetKeys(id, keys) }}, nil
}

func (s *Service) obstacleAdd(args []string) (Command, error) {
	if len(args) != 5 {
		return Command{}, argError("usage: id name x y radius")
	}
	v, err := util.ParseFloats(args[2:], "x", "y", "radius")
	if err != nil {
		return Command{}, argError("%v", err)
	}
	if v[2] <= 0 {
		return Command{}, argError("radius must be positive, got %v", v[2])
	}
	b := sensor.Body{
		ID:     util.TrimQuotes(args[0]),
		Name:   util.TrimQuotes(args[1]),
		Center: core.Point{X: v[0], Y: v[1]},
		Radius: v[2],
	}
	return Command{Name: CmdObstacleAdd, Apply: func(t Target) error { return t.PutObstacle(b) }}, nil
}

func (s *Service) obstaclePolygon(args []string) (Command, error) {
	if len(args) != 3 {
		return Command{}, argError("usage: id name [[x,y],...]")
	}
	verts, err := geo.ParsePolygon(util.TrimQuotes(args[2]))
	if err != nil {
		return Command{}, argError("%v", err)
	}
	if _, ok := geo.RegionCentroid(core.Region{Name: args[0], Vertices: verts}); !ok {
		return Command{}, argError("polygon for %s has no area", args[0])
	}
	b := sensor.Body{
		ID:      util.TrimQuotes(args[0]),
		Name:    util.TrimQuotes(args[1]),
		Polygon: verts,
	}
	return Command{Name: CmdObstaclePoly, Apply: func(t Target) error { return t.PutObstacle(b) }}, nil
}

func (s *Service) obstacleMove(args []string) (Command, error) {
	if len(args) != 3 {
		return Command{}, argError("usage: id x y")
	}
	v, err := util.ParseFloats(args[1:], "x", "y")
	if err != nil {
		return Command{}, argError("%v", err)
	}
	id, to := util.TrimQuotes(args[0]), core.Point{X: v[0], Y: v[1]}
	return Command{Name: CmdObstacleMove, Apply: func(t Target) error { return t.MoveObstacle(id, to) }}, nil
}

func (s *Service) obstacleRemove(args []string) (Command, error) {
	if err := requireArgs(args, 1, 1, "id"); err != nil {
		return Command{}, err
	}
	id := util.TrimQuotes(args[0])
	return Command{Name: CmdObstacleRemove, Apply: func(t Target) error { return t.RemoveObstacle(id) }}, nil
}

// listPaths answers directly from the catalogue, optionally filtered by
// vehicle.
func (s *Service) listPaths(e dispatcher.Event) (any, error) {
	if s.paths == nil {
		return nil, fmt.Errorf("%w: no path storage configured", core.ErrConfiguration)
	}
	if err := requireArgs(e.Args, 0, 1, "[vehicle]"); err != nil {
		return nil, err
	}
	infos, err := s.paths.ListPaths()
	if err != nil {
		return nil, err
	}
	if len(e.Args) == 0 {
		return infos, nil
	}
	vehicleID := util.TrimQuotes(e.Args[0])
	filtered := make([]core.PathInfo, 0, len(infos))
	for _, info := range infos {
		if info.VehicleID == vehicleID {
			filtered = append(filtered, info)
		}
	}
	return filtered, nil
}

func (s *Service) deletePath(e dispatcher.Event) (any, error) {
	if s.paths == nil {
		return nil, fmt.Errorf("%w: no path storage configured", core.ErrConfiguration)
	}
	if err := requireArgs(e.Args, 1, 1, "pathID"); err != nil {
		return nil, err
	}
	id := util.TrimQuotes(e.Args[0])
	if err := s.paths.DeletePath(id); err != nil {
		return nil, err
	}
	s.log.Info("Path deleted", "path", id)
	return "deleted", nil
}
