// Package monitor periodically writes the running simulation's status to a
// JSON file next to the logs.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rigtwin/twin/pkg/core"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// StatusFile is the name of the file written into Dependencies.Dir.
const StatusFile = "status.json"

// DefaultInterval is used when Dependencies.Interval is zero.
const DefaultInterval = time.Second

// Source is the simulation being watched.
type Source interface {
	Tick() uint64
	SimTime() float64
	Snapshots() []core.VehicleSnapshot
}

// Gauge reports one backlog figure, such as a queue length.
type Gauge func() int64

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source   Source
	Gauges   map[string]Gauge
	Dir      string
	Interval time.Duration
	Logger   *slog.Logger
	Clock    func() time.Time

	// HostStats adds machine load to every report.
	HostStats bool
}

// VehicleStatus is the per-vehicle part of a Status.
type VehicleStatus struct {
	ID        string   `json:"id"`
	X1        float64  `json:"x1"`
	Y1        float64  `json:"y1"`
	Psi1      float64  `json:"psi1"`
	Psi2      float64  `json:"psi2"`
	Velocity  float64  `json:"velocity"`
	Braking   bool     `json:"braking"`
	Strategy  string   `json:"strategy"`
	Source    string   `json:"source"`
	Recording bool     `json:"recording"`
	Replaying bool     `json:"replaying"`
	Obstacles int      `json:"obstacles"`
	Regions   []string `json:"regions"`
}

// HostStatus is the machine load at report time.
type HostStatus struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	MemoryUsedMB  uint64  `json:"memoryUsedMB"`
}

// Status is one report.
type Status struct {
	Time     time.Time        `json:"time"`
	Tick     uint64           `json:"tick"`
	SimTime  float64          `json:"simTime"`
	Vehicles []VehicleStatus  `json:"vehicles"`
	Backlog  map[string]int64 `json:"backlog"`
	Host     *HostStatus      `json:"host,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Path returns the status file location.
func (s *Service) Path() string {
	return filepath.Join(s.deps.Dir, StatusFile)
}

// GetStatus collects the current status.
func (s *Service) GetStatus() Status {
	st := Status{
		Time:     s.deps.Clock().UTC(),
		Tick:     s.deps.Source.Tick(),
		SimTime:  s.deps.Source.SimTime(),
		Vehicles: []VehicleStatus{},
		Backlog:  make(map[string]int64, len(s.deps.Gauges)),
	}
	for _, snap := range s.deps.Source.Snapshots() {
		st.Vehicles = append(st.Vehicles, VehicleStatus{
			ID:        snap.VehicleID,
			X1:        snap.State.X1,
			Y1:        snap.State.Y1,
			Psi1:      snap.State.Psi1,
			Psi2:      snap.State.Psi2,
			Velocity:  snap.State.V1,
			Braking:   snap.Braking,
			Strategy:  snap.Strategy,
			Source:    snap.Source,
			Recording: snap.Recording,
			Replaying: snap.Replaying,
			Obstacles: len(snap.Obstacles),
			Regions:   snap.Regions,
		})
	}
	names := make([]string, 0, len(s.deps.Gauges))
	for name := range s.deps.Gauges {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st.Backlog[name] = s.deps.Gauges[name]()
	}
	if s.deps.HostStats {
		host, err := hostStatus()
		if err != nil {
			s.deps.Logger.Debug("Host stats unavailable", "error", err)
		} else {
			st.Host = &host
		}
	}
	return st
}

// hostStatus reports CPU usage since the previous call and current memory use.
func hostStatus() (HostStatus, error) {
	var h HostStatus
	usage, err := cpu.Percent(0, false)
	if err != nil {
		return h, fmt.Errorf("cpu usage: %w", err)
	}
	if len(usage) > 0 {
		h.CPUPercent = usage[0]
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return h, fmt.Errorf("memory usage: %w", err)
	}
	h.MemoryPercent = vm.UsedPercent
	h.MemoryUsedMB = vm.Used / (1 << 20)
	return h, nil
}

// WriteStatus replaces the status file with the current status.
func (s *Service) WriteStatus() error {
	data, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		return fmt.Errorf("replace status: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.Source == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: monitor needs a source", core.ErrConfiguration)
	}
	if err := os.MkdirAll(s.deps.Dir, 0o755); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create status dir: %w", err)
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "path", s.Path(), "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the final status write.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	done := s.done
	s.mu.Unlock()
	<-done
}
