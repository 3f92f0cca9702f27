// Package influx writes per-tick vehicle telemetry to InfluxDB, falling back
// to a gzip line-protocol backup file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rigtwin/twin/internal/config"
	"github.com/rigtwin/twin/pkg/core"
	"github.com/rs/zerolog"
)

// Measurement names.
const (
	MeasurementVehicle    = "vehicle_state"
	MeasurementTransition = "region_transition"
	MeasurementPath       = "path_saved"
)

// retention for the telemetry bucket
const retentionSeconds = 60 * 60 * 24 * 30

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger
	BackupPath   string

	cfg        config.InfluxConfig
	backupFile *os.File
	mu         sync.Mutex
	now        func() time.Time
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		IsValid:    false,
		Logger:     log,
		BackupPath: backupPath,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Connect establishes a connection to InfluxDB. When the server does not
// answer, points go to the backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return errors.New("influx.enabled is false")
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.cfg.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)

	if err != nil || !running {
		m.IsValid = false
		if m.BackupWriter == nil {
			m.Logger.Info().Str("backupPath", m.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %v", err)
			}
			m.backupFile = file
			m.BackupWriter = gzip.NewWriter(file)
		}
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgName := m.cfg.Org

	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)

	errorsCh := m.Writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
	}
	return nil
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return nil
	}
	err := m.BackupWriter.Close()
	if cerr := m.backupFile.Close(); err == nil {
		err = cerr
	}
	m.BackupWriter = nil
	return err
}

// PublishSnapshots writes one vehicle_state point per snapshot.
func (m *Manager) PublishSnapshots(tick uint64, simTime float64, snaps []core.VehicleSnapshot) error {
	ts := m.now()
	for _, s := range snaps {
		if err := m.WritePoint(SnapshotPoint(s, ts)); err != nil {
			return err
		}
	}
	return nil
}

// PublishTransitions writes one point per region transition.
func (m *Manager) PublishTransitions(ts []core.RegionTransition) error {
	now := m.now()
	for _, tr := range ts {
		if err := m.WritePoint(TransitionPoint(tr, now)); err != nil {
			return err
		}
	}
	return nil
}

// PublishPath records that a path was stored.
func (m *Manager) PublishPath(info core.PathInfo) error {
	return m.WritePoint(PathPoint(info, m.now()))
}

// SnapshotPoint converts a vehicle snapshot into a point.
func SnapshotPoint(s core.VehicleSnapshot, ts time.Time) *influxdb2_write.Point {
	st := s.State
	return influxdb2.NewPoint(
		MeasurementVehicle,
		map[string]string{
			"vehicle":  s.VehicleID,
			"strategy": s.Strategy,
			"source":   s.Source,
		},
		map[string]interface{}{
			"tick":      int64(s.Tick),
			"simTime":   s.SimTime,
			"x1":        st.X1,
			"y1":        st.Y1,
			"psi1":      st.Psi1,
			"psi2":      st.Psi2,
			"gamma":     st.Gamma,
			"v1":        st.V1,
			"v2":        st.V2,
			"delta":     st.Delta,
			"braking":   s.Braking,
			"recording": s.Recording,
			"replaying": s.Replaying,
			"obstacles": len(s.Obstacles),
		},
		ts,
	)
}

// TransitionPoint converts a region transition into a point.
func TransitionPoint(tr core.RegionTransition, ts time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(
		MeasurementTransition,
		map[string]string{"vehicle": tr.VehicleID, "region": tr.Region},
		map[string]interface{}{"entered": tr.Entered},
		ts,
	)
}

// PathPoint converts a stored path's catalogue entry into a point.
func PathPoint(info core.PathInfo, ts time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(
		MeasurementPath,
		map[string]string{"vehicle": info.VehicleID},
		map[string]interface{}{
			"id":      info.ID,
			"samples": info.Samples,
			"maxTime": info.MaxTime,
		},
		ts,
	)
}
