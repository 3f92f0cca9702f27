// Command rigtwin runs the tractor-trailer digital twin. Operator and feed
// commands are read line by line from stdin; replies are written to stdout
// as JSON.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rigtwin/twin/internal/config"
	"github.com/rigtwin/twin/internal/dispatcher"
	"github.com/rigtwin/twin/internal/handlers"
	"github.com/rigtwin/twin/internal/influx"
	"github.com/rigtwin/twin/internal/logging"
	"github.com/rigtwin/twin/internal/monitor"
	intOtel "github.com/rigtwin/twin/internal/otel"
	"github.com/rigtwin/twin/internal/publish"
	"github.com/rigtwin/twin/internal/publish/websocket"
	"github.com/rigtwin/twin/internal/sim"
	"github.com/rigtwin/twin/internal/storage"
	"github.com/rigtwin/twin/pkg/core"
	"github.com/rigtwin/twin/pkg/streaming"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Version and BuildDate can be set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

const serviceName = "rigtwin"

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	readStdin := flag.Bool("stdin", true, "read commands from stdin")
	flag.Parse()

	if err := run(*configDir, *readStdin); err != nil {
		fmt.Fprintln(os.Stderr, "rigtwin:", err)
		os.Exit(1)
	}
}

func run(configDir string, readStdin bool) error {
	sessionStart := time.Now()
	configErr := config.Load(configDir)

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	logFile := logging.OpenLogFile(logsDir, serviceName, sessionStart)
	defer logFile.Close()

	provider, err := intOtel.New(intOtel.FromSettings(config.GetOTelConfig(), logFile))
	if err != nil {
		return fmt.Errorf("initialize otel: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}()

	// the sim is built after logging; records before that carry no tick
	var current atomic.Pointer[sim.Sim]
	logOpts := logging.Options{
		Level:    config.GetString("logLevel"),
		File:     logFile,
		Provider: provider.LoggerProvider(),
		Context: func() []slog.Attr {
			if s := current.Load(); s != nil {
				return s.LogAttrs()
			}
			return nil
		},
	}
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGELFWriter(gl.Address)
		if err != nil {
			fmt.Fprintln(os.Stderr, "rigtwin:", err)
		} else {
			defer w.Close()
			logOpts.GELF = w
		}
	}
	logManager := logging.NewSlogManager()
	logManager.Setup(logOpts)
	logger := logManager.Logger()
	zlog := newZerolog(logFile, logOpts.Level)

	if configErr != nil {
		logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		logger.Info("Loaded config", "dir", configDir)
	}
	logger.Info("Starting up", "version", Version, "build", BuildDate, "logs", logFile.Filename)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := storage.NewBackend(config.GetStorageConfig(), config.GetDBConfig(), logger.With("component", "storage"))
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	simCfg, err := buildSimConfig(backend, logger)
	if err != nil {
		return err
	}

	var pubs []publish.Publisher
	var ws *websocket.Publisher
	if wsCfg := config.GetPublishConfig().Websocket; wsCfg.Enabled {
		ws = websocket.New(websocket.Config{URL: wsCfg.URL, Secret: wsCfg.Secret}, logger)
		if err := ws.Init(); err != nil {
			logger.Warn("WebSocket publisher not connected yet", "url", wsCfg.URL, "error", err)
		}
		defer ws.Close()
		pubs = append(pubs, ws)
	}
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		backup := filepath.Join(logsDir, fmt.Sprintf("influx_%s.lp.gz", sessionStart.Format("20060102_150405")))
		m := influx.NewManager(influxCfg, zlog.With().Str("component", "influx").Logger(), backup)
		if err := m.Connect(ctx); err != nil {
			logger.Error("Failed to initialize InfluxDB", "error", err)
		} else {
			defer m.Close()
			pubs = append(pubs, m)
		}
	}

	twin, err := sim.New(simCfg, sim.Dependencies{
		Paths:     backend,
		Publisher: publish.NewMulti(logger, pubs...),
		Meter:     provider.Meter("github.com/rigtwin/twin/internal/sim"),
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	current.Store(twin)

	if ws != nil {
		err := ws.StartSession(streaming.StartSessionPayload{
			StartedAt: sessionStart.UTC(),
			TickRate:  simCfg.TickRate,
			Vehicles:  twin.VehicleIDs(),
			Regions:   twin.Regions(),
		})
		if err != nil {
			logger.Warn("Streaming session not acknowledged", "error", err)
		}
		defer func() {
			if err := ws.EndSession(); err != nil {
				logger.Warn("Failed to end streaming session", "error", err)
			}
		}()
	}

	d, err := dispatcher.New(
		logging.FromZerolog(zlog.With().Str("component", "dispatcher").Logger()),
		provider.Meter("github.com/rigtwin/twin/internal/dispatcher"),
	)
	if err != nil {
		return err
	}
	defer d.Close()
	handlers.NewService(twin.Commands(), backend, logger).Register(d)

	mon := monitor.NewService(monitor.Dependencies{
		Source:    twin,
		Gauges:    gauges(twin, backend, ws),
		Dir:       logsDir,
		Logger:    logger.With("component", "monitor"),
		HostStats: true,
	})
	if err := mon.Start(); err != nil {
		logger.Error("Failed to start status monitor", "error", err)
	}
	defer mon.Stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return twin.Run(ctx) })
	if readStdin {
		eg.Go(func() error {
			return serveCommands(ctx, os.Stdin, os.Stdout, d, logger)
		})
	}
	err = eg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ferr := logManager.Flush(flushCtx); ferr != nil {
		logger.Warn("Failed to flush logs", "error", ferr)
	}
	logger.Info("Shut down", "tick", twin.Tick(), "simTime", twin.SimTime())
	return err
}

// buildSimConfig reads the world from config. Regions fall back to the ones
// persisted with the paths and are saved back when configured.
func buildSimConfig(backend storage.Backend, logger *slog.Logger) (sim.Config, error) {
	sc, err := config.GetSimConfig()
	if err != nil {
		return sim.Config{}, err
	}
	if len(sc.Vehicles) == 0 {
		return sim.Config{}, fmt.Errorf("%w: no vehicles configured", core.ErrConfiguration)
	}
	regions, err := config.GetRegions()
	if err != nil {
		return sim.Config{}, err
	}
	obstacles, err := config.GetObstacles()
	if err != nil {
		return sim.Config{}, err
	}

	if rs, ok := storage.Regions(backend); ok {
		if len(regions) == 0 {
			if regions, err = rs.LoadRegions(); err != nil {
				logger.Warn("Failed to load stored regions", "error", err)
				regions = nil
			}
		} else if err := rs.SaveRegions(regions); err != nil {
			logger.Warn("Failed to store regions", "error", err)
		}
	}

	return sim.Config{
		TickRate:       sc.TickRate,
		SampleInterval: sc.SampleInterval,
		PublishEvery:   config.GetPublishConfig().Every,
		Sensor:         config.GetSensorConfig(),
		Regions:        regions,
		Obstacles:      obstacles,
		Vehicles:       sc.Vehicles,
	}, nil
}

// gauges collects the backlog figures shown in the status file.
func gauges(twin *sim.Sim, backend storage.Backend, ws *websocket.Publisher) map[string]monitor.Gauge {
	g := map[string]monitor.Gauge{
		"commandsQueued":  func() int64 { return int64(twin.Commands().Len()) },
		"commandsDropped": func() int64 { return int64(twin.Commands().Dropped()) },
	}
	if ws != nil {
		g["websocketDropped"] = func() int64 { return int64(ws.Dropped()) }
	}
	if p, ok := storage.Unwrap(backend).(interface{ Pending() int }); ok {
		g["storagePending"] = func() int64 { return int64(p.Pending()) }
	}
	return g
}

func newZerolog(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", serviceName).Logger()
}
