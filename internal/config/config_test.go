package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rigtwin/twin/internal/sensor"
	"github.com/rigtwin/twin/pkg/core"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./rigtwinlogs", viper.GetString("logsDir"))
	assert.Equal(t, 50.0, viper.GetFloat64("sim.tickRate"))
	assert.Equal(t, 0.1, viper.GetFloat64("sim.sampleInterval"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "rigtwin", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./paths", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, "1m", viper.GetString("storage.sqlite.dumpInterval"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "rigtwin", viper.GetString("otel.serviceName"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetSimConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"sim": {
			"tickRate": 20,
			"vehicles": [{
				"id": "rig1",
				"name": "Rig One",
				"scale": 0.1,
				"geometry": { "l1": 4, "l1c": 0.5, "l2": 10, "tractorWidth": 2.5, "trailerWidth": 2.5 },
				"start": { "x1": 1, "y1": 2, "psi1": 0.5, "psi2": 0.25 },
				"strategy": "keyboard",
				"source": "mocap",
				"keyboard": { "forwardSpeed": 3 }
			}]
		}
	}`)))

	sc, err := GetSimConfig()
	require.NoError(t, err)
	assert.Equal(t, 20.0, sc.TickRate)
	assert.InDelta(t, 0.05, sc.Dt(), 1e-12)
	assert.Equal(t, 0.1, sc.SampleInterval)
	require.Len(t, sc.Vehicles, 1)

	v := sc.Vehicles[0]
	assert.Equal(t, "rig1", v.ID)
	assert.Equal(t, "Rig One", v.Name)
	assert.Equal(t, 0.1, v.Scale)
	assert.Equal(t, core.RawGeometry{L1: 4, L1C: 0.5, L2: 10, TractorWidth: 2.5, TrailerWidth: 2.5}, v.Geometry)
	assert.Equal(t, core.RigPose{X1: 1, Y1: 2, Psi1: 0.5, Psi2: 0.25}, v.Start)
	assert.Equal(t, "keyboard", v.Strategy)
	assert.Equal(t, "mocap", v.Source)
	assert.Equal(t, 3.0, v.Keyboard.ForwardSpeed)
}

func TestGetSimConfig_BadTickRate(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{"sim": {"tickRate": 0}}`)))

	_, err := GetSimConfig()
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestGetSensorConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{"sensor": {"model": "sweep", "rays": 90}}`)))

	sc := GetSensorConfig()
	assert.Equal(t, sensor.ModelSweep, sc.Model)
	assert.Equal(t, 90, sc.Rays)
	assert.Equal(t, sensor.DefaultConfig.Range, sc.Range)
	assert.Equal(t, sensor.DefaultConfig.BrakingThreshold, sc.BrakingThreshold)
}

func TestGetRegions(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"regions": [
			{ "name": "dock", "vertices": [{"x": 0, "y": 0}, {"x": 10, "y": 0}, {"x": 10, "y": 10}, {"x": 0, "y": 10}] },
			{ "name": "yard", "wgs84": "[[0,0],[0.001,0],[0.001,0.001],[0,0.001]]" }
		]
	}`)))

	regions, err := GetRegions()
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, "dock", regions[0].Name)
	assert.Equal(t, core.Point{X: 10, Y: 10}, regions[0].Vertices[2])

	assert.Equal(t, "yard", regions[1].Name)
	require.Len(t, regions[1].Vertices, 4)
	// 0.001 degrees of longitude at the equator is about 111 m
	assert.InDelta(t, 111.3, regions[1].Vertices[1].X, 0.5)
}

func TestGetRegions_Invalid(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"regions": [{ "name": "line", "vertices": [{"x": 0, "y": 0}, {"x": 1, "y": 0}] }]
	}`)))

	_, err := GetRegions()
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestGetObstacles(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"obstacles": [
			{ "id": "cone", "name": "Cone", "center": {"x": 3, "y": 4}, "radius": 0.5 },
			{ "id": "wall", "polygon": [{"x": 0, "y": 0}, {"x": 1, "y": 0}, {"x": 1, "y": 1}] }
		]
	}`)))

	bodies, err := GetObstacles()
	require.NoError(t, err)
	require.Len(t, bodies, 2)
	assert.True(t, bodies[0].IsCircle())
	assert.Equal(t, core.Point{X: 3, Y: 4}, bodies[0].Center)
	assert.False(t, bodies[1].IsCircle())
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./paths", cfg.Memory.OutputDir)
	assert.Equal(t, false, cfg.Memory.CompressOutput)
	assert.Equal(t, "json", cfg.Memory.Format)
	assert.Equal(t, time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, 32, cfg.CacheSize)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compression": "zstd", "format": "msgpack" },
			"sqlite": { "dumpInterval": "10m" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, "zstd", sc.Memory.Compression)
	assert.Equal(t, "msgpack", sc.Memory.Format)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "./paths.db", sc.SQLite.DumpPath)
}

func TestGetDBConfig_DSN(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{"db": {"host": "db", "password": "pw"}}`)))

	assert.Equal(t,
		"host=db port=5432 user=postgres password=pw dbname=rigtwin sslmode=disable",
		GetDBConfig().DSN())
}

func TestGetInfluxConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{"influx": {"enabled": true, "protocol": "https"}}`)))

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "https://localhost:8086", ic.URL())
	assert.Equal(t, "telemetry", ic.Bucket)
}

func TestGetPublishConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{"publish": {"websocket": {"enabled": true, "secret": "s"}}}`)))

	pc := GetPublishConfig()
	assert.Equal(t, 5, pc.Every)
	assert.True(t, pc.Websocket.Enabled)
	assert.Equal(t, "s", pc.Websocket.Secret)
	assert.Equal(t, "ws://localhost:5000/api/v1/twin/ws", pc.Websocket.URL)
}

func TestGetArchiveConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{"archive": {"secret": "k"}}`)))

	ac := GetArchiveConfig()
	assert.Equal(t, "http://localhost:5000", ac.URL)
	assert.Equal(t, "k", ac.Secret)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}
