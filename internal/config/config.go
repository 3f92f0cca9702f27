package config

import (
	"fmt"
	"time"

	"github.com/rigtwin/twin/internal/geo"
	"github.com/rigtwin/twin/internal/sensor"
	"github.com/rigtwin/twin/internal/vehicle"
	"github.com/rigtwin/twin/pkg/core"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "rigtwin.cfg.json"

// MemoryConfig holds file-backed path store settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
	Compression    string `json:"compression" mapstructure:"compression"`
	Format         string `json:"format" mapstructure:"format"`
}

// SQLiteConfig holds settings for the in-memory SQLite store
type SQLiteConfig struct {
	DumpPath     string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the path store
type StorageConfig struct {
	Type      string        `json:"type" mapstructure:"type"`
	Memory    MemoryConfig  `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig  `json:"sqlite" mapstructure:"sqlite"`
	CacheSize int           `json:"cacheSize" mapstructure:"cacheSize"`
	CacheTTL  time.Duration `json:"cacheTTL" mapstructure:"cacheTTL"`
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`

	// FallbackPath is a SQLite file used when Postgres is unreachable.
	FallbackPath string `json:"fallbackPath" mapstructure:"fallbackPath"`
}

// DSN formats the connection string for gorm's postgres driver.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.Username, c.Password, c.Database,
	)
}

// InfluxConfig holds telemetry publisher settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// URL returns the server address.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// WebsocketConfig holds websocket publisher settings
type WebsocketConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Secret  string `json:"secret" mapstructure:"secret"`
}

// PublishConfig groups the outbound snapshot publishers
type PublishConfig struct {
	Websocket WebsocketConfig `json:"websocket" mapstructure:"websocket"`
	Every     int             `json:"every" mapstructure:"every"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// GraylogConfig holds GELF log shipping settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// ArchiveConfig points at the remote path archive used by rigtwin-paths
type ArchiveConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// SimConfig holds the simulation loop and its vehicles
type SimConfig struct {
	TickRate       float64          `json:"tickRate" mapstructure:"tickRate"`
	SampleInterval float64          `json:"sampleInterval" mapstructure:"sampleInterval"`
	Vehicles       []vehicle.Config `json:"vehicles" mapstructure:"vehicles"`
}

// Dt returns the fixed tick duration in seconds.
func (c SimConfig) Dt() float64 { return 1 / c.TickRate }

// RegionConfig is a region as configured: local vertices or a WGS84 polygon
// given as "[[lon,lat],...]".
type RegionConfig struct {
	Name     string       `json:"name" mapstructure:"name"`
	Vertices []core.Point `json:"vertices" mapstructure:"vertices"`
	WGS84    string       `json:"wgs84" mapstructure:"wgs84"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./rigtwinlogs")

	viper.SetDefault("sim.tickRate", 50.0)
	viper.SetDefault("sim.sampleInterval", 0.1)

	viper.SetDefault("sensor.model", string(sensor.DefaultConfig.Model))
	viper.SetDefault("sensor.rays", sensor.DefaultConfig.Rays)
	viper.SetDefault("sensor.range", sensor.DefaultConfig.Range)
	viper.SetDefault("sensor.radius", sensor.DefaultConfig.Radius)
	viper.SetDefault("sensor.brakingThreshold", sensor.DefaultConfig.BrakingThreshold)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./paths")
	viper.SetDefault("storage.memory.compressOutput", false)
	viper.SetDefault("storage.memory.format", "json")
	viper.SetDefault("storage.sqlite.path", "./paths.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "1m")
	viper.SetDefault("storage.cacheSize", 32)
	viper.SetDefault("storage.cacheTTL", "10m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "rigtwin")
	viper.SetDefault("db.fallbackPath", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "rigtwin")
	viper.SetDefault("influx.bucket", "telemetry")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("archive.url", "http://localhost:5000")
	viper.SetDefault("archive.secret", "")

	viper.SetDefault("publish.every", 5)
	viper.SetDefault("publish.websocket.enabled", false)
	viper.SetDefault("publish.websocket.url", "ws://localhost:5000/api/v1/twin/ws")
	viper.SetDefault("publish.websocket.secret", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "rigtwin")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSimConfig reads the sim section. The tick rate must be positive.
func GetSimConfig() (SimConfig, error) {
	c := SimConfig{
		TickRate:       viper.GetFloat64("sim.tickRate"),
		SampleInterval: viper.GetFloat64("sim.sampleInterval"),
	}
	if err := viper.UnmarshalKey("sim.vehicles", &c.Vehicles); err != nil {
		return c, fmt.Errorf("%w: sim.vehicles: %v", core.ErrConfiguration, err)
	}
	if c.TickRate <= 0 {
		return c, fmt.Errorf("%w: sim.tickRate must be positive, got %v", core.ErrConfiguration, c.TickRate)
	}
	if c.SampleInterval < 0 {
		return c, fmt.Errorf("%w: sim.sampleInterval must not be negative", core.ErrConfiguration)
	}
	return c, nil
}

// GetSensorConfig reads the sensor section.
func GetSensorConfig() sensor.Config {
	return sensor.Config{
		Model:            sensor.Model(viper.GetString("sensor.model")),
		Rays:             viper.GetInt("sensor.rays"),
		Range:            viper.GetFloat64("sensor.range"),
		Radius:           viper.GetFloat64("sensor.radius"),
		BrakingThreshold: viper.GetFloat64("sensor.brakingThreshold"),
	}
}

// GetRegions decodes and validates the configured regions, projecting WGS84
// polygons into local metres.
func GetRegions() ([]core.Region, error) {
	var raw []RegionConfig
	if err := viper.UnmarshalKey("regions", &raw); err != nil {
		return nil, fmt.Errorf("%w: regions: %v", core.ErrConfiguration, err)
	}
	regions := make([]core.Region, 0, len(raw))
	for _, rc := range raw {
		r := core.Region{Name: rc.Name, Vertices: rc.Vertices}
		if rc.WGS84 != "" {
			lonLat, err := geo.ParsePolygon(rc.WGS84)
			if err != nil {
				return nil, fmt.Errorf("%w: region %q: %v", core.ErrConfiguration, rc.Name, err)
			}
			r.Vertices = geo.ProjectVertices(lonLat)
		}
		if err := geo.ValidateRegion(r); err != nil {
			return nil, fmt.Errorf("%w: region %q: %v", core.ErrConfiguration, rc.Name, err)
		}
		regions = append(regions, r)
	}
	return regions, nil
}

// GetObstacles decodes the static obstacles placed at startup.
func GetObstacles() ([]sensor.Body, error) {
	var bodies []sensor.Body
	if err := viper.UnmarshalKey("obstacles", &bodies); err != nil {
		return nil, fmt.Errorf("%w: obstacles: %v", core.ErrConfiguration, err)
	}
	return bodies, nil
}

// GetStorageConfig reads the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
			Compression:    viper.GetString("storage.memory.compression"),
			Format:         viper.GetString("storage.memory.format"),
		},
		SQLite: SQLiteConfig{
			DumpPath:     viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		CacheSize: viper.GetInt("storage.cacheSize"),
		CacheTTL:  viper.GetDuration("storage.cacheTTL"),
	}
}

// GetDBConfig reads the db section.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),

		FallbackPath: viper.GetString("db.fallbackPath"),
	}
}

// GetInfluxConfig reads the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetGraylogConfig reads the graylog section.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetArchiveConfig reads the archive section.
func GetArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		URL:    viper.GetString("archive.url"),
		Secret: viper.GetString("archive.secret"),
	}
}

// GetPublishConfig reads the publish section.
func GetPublishConfig() PublishConfig {
	return PublishConfig{
		Every: viper.GetInt("publish.every"),
		Websocket: WebsocketConfig{
			Enabled: viper.GetBool("publish.websocket.enabled"),
			URL:     viper.GetString("publish.websocket.url"),
			Secret:  viper.GetString("publish.websocket.secret"),
		},
	}
}

// GetOTelConfig reads the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
