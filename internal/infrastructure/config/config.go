package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the virtual twin.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Vehicle   VehicleConfig   `yaml:"vehicle"`
	Mode      string          `yaml:"mode"`
	Transport TransportConfig `yaml:"transport"`
	Replay    ReplayConfig    `yaml:"replay"`
	UDP       UDPConfig       `yaml:"udp"`
	Engine    EngineConfig    `yaml:"engine"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// VehicleConfig identifies the car. The name is used in MQTT topics and
// telemetry tags.
type VehicleConfig struct {
	Name string `yaml:"name"`
}

// TransportConfig contains the serial gateway link settings.
type TransportConfig struct {
	Port                  string `yaml:"port"`
	BaudRate              int    `yaml:"baud_rate"`
	AutoReconnect         bool   `yaml:"auto_reconnect"`
	ReconnectDelaySeconds int    `yaml:"reconnect_delay_seconds"`
	ReadTimeoutMS         int    `yaml:"read_timeout_ms"`
	// QueueSize bounds the inbound queue. The outbound queue is a quarter of it.
	QueueSize int `yaml:"queue_size"`
}

// ReplayConfig contains capture replay settings used in development mode.
type ReplayConfig struct {
	File     string  `yaml:"file"`
	Speed    float64 `yaml:"speed"`
	Loop     bool    `yaml:"loop"`
	Realtime bool    `yaml:"realtime"`
}

// UDPConfig contains the satellite UDP mirror settings. Satellite
// commands are sent to each target as gateway lines.
type UDPConfig struct {
	Enabled bool              `yaml:"enabled"`
	Targets []UDPTargetConfig `yaml:"targets"`
}

// UDPTargetConfig is one UDP listener. An empty channel list takes every
// satellite channel.
type UDPTargetConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Channels []int  `yaml:"channels"`
}

// EngineConfig contains app loop settings.
type EngineConfig struct {
	TickIntervalMS     int `yaml:"tick_interval_ms"`
	MaxPerTick         int `yaml:"max_per_tick"`
	MaxCascadeDepth    int `yaml:"max_cascade_depth"`
	DiagPollIntervalMS int `yaml:"diag_poll_interval_ms"`
	RemoteQueue        int `yaml:"remote_queue"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VIRTUALTWIN_SECTION_KEY
// For example: VIRTUALTWIN_TRANSPORT_PORT, VIRTUALTWIN_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration, used when no file is given.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
//
//nolint:mnd // default values
func defaultConfig() *Config {
	return &Config{
		Vehicle: VehicleConfig{Name: "prius"},
		Mode:    "development",
		Transport: TransportConfig{
			Port:                  "/dev/ttyACM0",
			BaudRate:              1_000_000,
			AutoReconnect:         true,
			ReconnectDelaySeconds: 2,
			ReadTimeoutMS:         100,
			QueueSize:             1024,
		},
		Replay: ReplayConfig{
			Speed:    1.0,
			Realtime: true,
		},
		UDP: UDPConfig{
			Targets: []UDPTargetConfig{
				{Host: "localhost", Port: 5110, Channels: []int{110}},
			},
		},
		Engine: EngineConfig{
			TickIntervalMS:     16,
			MaxPerTick:         100,
			MaxCascadeDepth:    8,
			DiagPollIntervalMS: 1000,
			RemoteQueue:        256,
		},
		Database: DatabaseConfig{
			Path:        "./data/virtualtwin.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			TopicPrefix: "virtualtwin",
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "virtualtwin",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     500,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VIRTUALTWIN_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VIRTUALTWIN_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("VIRTUALTWIN_VEHICLE_NAME"); v != "" {
		cfg.Vehicle.Name = v
	}

	// Transport
	if v := os.Getenv("VIRTUALTWIN_TRANSPORT_PORT"); v != "" {
		cfg.Transport.Port = v
	}
	if v := os.Getenv("VIRTUALTWIN_TRANSPORT_BAUD_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Transport.BaudRate = n
		}
	}

	// Replay
	if v := os.Getenv("VIRTUALTWIN_REPLAY_FILE"); v != "" {
		cfg.Replay.File = v
	}

	// UDP
	if v := os.Getenv("VIRTUALTWIN_UDP_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.UDP.Enabled = b
		}
	}

	// Database
	if v := os.Getenv("VIRTUALTWIN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("VIRTUALTWIN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VIRTUALTWIN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VIRTUALTWIN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("VIRTUALTWIN_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("VIRTUALTWIN_API_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = n
		}
	}

	// InfluxDB
	if v := os.Getenv("VIRTUALTWIN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("VIRTUALTWIN_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Vehicle.Name == "" {
		errs = append(errs, "vehicle.name is required")
	}

	switch c.Mode {
	case "production", "development", "test":
	default:
		errs = append(errs, "mode must be production, development, or test")
	}

	if c.Mode == "production" && c.Transport.Port == "" {
		errs = append(errs, "transport.port is required in production mode")
	}
	if c.Transport.BaudRate <= 0 {
		errs = append(errs, "transport.baud_rate must be positive")
	}
	if c.Transport.QueueSize < 1 {
		errs = append(errs, "transport.queue_size must be at least 1")
	}

	if c.Replay.Speed < 0 {
		errs = append(errs, "replay.speed must not be negative")
	}

	if c.UDP.Enabled {
		if len(c.UDP.Targets) == 0 {
			errs = append(errs, "udp.targets is required when udp is enabled")
		}
		for i, t := range c.UDP.Targets {
			if t.Host == "" {
				errs = append(errs, fmt.Sprintf("udp.targets[%d].host is required", i))
			}
			if t.Port < 1 || t.Port > 65535 {
				errs = append(errs, fmt.Sprintf("udp.targets[%d].port must be between 1 and 65535", i))
			}
			for _, ch := range t.Channels {
				if ch < 100 { //nolint:mnd // satellite channels start at 100
					errs = append(errs, fmt.Sprintf("udp.targets[%d].channels: %d is not a satellite channel", i, ch))
				}
			}
		}
	}

	if c.Engine.TickIntervalMS < 1 {
		errs = append(errs, "engine.tick_interval_ms must be at least 1")
	}
	if c.Engine.MaxPerTick < 1 {
		errs = append(errs, "engine.max_per_tick must be at least 1")
	}
	if c.Engine.MaxCascadeDepth < 1 {
		errs = append(errs, "engine.max_cascade_depth must be at least 1")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// TickInterval returns the app loop period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Engine.TickIntervalMS) * time.Millisecond
}

// DiagPollInterval returns the diagnostic poll period. Zero disables polling.
func (c *Config) DiagPollInterval() time.Duration {
	return time.Duration(c.Engine.DiagPollIntervalMS) * time.Millisecond
}

// ReconnectDelay returns the link reconnect delay.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Transport.ReconnectDelaySeconds) * time.Second
}

// ReadTimeout returns the serial read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Transport.ReadTimeoutMS) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
