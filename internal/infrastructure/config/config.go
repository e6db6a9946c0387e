package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// Config is the root configuration structure for Gray Logic Presence.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Presence  PresenceConfig  `yaml:"presence"`
	Feed      FeedConfig      `yaml:"feed"`
	Database  DatabaseConfig  `yaml:"database"`
	History   HistoryConfig   `yaml:"history"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	MDNS      MDNSConfig      `yaml:"mdns"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// PresenceConfig contains the tracking engine settings.
type PresenceConfig struct {
	// DefaultTimeoutMs applies to anonymous devices and to tracked devices
	// without their own timeout. Default: 300000 (five minutes).
	DefaultTimeoutMs int `yaml:"default_timeout_ms"`

	// SweepIntervalMs is how often timeouts are checked. Default: 1000.
	SweepIntervalMs int `yaml:"sweep_interval_ms"`

	// EventBuffer is the length of the event queue between the registry
	// and its sinks. Events beyond it are dropped.
	EventBuffer int `yaml:"event_buffer"`

	// LegacySignatures are extra two-byte manufacturer signatures, in hex
	// and on-air byte order ("7500"), recognised as legacy trackers.
	// When empty the built-in set is used.
	LegacySignatures []string `yaml:"legacy_signatures"`

	// Devices is the list of named devices, in display order.
	Devices []DeviceConfig `yaml:"devices"`
}

// DeviceConfig is one tracked device.
type DeviceConfig struct {
	MAC         string `yaml:"mac"`
	DisplayName string `yaml:"display_name"`
	WebName     string `yaml:"web_name"`
	TimeoutMs   int    `yaml:"timeout_ms"`
}

// FeedConfig selects where advertisements come from.
type FeedConfig struct {
	MQTT    FeedMQTTConfig `yaml:"mqtt"`
	Serial  SerialConfig   `yaml:"serial"`
	Command CommandConfig  `yaml:"command"`
}

// FeedMQTTConfig configures the MQTT advertisement feed.
type FeedMQTTConfig struct {
	Enabled bool   `yaml:"enabled"`
	Topic   string `yaml:"topic"`
}

// SerialConfig configures a USB-attached scanner emitting one JSON
// advertisement per line.
type SerialConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Port          string `yaml:"port"`
	BaudRate      int    `yaml:"baud_rate"`
	ReopenDelayMs int    `yaml:"reopen_delay_ms"`
	MaxLineBytes  int    `yaml:"max_line_bytes"`
}

// CommandConfig runs a local scanner helper that prints one JSON
// advertisement per line on stdout.
type CommandConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Binary         string   `yaml:"binary"`
	Args           []string `yaml:"args"`
	RestartDelayMs int      `yaml:"restart_delay_ms"`
	// IdleTimeoutMs restarts a helper that prints nothing for this long.
	// 0 disables the check.
	IdleTimeoutMs int `yaml:"idle_timeout_ms"`
	MaxLineBytes  int `yaml:"max_line_bytes"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// HistoryConfig controls the episode audit log.
type HistoryConfig struct {
	Enabled            bool `yaml:"enabled"`
	RetentionDays      int  `yaml:"retention_days"`
	PruneIntervalHours int  `yaml:"prune_interval_hours"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize   int `yaml:"max_message_size"`
	PingInterval     int `yaml:"ping_interval"`
	PongTimeout      int `yaml:"pong_timeout"`
	SnapshotInterval int `yaml:"snapshot_interval"`
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

// MDNSConfig controls zeroconf advertisement of the HTTP API.
type MDNSConfig struct {
	Enabled bool `yaml:"enabled"`

	// Instance overrides the derived instance name ("my" + first tracked
	// device name).
	Instance string `yaml:"instance"`
	Service  string `yaml:"service"`
	Domain   string `yaml:"domain"`
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
// Environment variables follow the pattern: PRESENCE_SECTION_KEY
// For example: PRESENCE_DATABASE_PATH, PRESENCE_API_PORT
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic Presence",
			Timezone: "UTC",
		},
		Presence: PresenceConfig{
			DefaultTimeoutMs: 300000,
			SweepIntervalMs:  1000,
			EventBuffer:      presence.DefaultEventBuffer,
		},
		Feed: FeedConfig{
			MQTT: FeedMQTTConfig{
				Enabled: true,
				Topic:   "graylogic/presence/adverts/#",
			},
			Serial: SerialConfig{
				BaudRate:      115200,
				ReopenDelayMs: 5000,
				MaxLineBytes:  4096,
			},
			Command: CommandConfig{
				RestartDelayMs: 5000,
				IdleTimeoutMs:  60000,
				MaxLineBytes:   4096,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/presence.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		History: HistoryConfig{
			Enabled:            true,
			RetentionDays:      30,
			PruneIntervalHours: 6,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-presence",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize:   8192,
			PingInterval:     30,
			PongTimeout:      10,
			SnapshotInterval: 2,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		MDNS: MDNSConfig{
			Service: "_http._tcp",
			Domain:  "local.",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PRESENCE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Site
	if v := os.Getenv("PRESENCE_SITE_TIMEZONE"); v != "" {
		cfg.Site.Timezone = v
	}

	// Database
	if v := os.Getenv("PRESENCE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("PRESENCE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PRESENCE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PRESENCE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Feed
	if v := os.Getenv("PRESENCE_FEED_SERIAL_PORT"); v != "" {
		cfg.Feed.Serial.Port = v
		cfg.Feed.Serial.Enabled = true
	}

	// API
	if v := os.Getenv("PRESENCE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("PRESENCE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("PRESENCE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("PRESENCE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a known time zone", c.Site.Timezone))
	}

	// Presence validation
	if c.Presence.DefaultTimeoutMs <= 0 {
		errs = append(errs, "presence.default_timeout_ms must be positive")
	} else if _, err := c.DeviceList(); err != nil {
		errs = append(errs, fmt.Sprintf("presence.devices: %v", err))
	}
	if c.Presence.SweepIntervalMs <= 0 {
		errs = append(errs, "presence.sweep_interval_ms must be positive")
	}
	if _, err := c.LegacySignatures(); err != nil {
		errs = append(errs, fmt.Sprintf("presence.legacy_signatures: %v", err))
	}

	// Feed validation
	if c.Feed.MQTT.Enabled {
		if !c.MQTT.Enabled {
			errs = append(errs, "feed.mqtt requires mqtt.enabled")
		}
		if c.Feed.MQTT.Topic == "" {
			errs = append(errs, "feed.mqtt.topic is required")
		}
	}
	if c.Feed.Serial.Enabled {
		if c.Feed.Serial.Port == "" {
			errs = append(errs, "feed.serial.port is required")
		}
		if c.Feed.Serial.BaudRate <= 0 {
			errs = append(errs, "feed.serial.baud_rate must be positive")
		}
	}

	if c.Feed.Command.Enabled && c.Feed.Command.Binary == "" {
		errs = append(errs, "feed.command.binary is required")
	}

	// Database validation
	if c.History.Enabled {
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required when history is enabled")
		}
		if c.History.RetentionDays < 0 {
			errs = append(errs, "history.retention_days must not be negative")
		}
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DeviceList builds the tracked device list from the presence section.
func (c *Config) DeviceList() (*presence.DeviceList, error) {
	configs := make([]presence.DeviceConfig, 0, len(c.Presence.Devices))
	for _, d := range c.Presence.Devices {
		configs = append(configs, presence.DeviceConfig{
			Address:     d.MAC,
			DisplayName: d.DisplayName,
			WebName:     d.WebName,
			Timeout:     time.Duration(d.TimeoutMs) * time.Millisecond,
		})
	}
	return presence.NewDeviceList(configs, c.DefaultTimeout())
}

// LegacySignatures parses the configured legacy signatures. An empty list
// yields nil, meaning the built-in set.
func (c *Config) LegacySignatures() ([]presence.Signature, error) {
	if len(c.Presence.LegacySignatures) == 0 {
		return nil, nil
	}
	sigs := make([]presence.Signature, 0, len(c.Presence.LegacySignatures))
	for _, s := range c.Presence.LegacySignatures {
		sig, err := presence.ParseSignature(s)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// Classifier returns the advertisement classifier described by the config.
func (c *Config) Classifier() (*presence.Classifier, error) {
	sigs, err := c.LegacySignatures()
	if err != nil {
		return nil, err
	}
	if sigs == nil {
		return presence.DefaultClassifier(), nil
	}
	return presence.NewClassifier(sigs...), nil
}

// Location returns the site time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Site.Timezone)
}

// DefaultTimeout returns presence.default_timeout_ms as a Duration.
func (c *Config) DefaultTimeout() time.Duration {
	return time.Duration(c.Presence.DefaultTimeoutMs) * time.Millisecond
}

// SweepInterval returns presence.sweep_interval_ms as a Duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Presence.SweepIntervalMs) * time.Millisecond
}

// SerialReopenDelay returns feed.serial.reopen_delay_ms as a Duration.
func (c *Config) SerialReopenDelay() time.Duration {
	return time.Duration(c.Feed.Serial.ReopenDelayMs) * time.Millisecond
}

// CommandRestartDelay returns feed.command.restart_delay_ms as a Duration.
func (c *Config) CommandRestartDelay() time.Duration {
	return time.Duration(c.Feed.Command.RestartDelayMs) * time.Millisecond
}

// CommandIdleTimeout returns feed.command.idle_timeout_ms as a Duration.
func (c *Config) CommandIdleTimeout() time.Duration {
	return time.Duration(c.Feed.Command.IdleTimeoutMs) * time.Millisecond
}

// SnapshotInterval returns websocket.snapshot_interval as a Duration.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.WebSocket.SnapshotInterval) * time.Second
}

// Retention returns history.retention_days as a Duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}

// PruneInterval returns history.prune_interval_hours as a Duration.
func (c *Config) PruneInterval() time.Duration {
	return time.Duration(c.History.PruneIntervalHours) * time.Hour
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
