package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "garden"
  timezone: "Europe/Berlin"
presence:
  default_timeout_ms: 120000
  legacy_signatures: ["7500", "0x9901"]
  devices:
    - mac: "E3:ED:26:C7:83:C4"
      display_name: "Ziggy"
      web_name: "ziggy"
      timeout_ms: 300000
    - mac: "d1:a2:b3:c4:d5:e6"
      display_name: "Rex"
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
  qos: 1
api:
  port: 8080
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "garden" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "garden")
	}
	if got := cfg.DefaultTimeout(); got != 2*time.Minute {
		t.Errorf("DefaultTimeout() = %v, want 2m", got)
	}
	if got := cfg.SweepInterval(); got != time.Second {
		t.Errorf("SweepInterval() = %v, want default 1s", got)
	}

	devices, err := cfg.DeviceList()
	if err != nil {
		t.Fatalf("DeviceList() error = %v", err)
	}
	if devices.Len() != 2 {
		t.Fatalf("DeviceList().Len() = %d, want 2", devices.Len())
	}
	if got := devices.TimeoutFor("e3:ed:26:c7:83:c4"); got != 5*time.Minute {
		t.Errorf("TimeoutFor(Ziggy) = %v, want 5m", got)
	}
	if got := devices.TimeoutFor("d1:a2:b3:c4:d5:e6"); got != 2*time.Minute {
		t.Errorf("TimeoutFor(Rex) = %v, want default 2m", got)
	}

	classifier, err := cfg.Classifier()
	if err != nil {
		t.Fatalf("Classifier() error = %v", err)
	}
	tag, ok := classifier.Classify(presence.Advertisement{ManufacturerData: []byte{0x99, 0x01, 0x00}})
	if !ok || tag != presence.TagLegacyTracker {
		t.Errorf("custom signature not recognised: (%v, %v)", tag, ok)
	}

	loc, err := cfg.Location()
	if err != nil || loc.String() != "Europe/Berlin" {
		t.Errorf("Location() = (%v, %v), want Europe/Berlin", loc, err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_DuplicateDevices(t *testing.T) {
	content := `
presence:
  devices:
    - mac: "e3:ed:26:c7:83:c4"
      display_name: "Ziggy"
    - mac: "E3-ED-26-C7-83-C4"
      display_name: "Ziggy again"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected error for duplicate devices, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("Load() error = %v, want mention of duplicate", err)
	}
}

// validConfig returns a configuration that passes Validate.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Presence.Devices = []DeviceConfig{{MAC: "e3:ed:26:c7:83:c4", DisplayName: "Ziggy"}}
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, true},
		{"unknown timezone", func(c *Config) { c.Site.Timezone = "Mars/Olympus" }, true},
		{"malformed device address", func(c *Config) { c.Presence.Devices[0].MAC = "cat" }, true},
		{"negative device timeout", func(c *Config) { c.Presence.Devices[0].TimeoutMs = -1 }, true},
		{"zero default timeout", func(c *Config) { c.Presence.DefaultTimeoutMs = 0 }, true},
		{"zero sweep interval", func(c *Config) { c.Presence.SweepIntervalMs = 0 }, true},
		{"bad legacy signature", func(c *Config) { c.Presence.LegacySignatures = []string{"75"} }, true},
		{"mqtt feed without mqtt", func(c *Config) { c.MQTT.Enabled = false }, true},
		{"mqtt disabled with feed off", func(c *Config) { c.MQTT.Enabled = false; c.Feed.MQTT.Enabled = false }, false},
		{"serial feed without port", func(c *Config) { c.Feed.Serial.Enabled = true }, true},
		{"serial feed with port", func(c *Config) { c.Feed.Serial.Enabled = true; c.Feed.Serial.Port = "/dev/ttyUSB0" }, false},
		{"command feed without binary", func(c *Config) { c.Feed.Command.Enabled = true }, true},
		{"command feed with binary", func(c *Config) { c.Feed.Command.Enabled = true; c.Feed.Command.Binary = "/usr/local/bin/ble-scan" }, false},
		{"history without database", func(c *Config) { c.Database.Path = "" }, true},
		{"no database when history off", func(c *Config) { c.Database.Path = ""; c.History.Enabled = false }, false},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, true},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, true},
		{"influxdb without url", func(c *Config) { c.InfluxDB.Enabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReportsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Site.ID = ""
	cfg.API.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	for _, want := range []string{"site.id", "api.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, want mention of %s", err, want)
		}
	}
}

func TestConfig_DeviceListErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Presence.Devices = append(cfg.Presence.Devices, DeviceConfig{MAC: "E3:ED:26:C7:83:C4"})

	_, err := cfg.DeviceList()
	if !errors.Is(err, presence.ErrDuplicateAddress) {
		t.Errorf("DeviceList() error = %v, want ErrDuplicateAddress", err)
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
		Feed: FeedConfig{
			Serial:  SerialConfig{ReopenDelayMs: 2500},
			Command: CommandConfig{RestartDelayMs: 1500, IdleTimeoutMs: 30000},
		},
		WebSocket: WebSocketConfig{SnapshotInterval: 5},
		History:   HistoryConfig{RetentionDays: 7, PruneIntervalHours: 6},
	}

	checks := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"GetReadTimeout", cfg.GetReadTimeout(), 30 * time.Second},
		{"GetWriteTimeout", cfg.GetWriteTimeout(), 45 * time.Second},
		{"GetIdleTimeout", cfg.GetIdleTimeout(), 60 * time.Second},
		{"SerialReopenDelay", cfg.SerialReopenDelay(), 2500 * time.Millisecond},
		{"CommandRestartDelay", cfg.CommandRestartDelay(), 1500 * time.Millisecond},
		{"CommandIdleTimeout", cfg.CommandIdleTimeout(), 30 * time.Second},
		{"SnapshotInterval", cfg.SnapshotInterval(), 5 * time.Second},
		{"Retention", cfg.Retention(), 7 * 24 * time.Hour},
		{"PruneInterval", cfg.PruneInterval(), 6 * time.Hour},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s() = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("PRESENCE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("PRESENCE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("PRESENCE_MQTT_USERNAME", "testuser")
	t.Setenv("PRESENCE_MQTT_PASSWORD", "testpass")
	t.Setenv("PRESENCE_API_HOST", "192.168.1.1")
	t.Setenv("PRESENCE_API_PORT", "9090")
	t.Setenv("PRESENCE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("PRESENCE_SITE_TIMEZONE", "Europe/Paris")
	t.Setenv("PRESENCE_FEED_SERIAL_PORT", "/dev/ttyACM0")
	t.Setenv("PRESENCE_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" || cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth = %+v, want testuser/testpass", cfg.MQTT.Auth)
	}
	if cfg.API.Host != "192.168.1.1" || cfg.API.Port != 9090 {
		t.Errorf("API = %s:%d, want 192.168.1.1:9090", cfg.API.Host, cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Site.Timezone != "Europe/Paris" {
		t.Errorf("Site.Timezone = %q, want Europe/Paris", cfg.Site.Timezone)
	}
	if !cfg.Feed.Serial.Enabled || cfg.Feed.Serial.Port != "/dev/ttyACM0" {
		t.Errorf("Feed.Serial = %+v, want enabled on /dev/ttyACM0", cfg.Feed.Serial)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Presence.DefaultTimeoutMs != 300000 {
		t.Errorf("defaultConfig Presence.DefaultTimeoutMs = %d, want 300000", cfg.Presence.DefaultTimeoutMs)
	}
	if cfg.Presence.SweepIntervalMs != 1000 {
		t.Errorf("defaultConfig Presence.SweepIntervalMs = %d, want 1000", cfg.Presence.SweepIntervalMs)
	}
	if cfg.Feed.MQTT.Topic != "graylogic/presence/adverts/#" {
		t.Errorf("defaultConfig Feed.MQTT.Topic = %q", cfg.Feed.MQTT.Topic)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig should validate with no devices: %v", err)
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	for _, key := range []string{"PRESENCE_API_PORT", "PRESENCE_SITE_TIMEZONE", "PRESENCE_FEED_SERIAL_PORT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load(configs/config.yaml) error = %v", err)
	}

	devices, err := cfg.DeviceList()
	if err != nil {
		t.Fatalf("DeviceList() error = %v", err)
	}
	if devices.Len() != 2 {
		t.Errorf("tracked devices = %d, want 2", devices.Len())
	}
	if cfg.Feed.Serial.Enabled {
		t.Error("serial feed enabled in shipped config")
	}
}
