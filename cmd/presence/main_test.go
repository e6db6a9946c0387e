package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// writeConfig writes a config file into a temp dir, points PRESENCE_CONFIG
// at it and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("PRESENCE_CONFIG", path)
	return path
}

// standaloneConfig disables every external service.
func standaloneConfig(dbPath string) string {
	return `
site:
  id: test-site
  timezone: Europe/London

presence:
  default_timeout_ms: 60000
  devices:
    - mac: "E3:ED:26:C7:83:C4"
      display_name: Ziggy

feed:
  mqtt:
    enabled: false

mqtt:
  enabled: false

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

api:
  host: "127.0.0.1"
  port: 18473

logging:
  level: error
  format: text
  output: stderr
`
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("PRESENCE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_DuplicateDevice(t *testing.T) {
	writeConfig(t, `
site:
  id: test-site
presence:
  devices:
    - mac: "e3:ed:26:c7:83:c4"
    - mac: "E3-ED-26-C7-83-C4"
mqtt:
  enabled: false
feed:
  mqtt:
    enabled: false
`)

	err := run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "presence.devices") {
		t.Fatalf("run() error = %v, want presence.devices error", err)
	}
}

func TestRun_StandaloneStartupAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "presence.db")
	writeConfig(t, standaloneConfig(dbPath))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := run(ctx)
	if err != nil && strings.Contains(err.Error(), "listening on") {
		t.Skipf("test port unavailable: %v", err)
	}
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, statErr := os.Stat(dbPath); statErr != nil {
		t.Errorf("history database not created: %v", statErr)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("PRESENCE_CONFIG", "")
		configPath = ""
		if got := getConfigPath(); got != defaultConfigPath {
			t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
		}
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv("PRESENCE_CONFIG", "/custom/config.yaml")
		configPath = ""
		if got := getConfigPath(); got != "/custom/config.yaml" {
			t.Errorf("getConfigPath() = %q", got)
		}
	})

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("PRESENCE_CONFIG", "/custom/config.yaml")
		configPath = "/flag/config.yaml"
		defer func() { configPath = "" }()
		if got := getConfigPath(); got != "/flag/config.yaml" {
			t.Errorf("getConfigPath() = %q", got)
		}
	})
}

func TestCheckConfigCommand(t *testing.T) {
	path := writeConfig(t, standaloneConfig(filepath.Join(t.TempDir(), "p.db")))
	configPath = ""

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check-config"})

	if err := root.Execute(); err != nil {
		t.Fatalf("check-config error = %v", err)
	}

	got := out.String()
	for _, want := range []string{path + ": ok", "tracked devices: 1", "e3:ed:26:c7:83:c4", "Ziggy"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "presence "+version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestFirstDeviceName(t *testing.T) {
	empty, err := presence.NewDeviceList(nil, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if got := firstDeviceName(empty); got != "" {
		t.Errorf("firstDeviceName(empty) = %q", got)
	}

	list, err := presence.NewDeviceList([]presence.DeviceConfig{
		{Address: "e3:ed:26:c7:83:c4", DisplayName: "Ziggy"},
		{Address: "11:22:33:44:55:66", DisplayName: "Keys"},
	}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if got := firstDeviceName(list); got != "Ziggy" {
		t.Errorf("firstDeviceName() = %q, want Ziggy", got)
	}
}

func TestHealthCheck_AllOptionalAbsent(t *testing.T) {
	if err := healthCheck(context.Background(), nil, nil, nil); err != nil {
		t.Errorf("healthCheck() error = %v", err)
	}
}
