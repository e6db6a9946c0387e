// Gray Logic Presence - BLE beacon presence tracker
//
// This is the main entry point for the presence service. It ingests BLE
// advertisements from an MQTT gateway or a serial scanner, tracks named
// beacons and anonymous trackers, and reports presence over HTTP,
// WebSocket, MQTT and InfluxDB.
//
// Usage:
//
//	presence serve [--config configs/config.yaml]
//	presence check-config
//	presence migrate status|up|down
//	presence discover
//	presence version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configPath is set by the --config persistent flag.
var configPath string

func main() {
	// Cancel on Ctrl+C and SIGTERM for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "presence",
		Short: "Gray Logic Presence - BLE beacon presence tracker",
		Long: `Tracks named BLE beacons (AirTags, legacy trackers) and anonymous
trackers nearby, estimating distance and signal trend, and marking devices
lost when they fall silent.

Advertisements arrive from an MQTT scanning gateway or a USB serial
scanner. Presence is served over HTTP and WebSocket, published to MQTT and
optionally written to InfluxDB and a SQLite episode history.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to config file (default $PRESENCE_CONFIG or "+defaultConfigPath+")")

	root.AddCommand(
		newServeCmd(),
		newCheckConfigCmd(),
		newMigrateCmd(),
		newDiscoverCmd(),
		newVersionCmd(),
	)
	return root
}

// getConfigPath returns the configuration file path: the --config flag,
// then PRESENCE_CONFIG, then the default.
func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if path := os.Getenv("PRESENCE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
