package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-presence/internal/discovery"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-presence/migrations"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the presence tracker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration file and print the tracked devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := getConfigPath()
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			devices, err := cfg.DeviceList()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: ok\n", path)
			fmt.Fprintf(out, "default timeout: %s\n", cfg.DefaultTimeout())
			fmt.Fprintf(out, "tracked devices: %d\n", devices.Len())
			for _, d := range devices.All() {
				fmt.Fprintf(out, "  %s  %-20s timeout %s\n", d.Address, d.Name(), d.Timeout)
			}
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the history database schema",
	}

	withDB := func(fn func(cmd *cobra.Command, db *database.DB) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(getConfigPath())
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // CLI exit
			return fn(cmd, db)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *database.DB) error {
				applied, pending, err := db.MigrationStatus(cmd.Context(), migrations.FS)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, r := range applied {
					fmt.Fprintf(out, "applied  %s  %s\n", r.Version, r.AppliedAt.Format(time.RFC3339))
				}
				for _, m := range pending {
					fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *database.DB) error {
				return db.Migrate(cmd.Context(), migrations.FS)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *database.DB) error {
				return db.MigrateDown(cmd.Context(), migrations.FS)
			}),
		},
	)
	return cmd
}

func newDiscoverCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find presence trackers on the local network via mDNS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instances, err := discovery.Scan(cmd.Context(), timeout)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(instances)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", discovery.DefaultScanTimeout, "How long to listen for answers")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "presence %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
