package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-presence/internal/api"
	"github.com/nerrad567/gray-logic-presence/internal/discovery"
	"github.com/nerrad567/gray-logic-presence/internal/feed"
	"github.com/nerrad567/gray-logic-presence/internal/history"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-presence/internal/presence"
	"github.com/nerrad567/gray-logic-presence/internal/sinks"
	"github.com/nerrad567/gray-logic-presence/migrations"
)

// run is the serve command, separated from cobra wiring for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Presence",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	path := getConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", path,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Presence core
	devices, err := cfg.DeviceList()
	if err != nil {
		return fmt.Errorf("building device list: %w", err)
	}
	classifier, err := cfg.Classifier()
	if err != nil {
		return fmt.Errorf("building classifier: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("loading time zone: %w", err)
	}

	clock := presence.NewSystemClock()
	registry := presence.NewRegistry(devices, clock)
	reader := presence.NewReader(registry, devices, clock, loc)

	bus := presence.NewEventBus(cfg.Presence.EventBuffer)
	bus.SetLogger(log.Component("events"))
	registry.SetNotifier(bus)

	log.Info("presence registry initialised",
		"tracked_devices", devices.Len(),
		"default_timeout", cfg.DefaultTimeout(),
		"timezone", loc.String(),
	)

	ingestor := feed.NewIngestor(classifier, registry, clock)
	ingestor.SetLogger(log.Component("feed"))

	// History (optional)
	var (
		db       *database.DB
		episodes history.Repository
	)
	if cfg.History.Enabled {
		db, err = database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("history database ready", "path", db.Path())

		repo := history.NewSQLiteRepository(db.DB)
		episodes = repo

		recorder := history.NewRecorder(repo)
		recorder.SetLogger(log.Component("history"))
		bus.Subscribe(recorder.Handle)

		pruner, pruneErr := history.NewPruner(repo, cfg.Retention(), cfg.PruneInterval())
		switch {
		case errors.Is(pruneErr, history.ErrInvalidRetention):
			log.Info("history pruning disabled", "retention_days", cfg.History.RetentionDays)
		case pruneErr != nil:
			return fmt.Errorf("creating history pruner: %w", pruneErr)
		default:
			pruner.SetLogger(log.Component("history"))
			pruner.Start(ctx)
			defer pruner.Stop()
		}
	} else {
		log.Info("history disabled")
	}

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		publisher := sinks.NewMQTTPublisher(mqttClient)
		publisher.SetLogger(log.Component("mqtt"))
		bus.Subscribe(publisher.Handle)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		telemetry := sinks.NewTelemetryRecorder(influxClient, ingestor.Stats, 0)
		bus.Subscribe(telemetry.Handle)
		telemetry.Start(ctx)
		defer telemetry.Stop()
	} else {
		log.Info("InfluxDB disabled")
	}

	// API server and WebSocket hub
	deps := api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log.Component("api"),
		Reader:  reader,
		Version: version,
		Bus:     bus,
		Ingest:  ingestor.Stats,
		DB:      db,
		History: episodes,
	}
	// Interface fields stay nil when the optional client is absent.
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.InfluxDB = influxClient
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	bus.Subscribe(server.Hub().HandleEvent)

	// Events flow once every subscriber is registered.
	go bus.Run(ctx)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Timeout sweeps
	sweeper := presence.NewSweeper(reader, cfg.SweepInterval())
	sweeper.SetLogger(log.Component("sweeper"))
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Advertisement feeds
	if err := startFeeds(ctx, cfg, mqttClient, ingestor, log); err != nil {
		return err
	}

	// mDNS (optional)
	if cfg.MDNS.Enabled {
		advertiser, advErr := discovery.NewAdvertiser(cfg.MDNS, firstDeviceName(devices), cfg.API.Port, version)
		if advErr != nil {
			return fmt.Errorf("creating mDNS advertiser: %w", advErr)
		}
		advertiser.SetLogger(log.Component("mdns"))
		if startErr := advertiser.Start(); startErr != nil {
			log.Warn("mDNS advertisement unavailable", "error", startErr)
		} else {
			defer advertiser.Close()
		}
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: feeds, mDNS, sweeper, API, telemetry,
	// InfluxDB, MQTT, pruner, database.
	log.Info("Gray Logic Presence stopped")
	return nil
}

// startFeeds starts the configured advertisement sources. Their shutdown
// is tied to ctx.
func startFeeds(ctx context.Context, cfg *config.Config, mqttClient *mqtt.Client, ingestor *feed.Ingestor, log *logging.Logger) error {
	started := 0

	if cfg.Feed.MQTT.Enabled && mqttClient != nil {
		src := feed.NewMQTTSource(mqttClient, cfg.Feed.MQTT.Topic, mqttClient.QoS(), ingestor)
		if err := src.Start(); err != nil {
			return fmt.Errorf("subscribing to advertisement feed: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = src.Stop() //nolint:errcheck // Broker may already be gone at shutdown
		})
		log.Info("MQTT advertisement feed started", "topic", src.Topic())
		started++
	}

	if cfg.Feed.Serial.Enabled {
		src, err := feed.NewSerialSource(feed.SerialConfig{
			Port:         cfg.Feed.Serial.Port,
			BaudRate:     cfg.Feed.Serial.BaudRate,
			ReopenDelay:  cfg.SerialReopenDelay(),
			MaxLineBytes: cfg.Feed.Serial.MaxLineBytes,
		}, feed.OpenSerialPort, ingestor)
		if err != nil {
			return fmt.Errorf("creating serial feed: %w", err)
		}
		src.SetLogger(log.Component("serial"))
		src.Start(ctx)
		context.AfterFunc(ctx, src.Stop)
		log.Info("serial advertisement feed started", "port", cfg.Feed.Serial.Port)
		started++
	}

	if cfg.Feed.Command.Enabled {
		src, err := feed.NewCommandSource(feed.CommandConfig{
			Binary:       cfg.Feed.Command.Binary,
			Args:         cfg.Feed.Command.Args,
			RestartDelay: cfg.CommandRestartDelay(),
			IdleTimeout:  cfg.CommandIdleTimeout(),
			MaxLineBytes: cfg.Feed.Command.MaxLineBytes,
		}, ingestor)
		if err != nil {
			return fmt.Errorf("creating command feed: %w", err)
		}
		src.SetLogger(log.Component("command"))
		if err := src.Start(ctx); err != nil {
			return fmt.Errorf("starting scanner command: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = src.Stop() //nolint:errcheck // Shutdown path
		})
		log.Info("command advertisement feed started", "source", src.Source())
		started++
	}

	if started == 0 {
		log.Warn("no advertisement feed enabled; presence will stay empty")
	}
	return nil
}

// firstDeviceName returns the display name of the first tracked device.
func firstDeviceName(devices *presence.DeviceList) string {
	all := devices.All()
	if len(all) == 0 {
		return ""
	}
	return all[0].Name()
}

// healthCheck verifies the optional infrastructure connections.
// Nil arguments are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
