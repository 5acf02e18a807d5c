package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/vehicle-ai-core/internal/api"
	"github.com/nerrad567/vehicle-ai-core/internal/command"
	"github.com/nerrad567/vehicle-ai-core/internal/connection"
	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/cache"
	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/config"
	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/database"
	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/logging"
	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/vehicle-ai-core/internal/metrics"
	"github.com/nerrad567/vehicle-ai-core/internal/nlp"
	"github.com/nerrad567/vehicle-ai-core/internal/process"
	"github.com/nerrad567/vehicle-ai-core/internal/speech"
	"github.com/nerrad567/vehicle-ai-core/internal/telemetry"
	"github.com/nerrad567/vehicle-ai-core/internal/vehicle"
	"github.com/nerrad567/vehicle-ai-core/migrations"
)

// Shutdown budget for WebSocket clients and the telemetry drain.
const shutdownTimeout = 10 * time.Second

// retentionInterval is how often the journal is pruned.
const retentionInterval = time.Hour

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the backend until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, configPath(cmd))
		},
	}
}

// run is the actual application logic, separated from the command for
// testability. It blocks until ctx is cancelled.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - path: Configuration file; a missing file means defaults plus env
//
// Returns:
//   - error: nil on clean shutdown, or the first start-up failure
func run(ctx context.Context, path string) error {
	log := logging.Default()
	log.Info("starting vehicled", "version", version, "commit", commit, "build_date", date)

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	defer log.Close()
	log.Info("configuration loaded", "path", path, "vehicle_id", cfg.Vehicle.ID)

	var prom *metrics.Registry
	if cfg.Metrics.Enabled {
		prom = metrics.New()
	}

	store := vehicle.NewStore(
		vehicle.WithDefaults(vehicle.Defaults{
			Temperature: cfg.Vehicle.Defaults.Temperature,
			FanSpeed:    cfg.Vehicle.Defaults.FanSpeed,
			Volume:      cfg.Vehicle.Defaults.Volume,
		}),
		vehicle.WithLogger(log.With("component", "vehicle")),
	)

	ml := nlp.NewMLClient(cfg.ML)
	parser, closeCache, err := buildParser(ctx, cfg, ml, prom, log)
	if err != nil {
		return err
	}
	defer closeCache()

	processor := command.NewProcessor(store, parser)
	processor.SetLogger(log.With("component", "command"))
	if prom != nil {
		processor.SetObserver(prom)
	}

	backends := make(map[string]api.HealthChecker)

	// Command journal (optional)
	var journal *telemetry.Journal
	if cfg.Database.Enabled {
		db, err := database.Open(database.ConfigFrom(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("command journal ready", "path", cfg.Database.Path)

		journal = telemetry.NewJournal(db)
		processor.SetRecorder(journal)
		backends["journal"] = db

		retention := time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour
		go journal.RunRetention(ctx, retention, retentionInterval, log)
	} else {
		log.Info("command journal disabled")
	}

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, mqtt.Topics{VehicleID: cfg.Vehicle.ID}, mqtt.WithLogger(log.With("component", "mqtt")))
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		backends["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		sub := telemetry.NewCommandSubscriber(mqttClient, processor)
		sub.SetLogger(log.With("component", "mqtt-commands"))
		if err := sub.Start(); err != nil {
			return err
		}
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.Vehicle.ID)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection", "points", influxClient.Written(), "failed_batches", influxClient.Failed())
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) { log.Error("InfluxDB write error", "error", err) })
		backends["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// State mirroring to MQTT and InfluxDB. Runs until after the API is
	// down so the final mutations still reach the broker.
	if mqttClient != nil || influxClient != nil {
		var sp telemetry.StatePublisher
		if mqttClient != nil {
			sp = mqttClient
		}
		var pw telemetry.PointWriter
		if influxClient != nil {
			pw = influxClient
		}
		pub := telemetry.NewPublisher(sp, pw)
		pub.SetLogger(log.With("component", "telemetry"))

		pubCtx, stopPub := context.WithCancel(context.WithoutCancel(ctx))
		go pub.Run(pubCtx)
		unsubscribe := store.OnUpdate(pub.HandleUpdate)
		defer func() {
			unsubscribe()
			stopPub()
			<-pub.Done()
			log.Info("telemetry publisher stopped", "published", pub.Published())
		}()

		// Retained snapshot for subscribers that join before the first command.
		pub.HandleUpdate(ctx, vehicle.Update{State: store.Snapshot(), Version: store.Version()})
	}

	// ML parser sidecar (optional)
	var sidecar *process.Manager
	if cfg.ML.Sidecar.Enabled {
		sidecar = process.NewManager(process.SidecarConfig(cfg.ML.Sidecar, cfg.ML.HealthInterval, ml.HealthCheck))
		sidecar.SetLogger(log.With("component", "sidecar"))
		if err := sidecar.Start(ctx); err != nil {
			return fmt.Errorf("starting ML sidecar: %w", err)
		}
		defer func() {
			log.Info("stopping ML sidecar")
			if stopErr := sidecar.Stop(); stopErr != nil {
				log.Error("error stopping ML sidecar", "error", stopErr)
			}
		}()
	}

	registryOpts := []connection.Option{
		connection.WithHeartbeatInterval(config.Seconds(cfg.WebSocket.HeartbeatInterval)),
		connection.WithWriteTimeout(config.Seconds(cfg.WebSocket.WriteTimeout)),
		connection.WithSendBuffer(cfg.WebSocket.SendBuffer),
		connection.WithLogger(log.With("component", "websocket")),
	}
	if prom != nil {
		registryOpts = append(registryOpts, connection.WithObserver(prom))
	}
	registry := connection.NewRegistry(registryOpts...)

	speechClient := speech.NewClient(cfg.Speech)
	speechClient.SetLogger(log.With("component", "speech"))
	if !speechClient.Available() {
		log.Warn("speech-to-text disabled, set VEHICLE_OPENAI_API_KEY to enable audio commands")
	}

	deps := api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		NLP:        cfg.NLP,
		Features:   cfg.Features,
		Metrics:    cfg.Metrics,
		Logger:     log,
		Store:      store,
		Processor:  processor,
		Registry:   registry,
		Parser:     parser,
		Speech:     speechClient,
		Prometheus: prom,
		Backends:   backends,
		Version:    version,
	}
	if journal != nil {
		deps.History = journal
	}
	if sidecar != nil {
		deps.Sidecar = sidecar
	}

	srv, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	if err := healthCheck(ctx, backends); err != nil {
		_ = srv.Close()
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"ml_url", ml.URL(),
	)

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := srv.Close(); err != nil {
		log.Error("error closing API server", "error", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	registry.Shutdown(shutdownCtx)

	// Remaining deferred closes run in reverse order: sidecar, telemetry
	// publisher, InfluxDB, MQTT, database, cache, logger.
	log.Info("vehicled stopped")
	return nil
}

// buildParser wires the ML client, parse cache and keyword fallback.
// The returned func releases the cache.
func buildParser(ctx context.Context, cfg *config.Config, ml *nlp.MLClient, prom *metrics.Registry, log *logging.Logger) (*nlp.Normalizer, func(), error) {
	opts := []nlp.Option{
		nlp.WithKeywordFallback(cfg.Features.MLFallback),
		nlp.WithLogger(log.With("component", "nlp")),
	}
	if prom != nil {
		opts = append(opts, nlp.WithObserver(prom))
	}

	closeCache := func() {}
	c, err := cache.New(cfg.NLP.Cache)
	switch {
	case errors.Is(err, cache.ErrDisabled):
		log.Info("parse cache disabled")
	case err != nil:
		return nil, nil, fmt.Errorf("creating parse cache: %w", err)
	default:
		if r, ok := c.(*cache.Redis); ok {
			// A down Redis only costs cache hits; lookups degrade to misses.
			if pingErr := r.Ping(ctx); pingErr != nil {
				log.Warn("redis parse cache unreachable", "address", cfg.NLP.Cache.Redis.Address, "error", pingErr)
			}
		}
		opts = append(opts, nlp.WithCache(c))
		closeCache = func() {
			if closeErr := c.Close(); closeErr != nil {
				log.Error("error closing parse cache", "error", closeErr)
			}
		}
		log.Info("parse cache ready", "backend", cfg.NLP.Cache.Backend, "ttl_seconds", cfg.NLP.Cache.TTL)
	}

	return nlp.NewNormalizer(ml, opts...), closeCache, nil
}

// healthCheck verifies every enabled backend once at start-up.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - backends: Enabled backends keyed by service name
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, backends map[string]api.HealthChecker) error {
	for _, name := range []string{"journal", "mqtt", "influxdb"} {
		b, ok := backends[name]
		if !ok {
			continue
		}
		if err := b.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
