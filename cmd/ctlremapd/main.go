// ctlremapd - Control Namespace Remap Daemon
//
// ctlremapd fronts a card's control namespace with a rule-driven remap
// proxy: elements can be renamed, merged into virtual controls, or tied
// into sync groups, and the resulting namespace is served over REST,
// WebSocket and MQTT with optional SQLite history and InfluxDB telemetry.
//
// The stack, bottom to top:
//
//	memctl card -> remap proxy -> gateway -> { REST / WS / MQTT / history }
//
// For rule semantics, see the remap package documentation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/ctlremap/migrations"

	"github.com/nerrad567/ctlremap/internal/api"
	"github.com/nerrad567/ctlremap/internal/ctl"
	"github.com/nerrad567/ctlremap/internal/ctl/memctl"
	"github.com/nerrad567/ctlremap/internal/gateway"
	"github.com/nerrad567/ctlremap/internal/history"
	"github.com/nerrad567/ctlremap/internal/infrastructure/config"
	"github.com/nerrad567/ctlremap/internal/infrastructure/database"
	"github.com/nerrad567/ctlremap/internal/infrastructure/influxdb"
	"github.com/nerrad567/ctlremap/internal/infrastructure/logging"
	"github.com/nerrad567/ctlremap/internal/infrastructure/mqtt"
	"github.com/nerrad567/ctlremap/internal/remap"
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

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ctlremapd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// History repository (optional)
	var historyRepo history.Repository
	var retention time.Duration
	if cfg.History.Enabled {
		historyRepo = history.NewSQLiteRepository(db.DB)
		retention = time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
		log.Info("history enabled", "retention_days", cfg.History.RetentionDays)
	} else {
		log.Info("history disabled")
	}

	// Build the card
	card := memctl.New()
	if cfg.Provider.Seed != "" {
		specs, seedErr := memctl.LoadSpecs(cfg.Provider.Seed)
		if seedErr != nil {
			return fmt.Errorf("loading seed elements: %w", seedErr)
		}
		if seedErr := card.Seed(specs); seedErr != nil {
			return fmt.Errorf("seeding card: %w", seedErr)
		}
		log.Info("card seeded", "name", cfg.Provider.Name, "elements", len(specs))
	} else {
		log.Info("card started empty", "name", cfg.Provider.Name)
	}
	defer func() {
		if closeErr := card.Close(); closeErr != nil {
			log.Error("error closing card", "error", closeErr)
		}
	}()

	// Stack the remap proxy over the card (optional)
	var provider ctl.Provider = card
	if cfg.Rules.Path != "" {
		provider, err = buildRemapStack(card, cfg.Rules.Path, log)
		if err != nil {
			return err
		}
	} else {
		log.Info("no rules file configured, serving the card namespace untouched")
	}

	// Connect to MQTT broker (optional)
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
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub, shared by the gateway and the API server
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Gateway over the provider stack
	gwOpts := gateway.Options{
		Provider:  provider,
		Hub:       hub,
		History:   historyRepo,
		Retention: retention,
		Logger:    log,
	}
	if mqttClient != nil {
		gwOpts.MQTT = mqttClient
		gwOpts.Topics = mqttClient.Topics()
		gwOpts.QoS = byte(cfg.MQTT.QoS)
	}
	if influxClient != nil {
		gwOpts.Telemetry = influxClient
	}
	gw, err := gateway.New(gwOpts)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	// Start the event pump
	go func() {
		if pumpErr := gw.Run(ctx); pumpErr != nil {
			log.Error("event pump exited", "error", pumpErr)
		}
	}()

	// Route MQTT set commands into the gateway
	if mqttClient != nil {
		topics := mqttClient.Topics()
		if subErr := mqttClient.Subscribe(topics.AllElementSets(), byte(cfg.MQTT.QoS), gw.HandleElementSet); subErr != nil {
			return fmt.Errorf("subscribing to set topics: %w", subErr)
		}
		log.Info("MQTT set commands subscribed", "topic", topics.AllElementSets())
	}

	// Watch the rules file and hot-swap the proxy on change
	if cfg.Rules.Path != "" && cfg.Rules.Watch {
		watcher := remap.NewWatcher(cfg.Rules.Path, func(rules *remap.Config) error {
			next, buildErr := remap.New(card, rules)
			if buildErr != nil {
				return fmt.Errorf("compiling rules: %w", buildErr)
			}
			return gw.Swap(next)
		})
		watcher.SetLogger(log)
		go func() {
			if watchErr := watcher.Run(ctx); watchErr != nil {
				log.Error("rules watcher exited", "error", watchErr)
			}
		}()
		log.Info("rules watcher started", "path", cfg.Rules.Path)
	}

	// Start the API server
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Gateway:  gw,
		History:  historyRepo,
		DB:       db,
		MQTT:     mqttClient,
		Hub:      hub,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Card
	// 5. Database

	log.Info("ctlremapd stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CTLREMAP_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CTLREMAP_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildRemapStack loads the rules file and stacks the proxy over the card.
func buildRemapStack(card ctl.Provider, path string, log *logging.Logger) (ctl.Provider, error) {
	rules, err := remap.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	proxy, err := remap.New(card, rules)
	if err != nil {
		return nil, fmt.Errorf("compiling rules: %w", err)
	}

	log.Info("remap rules loaded",
		"path", path,
		"renames", len(rules.Renames),
		"merges", len(rules.Merges),
		"syncs", len(rules.Syncs),
	)
	return proxy, nil
}

// healthCheck verifies all infrastructure connections are healthy. The MQTT
// and InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
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
