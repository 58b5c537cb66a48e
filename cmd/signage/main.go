// Signage Core - digital signage control service.
//
// Signage Core stores displays, their views and the content slots laid out
// on each view. Slot lists and option sets are written by reconciliation,
// and displays are told about changes over a websocket and, optionally,
// MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/signage-core/migrations"

	"github.com/nerrad567/signage-core/internal/api"
	"github.com/nerrad567/signage-core/internal/audit"
	"github.com/nerrad567/signage-core/internal/auth"
	"github.com/nerrad567/signage-core/internal/infrastructure/config"
	"github.com/nerrad567/signage-core/internal/infrastructure/database"
	"github.com/nerrad567/signage-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/signage-core/internal/infrastructure/logging"
	"github.com/nerrad567/signage-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/signage-core/internal/signage"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnvVar      = "SIGNAGE_CONFIG"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, serves until ctx is cancelled and then shuts
// down in reverse order.
func run(ctx context.Context) error { //nolint:gocognit,funlen // startup wiring
	log := logging.Default()
	log.Info("starting Signage Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	health := map[string]api.HealthChecker{"database": db}
	presence := auth.NewPresence(0)

	mqttClient, err := connectMQTT(cfg, log, presence)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		health["mqtt"] = mqttClient
	}

	influxClient, err := connectInfluxDB(cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		health["influxdb"] = influxClient
	}

	hub := api.NewHub(cfg.WebSocket, log, presence)
	service := newService(cfg, db, hub, mqttClient, influxClient, log)
	defer service.Flush()

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log,
		Service:   service,
		Hub:       hub,
		AuditRepo: audit.NewSQLiteRepository(db.DB),
		Presence:  presence,
		Health:    health,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal",
		"reconcile_atomic", cfg.Reconcile.Atomic,
		"mqtt", mqttClient != nil,
		"influxdb", influxClient != nil,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

func getConfigPath() string {
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// newService builds the signage service. Events go to the websocket hub
// and, when connected, to MQTT. Reconciliation statistics go to InfluxDB
// when enabled.
func newService(cfg *config.Config, db *database.DB, hub *api.Hub, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) *signage.Service {
	store := signage.NewSQLiteStore(db.DB)

	var runner signage.TxRunner
	if cfg.Reconcile.Atomic {
		runner = signage.NewSQLiteTxRunner(db.DB)
	}

	sinks := signage.MultiSink{hub}
	if mqttClient != nil {
		sinks = append(sinks, signage.NewMQTTSink(mqttClient, mqttClient.Topics().Events()))
	}

	deps := signage.Deps{
		Store:  store,
		Runner: runner,
		Events: sinks,
		Logger: log.Component("signage"),
	}
	if influxClient != nil {
		deps.Metrics = influxClient
	}
	return signage.NewService(deps)
}

// connectMQTT connects to the broker when enabled and subscribes to
// display heartbeats. It returns nil when MQTT is disabled.
func connectMQTT(cfg *config.Config, log *logging.Logger, presence *auth.Presence) (*mqtt.Client, error) {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT disabled")
		return nil, nil
	}

	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	topics := client.Topics()
	if err := client.Subscribe(topics.AllDisplayPresence(), 1, presence.HeartbeatHandler(topics)); err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("subscribing to display presence: %w", err)
	}

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"events", topics.Events(),
	)
	return client, nil
}

// connectInfluxDB connects when enabled. It returns nil when disabled.
func connectInfluxDB(cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}

	client, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})

	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}
