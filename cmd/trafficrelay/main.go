// Traffic Relay - MQTT to WebSocket bridge for a pair of traffic lights.
//
// The relay subscribes to one MQTT topic per light, keeps the latest value
// of each, and pushes "light1,light2" frames to every connected browser.
// A static panel and a small JSON API are served on the HTTP port; the
// WebSocket endpoint has its own port.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/traffic-relay/migrations"

	"github.com/nerrad567/traffic-relay/internal/api"
	"github.com/nerrad567/traffic-relay/internal/history"
	"github.com/nerrad567/traffic-relay/internal/infrastructure/config"
	"github.com/nerrad567/traffic-relay/internal/infrastructure/database"
	"github.com/nerrad567/traffic-relay/internal/infrastructure/influxdb"
	"github.com/nerrad567/traffic-relay/internal/infrastructure/logging"
	"github.com/nerrad567/traffic-relay/internal/infrastructure/mqtt"
	"github.com/nerrad567/traffic-relay/internal/panel"
	"github.com/nerrad567/traffic-relay/internal/relay"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application, separated from main for testability. It
// returns nil on a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting traffic relay",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	// Fail before any listener or broker session exists.
	if err := panel.ValidateStaticDir(cfg.HTTP.StaticDir); err != nil {
		return err
	}
	panelHandler, err := panel.Handler(cfg.HTTP.StaticDir)
	if err != nil {
		return err
	}

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))

	mqttClient := mqtt.New(cfg.MQTT)
	mqttClient.SetLogger(log.Component("mqtt"))
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	r, err := relay.New(relay.Options{
		Store:         relay.NewStore(cfg.Lights.Light1.Default, cfg.Lights.Light2.Default),
		Broker:        mqttClient,
		Broadcaster:   hub,
		Light1Topic:   cfg.Lights.Light1.Topic,
		Light2Topic:   cfg.Lights.Light2.Topic,
		QoS:           byte(cfg.MQTT.QoS),
		Policy:        relay.PolicyFromConfig(cfg.MQTT.Reconnect),
		CheckInterval: cfg.MQTT.Reconnect.CheckInterval,
		Logger:        log.Component("relay"),
	})
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	mqttClient.SetOnDisconnect(r.NotifyDisconnected)
	hub.SetOnConnect(r.Announce)

	checks := map[string]api.HealthChecker{"mqtt": mqttClient, "relay": r}

	var (
		db      *database.DB
		repo    *history.Repository
		histRdr api.HistoryReader
		dbStats api.DBStatser
	)
	if cfg.History.Enabled {
		db, err = openHistory(ctx, cfg.History, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing history database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing history database", "error", closeErr)
			}
		}()
		repo = history.NewRepository(db.DB)
		r.AddRecorder(repo)
		histRdr, dbStats = repo, db
		checks["history"] = db
	} else {
		log.Info("history disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
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
		r.AddRecorder(influxClient)
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	server, err := api.New(api.Deps{
		HTTP:      cfg.HTTP,
		WebSocket: cfg.WebSocket,
		Logger:    log.Component("api"),
		Relay:     r,
		Hub:       hub,
		Panel:     panelHandler,
		History:   histRdr,
		DB:        dbStats,
		Checks:    checks,
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

	log.Info("initialisation complete",
		"broker", cfg.BrokerAddress(),
		"light1", cfg.Lights.Light1.Topic,
		"light2", cfg.Lights.Light2.Topic,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Run(gctx)
	})
	if repo != nil {
		g.Go(func() error {
			return repo.RunRetention(gctx, cfg.History.Retention, 0, log.Component("history"))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Deferred Close() calls run in reverse order:
	// API server, InfluxDB, history database, MQTT.
	log.Info("traffic relay stopped")
	return nil
}

// openHistory opens the transition log database and applies migrations.
func openHistory(ctx context.Context, cfg config.HistoryConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.ConfigFromHistory(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("history database ready", "path", db.Path())
	return db, nil
}

// getConfigPath returns the configuration file path.
// Uses TRAFFICRELAY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TRAFFICRELAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
