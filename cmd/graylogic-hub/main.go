// Gray Logic Hub - local device-state aggregator
//
// This is the main entry point for the hub. It polls Philips Hue, Nanoleaf
// and SwitchBot while at least one dashboard is connected, keeps the last
// known state of every device in memory, and fans changes out over
// WebSocket, MQTT and InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-hub/internal/api"
	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hub/internal/integrations/hue"
	"github.com/nerrad567/gray-logic-hub/internal/integrations/nanoleaf"
	"github.com/nerrad567/gray-logic-hub/internal/integrations/switchbot"
	"github.com/nerrad567/gray-logic-hub/internal/notify"
	"github.com/nerrad567/gray-logic-hub/internal/orchestrator"
	"github.com/nerrad567/gray-logic-hub/migrations"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Hub",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}

	pairings := nanoleaf.NewSQLitePairingStore(db.DB)
	sources := newSources(cfg, pairings, log)

	orch, err := orchestrator.New(orchestrator.Config{
		Hue:                   sources.hue,
		Nanoleaf:              sources.nanoleaf,
		SwitchBot:             sources.switchbot,
		HueInterval:           cfg.Polling.HueInterval,
		NanoleafInterval:      cfg.Polling.NanoleafInterval,
		SwitchBotInterval:     cfg.Polling.SwitchBotInterval,
		SwitchBotDailyLimit:   cfg.Integrations.SwitchBot.DailyLimit,
		SwitchBotSafetyFactor: cfg.Integrations.SwitchBot.SafetyFactor,
		Repository:            device.NewSQLiteRepository(db.DB),
		Logger:                log.Component("orchestrator"),
	})
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}
	defer func() {
		log.Info("stopping pollers")
		orch.Stop()
	}()

	fanout := notify.NewFanout()
	fanout.SetLogger(log.Component("notify"))
	healthChecks := make(map[string]api.HealthChecker)

	// MQTT is optional: the hub degrades to WebSocket-only when the broker
	// is disabled or unreachable at startup.
	mqttClient := connectMQTT(cfg.MQTT, log)
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		healthChecks["mqtt"] = mqttClient

		publisher := notify.NewStatePublisher(mqttClient)
		publisher.SetLogger(log.Component("mqtt-state"))
		publisher.Start()
		defer publisher.Stop()
		fanout.Add(publisher)

		listener := notify.NewRefreshListener(orch, log.Component("mqtt-refresh"))
		if subErr := listener.Subscribe(mqttClient, byte(cfg.MQTT.QoS)); subErr != nil {
			log.Warn("MQTT refresh requests disabled", "error", subErr)
		}
	}

	influxClient := connectInfluxDB(cfg.InfluxDB, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		healthChecks["influxdb"] = influxClient
		fanout.Add(notify.NewTelemetry(influxClient))
	}

	if reporter := newQuotaReporter(orch, mqttClient, influxClient, log); reporter != nil {
		go reporter.Run(ctx)
	}

	server, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Logger:       log,
		Devices:      orch,
		Pairer:       sources.nanoleaf,
		Pairings:     pairings,
		HealthChecks: healthChecks,
		SiteID:       cfg.Site.ID,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	fanout.Add(notify.SinkFunc(server.Hub().BroadcastDevices))
	orch.SetOnDeviceChange(fanout.Notify)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	// Closing the server disconnects WebSocket clients, which releases
	// their polling references before the pollers are stopped.
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal",
		"sinks", fanout.Len(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// sources holds the three vendor clients.
type sources struct {
	hue       *hue.Client
	nanoleaf  *nanoleaf.Client
	switchbot *switchbot.Client
}

// newSources builds the vendor clients. Missing credentials leave a client
// "not configured"; it is still polled and simply reports nothing.
func newSources(cfg *config.Config, pairings *nanoleaf.SQLitePairingStore, log *logging.Logger) sources {
	ic := cfg.Integrations

	nl := nanoleaf.NewClient(pairings, nanoleaf.Config{
		Timeout: ic.Nanoleaf.Timeout,
		Port:    ic.Nanoleaf.Port,
	})
	nl.SetLogger(log.Integration("nanoleaf"))

	sb := switchbot.NewClient(switchbot.Config{
		Token:   ic.SwitchBot.Token,
		Secret:  ic.SwitchBot.Secret,
		BaseURL: ic.SwitchBot.BaseURL,
		Timeout: ic.SwitchBot.Timeout,
	})
	sb.SetLogger(log.Integration("switchbot"))

	h := hue.NewClient(hue.Config{
		BridgeHost: ic.Hue.BridgeHost,
		Username:   ic.Hue.Username,
		Timeout:    ic.Hue.Timeout,
	})

	log.Info("integrations configured",
		"hue", ic.Hue.BridgeHost != "" && ic.Hue.Username != "",
		"switchbot", ic.SwitchBot.Token != "",
	)
	return sources{hue: h, nanoleaf: nl, switchbot: sb}
}

// connectMQTT connects to the broker when enabled.
// Returns nil when MQTT is disabled or the broker is unreachable.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) *mqtt.Client {
	if !cfg.Enabled {
		log.Info("MQTT disabled")
		return nil
	}

	client, err := mqtt.Connect(cfg)
	if err != nil {
		log.Warn("MQTT unavailable, continuing without it", "error", err)
		return nil
	}
	client.SetLogger(log.Component("mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)
	return client
}

// connectInfluxDB connects to InfluxDB when enabled.
// Returns nil when InfluxDB is disabled or unreachable.
func connectInfluxDB(cfg config.InfluxDBConfig, log *logging.Logger) *influxdb.Client {
	if !cfg.Enabled {
		log.Info("InfluxDB disabled")
		return nil
	}

	client, err := influxdb.Connect(cfg)
	if err != nil {
		log.Warn("InfluxDB unavailable, continuing without it", "error", err)
		return nil
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client
}

// newQuotaReporter samples the SwitchBot quota into whichever of MQTT and
// InfluxDB is available. Returns nil when neither is.
func newQuotaReporter(orch *orchestrator.Orchestrator, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) *notify.QuotaReporter {
	rc := notify.QuotaReporterConfig{
		Vendor: device.VendorSwitchBot,
		Stats:  orch.RateLimitStats,
		Logger: log.Component("quota"),
	}
	// Assign only non-nil clients so the interfaces stay nil.
	if mqttClient != nil {
		rc.Publisher = mqttClient
	}
	if influxClient != nil {
		rc.Recorder = influxClient
	}
	if rc.Publisher == nil && rc.Recorder == nil {
		return nil
	}
	return notify.NewQuotaReporter(rc)
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
