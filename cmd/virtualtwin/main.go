// Virtual Twin - Prius Gen 2 car computer
//
// This is the main entry point for the virtual twin engine. It mirrors the
// car's buses into one versioned state, runs the vehicle rules on every
// change and drives the AVC-LAN and satellite commands back to the car.
//
// Optional surfaces:
//   - HTTP API with WebSocket state streaming
//   - MQTT state mirror and remote commands
//   - InfluxDB energy and vehicle telemetry
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/api"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/infrastructure/config"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/infrastructure/database"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/infrastructure/influxdb"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/infrastructure/logging"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/infrastructure/metrics"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/infrastructure/mqtt"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/settings"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/telemetry"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/transport"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/twin"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"

	// settingsFlushInterval paces preference saves.
	settingsFlushInterval = 2 * time.Second

	// statsInterval paces the MQTT stats message.
	statsInterval = 10 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting virtual twin",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"vehicle", cfg.Vehicle.Name,
		"mode", cfg.Mode,
	)

	db, err := database.Open(ctx, cfg.Database)
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
	log.Info("database ready", "path", db.Path())

	repo := settings.NewSQLiteRepository(db.DB)
	saved, err := repo.Load(ctx)
	if err != nil {
		log.Warn("loading settings failed, using defaults", "error", err)
		saved = settings.Defaults()
	}

	tw, err := twin.New(twinConfig(cfg), twin.Deps{Logger: log.Component("twin")})
	if err != nil {
		return fmt.Errorf("creating twin: %w", err)
	}
	restored := settings.Apply(tw.Store(), saved)
	log.Info("settings restored", "slices", restored.String())

	persister := settings.NewPersister(tw.Store(), repo, saved, log.Component("settings"))
	persister.Start()
	defer persister.Stop()

	if err := tw.Start(ctx); err != nil {
		return fmt.Errorf("starting twin: %w", err)
	}
	defer func() {
		log.Info("stopping twin")
		if stopErr := tw.Stop(); stopErr != nil {
			log.Error("error stopping twin", "error", stopErr)
		}
	}()
	log.Info("twin started", "session", tw.Session(), "rules", len(tw.Rules()))

	checks := map[string]api.HealthChecker{"database": db}
	loop := &appLoop{twin: tw, logger: log.Component("loop")}

	if cfg.MQTT.Enabled {
		mqttClient, pub, err := startMQTT(cfg, tw, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing MQTT connection")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		defer pub.Stop()
		checks["mqtt"] = mqttClient
		loop.publisher = pub
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB, map[string]string{
			"vehicle": cfg.Vehicle.Name,
			"session": tw.Session(),
		})
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

		recorder := telemetry.NewInfluxRecorder(tw.Store(), influxClient, telemetry.DefaultRecordInterval)
		recorder.Start()
		defer recorder.Stop()
		checks["influxdb"] = influxClient
		loop.recorder = recorder
	} else {
		log.Info("InfluxDB disabled")
	}

	registry := metrics.NewRegistry()
	if err := registry.Register(twin.NewCollector(tw)); err != nil {
		return fmt.Errorf("registering twin metrics: %w", err)
	}

	if cfg.API.Enabled {
		srv, err := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log,
			Twin:    tw,
			Store:   tw.Store(),
			Metrics: registry.Handler(),
			Checks:  checks,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, running app loop",
		"tick_interval", cfg.TickInterval(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx, cfg.TickInterval())
	})
	g.Go(func() error {
		return persister.Run(gctx, settingsFlushInterval)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	// Deferred calls run in reverse: API, InfluxDB, MQTT, twin, settings, database.
	log.Info("virtual twin stopped")
	return nil
}

// startMQTT connects to the broker and wires the state mirror and the
// remote command subscriber.
func startMQTT(cfg *config.Config, tw *twin.Twin, log *logging.Logger) (*mqtt.Client, *telemetry.Publisher, error) {
	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix, cfg.Vehicle.Name)

	client, err := mqtt.Connect(cfg.MQTT, topics)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	pub := telemetry.NewPublisher(tw.Store(), client, topics, log.Component("telemetry"))
	pub.Start()

	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		pub.MarkAll()
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	//nolint:gosec // QoS validated to 0..2 by config
	commands := telemetry.NewCommandSubscriber(client, tw, topics, byte(cfg.MQTT.QoS), log.Component("commands"))
	if err := commands.Start(); err != nil {
		pub.Stop()
		_ = client.Close()
		return nil, nil, fmt.Errorf("subscribing to commands: %w", err)
	}
	log.Info("MQTT commands subscribed", "topic", topics.AllCommands())

	return client, pub, nil
}

// twinConfig maps the file configuration onto the twin.
func twinConfig(cfg *config.Config) twin.Config {
	return twin.Config{
		Mode:    twin.Mode(cfg.Mode),
		Vehicle: cfg.Vehicle.Name,
		Link: transport.LinkConfig{
			Port:           cfg.Transport.Port,
			BaudRate:       cfg.Transport.BaudRate,
			AutoReconnect:  cfg.Transport.AutoReconnect,
			ReconnectDelay: cfg.ReconnectDelay(),
			ReadTimeout:    cfg.ReadTimeout(),
			InboundQueue:   cfg.Transport.QueueSize,
			OutboundQueue:  cfg.Transport.QueueSize / 4, //nolint:mnd // quarter of inbound
		},
		Replay: transport.ReplayConfig{
			Path:     cfg.Replay.File,
			Speed:    cfg.Replay.Speed,
			Loop:     cfg.Replay.Loop,
			Realtime: cfg.Replay.Realtime,
		},
		UDP:              udpConfig(cfg.UDP),
		MaxPerTick:       cfg.Engine.MaxPerTick,
		MaxCascadeDepth:  cfg.Engine.MaxCascadeDepth,
		DiagPollInterval: cfg.DiagPollInterval(),
		RemoteQueue:      cfg.Engine.RemoteQueue,
	}
}

// udpConfig maps the UDP mirror targets. Disabled maps to no targets.
func udpConfig(c config.UDPConfig) transport.UDPConfig {
	if !c.Enabled {
		return transport.UDPConfig{}
	}
	out := transport.UDPConfig{Targets: make([]transport.UDPTarget, 0, len(c.Targets))}
	for _, t := range c.Targets {
		target := transport.UDPTarget{Address: net.JoinHostPort(t.Host, strconv.Itoa(t.Port))}
		for _, ch := range t.Channels {
			target.Channels = append(target.Channels, transport.Channel(ch))
		}
		out.Targets = append(out.Targets, target)
	}
	return out
}

// loadConfig reads path, falling back to built-in defaults when the
// default path is absent.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		return cfg, cfg.Validate()
	}
	return nil, err
}

// getConfigPath returns the configuration file path.
// Uses VIRTUALTWIN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VIRTUALTWIN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
