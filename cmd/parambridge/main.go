// ParamBridge - MQTT parameter registry daemon
//
// ParamBridge binds a set of declared, typed parameters to a durable
// SQLite-backed key-value store and exposes them over MQTT: set/get/list/save
// commands in, JSON status documents out. It is designed for small
// device-side deployments where configuration must survive restarts and be
// adjustable remotely.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tannerhall/parambridge/internal/infrastructure/config"
	"github.com/tannerhall/parambridge/internal/infrastructure/history"
	"github.com/tannerhall/parambridge/internal/infrastructure/logging"
	"github.com/tannerhall/parambridge/internal/infrastructure/mqtt"
	"github.com/tannerhall/parambridge/internal/infrastructure/store"
	"github.com/tannerhall/parambridge/internal/param"
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
	// Optional .env file for local development; absence is not an error.
	_ = godotenv.Load()

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
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
	log.Info("starting ParamBridge",
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

	// Open the key-value store
	kv, err := store.Open(store.Config{
		Path:        cfg.Store.Path,
		Namespace:   cfg.Store.Namespace,
		WALMode:     cfg.Store.WALMode,
		BusyTimeout: cfg.Store.BusyTimeout,
		MaxEntries:  cfg.Store.MaxEntries,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		log.Info("closing store")
		if closeErr := kv.Close(); closeErr != nil {
			log.Error("error closing store", "error", closeErr)
		}
	}()
	log.Info("store opened", "path", cfg.Store.Path, "namespace", cfg.Store.Namespace)

	// Build the registry and bind declared parameters
	registry := param.NewRegistry(kv, cfg.Registry.Prefix)
	registry.SetLogger(log)
	registry.SetNestedGroup(cfg.Registry.NestedGroup)

	if err := bindParameters(registry, cfg.Parameters); err != nil {
		return fmt.Errorf("binding parameters: %w", err)
	}
	log.Info("parameters bound", "count", registry.Count())

	// Load stored values (seeding defaults on first boot if configured)
	if err := registry.Begin(cfg.Registry.AutoSeedDefaults); err != nil {
		return fmt.Errorf("loading parameters: %w", err)
	}
	defer func() {
		log.Info("saving parameters")
		if endErr := registry.End(); endErr != nil {
			log.Error("error saving parameters", "error", endErr)
		}
	}()

	// Connect to MQTT broker
	topics := mqtt.Topics{Prefix: cfg.Registry.Prefix}
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics)
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

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	registry.SetTransport(mqttClient)

	// Route inbound command topics into the registry's queue
	for _, filter := range topics.CommandFilters() {
		if err := mqttClient.Subscribe(filter, byte(cfg.MQTT.QoS), func(topic string, payload []byte) error {
			registry.HandleCommand(topic, payload)
			return nil
		}); err != nil {
			return fmt.Errorf("subscribing to %s: %w", filter, err)
		}
	}
	log.Info("command topics subscribed", "filters", len(topics.CommandFilters()))

	// Connect the parameter-change history recorder (optional)
	var recorder *history.Recorder
	if cfg.History.Enabled {
		recorder, err = history.Connect(cfg.History)
		if err != nil {
			return fmt.Errorf("connecting to history backend: %w", err)
		}
		defer func() {
			log.Info("closing history connection")
			if closeErr := recorder.Close(); closeErr != nil {
				log.Error("error closing history", "error", closeErr)
			}
		}()
		recorder.SetOnError(func(err error) {
			log.Error("history write error", "error", err)
		})
		registry.SetChangeRecorder(func(name string, kind param.Kind, value any) {
			recorder.WriteParamChange(name, kind.String(), value)
		})
		log.Info("history connected", "url", cfg.History.URL, "bucket", cfg.History.Bucket)
	} else {
		log.Info("history disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, kv, mqttClient, recorder); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Announce the full parameter set on startup
	registry.PublishAll()

	log.Info("initialisation complete, serving parameters",
		"prefix", cfg.Registry.Prefix,
		"node", cfg.Node.ID,
	)

	// Drive loop: drain commands and advance async publishes until shutdown
	processTicker := time.NewTicker(cfg.GetProcessInterval())
	defer processTicker.Stop()
	publishTicker := time.NewTicker(cfg.GetPublishInterval())
	defer publishTicker.Stop()

	for {
		select {
		case <-processTicker.C:
			registry.ProcessCommands()
		case <-publishTicker.C:
			registry.ContinueAsyncPublish()
		case <-ctx.Done():
			log.Info("shutdown signal received, cleaning up")
			log.Info("ParamBridge stopped")
			return nil
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses PARAMBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PARAMBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// bindParameters allocates daemon-owned variables for each declared
// parameter and registers them. Numeric declarations without explicit
// bounds get the full range of their type.
func bindParameters(registry *param.Registry, decls []config.ParameterConfig) error {
	for _, decl := range decls {
		access := param.ReadWrite
		if decl.Access == "ro" {
			access = param.ReadOnly
		}

		var err error
		switch decl.Type {
		case config.TypeBool:
			v := new(bool)
			if b, ok := decl.Default.(bool); ok {
				*v = b
			}
			err = registry.RegisterBool(decl.Name, v, decl.Description, access)

		case config.TypeInt:
			v := new(int32)
			switch d := decl.Default.(type) {
			case int:
				*v = int32(d)
			case float64:
				*v = int32(d)
			}
			min, max := int32(math.MinInt32), int32(math.MaxInt32)
			if decl.Min != 0 || decl.Max != 0 {
				min, max = int32(decl.Min), int32(decl.Max)
			}
			err = registry.RegisterInt32(decl.Name, v, min, max, decl.Description, access)

		case config.TypeFloat:
			v := new(float32)
			switch d := decl.Default.(type) {
			case int:
				*v = float32(d)
			case float64:
				*v = float32(d)
			}
			min, max := float32(-math.MaxFloat32), float32(math.MaxFloat32)
			if decl.Min != 0 || decl.Max != 0 {
				min, max = float32(decl.Min), float32(decl.Max)
			}
			err = registry.RegisterFloat32(decl.Name, v, min, max, decl.Description, access)

		case config.TypeString:
			v := new(string)
			if s, ok := decl.Default.(string); ok {
				*v = s
			}
			err = registry.RegisterString(decl.Name, v, decl.MaxLen, decl.Description, access)

		case config.TypeBlob:
			err = registry.RegisterBlob(decl.Name, make([]byte, decl.Size), decl.Description, access)

		default:
			return fmt.Errorf("parameter %q: unknown type %q", decl.Name, decl.Type)
		}
		if err != nil {
			return fmt.Errorf("parameter %q: %w", decl.Name, err)
		}
	}
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, kv *store.Store, mqttClient *mqtt.Client, recorder *history.Recorder) error {
	if err := kv.HealthCheck(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if recorder != nil {
		if err := recorder.HealthCheck(ctx); err != nil {
			return fmt.Errorf("history: %w", err)
		}
	}
	return nil
}
