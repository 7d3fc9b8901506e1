package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for ParamBridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Node       NodeConfig        `yaml:"node"`
	Store      StoreConfig       `yaml:"store"`
	MQTT       MQTTConfig        `yaml:"mqtt"`
	Registry   RegistryConfig    `yaml:"registry"`
	History    HistoryConfig     `yaml:"history"`
	Logging    LoggingConfig     `yaml:"logging"`
	Parameters []ParameterConfig `yaml:"parameters"`
}

// NodeConfig identifies this device/node.
type NodeConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// StoreConfig contains settings for the SQLite-backed key-value store.
type StoreConfig struct {
	// Path is the filesystem path to the SQLite database file.
	Path string `yaml:"path"`

	// Namespace scopes all keys written by this node. Maximum 15 characters.
	Namespace string `yaml:"namespace"`

	WALMode     bool `yaml:"wal_mode"`
	BusyTimeout int  `yaml:"busy_timeout"`

	// MaxEntries is the nominal entry capacity reported by Stats().
	MaxEntries int `yaml:"max_entries"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// RegistryConfig contains parameter registry behaviour settings.
type RegistryConfig struct {
	// Prefix is the MQTT topic prefix for parameter commands and status
	// (e.g. "parambridge/params").
	Prefix string `yaml:"prefix"`

	// NestedGroup names the one group whose members are published with
	// two-level nesting (split by their second path segment).
	NestedGroup string `yaml:"nested_group"`

	// ProcessInterval is how often the command queue is drained (milliseconds).
	ProcessInterval int `yaml:"process_interval"`

	// PublishInterval is how often an in-flight async publish is advanced
	// (milliseconds).
	PublishInterval int `yaml:"publish_interval"`

	// AutoSeedDefaults persists current in-memory values on first boot when
	// the store contains no parameters.
	AutoSeedDefaults bool `yaml:"auto_seed_defaults"`
}

// HistoryConfig contains InfluxDB parameter-change history settings.
type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ParameterConfig declares one parameter the daemon registers at startup.
// The daemon owns the backing storage; defaults and constraints come from
// this declaration.
type ParameterConfig struct {
	// Name is the hierarchical parameter name (e.g. "heating/targetTemp").
	Name string `yaml:"name"`

	// Type is one of: bool, int, float, string, blob.
	Type string `yaml:"type"`

	Description string `yaml:"description"`

	// Access is "rw" (default) or "ro".
	Access string `yaml:"access"`

	// Default is the initial in-memory value before the store is consulted.
	Default any `yaml:"default"`

	// Min and Max bound int and float parameters.
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`

	// MaxLen is the capacity for string parameters (bytes, including the
	// implicit terminator slot carried over from the wire contract).
	MaxLen int `yaml:"max_len"`

	// Size is the fixed byte size for blob parameters.
	Size int `yaml:"size"`
}

// Parameter type names accepted in ParameterConfig.Type.
const (
	TypeBool   = "bool"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeString = "string"
	TypeBlob   = "blob"
)

// maxNamespaceLen is the store namespace length limit.
const maxNamespaceLen = 15

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PARAMBRIDGE_SECTION_KEY
// For example: PARAMBRIDGE_STORE_PATH, PARAMBRIDGE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			ID:   "node-001",
			Name: "ParamBridge",
		},
		Store: StoreConfig{
			Path:        "./data/parambridge.db",
			Namespace:   "params",
			WALMode:     true,
			BusyTimeout: 5,
			MaxEntries:  1024,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "parambridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Registry: RegistryConfig{
			Prefix:           "parambridge/params",
			NestedGroup:      "pid",
			ProcessInterval:  100,
			PublishInterval:  200,
			AutoSeedDefaults: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PARAMBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Store
	if v := os.Getenv("PARAMBRIDGE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("PARAMBRIDGE_STORE_NAMESPACE"); v != "" {
		cfg.Store.Namespace = v
	}

	// MQTT
	if v := os.Getenv("PARAMBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PARAMBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PARAMBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Registry
	if v := os.Getenv("PARAMBRIDGE_REGISTRY_PREFIX"); v != "" {
		cfg.Registry.Prefix = v
	}

	// History
	if v := os.Getenv("PARAMBRIDGE_HISTORY_TOKEN"); v != "" {
		cfg.History.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Node validation
	if c.Node.ID == "" {
		errs = append(errs, "node.id is required")
	}

	// Store validation
	if c.Store.Path == "" {
		errs = append(errs, "store.path is required")
	}
	if c.Store.Namespace == "" {
		errs = append(errs, "store.namespace is required")
	} else if len(c.Store.Namespace) > maxNamespaceLen {
		errs = append(errs, fmt.Sprintf("store.namespace must be at most %d characters", maxNamespaceLen))
	}
	if c.Store.MaxEntries < 1 {
		errs = append(errs, "store.max_entries must be positive")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Registry validation
	if c.Registry.Prefix == "" {
		errs = append(errs, "registry.prefix is required")
	}
	if strings.HasSuffix(c.Registry.Prefix, "/") {
		errs = append(errs, "registry.prefix must not end with '/'")
	}
	if c.Registry.ProcessInterval < 1 {
		errs = append(errs, "registry.process_interval must be positive")
	}
	if c.Registry.PublishInterval < 1 {
		errs = append(errs, "registry.publish_interval must be positive")
	}

	// History validation (only when enabled)
	if c.History.Enabled {
		if c.History.URL == "" {
			errs = append(errs, "history.url is required when history is enabled")
		}
		if c.History.Bucket == "" {
			errs = append(errs, "history.bucket is required when history is enabled")
		}
	}

	// Parameter declarations
	for i, p := range c.Parameters {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("parameters[%d].name is required", i))
			continue
		}
		switch p.Type {
		case TypeBool, TypeInt, TypeFloat:
		case TypeString:
			if p.MaxLen < 1 {
				errs = append(errs, fmt.Sprintf("parameters[%d] (%s): max_len must be positive for string parameters", i, p.Name))
			}
		case TypeBlob:
			if p.Size < 1 {
				errs = append(errs, fmt.Sprintf("parameters[%d] (%s): size must be positive for blob parameters", i, p.Name))
			}
		default:
			errs = append(errs, fmt.Sprintf("parameters[%d] (%s): unknown type %q", i, p.Name, p.Type))
		}
		switch p.Access {
		case "", "ro", "rw":
		default:
			errs = append(errs, fmt.Sprintf("parameters[%d] (%s): access must be \"ro\" or \"rw\"", i, p.Name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetProcessInterval returns the command drain interval as a Duration.
func (c *Config) GetProcessInterval() time.Duration {
	return time.Duration(c.Registry.ProcessInterval) * time.Millisecond
}

// GetPublishInterval returns the async publish drive interval as a Duration.
func (c *Config) GetPublishInterval() time.Duration {
	return time.Duration(c.Registry.PublishInterval) * time.Millisecond
}
