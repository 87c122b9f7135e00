package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Hub.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site         SiteConfig         `yaml:"site"`
	Database     DatabaseConfig     `yaml:"database"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	API          APIConfig          `yaml:"api"`
	WebSocket    WebSocketConfig    `yaml:"websocket"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
	Integrations IntegrationsConfig `yaml:"integrations"`
	Polling      PollingConfig      `yaml:"polling"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// MQTT is optional; when disabled, device changes are only fanned out over WebSocket.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// CORSConfig lists browser origins allowed to call the API.
// An empty list allows any origin (development).
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
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

// IntegrationsConfig groups the three vendor integrations.
type IntegrationsConfig struct {
	Hue       HueConfig       `yaml:"hue"`
	Nanoleaf  NanoleafConfig  `yaml:"nanoleaf"`
	SwitchBot SwitchBotConfig `yaml:"switchbot"`
}

// HueConfig contains Philips Hue local bridge settings.
type HueConfig struct {
	// BridgeHost is the bridge IP address or hostname. Empty means not configured.
	BridgeHost string `yaml:"bridge_host"`

	// Username is the whitelisted API user created by pressing the link button.
	// Prefer GRAYLOGIC_HUE_USERNAME over storing it in the file.
	Username string `yaml:"username"`

	// Timeout bounds a single bridge request.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`
}

// NanoleafConfig contains Nanoleaf local API settings.
// Paired panels themselves live in the database (nanoleaf_pairings table).
type NanoleafConfig struct {
	// Port is the local API port on each panel controller.
	// Default: 16021
	Port int `yaml:"port"`

	// Timeout bounds a single panel request.
	// Default: 3s
	Timeout time.Duration `yaml:"timeout"`
}

// SwitchBotConfig contains SwitchBot cloud API settings.
type SwitchBotConfig struct {
	// Token and Secret come from the SwitchBot app developer options.
	// Prefer GRAYLOGIC_SWITCHBOT_TOKEN / GRAYLOGIC_SWITCHBOT_SECRET.
	Token  string `yaml:"token"`
	Secret string `yaml:"secret"`

	// BaseURL is the cloud API root.
	// Default: "https://api.switch-bot.com"
	BaseURL string `yaml:"base_url"`

	// DailyLimit is the vendor's hard daily request quota.
	// Default: 10000
	DailyLimit int `yaml:"daily_limit"`

	// SafetyFactor scales DailyLimit to the budget actually spent, in (0,1].
	// Default: 0.8
	SafetyFactor float64 `yaml:"safety_factor"`

	// Timeout bounds a single cloud request.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// PollingConfig contains per-vendor poll intervals.
type PollingConfig struct {
	HueInterval       time.Duration `yaml:"hue_interval"`
	NanoleafInterval  time.Duration `yaml:"nanoleaf_interval"`
	SwitchBotInterval time.Duration `yaml:"switchbot_interval"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_SWITCHBOT_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
// Used when no config file exists (first boot, containers configured purely by env).
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic Hub",
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-hub.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-hub",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Integrations: IntegrationsConfig{
			Hue: HueConfig{
				Timeout: 5 * time.Second,
			},
			Nanoleaf: NanoleafConfig{
				Port:    16021,
				Timeout: 3 * time.Second,
			},
			SwitchBot: SwitchBotConfig{
				BaseURL:      "https://api.switch-bot.com",
				DailyLimit:   10000,
				SafetyFactor: 0.8,
				Timeout:      10 * time.Second,
			},
		},
		Polling: PollingConfig{
			HueInterval:       2500 * time.Millisecond,
			NanoleafInterval:  4000 * time.Millisecond,
			SwitchBotInterval: 120 * time.Second,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
		cfg.MQTT.Enabled = true
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Integrations
	if v := os.Getenv("GRAYLOGIC_HUE_BRIDGE_HOST"); v != "" {
		cfg.Integrations.Hue.BridgeHost = v
	}
	if v := os.Getenv("GRAYLOGIC_HUE_USERNAME"); v != "" {
		cfg.Integrations.Hue.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_SWITCHBOT_TOKEN"); v != "" {
		cfg.Integrations.SwitchBot.Token = v
	}
	if v := os.Getenv("GRAYLOGIC_SWITCHBOT_SECRET"); v != "" {
		cfg.Integrations.SwitchBot.Secret = v
	}
}

// Validate checks the configuration for errors.
//
// Vendor credentials are deliberately not required: an integration without
// credentials is "not configured" and its poller skips silently.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	sb := c.Integrations.SwitchBot
	if sb.DailyLimit < 1 {
		errs = append(errs, "integrations.switchbot.daily_limit must be positive")
	}
	if sb.SafetyFactor <= 0 || sb.SafetyFactor > 1 {
		errs = append(errs, "integrations.switchbot.safety_factor must be in (0, 1]")
	}
	if (sb.Token == "") != (sb.Secret == "") {
		errs = append(errs, "integrations.switchbot.token and secret must be set together")
	}

	if c.Polling.HueInterval <= 0 || c.Polling.NanoleafInterval <= 0 || c.Polling.SwitchBotInterval <= 0 {
		errs = append(errs, "polling intervals must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
