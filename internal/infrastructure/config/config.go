package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the traffic relay.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Lights    LightsConfig    `yaml:"lights"`
	HTTP      HTTPConfig      `yaml:"http"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	History   HistoryConfig   `yaml:"history"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	StatusTopic string              `yaml:"status_topic"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig controls the relay's reconnect loop.
//
// Delay is the wait between attempts. When MaxDelay is greater than Delay
// and Multiplier is above 1 the wait grows geometrically up to MaxDelay;
// the defaults give a fixed 5 second retry.
type MQTTReconnectConfig struct {
	Delay         time.Duration `yaml:"delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	Multiplier    float64       `yaml:"multiplier"`
	CheckInterval time.Duration `yaml:"check_interval"`
}

// LightsConfig binds the two light slots to their topics and boot values.
type LightsConfig struct {
	Light1 LightConfig `yaml:"light1"`
	Light2 LightConfig `yaml:"light2"`
}

// LightConfig describes a single light slot.
type LightConfig struct {
	Topic   string `yaml:"topic"`
	Default string `yaml:"default"`
}

// HTTPConfig contains the static UI and REST server settings.
type HTTPConfig struct {
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	StaticDir string            `yaml:"static_dir"`
	Timeouts  HTTPTimeoutConfig `yaml:"timeouts"`
	CORS      CORSConfig        `yaml:"cors"`
}

// HTTPTimeoutConfig contains HTTP timeout settings in seconds.
type HTTPTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
// The WebSocket endpoint listens on its own port, separate from HTTP.
type WebSocketConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Path           string   `yaml:"path"`
	MaxMessageSize int      `yaml:"max_message_size"`
	PingInterval   int      `yaml:"ping_interval"`
	PongTimeout    int      `yaml:"pong_timeout"`
	SendBuffer     int      `yaml:"send_buffer"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// HistoryConfig contains settings for the SQLite transition log.
type HistoryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Path        string        `yaml:"path"`
	WALMode     bool          `yaml:"wal_mode"`
	BusyTimeout int           `yaml:"busy_timeout"`
	Retention   time.Duration `yaml:"retention"`
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TRAFFICRELAY_SECTION_KEY
// For example: TRAFFICRELAY_MQTT_HOST, TRAFFICRELAY_HTTP_PORT
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config populated with the stock values: broker on
// localhost:1883, lights on traffic/light1 and traffic/light2 starting at
// red and green, a fixed 5 second reconnect delay.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "traffic-relay",
			},
			QoS:         0,
			StatusTopic: "traffic/relay/status",
			Reconnect: MQTTReconnectConfig{
				Delay:         5 * time.Second,
				MaxDelay:      5 * time.Second,
				Multiplier:    1,
				CheckInterval: time.Second,
			},
		},
		Lights: LightsConfig{
			Light1: LightConfig{Topic: "traffic/light1", Default: "red"},
			Light2: LightConfig{Topic: "traffic/light2", Default: "green"},
		},
		HTTP: HTTPConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: HTTPTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Host:           "0.0.0.0",
			Port:           8081,
			Path:           "/",
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
			SendBuffer:     64,
		},
		History: HistoryConfig{
			Path:        "./data/traffic-history.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   7 * 24 * time.Hour,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "traffic",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TRAFFICRELAY_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// MQTT
	if v := os.Getenv("TRAFFICRELAY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("TRAFFICRELAY_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRAFFICRELAY_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("TRAFFICRELAY_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("TRAFFICRELAY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("TRAFFICRELAY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// HTTP / WebSocket
	if v := os.Getenv("TRAFFICRELAY_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRAFFICRELAY_HTTP_PORT: %w", err)
		}
		cfg.HTTP.Port = port
	}
	if v := os.Getenv("TRAFFICRELAY_WS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRAFFICRELAY_WS_PORT: %w", err)
		}
		cfg.WebSocket.Port = port
	}
	if v := os.Getenv("TRAFFICRELAY_STATIC_DIR"); v != "" {
		cfg.HTTP.StaticDir = v
	}

	// Storage
	if v := os.Getenv("TRAFFICRELAY_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("TRAFFICRELAY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("TRAFFICRELAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// All problems are collected and reported together so a broken config file
// can be fixed in one pass.
func (c *Config) Validate() error {
	var errs []string

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if !validPort(c.MQTT.Broker.Port) {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.Delay <= 0 {
		errs = append(errs, "mqtt.reconnect.delay must be positive")
	}
	if c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.Delay {
		errs = append(errs, "mqtt.reconnect.max_delay must not be less than mqtt.reconnect.delay")
	}
	if c.MQTT.Reconnect.Multiplier < 1 {
		errs = append(errs, "mqtt.reconnect.multiplier must be at least 1")
	}
	if c.MQTT.Reconnect.CheckInterval <= 0 {
		errs = append(errs, "mqtt.reconnect.check_interval must be positive")
	}

	// Lights
	if c.Lights.Light1.Topic == "" || c.Lights.Light2.Topic == "" {
		errs = append(errs, "lights.light1.topic and lights.light2.topic are required")
	} else if c.Lights.Light1.Topic == c.Lights.Light2.Topic {
		errs = append(errs, "lights.light1.topic and lights.light2.topic must differ")
	}
	if strings.ContainsAny(c.Lights.Light1.Topic+c.Lights.Light2.Topic, "+#") {
		errs = append(errs, "light topics must not contain MQTT wildcards")
	}

	// Listeners
	if !validPort(c.HTTP.Port) {
		errs = append(errs, "http.port must be between 1 and 65535")
	}
	if !validPort(c.WebSocket.Port) {
		errs = append(errs, "websocket.port must be between 1 and 65535")
	}
	if c.HTTP.Port == c.WebSocket.Port && c.HTTP.Host == c.WebSocket.Host {
		errs = append(errs, "http.port and websocket.port must differ")
	}
	if !strings.HasPrefix(c.WebSocket.Path, "/") {
		errs = append(errs, "websocket.path must start with /")
	}
	if c.WebSocket.SendBuffer < 1 {
		errs = append(errs, "websocket.send_buffer must be at least 1")
	}

	// Optional sinks
	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

// BrokerAddress returns host:port of the configured broker.
func (c *Config) BrokerAddress() string {
	return fmt.Sprintf("%s:%d", c.MQTT.Broker.Host, c.MQTT.Broker.Port)
}

// GetReadTimeout returns the HTTP read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.HTTP.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the HTTP write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.HTTP.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the HTTP idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.HTTP.Timeouts.Idle) * time.Second
}
