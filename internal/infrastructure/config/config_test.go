package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes content to a config.yaml in a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
mqtt:
  broker:
    host: "192.168.71.132"
    port: 1883
    client_id: "ESP32ClientPublisherSubscriber"
  reconnect:
    delay: 5s
    max_delay: 5s
lights:
  light1:
    topic: "traffic/light1"
  light2:
    topic: "traffic/light2"
http:
  port: 8080
websocket:
  port: 8081
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "192.168.71.132" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "192.168.71.132")
	}
	if cfg.MQTT.Broker.ClientID != "ESP32ClientPublisherSubscriber" {
		t.Errorf("MQTT.Broker.ClientID = %q", cfg.MQTT.Broker.ClientID)
	}
	if cfg.MQTT.Reconnect.Delay != 5*time.Second {
		t.Errorf("MQTT.Reconnect.Delay = %v, want 5s", cfg.MQTT.Reconnect.Delay)
	}
	// Unset keys keep their defaults
	if cfg.Lights.Light1.Default != "red" {
		t.Errorf("Lights.Light1.Default = %q, want %q", cfg.Lights.Light1.Default, "red")
	}
	if cfg.Lights.Light2.Default != "green" {
		t.Errorf("Lights.Light2.Default = %q, want %q", cfg.Lights.Light2.Default, "green")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
lights:
  light1:
    topic: "traffic/same"
  light2:
    topic: "traffic/same"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error for duplicate topics, got nil")
	}
	if !strings.Contains(err.Error(), "must differ") {
		t.Errorf("Load() error = %v, want mention of duplicate topics", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	configPath := writeConfig(t, `
mqtt:
  broker:
    host: "file-host"
`)

	t.Setenv("TRAFFICRELAY_MQTT_HOST", "env-host")
	t.Setenv("TRAFFICRELAY_MQTT_PORT", "1884")
	t.Setenv("TRAFFICRELAY_MQTT_CLIENT_ID", "env-client")
	t.Setenv("TRAFFICRELAY_HTTP_PORT", "9080")
	t.Setenv("TRAFFICRELAY_WS_PORT", "9081")
	t.Setenv("TRAFFICRELAY_STATIC_DIR", "/srv/www")
	t.Setenv("TRAFFICRELAY_LOG_LEVEL", "debug")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "env-host" {
		t.Errorf("MQTT.Broker.Host = %q, want env-host", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 1884 {
		t.Errorf("MQTT.Broker.Port = %d, want 1884", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Broker.ClientID != "env-client" {
		t.Errorf("MQTT.Broker.ClientID = %q, want env-client", cfg.MQTT.Broker.ClientID)
	}
	if cfg.HTTP.Port != 9080 || cfg.WebSocket.Port != 9081 {
		t.Errorf("ports = %d/%d, want 9080/9081", cfg.HTTP.Port, cfg.WebSocket.Port)
	}
	if cfg.HTTP.StaticDir != "/srv/www" {
		t.Errorf("HTTP.StaticDir = %q, want /srv/www", cfg.HTTP.StaticDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverrideBadPort(t *testing.T) {
	configPath := writeConfig(t, "mqtt: {}\n")
	t.Setenv("TRAFFICRELAY_MQTT_PORT", "not-a-number")

	if _, err := Load(configPath); err == nil {
		t.Error("Load() expected error for non-numeric port override")
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.MQTT.Reconnect.Delay != 5*time.Second {
		t.Errorf("default reconnect delay = %v, want 5s", cfg.MQTT.Reconnect.Delay)
	}
	if cfg.Lights.Light1.Topic != "traffic/light1" || cfg.Lights.Light2.Topic != "traffic/light2" {
		t.Errorf("default topics = %q/%q", cfg.Lights.Light1.Topic, cfg.Lights.Light2.Topic)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(_ *Config) {},
			wantErr: false,
		},
		{
			name:    "missing broker host",
			mutate:  func(c *Config) { c.MQTT.Broker.Host = "" },
			wantErr: true,
		},
		{
			name:    "missing client id",
			mutate:  func(c *Config) { c.MQTT.Broker.ClientID = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "zero reconnect delay",
			mutate:  func(c *Config) { c.MQTT.Reconnect.Delay = 0 },
			wantErr: true,
		},
		{
			name:    "max delay below delay",
			mutate:  func(c *Config) { c.MQTT.Reconnect.MaxDelay = time.Second },
			wantErr: true,
		},
		{
			name:    "wildcard topic",
			mutate:  func(c *Config) { c.Lights.Light1.Topic = "traffic/+" },
			wantErr: true,
		},
		{
			name:    "empty light topic",
			mutate:  func(c *Config) { c.Lights.Light2.Topic = "" },
			wantErr: true,
		},
		{
			name:    "empty default is allowed",
			mutate:  func(c *Config) { c.Lights.Light1.Default = "" },
			wantErr: false,
		},
		{
			name:    "http port out of range",
			mutate:  func(c *Config) { c.HTTP.Port = 70000 },
			wantErr: true,
		},
		{
			name: "http and websocket share a port",
			mutate: func(c *Config) {
				c.WebSocket.Port = c.HTTP.Port
			},
			wantErr: true,
		},
		{
			name:    "websocket path without slash",
			mutate:  func(c *Config) { c.WebSocket.Path = "ws" },
			wantErr: true,
		},
		{
			name: "history enabled without path",
			mutate: func(c *Config) {
				c.History.Enabled = true
				c.History.Path = ""
			},
			wantErr: true,
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.Org = "org"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := Default()
	cfg.HTTP.Timeouts = HTTPTimeoutConfig{Read: 10, Write: 20, Idle: 30}

	if got := cfg.GetReadTimeout(); got != 10*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 10s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 20*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 20s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 30*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 30s", got)
	}
}

func TestConfig_BrokerAddress(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Broker.Host = "10.0.0.5"
	cfg.MQTT.Broker.Port = 1884

	if got := cfg.BrokerAddress(); got != "10.0.0.5:1884" {
		t.Errorf("BrokerAddress() = %q, want 10.0.0.5:1884", got)
	}
}
