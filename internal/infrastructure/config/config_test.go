package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  id: "test-vehicle"
api:
  host: "127.0.0.1"
  port: 9000
ml:
  url: "http://ml.local:8001"
  timeout: 5
nlp:
  websocket_threshold: 0.25
vehicle:
  defaults:
    temperature: 21
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ID != "test-vehicle" {
		t.Errorf("Server.ID = %q, want %q", cfg.Server.ID, "test-vehicle")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.ML.URL != "http://ml.local:8001" {
		t.Errorf("ML.URL = %q", cfg.ML.URL)
	}
	if cfg.NLP.WebSocketThreshold != 0.25 {
		t.Errorf("NLP.WebSocketThreshold = %v, want 0.25", cfg.NLP.WebSocketThreshold)
	}
	// Untouched sections keep their defaults.
	if cfg.NLP.HTTPThreshold != 0.5 {
		t.Errorf("NLP.HTTPThreshold = %v, want default 0.5", cfg.NLP.HTTPThreshold)
	}
	if cfg.Vehicle.Defaults.Temperature != 21 {
		t.Errorf("Vehicle.Defaults.Temperature = %v, want 21", cfg.Vehicle.Defaults.Temperature)
	}
	if cfg.WebSocket.HeartbeatInterval != 30 {
		t.Errorf("WebSocket.HeartbeatInterval = %d, want 30", cfg.WebSocket.HeartbeatInterval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.API.Port != 8000 {
		t.Errorf("API.Port = %d, want 8000", cfg.API.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
server:
  id: ""
api:
  port: 8000
`)

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected validation error for empty server.id, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VEHICLE_API_PORT", "9100")
	t.Setenv("VEHICLE_ML_URL", "http://override:8001")
	t.Setenv("VEHICLE_FRONTEND_URL", "https://app.example.com")
	t.Setenv("VEHICLE_OPENAI_API_KEY", "sk-test")
	t.Setenv("VEHICLE_ENABLE_ML_FALLBACK", "false")
	t.Setenv("VEHICLE_DEFAULT_VOLUME", "35")
	t.Setenv("VEHICLE_LOG_FILE", "/tmp/vehicle.log")

	cfg, err := Load(writeConfig(t, "server:\n  id: env-test\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}
	if cfg.ML.URL != "http://override:8001" {
		t.Errorf("ML.URL = %q", cfg.ML.URL)
	}
	found := false
	for _, o := range cfg.API.CORS.AllowedOrigins {
		if o == "https://app.example.com" {
			found = true
		}
	}
	if !found {
		t.Errorf("AllowedOrigins = %v, missing frontend URL", cfg.API.CORS.AllowedOrigins)
	}
	if cfg.Speech.APIKey != "sk-test" {
		t.Errorf("Speech.APIKey = %q", cfg.Speech.APIKey)
	}
	if cfg.Features.MLFallback {
		t.Error("Features.MLFallback = true, want false")
	}
	if cfg.Vehicle.Defaults.Volume != 35 {
		t.Errorf("Vehicle.Defaults.Volume = %d, want 35", cfg.Vehicle.Defaults.Volume)
	}
	if cfg.Logging.Output != "file" || cfg.Logging.File.Path != "/tmp/vehicle.log" {
		t.Errorf("Logging = %+v, want file output", cfg.Logging)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.NLP.HTTPThreshold = 1.5 },
			wantErr: "nlp.http_threshold",
		},
		{
			name:    "unknown cache backend",
			mutate:  func(c *Config) { c.NLP.Cache.Backend = "memcached" },
			wantErr: "nlp.cache.backend",
		},
		{
			name: "redis without address",
			mutate: func(c *Config) {
				c.NLP.Cache.Backend = "redis"
				c.NLP.Cache.Redis.Address = ""
			},
			wantErr: "nlp.cache.redis.address",
		},
		{
			name:    "default temperature out of range",
			mutate:  func(c *Config) { c.Vehicle.Defaults.Temperature = 40 },
			wantErr: "vehicle.defaults.temperature",
		},
		{
			name: "sidecar without command",
			mutate: func(c *Config) {
				c.ML.Sidecar.Enabled = true
			},
			wantErr: "ml.sidecar.command",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "tls without certificate",
			mutate:  func(c *Config) { c.API.TLS.Enabled = true },
			wantErr: "api.tls",
		},
		{
			name:    "unknown log output",
			mutate:  func(c *Config) { c.Logging.Output = "syslog" },
			wantErr: "logging.output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.ID = ""
	cfg.API.Port = 0
	cfg.ML.URL = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil, want error")
	}
	for _, want := range []string{"server.id", "api.port", "ml.url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q missing %q", err, want)
		}
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := &Config{API: APIConfig{Timeouts: APITimeoutConfig{Read: 10, Write: 20, Idle: 30}}}

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
