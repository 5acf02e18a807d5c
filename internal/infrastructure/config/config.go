package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Vehicle AI Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	ML        MLConfig        `yaml:"ml"`
	NLP       NLPConfig       `yaml:"nlp"`
	Speech    SpeechConfig    `yaml:"speech"`
	Vehicle   VehicleConfig   `yaml:"vehicle"`
	Features  FeaturesConfig  `yaml:"features"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig identifies this backend instance.
type ServerConfig struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Debug bool   `yaml:"debug"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
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
type WebSocketConfig struct {
	Path              string `yaml:"path"`
	MaxMessageSize    int    `yaml:"max_message_size"`
	HeartbeatInterval int    `yaml:"heartbeat_interval"`
	WriteTimeout      int    `yaml:"write_timeout"`
	SendBuffer        int    `yaml:"send_buffer"`
}

// MLConfig describes the remote command parser service.
type MLConfig struct {
	URL            string        `yaml:"url"`
	Timeout        int           `yaml:"timeout"`
	HealthTimeout  int           `yaml:"health_timeout"`
	HealthInterval int           `yaml:"health_interval"`
	Sidecar        SidecarConfig `yaml:"sidecar"`
}

// SidecarConfig describes an ML parser process supervised by the core.
type SidecarConfig struct {
	Enabled bool     `yaml:"enabled"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	WorkDir string   `yaml:"work_dir"`

	// RestartDelay is the wait before restarting a crashed sidecar (seconds).
	RestartDelay int `yaml:"restart_delay"`

	// MaxRestarts limits restart attempts. 0 means unlimited.
	MaxRestarts int `yaml:"max_restarts"`
}

// NLPConfig controls command gating and parse caching.
type NLPConfig struct {
	// WebSocketThreshold is the minimum confidence for voice_command frames.
	WebSocketThreshold float64 `yaml:"websocket_threshold"`

	// HTTPThreshold is the minimum confidence for /api/nlp requests.
	HTTPThreshold float64 `yaml:"http_threshold"`

	Cache CacheConfig `yaml:"cache"`
}

// CacheConfig selects the parse-result cache backend.
type CacheConfig struct {
	Backend string      `yaml:"backend"` // memory, redis, none
	Size    int         `yaml:"size"`
	TTL     int         `yaml:"ttl"` // seconds
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// SpeechConfig describes the speech-to-text provider.
type SpeechConfig struct {
	Provider string `yaml:"provider"`
	URL      string `yaml:"url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	Timeout  int    `yaml:"timeout"`
}

// VehicleConfig identifies the simulated vehicle and its start-up state.
type VehicleConfig struct {
	ID       string                `yaml:"id"`
	Defaults VehicleDefaultsConfig `yaml:"defaults"`
}

// VehicleDefaultsConfig overrides the factory defaults applied at start-up and reset.
type VehicleDefaultsConfig struct {
	Temperature float64 `yaml:"temperature"`
	FanSpeed    int     `yaml:"fan_speed"`
	Volume      int     `yaml:"volume"`
}

// FeaturesConfig toggles optional surfaces.
type FeaturesConfig struct {
	VoiceProcessing bool `yaml:"voice_processing"`
	WebSocket       bool `yaml:"websocket"`
	MLFallback      bool `yaml:"ml_fallback"`
}

// DatabaseConfig contains SQLite settings for the command journal.
type DatabaseConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	WALMode       bool   `yaml:"wal_mode"`
	BusyTimeout   int    `yaml:"busy_timeout"`
	RetentionDays int    `yaml:"retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
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

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VEHICLE_SECTION_KEY
// For example: VEHICLE_API_PORT, VEHICLE_ML_URL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// LoadOrDefault behaves like Load but falls back to defaults plus environment
// overrides when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		applyEnvOverrides(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating config: %w", err)
		}
		return cfg, nil
	}
	return Load(path)
}

// Default returns a Config with the factory defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ID:   "vehicle-ai-001",
			Name: "Vehicle AI Backend",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  120,
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{
					"http://localhost:3000",
					"http://localhost:5173",
					"http://localhost:8080",
				},
			},
		},
		WebSocket: WebSocketConfig{
			Path:              "/ws",
			MaxMessageSize:    8192,
			HeartbeatInterval: 30,
			WriteTimeout:      10,
			SendBuffer:        64,
		},
		ML: MLConfig{
			URL:            "http://localhost:8001",
			Timeout:        30,
			HealthTimeout:  5,
			HealthInterval: 60,
			Sidecar: SidecarConfig{
				RestartDelay: 5,
				MaxRestarts:  10,
			},
		},
		NLP: NLPConfig{
			WebSocketThreshold: 0.3,
			HTTPThreshold:      0.5,
			Cache: CacheConfig{
				Backend: "memory",
				Size:    256,
				TTL:     300,
				Redis: RedisConfig{
					Address: "localhost:6379",
					Prefix:  "vehicle:nlp:",
				},
			},
		},
		Speech: SpeechConfig{
			Provider: "openai",
			URL:      "https://api.openai.com/v1",
			Model:    "whisper-1",
			Language: "en",
			Timeout:  30,
		},
		Vehicle: VehicleConfig{
			ID: "vehicle-001",
			Defaults: VehicleDefaultsConfig{
				Temperature: 22,
				FanSpeed:    3,
				Volume:      50,
			},
		},
		Features: FeaturesConfig{
			VoiceProcessing: true,
			WebSocket:       true,
			MLFallback:      true,
		},
		Database: DatabaseConfig{
			Path:          "./data/vehicle.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "vehicle-ai-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "vehicle",
			Bucket:        "vehicle_state",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/vehicle_backend.log",
				MaxSize:    64,
				MaxBackups: 5,
				MaxAge:     14,
				Compress:   true,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VEHICLE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// API
	if v := os.Getenv("VEHICLE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v, ok := envInt("VEHICLE_API_PORT"); ok {
		cfg.API.Port = v
	}
	if v := os.Getenv("VEHICLE_ALLOWED_ORIGINS"); v != "" {
		cfg.API.CORS.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("VEHICLE_FRONTEND_URL"); v != "" {
		cfg.API.CORS.AllowedOrigins = appendUnique(cfg.API.CORS.AllowedOrigins, v)
	}
	if v, ok := envBool("VEHICLE_DEBUG"); ok {
		cfg.Server.Debug = v
	}

	// WebSocket
	if v, ok := envInt("VEHICLE_WEBSOCKET_HEARTBEAT_INTERVAL"); ok {
		cfg.WebSocket.HeartbeatInterval = v
	}

	// ML parser
	if v := os.Getenv("VEHICLE_ML_URL"); v != "" {
		cfg.ML.URL = v
	}
	if v, ok := envInt("VEHICLE_ML_TIMEOUT"); ok {
		cfg.ML.Timeout = v
	}

	// NLP cache
	if v := os.Getenv("VEHICLE_NLP_CACHE_BACKEND"); v != "" {
		cfg.NLP.Cache.Backend = v
	}
	if v := os.Getenv("VEHICLE_REDIS_ADDRESS"); v != "" {
		cfg.NLP.Cache.Redis.Address = v
	}
	if v := os.Getenv("VEHICLE_REDIS_PASSWORD"); v != "" {
		cfg.NLP.Cache.Redis.Password = v
	}

	// Speech - the API key should only ever come from the environment
	if v := os.Getenv("VEHICLE_OPENAI_API_KEY"); v != "" {
		cfg.Speech.APIKey = v
	}

	// Vehicle defaults
	if v, ok := envFloat("VEHICLE_DEFAULT_TEMPERATURE"); ok {
		cfg.Vehicle.Defaults.Temperature = v
	}
	if v, ok := envInt("VEHICLE_DEFAULT_FAN_SPEED"); ok {
		cfg.Vehicle.Defaults.FanSpeed = v
	}
	if v, ok := envInt("VEHICLE_DEFAULT_VOLUME"); ok {
		cfg.Vehicle.Defaults.Volume = v
	}

	// Feature flags
	if v, ok := envBool("VEHICLE_ENABLE_VOICE_PROCESSING"); ok {
		cfg.Features.VoiceProcessing = v
	}
	if v, ok := envBool("VEHICLE_ENABLE_WEBSOCKET"); ok {
		cfg.Features.WebSocket = v
	}
	if v, ok := envBool("VEHICLE_ENABLE_ML_FALLBACK"); ok {
		cfg.Features.MLFallback = v
	}

	// Database
	if v := os.Getenv("VEHICLE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("VEHICLE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VEHICLE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VEHICLE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("VEHICLE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("VEHICLE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("VEHICLE_LOG_FILE"); v != "" {
		cfg.Logging.Output = "file"
		cfg.Logging.File.Path = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Server.ID == "" {
		errs = append(errs, "server.id is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls.cert_file and api.tls.key_file are required when TLS is enabled")
	}

	if c.WebSocket.HeartbeatInterval <= 0 {
		errs = append(errs, "websocket.heartbeat_interval must be positive")
	}

	if c.ML.URL == "" {
		errs = append(errs, "ml.url is required")
	}
	if c.ML.Timeout <= 0 {
		errs = append(errs, "ml.timeout must be positive")
	}
	if c.ML.Sidecar.Enabled && c.ML.Sidecar.Command == "" {
		errs = append(errs, "ml.sidecar.command is required when the sidecar is enabled")
	}

	if c.NLP.WebSocketThreshold < 0 || c.NLP.WebSocketThreshold > 1 {
		errs = append(errs, "nlp.websocket_threshold must be between 0 and 1")
	}
	if c.NLP.HTTPThreshold < 0 || c.NLP.HTTPThreshold > 1 {
		errs = append(errs, "nlp.http_threshold must be between 0 and 1")
	}
	switch c.NLP.Cache.Backend {
	case "", "none", "memory":
	case "redis":
		if c.NLP.Cache.Redis.Address == "" {
			errs = append(errs, "nlp.cache.redis.address is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("nlp.cache.backend %q is not one of memory, redis, none", c.NLP.Cache.Backend))
	}

	d := c.Vehicle.Defaults
	if d.Temperature < 16 || d.Temperature > 30 {
		errs = append(errs, "vehicle.defaults.temperature must be between 16 and 30")
	}
	if d.FanSpeed < 0 || d.FanSpeed > 5 {
		errs = append(errs, "vehicle.defaults.fan_speed must be between 0 and 5")
	}
	if d.Volume < 0 || d.Volume > 100 {
		errs = append(errs, "vehicle.defaults.volume must be between 0 and 100")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the journal is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	switch c.Logging.Output {
	case "", "stdout", "stderr":
	case "file":
		if c.Logging.File.Path == "" {
			errs = append(errs, "logging.file.path is required for file output")
		}
	default:
		errs = append(errs, fmt.Sprintf("logging.output %q is not one of stdout, stderr, file", c.Logging.Output))
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

// Seconds converts a whole-second config value to a Duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
