package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nested keys, e.g. FRAUD_SERVER__PORT.
const EnvPrefix = "FRAUD_"

// Config holds all application configuration.
type Config struct {
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`
	LogFormat   string `koanf:"log_format"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Cache    CacheConfig    `koanf:"cache"`
	Kafka    KafkaConfig    `koanf:"kafka"`
	Tracing  TracingConfig  `koanf:"tracing"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Fraud    FraudConfig    `koanf:"fraud"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            string        `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// Max request body size in bytes (default: 1MB)
	MaxRequestBodySize int64 `koanf:"max_request_body_size"`
	// Allowed CORS origins (comma-separated)
	AllowedOrigins string `koanf:"allowed_origins"`
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// CacheConfig controls the dashboard cache. Redis backs it when enabled,
// otherwise it is held in memory.
type CacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	TTL     time.Duration `koanf:"ttl"`
}

type KafkaConfig struct {
	Enabled bool     `koanf:"enabled"`
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
}

type RealtimeConfig struct {
	Enabled bool `koanf:"enabled"`
}

// FraudConfig tunes the risk engine.
type FraudConfig struct {
	// IANA zone used for the night-time check. Empty means the host zone.
	Timezone string `koanf:"timezone"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		LogFormat:   "json",
		Server: ServerConfig{
			Port:               "8080",
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       15 * time.Second,
			ShutdownTimeout:    30 * time.Second,
			MaxRequestBodySize: 1 << 20,
			AllowedOrigins:     "*",
		},
		Database: DatabaseConfig{
			Path: "./fraud_detection.db",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     30 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "fraud-decisions",
		},
		Tracing: TracingConfig{
			Endpoint:    "http://localhost:14268/api/traces",
			ServiceName: "fraud-detection-api",
		},
		Realtime: RealtimeConfig{
			Enabled: true,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, each layer overriding the previous one.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Server.MaxRequestBodySize <= 0 {
		return fmt.Errorf("max request body size must be positive")
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured fraud timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Fraud.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Fraud.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid fraud timezone %q: %w", c.Fraud.Timezone, err)
	}
	return loc, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
