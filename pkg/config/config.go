// Package config loads the static configuration this module reads at
// startup: channel attributes, storage backend selection, logging, and
// telemetry.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (BPLIB_*)
//  2. Configuration file (YAML, TOML, or any format spf13/viper supports)
//  3. Default values (lowest priority)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/groundstation/bplib/internal/bytesize"
)

// Config is the top-level configuration this module loads at startup.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	// of background workers (the ACS flush ticker, the metrics server).
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Storage configures the pluggable storage.Queue backend shared by
	// every channel this process opens.
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Channels lists the routes to open at startup, each with its own
	// attribute set.
	Channels []ChannelConfig `mapstructure:"channels" yaml:"channels"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a
	// file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing. When
// enabled, store/load/process/accept spans are exported to an
// OTLP-compatible collector.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`

	// Insecure controls whether to use a non-TLS connection.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls trace sampling: 1.0 samples everything.
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1" yaml:"sample_rate"`

	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string   `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`
	Types    []string `mapstructure:"types" yaml:"types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// StorageConfig selects and configures the storage.Queue backend.
type StorageConfig struct {
	// Type selects the backend: memory, badger, s3, or postgres.
	Type string `mapstructure:"type" validate:"required,oneof=memory badger s3 postgres" yaml:"type"`

	// MaxLen bounds the in-memory backend's queue depth. 0 = unbounded.
	MaxLen int `mapstructure:"max_len" validate:"omitempty,gte=0" yaml:"max_len,omitempty"`

	Badger   BadgerConfig   `mapstructure:"badger" yaml:"badger,omitempty"`
	S3       S3Config       `mapstructure:"s3" yaml:"s3,omitempty"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres,omitempty"`
}

// BadgerConfig configures the dgraph-io/badger/v4-backed queue.
// Dir is required when StorageConfig.Type is "badger"; Validate checks
// this cross-struct rule manually since the two fields live on
// different structs.
type BadgerConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`
}

// S3Config configures the aws-sdk-go-v2-backed queue. Bucket is
// required when StorageConfig.Type is "s3"; see BadgerConfig's Dir
// comment.
type S3Config struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Region         string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	KeyPrefix      string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// PostgresConfig configures the jackc/pgx/v5-backed queue. Host and
// Database are required when StorageConfig.Type is "postgres"; see
// BadgerConfig's Dir comment.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host,omitempty"`
	Port     int    `mapstructure:"port" yaml:"port,omitempty"`
	Database string `mapstructure:"database" yaml:"database,omitempty"`
	User     string `mapstructure:"user" yaml:"user,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode  string `mapstructure:"ssl_mode" yaml:"ssl_mode,omitempty"`

	// MaxConns bounds the pgxpool connection pool size. 0 lets pgxpool
	// pick its own default.
	MaxConns int32 `mapstructure:"max_conns" yaml:"max_conns,omitempty"`

	// QueueName namespaces rows within the shared queue_items table so
	// multiple channels can use one database without colliding; set
	// per-channel/per-kind by the CLI's withNamespace helper.
	QueueName string `mapstructure:"queue_name" yaml:"queue_name,omitempty"`
}

// ConnectionString builds a libpq-style connection string pgx accepts.
func (c PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, sslMode,
	)
}

// ChannelConfig is the on-disk form of a single channel's route and
// attribute set.
type ChannelConfig struct {
	Local      string     `mapstructure:"local" validate:"required" yaml:"local"`
	Remote     string     `mapstructure:"remote" validate:"required" yaml:"remote"`
	Attributes Attributes `mapstructure:"attributes" yaml:"attributes"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return &cfg, nil
}

// Save writes cfg to path in YAML form.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("BPLIB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(ConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(byteSizeDecodeHook(), durationDecodeHook())
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize,
// so a config file can write "64Ki" or "1Mi" as well as a plain byte
// count for max_length.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// ConfigDir returns the directory this module searches for config.yaml
// when no explicit path is given.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bplib")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "bplib")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
